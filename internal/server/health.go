package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to HealthChecker.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// ConnectDB opens and pings a pgx pool. The dashboard stores nothing in it;
// it only takes part in readiness.
func ConnectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

// checkAll pings every dependency concurrently and reports each by name.
func checkAll(ctx context.Context, checks map[string]HealthChecker) (map[string]string, bool) {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		healthy = true
		out     = make(map[string]string, len(checks))
	)
	for name, hc := range checks {
		name, hc := name, hc
		g.Go(func() error {
			status := "ok"
			if err := hc.Ping(ctx); err != nil {
				status = fmt.Sprintf("unhealthy: %v", err)
			}
			mu.Lock()
			defer mu.Unlock()
			out[name] = status
			if status != "ok" {
				healthy = false
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, healthy
}

func (s *Server) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	results, healthy := checkAll(ctx, s.checks)
	body := gin.H{"status": "ok"}
	for name, status := range results {
		body[name] = status
	}
	if _, ok := s.checks["db"]; !ok {
		body["db"] = "disabled"
	}

	if !healthy {
		body["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
