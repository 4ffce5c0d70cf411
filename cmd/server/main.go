package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Skufu/LiverGuardian/internal/config"
	"github.com/Skufu/LiverGuardian/internal/dashboard"
	"github.com/Skufu/LiverGuardian/internal/logging"
	"github.com/Skufu/LiverGuardian/internal/predictor"
	"github.com/Skufu/LiverGuardian/internal/server"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liverguardian",
		Short: "LiverGuardian cirrhosis stage dashboard",
		Long: `LiverGuardian serves a web dashboard that collects patient biomarkers,
asks the prediction service for a cirrhosis stage and shows the matching
recommendations and a downloadable report.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	gin.SetMode(cfg.GinMode)

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	pc, err := predictor.New(cfg.PredictorURL, predictor.WithTimeout(cfg.PredictorTimeout))
	if err != nil {
		return err
	}

	checks := map[string]server.HealthChecker{
		"predictor": server.PingFunc(pc.Health),
	}
	if cfg.EnableDB {
		pool, err := server.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer pool.Close()
		checks["db"] = pool
	}

	store := dashboard.NewStore(cfg.SessionTTL, func() *dashboard.Dashboard {
		return dashboard.New(pc, dashboard.Options{
			DiscardStale: cfg.DiscardStale,
			RevealDelay:  cfg.RevealDelay,
			Logger:       log.Named("dashboard"),
		})
	})

	srv := server.New(server.Options{
		Store:       store,
		Checks:      checks,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      log.Named("http"),
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info("server listening",
		zap.String("addr", httpServer.Addr),
		zap.String("predictor", pc.BaseURL()),
		zap.Bool("discard_stale", cfg.DiscardStale),
	)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	return shutdown(httpServer, store, log)
}

func shutdown(httpServer *http.Server, store *dashboard.Store, log *zap.Logger) error {
	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
	if err := store.Wait(ctx); err != nil {
		log.Warn("predictions still in flight at exit", zap.Error(err))
	}
	return nil
}
