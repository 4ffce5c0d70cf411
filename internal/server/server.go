// Package server serves the LiverGuardian dashboard and its JSON API.
package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Skufu/LiverGuardian/internal/dashboard"
	"github.com/Skufu/LiverGuardian/internal/logging"
)

//go:embed templates/*.tmpl static/*
var assets embed.FS

const sessionCookie = "lg_session"

type Options struct {
	Store       *dashboard.Store
	Checks      map[string]HealthChecker
	CORSOrigins []string
	Logger      *zap.Logger
	// Now is the report clock; defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	store       *dashboard.Store
	checks      map[string]HealthChecker
	corsOrigins []string
	log         *zap.Logger
	now         func() time.Time
}

func New(opts Options) *Server {
	s := &Server{
		store:       opts.Store,
		checks:      opts.Checks,
		corsOrigins: opts.CORSOrigins,
		log:         opts.Logger,
		now:         opts.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.checks == nil {
		s.checks = map[string]HealthChecker{}
	}
	return s
}

// Router builds the gin engine with every route and middleware attached.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(
		logging.Middleware(s.log),
		gin.Recovery(),
		limitBodySize(1<<20), // 1MB max body
		cors.New(corsConfig(s.corsOrigins)),
	)

	router.SetHTMLTemplate(template.Must(
		template.New("").Funcs(templateFuncs()).ParseFS(assets, "templates/*.tmpl"),
	))
	static, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	router.StaticFS("/static", http.FS(static))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", s.readyz)

	router.GET("/", s.showDashboard)
	router.POST("/", s.submitForm)
	router.GET("/report", s.downloadReport)
	router.GET("/charts/stage", s.stageChart)
	router.GET("/charts/factors", s.factorsChart)

	api := router.Group("/api")
	api.GET("/fields", s.listFields)
	api.GET("/form", s.getForm)
	api.PUT("/form/:field", s.setField)
	api.POST("/predict", s.predict)
	api.GET("/state", s.getState)
	api.GET("/recommendations/:stage", s.getRecommendation)
	api.GET("/biomarkers", s.getBiomarkers)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// a Caser is stateful, so one per call
		"title": func(s string) string { return cases.Title(language.English).String(s) },
	}
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// session resolves the caller's dashboard, issuing a cookie for new sessions.
// The cookie has no Max-Age so it ends with the browser session.
func (s *Server) session(c *gin.Context) *dashboard.Dashboard {
	id, _ := c.Cookie(sessionCookie)
	id, d, created := s.store.Resolve(id)
	if created {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, id, 0, "/", "", false, true)
		s.log.Debug("session created", zap.String("session", id))
	}
	return d
}
