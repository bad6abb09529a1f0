package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/cardioml-web/internal/domain"
	"github.com/cardioml-web/internal/middleware"
	"github.com/cardioml-web/internal/report"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static
var staticFiles embed.FS

// Dependencies are the collaborators the server is built from.
type Dependencies struct {
	Config    *domain.Config
	Predictor domain.PredictionService
	Store     domain.ResultStore
	Logger    *logrus.Logger
	Metrics   *Metrics
	// Reports overrides the PDF generator. When nil one is built on first use
	// with ReportOptions.
	Reports       ReportRenderer
	ReportOptions []report.Option
	Clock         func() time.Time
}

// ReportRenderer renders a stored assessment as a downloadable report.
type ReportRenderer interface {
	Generate(record *domain.AssessmentRecord, now time.Time) (*report.Report, error)
}

// Server represents the HTTP server
type Server struct {
	cfg       *domain.Config
	predictor domain.PredictionService
	store     domain.ResultStore
	logger    *logrus.Logger
	metrics   *Metrics
	clock     func() time.Time
	router    *gin.Engine
	server    *http.Server

	reportOnce    sync.Once
	reportOptions []report.Option
	reports       ReportRenderer
}

// NewServer creates a new HTTP server instance
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Config == nil || deps.Predictor == nil || deps.Store == nil || deps.Logger == nil {
		return nil, errors.New("config, predictor, store and logger are required")
	}
	cfg := deps.Config

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:           cfg,
		predictor:     deps.Predictor,
		store:         deps.Store,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		clock:         deps.Clock,
		reportOptions: deps.ReportOptions,
		reports:       deps.Reports,
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.clock == nil {
		s.clock = time.Now
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("loading static assets: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(s.logger))
	router.Use(s.metrics.Middleware())
	router.Use(middleware.SecurityHeaders())
	router.SetHTMLTemplate(tmpl)
	router.StaticFS("/static", http.FS(static))

	s.router = router
	s.setupRoutes()

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the page and API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	app := s.router.Group("/")
	app.Use(middleware.Session(s.cfg.Session))
	app.Use(middleware.RequestTimeout(s.cfg.Server.RequestTimeout))
	{
		app.GET("/", s.handlePage("index.html", "home"))
		app.GET("/how-it-works", s.handlePage("how-it-works.html", "how-it-works"))
		app.GET("/health-insights", s.handlePage("health-insights.html", "health-insights"))
		app.GET("/model", s.handlePage("model.html", "model"))

		app.GET("/assessment", s.handleAssessmentForm)
		app.POST("/assessment", s.handleAssessmentSubmit)

		results := app.Group("/results")
		results.Use(middleware.NoStore())
		{
			results.GET("", s.handleResults)
			results.GET("/report", s.handleReport)
			results.POST("/clear", s.handleClear)
		}
	}

	api := s.router.Group("/api")
	api.Use(middleware.Session(s.cfg.Session))
	api.Use(middleware.RequestTimeout(s.cfg.Server.RequestTimeout))
	{
		api.GET("/model-info", s.handleModelInfo)
		api.POST("/bmi", s.handleBMI)
		api.GET("/results", middleware.NoStore(), s.handleStoredResult)
	}
}

// reportGenerator builds the PDF generator on first use.
func (s *Server) reportGenerator() ReportRenderer {
	s.reportOnce.Do(func() {
		if s.reports == nil {
			s.reports = report.NewGenerator(s.logger, s.reportOptions...)
		}
	})
	return s.reports
}
