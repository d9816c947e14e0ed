package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lychee-technology/sweet"
	"github.com/lychee-technology/sweet/factory"
	"github.com/lychee-technology/sweet/internal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP server with SchemaManager
type Server struct {
	manager  sweet.SchemaManager
	config   *sweet.Config
	registry *prometheus.Registry
	health   func(ctx context.Context) internal.HealthReport
	mux      *http.ServeMux
}

// NewServer creates a new Server instance. A nil registry disables /metrics.
func NewServer(manager sweet.SchemaManager, config *sweet.Config, registry *prometheus.Registry) *Server {
	if config == nil {
		config = sweet.DefaultConfig()
	}
	return &Server{
		manager:  manager,
		config:   config,
		registry: registry,
		mux:      http.NewServeMux(),
	}
}

// SetHealthCheck makes /health report fn's result instead of a static ok.
func (s *Server) SetHealthCheck(fn func(ctx context.Context) internal.HealthReport) {
	s.health = fn
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.registry != nil {
		path := s.config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	s.mux.HandleFunc("POST /api/v1/schema", s.handleCreateSchema)
	s.mux.HandleFunc("GET /api/v1/schema", s.handleListSchemas)
	s.mux.HandleFunc("GET /api/v1/schema/{key}", s.handleGetSchema)
	s.mux.HandleFunc("DELETE /api/v1/schema/{key}", s.handleDeleteSchema)
	s.mux.HandleFunc("POST /api/v1/schema/{key}/toggle", s.handleToggleSchema)
	s.mux.HandleFunc("POST /api/v1/schema/{key}/activate", s.handleActivateSchema)
	s.mux.HandleFunc("POST /api/v1/schema/{key}/table", s.handleCreateTable)
	s.mux.HandleFunc("POST /api/v1/tables", s.handleCreateTables)
}

// Handler returns the routed handler wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	return withRequestLogging(s.mux)
}

func main() {
	configPath := flag.String("config", os.Getenv("SWEET_CONFIG"), "path to a JSON or YAML config file")
	flag.Parse()

	cfg, err := sweet.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := internal.NewLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := factory.Open(ctx, cfg)
	if err != nil {
		sugar.Fatalf("failed to open schema runtime: %v", err)
	}
	defer rt.Close()

	server := NewServer(rt.Manager, cfg, rt.Registry)
	server.SetHealthCheck(rt.Health)
	server.RegisterRoutes()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			sugar.Warnw("server shutdown", "error", err)
		}
	}()

	sugar.Infow("starting server", "port", cfg.Server.Port, "dialect", cfg.Database.Dialect)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugar.Fatalf("server error: %v", err)
	}
}
