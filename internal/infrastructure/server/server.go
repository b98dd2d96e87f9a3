package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/scriptworker/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/manifest"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/provision"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/session"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/worker"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	sessions *session.Manager
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing sandbox server",
		zap.String("port", cfg.Server.Port),
		zap.String("manifest_source", cfg.Manifest.Source),
		zap.String("project_root", cfg.Sandbox.ProjectRoot),
	)

	metrics := monitoring.NewMetrics()

	source, err := NewSource(cfg.Manifest)
	if err != nil {
		return nil, err
	}
	installer := NewInstaller(cfg.Sandbox, logger)

	workerConfig := worker.Config{
		ProjectRoot: cfg.Sandbox.ProjectRoot,
		EnvFlag:     cfg.Sandbox.EnvFlag,
		Entrypoint:  cfg.Sandbox.Entrypoint,
		Packages:    cfg.Sandbox.Packages,
	}
	engineConfig := sandbox.DefaultConfig()
	engineConfig.Timeout = cfg.Sandbox.ScriptTimeout
	engineConfig.MaxCallStackSize = cfg.Sandbox.MaxCallStack

	sessions := session.NewManager(func(sid id.SessionID) *worker.Worker {
		wl := logger.With(zap.String("session", sid.String()))
		return worker.New(workerConfig, source,
			worker.WithEngineFactory(worker.SandboxFactory(engineConfig, wl)),
			worker.WithInstaller(installer),
			worker.WithLogger(wl),
			worker.WithMetrics(metrics),
		)
	},
		session.WithLogger(logger),
		session.WithMetrics(metrics),
		session.WithLimit(cfg.Session.Limit),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.SessionCORSConfig(cfg.Server.CORSOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	apihttp.NewHandlers(sessions, metrics, logger).Register(router)
	router.GET("/sessions/:id/stream", ws.NewHandler(sessions, metrics, logger).HandleConnection)

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		sessions: sessions,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until Shutdown is called
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones, then closes
// every session
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP shutdown failed", zap.Error(err))
		errs = append(errs, err)
	}
	if err := s.sessions.CloseAll(); err != nil {
		s.logger.Error("Failed to close sessions", zap.Error(err))
		errs = append(errs, err)
	}
	_ = s.logger.Sync()
	return errors.Join(errs...)
}

// NewSource builds the manifest source named by cfg
func NewSource(cfg config.ManifestConfig) (manifest.Source, error) {
	switch cfg.Source {
	case config.SourceFile:
		return &manifest.FileSource{Path: cfg.Path}, nil
	case config.SourceHTTP:
		return &manifest.HTTPSource{URL: cfg.URL, Client: httpclient.NewDefault()}, nil
	case config.SourceDir:
		return &manifest.DirSource{Root: cfg.Path, Ignore: cfg.Ignore}, nil
	default:
		return nil, fmt.Errorf("unknown manifest source %q", cfg.Source)
	}
}

// NewInstaller picks a package installer. The index URL wins over the
// directory; with neither, packages are not installed.
func NewInstaller(cfg config.SandboxConfig, logger *logging.Logger) provision.Installer {
	switch {
	case cfg.PackageIndex != "":
		return provision.NewHTTPInstaller(cfg.PackageIndex, cfg.PackageGzip, logger)
	case cfg.PackageDir != "":
		return &provision.DirInstaller{Dir: cfg.PackageDir, Logger: logger}
	default:
		return provision.Nop{}
	}
}
