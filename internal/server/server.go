// Package server wires the region manager, service registry, event bus
// and HTTP/WebSocket surfaces together.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/quarksys/shmd/internal/api/http"
	"github.com/quarksys/shmd/internal/api/middleware"
	"github.com/quarksys/shmd/internal/api/ws"
	"github.com/quarksys/shmd/internal/events"
	"github.com/quarksys/shmd/internal/infrastructure/config"
	"github.com/quarksys/shmd/internal/infrastructure/logging"
	"github.com/quarksys/shmd/internal/infrastructure/monitoring"
	"github.com/quarksys/shmd/internal/providers/sharedmem"
	"github.com/quarksys/shmd/internal/service"
	"github.com/quarksys/shmd/internal/shm"
)

// Server hosts the region manager and its API surface.
type Server struct {
	cfg      *config.Config
	log      *logging.Logger
	manager  *shm.Manager
	registry *service.Registry
	bus      *events.Bus
	metrics  *monitoring.Metrics
	httpSrv  *http.Server
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config) (*Server, error) {
	var log *logging.Logger
	if cfg.Logging.Development {
		log = logging.NewDevelopment()
	} else {
		l, err := logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			OutputPaths: []string{"stdout"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
		log = l
	}

	log.Info("initializing shmd",
		zap.String("port", cfg.Server.Port),
		zap.Int("arena_capacity", cfg.Shm.ArenaCapacity),
		zap.Int("max_regions", cfg.Shm.MaxRegions),
	)

	metrics := monitoring.NewMetrics()
	bus := events.NewBus()

	manager := shm.NewManager(shm.Config{
		ArenaCapacity: cfg.Shm.ArenaCapacity,
		MaxRegions:    cfg.Shm.MaxRegions,
		MaxNameLen:    cfg.Shm.MaxNameLen,
		MaxACLEntries: cfg.Shm.MaxACLEntries,
	}, log.Named("shm")).
		WithMetrics(metrics).
		WithEvents(bus)

	registry := service.NewRegistry()
	if err := registry.Register(sharedmem.NewProvider(manager)); err != nil {
		return nil, fmt.Errorf("failed to register shm provider: %w", err)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}
	router.Use(metrics.Middleware())

	apihttp.NewHandlers(manager, registry, log.Named("api")).Register(router)
	router.GET("/metrics", metrics.Handler())
	router.GET("/ws", ws.NewHandler(bus, log.Named("ws")).HandleConnection)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	return &Server{
		cfg:      cfg,
		log:      log,
		manager:  manager,
		registry: registry,
		bus:      bus,
		metrics:  metrics,
		httpSrv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Manager exposes the region manager, mainly for tests and embedding.
func (s *Server) Manager() *shm.Manager {
	return s.manager
}

// Run serves HTTP until Shutdown is called.
func (s *Server) Run() error {
	s.log.Info("shmd listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and closes the event bus.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	s.bus.Close()
	s.log.Sync() //nolint:errcheck // stdout sync failure is uninteresting
	return err
}
