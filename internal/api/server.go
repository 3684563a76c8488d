package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/greenhome-proxy/internal/bridge"
	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/config"
	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/influxdb"
	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/logging"
	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/mqtt"
	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/redis"
	"github.com/nerrad567/greenhome-proxy/internal/journal"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BridgeController exposes the bridge to the API. Satisfied by *bridge.Bridge.
type BridgeController interface {
	Status() bridge.Status
	ForceRebuild()
}

// CommandJournal lists journalled commands. Satisfied by
// *journal.SQLiteRepository.
type CommandJournal interface {
	List(ctx context.Context, filter journal.Filter) (*journal.ListResult, error)
}

// DBStatser reports connection pool statistics. Satisfied by *sql.DB.
type DBStatser interface {
	Stats() sql.DBStats
}

// PoolStatser reports the platform publisher's pool. Satisfied by
// *redis.Publisher.
type PoolStatser interface {
	Stats() redis.Stats
}

// HomeBusStatser reports the home bus link. Satisfied by *mqtt.Client.
type HomeBusStatser interface {
	Stats() mqtt.Stats
}

// TelemetryStatser reports telemetry delivery. Satisfied by *influxdb.Client.
type TelemetryStatser interface {
	Stats() influxdb.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Bridge    BridgeController
	Journal   CommandJournal
	DB        DBStatser        // optional, reported by /metrics
	Pool      PoolStatser      // optional, reported by /metrics
	HomeBus   HomeBusStatser   // optional, reported by /metrics
	Telemetry TelemetryStatser // optional, reported by /metrics
	Hub       *Hub             // If set, the server uses this hub instead of creating its own
	Version   string
}

// Server is the admin HTTP server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	bridge    BridgeController
	journal   CommandJournal
	db        DBStatser
	pool      PoolStatser
	homeBus   HomeBusStatser
	telemetry TelemetryStatser
	version   string
	startTime time.Time

	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // stops an owned hub on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Bridge == nil {
		return nil, errors.New("bridge is required")
	}
	if deps.Journal == nil {
		return nil, errors.New("command journal is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		bridge:    deps.Bridge,
		journal:   deps.Journal,
		db:        deps.DB,
		pool:      deps.Pool,
		homeBus:   deps.HomeBus,
		telemetry: deps.Telemetry,
		version:   deps.Version,
		startTime: time.Now(),
	}

	// The bridge broadcasts into the hub, so main usually creates it first.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the owned hub (not the listener lifetime)
//
// Returns:
//   - error: Currently always nil; listener errors are logged
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return errors.New("api server not started")
	}

	return nil
}
