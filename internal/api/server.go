package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/factoryd/internal/engine"
	"github.com/nerrad567/factoryd/internal/infrastructure/config"
	"github.com/nerrad567/factoryd/internal/infrastructure/logging"
	"github.com/nerrad567/factoryd/internal/logsink"
	"github.com/nerrad567/factoryd/internal/manual"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Reloader reloads the factory document on request.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ClientEndpoint serves remote clients on /ws/client.
type ClientEndpoint interface {
	http.Handler
	Connected() []string
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig

	// Port is the port to bind. Zero picks a free port.
	Port int

	Logger     *logging.Logger
	Holder     *engine.Holder
	Scheduler  *engine.Scheduler
	Reloader   Reloader
	Manual     *manual.Queue
	Deliveries manual.Recorder
	Sink       *logsink.Sink

	// Clients is optional; without it /ws/client is not routed.
	Clients ClientEndpoint

	// Metrics is optional; without it /metrics is not routed.
	Metrics http.Handler

	// Hub is optional; New creates one when nil.
	Hub *Hub

	Version string
}

// Server is the HTTP API server for factoryd.
type Server struct {
	cfg        config.APIConfig
	port       int
	logger     *logging.Logger
	holder     *engine.Holder
	scheduler  *engine.Scheduler
	reloader   Reloader
	queue      *manual.Queue
	deliveries manual.Recorder
	sink       *logsink.Sink
	clients    ClientEndpoint
	metrics    http.Handler
	hub        *Hub
	version    string
	startTime  time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Logger and Holder are required; the rest disable their
//     endpoints when nil
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Holder == nil {
		return nil, fmt.Errorf("factory holder is required")
	}

	s := &Server{
		cfg:        deps.Config,
		port:       deps.Port,
		logger:     deps.Logger,
		holder:     deps.Holder,
		scheduler:  deps.Scheduler,
		reloader:   deps.Reloader,
		queue:      deps.Manual,
		deliveries: deps.Deliveries,
		sink:       deps.Sink,
		clients:    deps.Clients,
		metrics:    deps.Metrics,
		hub:        deps.Hub,
		version:    deps.Version,
		startTime:  time.Now(),
	}
	if s.hub == nil {
		s.hub = NewHub(deps.Logger)
	}
	return s, nil
}

// Hub returns the UI event hub, for registering it as a cycle observer.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in the background until Close.
//
// Parameters:
//   - ctx: Parent of the hub and log relay goroutines
//
// Returns:
//   - error: If the port cannot be bound
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	go s.hub.Run(srvCtx)
	if s.sink != nil {
		go s.hub.RelayLogs(srvCtx, s.sink)
	}

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("API server listening", "address", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.server, s.cancel = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	cancel()

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
