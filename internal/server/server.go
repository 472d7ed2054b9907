package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/audiows/internal/discovery"
	"github.com/muurk/audiows/internal/logging"
	"github.com/muurk/audiows/internal/state"
	"github.com/muurk/audiows/internal/version"
)

const (
	// Upper bound for draining connections on shutdown.
	shutdownTimeout = 10 * time.Second

	// Time allowed for the WebSocket handshake.
	handshakeTimeout = 10 * time.Second
)

// Config holds the server configuration
type Config struct {
	Host        string
	Port        int
	LogLevel    string        // Initializes logging when non-empty
	ReadLimit   int64         // Maximum inbound frame size in bytes (0 = unlimited)
	IdleTimeout time.Duration // Read deadline per frame (0 = wait forever)
	CaptureDir  string        // Directory for JSONL frame capture (empty = disabled)
	Advertise   bool          // Publish the server over mDNS
	Instance    string        // mDNS instance name
}

// Addr returns the host:port the server binds to.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server is the audio control WebSocket server. Every connection it accepts
// shares the same state cell.
type Server struct {
	config     *Config
	cell       *state.Cell
	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener
	capture    *Capture
	advertiser *discovery.Advertiser

	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*websocket.Conn
	closing     bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a new Server instance
func New(config *Config, cell *state.Cell) (*Server, error) {
	if config == nil {
		return nil, errors.New("server config is nil")
	}
	if cell == nil {
		return nil, errors.New("state cell is nil")
	}
	if config.ReadLimit < 0 {
		return nil, fmt.Errorf("invalid read limit %d", config.ReadLimit)
	}
	if config.IdleTimeout < 0 {
		return nil, fmt.Errorf("invalid idle timeout %s", config.IdleTimeout)
	}

	if config.LogLevel != "" {
		if err := logging.Initialize(config.LogLevel); err != nil {
			return nil, fmt.Errorf("failed to initialize logging: %w", err)
		}
	}

	s := &Server{
		config:      config,
		cell:        cell,
		activeConns: make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			// No origin policy: any client may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: handshakeTimeout,
	}
	return s, nil
}

// Listen binds the listening socket. A bind failure is returned immediately
// and never retried.
func (s *Server) Listen() error {
	if s.listener != nil {
		return errors.New("server is already listening")
	}

	addr := s.config.Addr()
	logging.Info("Starting audiows WebSocket server",
		zap.String("addr", addr),
		zap.String("version", version.Full()),
		zap.Int64("read_limit", s.config.ReadLimit),
		zap.Duration("idle_timeout", s.config.IdleTimeout),
	)

	if s.config.CaptureDir != "" {
		capture, err := NewCapture(s.config.CaptureDir)
		if err != nil {
			return err
		}
		s.capture = capture
		logging.Info("Frame capture enabled", zap.String("file", capture.Path()))
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		_ = s.capture.Close()
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	s.listener = listener

	logging.Info("Server listening for connections",
		zap.String("addr", listener.Addr().String()),
	)

	if s.config.Advertise {
		s.advertise()
	}
	return nil
}

// advertise publishes the bound port over mDNS. Failure is not fatal: the
// server stays reachable by address.
func (s *Server) advertise() {
	tcpAddr, ok := s.listener.Addr().(*net.TCPAddr)
	if !ok {
		return
	}
	adv, err := discovery.Advertise(s.config.Instance, tcpAddr.Port,
		discovery.TXTRecords("/", version.Version))
	if err != nil {
		logging.Warn("mDNS advertisement failed", zap.Error(err))
		return
	}
	s.advertiser = adv
	logging.Info("Advertising over mDNS",
		zap.String("instance", s.config.Instance),
		zap.String("service", discovery.ServiceType),
		zap.Int("port", tcpAddr.Port),
	)
}

// Serve accepts connections until the listener fails or Shutdown is called.
// Each connection is handled on its own goroutine. Temporary accept errors
// are retried with backoff; any other accept error is returned.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	logging.Error("Failed to accept connection", zap.Error(err))
	return fmt.Errorf("accept loop failed: %w", err)
}

// Run binds (unless Listen was already called) and serves until ctx is
// cancelled or the accept loop fails, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		// Also releases the watcher when Shutdown is called directly.
		defer cancel()
		return s.Serve()
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logging.Info("Shutdown signal received, stopping server...")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Start starts the server and blocks until SIGINT, SIGTERM or an accept
// failure.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// ListenAndServe binds addr and serves connections against cell until ctx
// is cancelled. Bind failures are returned without retry.
func ListenAndServe(ctx context.Context, addr string, cell *state.Cell) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port in %q: %w", addr, err)
	}

	srv, err := New(&Config{Host: host, Port: port}, cell)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr()
}

// Shutdown gracefully shuts down the server. It is safe to call more than
// once; later calls return the first result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Server) shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.advertiser.Shutdown()

	// Stop accepting; hijacked WebSocket connections are not covered by this.
	var err error
	if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
		logging.Error("Error closing listener", zap.Error(shutdownErr))
		err = fmt.Errorf("failed to stop listener: %w", shutdownErr)
	}

	s.mu.Lock()
	s.closing = true
	for addr, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	if captureErr := s.capture.Close(); captureErr != nil {
		logging.Error("Failed to close capture file", zap.Error(captureErr))
	}

	logging.Sync()
	return err
}

// track registers an upgraded connection. It returns false once shutdown has
// begun, in which case the caller must drop the connection.
func (s *Server) track(remoteAddr string, conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.activeConns[remoteAddr] = conn
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(remoteAddr string) {
	s.mu.Lock()
	delete(s.activeConns, remoteAddr)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// GetActiveConnections returns the number of active connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
