// ABOUTME: HTTP server assembly: static endpoints, MCP mount and the middleware pipeline
// ABOUTME: Run blocks until the context is canceled, then drains in-flight requests

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/2389/mcp-scaffold/internal/auth"
	"github.com/2389/mcp-scaffold/internal/config"
	"github.com/2389/mcp-scaffold/internal/db"
	"github.com/2389/mcp-scaffold/internal/mcp"
	"github.com/2389/mcp-scaffold/internal/pipeline"
	"github.com/2389/mcp-scaffold/internal/ratelimit"
	"github.com/2389/mcp-scaffold/internal/registry"
)

// DefaultShutdownTimeout bounds the drain when server.shutdown_timeout is unset.
const DefaultShutdownTimeout = 5 * time.Second

// Options wires the server's collaborators. Limiter, Database and Metrics are optional.
type Options struct {
	Config   *config.Provider
	Registry *registry.Registry
	Limiter  ratelimit.Limiter
	Database *db.Connector
	Metrics  *pipeline.Metrics
	Logger   *slog.Logger
	Hostname string
}

// Server owns the HTTP listener and the assembled handler.
type Server struct {
	cfg      *config.Provider
	registry *registry.Registry
	limiter  ratelimit.Limiter
	database *db.Connector
	metrics  *pipeline.Metrics
	mcp      *mcp.Server
	logger   *slog.Logger
	hostname string

	handler    http.Handler
	httpServer *http.Server
}

// New builds the handler chain. Nothing is bound until Run.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hostname := opts.Hostname
	if hostname == "" {
		hostname = pipeline.Hostname()
	}

	cfg := opts.Config
	mcpServer, err := mcp.NewServer(mcp.Config{
		Name:         cfg.Name(),
		Version:      cfg.Version(),
		Instructions: cfg.GetString("mcp.instructions", ""),
		Registry:     opts.Registry,
		Logger:       logger,
		Stateless:    cfg.Stateless(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		registry: opts.Registry,
		limiter:  opts.Limiter,
		database: opts.Database,
		metrics:  opts.Metrics,
		mcp:      mcpServer,
		logger:   logger.With("component", "server"),
		hostname: hostname,
	}

	if s.metrics != nil {
		for _, kind := range registry.Kinds {
			s.metrics.SetCapabilities(string(kind), s.registry.Count(kind))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/deep", s.handleDeepHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("GET /_info", s.handleInfo)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.Handle("/mcp", s.mcp)
	mux.Handle("/mcp/", s.mcp)

	metricsStage := pipeline.Passthrough
	if s.metrics != nil {
		metricsStage = s.metrics.Stage
	}
	s.handler, err = pipeline.Build(map[string]pipeline.Stage{
		pipeline.StageServedBy:   pipeline.ServedBy(hostname),
		pipeline.StageCORS:       pipeline.CORS(cfg.Tree().GetStringSlice("security.cors.allowed_origins", []string{"*"})),
		pipeline.StageRequestLog: pipeline.RequestLog(logger.With("component", "http")),
		pipeline.StageMetrics:    metricsStage,
		pipeline.StageRateLimit:  ratelimit.Middleware(s.limiter, auth.IsExempt, logger),
		pipeline.StageAuth:       auth.Middleware(cfg, logger),
	}, s.recoverer(mux))
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Handler returns the fully assembled handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr is host:port from configuration.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host(), strconv.Itoa(s.cfg.Port()))
}

// recoverer turns a handler panic into a generic 500. The stack is logged,
// never returned.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}
			s.logger.Error("handler panic",
				"correlation_id", pipeline.CorrelationID(r.Context()),
				"path", r.URL.Path,
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}()
		next.ServeHTTP(w, r)
	})
}

// Run listens on Addr and serves until ctx is canceled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down gracefully.
// Returns nil on graceful shutdown, or the error that stopped the listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.GetDuration("server.read_header_timeout", 10*time.Second),
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
		close(errCh)
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case err, ok := <-errCh:
		if ok {
			s.logger.Error("server error", "error", err)
			serverErr = err
		}
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the run context is already canceled.
func (s *Server) gracefulShutdown() error {
	timeout := s.cfg.GetDuration("server.shutdown_timeout", DefaultShutdownTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}

func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops accepting connections, waits for in-flight requests up to
// ctx's deadline, and closes the optional backends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	if s.httpServer != nil {
		errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	}
	if s.limiter != nil {
		errs = appendCloseError(errs, "rate limiter close", s.limiter.Close())
	}
	if s.database != nil {
		errs = appendCloseError(errs, "database close", s.database.Close())
	}
	return errors.Join(errs...)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
