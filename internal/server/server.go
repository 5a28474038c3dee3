// Package server exposes a loaded transcription model over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/fmueller/whisperd/internal/api"
	"github.com/fmueller/whisperd/internal/engine"
	"github.com/fmueller/whisperd/internal/logging"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const (
	ShutdownGrace = 5 * time.Second

	maxJSONBodyBytes  = 1 << 20
	readHeaderTimeout = 10 * time.Second
)

type Options struct {
	Handle *engine.Handle
	// ModelName is the configured model id reported by /health.
	ModelName      string
	Backend        string
	UploadDir      string
	MaxUploadBytes int64
	CORSOrigins    []string
	// ShutdownGrace defaults to the package constant.
	ShutdownGrace time.Duration
	Logger        *zap.Logger
}

type Server struct {
	handle         *engine.Handle
	modelName      string
	backend        string
	uploadDir      string
	maxUploadBytes int64
	corsOrigins    []string
	shutdownGrace  time.Duration
	logger         *zap.Logger
}

func New(opts Options) *Server {
	handle := opts.Handle
	if handle == nil {
		handle = engine.NewHandle()
	}
	grace := opts.ShutdownGrace
	if grace <= 0 {
		grace = ShutdownGrace
	}
	uploadDir := opts.UploadDir
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &Server{
		handle:         handle,
		modelName:      opts.ModelName,
		backend:        opts.Backend,
		uploadDir:      uploadDir,
		maxUploadBytes: opts.MaxUploadBytes,
		corsOrigins:    opts.CORSOrigins,
		shutdownGrace:  grace,
		logger:         logging.OrNop(opts.Logger),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(cors.Handler(CORSOptions(s.corsOrigins)))

	r.Get(api.PathHealth, s.handleHealth)
	r.With(MaxBodySize(maxJSONBodyBytes)).Post(api.PathTranscribe, s.handleTranscribe)
	r.Post(api.PathTranscribeFile, s.handleTranscribeFile)

	return r
}

// ListenAndServe serves on addr until ctx is canceled, then drains in-flight
// requests for up to ShutdownGrace.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("whisper service listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down whisper service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Warn("requests still running after shutdown grace; closing connections",
			zap.Duration("grace", s.shutdownGrace),
		)
		_ = srv.Close()
	}
	return nil
}
