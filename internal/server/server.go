// Package server exposes ingestion, retrieval and answering over HTTP.
package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"ragdocs/internal/answer"
	"ragdocs/internal/ingest"
	"ragdocs/internal/retrieve"
)

type Ingester interface {
	IngestDir(ctx context.Context, dir string) (ingest.Report, error)
	IngestFiles(ctx context.Context, patterns []string) (ingest.Report, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string) (retrieve.Result, error)
}

type Asker interface {
	Answer(ctx context.Context, query string) (answer.Answer, error)
}

type Counter interface {
	Count(ctx context.Context) (int, error)
}

type Deps struct {
	Ingester  Ingester
	Retriever Retriever
	Asker     Asker
	Store     Counter
	SourceDir string
}

type Server struct {
	listenAddr string
	deps       Deps
	logger     *zap.Logger
	app        *fiber.App
}

func NewServer(addr string, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{listenAddr: addr, deps: deps, logger: logger}
	s.app = fiber.New(fiber.Config{
		ErrorHandler:          s.errorHandler,
		DisableStartupMessage: true,
	})

	var (
		check = s.app.Group("/check")
		apiv1 = s.app.Group("/api/v1")
	)
	s.app.Get("/healthz", s.handleHealthy)
	check.Get("/healthy", s.handleHealthy)
	for _, r := range []fiber.Router{s.app, apiv1} {
		r.Post("/ingest", s.handleIngest)
		r.Post("/retrieve", s.handleRetrieve)
		r.Post("/ask", s.handleAsk)
	}
	return s
}

// App returns the underlying fiber app, for tests.
func (s *Server) App() *fiber.App { return s.app }

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.listenAddr))
		errCh <- s.app.Listen(s.listenAddr)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("server stopping")
		return s.app.Shutdown()
	}
}

func zapRequest(c *fiber.Ctx, status int, err error) []zap.Field {
	return []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Error(err),
	}
}
