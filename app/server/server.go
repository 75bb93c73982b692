package server

import (
	"context"
	"log/slog"
	"sync"

	"neuralsearch/app/api"
	"neuralsearch/app/middleware"
	"neuralsearch/bootstrap"
	"neuralsearch/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// pendingBatch bounds how many pending documents are re-enqueued on start.
const pendingBatch = 1000

type Server struct {
	cfg        *config.Config
	components *bootstrap.Components
	app        *fiber.App
	logger     *slog.Logger

	cancelWorker context.CancelFunc
	workerDone   sync.WaitGroup
}

func NewServer(cfg *config.Config, components *bootstrap.Components, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:        cfg,
		components: components,
		logger:     logger,
	}
	s.app = s.newApp()
	return s
}

func (s *Server) newApp() *fiber.App {
	var (
		app = fiber.New(fiber.Config{
			AppName:               s.cfg.App.Name,
			ErrorHandler:          api.ErrorHandler,
			BodyLimit:             s.cfg.Server.BodyLimitMB * 1024 * 1024,
			DisableStartupMessage: true,
		})
		checkHandler    = api.NewCheckHandler(s.cfg.App.Environment, s.cfg.App.Version)
		documentHandler = api.NewDocumentHandler(s.components.Ingest, s.components.Documents)
		searchHandler   = api.NewSearchHandler(s.components.Search)
	)

	app.Use(middleware.RequestLogger(s.logger), recover.New())

	app.Get("/", checkHandler.HandleHealthy)
	app.Get("/health", checkHandler.HandleHealthy)
	app.Post("/upload", documentHandler.HandleUpload)
	app.Get("/documents", documentHandler.HandleGetDocuments)
	app.Get("/documents/:id", documentHandler.HandleGetDocument)
	app.Post("/search", searchHandler.HandleSearch)

	return app
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the embedded worker if configured and serves until Stop.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Worker.Embedded {
		s.startWorker(ctx)
	}

	s.logger.Info("server started", "addr", s.cfg.Server.Addr, "embedded_worker", s.cfg.Worker.Embedded)
	if err := s.app.Listen(s.cfg.Server.Addr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return err
	}
	return nil
}

func (s *Server) startWorker(ctx context.Context) {
	if s.cfg.Worker.EnqueuePending || s.cfg.Queue.Driver == "memory" {
		// A memory queue starts empty; recover documents left pending by a restart.
		if n, err := s.components.Ingest.EnqueuePending(ctx, pendingBatch); err != nil {
			s.logger.Error("failed to enqueue pending documents", "error", err, "enqueued", n)
		}
	}

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancelWorker = cancel
	runner := s.components.Runner(s.cfg, s.logger)
	s.workerDone.Add(1)
	go func() {
		defer s.workerDone.Done()
		runner.Run(workerCtx)
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if s.cancelWorker != nil {
		s.cancelWorker()
		s.workerDone.Wait()
	}
	s.logger.Info("server stopped")
	return err
}
