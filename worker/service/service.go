package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"neuralsearch/queue"
	"neuralsearch/types"

	"golang.org/x/time/rate"
)

// Processor handles one job. See service.EmbeddingWorker.
type Processor interface {
	Process(ctx context.Context, job queue.Job) error
}

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	// RateLimit caps jobs per second across all goroutines; zero means unlimited.
	RateLimit       float64
	ShutdownTimeout time.Duration
}

// Service pulls jobs from the queue and hands them to the processor.
type Service struct {
	logger    *slog.Logger
	consumer  queue.Consumer
	processor Processor
	limiter   *rate.Limiter
	cfg       Config
}

func New(consumer queue.Consumer, processor Processor, cfg Config, logger *slog.Logger) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &Service{
		logger:    logger.With("component", "worker"),
		consumer:  consumer,
		processor: processor,
		limiter:   rate.NewLimiter(limit, 1),
		cfg:       cfg,
	}
}

// Run blocks until ctx is cancelled, then waits for in-flight jobs up to
// the shutdown timeout.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	s.logger.Info("worker started", "concurrency", s.cfg.Concurrency)

	// In-flight jobs finish on their own context so shutdown does not
	// abort a half-done embedding.
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	for i := 0; i < s.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.loop(ctx, jobCtx, n)
		}(i)
	}

	<-ctx.Done()
	s.logger.Info("shutting down worker gracefully...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all worker goroutines stopped")
	case <-time.After(s.cfg.ShutdownTimeout):
		s.logger.Warn("timeout waiting for worker goroutines, cancelling in-flight jobs")
		cancelJobs()
		<-done
	}
}

func (s *Service) loop(ctx, jobCtx context.Context, n int) {
	log := s.logger.With("goroutine", n)
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		delivery, err := s.consumer.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, queue.ErrNoJob) {
				log.Error("failed to receive job", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.PollInterval):
			}
			continue
		}

		s.Handle(jobCtx, delivery)
	}
}

// Handle processes one delivery and settles it: ack on success, fail on
// permanent errors, retry otherwise.
func (s *Service) Handle(ctx context.Context, d queue.Delivery) {
	job := d.Job()
	log := s.logger.With("job_id", job.ID, "document_id", job.DocumentID, "attempt", job.Attempt)
	start := time.Now()

	err := s.processor.Process(ctx, job)
	switch {
	case err == nil:
		if ackErr := d.Ack(ctx); ackErr != nil {
			log.Error("failed to ack job", "error", ackErr)
		}
		log.Debug("job done", "took", time.Since(start))
	case errors.Is(err, types.ErrEmbeddingFailed):
		log.Error("job failed permanently", "error", err)
		if failErr := d.Fail(ctx, err); failErr != nil {
			log.Error("failed to mark job failed", "error", failErr)
		}
	default:
		log.Warn("job failed, scheduling retry", "error", err)
		if retryErr := d.Retry(ctx, err); retryErr != nil {
			log.Error("failed to schedule retry", "error", retryErr)
		}
	}
}
