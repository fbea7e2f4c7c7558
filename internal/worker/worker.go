// Package worker delivers order confirmation mail off the request path.
// Pay enqueues a job and returns; a fixed pool of goroutines sends it,
// retrying transient failures with backoff.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/telemetry"
)

// ErrQueueFull is returned by SendOrderConfirmation when no slot is free.
var ErrQueueFull = errors.New("worker: mail queue full")

// ErrStopped is returned once the worker has shut down.
var ErrStopped = errors.New("worker: stopped")

// Sender delivers one confirmation. email.Service implements it.
type Sender interface {
	SendOrderConfirmation(ctx context.Context, o *domain.Order, receipt []byte) error
}

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance in logs
	WorkerID string

	// MaxConcurrency is the maximum number of mails sent at once
	MaxConcurrency int

	// QueueSize bounds the number of pending mails
	QueueSize int

	// MaxAttempts per mail, including the first
	MaxAttempts int

	// RetryBackoff is the wait before the second attempt; it doubles after
	RetryBackoff time.Duration

	// JobTimeout bounds a single send attempt
	JobTimeout time.Duration
}

// Job is one queued confirmation.
type Job struct {
	ID      string
	Order   *domain.Order
	Receipt []byte
	Attempt int
}

// Worker processes confirmation mail jobs
type Worker struct {
	config Config
	sender Sender
	logger *slog.Logger

	jobs chan Job

	mu      sync.RWMutex
	stopped bool
}

// NewWorker creates a new mail worker. Call Start to begin delivery.
func NewWorker(sender Sender, config Config, logger *slog.Logger) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 2
	}
	if config.QueueSize == 0 {
		config.QueueSize = 100
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 3
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = 2 * time.Second
	}
	if config.JobTimeout == 0 {
		config.JobTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		config: config,
		sender: sender,
		logger: logger,
		jobs:   make(chan Job, config.QueueSize),
	}
}

// SendOrderConfirmation queues the confirmation and returns immediately.
func (w *Worker) SendOrderConfirmation(_ context.Context, o *domain.Order, receipt []byte) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}

	job := Job{ID: uuid.NewString(), Order: o, Receipt: receipt, Attempt: 1}
	select {
	case w.jobs <- job:
		w.logger.Debug("confirmation queued", "job_id", job.ID, "order_id", o.OrderID)
		return nil
	default:
		return ErrQueueFull
	}
}

// Start processes jobs until ctx is cancelled, then drains the queue
// before returning.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"worker_id", w.config.WorkerID,
		"queue_size", w.config.QueueSize,
		"max_concurrency", w.config.MaxConcurrency,
	)

	var wg sync.WaitGroup
	for range w.config.MaxConcurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range w.jobs {
				w.process(ctx, job)
			}
		}()
	}

	<-ctx.Done()
	w.logger.Info("worker shutting down", "worker_id", w.config.WorkerID, "pending", len(w.jobs))

	w.mu.Lock()
	w.stopped = true
	close(w.jobs)
	w.mu.Unlock()

	wg.Wait()
	return ctx.Err()
}

// process sends one job, retrying until it succeeds or attempts run out.
// After ctx is cancelled remaining jobs get a single attempt on a fresh
// context so queued mail is not silently dropped at shutdown.
func (w *Worker) process(ctx context.Context, job Job) {
	for {
		err := w.attempt(ctx, job)
		if err == nil {
			w.logger.Info("confirmation sent",
				"job_id", job.ID,
				"order_id", job.Order.OrderID,
				"attempt", job.Attempt,
			)
			return
		}

		w.logger.Warn("confirmation attempt failed",
			"job_id", job.ID,
			"order_id", job.Order.OrderID,
			"attempt", job.Attempt,
			"error", err,
		)

		if job.Attempt >= w.config.MaxAttempts || ctx.Err() != nil {
			w.logger.Error("confirmation abandoned",
				"job_id", job.ID,
				"order_id", job.Order.OrderID,
				"attempts", job.Attempt,
				"error", err,
			)
			telemetry.CaptureError(ctx, err, map[string]any{
				"job_id":   job.ID,
				"order_id": job.Order.OrderID,
			})
			return
		}

		backoff := w.config.RetryBackoff << (job.Attempt - 1)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
		}
		job.Attempt++
	}
}

func (w *Worker) attempt(ctx context.Context, job Job) error {
	parent := ctx
	if ctx.Err() != nil {
		parent = context.WithoutCancel(ctx)
	}
	jobCtx, cancel := context.WithTimeout(parent, w.config.JobTimeout)
	defer cancel()

	return w.sender.SendOrderConfirmation(jobCtx, job.Order, job.Receipt)
}
