package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/explorer/internal/domain"
	"github.com/persistorai/explorer/internal/metrics"
	"github.com/persistorai/explorer/internal/models"
)

// RefreshJob is a queued request to refresh one product.
type RefreshJob struct {
	Product string
	Options domain.RefreshOptions
}

// RefreshWorker runs product refreshes requested over the API in the
// background, retrying failures other than configuration errors.
type RefreshWorker struct {
	refresher   Refresher
	log         *logrus.Logger
	jobs        chan RefreshJob
	concurrency int
	retryDelay  time.Duration

	mu      sync.Mutex
	pending map[string]bool
}

// NewRefreshWorker creates a worker with the given queue capacity and concurrency.
func NewRefreshWorker(refresher Refresher, log *logrus.Logger, queueSize, concurrency int) *RefreshWorker {
	if queueSize <= 0 {
		queueSize = 100
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	return &RefreshWorker{
		refresher:   refresher,
		log:         log,
		jobs:        make(chan RefreshJob, queueSize),
		concurrency: concurrency,
		retryDelay:  baseRetryDelay,
		pending:     map[string]bool{},
	}
}

// Enqueue queues a refresh. Non-blocking; it reports false when the queue
// is full or the product already has a refresh waiting.
func (w *RefreshWorker) Enqueue(job RefreshJob) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending[job.Product] {
		return false
	}

	select {
	case w.jobs <- job:
		w.pending[job.Product] = true
		metrics.RefreshQueueDepth.Set(float64(len(w.jobs)))

		return true
	default:
		w.log.WithField("product", job.Product).Warn("refresh queue full, dropping job")

		return false
	}
}

// Run spawns the worker goroutines and blocks until the context is
// cancelled and all workers have stopped. Call in a goroutine.
func (w *RefreshWorker) Run(ctx context.Context) {
	var wg sync.WaitGroup

	w.log.WithField("concurrency", w.concurrency).Info("starting refresh workers")

	for i := range w.concurrency {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.runWorker(ctx, id)
		}(i)
	}

	wg.Wait()
	w.log.Info("all refresh workers stopped")
}

func (w *RefreshWorker) runWorker(ctx context.Context, id int) {
	w.log.WithField("worker_id", id).Debug("refresh worker started")
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			w.mu.Lock()
			delete(w.pending, job.Product)
			metrics.RefreshQueueDepth.Set(float64(len(w.jobs)))
			w.mu.Unlock()

			w.processWithRetry(ctx, job)
		}
	}
}

const (
	maxRetries     = 3
	baseRetryDelay = 5 * time.Second
)

func (w *RefreshWorker) processWithRetry(ctx context.Context, job RefreshJob) {
	for attempt := range maxRetries {
		if ctx.Err() != nil {
			return
		}

		kind, _, err := w.refresher.Refresh(ctx, job.Product, job.Options)
		if err == nil || kind == models.ResultUnsupported {
			return
		}

		w.log.WithError(err).WithFields(logrus.Fields{
			"product": job.Product,
			"attempt": attempt + 1,
		}).Warn("refresh attempt failed")

		if attempt < maxRetries-1 {
			delay := w.retryDelay * (1 << attempt)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}

	w.log.WithField("product", job.Product).Error("refresh failed after all retries")
}
