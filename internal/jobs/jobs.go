// Package jobs is the in-process queue feeding uploaded assets to the
// processing pipeline.
//
// The queue gives each asset a fixed retry budget. Retries are only
// meaningful because the pipeline guarantees a terminal state per attempt: a
// retried asset is re-claimed from failed, never from a half-processed limbo.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hls-vault/internal/logging"
	"hls-vault/internal/metrics"
)

// Processor runs one asset to a terminal state.
type Processor interface {
	Process(ctx context.Context, assetID string) error
}

// Queue dispatches asset processing jobs to a fixed worker pool.
type Queue struct {
	processor  Processor
	jobs       chan job
	workers    int
	tries      int
	retryDelay time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

type job struct {
	assetID string
	attempt int
}

const defaultQueueDepth = 100

// NewQueue creates a queue with the given worker count and per-asset attempt
// budget.
func NewQueue(processor Processor, workers, tries int, retryDelay time.Duration) *Queue {
	if workers < 1 {
		workers = 1
	}
	if tries < 1 {
		tries = 1
	}
	return &Queue{
		processor:  processor,
		jobs:       make(chan job, defaultQueueDepth),
		workers:    workers,
		tries:      tries,
		retryDelay: retryDelay,
	}
}

// Start launches the worker pool.
func (q *Queue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	logging.Info("job queue started: %d workers, %d tries per asset", q.workers, q.tries)
}

// Stop drains nothing: queued jobs are abandoned, running jobs are cancelled.
// The pipeline's terminal-state guarantee marks interrupted assets failed, so
// they are visible for reprocessing after a restart.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	close(q.jobs)
	q.wg.Wait()
	logging.Info("job queue stopped")
}

// Enqueue submits an asset for processing. Fails when the queue is stopped or
// full rather than blocking an HTTP handler.
func (q *Queue) Enqueue(assetID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("queue is stopped")
	}

	select {
	case q.jobs <- job{assetID: assetID, attempt: 1}:
		metrics.JobsEnqueuedTotal.Inc()
		metrics.JobQueueDepth.Set(float64(len(q.jobs)))
		return nil
	default:
		return fmt.Errorf("queue is full")
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for j := range q.jobs {
		metrics.JobQueueDepth.Set(float64(len(q.jobs)))
		if ctx.Err() != nil {
			continue
		}
		q.process(ctx, j)
	}
}

func (q *Queue) process(ctx context.Context, j job) {
	err := q.processor.Process(ctx, j.assetID)
	if err == nil {
		return
	}

	if j.attempt >= q.tries {
		logging.Error("asset %s: giving up after %d attempts: %v", j.assetID, j.attempt, err)
		return
	}

	logging.Warn("asset %s: attempt %d/%d failed, retrying: %v", j.assetID, j.attempt, q.tries, err)
	metrics.JobRetriesTotal.Inc()

	select {
	case <-time.After(q.retryDelay):
	case <-ctx.Done():
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.jobs <- job{assetID: j.assetID, attempt: j.attempt + 1}:
	default:
		logging.Error("asset %s: queue full, dropping retry", j.assetID)
	}
}
