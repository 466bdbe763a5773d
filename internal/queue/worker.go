// Package queue drains deferred file-upload jobs. Uploads that failed
// during an export are parked in the retry queue instead of being retried
// inline; this worker picks them up with exponential backoff so a broken
// file cannot stall an export.
package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/apphive/crm-handoff/internal/state"
)

const (
	defaultPollInterval    = 30 * time.Second
	defaultInitialInterval = 2 * time.Second
	defaultMaxTries        = 3

	// maxAttempts bounds how often a job goes back to the queue before it
	// is dropped. Each attempt already includes the in-process retries.
	maxAttempts = 5
)

// FileImporter re-runs the upload of one locally stored file.
type FileImporter interface {
	ImportFile(ctx context.Context, candidateID, fileID string) error
}

// Worker polls the retry queue and re-runs deferred file imports.
type Worker struct {
	queue    state.RetryQueue
	importer FileImporter
	logger   *slog.Logger

	pollInterval    time.Duration
	initialInterval time.Duration
	maxTries        uint
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithPollInterval sets how often an empty queue is re-checked.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.pollInterval = d
	}
}

// WithInitialInterval sets the first backoff delay between in-process tries.
func WithInitialInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.initialInterval = d
	}
}

// WithMaxTries caps the in-process tries per dequeued job.
func WithMaxTries(n uint) WorkerOption {
	return func(w *Worker) {
		w.maxTries = n
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

// NewWorker creates a retry worker draining queue through importer.
func NewWorker(queue state.RetryQueue, importer FileImporter, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:           queue,
		importer:        importer,
		logger:          slog.Default(),
		pollInterval:    defaultPollInterval,
		initialInterval: defaultInitialInterval,
		maxTries:        defaultMaxTries,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("retry worker started", "poll_interval", w.pollInterval)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.Drain(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info("retry worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Drain processes queued jobs until the queue is empty or ctx is cancelled.
// Each job is handled at most once per pass: still-failing jobs are held
// aside and re-queued only after the loop, so they wait for the next poll
// instead of being picked up again immediately.
func (w *Worker) Drain(ctx context.Context) {
	var requeue []state.RetryJob

	for ctx.Err() == nil {
		job, ok, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.logger.Error("failed to dequeue retry job", "error", err)
			break
		}
		if !ok {
			break
		}
		if failed, retry := w.process(ctx, job); retry {
			requeue = append(requeue, failed)
		}
	}

	for _, job := range requeue {
		if err := w.queue.Enqueue(ctx, job); err != nil {
			w.logger.Error("failed to re-queue job", "job", job.ID, "error", err)
		}
	}
}

// process runs one job. It returns the job with its attempt count bumped,
// and whether the caller should put it back on the queue.
func (w *Worker) process(ctx context.Context, job state.RetryJob) (state.RetryJob, bool) {
	logger := w.logger.With("job", job.ID, "kind", job.Kind,
		"candidate", job.CandidateID, "file", job.FileID, "attempt", job.Attempts+1)

	if job.Kind != state.RetryJobKindFile {
		logger.Error("dropping retry job of unknown kind")
		return job, false
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = w.initialInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, w.importer.ImportFile(ctx, job.CandidateID, job.FileID)
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(w.maxTries))
	if err == nil {
		logger.Info("deferred file import succeeded")
		return job, false
	}

	job.Attempts++
	if job.Attempts >= maxAttempts {
		logger.Error("dropping retry job after repeated failures", "error", err)
		return job, false
	}

	logger.Warn("deferred file import failed, re-queueing", "error", err)
	return job, true
}
