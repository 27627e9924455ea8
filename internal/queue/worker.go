package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/audio-library/internal/types"
)

// ErrPoolClosed is returned when submitting to a stopped pool
var ErrPoolClosed = errors.New("worker pool stopped")

// Ingester runs the upload workflow for one job
type Ingester interface {
	Transcribe(ctx context.Context, originalName string, r io.Reader) (*types.AudioRecord, error)
}

// WorkerPool manages a pool of workers processing transcription jobs
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	ingester    Ingester
	log         *zap.Logger

	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount int, ingester Ingester, log *zap.Logger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &WorkerPool{
		jobQueue:    make(chan *Job, 100),
		workerCount: workerCount,
		ingester:    ingester,
		log:         log,
	}
}

// Start initializes all workers
func (wp *WorkerPool) Start() {
	wp.log.Info("starting worker pool", zap.Int("workers", wp.workerCount))
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop lets queued jobs finish and waits for the workers to exit
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.wg.Wait()
	wp.log.Info("worker pool stopped")
}

// Submit enqueues a job and waits for it to finish. Once a worker has picked
// the job up it runs to completion even if ctx is cancelled.
func (wp *WorkerPool) Submit(ctx context.Context, job *Job) (*types.AudioRecord, error) {
	if job.done == nil {
		job.done = make(chan struct{})
	}
	job.Status = types.StatusQueued
	job.CreatedAt = time.Now()

	if err := wp.enqueue(ctx, job); err != nil {
		return nil, err
	}
	wp.log.Info("job enqueued", zap.String("source", job.SourceType), zap.String("name", job.RequestName))

	select {
	case <-job.done:
		return job.Record, job.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (wp *WorkerPool) enqueue(ctx context.Context, job *Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return ErrPoolClosed
	}
	select {
	case wp.jobQueue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		func() {
			defer close(job.done)
			defer func() {
				if r := recover(); r != nil {
					wp.log.Error("worker panic",
						zap.Int("worker", id),
						zap.String("name", job.RequestName),
						zap.Any("panic", r),
						zap.ByteString("stack", debug.Stack()))
					job.Status = types.StatusFailed
					job.Error = fmt.Errorf("worker panic: %v", r)
				}
			}()

			wp.processJob(id, job)
		}()
	}
}

// processJob runs the workflow; no retries, the caller re-submits on failure
func (wp *WorkerPool) processJob(workerID int, job *Job) {
	job.Status = types.StatusProcessing
	start := time.Now()

	rec, err := wp.ingester.Transcribe(context.Background(), job.RequestName, job.Data)
	if err != nil {
		wp.log.Warn("job failed",
			zap.Int("worker", workerID),
			zap.String("name", job.RequestName),
			zap.Error(err))
		job.Status = types.StatusFailed
		job.Error = err
		return
	}

	job.Record = rec
	job.Status = types.StatusCompleted
	wp.log.Info("job completed",
		zap.Int("worker", workerID),
		zap.String("audio_id", rec.ID),
		zap.Duration("took", time.Since(start)))
}
