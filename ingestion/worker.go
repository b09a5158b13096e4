// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Worker drains the ingestion queue and processes each job through the
// pipeline. Jobs run on an ants pool; a failed or panicking job is isolated
// to its own document and never stops the worker.
type Worker struct {
	pipeline *Pipeline
	pool     *ants.Pool
	logger   *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker) error

// WithConcurrency sets the number of documents processed at once.
// Default is 1, which preserves strict queue order.
func WithConcurrency(size int) WorkerOption {
	return func(w *Worker) error {
		if size < 1 {
			size = 1
		}
		if w.pool != nil {
			w.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		w.pool = pool
		return nil
	}
}

// WithWorkerLogger sets a custom logger.
// Default is slog.Default().
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewWorker creates a worker for the pipeline's queue.
func NewWorker(pipeline *Pipeline, opts ...WorkerOption) (*Worker, error) {
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}

	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		pipeline: pipeline,
		pool:     pool,
		logger:   slog.Default().With("component", "ingestion-worker"),
	}

	for _, opt := range opts {
		if err := opt(w); err != nil {
			w.pool.Release()
			return nil, err
		}
	}

	return w, nil
}

// Run processes jobs until ctx is cancelled or the queue is closed and
// drained. It blocks and is meant to be started on its own goroutine.
func (w *Worker) Run(ctx context.Context) error {
	queue := w.pipeline.Queue()
	w.logger.Info("ingestion worker started")

	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		w.logger.Info("ingestion worker stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-queue.Dequeue():
			w.submit(ctx, &wg, job)
		case <-queue.Done():
			// Drain what is already queued, then stop.
			for {
				select {
				case job := <-queue.Dequeue():
					w.submit(ctx, &wg, job)
				default:
					return nil
				}
			}
		}
	}
}

// submit hands a job to the pool, blocking while the pool is saturated.
// Errors are already recorded on the document by the pipeline.
func (w *Worker) submit(ctx context.Context, wg *sync.WaitGroup, job Job) {
	wg.Add(1)
	err := w.pool.Submit(func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("panic while processing document",
					"document_id", job.DocumentId,
					"panic", r)
			}
		}()
		// Errors are logged and persisted by the pipeline.
		_ = w.pipeline.ProcessDocument(ctx, job)
	})
	if err != nil {
		wg.Done()
		w.logger.Error("failed to submit job", "document_id", job.DocumentId, "err", err)
	}
}

// Release frees the worker pool. Call after Run returns.
func (w *Worker) Release() {
	w.pool.Release()
}
