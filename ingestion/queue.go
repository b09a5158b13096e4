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
	"sync"

	"github.com/poiesic/docqa/core"
)

// DefaultQueueCapacity bounds how many uploads may wait for processing.
const DefaultQueueCapacity = 100

// Job describes one staged upload awaiting processing.
type Job struct {
	DocumentId  core.ID
	UserId      string
	FilePath    string
	ContentType string
}

// Queue is a bounded FIFO connecting the upload path to the worker.
// Enqueue blocks when the queue is full, which applies backpressure to
// uploaders instead of growing memory without bound.
type Queue struct {
	jobs      chan Job
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a queue with the given capacity.
// A capacity below 1 falls back to DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		jobs: make(chan Job, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue adds a job, blocking until space is available or ctx is done.
// Returns ErrQueueClosed after Close.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.jobs <- job:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue returns the receive side of the queue. The jobs channel itself is
// never closed; consumers should also watch Done to learn about shutdown.
func (q *Queue) Dequeue() <-chan Job {
	return q.jobs
}

// Done is closed when the queue stops accepting jobs.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Len reports how many jobs are currently waiting.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Close stops accepting new jobs. Jobs already queued remain readable
// until drained.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}
