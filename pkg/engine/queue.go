package engine

import (
	"context"
	"sync"

	"opensentinel/pkg/logger"
)

// Queue bounds the number of scans executing at once with a simple
// semaphore. Scans past the limit wait in Queued status.
type Queue struct {
	semaphore chan struct{}
	running   int
	queued    int
	mu        sync.Mutex
	log       *logger.Logger
}

func NewQueue(maxConcurrent int, log *logger.Logger) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if log == nil {
		log = logger.Default()
	}
	return &Queue{
		semaphore: make(chan struct{}, maxConcurrent),
		log:       log,
	}
}

// Execute blocks until a slot is free, then runs fn. A cancelled ctx
// while waiting returns ctx.Err without running fn.
func (q *Queue) Execute(ctx context.Context, fn func() error) error {
	q.mu.Lock()
	q.queued++
	q.mu.Unlock()

	select {
	case q.semaphore <- struct{}{}:
	case <-ctx.Done():
		q.mu.Lock()
		q.queued--
		q.mu.Unlock()
		return ctx.Err()
	}

	q.mu.Lock()
	q.queued--
	q.running++
	running, queued := q.running, q.queued
	q.mu.Unlock()

	q.log.WithFields(logger.Fields{
		"running": running,
		"queued":  queued,
		"slots":   cap(q.semaphore),
	}).Debug("Scan slot acquired")

	defer func() {
		<-q.semaphore
		q.mu.Lock()
		q.running--
		q.mu.Unlock()
	}()

	return fn()
}

// Status returns the current running and queued counts plus the slot cap.
func (q *Queue) Status() (running, queued, maxConcurrent int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running, q.queued, cap(q.semaphore)
}
