package processor

import (
	"context"
	"log/slog"
	"sync"
)

// Queue decouples webhook acknowledgement from message processing: the HTTP
// handler enqueues the raw payload and returns 200 immediately, workers
// drain the channel in the background.
type Queue struct {
	processor *Processor
	logger    *slog.Logger
	jobs      chan []byte
	workers   int
	wg        sync.WaitGroup
}

// NewQueue builds a queue with the given worker count and buffer size.
func NewQueue(processor *Processor, workers, size int, logger *slog.Logger) *Queue {
	if workers <= 0 {
		workers = 4
	}
	if size <= 0 {
		size = 256
	}
	return &Queue{
		processor: processor,
		logger:    logger.With("component", "queue"),
		jobs:      make(chan []byte, size),
		workers:   workers,
	}
}

// Start launches the workers. They exit when ctx is cancelled and the
// channel drains; Wait blocks until then.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Drain what is already buffered before exiting.
			for {
				select {
				case raw := <-q.jobs:
					q.processor.ProcessRaw(context.Background(), raw)
				default:
					return
				}
			}
		case raw := <-q.jobs:
			q.processor.ProcessRaw(ctx, raw)
		}
	}
}

// Enqueue hands a raw payload to the workers. Returns false when the buffer
// is full; the payload is dropped and the webhook still acknowledged, since
// the provider retries on its own schedule.
func (q *Queue) Enqueue(raw []byte) bool {
	select {
	case q.jobs <- raw:
		return true
	default:
		q.logger.Warn("work queue full, dropping payload")
		q.processor.count("queue_full")
		return false
	}
}

// Wait blocks until all workers have exited.
func (q *Queue) Wait() {
	q.wg.Wait()
}
