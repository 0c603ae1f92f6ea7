package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/notify-engine/internal/queue"
	"github.com/hireloop/notify-engine/internal/service"
	"github.com/hireloop/notify-engine/internal/store"
)

// Pool manages the lifecycle of all dispatch workers.
// All workers share the same priority queue — the queue's double-select
// pattern handles priority ordering internally.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates size identical workers. Channel distinctions are
// handled inside the dispatch engine, not by worker specialisation.
func NewPool(
	size int,
	q *queue.PriorityQueue,
	st store.Store,
	dispatcher service.Dispatcher,
	businessCtx string,
	backoff []time.Duration,
	logger *zap.Logger,
) *Pool {
	if size <= 0 {
		size = 4
	}
	workers := make([]*Worker, size)
	for i := range workers {
		workers[i] = NewWorker(
			i, q, st, dispatcher, businessCtx, backoff,
			logger.With(zap.Int("worker_id", i)),
		)
	}
	return &Pool{workers: workers}
}

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context to ensure in-flight jobs finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
