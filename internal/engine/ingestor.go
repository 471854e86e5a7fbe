package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"order_watch/internal/domain"
	"order_watch/internal/event"
	"order_watch/internal/infra"
	"order_watch/internal/service"
)

// IngestorConfig holds the drain loop tunables.
type IngestorConfig struct {
	// BatchSize is the maximum number of updates reconciled per tick.
	BatchSize int
	// IdleTimeout is how long the loop waits for a wakeup before
	// forcing a tick anyway.
	IdleTimeout time.Duration
	// OnOrdersAdded fires after any tick that materialized new orders,
	// so derived views can recompute.
	OnOrdersAdded func()
}

// DefaultIngestorConfig returns the stock tunables.
func DefaultIngestorConfig() IngestorConfig {
	return IngestorConfig{
		BatchSize:   infra.DefaultBatchSize,
		IdleTimeout: time.Duration(infra.DefaultIdleTimeoutMS) * time.Millisecond,
	}
}

// Ingestor owns the ingest pipeline: the FIFO queue absorbing feed
// bursts and the single drain goroutine that reconciles them into the
// store in bounded batches.
//
// Enqueue is safe from any goroutine and never blocks. All store
// mutation happens on the drain goroutine, one update at a time, so the
// read-reconcile-write step for an order id is never interleaved with
// another write (single-writer discipline).
type Ingestor struct {
	queue   *Queue
	store   *service.OrderStore
	metrics *infra.Metrics
	cfg     IngestorConfig

	notify   chan struct{}
	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewIngestor creates the pipeline. A nil store cannot make progress and
// is a construction-time precondition violation.
func NewIngestor(store *service.OrderStore, metrics *infra.Metrics, cfg IngestorConfig) *Ingestor {
	if store == nil {
		panic("engine: NewIngestor requires a store")
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = infra.DefaultBatchSize
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Duration(infra.DefaultIdleTimeoutMS) * time.Millisecond
	}
	return &Ingestor{
		queue:   NewQueue(),
		store:   store,
		metrics: metrics,
		cfg:     cfg,
		notify:  make(chan struct{}, 1),
	}
}

// Enqueue accepts one decoded update from the transport. Malformed
// updates are counted and dropped here; nothing partial ever reaches the
// reconciler or the store.
func (ing *Ingestor) Enqueue(u domain.OrderUpdate) {
	if err := u.Validate(); err != nil {
		ing.metrics.RecordMalformed()
		slog.Debug("Dropping malformed update", slog.String("id", u.ID))
		return
	}

	item := event.AcquireUpdate()
	*item = u
	ing.queue.Push(item)
	ing.metrics.RecordIngested()
	ing.metrics.SetQueueDepth(ing.queue.Len())
	ing.wake()
}

// QueueDepth returns the current backlog.
func (ing *Ingestor) QueueDepth() int {
	return ing.queue.Len()
}

// Start launches the drain goroutine.
func (ing *Ingestor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	ing.cancel = cancel
	ing.wg.Add(1)
	go func() {
		defer ing.wg.Done()
		ing.run(runCtx)
	}()
}

// Stop cancels the drain loop and waits for it to exit. Idempotent; no
// tick runs after Stop returns. Updates already reconciled stay applied.
func (ing *Ingestor) Stop() {
	ing.stopOnce.Do(func() {
		if ing.cancel != nil {
			ing.cancel()
		}
		ing.wg.Wait()
	})
}

func (ing *Ingestor) run(ctx context.Context) {
	slog.Info("Ingestor started (single-writer drain loop)",
		slog.Int("batch_size", ing.cfg.BatchSize),
		slog.Duration("idle_timeout", ing.cfg.IdleTimeout))

	timer := time.NewTimer(ing.cfg.IdleTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Ingestor stopping", slog.Int("backlog", ing.queue.Len()))
			return
		case <-ing.notify:
		case <-timer.C:
		}

		if n := ing.drainOnce(); n > 0 && ing.queue.Len() > 0 {
			// Backlog remains: re-arm for another tick instead of
			// draining in one pass, so a burst of 100k updates is spread
			// across ticks and never wedges the scheduler.
			ing.wake()
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(ing.cfg.IdleTimeout)
	}
}

// drainOnce performs one tick: it dequeues at most BatchSize updates and
// reconciles them in arrival order. Returns the number processed.
func (ing *Ingestor) drainOnce() int {
	batch := ing.queue.Drain(ing.cfg.BatchSize)
	if len(batch) == 0 {
		return 0
	}

	created := 0
	for _, item := range batch {
		if ing.applyUpdate(*item) {
			created++
		}
		event.ReleaseUpdate(item)
	}

	ing.metrics.RecordBatch()
	ing.metrics.SetQueueDepth(ing.queue.Len())

	if created > 0 && ing.cfg.OnOrdersAdded != nil {
		ing.cfg.OnOrdersAdded()
	}
	return len(batch)
}

// applyUpdate reconciles one update against the store. Reports whether a
// new order was materialized.
func (ing *Ingestor) applyUpdate(u domain.OrderUpdate) bool {
	start := time.Now()

	var existing *domain.Order
	if cur, ok := ing.store.Get(u.ID); ok {
		existing = &cur
	}

	decision := Reconcile(existing, u, start)
	switch decision.Action {
	case ActionCreate:
		ing.store.Add(decision.Order)
		ing.metrics.RecordCreated(time.Since(start).Nanoseconds())
		return true
	case ActionApply:
		ing.store.Update(decision.Order)
		ing.metrics.RecordApplied(time.Since(start).Nanoseconds())
	case ActionDiscard:
		// Expected under at-least-once, reordered delivery. Silent.
		ing.metrics.RecordDiscarded()
	}
	return false
}

func (ing *Ingestor) wake() {
	select {
	case ing.notify <- struct{}{}:
	default:
	}
}
