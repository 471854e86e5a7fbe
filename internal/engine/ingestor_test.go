package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"order_watch/internal/domain"
	"order_watch/internal/infra"
	"order_watch/internal/service"
)

func newTestIngestor(t *testing.T, cfg IngestorConfig) (*Ingestor, *service.OrderStore, *infra.Metrics) {
	t.Helper()
	store := service.NewOrderStore()
	metrics := &infra.Metrics{}
	return NewIngestor(store, metrics, cfg), store, metrics
}

func TestIngestor_TickBoundsBatchSize(t *testing.T) {
	ing, store, metrics := newTestIngestor(t, IngestorConfig{BatchSize: 10})

	// 25 queued events at batch size 10 need exactly 3 ticks.
	for i := 0; i < 25; i++ {
		ing.Enqueue(makeUpdate(fmt.Sprintf("ORD-%02d", i), 1, domain.EventCreated, 100))
	}

	ticks := 0
	for ing.QueueDepth() > 0 {
		n := ing.drainOnce()
		if n > 10 {
			t.Fatalf("Tick processed %d events, batch size is 10", n)
		}
		ticks++
	}

	if ticks != 3 {
		t.Errorf("Expected 3 ticks, got %d", ticks)
	}
	if store.Len() != 25 {
		t.Errorf("Expected 25 orders, got %d", store.Len())
	}
	if snap := metrics.Snapshot(); snap.BatchesDrained != 3 {
		t.Errorf("Expected 3 drained batches, got %d", snap.BatchesDrained)
	}
}

func TestIngestor_EmptyTickIsNoop(t *testing.T) {
	ing, _, _ := newTestIngestor(t, DefaultIngestorConfig())
	if n := ing.drainOnce(); n != 0 {
		t.Errorf("Expected no-op tick, processed %d", n)
	}
}

func TestIngestor_MalformedDroppedBeforeReconcile(t *testing.T) {
	ing, store, metrics := newTestIngestor(t, DefaultIngestorConfig())

	ing.Enqueue(domain.OrderUpdate{ID: "", Customer: "x", Item: "y", EventName: "z"})
	ing.Enqueue(domain.OrderUpdate{ID: "A", Customer: "", Item: "y", EventName: "z"})
	ing.Enqueue(makeUpdate("B", 1, domain.EventCreated, 100))

	for ing.QueueDepth() > 0 {
		ing.drainOnce()
	}

	if store.Len() != 1 {
		t.Errorf("Expected only the valid update stored, got %d orders", store.Len())
	}
	if _, ok := store.Get("A"); ok {
		t.Error("Malformed update must not create a partial order")
	}
	if snap := metrics.Snapshot(); snap.UpdatesMalformed != 2 {
		t.Errorf("Expected 2 malformed, got %d", snap.UpdatesMalformed)
	}
}

func TestIngestor_StaleDiscardCounted(t *testing.T) {
	ing, store, metrics := newTestIngestor(t, DefaultIngestorConfig())

	ing.Enqueue(makeUpdate("A", 5, domain.EventCreated, 1000))
	ing.Enqueue(makeUpdate("A", 3, domain.EventCancelled, 1000))
	ing.Enqueue(makeUpdate("A", 7, domain.EventDelivered, 1000))

	for ing.QueueDepth() > 0 {
		ing.drainOnce()
	}

	order, ok := store.Get("A")
	if !ok {
		t.Fatal("Order A should exist")
	}
	if order.LastEventName != domain.EventDelivered || order.LastServerSecond != 7 {
		t.Errorf("Expected DELIVERED@7, got %s@%d", order.LastEventName, order.LastServerSecond)
	}
	if snap := metrics.Snapshot(); snap.UpdatesDiscarded != 1 {
		t.Errorf("Expected 1 discard, got %d", snap.UpdatesDiscarded)
	}
}

func TestIngestor_OnOrdersAddedFires(t *testing.T) {
	store := service.NewOrderStore()
	fired := 0
	ing := NewIngestor(store, &infra.Metrics{}, IngestorConfig{
		BatchSize:     10,
		OnOrdersAdded: func() { fired++ },
	})

	ing.Enqueue(makeUpdate("A", 1, domain.EventCreated, 100))
	ing.Enqueue(makeUpdate("A", 2, domain.EventCooking, 100))
	ing.drainOnce()
	if fired != 1 {
		t.Errorf("Expected one notification for the tick that added A, got %d", fired)
	}

	// A tick of pure in-place updates must not notify.
	ing.Enqueue(makeUpdate("A", 3, domain.EventDriving, 100))
	ing.drainOnce()
	if fired != 1 {
		t.Errorf("In-place updates should not notify, got %d", fired)
	}
}

func TestIngestor_RunDrainsBacklog(t *testing.T) {
	ing, store, _ := newTestIngestor(t, IngestorConfig{
		BatchSize:   10,
		IdleTimeout: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ing.Start(ctx)
	defer ing.Stop()

	for i := 0; i < 95; i++ {
		ing.Enqueue(makeUpdate(fmt.Sprintf("ORD-%03d", i), 1, domain.EventCreated, 100))
	}

	deadline := time.After(3 * time.Second)
	for store.Len() < 95 {
		select {
		case <-deadline:
			t.Fatalf("Backlog never drained, store has %d orders", store.Len())
		case <-time.After(10 * time.Millisecond):
		}
	}

	if ing.QueueDepth() != 0 {
		t.Errorf("Expected empty queue, got %d", ing.QueueDepth())
	}
}

func TestIngestor_StopIsIdempotent(t *testing.T) {
	ing, _, _ := newTestIngestor(t, IngestorConfig{
		BatchSize:   10,
		IdleTimeout: 10 * time.Millisecond,
	})

	ing.Start(context.Background())
	ing.Stop()
	ing.Stop() // must not panic or hang

	// Enqueue after stop is still safe; the backlog just sits.
	ing.Enqueue(makeUpdate("A", 1, domain.EventCreated, 100))
	time.Sleep(30 * time.Millisecond)
	if ing.QueueDepth() != 1 {
		t.Errorf("No tick may run after Stop, queue depth %d", ing.QueueDepth())
	}
}
