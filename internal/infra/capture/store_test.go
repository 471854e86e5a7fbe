package capture

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"order_watch/internal/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.db")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func captured(id string, second int64) domain.OrderUpdate {
	return domain.OrderUpdate{
		ID:           id,
		Customer:     "Ada Lovelace",
		Destination:  "12 Analytical Way",
		Item:         "Margherita",
		EventName:    domain.EventCreated,
		PriceMinor:   1000,
		SentAtSecond: second,
	}
}

func TestStore_AppendAndAll(t *testing.T) {
	s := setupTestStore(t)

	for i, id := range []string{"C", "A", "B"} {
		if err := s.Append(captured(id, int64(i))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 rows, got %d", n)
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	// Recorded order, not id order.
	for i, want := range []string{"C", "A", "B"} {
		if all[i].ID != want {
			t.Errorf("Row %d: expected %s, got %s", i, want, all[i].ID)
		}
	}
	if all[0].PriceMinor != 1000 || all[0].Customer != "Ada Lovelace" {
		t.Errorf("Round-trip lost fields: %+v", all[0])
	}
}

func TestReplayWatcher_EmitsInRecordedOrder(t *testing.T) {
	s := setupTestStore(t)
	for i := 0; i < 5; i++ {
		if err := s.Append(captured("A", int64(i))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	w := NewReplayWatcher(s)

	received := make(chan int64, 8)
	done := make(chan struct{})
	w.Subscribe(func(u domain.OrderUpdate) {
		received <- u.SentAtSecond
	})
	w.SubscribeDisconnect(func() {
		close(done)
	})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Replay never finished")
	}

	for want := int64(0); want < 5; want++ {
		got := <-received
		if got != want {
			t.Fatalf("Replay out of order: expected %d, got %d", want, got)
		}
	}
}

func TestReplayWatcher_StopInterrupts(t *testing.T) {
	s := setupTestStore(t)
	for i := 0; i < 100; i++ {
		if err := s.Append(captured("A", int64(i))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	w := NewReplayWatcher(s)
	w.Delay = 10 * time.Millisecond

	first := make(chan struct{}, 1)
	w.Subscribe(func(u domain.OrderUpdate) {
		select {
		case first <- struct{}{}:
		default:
		}
	})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-first:
	case <-time.After(3 * time.Second):
		t.Fatal("Replay never started")
	}

	w.Stop()
	w.Stop() // idempotent
	if w.IsConnected() {
		t.Error("Replay should report disconnected after Stop")
	}
}
