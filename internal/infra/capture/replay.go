package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"order_watch/internal/domain"

	"github.com/google/uuid"
)

// ReplayWatcher feeds previously captured traffic back through the same
// watcher interface the live feed uses, so the pipeline downstream of
// the transport cannot tell a replay from a live session. Replay lives
// here in the transport layer: the core never re-delivers events itself.
type ReplayWatcher struct {
	store *Store
	// Delay paces emission between events; zero replays as fast as the
	// ingest queue will absorb.
	Delay time.Duration

	mu        sync.RWMutex
	connected bool
	cancel    context.CancelFunc
	stopOnce  sync.Once
	wg        sync.WaitGroup

	subMu          sync.RWMutex
	updateSubs     map[string]func(domain.OrderUpdate)
	connectSubs    map[string]func()
	disconnectSubs map[string]func()
}

// NewReplayWatcher creates a replay source over a capture store.
func NewReplayWatcher(store *Store) *ReplayWatcher {
	return &ReplayWatcher{
		store:          store,
		updateSubs:     make(map[string]func(domain.OrderUpdate)),
		connectSubs:    make(map[string]func()),
		disconnectSubs: make(map[string]func()),
	}
}

// Start emits every captured update in recorded order, then disconnects.
func (w *ReplayWatcher) Start(ctx context.Context) error {
	updates, err := w.store.All()
	if err != nil {
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx, updates)
	}()
	return nil
}

// Stop halts an in-flight replay. Idempotent.
func (w *ReplayWatcher) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
	})
}

func (w *ReplayWatcher) run(ctx context.Context, updates []domain.OrderUpdate) {
	w.setConnected(true)
	w.notifyConnect()
	slog.Info("Replay started", slog.Int("updates", len(updates)))

	defer func() {
		w.setConnected(false)
		w.notifyDisconnect()
		slog.Info("Replay finished")
	}()

	for _, u := range updates {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.notifyUpdate(u)

		if w.Delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.Delay):
			}
		}
	}
}

// Subscribe registers a callback for replayed updates.
func (w *ReplayWatcher) Subscribe(cb func(domain.OrderUpdate)) domain.Unsubscribe {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	id := uuid.NewString()
	w.updateSubs[id] = cb
	return func() {
		w.subMu.Lock()
		defer w.subMu.Unlock()
		delete(w.updateSubs, id)
	}
}

// SubscribeConnect registers a callback fired when the replay begins.
func (w *ReplayWatcher) SubscribeConnect(cb func()) domain.Unsubscribe {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	id := uuid.NewString()
	w.connectSubs[id] = cb
	return func() {
		w.subMu.Lock()
		defer w.subMu.Unlock()
		delete(w.connectSubs, id)
	}
}

// SubscribeDisconnect registers a callback fired when the replay ends.
func (w *ReplayWatcher) SubscribeDisconnect(cb func()) domain.Unsubscribe {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	id := uuid.NewString()
	w.disconnectSubs[id] = cb
	return func() {
		w.subMu.Lock()
		defer w.subMu.Unlock()
		delete(w.disconnectSubs, id)
	}
}

// IsConnected reports whether a replay is in flight.
func (w *ReplayWatcher) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *ReplayWatcher) setConnected(c bool) {
	w.mu.Lock()
	w.connected = c
	w.mu.Unlock()
}

func (w *ReplayWatcher) notifyUpdate(u domain.OrderUpdate) {
	w.subMu.RLock()
	defer w.subMu.RUnlock()
	for _, cb := range w.updateSubs {
		cb(u)
	}
}

func (w *ReplayWatcher) notifyConnect() {
	w.subMu.RLock()
	defer w.subMu.RUnlock()
	for _, cb := range w.connectSubs {
		cb()
	}
}

func (w *ReplayWatcher) notifyDisconnect() {
	w.subMu.RLock()
	defer w.subMu.RUnlock()
	for _, cb := range w.disconnectSubs {
		cb()
	}
}

var _ domain.OrderWatcher = (*ReplayWatcher)(nil)
