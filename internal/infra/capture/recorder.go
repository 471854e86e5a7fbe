package capture

import (
	"log/slog"

	"order_watch/internal/domain"
)

// Recorder tees the live feed into the capture store. It is a plain
// subscriber; recording failures are logged and never slow the pipeline.
type Recorder struct {
	store *Store
	unsub domain.Unsubscribe
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

// Attach subscribes the recorder to a watcher.
func (r *Recorder) Attach(w domain.OrderWatcher) {
	r.unsub = w.Subscribe(func(u domain.OrderUpdate) {
		if err := r.store.Append(u); err != nil {
			slog.Warn("Capture write failed",
				slog.String("order_id", u.ID), slog.Any("error", err))
		}
	})
}

// Detach unsubscribes from the watcher.
func (r *Recorder) Detach() {
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
}
