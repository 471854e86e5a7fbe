package domain

import "context"

// Unsubscribe removes a previously registered subscription. Safe to call
// more than once.
type Unsubscribe func()

// OrderWatcher is the transport collaborator: it owns the connection to the
// order feed and delivers decoded updates one at a time, regardless of
// whether the wire frame carried a single event or a batch.
type OrderWatcher interface {
	Start(ctx context.Context) error
	Stop()
	Subscribe(cb func(OrderUpdate)) Unsubscribe
	SubscribeConnect(cb func()) Unsubscribe
	SubscribeDisconnect(cb func()) Unsubscribe
	IsConnected() bool
}

// OrderReader is the read surface the presentation layer consumes.
// Implementations return snapshots; callers never observe in-flight mutation.
type OrderReader interface {
	IDs() []string
	Get(id string) (Order, bool)
	Len() int
}
