package event

import (
	"sync"

	"order_watch/internal/domain"
)

// updatePool recycles OrderUpdate allocations across feed bursts to keep
// GC pressure off the ingest hotpath.
//
// Usage:
//
//	u := AcquireUpdate()
//	*u = decoded
//	// ... queue, reconcile ...
//	ReleaseUpdate(u) // return to pool once fully processed
var updatePool = sync.Pool{
	New: func() interface{} {
		return &domain.OrderUpdate{}
	},
}

// AcquireUpdate gets an OrderUpdate from the pool.
// The returned update has zero values and must be initialized.
func AcquireUpdate() *domain.OrderUpdate {
	return updatePool.Get().(*domain.OrderUpdate)
}

// ReleaseUpdate returns an OrderUpdate to the pool.
// The update is reset to zero values before being pooled.
func ReleaseUpdate(u *domain.OrderUpdate) {
	if u == nil {
		return
	}
	*u = domain.OrderUpdate{}
	updatePool.Put(u)
}

// Warmup pre-allocates update objects to reduce GC pressure at startup.
func Warmup() {
	const batchSize = 1000

	updates := make([]*domain.OrderUpdate, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		updates = append(updates, AcquireUpdate())
	}
	for _, u := range updates {
		ReleaseUpdate(u)
	}
}
