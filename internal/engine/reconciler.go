package engine

import (
	"time"

	"order_watch/internal/domain"
)

// Action is the reconciler's verdict for one incoming update.
type Action int

const (
	// ActionCreate materializes a new order from the update.
	ActionCreate Action = iota
	// ActionApply folds the update into the existing order.
	ActionApply
	// ActionDiscard drops the update as stale. Routine, not an error.
	ActionDiscard
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionApply:
		return "apply"
	case ActionDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// Decision carries the action plus the order to store. Order is nil for
// ActionDiscard.
type Decision struct {
	Action Action
	Order  *domain.Order
}

// Reconcile decides what a single update does to the materialized state.
// It is pure: it never mutates existing, and no decision touches more
// than one order.
//
// An update older than the stored server second is a stale out-of-order
// delivery of an already-superseded state and is discarded silently.
// An equal second still applies; the newer-arriving event wins ties.
// Apply replaces only the event name, the server second, and the
// processing timestamp. Price, customer, destination, and item are fixed
// at creation.
func Reconcile(existing *domain.Order, u domain.OrderUpdate, now time.Time) Decision {
	if existing == nil || existing.Customer == "" {
		return Decision{Action: ActionCreate, Order: domain.NewOrderFromUpdate(u, now)}
	}

	if u.SentAtSecond < existing.LastServerSecond {
		return Decision{Action: ActionDiscard}
	}

	updated := *existing
	updated.LastEventName = u.EventName
	updated.LastServerSecond = u.SentAtSecond
	updated.LastUpdated = now
	return Decision{Action: ActionApply, Order: &updated}
}
