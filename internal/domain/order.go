package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Common event names seen on the order feed.
const (
	EventCreated   = "CREATED"
	EventCooking   = "COOKING"
	EventDriving   = "DRIVING"
	EventDelivered = "DELIVERED"
	EventCancelled = "CANCELLED"
)

// OrderUpdate is a single decoded order-change event from the feed.
// PriceMinor is an integer amount in minor currency units (cents).
// SentAtSecond is the server-assigned sequence index for this order; it is
// monotonic per order, not a wall clock.
type OrderUpdate struct {
	ID           string
	Customer     string
	Destination  string
	Item         string
	EventName    string
	PriceMinor   int64
	SentAtSecond int64
}

// Validate rejects updates that must never reach the reconciler.
// A malformed update is dropped whole; no partial order is ever created.
func (u *OrderUpdate) Validate() error {
	if u.ID == "" {
		return ErrMalformedUpdate
	}
	if u.Customer == "" || u.Item == "" || u.EventName == "" {
		return ErrMalformedUpdate
	}
	if u.SentAtSecond < 0 || u.PriceMinor < 0 {
		return ErrMalformedUpdate
	}
	return nil
}

// Order is the materialized state of one order, reconciled from the
// update stream. ID is immutable; LastServerSecond never decreases.
type Order struct {
	ID               string          `json:"id"`
	Customer         string          `json:"customer"`
	Destination      string          `json:"destination"`
	Item             string          `json:"item"`
	Price            decimal.Decimal `json:"price"`
	LastEventName    string          `json:"last_event_name"`
	LastServerSecond int64           `json:"last_server_second"`
	LastUpdated      time.Time       `json:"last_updated"`
}

// NewOrderFromUpdate materializes a fresh order. The price is fixed here
// from minor units and is never recomputed from later updates.
func NewOrderFromUpdate(u OrderUpdate, now time.Time) *Order {
	return &Order{
		ID:               u.ID,
		Customer:         u.Customer,
		Destination:      u.Destination,
		Item:             u.Item,
		Price:            decimal.NewFromInt(u.PriceMinor).Div(decimal.NewFromInt(100)).Round(2),
		LastEventName:    u.EventName,
		LastServerSecond: u.SentAtSecond,
		LastUpdated:      now,
	}
}

// PriceString renders the price with exactly two decimal places, the form
// the fuzzy price filter matches against.
func (o *Order) PriceString() string {
	return o.Price.StringFixed(2)
}
