package engine

import (
	"testing"
	"time"

	"order_watch/internal/domain"
)

func makeUpdate(id string, second int64, eventName string, priceMinor int64) domain.OrderUpdate {
	return domain.OrderUpdate{
		ID:           id,
		Customer:     "Ada Lovelace",
		Destination:  "12 Analytical Way",
		Item:         "Margherita",
		EventName:    eventName,
		PriceMinor:   priceMinor,
		SentAtSecond: second,
	}
}

func TestReconcile_CreateWhenUnknown(t *testing.T) {
	now := time.Now()
	u := makeUpdate("A", 5, domain.EventCreated, 1000)

	d := Reconcile(nil, u, now)
	if d.Action != ActionCreate {
		t.Fatalf("Expected create, got %s", d.Action)
	}
	if d.Order == nil {
		t.Fatal("Create decision must carry an order")
	}
	if d.Order.PriceString() != "10.00" {
		t.Errorf("Expected price 10.00, got %s", d.Order.PriceString())
	}
	if d.Order.LastServerSecond != 5 {
		t.Errorf("Expected server second 5, got %d", d.Order.LastServerSecond)
	}
	if !d.Order.LastUpdated.Equal(now) {
		t.Error("LastUpdated should be the processing time")
	}
}

func TestReconcile_CreateWhenPlaceholder(t *testing.T) {
	// An order shell without a customer means "not yet materialized".
	placeholder := &domain.Order{ID: "A"}
	u := makeUpdate("A", 3, domain.EventCreated, 500)

	d := Reconcile(placeholder, u, time.Now())
	if d.Action != ActionCreate {
		t.Fatalf("Expected create for placeholder, got %s", d.Action)
	}
}

func TestReconcile_DiscardStale(t *testing.T) {
	now := time.Now()
	existing := domain.NewOrderFromUpdate(makeUpdate("A", 5, domain.EventCooking, 1000), now)

	u := makeUpdate("A", 3, domain.EventCancelled, 9999)
	d := Reconcile(existing, u, now.Add(time.Second))

	if d.Action != ActionDiscard {
		t.Fatalf("Expected discard, got %s", d.Action)
	}
	if d.Order != nil {
		t.Error("Discard must not carry an order")
	}

	// The existing order must be untouched, fields and timestamp alike.
	if existing.LastEventName != domain.EventCooking {
		t.Error("Discard mutated the event name")
	}
	if existing.LastServerSecond != 5 {
		t.Error("Discard mutated the server second")
	}
	if !existing.LastUpdated.Equal(now) {
		t.Error("Discard mutated LastUpdated")
	}
}

func TestReconcile_ApplyNewer(t *testing.T) {
	now := time.Now()
	existing := domain.NewOrderFromUpdate(makeUpdate("A", 5, domain.EventCooking, 1000), now)

	later := now.Add(2 * time.Second)
	u := makeUpdate("A", 7, domain.EventDelivered, 2222)
	d := Reconcile(existing, u, later)

	if d.Action != ActionApply {
		t.Fatalf("Expected apply, got %s", d.Action)
	}
	if d.Order.LastEventName != domain.EventDelivered {
		t.Errorf("Expected DELIVERED, got %s", d.Order.LastEventName)
	}
	if d.Order.LastServerSecond != 7 {
		t.Errorf("Expected server second 7, got %d", d.Order.LastServerSecond)
	}
	if !d.Order.LastUpdated.Equal(later) {
		t.Error("Apply should stamp the processing time")
	}

	// Price is fixed at creation; later minor-unit values are discarded.
	if d.Order.PriceString() != "10.00" {
		t.Errorf("Price changed after creation: %s", d.Order.PriceString())
	}
	if d.Order.Customer != existing.Customer || d.Order.Item != existing.Item {
		t.Error("Apply must not touch identity fields")
	}
}

func TestReconcile_EqualSecondApplies(t *testing.T) {
	// Ties favor the newer-arriving event.
	now := time.Now()
	existing := domain.NewOrderFromUpdate(makeUpdate("A", 5, domain.EventCooking, 1000), now)

	u := makeUpdate("A", 5, domain.EventDriving, 1000)
	d := Reconcile(existing, u, now)

	if d.Action != ActionApply {
		t.Fatalf("Expected apply on equal second, got %s", d.Action)
	}
	if d.Order.LastEventName != domain.EventDriving {
		t.Errorf("Expected DRIVING, got %s", d.Order.LastEventName)
	}
}

func TestReconcile_ReorderedScenario(t *testing.T) {
	// Events arrive 5, 3, 7: the middle one is stale and must vanish.
	now := time.Now()

	var current *domain.Order
	apply := func(u domain.OrderUpdate) {
		d := Reconcile(current, u, now)
		if d.Action != ActionDiscard {
			current = d.Order
		}
	}

	apply(makeUpdate("A", 5, domain.EventCreated, 1000))
	apply(makeUpdate("A", 3, domain.EventCancelled, 1000))
	apply(makeUpdate("A", 7, domain.EventDelivered, 1000))

	if current.LastEventName != domain.EventDelivered {
		t.Errorf("Expected DELIVERED, got %s", current.LastEventName)
	}
	if current.LastServerSecond != 7 {
		t.Errorf("Expected server second 7, got %d", current.LastServerSecond)
	}
	if current.PriceString() != "10.00" {
		t.Errorf("Expected price 10.00, got %s", current.PriceString())
	}
}

func TestReconcile_MonotoneUnderAnyInterleaving(t *testing.T) {
	// Whatever the delivery order, the final server second is the max seen.
	orderings := [][]int64{
		{1, 2, 3, 4, 5},
		{5, 4, 3, 2, 1},
		{3, 1, 5, 2, 4},
		{2, 2, 1, 5, 5},
	}

	for _, seconds := range orderings {
		var current *domain.Order
		var max int64
		for _, s := range seconds {
			if s > max {
				max = s
			}
			d := Reconcile(current, makeUpdate("A", s, domain.EventCooking, 700), time.Now())
			if d.Action != ActionDiscard {
				current = d.Order
			}
		}
		if current.LastServerSecond != max {
			t.Errorf("Ordering %v: expected final second %d, got %d",
				seconds, max, current.LastServerSecond)
		}
	}
}
