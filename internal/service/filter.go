package service

import (
	"strings"
	"sync"

	"order_watch/internal/domain"
)

// DefaultFilterCacheSize bounds the per-view match cache.
const DefaultFilterCacheSize = 4096

// SanitizeFilterTerm trims whitespace and strips a single leading
// currency sigil so "$12.3" and "12.3" filter identically.
func SanitizeFilterTerm(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "$") {
		s = s[1:]
	}
	return s
}

// MatchPricePrefix reports whether every character of term equals the
// character at the same index of the formatted price string. An empty
// term is handled by the view's short-circuit, not here.
func MatchPricePrefix(term, priceString string) bool {
	for i := 0; i < len(term); i++ {
		if i >= len(priceString) || term[i] != priceString[i] {
			return false
		}
	}
	return true
}

// matchCache memoizes predicate results per order id for one filter term.
// The whole cache is discarded when the term changes; no per-entry
// invalidation, so a result from an old term can never leak into a new
// one. Capacity is fixed; at capacity the cache is reset wholesale.
type matchCache struct {
	term    string
	cap     int
	entries map[string]bool
}

func newMatchCache(capacity int) *matchCache {
	if capacity <= 0 {
		capacity = DefaultFilterCacheSize
	}
	return &matchCache{
		cap:     capacity,
		entries: make(map[string]bool),
	}
}

func (c *matchCache) get(id string) (bool, bool) {
	m, ok := c.entries[id]
	return m, ok
}

func (c *matchCache) put(id string, matched bool) {
	if len(c.entries) >= c.cap {
		if _, exists := c.entries[id]; !exists {
			c.entries = make(map[string]bool, c.cap)
		}
	}
	c.entries[id] = matched
}

func (c *matchCache) reset(term string) {
	c.term = term
	c.entries = make(map[string]bool)
}

// FilterView derives the visible id list from the order store and the
// active filter term. Each view owns its cache, so independent views can
// filter the same store without sharing state.
//
// The view recomputes when the term changes or when the store gains an
// id; in-place updates to an already-materialized order do not trigger a
// recompute (the matched price is fixed at creation).
type FilterView struct {
	store *OrderStore

	mu           sync.RWMutex
	rawTerm      string
	term         string
	cache        *matchCache
	visible      []string
	storeVersion uint64
	computed     bool
}

// NewFilterView creates a view over store with a bounded match cache.
func NewFilterView(store *OrderStore, cacheSize int) *FilterView {
	return &FilterView{
		store: store,
		cache: newMatchCache(cacheSize),
	}
}

// SetTerm records the raw filter input and recomputes if the sanitized
// term changed.
func (v *FilterView) SetTerm(raw string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.rawTerm = raw
	term := SanitizeFilterTerm(raw)
	if term == v.term && v.computed {
		return
	}
	v.term = term
	v.recomputeLocked()
}

// Term returns the sanitized term currently in effect.
func (v *FilterView) Term() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.term
}

// Refresh recomputes the visible list if the store changed since the
// last computation. Cheap when nothing changed.
func (v *FilterView) Refresh() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.computed && v.storeVersion == v.store.Version() {
		return
	}
	v.recomputeLocked()
}

// VisibleIDs returns a copy of the currently visible id list.
func (v *FilterView) VisibleIDs() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	ids := make([]string, len(v.visible))
	copy(ids, v.visible)
	return ids
}

// recomputeLocked rebuilds the visible list. Caller holds v.mu.
func (v *FilterView) recomputeLocked() {
	v.storeVersion = v.store.Version()
	ids := v.store.IDs()
	v.computed = true

	if v.term == "" {
		v.visible = ids
		return
	}

	// Stale cache from a previous term is discarded wholesale.
	if v.cache.term != v.term {
		v.cache.reset(v.term)
	}

	visible := make([]string, 0, len(ids))
	for _, id := range ids {
		matched, ok := v.cache.get(id)
		if !ok {
			order, exists := v.store.Get(id)
			if !exists {
				continue
			}
			matched = MatchPricePrefix(v.term, order.PriceString())
			v.cache.put(id, matched)
		}
		if matched {
			visible = append(visible, id)
		}
	}
	v.visible = visible
}

var _ domain.OrderReader = (*OrderStore)(nil)
