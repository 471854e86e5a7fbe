package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"order_watch/internal/domain"
	"order_watch/internal/infra"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
	maxReconnectWait = 60 * time.Second
)

// rawUpdate is the wire shape of one order event. The feed sends either
// a single object or an array of objects per frame.
type rawUpdate struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Destination  string `json:"destination"`
	Item         string `json:"item"`
	EventName    string `json:"event_name"`
	Price        int64  `json:"price"`
	SentAtSecond int64  `json:"sent_at_second"`
}

func (r rawUpdate) toDomain() domain.OrderUpdate {
	return domain.OrderUpdate{
		ID:           r.ID,
		Customer:     r.Customer,
		Destination:  r.Destination,
		Item:         r.Item,
		EventName:    r.EventName,
		PriceMinor:   r.Price,
		SentAtSecond: r.SentAtSecond,
	}
}

// Watcher maintains the websocket connection to the order feed and
// delivers decoded updates to subscribers one event at a time, whether
// the frame carried a single event or a batch. Reconnects with
// exponential backoff; a disconnect only flips the connectivity state,
// it never touches downstream queue or store.
type Watcher struct {
	url     string
	metrics *infra.Metrics

	conn      *websocket.Conn
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

// NewWatcher creates a feed watcher for the given websocket endpoint.
func NewWatcher(url string, metrics *infra.Metrics) *Watcher {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Watcher{
		url:            url,
		metrics:        metrics,
		updateSubs:     make(map[string]func(domain.OrderUpdate)),
		connectSubs:    make(map[string]func()),
		disconnectSubs: make(map[string]func()),
	}
}

// Start launches the connection loop.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

// Stop closes the connection and halts reconnection. Idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.closeConnection()
		w.wg.Wait()
	})
}

// Subscribe registers a callback for decoded order updates. The callback
// must not retain the update past its return.
func (w *Watcher) Subscribe(cb func(domain.OrderUpdate)) domain.Unsubscribe {
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

// SubscribeConnect registers a callback fired on every (re)connect.
func (w *Watcher) SubscribeConnect(cb func()) domain.Unsubscribe {
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

// SubscribeDisconnect registers a callback fired when the feed drops.
func (w *Watcher) SubscribeDisconnect(cb func()) domain.Unsubscribe {
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

// IsConnected reports current feed connectivity.
func (w *Watcher) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *Watcher) connectionLoop(ctx context.Context) {
	defer w.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = maxReconnectWait

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			if !domain.IsRetriable(err) {
				slog.Error("Feed connection failed fatally", slog.Any("error", err))
				return
			}
			delay := bo.NextBackOff()
			if delay == backoff.Stop {
				bo.Reset()
				delay = bo.NextBackOff()
			}
			slog.Warn("Feed connection failed",
				slog.Any("error", err), slog.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		bo.Reset()
		w.readLoop(ctx)
	}
}

func (w *Watcher) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, w.url, http.Header{})
	if err != nil {
		return domain.NewNetworkError("dial", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	w.metrics.SetFeedConnected(true)
	w.notifyConnect()
	slog.Info("Order feed connected", slog.String("url", w.url))
	return nil
}

func (w *Watcher) readLoop(ctx context.Context) {
	defer func() {
		w.closeConnection()
		w.metrics.SetFeedConnected(false)
		w.notifyDisconnect()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("Feed read failed", slog.Any("error", err))
			return
		}
		w.handleMessage(msg)
	}
}

// handleMessage decodes one frame and fans the contained events out to
// subscribers. Events missing required fields are dropped here so no
// partial order ever forms downstream.
func (w *Watcher) handleMessage(msg []byte) {
	for _, raw := range decodeFrame(msg) {
		u := raw.toDomain()
		if err := u.Validate(); err != nil {
			w.metrics.RecordMalformed()
			slog.Debug("Dropping malformed feed event", slog.String("id", raw.ID))
			continue
		}
		w.notifyUpdate(u)
	}
}

// decodeFrame accepts both frame shapes: a single update object or an
// ordered batch of them. Undecodable frames yield nothing.
func decodeFrame(msg []byte) []rawUpdate {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '[' {
		var batch []rawUpdate
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			slog.Debug("Undecodable feed frame", slog.Any("error", err))
			return nil
		}
		return batch
	}

	var single rawUpdate
	if err := json.Unmarshal(trimmed, &single); err != nil {
		slog.Debug("Undecodable feed frame", slog.Any("error", err))
		return nil
	}
	return []rawUpdate{single}
}

func (w *Watcher) notifyUpdate(u domain.OrderUpdate) {
	w.subMu.RLock()
	defer w.subMu.RUnlock()
	for _, cb := range w.updateSubs {
		cb(u)
	}
}

func (w *Watcher) notifyConnect() {
	w.subMu.RLock()
	defer w.subMu.RUnlock()
	for _, cb := range w.connectSubs {
		cb()
	}
}

func (w *Watcher) notifyDisconnect() {
	w.subMu.RLock()
	defer w.subMu.RUnlock()
	for _, cb := range w.disconnectSubs {
		cb()
	}
}

func (w *Watcher) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

var _ domain.OrderWatcher = (*Watcher)(nil)
