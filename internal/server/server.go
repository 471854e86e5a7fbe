package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"order_watch/internal/domain"
	"order_watch/internal/infra"
	"order_watch/internal/service"
)

// Server is the read surface for the presentation layer: the full id
// list, the filtered id list, per-order lookup, and connectivity. It
// only ever reads snapshots; the ingest pipeline stays the sole writer.
type Server struct {
	store   *service.OrderStore
	view    *service.FilterView
	watcher domain.OrderWatcher
	metrics *infra.Metrics

	httpServer *http.Server
}

// New creates the API server. watcher may be nil in tests; connectivity
// then reads as false.
func New(addr string, store *service.OrderStore, view *service.FilterView, watcher domain.OrderWatcher, metrics *infra.Metrics) *Server {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	s := &Server{
		store:   store,
		view:    view,
		watcher: watcher,
		metrics: metrics,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders", s.handleOrders)
	mux.HandleFunc("GET /api/orders/{id}", s.handleOrder)
	mux.HandleFunc("GET /api/view", s.handleView)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the routing table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("API server listening", slog.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type ordersResponse struct {
	IDs    []string       `json:"ids"`
	Orders []domain.Order `json:"orders"`
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ordersResponse{
		IDs:    s.store.IDs(),
		Orders: s.store.All(),
	})
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	order, ok := s.store.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": domain.ErrOrderNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type viewResponse struct {
	Filter string   `json:"filter"`
	Total  int      `json:"total"`
	IDs    []string `json:"ids"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	s.view.SetTerm(r.URL.Query().Get("filter"))
	s.view.Refresh()
	ids := s.view.VisibleIDs()
	writeJSON(w, http.StatusOK, viewResponse{
		Filter: s.view.Term(),
		Total:  s.store.Len(),
		IDs:    ids,
	})
}

type statusResponse struct {
	Connected bool                  `json:"connected"`
	Orders    int                   `json:"orders"`
	Metrics   infra.MetricsSnapshot `json:"metrics"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	connected := false
	if s.watcher != nil {
		connected = s.watcher.IsConnected()
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Connected: connected,
		Orders:    s.store.Len(),
		Metrics:   s.metrics.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Response encoding failed", slog.Any("error", err))
	}
}
