// Package api exposes the diagnostics HTTP surface: a liveness probe and a
// small stats endpoint reporting per-product book state. Grounded on the
// teacher's own internal/api server (writeJSON/route-registration style),
// trimmed down from its trade/candle REST surface since this system has
// no matching engine or historical replay to serve.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ndrandal/tickerbook/internal/book"
)

// Server serves /healthz and /stats.
type Server struct {
	registry *book.Registry
	startAt  time.Time
}

// NewServer creates a diagnostics Server over registry.
func NewServer(registry *book.Registry) *Server {
	return &Server{registry: registry, startAt: time.Now()}
}

// Register attaches diagnostics routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /stats", s.handleStats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type productStats struct {
	Product        string  `json:"product"`
	Built          bool    `json:"built"`
	Total          float64 `json:"total"`
	MarketPrice    float64 `json:"market_price"`
	DroppedUpdates uint64  `json:"dropped_updates"`
}

type statsResponse struct {
	UptimeSeconds float64        `json:"uptime_seconds"`
	Products      []productStats `json:"products"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	books := s.registry.All()
	products := make([]productStats, 0, len(books))
	for _, b := range books {
		products = append(products, productStats{
			Product:        b.Product(),
			Built:          b.Built(),
			Total:          b.Total(),
			MarketPrice:    b.MarketPrice(),
			DroppedUpdates: b.DroppedUpdates(),
		})
	}

	writeJSON(w, http.StatusOK, statsResponse{
		UptimeSeconds: time.Since(s.startAt).Seconds(),
		Products:      products,
	})
}
