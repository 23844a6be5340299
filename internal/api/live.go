package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/stonekeeper/stonekeeper/internal/app/ledger"
	"github.com/stonekeeper/stonekeeper/internal/infra/observability"
)

// ─── Live Ledger Feed ───────────────────────────────────────────────────────
// Every stone movement is broadcast to connected dashboards the moment it
// applies, via Server-Sent Events.

// LiveHub fans ledger events out to connected SSE clients.
type LiveHub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewLiveHub creates a new ledger broadcast hub.
func NewLiveHub() *LiveHub {
	return &LiveHub{
		clients: make(map[chan []byte]struct{}),
	}
}

// Broadcast sends a ledger event to all connected clients.
func (h *LiveHub) Broadcast(event ledger.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
			// Client too slow — drop message
		}
	}
}

// Subscribe registers a new client. Returns the channel and an unsubscribe func.
func (h *LiveHub) Subscribe() (chan []byte, func()) {
	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	observability.LiveLedgerClients.Inc()

	return ch, func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
		observability.LiveLedgerClients.Dec()
	}
}

// ClientCount returns the number of connected clients.
func (h *LiveHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleLedgerSSE serves the live ledger feed via Server-Sent Events.
// GET /api/ledger/live
func (h *LiveHub) HandleLedgerSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush()

	ch, unsub := h.Subscribe()
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-ch:
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
