package api

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/stonekeeper/stonekeeper/internal/infra/docstore"
	"github.com/stonekeeper/stonekeeper/internal/infra/observability"
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The feed is same-deployment infrastructure, not a browser surface.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleFeed serves the document change feed over a websocket. The client
// subscribes to one document id per connection: the server pushes a snapshot
// (or absence) frame immediately and again on every change, and accepts
// replace frames that go through the backing store's normal write path, so
// every other subscriber of the document observes them too.
//
// GET /api/feed?id=<user id>
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already wrote the error
	}
	defer conn.Close()

	observability.FeedClients.Inc()
	defer observability.FeedClients.Dec()

	// Gorilla allows one concurrent writer; change callbacks and error
	// frames race against each other without this.
	var writeMu sync.Mutex
	send := func(msg docstore.FeedMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	push := func(ch docstore.Change) {
		msg := docstore.FeedMessage{Type: docstore.FeedAbsent}
		if ch.Doc != nil {
			msg = docstore.FeedMessage{Type: docstore.FeedSnapshot, Doc: ch.Doc}
		}
		if err := send(msg); err != nil {
			log.Printf("api: feed push for %s failed: %v", id, err)
		}
	}

	cancel, err := s.feed.Subscribe(r.Context(), id, push, func(err error) {
		log.Printf("api: feed backend error for %s: %v", id, err)
		writeMu.Lock()
		conn.Close()
		writeMu.Unlock()
	})
	if err != nil {
		log.Printf("api: feed subscribe for %s failed: %v", id, err)
		return
	}
	defer cancel()

	// Read loop: replace frames apply to the store; anything else is a
	// protocol violation and ends the connection.
	for {
		var msg docstore.FeedMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != docstore.FeedReplace || msg.Doc == nil {
			log.Printf("api: feed client for %s sent unexpected frame %q", id, msg.Type)
			return
		}
		if err := s.feed.Replace(r.Context(), id, *msg.Doc); err != nil {
			log.Printf("api: feed replace for %s failed: %v", id, err)
			return
		}
	}
}
