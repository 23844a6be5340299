package docstore

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/stonekeeper/stonekeeper/internal/domain"
)

// ─── Feed Protocol ──────────────────────────────────────────────────────────
// The wire protocol between a Remote client and another instance's
// /api/feed endpoint. One JSON message per frame.

const (
	// FeedSnapshot carries the document's current contents (server → client).
	FeedSnapshot = "snapshot"
	// FeedAbsent reports that the document does not exist (server → client).
	FeedAbsent = "absent"
	// FeedReplace atomically replaces the document (client → server).
	FeedReplace = "replace"
)

// FeedMessage is one frame of the change-feed protocol.
type FeedMessage struct {
	Type string          `json:"type"`
	Doc  *domain.AppData `json:"doc,omitempty"`
}

// ─── Remote Store ───────────────────────────────────────────────────────────

// Remote subscribes to a document feed served by another stonekeeper
// instance over a websocket. The last snapshot seen per document is kept in
// memory and replayed cache-first on a later Subscribe, flagged FromCache.
type Remote struct {
	base string // e.g. "ws://127.0.0.1:7420"

	mu       sync.Mutex
	lastSeen map[string]*domain.AppData
	conns    map[string]*feedConn
}

// feedConn wraps one subscription's connection. Reads happen on the
// subscription goroutine only; writes are serialized by writeMu.
type feedConn struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	onChange func(Change)
}

// NewRemote creates a client for the feed endpoint at the given base URL.
func NewRemote(base string) *Remote {
	return &Remote{
		base:     base,
		lastSeen: make(map[string]*domain.AppData),
		conns:    make(map[string]*feedConn),
	}
}

func (r *Remote) feedURL(id string) string {
	return r.base + "/api/feed?id=" + url.QueryEscape(id)
}

// Subscribe dials the feed endpoint and pumps snapshots to onChange.
// If a previous session left a cached copy, it is delivered first with
// FromCache set, before the live connection confirms anything.
func (r *Remote) Subscribe(ctx context.Context, id string, onChange func(Change), onError func(error)) (func(), error) {
	r.mu.Lock()
	cached := r.lastSeen[id]
	r.mu.Unlock()
	if cached != nil {
		onChange(Change{Doc: cached, FromCache: true})
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.feedURL(id), nil)
	if err != nil {
		return nil, fmt.Errorf("dial feed %s: %w", r.base, err)
	}

	fc := &feedConn{conn: conn, onChange: onChange}
	r.mu.Lock()
	r.conns[id] = fc
	r.mu.Unlock()

	var errOnce sync.Once
	go func() {
		for {
			var msg FeedMessage
			if err := conn.ReadJSON(&msg); err != nil {
				errOnce.Do(func() { onError(fmt.Errorf("feed read: %w", err)) })
				return
			}
			switch msg.Type {
			case FeedSnapshot:
				r.mu.Lock()
				r.lastSeen[id] = msg.Doc
				r.mu.Unlock()
				onChange(Change{Doc: msg.Doc})
			case FeedAbsent:
				onChange(Change{Doc: nil})
			}
		}
	}()

	var cancelOnce sync.Once
	cancel := func() {
		cancelOnce.Do(func() {
			r.mu.Lock()
			if r.conns[id] == fc {
				delete(r.conns, id)
			}
			r.mu.Unlock()
			errOnce.Do(func() {}) // suppress the read error caused by our own close
			conn.Close()
		})
	}
	return cancel, nil
}

// Replace sends the new contents upstream. The local subscriber is echoed an
// optimistic PendingWrite notification before the frame goes out; the server
// confirms by broadcasting a plain snapshot back.
func (r *Remote) Replace(ctx context.Context, id string, doc domain.AppData) error {
	r.mu.Lock()
	fc := r.conns[id]
	r.mu.Unlock()
	if fc == nil {
		return fmt.Errorf("no active feed subscription for %s", id)
	}

	fc.onChange(Change{Doc: &doc, PendingWrite: true})

	fc.writeMu.Lock()
	defer fc.writeMu.Unlock()
	if err := fc.conn.WriteJSON(FeedMessage{Type: FeedReplace, Doc: &doc}); err != nil {
		return fmt.Errorf("feed write: %w", err)
	}
	return nil
}

// Close tears down every active subscription connection.
func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, fc := range r.conns {
		fc.conn.Close()
		delete(r.conns, id)
	}
	return nil
}
