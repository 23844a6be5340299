// Package docstore provides per-user document storage with a change feed.
//
// The entire surface the application requires from its storage collaborator
// is two operations: subscribe to a document by id and receive a callback on
// every change, and replace a document's contents atomically. Three
// implementations exist: SQLite (durable, single binary), File (offline/demo
// fallback), and Remote (websocket client against another instance's feed).
package docstore

import (
	"context"
	"sync"

	"github.com/stonekeeper/stonekeeper/internal/domain"
)

// Change is one change-feed notification for a subscribed document.
type Change struct {
	// Doc is the current document contents, nil if the document is absent.
	Doc *domain.AppData

	// PendingWrite reports that this notification reflects the local
	// session's own not-yet-confirmed write.
	PendingWrite bool

	// FromCache reports that the data originates from a local cache rather
	// than the live backend.
	FromCache bool
}

// Store is the storage collaborator contract.
type Store interface {
	// Subscribe registers a listener for the document with the given id.
	// The current contents (or absence) are delivered first, then every
	// subsequent change. onError is invoked at most once, when the feed
	// breaks irrecoverably. The returned cancel func stops delivery.
	Subscribe(ctx context.Context, id string, onChange func(Change), onError func(error)) (cancel func(), err error)

	// Replace atomically replaces the document's contents.
	Replace(ctx context.Context, id string, doc domain.AppData) error

	// Close releases the backing resources. Active subscriptions stop
	// without an error callback.
	Close() error
}

// ─── Change Fan-Out ─────────────────────────────────────────────────────────

// subscriber is one change-feed listener. Deliveries go through a buffered
// channel drained by a dedicated goroutine, decoupling the caller's callback
// from the writer's critical section.
type subscriber struct {
	ch   chan Change
	done chan struct{}
}

// notifier fans document changes out to subscribers, keyed by document id.
// SQLite and File stores share it; Remote has its own single-connection loop.
type notifier struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[string]map[*subscriber]struct{})}
}

// subscribe registers a callback for one document id. It returns the
// subscriber, so the caller can seed an initial delivery that only the new
// listener observes, and a cancel func.
func (n *notifier) subscribe(id string, onChange func(Change)) (*subscriber, func()) {
	sub := &subscriber{
		ch:   make(chan Change, 16),
		done: make(chan struct{}),
	}

	n.mu.Lock()
	if n.subs[id] == nil {
		n.subs[id] = make(map[*subscriber]struct{})
	}
	n.subs[id][sub] = struct{}{}
	n.mu.Unlock()

	go func() {
		for {
			select {
			case c := <-sub.ch:
				onChange(c)
			case <-sub.done:
				return
			}
		}
	}()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs[id], sub)
			n.mu.Unlock()
			close(sub.done)
		})
	}
}

// deliver seeds a change to a single subscriber.
func (sub *subscriber) deliver(c Change) {
	select {
	case sub.ch <- c:
	default:
	}
}

// publish delivers a change to every subscriber of the document.
// Subscribers whose buffer is full miss the intermediate state; they will
// observe the latest state on the next publish.
func (n *notifier) publish(id string, c Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.subs[id] {
		select {
		case sub.ch <- c:
		default:
		}
	}
}

// closeAll stops every subscriber.
func (n *notifier) closeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, subs := range n.subs {
		for sub := range subs {
			close(sub.done)
		}
		delete(n.subs, id)
	}
}
