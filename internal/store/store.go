// Package store owns the single live snapshot of a user's document.
//
// It keeps the snapshot updated from the backing store's change feed, applies
// local mutations optimistically, and coalesces persistence through a
// debounced write so a burst of mutations produces one write carrying the
// final state, never every intermediate state.
package store

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/stonekeeper/stonekeeper/internal/domain"
	"github.com/stonekeeper/stonekeeper/internal/infra/docstore"
	"github.com/stonekeeper/stonekeeper/internal/infra/observability"
)

// Status is the session state machine.
type Status int

const (
	// StatusUninitialized: no user id bound; the snapshot is empty.
	StatusUninitialized Status = iota
	// StatusLoading: feed subscribed, no snapshot accepted yet.
	StatusLoading
	// StatusLive: a snapshot is exposed; the only state in which local
	// mutations schedule writes.
	StatusLive
	// StatusError: the feed broke irrecoverably. Terminal for the session;
	// every mutation is a no-op until the user id is re-bound.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLive:
		return "live"
	case StatusError:
		return "error"
	default:
		return "uninitialized"
	}
}

// DefaultDebounce is the write-coalescing window measured from the most
// recent mutation.
const DefaultDebounce = time.Second

// ErrNotLive is returned by callers of Apply when a mutation was rejected
// because the session was not in the Live state.
var ErrNotLive = errors.New("session is not live")

// Store is the synchronized state store for one user session.
type Store struct {
	backend  docstore.Store
	debounce time.Duration
	offline  bool
	online   func() bool

	mu        sync.Mutex
	userID    string
	status    Status
	snap      domain.AppData
	timer     *time.Timer
	cancelSub func()
}

// Option configures a Store.
type Option func(*Store)

// WithDebounce overrides the write-coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

// WithOffline marks the session as offline/demo: the debounce step is
// skipped and every accepted mutation persists immediately to the (local)
// backend.
func WithOffline() Option {
	return func(s *Store) { s.offline = true }
}

// WithOnline injects the network reachability probe used by the stale-cache
// filter. The default reports always reachable.
func WithOnline(probe func() bool) Option {
	return func(s *Store) { s.online = probe }
}

// New creates an unbound store on top of the given backend.
func New(backend docstore.Store, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		debounce: DefaultDebounce,
		online:   func() bool { return true },
		status:   StatusUninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ─── Session Binding ────────────────────────────────────────────────────────

// Bind attaches the store to a user id and subscribes to its change feed.
// Binding again starts a fresh session, which is also the only way out of
// the Error state.
func (s *Store) Bind(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.cancelSub != nil {
		s.cancelSub()
		s.cancelSub = nil
	}
	s.stopTimerLocked()
	s.userID = userID
	s.status = StatusLoading
	s.snap = domain.AppData{}
	s.mu.Unlock()

	cancel, err := s.backend.Subscribe(ctx, userID, s.onChange, s.onFeedError)
	if err != nil {
		s.mu.Lock()
		s.status = StatusError
		s.mu.Unlock()
		observability.StoreErrors.Inc()
		return err
	}

	s.mu.Lock()
	s.cancelSub = cancel
	s.mu.Unlock()
	return nil
}

// onChange applies the snapshot acceptance filters, in order.
func (s *Store) onChange(ch docstore.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusError || s.status == StatusUninitialized {
		return
	}

	// (a) The echo of our own not-yet-confirmed write: the optimistic local
	// state is authoritative until the round-trip completes.
	if ch.PendingWrite {
		return
	}

	// (b) Cached data after we already have a live snapshot, while the
	// network is reachable: accepting it would regress to stale state.
	if ch.FromCache && s.status == StatusLive && s.online() {
		observability.SnapshotsRejected.WithLabelValues("stale_cache").Inc()
		return
	}

	// (c) Accept. An absent document default-initializes the session.
	if ch.Doc != nil {
		s.snap = domain.MergeAppData(*ch.Doc)
	} else {
		s.snap = domain.DefaultAppData()
	}
	s.status = StatusLive
	observability.SnapshotsAccepted.Inc()
}

// onFeedError transitions to the terminal Error state.
func (s *Store) onFeedError(err error) {
	s.mu.Lock()
	s.status = StatusError
	s.stopTimerLocked()
	s.mu.Unlock()
	observability.StoreErrors.Inc()
	log.Printf("store: feed error for %s: %v", s.userID, err)
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// Snapshot returns the current snapshot and session status. The snapshot is
// only meaningful in the Live state.
func (s *Store) Snapshot() (domain.AppData, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.status
}

// Status returns the session state.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// UserID returns the bound user id, empty when uninitialized.
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// ─── Mutation Path ──────────────────────────────────────────────────────────

// Apply runs a pure mutation against the latest snapshot. The in-memory
// state updates synchronously (optimistic) and a persist is scheduled. When
// the session is not Live the mutation is rejected: the previous snapshot is
// returned unchanged with applied=false and nothing is written.
func (s *Store) Apply(mutate func(domain.AppData) domain.AppData) (domain.AppData, bool) {
	s.mu.Lock()
	if s.status != StatusLive {
		snap := s.snap
		s.mu.Unlock()
		observability.MutationsRejected.Inc()
		return snap, false
	}

	next := mutate(s.snap)
	s.snap = next

	if s.offline {
		id := s.userID
		s.mu.Unlock()
		s.persist(id, next)
		return next, true
	}

	s.resetTimerLocked()
	s.mu.Unlock()
	return next, true
}

// Set replaces the snapshot wholesale through the same mutation path.
func (s *Store) Set(doc domain.AppData) (domain.AppData, bool) {
	return s.Apply(func(domain.AppData) domain.AppData { return doc })
}

// resetTimerLocked restarts the debounce window. A mutation arriving inside
// the window cancels and restarts the timer, so only the latest accumulated
// state is ever written.
func (s *Store) resetTimerLocked() {
	if s.timer != nil {
		s.timer.Reset(s.debounce)
		observability.WritesCoalesced.Inc()
		return
	}
	s.timer = time.AfterFunc(s.debounce, s.flushTimer)
}

func (s *Store) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// flushTimer runs when the debounce window elapses with no new mutation.
// The fired timer is cleared so the next mutation starts a fresh window and
// an idle Flush does not rewrite already-persisted state.
func (s *Store) flushTimer() {
	s.mu.Lock()
	s.timer = nil
	if s.status != StatusLive {
		s.mu.Unlock()
		return
	}
	id, doc := s.userID, s.snap
	s.mu.Unlock()
	s.persist(id, doc)
}

// persist writes the latest state. A failed write is logged and dropped: it
// is not retried and does not revert the optimistic local state.
func (s *Store) persist(id string, doc domain.AppData) {
	start := time.Now()
	if err := s.backend.Replace(context.Background(), id, doc); err != nil {
		observability.PersistTotal.WithLabelValues("error").Inc()
		log.Printf("store: persist %s failed (dropped): %v", id, err)
		return
	}
	observability.PersistTotal.WithLabelValues("ok").Inc()
	observability.PersistDuration.Observe(time.Since(start).Seconds())
}

// Flush persists any state still waiting on the debounce timer. Intended for
// shutdown; a no-op unless Live.
func (s *Store) Flush() {
	s.mu.Lock()
	if s.status != StatusLive || s.timer == nil {
		s.mu.Unlock()
		return
	}
	s.timer.Stop()
	s.timer = nil
	id, doc := s.userID, s.snap
	s.mu.Unlock()
	s.persist(id, doc)
}

// Close cancels the subscription and flushes pending state.
func (s *Store) Close() {
	s.Flush()
	s.mu.Lock()
	if s.cancelSub != nil {
		s.cancelSub()
		s.cancelSub = nil
	}
	s.stopTimerLocked()
	s.mu.Unlock()
}
