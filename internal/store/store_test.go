package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stonekeeper/stonekeeper/internal/domain"
	"github.com/stonekeeper/stonekeeper/internal/infra/docstore"
)

// fakeBackend hands the test direct control of the change feed and records
// every Replace, so filter and debounce behavior can be asserted without
// sleeping on a real store.
type fakeBackend struct {
	mu       sync.Mutex
	writes   []domain.AppData
	onChange func(docstore.Change)
	onError  func(error)
	subErr   error
}

func (f *fakeBackend) Subscribe(ctx context.Context, id string, onChange func(docstore.Change), onError func(error)) (func(), error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.mu.Lock()
	f.onChange = onChange
	f.onError = onError
	f.mu.Unlock()
	return func() {}, nil
}

func (f *fakeBackend) Replace(ctx context.Context, id string, doc domain.AppData) error {
	f.mu.Lock()
	f.writes = append(f.writes, doc)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) push(c docstore.Change) {
	f.mu.Lock()
	onChange := f.onChange
	f.mu.Unlock()
	onChange(c)
}

func (f *fakeBackend) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeBackend) lastWrite() domain.AppData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[len(f.writes)-1]
}

func docWithStudent(stones int) *domain.AppData {
	d := domain.DefaultAppData()
	d.Students = []domain.Student{{
		ID: "s1", Name: "Ama", Group: domain.GroupBeginner,
		Stones: stones, MaxStones: 30, Status: domain.StudentActive,
	}}
	return &d
}

// ─── Session Lifecycle Tests ────────────────────────────────────────────────

func TestBind_LoadingUntilFirstSnapshot(t *testing.T) {
	fake := &fakeBackend{}
	s := New(fake)
	if err := s.Bind(context.Background(), "coach"); err != nil {
		t.Fatal(err)
	}
	if s.Status() != StatusLoading {
		t.Fatalf("status = %v, want loading", s.Status())
	}

	fake.push(docstore.Change{Doc: docWithStudent(5)})
	if s.Status() != StatusLive {
		t.Fatalf("status = %v, want live", s.Status())
	}
	snap, _ := s.Snapshot()
	if len(snap.Students) != 1 || snap.Students[0].Stones != 5 {
		t.Error("snapshot does not reflect the delivered document")
	}
}

func TestBind_AbsentDocumentInitializesDefaults(t *testing.T) {
	fake := &fakeBackend{}
	s := New(fake)
	s.Bind(context.Background(), "coach")

	fake.push(docstore.Change{Doc: nil})
	snap, status := s.Snapshot()
	if status != StatusLive {
		t.Fatalf("status = %v, want live", status)
	}
	if snap.Students == nil || snap.Settings.Group == nil {
		t.Error("absent document did not initialize structural defaults")
	}
}

func TestBind_SubscribeFailure(t *testing.T) {
	fake := &fakeBackend{subErr: errors.New("no feed")}
	s := New(fake)
	if err := s.Bind(context.Background(), "coach"); err == nil {
		t.Fatal("want error")
	}
	if s.Status() != StatusError {
		t.Fatalf("status = %v, want error", s.Status())
	}
}

func TestFeedError_TerminalUntilRebind(t *testing.T) {
	fake := &fakeBackend{}
	s := New(fake)
	s.Bind(context.Background(), "coach")
	fake.push(docstore.Change{Doc: docWithStudent(5)})

	fake.onError(errors.New("feed broke"))
	if s.Status() != StatusError {
		t.Fatalf("status = %v, want error", s.Status())
	}

	// Mutations are no-ops in the error state.
	_, applied := s.Apply(func(d domain.AppData) domain.AppData {
		d.Students = nil
		return d
	})
	if applied {
		t.Error("mutation applied in error state")
	}

	// A late snapshot from the dead feed must not resurrect the session.
	fake.push(docstore.Change{Doc: docWithStudent(9)})
	if s.Status() != StatusError {
		t.Error("snapshot accepted after feed error")
	}

	// Re-binding is the only way out.
	if err := s.Bind(context.Background(), "coach"); err != nil {
		t.Fatal(err)
	}
	if s.Status() != StatusLoading {
		t.Fatalf("status after rebind = %v, want loading", s.Status())
	}
}

// ─── Acceptance Filter Tests ────────────────────────────────────────────────

func TestOnChange_IgnoresPendingWriteEcho(t *testing.T) {
	fake := &fakeBackend{}
	s := New(fake)
	s.Bind(context.Background(), "coach")
	fake.push(docstore.Change{Doc: docWithStudent(5)})

	// The echo carries older state than the optimistic local snapshot.
	fake.push(docstore.Change{Doc: docWithStudent(1), PendingWrite: true})

	snap, _ := s.Snapshot()
	if snap.Students[0].Stones != 5 {
		t.Errorf("stones = %d, want 5 (echo must not regress local state)", snap.Students[0].Stones)
	}
}

func TestOnChange_RejectsStaleCacheWhenLiveAndOnline(t *testing.T) {
	fake := &fakeBackend{}
	s := New(fake)
	s.Bind(context.Background(), "coach")
	fake.push(docstore.Change{Doc: docWithStudent(5)})

	fake.push(docstore.Change{Doc: docWithStudent(1), FromCache: true})
	snap, _ := s.Snapshot()
	if snap.Students[0].Stones != 5 {
		t.Error("cached snapshot regressed a live session")
	}
}

func TestOnChange_AcceptsCacheWhileLoading(t *testing.T) {
	fake := &fakeBackend{}
	s := New(fake)
	s.Bind(context.Background(), "coach")

	// First delivery on a fresh session comes from cache: better a cached
	// snapshot than none.
	fake.push(docstore.Change{Doc: docWithStudent(3), FromCache: true})
	snap, status := s.Snapshot()
	if status != StatusLive {
		t.Fatalf("status = %v, want live", status)
	}
	if snap.Students[0].Stones != 3 {
		t.Error("cached first snapshot not accepted")
	}
}

func TestOnChange_AcceptsCacheWhenOffline(t *testing.T) {
	fake := &fakeBackend{}
	s := New(fake, WithOnline(func() bool { return false }))
	s.Bind(context.Background(), "coach")
	fake.push(docstore.Change{Doc: docWithStudent(5)})

	fake.push(docstore.Change{Doc: docWithStudent(7), FromCache: true})
	snap, _ := s.Snapshot()
	if snap.Students[0].Stones != 7 {
		t.Error("cached snapshot rejected while unreachable")
	}
}

// ─── Mutation and Debounce Tests ────────────────────────────────────────────

func TestApply_RejectedBeforeLive(t *testing.T) {
	fake := &fakeBackend{}
	s := New(fake)

	_, applied := s.Apply(func(d domain.AppData) domain.AppData { return d })
	if applied {
		t.Error("mutation applied while uninitialized")
	}

	s.Bind(context.Background(), "coach")
	_, applied = s.Apply(func(d domain.AppData) domain.AppData { return d })
	if applied {
		t.Error("mutation applied while loading")
	}
}

func TestApply_OptimisticAndCoalesced(t *testing.T) {
	fake := &fakeBackend{}
	s := New(fake, WithDebounce(40*time.Millisecond))
	s.Bind(context.Background(), "coach")
	fake.push(docstore.Change{Doc: docWithStudent(5)})

	setStones := func(v int) func(domain.AppData) domain.AppData {
		return func(d domain.AppData) domain.AppData {
			students := make([]domain.Student, len(d.Students))
			copy(students, d.Students)
			students[0].Stones = v
			d.Students = students
			return d
		}
	}

	// Two mutations inside one debounce window.
	next, applied := s.Apply(setStones(10))
	if !applied || next.Students[0].Stones != 10 {
		t.Fatal("first mutation not applied optimistically")
	}
	s.Apply(setStones(20))

	// The snapshot is current immediately, before any write happens.
	snap, _ := s.Snapshot()
	if snap.Students[0].Stones != 20 {
		t.Error("snapshot lags behind applied mutations")
	}
	if fake.writeCount() != 0 {
		t.Fatal("write issued before the debounce window elapsed")
	}

	// After the window: exactly one write, carrying the final state only.
	deadline := time.Now().Add(2 * time.Second)
	for fake.writeCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := fake.writeCount(); got != 1 {
		t.Fatalf("writes = %d, want 1 coalesced write", got)
	}
	if got := fake.lastWrite().Students[0].Stones; got != 20 {
		t.Errorf("persisted stones = %d, want final state 20", got)
	}
}

func TestApply_OfflinePersistsImmediately(t *testing.T) {
	fake := &fakeBackend{}
	s := New(fake, WithOffline())
	s.Bind(context.Background(), "coach")
	fake.push(docstore.Change{Doc: docWithStudent(5)})

	s.Apply(func(d domain.AppData) domain.AppData { return d })
	if fake.writeCount() != 1 {
		t.Fatalf("writes = %d, want 1 synchronous write", fake.writeCount())
	}
}

func TestFlush_PersistsPendingState(t *testing.T) {
	fake := &fakeBackend{}
	s := New(fake, WithDebounce(time.Hour))
	s.Bind(context.Background(), "coach")
	fake.push(docstore.Change{Doc: docWithStudent(5)})

	s.Apply(func(d domain.AppData) domain.AppData { return d })
	if fake.writeCount() != 0 {
		t.Fatal("unexpected early write")
	}

	s.Flush()
	if fake.writeCount() != 1 {
		t.Fatalf("writes after flush = %d, want 1", fake.writeCount())
	}

	// Nothing pending: flush is a no-op.
	s.Flush()
	if fake.writeCount() != 1 {
		t.Error("idle flush wrote again")
	}
}

func TestFlush_NoopAfterTimerFired(t *testing.T) {
	fake := &fakeBackend{}
	s := New(fake, WithDebounce(20*time.Millisecond))
	s.Bind(context.Background(), "coach")
	fake.push(docstore.Change{Doc: docWithStudent(5)})

	s.Apply(func(d domain.AppData) domain.AppData { return d })
	deadline := time.Now().Add(time.Second)
	for fake.writeCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if got := fake.writeCount(); got != 1 {
		t.Fatalf("writes after debounce = %d, want 1", got)
	}

	// The window already elapsed and the state was written. Flush must not
	// write it a second time.
	s.Flush()
	if got := fake.writeCount(); got != 1 {
		t.Errorf("writes after idle flush = %d, want still 1", got)
	}

	// The next mutation opens a fresh window and persists once on its own.
	s.Apply(func(d domain.AppData) domain.AppData { return d })
	deadline = time.Now().Add(time.Second)
	for fake.writeCount() == 1 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if got := fake.writeCount(); got != 2 {
		t.Errorf("writes after second mutation = %d, want 2", got)
	}
}
