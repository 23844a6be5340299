package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/stonekeeper/stonekeeper/internal/domain"
)

// ─── Memory Store ───────────────────────────────────────────────────────────

// Memory keeps documents in a map. It backs tests and ephemeral demo
// sessions; nothing survives the process.
type Memory struct {
	mu       sync.Mutex
	docs     map[string]domain.AppData
	notifier *notifier
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string]domain.AppData),
		notifier: newNotifier(),
	}
}

// Get returns the current document, nil when absent.
func (m *Memory) Get(ctx context.Context, id string) (*domain.AppData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.docs[id]; ok {
		return &doc, nil
	}
	return nil, nil
}

// Replace swaps the document and notifies subscribers.
func (m *Memory) Replace(ctx context.Context, id string, doc domain.AppData) error {
	doc.UpdatedAt = time.Now().UnixMilli()

	m.mu.Lock()
	m.docs[id] = doc
	m.mu.Unlock()

	m.notifier.publish(id, Change{Doc: &doc})
	return nil
}

// Subscribe delivers the current contents first, then every change.
func (m *Memory) Subscribe(ctx context.Context, id string, onChange func(Change), onError func(error)) (func(), error) {
	doc, _ := m.Get(ctx, id)
	sub, cancel := m.notifier.subscribe(id, onChange)
	sub.deliver(Change{Doc: doc})
	return cancel, nil
}

// Close stops all subscribers.
func (m *Memory) Close() error {
	m.notifier.closeAll()
	return nil
}
