package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stonekeeper/stonekeeper/internal/domain"
)

// ─── File Store ─────────────────────────────────────────────────────────────

// File is the offline/demo fallback: one JSON file per user id under a data
// directory, mirroring the shape the SQLite store persists. Writes go through
// a rename so readers never observe a torn document.
type File struct {
	mu       sync.Mutex
	dir      string
	notifier *notifier
}

// OpenFile prepares the data directory for the offline store.
func OpenFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &File{dir: dir, notifier: newNotifier()}, nil
}

// path namespaces the storage key per user identifier.
func (f *File) path(id string) string {
	return filepath.Join(f.dir, "appdata-"+id+".json")
}

// Get reads the current document, returning (nil, nil) when absent.
func (f *File) Get(ctx context.Context, id string) (*domain.AppData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readLocked(id)
}

func (f *File) readLocked(id string) (*domain.AppData, error) {
	body, err := os.ReadFile(f.path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc domain.AppData
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	return &doc, nil
}

// Replace writes the document to a temp file, renames it into place, and
// notifies subscribers.
func (f *File) Replace(ctx context.Context, id string, doc domain.AppData) error {
	doc.UpdatedAt = time.Now().UnixMilli()

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document %s: %w", id, err)
	}

	f.mu.Lock()
	tmp := f.path(id) + ".tmp"
	if err := os.WriteFile(tmp, body, 0o600); err != nil {
		f.mu.Unlock()
		return fmt.Errorf("write document %s: %w", id, err)
	}
	if err := os.Rename(tmp, f.path(id)); err != nil {
		f.mu.Unlock()
		return fmt.Errorf("replace document %s: %w", id, err)
	}
	f.mu.Unlock()

	f.notifier.publish(id, Change{Doc: &doc})
	return nil
}

// Subscribe delivers the current contents first, then every local change.
func (f *File) Subscribe(ctx context.Context, id string, onChange func(Change), onError func(error)) (func(), error) {
	doc, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	sub, cancel := f.notifier.subscribe(id, onChange)
	sub.deliver(Change{Doc: doc})
	return cancel, nil
}

// Close stops all subscribers. The files need no teardown.
func (f *File) Close() error {
	f.notifier.closeAll()
	return nil
}
