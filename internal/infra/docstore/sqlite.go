package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stonekeeper/stonekeeper/internal/domain"
)

// ─── SQLite Store ───────────────────────────────────────────────────────────

// SQLite stores one JSON document per user id in a single-file database and
// fans out changes to in-process subscribers. Replace is atomic via upsert.
type SQLite struct {
	db       *sql.DB
	notifier *notifier
}

// migrations returns the schema statements. Each string is a single SQL
// statement (SQLite executes one at a time).
func migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id         TEXT PRIMARY KEY,
			body       TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT 0
		)`,
	}
}

// OpenSQLite opens (creating if needed) the document database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer keeps Replace atomic without busy retries.
	db.SetMaxOpenConns(1)

	for _, stmt := range migrations() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &SQLite{db: db, notifier: newNotifier()}, nil
}

// Get reads the current document, returning (nil, 0, nil) when absent.
func (s *SQLite) Get(ctx context.Context, id string) (*domain.AppData, int64, error) {
	var body string
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT body, updated_at FROM documents WHERE id = ?
	`, id).Scan(&body, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	var doc domain.AppData
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, 0, fmt.Errorf("decode document %s: %w", id, err)
	}
	return &doc, updatedAt, nil
}

// Replace atomically replaces the document and notifies subscribers.
// The stored `_updatedAt` is stamped server-side with the current time.
func (s *SQLite) Replace(ctx context.Context, id string, doc domain.AppData) error {
	doc.UpdatedAt = time.Now().UnixMilli()

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", id, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, body, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, id, string(body), doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("replace document %s: %w", id, err)
	}

	s.notifier.publish(id, Change{Doc: &doc})
	return nil
}

// Subscribe delivers the current contents first, then every change.
func (s *SQLite) Subscribe(ctx context.Context, id string, onChange func(Change), onError func(error)) (func(), error) {
	doc, _, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	sub, cancel := s.notifier.subscribe(id, onChange)
	sub.deliver(Change{Doc: doc})
	return cancel, nil
}

// Close closes the database and stops all subscribers.
func (s *SQLite) Close() error {
	s.notifier.closeAll()
	return s.db.Close()
}
