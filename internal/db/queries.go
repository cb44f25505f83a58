package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/lifegrid/internal/errors"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a time-ordered ULID string.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// DocumentStore persists one JSON document under a namespaced key.
type DocumentStore struct {
	db   *sql.DB
	key  string
	keep int
}

// NewDocumentStore returns a store for the document saved under key.
func NewDocumentStore(db *sql.DB, key string) *DocumentStore {
	return &DocumentStore{db: db, key: key}
}

// WithRetention keeps only the newest keep snapshots of the key after each
// new snapshot. keep <= 0 keeps everything.
func (s *DocumentStore) WithRetention(keep int) *DocumentStore {
	s.keep = keep
	return s
}

// Key returns the namespaced storage key.
func (s *DocumentStore) Key() string { return s.key }

// Load returns the stored body, or nil when nothing has been saved yet.
func (s *DocumentStore) Load(ctx context.Context) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE key = ?`, s.key).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreUnavailable(err)
	}
	return []byte(body), nil
}

// Save replaces the stored body and stamps a new revision.
func (s *DocumentStore) Save(ctx context.Context, body []byte) error {
	query := `
		INSERT INTO documents (key, body, revision, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			body = excluded.body,
			revision = excluded.revision,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, s.key, string(body), NewID(), time.Now().Unix()); err != nil {
		return errors.NewStoreUnavailable(err)
	}
	return nil
}

// Revision returns the revision of the last save, or "" when nothing is stored.
func (s *DocumentStore) Revision(ctx context.Context) (string, error) {
	var rev string
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM documents WHERE key = ?`, s.key).Scan(&rev)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.NewStoreUnavailable(err)
	}
	return rev, nil
}

// SnapshotInfo describes a stored snapshot without its body.
type SnapshotInfo struct {
	ID        string `json:"id"`
	Reason    string `json:"reason"`
	CreatedAt int64  `json:"created_at"`
	Bytes     int    `json:"bytes"`
}

// Snapshot records body under the store's key and returns the snapshot id.
func (s *DocumentStore) Snapshot(ctx context.Context, reason string, body []byte) (string, error) {
	id := NewID()
	query := `INSERT INTO snapshots (id, key, body, reason, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, id, s.key, string(body), reason, time.Now().Unix()); err != nil {
		return "", errors.NewStoreUnavailable(err)
	}
	if s.keep > 0 {
		prune := `
			DELETE FROM snapshots
			WHERE key = ? AND id NOT IN (
				SELECT id FROM snapshots WHERE key = ? ORDER BY id DESC LIMIT ?
			)
		`
		if _, err := s.db.ExecContext(ctx, prune, s.key, s.key, s.keep); err != nil {
			return "", errors.NewStoreUnavailable(err)
		}
	}
	return id, nil
}

// ListSnapshots returns the newest snapshots first. limit <= 0 returns all.
func (s *DocumentStore) ListSnapshots(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	query := `
		SELECT id, reason, created_at, length(body)
		FROM snapshots
		WHERE key = ?
		ORDER BY id DESC
	`
	args := []any{s.key}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []SnapshotInfo{}
	for rows.Next() {
		var info SnapshotInfo
		if err := rows.Scan(&info.ID, &info.Reason, &info.CreatedAt, &info.Bytes); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// GetSnapshot returns the body of snapshot id.
func (s *DocumentStore) GetSnapshot(ctx context.Context, id string) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM snapshots WHERE id = ? AND key = ?`, id, s.key).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return []byte(body), nil
}
