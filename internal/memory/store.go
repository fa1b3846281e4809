// Package memory implements the per-tenant session-scoped conversation
// log: an append-only record of memory entries with a parallel full-text
// index used for ranked retrieval during the agent turn engine's context
// assembly phase.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/atlasforge/agentmesh/internal/storage"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// Store is a tenant's memory database: one file under the tenant's
// on-disk directory, opened once by the gateway process at startup.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a tenant memory database and its
// FTS5 search index.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL DEFAULT 'default',
			content TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_session ON memories(session_id)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
			id UNINDEXED, content, tokenize='unicode61'
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate memory db: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Save persists one memory entry, generating an id and timestamp if
// absent, and indexes its content for full-text search.
func (s *Store) Save(ctx context.Context, entry *models.MemoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.SessionID == "" {
		entry.SessionID = "default"
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO memories (id, session_id, content, metadata, created_at)
		VALUES (?,?,?,?,?)`, entry.ID, entry.SessionID, entry.Content, string(metaJSON), entry.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO memories_fts (id, content) VALUES (?,?)`, entry.ID, entry.Content); err != nil {
		return err
	}
	return tx.Commit()
}

// SearchResult pairs a memory entry with its ranked relevance score;
// higher is better.
type SearchResult struct {
	Entry models.MemoryEntry
	Score float64
}

// Search performs ranked retrieval against the full-text index, falling
// back to a case-insensitive substring scan (scored by match count) when
// FTS5 finds nothing — the sanitized query has no indexable terms, or the
// terms simply don't appear verbatim in any entry.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	clean := sanitizeFTSQuery(query)
	if clean == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT f.id, m.session_id, m.content, m.metadata, m.created_at, bm25(memories_fts) AS score
		FROM memories_fts f JOIN memories m ON m.id = f.id
		WHERE memories_fts MATCH ? ORDER BY score LIMIT ?`, clean, limit)
	if err == nil {
		defer rows.Close()
		var out []SearchResult
		for rows.Next() {
			var r SearchResult
			var metaJSON, createdAt string
			if err := rows.Scan(&r.Entry.ID, &r.Entry.SessionID, &r.Entry.Content, &metaJSON, &createdAt, &r.Score); err != nil {
				return nil, err
			}
			_ = json.Unmarshal([]byte(metaJSON), &r.Entry.Metadata)
			r.Entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
			r.Score = -r.Score // bm25() returns more-negative-is-better; flip so higher is better
			out = append(out, r)
		}
		if err := rows.Err(); err == nil && len(out) > 0 {
			return out, nil
		}
	}

	return s.searchFallback(ctx, query, limit)
}

func (s *Store) searchFallback(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, content, metadata, created_at FROM memories
		WHERE content LIKE ? ORDER BY created_at DESC LIMIT ?`, "%"+query+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lowerQuery := strings.ToLower(query)
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var metaJSON, createdAt string
		if err := rows.Scan(&r.Entry.ID, &r.Entry.SessionID, &r.Entry.Content, &metaJSON, &createdAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(metaJSON), &r.Entry.Metadata)
		r.Entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		matches := strings.Count(strings.ToLower(r.Entry.Content), lowerQuery)
		r.Score = min(float64(matches), 5) / 5
		if r.Score == 0 {
			r.Score = 0.1
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, rows.Err()
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// sanitizeFTSQuery strips characters FTS5's query syntax would otherwise
// choke on, keeping only alphanumerics, whitespace, and underscores.
func sanitizeFTSQuery(query string) string {
	var b strings.Builder
	for _, r := range query {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// Get retrieves a single memory entry by id.
func (s *Store) Get(ctx context.Context, id string) (*models.MemoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, session_id, content, metadata, created_at FROM memories WHERE id=?`, id)
	var e models.MemoryEntry
	var metaJSON, createdAt string
	if err := row.Scan(&e.ID, &e.SessionID, &e.Content, &metaJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal([]byte(metaJSON), &e.Metadata)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}

// Delete removes a memory entry and its search index row.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id=?`, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories_fts WHERE id=?`, id); err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List returns the most recent entries across all sessions, bounded by limit.
func (s *Store) List(ctx context.Context, limit int) ([]models.MemoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, content, metadata, created_at FROM memories ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.MemoryEntry
	for rows.Next() {
		var e models.MemoryEntry
		var metaJSON, createdAt string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Content, &metaJSON, &createdAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(metaJSON), &e.Metadata)
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear deletes every memory entry in the store.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories_fts`)
	return err
}
