// Package knowledge implements the per-tenant knowledge base: documents
// chunked on ingest, each chunk individually searchable through a
// full-text index, used by the agent turn engine's retrieval phase.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/atlasforge/agentmesh/internal/storage"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// Store is a tenant's knowledge database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a tenant knowledge database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge db: %w", err)
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
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			content TEXT NOT NULL,
			offset_bytes INTEGER NOT NULL,
			length_bytes INTEGER NOT NULL,
			FOREIGN KEY(doc_id) REFERENCES documents(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			id UNINDEXED, content, tokenize='unicode61'
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate knowledge db: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// chunkSize is the target size, in bytes, of each chunk produced by
// Ingest. Chunks split on paragraph boundaries where possible and never
// straddle one when a document is longer than chunkSize.
const chunkSize = 800

// Ingest stores a document and splits its content into searchable
// chunks, each carrying the byte offset and length of its source slice.
func (s *Store) Ingest(ctx context.Context, name, source, content string) (*models.KnowledgeDocument, error) {
	doc := &models.KnowledgeDocument{
		ID:        uuid.NewString(),
		Name:      name,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO documents (id, name, source, created_at) VALUES (?,?,?,?)`,
		doc.ID, doc.Name, doc.Source, doc.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}

	for _, c := range chunkContent(content) {
		chunk := models.KnowledgeChunk{
			ID:      uuid.NewString(),
			DocID:   doc.ID,
			Content: c.text,
			Offset:  c.offset,
			Length:  len(c.text),
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO chunks (id, doc_id, content, offset_bytes, length_bytes) VALUES (?,?,?,?,?)`,
			chunk.ID, chunk.DocID, chunk.Content, chunk.Offset, chunk.Length); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO chunks_fts (id, content) VALUES (?,?)`, chunk.ID, chunk.Content); err != nil {
			return nil, err
		}
		doc.Chunks = append(doc.Chunks, chunk)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return doc, nil
}

type rawChunk struct {
	text   string
	offset int
}

// chunkContent splits content on blank-line paragraph boundaries,
// packing consecutive paragraphs together up to chunkSize bytes so a
// single paragraph is never split mid-sentence unless it alone exceeds
// chunkSize, in which case it is cut at a chunkSize byte boundary.
func chunkContent(content string) []rawChunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	paragraphs := strings.Split(content, "\n\n")

	var out []rawChunk
	offset := 0
	var current strings.Builder

	flush := func(startOffset int) {
		if current.Len() == 0 {
			return
		}
		out = append(out, rawChunk{text: current.String(), offset: startOffset})
		current.Reset()
	}

	currentStart := 0
	for _, p := range paragraphs {
		pLen := len(p) + 2 // account for the stripped "\n\n"
		if len(p) > chunkSize {
			flush(currentStart)
			for i := 0; i < len(p); i += chunkSize {
				end := i + chunkSize
				if end > len(p) {
					end = len(p)
				}
				out = append(out, rawChunk{text: p[i:end], offset: offset + i})
			}
			offset += pLen
			currentStart = offset
			continue
		}
		if current.Len()+len(p) > chunkSize && current.Len() > 0 {
			flush(currentStart)
			currentStart = offset
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
		offset += pLen
	}
	flush(currentStart)
	return out
}

// SearchResult pairs a matched chunk with its ranked relevance score.
type SearchResult struct {
	Chunk models.KnowledgeChunk
	Score float64
}

// Search performs ranked retrieval over chunk content via the full-text
// index, falling back to a substring scan when the index yields nothing.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	clean := sanitizeFTSQuery(query)
	if clean == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT c.id, c.doc_id, c.content, c.offset_bytes, c.length_bytes, bm25(chunks_fts) AS score
		FROM chunks_fts f JOIN chunks c ON c.id = f.id
		WHERE chunks_fts MATCH ? ORDER BY score LIMIT ?`, clean, limit)
	if err == nil {
		defer rows.Close()
		var out []SearchResult
		for rows.Next() {
			var r SearchResult
			if err := rows.Scan(&r.Chunk.ID, &r.Chunk.DocID, &r.Chunk.Content, &r.Chunk.Offset, &r.Chunk.Length, &r.Score); err != nil {
				return nil, err
			}
			r.Score = -r.Score
			out = append(out, r)
		}
		if err := rows.Err(); err == nil && len(out) > 0 {
			return out, nil
		}
	}

	return s.searchFallback(ctx, query, limit)
}

func (s *Store) searchFallback(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, doc_id, content, offset_bytes, length_bytes FROM chunks
		WHERE content LIKE ? LIMIT ?`, "%"+query+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lowerQuery := strings.ToLower(query)
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.DocID, &r.Chunk.Content, &r.Chunk.Offset, &r.Chunk.Length); err != nil {
			return nil, err
		}
		matches := strings.Count(strings.ToLower(r.Chunk.Content), lowerQuery)
		r.Score = min(float64(matches), 5) / 5
		if r.Score == 0 {
			r.Score = 0.1
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

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

// GetDocument loads a document and all of its chunks.
func (s *Store) GetDocument(ctx context.Context, id string) (*models.KnowledgeDocument, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, source, created_at FROM documents WHERE id=?`, id)
	var doc models.KnowledgeDocument
	var createdAt string
	if err := row.Scan(&doc.ID, &doc.Name, &doc.Source, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	doc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	rows, err := s.db.QueryContext(ctx, `SELECT id, doc_id, content, offset_bytes, length_bytes FROM chunks WHERE doc_id=? ORDER BY offset_bytes`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c models.KnowledgeChunk
		if err := rows.Scan(&c.ID, &c.DocID, &c.Content, &c.Offset, &c.Length); err != nil {
			return nil, err
		}
		doc.Chunks = append(doc.Chunks, c)
	}
	return &doc, rows.Err()
}

// ListDocuments returns every ingested document without its chunk bodies.
func (s *Store) ListDocuments(ctx context.Context) ([]models.KnowledgeDocument, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, source, created_at FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.KnowledgeDocument
	for rows.Next() {
		var doc models.KnowledgeDocument
		var createdAt string
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Source, &createdAt); err != nil {
			return nil, err
		}
		doc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, doc)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document and its chunks (and their search index rows).
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks WHERE doc_id=?`, id)
	if err != nil {
		return err
	}
	var chunkIDs []string
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			rows.Close()
			return err
		}
		chunkIDs = append(chunkIDs, cid)
	}
	rows.Close()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, cid := range chunkIDs {
		if _, err := tx.Exec(`DELETE FROM chunks_fts WHERE id=?`, cid); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`DELETE FROM chunks WHERE doc_id=?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM documents WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return tx.Commit()
}
