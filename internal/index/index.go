// Package index stores skill embeddings in SQLite and ranks matches
// by cosine similarity. The corpus is tens of documents, so search
// scans every row instead of keeping an approximate-neighbor
// structure.
package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/aatumaykin/skillbot/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS skill_vectors (
	id        TEXT PRIMARY KEY,
	document  TEXT NOT NULL,
	embedding BLOB NOT NULL
)`

// Embedder produces embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Match is one search hit.
type Match struct {
	ID       string
	Score    float64
	Document string
}

// Index is the persistent vector store.
type Index struct {
	db       *sql.DB
	embedder Embedder
	logger   *logger.Logger
}

// New opens or creates the index database at path.
func New(path string, embedder Embedder, log *logger.Logger) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index schema: %w", err)
	}

	return &Index{db: db, embedder: embedder, logger: log}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

// Index embeds text and upserts it under id.
func (ix *Index) Index(ctx context.Context, id, text string) error {
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed document: %w", err)
	}

	_, err = ix.db.ExecContext(ctx,
		`INSERT INTO skill_vectors (id, document, embedding) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET document = excluded.document, embedding = excluded.embedding`,
		id, text, encodeVector(vec))
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	ix.logger.Debug("Indexed document", logger.Field{Key: "id", Value: id})

	return nil
}

// Search returns the topK closest documents ordered by descending
// similarity.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 3
	}

	queryVec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := ix.db.QueryContext(ctx, `SELECT id, document, embedding FROM skill_vectors`)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			id, document string
			blob         []byte
		)
		if err := rows.Scan(&id, &document, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan index row: %w", err)
		}
		matches = append(matches, Match{
			ID:       id,
			Document: document,
			Score:    cosine(queryVec, decodeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read index rows: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}

	return matches, nil
}

// Delete removes a document. Unknown ids are not an error.
func (ix *Index) Delete(ctx context.Context, id string) error {
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM skill_vectors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	return nil
}

// Clear removes every document.
func (ix *Index) Clear(ctx context.Context) error {
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM skill_vectors`); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}

	ix.logger.Info("Cleared semantic index")

	return nil
}

// Count returns the number of indexed documents.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM skill_vectors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}

	return n, nil
}

// cosine computes similarity between two vectors; mismatched or zero
// vectors score 0.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v
}
