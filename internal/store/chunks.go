package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Chunk is one retrieval unit. IDs are dense and zero-based.
type Chunk struct {
	ID     int    `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// ComputeStamp hashes the ordered (source, text) pairs of a chunk list.
// Two artifact sets built from the same chunk list share a stamp.
func ComputeStamp(chunks []Chunk) string {
	h := sha256.New()
	for _, c := range chunks {
		fmt.Fprintf(h, "%d:%s\x00%d:%s\x00", len(c.Source), c.Source, len(c.Text), c.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// InsertChunks writes chunks and their vectors in one transaction.
func (db *DB) InsertChunks(chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	tx, err := db.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	chunkStmt, err := tx.Prepare("INSERT INTO chunks (id, text, source) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare chunk statement: %w", err)
	}
	defer chunkStmt.Close()

	vectorStmt, err := tx.Prepare("INSERT INTO vectors (id, dim, vector) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare vector statement: %w", err)
	}
	defer vectorStmt.Close()

	for i, c := range chunks {
		if c.ID != i {
			return fmt.Errorf("chunk at position %d has id %d", i, c.ID)
		}
		if _, err := chunkStmt.Exec(c.ID, c.Text, c.Source); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.ID, err)
		}
		if _, err := vectorStmt.Exec(c.ID, len(vectors[i]), vectorToBlob(vectors[i])); err != nil {
			return fmt.Errorf("failed to insert vector %d: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// LoadChunks returns every chunk ordered by id.
func (db *DB) LoadChunks() ([]Chunk, error) {
	rows, err := db.sqlDB.Query("SELECT id, text, source FROM chunks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.Text, &c.Source); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}
	return chunks, nil
}

// LoadVectors returns every vector ordered by id.
func (db *DB) LoadVectors() ([][]float32, error) {
	rows, err := db.sqlDB.Query("SELECT id, dim, vector FROM vectors ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var vectors [][]float32
	for rows.Next() {
		var id, dim int
		var blob []byte
		if err := rows.Scan(&id, &dim, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan vector: %w", err)
		}
		if id != len(vectors) {
			return nil, fmt.Errorf("%w: vector ids not dense at %d", ErrStaleArtifacts, id)
		}
		vector, err := blobToVector(blob)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", id, err)
		}
		if len(vector) != dim {
			return nil, fmt.Errorf("vector %d dimension mismatch: expected %d, got %d", id, dim, len(vector))
		}
		vectors = append(vectors, vector)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vectors: %w", err)
	}
	return vectors, nil
}

// Sources returns the distinct document ids that contributed chunks, in id order.
func (db *DB) Sources() ([]string, error) {
	rows, err := db.sqlDB.Query("SELECT source FROM chunks GROUP BY source ORDER BY MIN(id)")
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}
