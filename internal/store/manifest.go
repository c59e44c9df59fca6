package store

import (
	"fmt"
	"strconv"
	"time"
)

// Manifest describes a published generation.
type Manifest struct {
	Stamp         string    `json:"stamp"`
	ChunkCount    int       `json:"chunk_count"`
	DocumentCount int       `json:"document_count"`
	Dimensions    int       `json:"dimensions"`
	Model         string    `json:"model"`
	BuiltAt       time.Time `json:"built_at"`
}

const (
	manifestStamp         = "stamp"
	manifestChunkCount    = "chunk_count"
	manifestDocumentCount = "document_count"
	manifestDimensions    = "dimensions"
	manifestModel         = "model"
	manifestBuiltAt       = "built_at"
)

// WriteManifest replaces the manifest rows.
func (db *DB) WriteManifest(m Manifest) error {
	tx, err := db.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	values := map[string]string{
		manifestStamp:         m.Stamp,
		manifestChunkCount:    strconv.Itoa(m.ChunkCount),
		manifestDocumentCount: strconv.Itoa(m.DocumentCount),
		manifestDimensions:    strconv.Itoa(m.Dimensions),
		manifestModel:         m.Model,
		manifestBuiltAt:       m.BuiltAt.UTC().Format(time.RFC3339),
	}
	for key, value := range values {
		if _, err := tx.Exec("INSERT OR REPLACE INTO manifest (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("failed to write manifest %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest rows.
func (db *DB) ReadManifest() (Manifest, error) {
	rows, err := db.sqlDB.Query("SELECT key, value FROM manifest")
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to query manifest: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Manifest{}, fmt.Errorf("failed to scan manifest: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return Manifest{}, fmt.Errorf("error iterating manifest: %w", err)
	}
	if values[manifestStamp] == "" {
		return Manifest{}, fmt.Errorf("%w: manifest has no stamp", ErrStaleArtifacts)
	}

	m := Manifest{
		Stamp: values[manifestStamp],
		Model: values[manifestModel],
	}
	if m.ChunkCount, err = atoiField(values, manifestChunkCount); err != nil {
		return Manifest{}, err
	}
	if m.DocumentCount, err = atoiField(values, manifestDocumentCount); err != nil {
		return Manifest{}, err
	}
	if m.Dimensions, err = atoiField(values, manifestDimensions); err != nil {
		return Manifest{}, err
	}
	if v := values[manifestBuiltAt]; v != "" {
		if m.BuiltAt, err = time.Parse(time.RFC3339, v); err != nil {
			return Manifest{}, fmt.Errorf("invalid manifest built_at %q: %w", v, err)
		}
	}
	return m, nil
}

func atoiField(values map[string]string, key string) (int, error) {
	n, err := strconv.Atoi(values[key])
	if err != nil {
		return 0, fmt.Errorf("invalid manifest %s %q: %w", key, values[key], err)
	}
	return n, nil
}
