package search

import (
	"time"

	"github.com/DreamCats/caseindex/internal/store"
)

// Status describes the generation an open store serves.
type Status struct {
	IndexDir      string    `json:"index_dir"`
	Generation    string    `json:"generation"`
	Stamp         string    `json:"stamp"`
	Model         string    `json:"model"`
	Dimensions    int       `json:"dimensions"`
	Chunks        int       `json:"chunks"`
	Documents     int       `json:"documents"`
	Sources       int       `json:"sources"`
	DatabaseBytes int64     `json:"database_bytes"`
	BuiltAt       time.Time `json:"built_at"`
}

// StatusOf summarizes st.
func StatusOf(indexDir string, st *store.Store) Status {
	m := st.Manifest()
	db := st.DBStats()
	return Status{
		IndexDir:      indexDir,
		Generation:    st.Generation().Name,
		Stamp:         m.Stamp,
		Model:         m.Model,
		Dimensions:    m.Dimensions,
		Chunks:        m.ChunkCount,
		Documents:     m.DocumentCount,
		Sources:       int(db.SourceCount),
		DatabaseBytes: db.SizeBytes,
		BuiltAt:       m.BuiltAt,
	}
}
