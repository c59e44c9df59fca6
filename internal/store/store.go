// Package store persists and loads the artifacts of an indexed corpus: the
// chunk list, the source list, the dense vectors and the lexical index.
//
// Artifacts are written into a fresh generation directory and published by
// swapping a CURRENT pointer, so readers never observe a partial build.
package store

import (
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	// ErrNotIndexed means no complete artifact set has been published.
	ErrNotIndexed = errors.New("corpus not indexed")
	// ErrStaleArtifacts means the persisted artifacts disagree with each other.
	ErrStaleArtifacts = errors.New("index artifacts are inconsistent")
	// ErrEmptyCorpus means a build produced no chunks.
	ErrEmptyCorpus = errors.New("corpus produced no chunks")
)

// Artifacts is the in-memory result of an index build, ready to publish.
type Artifacts struct {
	Chunks        []Chunk
	Vectors       [][]float32
	DocumentCount int
	Model         string
}

// Publish writes artifacts into a new generation under root, swaps CURRENT to
// it, and prunes old generations down to keep.
func Publish(root string, art Artifacts, keep int) (Generation, Manifest, error) {
	if len(art.Chunks) == 0 {
		return Generation{}, Manifest{}, ErrEmptyCorpus
	}
	if len(art.Chunks) != len(art.Vectors) {
		return Generation{}, Manifest{}, fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(art.Chunks), len(art.Vectors))
	}

	now := time.Now()
	manifest := Manifest{
		Stamp:         ComputeStamp(art.Chunks),
		ChunkCount:    len(art.Chunks),
		DocumentCount: art.DocumentCount,
		Dimensions:    len(art.Vectors[0]),
		Model:         art.Model,
		BuiltAt:       now.UTC().Truncate(time.Second),
	}

	staging, err := newStaging(root)
	if err != nil {
		return Generation{}, Manifest{}, err
	}
	if err := writeGeneration(staging, art, manifest); err != nil {
		os.RemoveAll(staging.Dir)
		return Generation{}, Manifest{}, err
	}

	gen, err := promote(root, staging, manifest.Stamp, now)
	if err != nil {
		os.RemoveAll(staging.Dir)
		return Generation{}, Manifest{}, err
	}

	if keep > 0 {
		if _, err := Prune(root, keep); err != nil {
			return gen, manifest, fmt.Errorf("prune generations: %w", err)
		}
	}
	return gen, manifest, nil
}

func writeGeneration(gen Generation, art Artifacts, manifest Manifest) error {
	db, err := OpenDB(gen.DatabasePath())
	if err != nil {
		return err
	}
	if err := db.InsertChunks(art.Chunks, art.Vectors); err != nil {
		db.Close()
		return err
	}
	if err := db.WriteManifest(manifest); err != nil {
		db.Close()
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	lex, err := CreateLexicalIndex(gen.LexicalPath())
	if err != nil {
		return err
	}
	if err := lex.IndexChunks(art.Chunks); err != nil {
		lex.Close()
		return err
	}
	if err := lex.SetStamp(manifest.Stamp); err != nil {
		lex.Close()
		return fmt.Errorf("write lexical stamp: %w", err)
	}
	if err := lex.Close(); err != nil {
		return fmt.Errorf("close lexical index: %w", err)
	}
	return nil
}

// Store is a loaded, read-only generation.
type Store struct {
	gen      Generation
	manifest Manifest
	chunks   []Chunk
	dense    *DenseIndex
	lexical  *LexicalIndex
	dbStats  DBStats
}

// Open loads the current generation under root. It returns ErrNotIndexed when
// nothing is published and ErrStaleArtifacts when the artifacts disagree.
func Open(root string, metric Metric) (*Store, error) {
	gen, err := Current(root)
	if err != nil {
		return nil, err
	}

	db, err := OpenDB(gen.DatabasePath())
	if err != nil {
		return nil, err
	}
	manifest, chunks, vectors, stats, err := loadDB(db)
	db.Close()
	if err != nil {
		return nil, err
	}

	if err := checkConsistency(manifest, chunks, vectors); err != nil {
		return nil, err
	}

	dense, err := NewDenseIndex(vectors, metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStaleArtifacts, err)
	}

	lex, err := OpenLexicalIndex(gen.LexicalPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotIndexed, err)
	}
	if err := checkLexical(lex, manifest); err != nil {
		lex.Close()
		return nil, err
	}

	return &Store{
		gen:      gen,
		manifest: manifest,
		chunks:   chunks,
		dense:    dense,
		lexical:  lex,
		dbStats:  stats,
	}, nil
}

func loadDB(db *DB) (Manifest, []Chunk, [][]float32, DBStats, error) {
	manifest, err := db.ReadManifest()
	if err != nil {
		return Manifest{}, nil, nil, DBStats{}, err
	}
	chunks, err := db.LoadChunks()
	if err != nil {
		return Manifest{}, nil, nil, DBStats{}, err
	}
	vectors, err := db.LoadVectors()
	if err != nil {
		return Manifest{}, nil, nil, DBStats{}, err
	}
	stats, err := db.Stats()
	if err != nil {
		return Manifest{}, nil, nil, DBStats{}, err
	}
	return manifest, chunks, vectors, *stats, nil
}

func checkConsistency(m Manifest, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != m.ChunkCount || len(vectors) != m.ChunkCount {
		return fmt.Errorf("%w: manifest lists %d chunks, found %d chunks and %d vectors",
			ErrStaleArtifacts, m.ChunkCount, len(chunks), len(vectors))
	}
	for i, c := range chunks {
		if c.ID != i {
			return fmt.Errorf("%w: chunk ids not dense at position %d", ErrStaleArtifacts, i)
		}
	}
	if stamp := ComputeStamp(chunks); stamp != m.Stamp {
		return fmt.Errorf("%w: chunk list does not match manifest stamp", ErrStaleArtifacts)
	}
	return nil
}

func checkLexical(lex *LexicalIndex, m Manifest) error {
	stamp, err := lex.Stamp()
	if err != nil {
		return err
	}
	if stamp != m.Stamp {
		return fmt.Errorf("%w: lexical index stamp %q does not match manifest", ErrStaleArtifacts, stamp)
	}
	n, err := lex.DocCount()
	if err != nil {
		return err
	}
	if n != m.ChunkCount {
		return fmt.Errorf("%w: lexical index has %d documents, manifest lists %d", ErrStaleArtifacts, n, m.ChunkCount)
	}
	return nil
}

// Close releases the lexical index.
func (s *Store) Close() error {
	return s.lexical.Close()
}

// Generation returns the loaded generation.
func (s *Store) Generation() Generation { return s.gen }

// Manifest returns the manifest of the loaded generation.
func (s *Store) Manifest() Manifest { return s.manifest }

// DBStats returns row counts and file size of the artifact database.
func (s *Store) DBStats() DBStats { return s.dbStats }

// Len returns the number of chunks.
func (s *Store) Len() int { return len(s.chunks) }

// Chunk returns the chunk with the given id.
func (s *Store) Chunk(id int) (Chunk, error) {
	if id < 0 || id >= len(s.chunks) {
		return Chunk{}, fmt.Errorf("%w: chunk id %d out of range [0,%d)", ErrStaleArtifacts, id, len(s.chunks))
	}
	return s.chunks[id], nil
}

// Sources returns the chunk source list in id order.
func (s *Store) Sources() []string {
	out := make([]string, len(s.chunks))
	for i, c := range s.chunks {
		out[i] = c.Source
	}
	return out
}

// Dense returns the dense index.
func (s *Store) Dense() *DenseIndex { return s.dense }

// Lexical returns the lexical index.
func (s *Store) Lexical() *LexicalIndex { return s.lexical }
