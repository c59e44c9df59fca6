package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/blevesearch/bleve/v2/mapping"
)

func sampleArtifacts() Artifacts {
	chunks := []Chunk{
		{ID: 0, Text: "The employer terminated the contract without notice.", Source: "06_1.xml"},
		{ID: 1, Text: "Unfair dismissal claims are heard by the Commission.", Source: "06_1.xml"},
		{ID: 2, Text: "Negligence requires a duty of care owed to the plaintiff.", Source: "06_2.xml"},
		{ID: 3, Text: "The appeal concerning bail conditions was dismissed.", Source: "06_3.xml"},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	return Artifacts{Chunks: chunks, Vectors: vectors, DocumentCount: 3, Model: "test-model"}
}

func TestPublishAndOpen(t *testing.T) {
	root := t.TempDir()
	art := sampleArtifacts()

	gen, manifest, err := Publish(root, art, 2)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if manifest.ChunkCount != 4 || manifest.Dimensions != 3 || manifest.DocumentCount != 3 {
		t.Errorf("unexpected manifest: %+v", manifest)
	}
	if manifest.Stamp != ComputeStamp(art.Chunks) {
		t.Errorf("manifest stamp does not match chunk list")
	}

	st, err := Open(root, MetricL2)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer st.Close()

	if st.Generation().Name != gen.Name {
		t.Errorf("opened generation %s, published %s", st.Generation().Name, gen.Name)
	}
	if st.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", st.Len())
	}
	if stats := st.DBStats(); stats.ChunkCount != 4 || stats.VectorCount != 4 || stats.SourceCount != 3 || stats.SizeBytes <= 0 {
		t.Errorf("DBStats() = %+v, want 4 chunks, 4 vectors, 3 sources", stats)
	}

	// Id alignment: chunk, source and vector all agree on position.
	for i, want := range art.Chunks {
		got, err := st.Chunk(i)
		if err != nil {
			t.Fatalf("Chunk(%d) error = %v", i, err)
		}
		if got != want {
			t.Errorf("Chunk(%d) = %+v, want %+v", i, got, want)
		}
		if st.Sources()[i] != want.Source {
			t.Errorf("Sources()[%d] = %s, want %s", i, st.Sources()[i], want.Source)
		}
		hits, err := st.Dense().Search(art.Vectors[i], 1)
		if err != nil {
			t.Fatal(err)
		}
		if hits[0].ID != i || hits[0].Distance != 0 {
			t.Errorf("nearest to vector %d = %+v", i, hits[0])
		}
		text, err := st.Lexical().StoredText(i)
		if err != nil {
			t.Fatalf("StoredText(%d) error = %v", i, err)
		}
		if text != got.Text {
			t.Errorf("StoredText(%d) = %q, want %q", i, text, got.Text)
		}
	}

	lex, err := st.Lexical().Search("commission", 10, OperatorAnd)
	if err != nil {
		t.Fatalf("lexical Search() error = %v", err)
	}
	if len(lex) != 1 || lex[0].ID != 1 || lex[0].Score <= 0 {
		t.Errorf("lexical hits = %+v, want only chunk 1", lex)
	}

	if _, err := st.Chunk(4); !errors.Is(err, ErrStaleArtifacts) {
		t.Errorf("out of range chunk should be ErrStaleArtifacts, got %v", err)
	}
}

func TestLexicalMappingUsesBM25(t *testing.T) {
	m, ok := buildIndexMapping().(*mapping.IndexMappingImpl)
	if !ok {
		t.Fatalf("buildIndexMapping() returned %T", buildIndexMapping())
	}
	if m.ScoringModel != "bm25" {
		t.Errorf("ScoringModel = %q, want bm25", m.ScoringModel)
	}
	fm := m.DefaultMapping.Properties[lexicalField].Fields[0]
	if !fm.Store || !fm.Index {
		t.Errorf("content field mapping = %+v, want stored and indexed", fm)
	}
}

func TestLexicalOperator(t *testing.T) {
	root := t.TempDir()
	if _, _, err := Publish(root, sampleArtifacts(), 1); err != nil {
		t.Fatal(err)
	}
	st, err := Open(root, MetricL2)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	and, err := st.Lexical().Search("negligence bail", 10, OperatorAnd)
	if err != nil {
		t.Fatal(err)
	}
	if len(and) != 0 {
		t.Errorf("and query should match nothing, got %+v", and)
	}

	or, err := st.Lexical().Search("negligence bail", 10, OperatorOr)
	if err != nil {
		t.Fatal(err)
	}
	ids := map[int]bool{}
	for _, h := range or {
		ids[h.ID] = true
	}
	if len(or) != 2 || !ids[2] || !ids[3] {
		t.Errorf("or query hits = %+v, want chunks 2 and 3", or)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	root := t.TempDir()
	if _, _, err := Publish(root, sampleArtifacts(), 1); err != nil {
		t.Fatal(err)
	}

	first, err := Open(root, MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Open(root, MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	defer second.Close()

	if !reflect.DeepEqual(first.Sources(), second.Sources()) || first.Manifest() != second.Manifest() {
		t.Error("two loads of the same generation differ")
	}
	q := []float32{0.5, 0.5, 0}
	a, _ := first.Dense().Search(q, 4)
	b, _ := second.Dense().Search(q, 4)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("dense results differ: %v vs %v", a, b)
	}
}

func TestOpenNotIndexed(t *testing.T) {
	if _, err := Open(t.TempDir(), MetricL2); !errors.Is(err, ErrNotIndexed) {
		t.Fatalf("expected ErrNotIndexed, got %v", err)
	}
}

func TestOpenMissingGeneration(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, currentFile), []byte("deadbeef-1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(root, MetricL2); !errors.Is(err, ErrNotIndexed) {
		t.Fatalf("expected ErrNotIndexed, got %v", err)
	}
}

func TestOpenDetectsStaleLexicalStamp(t *testing.T) {
	root := t.TempDir()
	gen, _, err := Publish(root, sampleArtifacts(), 1)
	if err != nil {
		t.Fatal(err)
	}

	lex, err := OpenLexicalIndexWritable(gen.LexicalPath())
	if err != nil {
		t.Fatal(err)
	}
	if err := lex.SetStamp("0000"); err != nil {
		t.Fatal(err)
	}
	lex.Close()

	if _, err := Open(root, MetricL2); !errors.Is(err, ErrStaleArtifacts) {
		t.Fatalf("expected ErrStaleArtifacts, got %v", err)
	}
}

func TestOpenDetectsStaleManifest(t *testing.T) {
	root := t.TempDir()
	gen, manifest, err := Publish(root, sampleArtifacts(), 1)
	if err != nil {
		t.Fatal(err)
	}

	db, err := OpenDB(gen.DatabasePath())
	if err != nil {
		t.Fatal(err)
	}
	manifest.ChunkCount = 5
	if err := db.WriteManifest(manifest); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := Open(root, MetricL2); !errors.Is(err, ErrStaleArtifacts) {
		t.Fatalf("expected ErrStaleArtifacts, got %v", err)
	}
}

func TestPublishEmptyCorpus(t *testing.T) {
	root := t.TempDir()
	if _, _, err := Publish(root, Artifacts{}, 1); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
	if _, err := Current(root); !errors.Is(err, ErrNotIndexed) {
		t.Errorf("empty build must not publish, got %v", err)
	}
}

func TestPublishSwapsAndPrunes(t *testing.T) {
	root := t.TempDir()
	art := sampleArtifacts()

	var names []string
	for i := 0; i < 3; i++ {
		art.Chunks[0].Text = art.Chunks[0].Text + " again"
		gen, _, err := Publish(root, art, 2)
		if err != nil {
			t.Fatalf("Publish() #%d error = %v", i, err)
		}
		names = append(names, gen.Name)
	}

	cur, err := Current(root)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Name != names[2] {
		t.Errorf("CURRENT = %s, want newest %s", cur.Name, names[2])
	}

	entries, err := os.ReadDir(filepath.Join(root, generationsDir))
	if err != nil {
		t.Fatal(err)
	}
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	if len(left) != 2 {
		t.Fatalf("generations on disk = %v, want 2", left)
	}
	if _, err := os.Stat(filepath.Join(root, generationsDir, names[0])); !os.IsNotExist(err) {
		t.Errorf("oldest generation %s should be pruned", names[0])
	}
}

func TestOpenKeepsReadingOwnGeneration(t *testing.T) {
	root := t.TempDir()
	art := sampleArtifacts()
	if _, _, err := Publish(root, art, 5); err != nil {
		t.Fatal(err)
	}
	st, err := Open(root, MetricL2)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	art.Chunks = art.Chunks[:2]
	art.Vectors = art.Vectors[:2]
	if _, _, err := Publish(root, art, 5); err != nil {
		t.Fatal(err)
	}

	if st.Len() != 4 {
		t.Errorf("open store changed underneath: Len() = %d", st.Len())
	}
	if _, err := st.Lexical().Search("bail", 5, OperatorAnd); err != nil {
		t.Errorf("old generation unreadable after republish: %v", err)
	}
}
