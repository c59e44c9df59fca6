package store

import (
	"fmt"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

const (
	lexicalField     = "content"
	stampInternalKey = "corpus_stamp"
	lexicalBatchSize = 500
	// Okapi BM25 with bleve defaults k1=1.2, b=0.75.
	lexicalScoring = "bm25"
)

// Operator selects how query terms combine in lexical search.
type Operator string

const (
	// OperatorAnd requires every analyzed query term to match.
	OperatorAnd Operator = "and"
	// OperatorOr matches documents containing any query term.
	OperatorOr Operator = "or"
)

// ParseOperator validates an operator name; empty selects OperatorAnd.
func ParseOperator(name string) (Operator, error) {
	switch Operator(name) {
	case "", OperatorAnd:
		return OperatorAnd, nil
	case OperatorOr:
		return OperatorOr, nil
	default:
		return "", fmt.Errorf("unknown lexical operator %q", name)
	}
}

// LexicalHit is a keyword match with its relevance score.
type LexicalHit struct {
	ID    int
	Score float64
}

type lexicalDoc struct {
	Content string `json:"content"`
}

// LexicalIndex is the keyword index over chunk text.
type LexicalIndex struct {
	index bleve.Index
}

// CreateLexicalIndex creates an empty index in dir, replacing anything there.
func CreateLexicalIndex(dir string) (*LexicalIndex, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("reset lexical index dir: %w", err)
	}
	index, err := bleve.New(dir, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &LexicalIndex{index: index}, nil
}

// OpenLexicalIndex opens an existing index read-only.
func OpenLexicalIndex(dir string) (*LexicalIndex, error) {
	index, err := bleve.OpenUsing(dir, map[string]interface{}{"read_only": true})
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &LexicalIndex{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = lexicalField
	indexMapping.ScoringModel = lexicalScoring

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = true
	contentField.Index = true
	contentField.IncludeTermVectors = false
	docMapping.AddFieldMappingsAt(lexicalField, contentField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// IndexChunks adds one document per chunk; the document id is the chunk id.
func (l *LexicalIndex) IndexChunks(chunks []Chunk) error {
	batch := l.index.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(strconv.Itoa(c.ID), lexicalDoc{Content: c.Text}); err != nil {
			return fmt.Errorf("index chunk %d: %w", c.ID, err)
		}
		if batch.Size() >= lexicalBatchSize {
			if err := l.index.Batch(batch); err != nil {
				return fmt.Errorf("flush lexical batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := l.index.Batch(batch); err != nil {
			return fmt.Errorf("flush lexical batch: %w", err)
		}
	}
	return nil
}

// SetStamp records the corpus stamp inside the index.
func (l *LexicalIndex) SetStamp(stamp string) error {
	return l.index.SetInternal([]byte(stampInternalKey), []byte(stamp))
}

// Stamp returns the corpus stamp recorded at build time.
func (l *LexicalIndex) Stamp() (string, error) {
	v, err := l.index.GetInternal([]byte(stampInternalKey))
	if err != nil {
		return "", fmt.Errorf("read lexical stamp: %w", err)
	}
	return string(v), nil
}

// DocCount returns the number of indexed documents.
func (l *LexicalIndex) DocCount() (int, error) {
	n, err := l.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("count lexical docs: %w", err)
	}
	return int(n), nil
}

// Search runs a match query over chunk content and returns up to k hits by score.
func (l *LexicalIndex) Search(query string, k int, op Operator) ([]LexicalHit, error) {
	if k <= 0 {
		return nil, nil
	}

	q := bleve.NewMatchQuery(query)
	q.SetField(lexicalField)
	if op == OperatorOr {
		q.SetOperator(blevequery.MatchQueryOperatorOr)
	} else {
		q.SetOperator(blevequery.MatchQueryOperatorAnd)
	}

	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	res, err := l.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	hits := make([]LexicalHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.Atoi(hit.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: lexical doc id %q is not a chunk id", ErrStaleArtifacts, hit.ID)
		}
		hits = append(hits, LexicalHit{ID: id, Score: hit.Score})
	}
	return hits, nil
}

// StoredText returns the content stored for chunk id.
func (l *LexicalIndex) StoredText(id int) (string, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{strconv.Itoa(id)}))
	req.Fields = []string{lexicalField}
	res, err := l.index.Search(req)
	if err != nil {
		return "", fmt.Errorf("lexical lookup %d: %w", id, err)
	}
	if len(res.Hits) == 0 {
		return "", fmt.Errorf("%w: chunk %d missing from lexical index", ErrStaleArtifacts, id)
	}
	text, ok := res.Hits[0].Fields[lexicalField].(string)
	if !ok {
		return "", fmt.Errorf("%w: chunk %d has no stored content", ErrStaleArtifacts, id)
	}
	return text, nil
}

// Close releases the index.
func (l *LexicalIndex) Close() error {
	return l.index.Close()
}

// OpenLexicalIndexWritable opens an existing index for modification.
func OpenLexicalIndexWritable(dir string) (*LexicalIndex, error) {
	index, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &LexicalIndex{index: index}, nil
}
