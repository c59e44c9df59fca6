package retrieval

import (
	"sort"

	"github.com/DreamCats/caseindex/internal/store"
)

// Normalization selects how per-source scores are scaled before weighting.
type Normalization string

const (
	// NormalizeNone uses similarity 1-distance and raw lexical scores.
	NormalizeNone Normalization = "none"
	// NormalizeMinMax scales each source to [0,1] over its own returned set.
	NormalizeMinMax Normalization = "minmax"
)

// Options configures score fusion
type Options struct {
	DenseWeight   float64
	LexicalWeight float64
	Normalize     Normalization
	Operator      store.Operator
}

// DefaultOptions returns equal weights with no normalization
func DefaultOptions() Options {
	return Options{
		DenseWeight:   0.5,
		LexicalWeight: 0.5,
		Normalize:     NormalizeNone,
		Operator:      store.OperatorAnd,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.DenseWeight == 0 && o.LexicalWeight == 0 {
		o.DenseWeight = def.DenseWeight
		o.LexicalWeight = def.LexicalWeight
	}
	if o.Normalize == "" {
		o.Normalize = def.Normalize
	}
	if o.Operator == "" {
		o.Operator = def.Operator
	}
	return o
}

// Candidate is a chunk id with its fused first-stage score
type Candidate struct {
	ID           int     `json:"id"`
	Score        float64 `json:"score"`
	DenseScore   float64 `json:"dense_score"`
	LexicalScore float64 `json:"lexical_score"`
}

// Fuse merges dense and lexical hits into at most topK candidates ordered by
// fused score descending, ties broken by ascending id. An id found by only one
// source gets only that source's contribution.
func Fuse(dense []store.DenseHit, lexical []store.LexicalHit, topK int, opts Options) []Candidate {
	opts = opts.withDefaults()

	denseScores := make([]float64, len(dense))
	for i, h := range dense {
		denseScores[i] = 1 - h.Distance
	}
	lexicalScores := make([]float64, len(lexical))
	for i, h := range lexical {
		lexicalScores[i] = h.Score
	}
	if opts.Normalize == NormalizeMinMax {
		minMax(denseScores)
		minMax(lexicalScores)
	}

	acc := make(map[int]*Candidate, len(dense)+len(lexical))
	get := func(id int) *Candidate {
		c, ok := acc[id]
		if !ok {
			c = &Candidate{ID: id}
			acc[id] = c
		}
		return c
	}
	for i, h := range dense {
		c := get(h.ID)
		c.DenseScore += denseScores[i]
		c.Score += opts.DenseWeight * denseScores[i]
	}
	for i, h := range lexical {
		c := get(h.ID)
		c.LexicalScore += lexicalScores[i]
		c.Score += opts.LexicalWeight * lexicalScores[i]
	}

	out := make([]Candidate, 0, len(acc))
	for _, c := range acc {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// minMax rescales scores in place to [0,1]. A single or constant set maps to 1.
func minMax(scores []float64) {
	if len(scores) == 0 {
		return
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		lo = min(lo, s)
		hi = max(hi, s)
	}
	span := hi - lo
	for i, s := range scores {
		if span == 0 {
			scores[i] = 1
			continue
		}
		scores[i] = (s - lo) / span
	}
}
