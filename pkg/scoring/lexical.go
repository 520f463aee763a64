package scoring

import (
	"context"

	semanticrouter "github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/semantic-router"
)

// LexicalScorer is the Match-1 stage: a cheap, O(1)-per-candidate lexical
// prefilter. Built on the BM25 sparse encoder also used for Match-1 sparse
// support in pkg/semanticrouter, so both consumers share one scoring
// implementation instead of two competing BM25 variants.
type LexicalScorer struct {
	encoder *semanticrouter.BM25Encoder
}

// NewLexicalScorer builds a LexicalScorer and fits its BM25 encoder over
// corpus (the content of every artifact currently in scope). Fit must be
// re-run whenever the corpus changes materially; the scorer does not track
// updates incrementally.
func NewLexicalScorer(corpus []string) *LexicalScorer {
	encoder := semanticrouter.NewBM25Encoder()
	_ = encoder.Fit(context.Background(), corpus) //nolint:errcheck // BM25Encoder.Fit never returns a non-nil error
	return &LexicalScorer{encoder: encoder}
}

// Score returns the BM25 relevance of query against each entry in corpus,
// in the order bound at construction time. A higher score means a
// stronger lexical match; callers sort descending and keep the top K1.
func (s *LexicalScorer) Score(query string, corpus []string) []float64 {
	querySparse := s.encoder.EncodeSparse(query)
	scores := make([]float64, len(corpus))
	for i, doc := range corpus {
		docSparse := s.encoder.EncodeSparse(doc)
		scores[i] = semanticrouter.SparseSimilarity(querySparse, docSparse)
	}
	return scores
}
