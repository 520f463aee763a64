package retrieval

import (
	"context"
	"sort"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/scoring"
)

// lexicalPoolMultiplier widens the FTS5 candidate pool lexicalPrefilter
// pulls before rescoring it with scoring.LexicalScorer, so Match-1's final
// top-k reflects the same BM25 sparse-vector math Match-3's bandit and
// pkg/semanticrouter use, not SQLite's own FTS5 rank weighting.
const lexicalPoolMultiplier = 4

// lexicalPrefilter runs Match-1: pulls a wider pool via
// core.SQLiteStore.HybridSearch's FTS5 text-only path, then rescores it with
// scoring.LexicalScorer so every lexical ranking in RAE (Match-1 here,
// Match-3's bandit, pkg/semanticrouter's route matching) shares the one BM25
// implementation rather than FTS5's ranking disagreeing with it.
func (p *Pipeline) lexicalPrefilter(ctx context.Context, q Query, k int) ([]core.ScoredArtifact, error) {
	if q.Text == "" {
		return nil, nil
	}
	opts := core.HybridSearchOptions{
		SearchOptions: core.SearchOptions{
			TenantID: q.TenantID,
			Project:  q.Project,
			Layers:   q.Layers,
			TopK:     k * lexicalPoolMultiplier,
			Filter:   q.Filter,
		},
	}
	pool, err := p.Store.HybridSearch(ctx, nil, q.Text, opts)
	if err != nil || len(pool) == 0 {
		return pool, err
	}

	corpus := make([]string, len(pool))
	for i, a := range pool {
		corpus[i] = a.Content
	}
	scorer := scoring.NewLexicalScorer(corpus)
	scores := scorer.Score(q.Text, corpus)
	for i := range pool {
		pool[i].Score = scores[i]
	}

	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Score > pool[j].Score })
	if len(pool) > k {
		pool = pool[:k]
	}
	return pool, nil
}
