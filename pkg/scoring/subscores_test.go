package scoring

import (
	"errors"
	"math"
	"testing"
)

func TestRelevanceRejectsDimensionMismatch(t *testing.T) {
	_, err := Relevance([]float32{1, 0}, []float32{1, 0, 0}, 0.5)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestRelevanceIdenticalVectors(t *testing.T) {
	score, err := Relevance([]float32{1, 0, 0}, []float32{1, 0, 0}, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 0.8*1.0 + 0.2*0.5
	if math.Abs(score-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, score)
	}
}

func TestRecencyDecaysWithAgeAndSlowsWithUsage(t *testing.T) {
	fresh := Recency(0.05, 0, 0)
	if math.Abs(fresh-1.0) > 1e-9 {
		t.Errorf("expected a zero-age artifact to score 1.0, got %v", fresh)
	}

	unused := Recency(0.05, 30, 0)
	frequentlyUsed := Recency(0.05, 30, 1000)
	if frequentlyUsed <= unused {
		t.Errorf("expected frequent usage to slow decay: unused=%v frequentlyUsed=%v", unused, frequentlyUsed)
	}
}

func TestCentralityNormalizesToMax(t *testing.T) {
	normalized := Centrality([]float64{0.1, 0.2, 0.4})
	if math.Abs(normalized[2]-1.0) > 1e-9 {
		t.Errorf("expected the max score to normalize to 1.0, got %v", normalized[2])
	}
	if math.Abs(normalized[0]-0.25) > 1e-9 {
		t.Errorf("expected 0.1/0.4 = 0.25, got %v", normalized[0])
	}
}

func TestArtifactCentralityPicksBestMention(t *testing.T) {
	if got := ArtifactCentrality([]float64{0.2, 0.9, 0.1}); math.Abs(got-0.9) > 1e-9 {
		t.Errorf("expected the highest mentioned centrality, got %v", got)
	}
	if got := ArtifactCentrality(nil); got != 0 {
		t.Errorf("expected 0 for an artifact mentioning no entities, got %v", got)
	}
}

func TestDiversityPenalizesDuplicates(t *testing.T) {
	batch := [][]float32{{1, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	scores := Diversity(batch)
	if scores[0] > 0.01 {
		t.Errorf("expected a near-duplicate pair to score near 0 diversity, got %v", scores[0])
	}
	if scores[2] < 0.9 {
		t.Errorf("expected the orthogonal vector to score high diversity, got %v", scores[2])
	}
}

func TestDiversitySingletonBatch(t *testing.T) {
	scores := Diversity([][]float32{{1, 0, 0}})
	if scores[0] != 1 {
		t.Errorf("expected a singleton batch to score full diversity, got %v", scores[0])
	}
}

func TestDensityCapsAtCeiling(t *testing.T) {
	if got := Density(1000); got != 1.0 {
		t.Errorf("expected density to cap at 1.0, got %v", got)
	}
	if got := Density(250); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("expected 250/500 = 0.5, got %v", got)
	}
	if got := Density(0); got != 0 {
		t.Errorf("expected 0 tokens to score 0, got %v", got)
	}
}
