package decay

import (
	"errors"
	"math"
	"testing"
)

func TestClassifyZone(t *testing.T) {
	cases := []struct {
		days float64
		want Zone
	}{
		{0, ZoneProtected},
		{6.9, ZoneProtected},
		{7, ZoneNormal},
		{15, ZoneNormal},
		{30, ZoneNormal},
		{30.1, ZoneAccelerated},
		{100, ZoneAccelerated},
	}
	for _, c := range cases {
		if got := ClassifyZone(c.days); got != c.want {
			t.Errorf("ClassifyZone(%v) = %v, want %v", c.days, got, c.want)
		}
	}
}

func TestApplyDecayNeverDropsBelowFloor(t *testing.T) {
	got, err := ApplyDecay(0.02, 0.5, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got < MinImportance {
		t.Errorf("expected floor of %v, got %v", MinImportance, got)
	}
}

func TestApplyDecayZeroBaseRateDisablesDecay(t *testing.T) {
	got, err := ApplyDecay(0.8, 0, 365)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0.8 {
		t.Errorf("expected base_rate=0 to leave importance unchanged, got %v", got)
	}
}

func TestApplyDecayRejectsNegativeBaseRate(t *testing.T) {
	_, err := ApplyDecay(0.5, -0.1, 10)
	if !errors.Is(err, ErrNegativeBaseRate) {
		t.Fatalf("expected ErrNegativeBaseRate, got %v", err)
	}
}

func TestProtectedZoneDecaysSlowerThanNormal(t *testing.T) {
	protected, _ := ApplyDecay(0.9, 0.1, 3)
	normal, _ := ApplyDecay(0.9, 0.1, 15)
	if protected <= normal {
		t.Errorf("expected protected zone (recently used) to decay slower than normal: protected=%v normal=%v", protected, normal)
	}
}

func TestAcceleratedZoneDecaysFasterWithAge(t *testing.T) {
	at31, _ := ApplyDecay(0.9, 0.1, 31)
	at300, _ := ApplyDecay(0.9, 0.1, 300)
	if at300 >= at31 {
		t.Errorf("expected the accelerated zone's rate to keep increasing with age: at31=%v at300=%v", at31, at300)
	}
}

func TestDefaultImportanceWeightsAreValid(t *testing.T) {
	if err := DefaultImportanceWeights().Validate(); err != nil {
		t.Fatalf("default weights should validate, got: %v", err)
	}
}

func TestValidateImportanceWeightsRejectsBadSum(t *testing.T) {
	w := ImportanceWeights{Recency: 0.5, Frequency: 0.5, Centrality: 0.5}
	if err := w.Validate(); err == nil {
		t.Error("expected error for weights not summing to 1.0")
	}
}

func TestRecombineImportanceFullSignalScoresNearOne(t *testing.T) {
	w := DefaultImportanceWeights()
	in := Inputs{
		Recency:        1.0,
		AccessCount:    100,
		Centrality:     1.0,
		QueryRelevance: 1.0,
		Rating:         1.0,
		Consolidated:   true,
		ManualBoost:    1.0,
	}
	score := RecombineImportance(in, w)
	if math.Abs(score-1.0) > 1e-9 {
		t.Errorf("expected a fully maxed-out artifact to score ~1.0, got %v", score)
	}
}

func TestRecombineImportanceNoSignalScoresNeutralRatingOnly(t *testing.T) {
	w := DefaultImportanceWeights()
	score := RecombineImportance(Inputs{}, w)
	// A zero Rating is neutral: it remaps to 0.5, times the 0.10 rating weight.
	if math.Abs(score-0.05) > 1e-9 {
		t.Errorf("expected a zero-signal artifact to score 0.05, got %v", score)
	}
}

func TestRecombineImportanceNegativeRatingFloorsAtZero(t *testing.T) {
	w := DefaultImportanceWeights()
	withBadRating := RecombineImportance(Inputs{Rating: -1}, w)
	if withBadRating != 0 {
		t.Errorf("expected a -1 rating to contribute 0, not negative, got %v", withBadRating)
	}
}

func TestTickCombinesRecombinationAndDecay(t *testing.T) {
	w := DefaultImportanceWeights()
	in := Inputs{Recency: 1.0, AccessCount: 50, Centrality: 0.5, QueryRelevance: 0.5, Rating: 0.5, ManualBoost: 0.5}
	got, err := Tick(in, w, 0.01, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	baseline := RecombineImportance(in, w)
	if got >= baseline {
		t.Errorf("expected the tick's decay step to reduce the recombined baseline: baseline=%v got=%v", baseline, got)
	}
}
