package scoring

import (
	"math"
	"math/rand"
	"sync"
)

// WarmupQueries is the minimum number of queries a tenant must have logged
// before the bandit starts deviating from DefaultWeights, per spec's Open
// Question resolution: under-observed tenants keep the safe default rather
// than over-fitting to a handful of reward signals.
const WarmupQueries = 200

// banditArm is one of the six scoring weights, modeled as a Beta(alpha,
// beta) posterior over "does increasing this weight improve outcomes".
type banditArm struct {
	alpha float64
	beta  float64
}

// tenantBandit is the per-tenant bandit state: one arm per sub-score plus
// the running query count that gates warm-up.
type tenantBandit struct {
	mu      sync.Mutex
	arms    map[string]*banditArm
	queries int
}

func newTenantBandit() *tenantBandit {
	arms := make(map[string]*banditArm, 6)
	for _, name := range armNames {
		arms[name] = &banditArm{alpha: 1, beta: 1} // uniform prior
	}
	return &tenantBandit{arms: arms}
}

var armNames = []string{"relevance", "importance", "recency", "centrality", "diversity", "density"}

// BanditStore holds per-tenant Thompson-sampling bandit state. It is a
// service object rather than a package-level singleton, per §5/§9's
// prohibition on module-level mutable state; callers construct one and
// share it across requests for a given tenant population.
type BanditStore struct {
	mu       sync.Mutex
	tenants  map[string]*tenantBandit
}

// NewBanditStore creates an empty BanditStore.
func NewBanditStore() *BanditStore {
	return &BanditStore{tenants: make(map[string]*tenantBandit)}
}

func (b *BanditStore) tenant(tenantID string) *tenantBandit {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tenants[tenantID]
	if !ok {
		t = newTenantBandit()
		b.tenants[tenantID] = t
	}
	return t
}

// Weights returns the scoring weights to use for tenantID: DefaultWeights
// until the tenant has logged WarmupQueries queries, after which each
// weight is resampled from its Beta posterior and renormalized to sum to
// 1.0.
func (b *BanditStore) Weights(tenantID string) ScoringWeights {
	t := b.tenant(tenantID)
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.queries < WarmupQueries {
		return DefaultWeights()
	}

	samples := make(map[string]float64, len(armNames))
	total := 0.0
	for _, name := range armNames {
		arm := t.arms[name]
		s := sampleBeta(arm.alpha, arm.beta)
		samples[name] = s
		total += s
	}
	if total == 0 {
		return DefaultWeights()
	}
	return ScoringWeights{
		Relevance:  samples["relevance"] / total,
		Importance: samples["importance"] / total,
		Recency:    samples["recency"] / total,
		Centrality: samples["centrality"] / total,
		Diversity:  samples["diversity"] / total,
		Density:    samples["density"] / total,
	}
}

// RecordQuery increments tenantID's observed query count, advancing it
// toward (and past) the warm-up threshold.
func (b *BanditStore) RecordQuery(tenantID string) {
	t := b.tenant(tenantID)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queries++
}

// RecordReward updates tenantID's posterior for each sub-score using the
// contribution sub made to the composite score of an artifact whose
// retrieval was judged useful (reward=true, explicit feedback or the
// artifact later appearing as reflection provenance) or not (reward=false).
// A sub-score's contribution is weighted by its own value: a sub-score
// that was near zero for this candidate gets little credit or blame for
// the outcome.
func (b *BanditStore) RecordReward(tenantID string, sub SubScores, reward bool) {
	t := b.tenant(tenantID)
	t.mu.Lock()
	defer t.mu.Unlock()

	contributions := map[string]float64{
		"relevance":  sub.Relevance,
		"importance": sub.Importance,
		"recency":    sub.Recency,
		"centrality": sub.Centrality,
		"diversity":  sub.Diversity,
		"density":    sub.Density,
	}
	for name, weight := range contributions {
		if weight <= 0 {
			continue
		}
		arm := t.arms[name]
		if reward {
			arm.alpha += weight
		} else {
			arm.beta += weight
		}
	}
}

// sampleBeta draws from Beta(alpha, beta) via two independent Gamma draws:
// X ~ Gamma(alpha,1), Y ~ Gamma(beta,1), X/(X+Y) ~ Beta(alpha,beta). No
// multi-armed-bandit or Beta-distribution library appears anywhere in the
// retrieved corpus, so this is written out longhand over math/rand rather
// than pulled in from gonum or similar (see DESIGN.md).
func sampleBeta(alpha, beta float64) float64 {
	x := sampleGamma(alpha)
	y := sampleGamma(beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma draws from Gamma(shape, 1) using Marsaglia and Tsang's
// method (2000), valid for shape >= 1; shape < 1 is boosted via the
// standard Gamma(a) = Gamma(a+1)*U^(1/a) transform.
func sampleGamma(shape float64) float64 {
	if shape < 1 {
		u := rand.Float64()
		return sampleGamma(shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		x := rand.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rand.Float64()
		if u < 1-0.0331*(x*x)*(x*x) {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
