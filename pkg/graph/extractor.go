// Package graph: extractor.go defines the extensibility hook that turns raw
// memory text into graph triples, modeled on the fact-extraction hook used
// elsewhere in this codebase for turning conversation text into structured
// memories: the caller supplies the LLM call, this package owns validation,
// canonicalization, and idempotent persistence.
package graph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ExtractedTriple is a single subject-predicate-object relation proposed by
// an ExtractorFn, before canonicalization or persistence.
type ExtractedTriple struct {
	Subject    string  `json:"subject"`   // entity canonical name, not ID
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`    // entity canonical name, not ID
	Confidence float64 `json:"confidence"`
	SubjectType string `json:"subject_type,omitempty"`
	ObjectType  string `json:"object_type,omitempty"`
}

// ExtractorFn is a caller-provided hook that extracts structured relations
// from raw memory text. Implementations typically wrap an LLM structured-
// output call; a rule-based extractor is also valid (e.g. for tests).
type ExtractorFn func(ctx context.Context, text string) ([]ExtractedTriple, error)

// ExtractResult reports the outcome of an Extract call.
type ExtractResult struct {
	TriplesInserted int
	TriplesSkipped  int
	Errors          []error
}

// MinConfidence is the default floor below which an extracted triple is
// dropped rather than persisted; callers can override per extraction via
// Extractor.MinConfidence.
const MinConfidence = 0.5

// Extractor drives ExtractorFn over memory text and persists the resulting
// triples into a GraphStore, applying confidence filtering, entity name
// canonicalization, and the (subject, predicate, object) dedup rule.
type Extractor struct {
	graph       *GraphStore
	fn          ExtractorFn
	MinConfidence float64
}

// NewExtractor builds an Extractor over graph using fn to turn text into
// candidate triples.
func NewExtractor(graph *GraphStore, fn ExtractorFn) *Extractor {
	return &Extractor{graph: graph, fn: fn, MinConfidence: MinConfidence}
}

// canonicalize folds an entity name to its storage form: trimmed and
// lower-cased, so "Alice", "alice", and " Alice " all resolve to the same
// entity.
func canonicalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// entityID derives a stable, deterministic ID for a canonical entity name so
// that repeated extraction runs referring to the same entity converge on the
// same row instead of creating duplicates.
func entityID(tenantID, canonicalName string) string {
	sum := sha256.Sum256([]byte(tenantID + "|" + canonicalName))
	return "ent_" + hex.EncodeToString(sum[:8])
}

// Extract runs fn over text, then canonicalizes and persists every resulting
// triple whose confidence meets MinConfidence. sourceID is the memory
// artifact the text came from, recorded on each triple for provenance.
func (x *Extractor) Extract(ctx context.Context, tenantID, sourceID, text string) (*ExtractResult, error) {
	if x.fn == nil {
		return nil, fmt.Errorf("graph: no ExtractorFn configured")
	}
	if tenantID == "" {
		return nil, fmt.Errorf("graph: tenantID is required")
	}

	candidates, err := x.fn(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("graph: extractor error: %w", err)
	}

	minConfidence := x.MinConfidence
	if minConfidence <= 0 {
		minConfidence = MinConfidence
	}

	result := &ExtractResult{}

	for i, c := range candidates {
		if c.Confidence < minConfidence {
			result.TriplesSkipped++
			continue
		}
		if c.Subject == "" || c.Object == "" || c.Predicate == "" {
			result.TriplesSkipped++
			result.Errors = append(result.Errors, fmt.Errorf("triple[%d]: missing subject, predicate, or object", i))
			continue
		}

		subjectEntity, err := x.ensureEntity(ctx, tenantID, c.Subject, c.SubjectType)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("triple[%d]: subject: %w", i, err))
			continue
		}
		objectEntity, err := x.ensureEntity(ctx, tenantID, c.Object, c.ObjectType)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("triple[%d]: object: %w", i, err))
			continue
		}

		triple := &GraphTriple{
			ID:         uuid.NewString(),
			TenantID:   tenantID,
			Subject:    subjectEntity.ID,
			Predicate:  strings.ToUpper(strings.TrimSpace(c.Predicate)),
			Object:     objectEntity.ID,
			Confidence: c.Confidence,
			SourceID:   sourceID,
		}

		if err := x.graph.UpsertTriple(ctx, triple); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("triple[%d]: %w", i, err))
			continue
		}
		result.TriplesInserted++
	}

	return result, nil
}

// ensureEntity looks up an entity by its canonical name, creating it if this
// is the first time the name has been seen for tenantID. Idempotent: calling
// it twice for the same name returns the same entity.
func (x *Extractor) ensureEntity(ctx context.Context, tenantID, rawName, entityType string) (*Entity, error) {
	name := canonicalize(rawName)
	if name == "" {
		return nil, fmt.Errorf("empty entity name")
	}

	if existing, err := x.graph.GetEntityByName(ctx, tenantID, name); err == nil {
		return existing, nil
	}

	entity := &Entity{
		ID:       entityID(tenantID, name),
		TenantID: tenantID,
		Name:     name,
		Type:     entityType,
	}
	if err := x.graph.UpsertEntity(ctx, entity); err != nil {
		// Another concurrent extraction may have just created it.
		if existing, getErr := x.graph.GetEntityByName(ctx, tenantID, name); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return entity, nil
}
