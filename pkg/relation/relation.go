// Package relation turns raw subject-predicate-object assertions from the
// model and the pattern extractor into the final relation list of an
// analysis run, and derives the relation graph from it. Predicates are
// normalized to a controlled vocabulary before merging so that the same
// fact phrased differently deduplicates to one relation.
package relation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/trama-ai/trama/pkg/common"
)

// associatedWeight caps the confidence of relations whose predicate
// matched no normalization rule.
const associatedWeight = 0.4

// DefaultConfidenceFloor is the consistency filter threshold applied when
// Params leaves ConfidenceFloor at zero.
const DefaultConfidenceFloor = 0.3

// Params contains configuration options for creating a new Engine.
type Params struct {
	// ConfidenceFloor drops merged relations scoring below it. Zero means
	// DefaultConfidenceFloor.
	ConfidenceFloor float64 `validate:"gte=0,lte=1"`
	// GeoCheck and TemporalCheck veto scored relations. They run after
	// merging and scoring, so overriding them never changes which
	// duplicates win. Nil means pass-through.
	GeoCheck      ConsistencyCheck
	TemporalCheck ConsistencyCheck
}

// Engine applies the normalize, merge and scoring policy for relations.
// It is stateless across calls and safe for concurrent use.
//
// Example usage:
//
//	engine, err := relation.New(relation.Params{})
//	if err != nil {
//		return err
//	}
//	relations := engine.Resolve(raw, entities)
//	graph := relation.BuildGraph(relations, entities)
type Engine struct {
	floor         float64
	geoCheck      ConsistencyCheck
	temporalCheck ConsistencyCheck
}

// New validates params and creates an Engine.
func New(params Params) (*Engine, error) {
	if err := validator.New().Struct(params); err != nil {
		return nil, fmt.Errorf("relation: invalid params: %w", err)
	}

	floor := params.ConfidenceFloor
	if floor == 0 {
		floor = DefaultConfidenceFloor
	}

	geo := params.GeoCheck
	if geo == nil {
		geo = passCheck
	}
	temporal := params.TemporalCheck
	if temporal == nil {
		temporal = passCheck
	}

	return &Engine{
		floor:         floor,
		geoCheck:      geo,
		temporalCheck: temporal,
	}, nil
}

// Resolve normalizes, merges and scores raw relations against the resolved
// entities of the same run. Duplicate triples are dropped, not averaged:
// the first occurrence in raw order wins, so callers that append
// model-sourced relations before pattern-sourced ones give the model
// precedence. Output order is deterministic regardless of input order.
func (e *Engine) Resolve(raw []common.RawRelation, entities []common.ResolvedEntity) []common.ResolvedRelation {
	byText := entityIndex(entities)

	merged := make([]common.ResolvedRelation, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, r := range raw {
		subject := strings.TrimSpace(r.Subject)
		object := strings.TrimSpace(r.Object)
		if subject == "" || object == "" {
			continue
		}

		predicate, matched := NormalizePredicate(r.Predicate)

		key := tripleKey(subject, predicate, object)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		rel := common.ResolvedRelation{
			Subject:    subject,
			Predicate:  predicate,
			Object:     object,
			Confidence: r.Confidence,
			Context:    r.Context,
		}
		if ent, ok := byText[strings.ToLower(subject)]; ok {
			rel.SubjectID = ent.ID
		}
		if ent, ok := byText[strings.ToLower(object)]; ok {
			rel.ObjectID = ent.ID
		}

		rel.Confidence = score(rel, matched)
		merged = append(merged, rel)
	}

	out := make([]common.ResolvedRelation, 0, len(merged))
	for _, rel := range merged {
		if rel.Confidence < e.floor {
			continue
		}
		if !e.geoCheck(rel) || !e.temporalCheck(rel) {
			continue
		}
		rel.ID, _ = gonanoid.New()
		out = append(out, rel)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		as, bs := strings.ToLower(a.Subject), strings.ToLower(b.Subject)
		if as != bs {
			return as < bs
		}
		if a.Predicate != b.Predicate {
			return a.Predicate < b.Predicate
		}
		return strings.ToLower(a.Object) < strings.ToLower(b.Object)
	})

	return out
}

// tripleKey builds the case-insensitive deduplication key. The predicate
// is already normalized when this runs.
func tripleKey(subject, predicate, object string) string {
	return strings.ToLower(subject) + "|" + predicate + "|" + strings.ToLower(object)
}

// entityIndex maps lowercase entity text to the first resolved entity
// carrying it. Entities arrive sorted by position, so the earliest mention
// binds.
func entityIndex(entities []common.ResolvedEntity) map[string]common.ResolvedEntity {
	byText := make(map[string]common.ResolvedEntity, len(entities))
	for _, ent := range entities {
		key := strings.ToLower(ent.Text)
		if _, ok := byText[key]; !ok {
			byText[key] = ent
		}
	}
	return byText
}
