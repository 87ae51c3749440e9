package relation

import (
	"github.com/trama-ai/trama/pkg/common"
	"github.com/trama-ai/trama/pkg/gazetteer"
)

// Additive confidence boosts. Each is capped at 1.0 on application, so a
// relation earning both never exceeds full confidence.
const (
	pairBoost = 0.1
	factBoost = 0.15
)

// ConsistencyCheck inspects a merged, scored relation and reports whether
// it should be kept. Geographic and temporal checks are installed through
// Params; the defaults keep everything.
type ConsistencyCheck func(rel common.ResolvedRelation) bool

func passCheck(common.ResolvedRelation) bool { return true }

// score computes a relation's final confidence: the raw value clamped to
// [0,1], capped at associatedWeight when no predicate rule matched, then
// boosted for a notable entity pair and again for a verified fact.
func score(rel common.ResolvedRelation, predicateMatched bool) float64 {
	c := clamp(rel.Confidence)
	if !predicateMatched && c > associatedWeight {
		c = associatedWeight
	}

	if gazetteer.RelevantPair(rel.Subject, rel.Object) {
		c = clamp(c + pairBoost)
	}
	if gazetteer.KnownFact(rel.Subject, rel.Predicate, rel.Object) {
		c = clamp(c + factBoost)
	}

	return c
}

func clamp(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
