// Package resolve merges model-sourced and rule-sourced entities into the
// final deduplicated, scored entity list of an analysis run. All spans are
// verified against the original text before any overlap math runs, so the
// output invariant holds: slicing the text with an entity's span yields the
// entity's text, unless the entity is flagged as span-inferred.
package resolve

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/trama-ai/trama/pkg/common"
	"github.com/trama-ai/trama/pkg/gazetteer"
)

// gazetteerBoost is added to the confidence of entities whose text matches
// the gazetteer, capped at 1.0.
const gazetteerBoost = 0.2

// Params contains configuration options for creating a new Resolver.
type Params struct {
	// MinConfidence drops entities scoring below it after boosts.
	MinConfidence float64 `validate:"gte=0,lte=1"`
}

// Resolver applies the merge, dedup and scoring policy. It is stateless
// across calls and safe for concurrent use.
type Resolver struct {
	minConfidence float64
}

// New validates params and creates a Resolver.
func New(params Params) (*Resolver, error) {
	if err := validator.New().Struct(params); err != nil {
		return nil, fmt.Errorf("resolve: invalid params: %w", err)
	}
	return &Resolver{minConfidence: params.MinConfidence}, nil
}

// Resolve merges aiEntities and ruleEntities against text and returns the
// final entity list sorted by position.
//
// The merge starts from the AI list. A rule entity is appended only when no
// AI entity shares its lowercase text and no already-merged entity's span
// overlaps it; a dropped duplicate instead enriches the survivor's sources
// and metadata. Each candidate scans the merged list; entity counts per run
// are tens, not thousands.
func (r *Resolver) Resolve(aiEntities, ruleEntities []common.RawEntity, text string) []common.ResolvedEntity {
	merged := make([]common.ResolvedEntity, 0, len(aiEntities)+len(ruleEntities))
	aiText := make(map[string]int, len(aiEntities))

	for _, raw := range aiEntities {
		if strings.TrimSpace(raw.Text) == "" {
			continue
		}
		e := resolveSpan(raw, text)
		key := strings.ToLower(e.Text)

		// the model occasionally repeats itself; keep the first occurrence
		if dup := findDuplicate(merged, key, e); dup >= 0 {
			continue
		}
		if _, ok := aiText[key]; !ok {
			aiText[key] = len(merged)
		}
		merged = append(merged, e)
	}

	for _, raw := range ruleEntities {
		if strings.TrimSpace(raw.Text) == "" {
			continue
		}
		e := resolveSpan(raw, text)
		key := strings.ToLower(e.Text)

		if i, ok := aiText[key]; ok {
			enrich(&merged[i], raw)
			continue
		}
		if j := overlapIndex(merged, e); j >= 0 {
			if strings.ToLower(merged[j].Text) == key {
				enrich(&merged[j], raw)
			}
			continue
		}
		merged = append(merged, e)
	}

	result := make([]common.ResolvedEntity, 0, len(merged))
	for _, e := range merged {
		if gazetteer.IsKnown(e.Text) {
			e.Confidence = clamp(e.Confidence + gazetteerBoost)
		}
		if info, ok := gazetteer.Lookup(e.Text); ok {
			e.Metadata = fillPlaceMetadata(e.Metadata, info)
		}
		if e.Confidence < r.minConfidence {
			continue
		}
		e.ID, _ = gonanoid.New()
		result = append(result, e)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Start != result[j].Start {
			return result[i].Start < result[j].Start
		}
		return result[i].Text < result[j].Text
	})
	return result
}

// resolveSpan pins an entity to a verified span in text. Offsets that do
// not slice to the entity's own text are re-inferred by case-insensitive
// first occurrence; entities found nowhere get the whole-document span with
// SpanInferred set so callers can exclude them from highlighting.
func resolveSpan(raw common.RawEntity, text string) common.ResolvedEntity {
	e := common.ResolvedEntity{
		Text:       raw.Text,
		Type:       raw.Type,
		Start:      raw.Start,
		End:        raw.End,
		Confidence: clamp(raw.Confidence),
		Sources:    []string{raw.Source},
		Metadata:   raw.Metadata,
	}

	if raw.HasSpan() && raw.Start >= 0 && raw.End <= len(text) &&
		strings.EqualFold(text[raw.Start:raw.End], raw.Text) {
		e.Text = text[raw.Start:raw.End]
		return e
	}

	if idx := indexFold(text, raw.Text); idx >= 0 {
		e.Start = idx
		e.End = idx + len(raw.Text)
		e.Text = text[e.Start:e.End]
		return e
	}

	e.Start = 0
	e.End = len(text)
	e.SpanInferred = true
	return e
}

// indexFold returns the byte offset in text of the first window that
// case-folds to needle, or -1. The scan runs over text itself; offsets
// found in a case-lowered copy stop mapping back once lowering changes any
// rune's byte length. Only windows of needle's byte length match, so the
// offset plus needle's length is always a valid span in text.
func indexFold(text, needle string) int {
	if needle == "" || len(needle) > len(text) {
		return -1
	}
	last := len(text) - len(needle)
	for i := 0; i <= last; i++ {
		if strings.EqualFold(text[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

// findDuplicate returns the index of a merged entity with the same lowercase
// text and an overlapping span, or -1.
func findDuplicate(merged []common.ResolvedEntity, key string, e common.ResolvedEntity) int {
	for i := range merged {
		if strings.ToLower(merged[i].Text) == key && overlaps(merged[i], e) {
			return i
		}
	}
	return -1
}

// overlapIndex returns the index of the first merged entity whose span
// overlaps e, or -1.
func overlapIndex(merged []common.ResolvedEntity, e common.ResolvedEntity) int {
	for i := range merged {
		if overlaps(merged[i], e) {
			return i
		}
	}
	return -1
}

// overlaps reports whether two half-open spans intersect.
func overlaps(a, b common.ResolvedEntity) bool {
	return !(a.End <= b.Start || b.End <= a.Start)
}

// enrich records that raw corroborates the already-merged entity.
func enrich(target *common.ResolvedEntity, raw common.RawEntity) {
	found := false
	for _, s := range target.Sources {
		if s == raw.Source {
			found = true
			break
		}
	}
	if !found {
		target.Sources = append(target.Sources, raw.Source)
	}
	for k, v := range raw.Metadata {
		if target.Metadata == nil {
			target.Metadata = make(map[string]string, len(raw.Metadata))
		}
		if _, ok := target.Metadata[k]; !ok {
			target.Metadata[k] = v
		}
	}
}

// fillPlaceMetadata copies the gazetteer's geographic fields into md,
// keeping any value an extractor already supplied.
func fillPlaceMetadata(md map[string]string, place gazetteer.PlaceInfo) map[string]string {
	if md == nil {
		md = make(map[string]string, 4)
	}
	fill := func(key, value string) {
		if _, ok := md[key]; !ok && value != "" {
			md[key] = value
		}
	}
	fill("region", place.Region)
	fill("province", place.Province)
	if place.Lat != 0 || place.Lon != 0 {
		fill("lat", strconv.FormatFloat(place.Lat, 'f', -1, 64))
		fill("lon", strconv.FormatFloat(place.Lon, 'f', -1, 64))
	}
	return md
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
