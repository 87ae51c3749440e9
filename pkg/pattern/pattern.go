// Package pattern provides local deterministic extraction: regex rules for
// date expressions and sentence-level rules for common relation phrasings.
// It runs entirely in-process and costs nothing against the scheduler's
// token budget; its output is merged with the model's by the resolution and
// relation engines.
package pattern

import (
	"regexp"

	"github.com/trama-ai/trama/pkg/common"
)

// nameExpr matches a capitalized name sequence, allowing the particles that
// appear in Italian names ("Leonardo da Vinci", "Dante Alighieri").
const nameExpr = `\p{Lu}[\p{L}']*(?:\s+(?:d[aei]|del|della|degli|delle)\s+\p{Lu}[\p{L}']*|\s+\p{Lu}[\p{L}']*)*`

// workExpr additionally allows a leading article so work titles like
// "la Gioconda" keep their article in the captured text.
const workExpr = `(?:[Ll]a\s+|[Ll]o\s+|[Ll]e\s+|[Ii]l\s+|[Ll]')?` + nameExpr

type entityRule struct {
	re         *regexp.Regexp
	entityType string
	name       string
	confidence float64
}

type relationRule struct {
	re         *regexp.Regexp
	predicate  string
	confidence float64
}

// Matcher holds the compiled rule tables. Build one with NewMatcher and
// share it freely; it is read-only after construction.
type Matcher struct {
	entityRules   []entityRule
	relationRules []relationRule
}

// NewMatcher compiles the rule tables.
func NewMatcher() *Matcher {
	return &Matcher{
		// full dates before bare years so the wider span wins downstream
		entityRules: []entityRule{
			{
				re:         regexp.MustCompile(`(?i)\b(\d{1,2}°?\s+(?:gennaio|febbraio|marzo|aprile|maggio|giugno|luglio|agosto|settembre|ottobre|novembre|dicembre)(?:\s+\d{4})?)\b`),
				entityType: "DATE",
				name:       "full_date",
				confidence: 0.8,
			},
			{
				re:         regexp.MustCompile(`\b(1[0-9]{3}|20[0-2][0-9])\b`),
				entityType: "DATE",
				name:       "year",
				confidence: 0.7,
			},
			{
				re:         regexp.MustCompile(`\b([IVX]{1,6}\s+secolo)\b`),
				entityType: "DATE",
				name:       "century",
				confidence: 0.7,
			},
		},
		relationRules: []relationRule{
			{
				re:         regexp.MustCompile(`(` + nameExpr + `)\s+(?:nacque|è\s+nato|è\s+nata)\s+a\s+(` + nameExpr + `)`),
				predicate:  "nacque a",
				confidence: 0.85,
			},
			{
				re:         regexp.MustCompile(`(` + nameExpr + `)\s+(?:morì|è\s+morto|è\s+morta)\s+a\s+(` + nameExpr + `)`),
				predicate:  "morì a",
				confidence: 0.85,
			},
			{
				re:         regexp.MustCompile(`(` + nameExpr + `)\s+(?:visse|abitò)\s+a\s+(` + nameExpr + `)`),
				predicate:  "visse a",
				confidence: 0.8,
			},
			{
				re:         regexp.MustCompile(`(` + nameExpr + `)\s+(?:dipinse|realizzò|scolpì)\s+(` + workExpr + `)`),
				predicate:  "dipinse",
				confidence: 0.8,
			},
			{
				re:         regexp.MustCompile(`(` + nameExpr + `)\s+(?:scrisse|compose)\s+(` + workExpr + `)`),
				predicate:  "scrisse",
				confidence: 0.8,
			},
			{
				re:         regexp.MustCompile(`(` + nameExpr + `)\s+(?:lavorò|collaborò)\s+con\s+(` + nameExpr + `)`),
				predicate:  "lavorò con",
				confidence: 0.75,
			},
			{
				re:         regexp.MustCompile(`(` + workExpr + `)\s+si\s+trova\s+a\s+(` + nameExpr + `)`),
				predicate:  "si trova a",
				confidence: 0.75,
			},
		},
	}
}

// Extract runs every rule over text and returns entities and relations.
// Entity offsets point into text, so callers must pass the same normalized
// text the rest of the pipeline uses. Relation endpoints are reported as
// text only; binding them to entities is the relation engine's job.
func (m *Matcher) Extract(text string) ([]common.RawEntity, []common.RawRelation) {
	var entities []common.RawEntity
	var relations []common.RawRelation

	for _, rule := range m.entityRules {
		for _, idx := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := idx[2], idx[3]
			if start < 0 || end <= start {
				continue
			}
			entities = append(entities, common.RawEntity{
				Text:       text[start:end],
				Type:       rule.entityType,
				Start:      start,
				End:        end,
				Confidence: rule.confidence,
				Source:     common.SourcePattern,
			})
		}
	}

	for _, rule := range m.relationRules {
		for _, idx := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			subStart, subEnd := idx[2], idx[3]
			objStart, objEnd := idx[4], idx[5]
			if subStart < 0 || objStart < 0 {
				continue
			}

			relations = append(relations, common.RawRelation{
				Subject:    text[subStart:subEnd],
				Predicate:  rule.predicate,
				Object:     text[objStart:objEnd],
				Confidence: rule.confidence,
				Context:    text[idx[0]:idx[1]],
				Source:     common.SourcePattern,
			})
		}
	}

	return entities, relations
}
