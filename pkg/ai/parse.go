package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// AnalysisResponse is the JSON object the analysis prompts ask the service
// to produce for one chunk. Offsets are character positions relative to the
// submitted segment, 0-based, end exclusive.
type AnalysisResponse struct {
	Entities  []EntityResult   `json:"entities" jsonschema_description:"All entities found in the segment."`
	Relations []RelationResult `json:"relations" jsonschema_description:"All subject-predicate-object relations found in the segment."`
}

// EntityResult is one extracted entity as reported by the service.
type EntityResult struct {
	Text       string  `json:"text" jsonschema_description:"Exact surface text of the entity as it appears in the segment."`
	Type       string  `json:"type" jsonschema_description:"One of the allowed entity types."`
	Start      int     `json:"start" jsonschema_description:"Character offset of the entity start within the segment."`
	End        int     `json:"end" jsonschema_description:"Character offset one past the entity end within the segment."`
	Confidence float64 `json:"confidence" jsonschema_description:"Extraction confidence between 0 and 1."`
}

// RelationResult is one extracted relation as reported by the service.
type RelationResult struct {
	Subject    string  `json:"subject" jsonschema_description:"Entity text acting as the subject."`
	Predicate  string  `json:"predicate" jsonschema_description:"Verb phrase connecting subject and object."`
	Object     string  `json:"object" jsonschema_description:"Entity text acting as the object."`
	Confidence float64 `json:"confidence" jsonschema_description:"Extraction confidence between 0 and 1."`
	Context    string  `json:"context" jsonschema_description:"The sentence the relation was found in."`
}

var (
	codeFenceRe      = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	reEntitiesArray  = regexp.MustCompile(`(?s)"entities"\s*:\s*(\[.*?\])`)
	reRelationsArray = regexp.MustCompile(`(?s)"relations"\s*:\s*(\[.*?\])`)
)

// Empty reports whether the response carries no entities and no relations.
func (r AnalysisResponse) Empty() bool {
	return len(r.Entities) == 0 && len(r.Relations) == 0
}

// ParseAnalysis turns a raw service response into an AnalysisResponse. The
// response has no structured-output guarantee: it may wrap the JSON in prose
// or code fences, or be malformed or truncated. Parsing degrades through
// fence/prose stripping, JSON repair, and finally a by-shape regex pull of
// the entities/relations arrays. It never fails; the worst case is an empty
// response.
func ParseAnalysis(raw string) AnalysisResponse {
	var res AnalysisResponse
	if payload := ExtractJSON(raw); payload != "" {
		// A non-empty parse is trusted. An empty one may mean the braces we
		// cut belonged to something else, so the regex pull still runs.
		if err := UnmarshalFlexible(payload, &res); err == nil && !res.Empty() {
			return res
		}
		res = AnalysisResponse{}
	}

	res.Entities = extractArray[EntityResult](raw, reEntitiesArray)
	res.Relations = extractArray[RelationResult](raw, reRelationsArray)
	return res
}

// ExtractJSON cuts the JSON object out of a model response that may wrap it
// in code fences or prose: fences are stripped, then the text between the
// first '{' and the last '}' is returned. A response with an opening brace
// but no closing one is returned from the brace on, so the repair chain can
// close it. Returns "" when no object is present at all.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end > start {
		return s[start : end+1]
	}
	return s[start:]
}

// UnmarshalFlexible decodes a JSON payload from the service into out. The
// payload may be encoded twice, start with a doubled brace, or violate the
// grammar in the ways jsonrepair handles (unquoted keys, single quotes,
// trailing commas, missing closers). A strict parse is tried before any
// rewriting, so well-formed payloads pass through untouched.
func UnmarshalFlexible(payload string, out any) error {
	payload = strings.TrimSpace(payload)
	if json.Unmarshal([]byte(payload), out) == nil {
		return nil
	}

	// A payload that parses as one JSON string was encoded twice; the
	// document is the string's content.
	var inner string
	if json.Unmarshal([]byte(payload), &inner) == nil {
		inner = strings.TrimSpace(inner)
		if json.Unmarshal([]byte(inner), out) == nil {
			return nil
		}
		payload = inner
	}

	payload = trimDoubledBrace(payload)
	repaired, err := jsonrepair.JSONRepair(payload)
	if err != nil {
		return fmt.Errorf("repair payload %q: %w", payload, err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("decode repaired payload %q (raw %q): %w", repaired, payload, err)
	}
	return nil
}

// trimDoubledBrace drops the first of two consecutive opening braces, an
// artifact some backends emit at the start of an object.
func trimDoubledBrace(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return s
	}
	if rest := strings.TrimSpace(s[1:]); strings.HasPrefix(rest, "{") {
		return rest
	}
	return s
}

func extractArray[T any](raw string, re *regexp.Regexp) []T {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	var out []T
	if err := json.Unmarshal([]byte(m[1]), &out); err != nil {
		return nil
	}
	return out
}
