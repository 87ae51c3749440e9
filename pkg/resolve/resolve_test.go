package resolve

import (
	"strings"
	"testing"

	"github.com/trama-ai/trama/pkg/common"
)

const sampleText = "Leonardo nacque a Vinci nel 1452 e viveva a Firenze."

func newResolver(t *testing.T, minConfidence float64) *Resolver {
	t.Helper()
	r, err := New(Params{MinConfidence: minConfidence})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return r
}

func aiEntity(text, entityType string, start, end int, confidence float64) common.RawEntity {
	return common.RawEntity{
		Text:       text,
		Type:       entityType,
		Start:      start,
		End:        end,
		Confidence: confidence,
		Source:     common.SourceAI,
	}
}

func ruleEntity(text, entityType string, start, end int, confidence float64) common.RawEntity {
	return common.RawEntity{
		Text:       text,
		Type:       entityType,
		Start:      start,
		End:        end,
		Confidence: confidence,
		Source:     common.SourcePattern,
	}
}

func TestNewRejectsInvalidThreshold(t *testing.T) {
	if _, err := New(Params{MinConfidence: -0.1}); err == nil {
		t.Error("negative threshold should be rejected")
	}
	if _, err := New(Params{MinConfidence: 1.5}); err == nil {
		t.Error("threshold above 1 should be rejected")
	}
	if _, err := New(Params{MinConfidence: 0.5}); err != nil {
		t.Errorf("valid threshold rejected: %v", err)
	}
}

func TestResolveDuplicateTextEnrichesSources(t *testing.T) {
	r := newResolver(t, 0)

	ai := []common.RawEntity{aiEntity("Leonardo", "PERSON", 0, 8, 0.9)}
	rules := []common.RawEntity{ruleEntity("Leonardo", "PERSON", 0, 8, 0.7)}

	out := r.Resolve(ai, rules, sampleText)
	if len(out) != 1 {
		t.Fatalf("entities = %d, want 1: %+v", len(out), out)
	}
	e := out[0]
	if len(e.Sources) != 2 {
		t.Errorf("Sources = %v, want both ai and pattern", e.Sources)
	}
	if e.ID == "" {
		t.Error("missing entity ID")
	}
}

func TestResolveTextMatchDropsRegardlessOfPosition(t *testing.T) {
	r := newResolver(t, 0)

	// same lowercase text at a different span still counts as a duplicate
	// of the AI entity
	ai := []common.RawEntity{aiEntity("Vinci", "LOCATION", 18, 23, 0.9)}
	rules := []common.RawEntity{ruleEntity("vinci", "LOCATION", 40, 45, 0.7)}

	out := r.Resolve(ai, rules, sampleText)
	if len(out) != 1 {
		t.Fatalf("entities = %d, want 1: %+v", len(out), out)
	}
}

func TestResolveOverlappingSpanDropped(t *testing.T) {
	r := newResolver(t, 0)

	text := "Leonardo nacque il 15 aprile 1452 a Vinci."
	ai := []common.RawEntity{aiEntity("15 aprile 1452", "DATE", 19, 33, 0.9)}
	rules := []common.RawEntity{ruleEntity("1452", "DATE", 29, 33, 0.7)}

	out := r.Resolve(ai, rules, text)
	if len(out) != 1 {
		t.Fatalf("entities = %d, want 1: %+v", len(out), out)
	}
	if out[0].Text != "15 aprile 1452" {
		t.Errorf("survivor = %q, want the AI span", out[0].Text)
	}
}

func TestResolveDisjointRuleEntityAppended(t *testing.T) {
	r := newResolver(t, 0)

	ai := []common.RawEntity{aiEntity("Leonardo", "PERSON", 0, 8, 0.9)}
	rules := []common.RawEntity{ruleEntity("Vinci", "LOCATION", 18, 23, 0.75)}

	out := r.Resolve(ai, rules, sampleText)
	if len(out) != 2 {
		t.Fatalf("entities = %d, want 2: %+v", len(out), out)
	}
}

func TestResolveModelRepeatsItself(t *testing.T) {
	r := newResolver(t, 0)

	ai := []common.RawEntity{
		aiEntity("Leonardo", "PERSON", 0, 8, 0.9),
		aiEntity("Leonardo", "PERSON", 0, 8, 0.8),
	}

	out := r.Resolve(ai, nil, sampleText)
	if len(out) != 1 {
		t.Fatalf("entities = %d, want 1: %+v", len(out), out)
	}
	if out[0].Confidence < 0.9 {
		t.Errorf("first occurrence should win, got confidence %v", out[0].Confidence)
	}
}

func TestResolveConfidenceClampedAndBoosted(t *testing.T) {
	r := newResolver(t, 0)

	ai := []common.RawEntity{
		aiEntity("Vinci", "LOCATION", 18, 23, 0.7),   // known place: 0.7 + 0.2
		aiEntity("Leonardo", "PERSON", 0, 8, 0.95),   // known figure: capped at 1.0
		aiEntity("Firenze", "LOCATION", 44, 51, 1.7), // clamped, then capped
	}

	out := r.Resolve(ai, nil, sampleText)
	if len(out) != 3 {
		t.Fatalf("entities = %d, want 3: %+v", len(out), out)
	}
	byText := map[string]common.ResolvedEntity{}
	for _, e := range out {
		byText[e.Text] = e
	}

	if got := byText["Vinci"].Confidence; got < 0.89 || got > 0.91 {
		t.Errorf("Vinci confidence = %v, want 0.9", got)
	}
	if got := byText["Leonardo"].Confidence; got != 1.0 {
		t.Errorf("Leonardo confidence = %v, want 1.0", got)
	}
	if got := byText["Firenze"].Confidence; got != 1.0 {
		t.Errorf("Firenze confidence = %v, want 1.0", got)
	}
}

func TestResolveGazetteerMetadataSupplied(t *testing.T) {
	r := newResolver(t, 0)

	out := r.Resolve([]common.RawEntity{
		aiEntity("Vinci", "LOCATION", 18, 23, 0.7),
	}, nil, sampleText)

	if len(out) != 1 {
		t.Fatalf("entities = %d, want 1: %+v", len(out), out)
	}
	if out[0].Metadata["region"] != "Toscana" || out[0].Metadata["province"] != "Firenze" {
		t.Errorf("metadata = %v, want region Toscana, province Firenze", out[0].Metadata)
	}
	if out[0].Metadata["lat"] != "43.7836" || out[0].Metadata["lon"] != "10.9254" {
		t.Errorf("metadata = %v, want Vinci coordinates", out[0].Metadata)
	}
}

func TestResolveExtractorMetadataPreserved(t *testing.T) {
	r := newResolver(t, 0)

	first := aiEntity("Vinci", "LOCATION", 18, 23, 0.7)
	first.Metadata = map[string]string{"region": "Custom", "kind": "birthplace"}
	second := ruleEntity("Vinci", "LOCATION", 18, 23, 0.6)
	second.Metadata = map[string]string{"kind": "other", "century": "XV"}

	out := r.Resolve([]common.RawEntity{first}, []common.RawEntity{second}, sampleText)
	if len(out) != 1 {
		t.Fatalf("entities = %d, want 1: %+v", len(out), out)
	}
	md := out[0].Metadata
	if md["region"] != "Custom" {
		t.Errorf("region = %q, want the extractor value kept", md["region"])
	}
	if md["kind"] != "birthplace" {
		t.Errorf("kind = %q, want the first extractor value kept", md["kind"])
	}
	if md["century"] != "XV" {
		t.Errorf("century = %q, want filled from the duplicate", md["century"])
	}
	if md["province"] != "Firenze" {
		t.Errorf("province = %q, want the gazetteer fill for the missing key", md["province"])
	}
}

func TestResolveMinConfidenceFilter(t *testing.T) {
	r := newResolver(t, 0.5)

	ai := []common.RawEntity{
		aiEntity("Leonardo", "PERSON", 0, 8, 0.9),
		// unknown name, no boost, below threshold
		{Text: "qualcosa", Type: "CONCEPT", Confidence: 0.3, Source: common.SourceAI},
	}

	out := r.Resolve(ai, nil, sampleText+" qualcosa")
	if len(out) != 1 {
		t.Fatalf("entities = %d, want 1: %+v", len(out), out)
	}
	if out[0].Text != "Leonardo" {
		t.Errorf("survivor = %q, want Leonardo", out[0].Text)
	}
}

func TestResolvePositionInference(t *testing.T) {
	r := newResolver(t, 0)

	// no offsets at all: first case-insensitive occurrence wins
	ai := []common.RawEntity{{Text: "vinci", Type: "LOCATION", Confidence: 0.8, Source: common.SourceAI}}

	out := r.Resolve(ai, nil, sampleText)
	if len(out) != 1 {
		t.Fatalf("entities = %d, want 1", len(out))
	}
	e := out[0]
	if e.SpanInferred {
		t.Error("found entity must not be flagged as span-inferred")
	}
	if got := sampleText[e.Start:e.End]; !strings.EqualFold(got, "vinci") {
		t.Errorf("slice = %q, want Vinci", got)
	}
	if e.Text != "Vinci" {
		t.Errorf("Text = %q, want surface form from the original text", e.Text)
	}
}

func TestResolveWrongOffsetsReinferred(t *testing.T) {
	r := newResolver(t, 0)

	// the model claims Vinci sits at [0,5), which slices to "Leona"
	ai := []common.RawEntity{aiEntity("Vinci", "LOCATION", 0, 5, 0.8)}

	out := r.Resolve(ai, nil, sampleText)
	if len(out) != 1 {
		t.Fatalf("entities = %d, want 1", len(out))
	}
	e := out[0]
	if got := sampleText[e.Start:e.End]; got != "Vinci" {
		t.Errorf("slice = %q, want %q", got, "Vinci")
	}
	if e.Start != 18 {
		t.Errorf("Start = %d, want 18", e.Start)
	}
}

func TestResolveInferredSpanWithLengthChangingFold(t *testing.T) {
	r := newResolver(t, 0)

	// U+0130 lowercases to "i" plus a combining dot, so a lowered copy of
	// this text is one byte longer and every offset after it shifts.
	text := "İstanbul e Leonardo."

	out := r.Resolve([]common.RawEntity{
		aiEntity("Leonardo", "PERSON", 0, 0, 0.9),
	}, nil, text)
	if len(out) != 1 {
		t.Fatalf("entities = %d, want 1: %+v", len(out), out)
	}
	e := out[0]
	if e.SpanInferred {
		t.Error("found entity must not be flagged as span-inferred")
	}
	if e.Start != 12 || e.End != 20 {
		t.Errorf("span = [%d,%d), want [12,20)", e.Start, e.End)
	}
	if got := text[e.Start:e.End]; got != "Leonardo" || e.Text != "Leonardo" {
		t.Errorf("slice = %q, Text = %q, want Leonardo for both", got, e.Text)
	}
}

func TestResolveUnfindableFallsBackToWholeSpan(t *testing.T) {
	r := newResolver(t, 0)

	ai := []common.RawEntity{{Text: "Atlantide", Type: "LOCATION", Confidence: 0.8, Source: common.SourceAI}}

	out := r.Resolve(ai, nil, sampleText)
	if len(out) != 1 {
		t.Fatalf("entities = %d, want 1", len(out))
	}
	e := out[0]
	if !e.SpanInferred {
		t.Error("whole-document fallback must be flagged")
	}
	if e.Start != 0 || e.End != len(sampleText) {
		t.Errorf("span = [%d,%d), want [0,%d)", e.Start, e.End, len(sampleText))
	}
}

func TestResolveSortedByPosition(t *testing.T) {
	r := newResolver(t, 0)

	ai := []common.RawEntity{
		aiEntity("Firenze", "LOCATION", 44, 51, 0.8),
		aiEntity("Leonardo", "PERSON", 0, 8, 0.9),
		aiEntity("Vinci", "LOCATION", 18, 23, 0.8),
	}

	out := r.Resolve(ai, nil, sampleText)
	if len(out) != 3 {
		t.Fatalf("entities = %d, want 3", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i-1].Start > out[i].Start {
			t.Fatalf("not sorted: %q at %d before %q at %d",
				out[i-1].Text, out[i-1].Start, out[i].Text, out[i].Start)
		}
	}
}

func TestResolveNoOverlappingDuplicates(t *testing.T) {
	r := newResolver(t, 0)

	ai := []common.RawEntity{
		aiEntity("Leonardo", "PERSON", 0, 8, 0.9),
		aiEntity("Vinci", "LOCATION", 18, 23, 0.8),
	}
	rules := []common.RawEntity{
		ruleEntity("Vinci", "LOCATION", 18, 23, 0.75),
		ruleEntity("1452", "DATE", 28, 32, 0.7),
		ruleEntity("Firenze", "LOCATION", 44, 51, 0.75),
	}

	out := r.Resolve(ai, rules, sampleText)
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			a, b := out[i], out[j]
			if strings.EqualFold(a.Text, b.Text) && !(a.End <= b.Start || b.End <= a.Start) {
				t.Errorf("overlapping duplicates: %+v and %+v", a, b)
			}
		}
	}
}

func TestResolveEmptyInputs(t *testing.T) {
	r := newResolver(t, 0)
	out := r.Resolve(nil, nil, sampleText)
	if len(out) != 0 {
		t.Errorf("entities = %d, want 0", len(out))
	}
}
