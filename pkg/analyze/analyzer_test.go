package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/trama-ai/trama/pkg/ai"
	"github.com/trama-ai/trama/pkg/cache"
	"github.com/trama-ai/trama/pkg/common"
	"github.com/trama-ai/trama/pkg/pattern"
	"github.com/trama-ai/trama/pkg/relation"
	"github.com/trama-ai/trama/pkg/resolve"
	"github.com/trama-ai/trama/pkg/schedule"
)

// mockService fakes the external text-analysis service. fn receives the
// 1-based call number and the full prompt.
type mockService struct {
	mu      sync.Mutex
	calls   int
	cur     int
	maxSeen int
	fn      func(call int, prompt string) (string, error)
}

func (m *mockService) Generate(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.cur++
	if m.cur > m.maxSeen {
		m.maxSeen = m.cur
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.cur--
		m.mu.Unlock()
	}()
	return m.fn(call, prompt)
}

func (m *mockService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// segmentOf recovers the chunk text embedded in an analysis prompt.
func segmentOf(prompt string) string {
	marker := "# Text Segment\n"
	i := strings.LastIndex(prompt, marker)
	if i == -1 {
		return ""
	}
	return strings.TrimSuffix(prompt[i+len(marker):], "\n")
}

const emptyJSON = `{"entities": [], "relations": []}`

const leonardoJSON = `{
  "entities": [
    {"text": "Leonardo", "type": "PERSON", "start": 0, "end": 8, "confidence": 0.9}
  ],
  "relations": [
    {"subject": "Leonardo", "predicate": "born in", "object": "Vinci", "confidence": 0.8, "context": "Leonardo nacque a Vinci."}
  ]
}`

type analyzerOverrides struct {
	chunkSize     int
	maxConcurrent int
	remote        cache.RemoteStore
}

func newTestAnalyzer(t *testing.T, client ai.TextAIClient, o analyzerOverrides) *Analyzer {
	t.Helper()

	maxConcurrent := o.maxConcurrent
	if maxConcurrent == 0 {
		maxConcurrent = 4
	}

	scheduler, err := schedule.New(schedule.Params{
		Client:                client,
		MaxConcurrentRequests: maxConcurrent,
		MaxTokensPerMinute:    1_000_000,
		RetryAttempts:         3,
		BaseDelay:             time.Millisecond,
	})
	if err != nil {
		t.Fatalf("schedule.New failed: %v", err)
	}
	resolver, err := resolve.New(resolve.Params{MinConfidence: 0.3})
	if err != nil {
		t.Fatalf("resolve.New failed: %v", err)
	}
	engine, err := relation.New(relation.Params{})
	if err != nil {
		t.Fatalf("relation.New failed: %v", err)
	}
	responses, err := cache.NewResponseCache(128)
	if err != nil {
		t.Fatalf("cache.NewResponseCache failed: %v", err)
	}
	texts, err := cache.NewTextCache(128)
	if err != nil {
		t.Fatalf("cache.NewTextCache failed: %v", err)
	}

	analyzer, err := New(Params{
		Scheduler: scheduler,
		Matcher:   pattern.NewMatcher(),
		Resolver:  resolver,
		Relations: engine,
		Responses: responses,
		Texts:     texts,
		Remote:    o.remote,
		ChunkSize: o.chunkSize,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return analyzer
}

func TestNewInvalidParams(t *testing.T) {
	if _, err := New(Params{}); err == nil {
		t.Error("expected error for missing components")
	}
}

func TestAnalyzeSimpleScenario(t *testing.T) {
	svc := &mockService{fn: func(call int, prompt string) (string, error) {
		return leonardoJSON, nil
	}}
	analyzer := newTestAnalyzer(t, svc, analyzerOverrides{})

	result, err := analyzer.Analyze(context.Background(), "Leonardo nacque a Vinci.", common.KindBoth)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(result.Entities) != 1 {
		t.Fatalf("entities = %d, want 1: %+v", len(result.Entities), result.Entities)
	}
	entity := result.Entities[0]
	if entity.Text != "Leonardo" || entity.Type != "PERSON" {
		t.Errorf("entity = %q/%q, want Leonardo/PERSON", entity.Text, entity.Type)
	}
	if entity.Start != 0 || entity.End != 8 || entity.SpanInferred {
		t.Errorf("entity span = [%d,%d) inferred=%v, want [0,8) false", entity.Start, entity.End, entity.SpanInferred)
	}
	if result.Text[entity.Start:entity.End] != entity.Text {
		t.Error("entity span does not slice to its text")
	}

	if len(result.Relations) != 1 {
		t.Fatalf("relations = %d, want 1: %+v", len(result.Relations), result.Relations)
	}
	rel := result.Relations[0]
	if rel.Subject != "Leonardo" || rel.Predicate != relation.BornIn || rel.Object != "Vinci" {
		t.Errorf("relation = (%q,%q,%q), want (Leonardo,%s,Vinci)", rel.Subject, rel.Predicate, rel.Object, relation.BornIn)
	}
	if rel.SubjectID != entity.ID {
		t.Errorf("relation subject not bound to the resolved entity")
	}
	if rel.ObjectID != "" {
		t.Errorf("relation object bound to %q, want unbound", rel.ObjectID)
	}

	if len(result.Chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(result.Chunks))
	}
	diag := result.Chunks[0]
	if diag.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retries)", diag.Attempts)
	}
	if diag.CacheHit || diag.Err != "" {
		t.Errorf("unexpected diagnostic: %+v", diag)
	}

	if result.Graph == nil {
		t.Fatal("graph missing")
	}
	if len(result.Graph.Nodes) != 2 || len(result.Graph.Edges) != 1 {
		t.Errorf("graph = %d nodes %d edges, want 2/1", len(result.Graph.Nodes), len(result.Graph.Edges))
	}
	if result.Graph.ConnectedComponents != 1 {
		t.Errorf("components = %d, want 1", result.Graph.ConnectedComponents)
	}

	if svc.callCount() != 1 {
		t.Errorf("service calls = %d, want 1", svc.callCount())
	}
}

func TestAnalyzeCacheIdempotence(t *testing.T) {
	svc := &mockService{fn: func(call int, prompt string) (string, error) {
		return leonardoJSON, nil
	}}
	analyzer := newTestAnalyzer(t, svc, analyzerOverrides{})

	first, err := analyzer.Analyze(context.Background(), "Leonardo nacque a Vinci.", common.KindBoth)
	if err != nil {
		t.Fatalf("first Analyze failed: %v", err)
	}
	second, err := analyzer.Analyze(context.Background(), "Leonardo nacque a Vinci.", common.KindBoth)
	if err != nil {
		t.Fatalf("second Analyze failed: %v", err)
	}

	if svc.callCount() != 1 {
		t.Fatalf("service calls = %d, want 1 (second run fully cached)", svc.callCount())
	}
	if !second.Chunks[0].CacheHit {
		t.Error("second run chunk not marked as cache hit")
	}
	if second.Chunks[0].Attempts != 0 {
		t.Errorf("second run attempts = %d, want 0", second.Chunks[0].Attempts)
	}

	// Identical output modulo the per-run IDs.
	if len(first.Entities) != len(second.Entities) {
		t.Fatalf("entity counts differ: %d vs %d", len(first.Entities), len(second.Entities))
	}
	for i := range first.Entities {
		a, b := first.Entities[i], second.Entities[i]
		if a.Text != b.Text || a.Type != b.Type || a.Start != b.Start || a.End != b.End || a.Confidence != b.Confidence {
			t.Errorf("entity %d differs: %+v vs %+v", i, a, b)
		}
	}
	if len(first.Relations) != len(second.Relations) {
		t.Fatalf("relation counts differ: %d vs %d", len(first.Relations), len(second.Relations))
	}
	for i := range first.Relations {
		a, b := first.Relations[i], second.Relations[i]
		if a.Subject != b.Subject || a.Predicate != b.Predicate || a.Object != b.Object || a.Confidence != b.Confidence {
			t.Errorf("relation %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func fillerText(sentences int) string {
	var b strings.Builder
	for i := 1; i <= sentences; i++ {
		fmt.Fprintf(&b, "La frase numero %03d parla di storia toscana. ", i)
	}
	return b.String()
}

func TestAnalyzeForcedChunking(t *testing.T) {
	text := fillerText(200)
	if len(text) != 9000 {
		t.Fatalf("fixture length = %d, want 9000", len(text))
	}

	svc := &mockService{fn: func(call int, prompt string) (string, error) {
		segment := segmentOf(prompt)
		rel := strings.Index(segment, "numero 100")
		if rel == -1 {
			return emptyJSON, nil
		}
		resp := ai.AnalysisResponse{Entities: []ai.EntityResult{{
			Text:       "numero 100",
			Type:       "CONCEPT",
			Start:      rel,
			End:        rel + len("numero 100"),
			Confidence: 0.9,
		}}}
		data, err := json.Marshal(resp)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}}
	analyzer := newTestAnalyzer(t, svc, analyzerOverrides{chunkSize: 4000})

	result, err := analyzer.Analyze(context.Background(), text, common.KindEntities)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(result.Chunks) != 3 {
		t.Fatalf("chunks = %d, want 3: %+v", len(result.Chunks), result.Chunks)
	}
	for i := 1; i < len(result.Chunks); i++ {
		if result.Chunks[i].Start != result.Chunks[i-1].End {
			t.Errorf("chunk %d not contiguous: %+v", i, result.Chunks)
		}
	}
	if svc.callCount() != 3 {
		t.Errorf("service calls = %d, want 3", svc.callCount())
	}

	if len(result.Entities) != 1 {
		t.Fatalf("entities = %d, want 1: %+v", len(result.Entities), result.Entities)
	}
	entity := result.Entities[0]
	if entity.Start < result.Chunks[1].Start {
		t.Errorf("entity start %d is below chunk 2 start %d", entity.Start, result.Chunks[1].Start)
	}
	if got := result.Text[entity.Start:entity.End]; got != "numero 100" {
		t.Errorf("absolute span slices to %q, want %q", got, "numero 100")
	}
	if entity.SpanInferred {
		t.Error("span should be verified, not inferred")
	}
}

func TestAnalyzeMalformedResponse(t *testing.T) {
	svc := &mockService{fn: func(call int, prompt string) (string, error) {
		return "Sure! ```json {\"entities\": [}```", nil
	}}
	analyzer := newTestAnalyzer(t, svc, analyzerOverrides{})

	result, err := analyzer.Analyze(context.Background(), "Testo privo di nomi noti.", common.KindEntities)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(result.Entities) != 0 {
		t.Errorf("entities = %+v, want none", result.Entities)
	}
	if result.Chunks[0].Err != "" {
		t.Errorf("malformed response recorded as chunk failure: %+v", result.Chunks[0])
	}
}

func TestAnalyzePartialFailure(t *testing.T) {
	text := "Leonardo nacque a Vinci nel mese di aprile. Dante scrisse molte opere famose in vita sua."

	svc := &mockService{fn: func(call int, prompt string) (string, error) {
		if strings.Contains(segmentOf(prompt), "Dante") {
			return "", fmt.Errorf("%w: safety block", ai.ErrContentRejected)
		}
		return leonardoJSON, nil
	}}
	analyzer := newTestAnalyzer(t, svc, analyzerOverrides{chunkSize: 60})

	result, err := analyzer.Analyze(context.Background(), text, common.KindEntities)
	if err != nil {
		t.Fatalf("Analyze failed despite partial success: %v", err)
	}

	if len(result.Chunks) != 2 {
		t.Fatalf("chunks = %d, want 2: %+v", len(result.Chunks), result.Chunks)
	}

	var failed, ok int
	for _, d := range result.Chunks {
		if d.Err != "" {
			failed++
			if d.Attempts != 1 {
				t.Errorf("content rejection retried: attempts = %d", d.Attempts)
			}
		} else {
			ok++
		}
	}
	if failed != 1 || ok != 1 {
		t.Fatalf("failed/ok = %d/%d, want 1/1", failed, ok)
	}

	found := false
	for _, e := range result.Entities {
		if e.Text == "Leonardo" {
			found = true
		}
	}
	if !found {
		t.Errorf("surviving chunk's entity missing: %+v", result.Entities)
	}
}

func TestAnalyzeTotalFailure(t *testing.T) {
	svc := &mockService{fn: func(call int, prompt string) (string, error) {
		return "", fmt.Errorf("%w: safety block", ai.ErrContentRejected)
	}}
	analyzer := newTestAnalyzer(t, svc, analyzerOverrides{})

	_, err := analyzer.Analyze(context.Background(), "Leonardo nacque a Vinci.", common.KindEntities)
	if err == nil {
		t.Fatal("expected error when every chunk fails")
	}
	if !errors.Is(err, ai.ErrContentRejected) {
		t.Errorf("error chain lost the cause: %v", err)
	}
}

func TestAnalyzeInvalidKind(t *testing.T) {
	svc := &mockService{fn: func(call int, prompt string) (string, error) {
		return emptyJSON, nil
	}}
	analyzer := newTestAnalyzer(t, svc, analyzerOverrides{})

	if _, err := analyzer.Analyze(context.Background(), "testo", "bogus"); err == nil {
		t.Fatal("expected error for invalid kind")
	}
	if svc.callCount() != 0 {
		t.Errorf("service called %d times for invalid kind", svc.callCount())
	}
}

func TestAnalyzeEmptyText(t *testing.T) {
	svc := &mockService{fn: func(call int, prompt string) (string, error) {
		return emptyJSON, nil
	}}
	analyzer := newTestAnalyzer(t, svc, analyzerOverrides{})

	result, err := analyzer.Analyze(context.Background(), "", common.KindBoth)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(result.Entities) != 0 || len(result.Relations) != 0 || len(result.Chunks) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if result.Graph == nil {
		t.Fatal("expected an empty graph, got nil")
	}
	if len(result.Graph.Nodes) != 0 || len(result.Graph.Edges) != 0 {
		t.Errorf("expected 0 nodes and 0 edges, got %d and %d", len(result.Graph.Nodes), len(result.Graph.Edges))
	}
	if result.Graph.Density != 0 || result.Graph.ConnectedComponents != 0 {
		t.Errorf("expected zero graph metrics, got %+v", result.Graph)
	}
	if svc.callCount() != 0 {
		t.Errorf("service called %d times for empty text", svc.callCount())
	}
}

func TestAnalyzeConcurrencyCap(t *testing.T) {
	svc := &mockService{fn: func(call int, prompt string) (string, error) {
		time.Sleep(20 * time.Millisecond)
		return emptyJSON, nil
	}}
	analyzer := newTestAnalyzer(t, svc, analyzerOverrides{chunkSize: 50, maxConcurrent: 2})

	_, err := analyzer.Analyze(context.Background(), fillerText(9), common.KindEntities)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if svc.callCount() != 9 {
		t.Errorf("service calls = %d, want 9", svc.callCount())
	}
	if svc.maxSeen > 2 {
		t.Errorf("concurrent calls peaked at %d, cap is 2", svc.maxSeen)
	}
}

// memoryStore is an in-process cache.RemoteStore for tests.
type memoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (s *memoryStore) Get(ctx context.Context, key string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return s.getErr
	}
	data, ok := s.data[key]
	if !ok {
		return cache.ErrRemoteMiss
	}
	return json.Unmarshal(data, dest)
}

func (s *memoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return nil
}

func TestAnalyzeRemoteCacheShared(t *testing.T) {
	remote := newMemoryStore()
	svc := &mockService{fn: func(call int, prompt string) (string, error) {
		return leonardoJSON, nil
	}}

	first := newTestAnalyzer(t, svc, analyzerOverrides{remote: remote})
	if _, err := first.Analyze(context.Background(), "Leonardo nacque a Vinci.", common.KindBoth); err != nil {
		t.Fatalf("first Analyze failed: %v", err)
	}
	if svc.callCount() != 1 {
		t.Fatalf("service calls = %d, want 1", svc.callCount())
	}

	// A fresh analyzer has a cold in-process cache but shares the remote.
	second := newTestAnalyzer(t, svc, analyzerOverrides{remote: remote})
	result, err := second.Analyze(context.Background(), "Leonardo nacque a Vinci.", common.KindBoth)
	if err != nil {
		t.Fatalf("second Analyze failed: %v", err)
	}

	if svc.callCount() != 1 {
		t.Errorf("service calls = %d, want 1 (remote level hit)", svc.callCount())
	}
	if !result.Chunks[0].CacheHit {
		t.Error("remote hit not marked in diagnostics")
	}
	if len(result.Entities) != 1 {
		t.Errorf("entities = %d, want 1", len(result.Entities))
	}
}

func TestAnalyzeRemoteCacheErrorTolerated(t *testing.T) {
	remote := newMemoryStore()
	remote.getErr = errors.New("connection refused")

	svc := &mockService{fn: func(call int, prompt string) (string, error) {
		return leonardoJSON, nil
	}}
	analyzer := newTestAnalyzer(t, svc, analyzerOverrides{remote: remote})

	result, err := analyzer.Analyze(context.Background(), "Leonardo nacque a Vinci.", common.KindBoth)
	if err != nil {
		t.Fatalf("Analyze failed on remote error: %v", err)
	}
	if len(result.Entities) != 1 {
		t.Errorf("entities = %d, want 1", len(result.Entities))
	}
	if svc.callCount() != 1 {
		t.Errorf("service calls = %d, want 1 (fell through to the service)", svc.callCount())
	}
}
