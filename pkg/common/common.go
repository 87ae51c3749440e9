package common

// AnalysisKind selects what an analysis run extracts from the input text.
type AnalysisKind string

const (
	KindEntities  AnalysisKind = "entities"
	KindRelations AnalysisKind = "relations"
	KindBoth      AnalysisKind = "both"
)

// Valid reports whether k is one of the recognized kinds.
func (k AnalysisKind) Valid() bool {
	switch k {
	case KindEntities, KindRelations, KindBoth:
		return true
	}
	return false
}

// WantsEntities reports whether a run of this kind extracts entities.
func (k AnalysisKind) WantsEntities() bool {
	return k == KindEntities || k == KindBoth
}

// WantsRelations reports whether a run of this kind extracts relations.
func (k AnalysisKind) WantsRelations() bool {
	return k == KindRelations || k == KindBoth
}

// Extractor source tags recorded on raw and resolved values.
const (
	SourceAI      = "ai"
	SourcePattern = "pattern"
)

// AnalysisRequest describes one chunk's trip through the cache and the
// scheduler. It is created per chunk by the pipeline, consumed once, and
// discarded after its result is merged.
type AnalysisRequest struct {
	Text       string       `json:"text"`
	Kind       AnalysisKind `json:"kind"`
	ChunkIndex int          `json:"chunk_index"`
	// Offset is the chunk's absolute start in the analyzed text. Raw
	// entity offsets are chunk-relative until this is added to them.
	Offset   int    `json:"offset"`
	CacheKey string `json:"cache_key"`
}

// RawEntity is a typed text span as reported by a single extractor, with
// offsets relative to the chunk it was found in. Raw entities are never
// exposed to callers; the resolution engine turns them into ResolvedEntity
// values with absolute offsets.
type RawEntity struct {
	Text       string            `json:"text"`
	Type       string            `json:"type"`
	Start      int               `json:"start"`
	End        int               `json:"end"`
	Confidence float64           `json:"confidence"`
	Source     string            `json:"source,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// HasSpan reports whether the entity carries usable offsets. Extractors
// that cannot locate an entity leave Start and End at zero, which is never
// a valid non-empty span.
func (e RawEntity) HasSpan() bool {
	return e.End > e.Start
}

// ResolvedEntity is an entity after resolution: offsets corrected to the
// analyzed text, deduplicated against every other entity in the run, and
// carrying its final confidence. Immutable once produced.
type ResolvedEntity struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Type       string            `json:"type"`
	Start      int               `json:"start"`
	End        int               `json:"end"`
	Confidence float64           `json:"confidence"`
	Sources    []string          `json:"sources"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	// SpanInferred marks the degraded fallback where the entity text could
	// not be located in the analyzed text and the span covers the whole
	// document. Callers should not highlight such spans.
	SpanInferred bool `json:"span_inferred,omitempty"`
}

// RawRelation is a subject-predicate-object assertion as reported by a
// single extractor, with a free-text predicate. Same chunk-relative
// lifecycle as RawEntity.
type RawRelation struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context,omitempty"`
	Source     string  `json:"source,omitempty"`
}

// ResolvedRelation is a relation after merging: predicate normalized to the
// controlled vocabulary, endpoints bound to resolved entities where a
// case-insensitive text match exists (unbound endpoints keep their text and
// an empty ID), and confidence combined from source and heuristic boosts.
type ResolvedRelation struct {
	ID         string  `json:"id"`
	SubjectID  string  `json:"subject_id,omitempty"`
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	ObjectID   string  `json:"object_id,omitempty"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context,omitempty"`
}

// GraphNode is one endpoint in the relation graph. Size counts how many
// relations reference the node.
type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
	Size  int    `json:"size"`
}

// GraphEdge is one relation drawn between two nodes.
type GraphEdge struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Predicate string  `json:"predicate"`
	Weight    float64 `json:"weight"`
}

// RelationGraph is the derived node/edge structure built from the resolved
// relations of one run, with basic topological metrics. It is recomputed
// fresh per analysis and never mutated incrementally.
type RelationGraph struct {
	Nodes               []GraphNode `json:"nodes"`
	Edges               []GraphEdge `json:"edges"`
	Density             float64     `json:"density"`
	ConnectedComponents int         `json:"connected_components"`
}

// ChunkDiagnostic records one chunk's outcome. A failed chunk contributes
// empty results and a non-empty Err instead of aborting the run.
type ChunkDiagnostic struct {
	Index      int    `json:"index"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Attempts   int    `json:"attempts"`
	CacheHit   bool   `json:"cache_hit"`
	DurationMs int64  `json:"duration_ms"`
	Err        string `json:"err,omitempty"`
}

// AnalysisResult is what one analysis run returns. All entity offsets refer
// to Text, the normalized form of the input that the run operated on.
type AnalysisResult struct {
	Text      string             `json:"text"`
	Kind      AnalysisKind       `json:"kind"`
	Entities  []ResolvedEntity   `json:"entities"`
	Relations []ResolvedRelation `json:"relations"`
	Graph     *RelationGraph     `json:"graph,omitempty"`
	Chunks    []ChunkDiagnostic  `json:"chunks"`
}
