// Package analyze is the orchestration core: it normalizes and chunks the
// input, fans the chunks out through the cache layer and the scheduler,
// corrects offsets back to the full text, and hands the merged raw results
// to the resolution and relation engines. One call to Analyze is one run.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/trama-ai/trama/pkg/ai"
	"github.com/trama-ai/trama/pkg/cache"
	"github.com/trama-ai/trama/pkg/common"
	"github.com/trama-ai/trama/pkg/logger"
	"github.com/trama-ai/trama/pkg/pattern"
	"github.com/trama-ai/trama/pkg/relation"
	"github.com/trama-ai/trama/pkg/resolve"
	"github.com/trama-ai/trama/pkg/schedule"
)

// DefaultChunkSize is used when Params leaves ChunkSize at zero.
const DefaultChunkSize = 4000

// Params contains configuration options for creating a new Analyzer.
type Params struct {
	Scheduler *schedule.Scheduler  `validate:"required"`
	Matcher   *pattern.Matcher     `validate:"required"`
	Resolver  *resolve.Resolver    `validate:"required"`
	Relations *relation.Engine     `validate:"required"`
	Responses *cache.ResponseCache `validate:"required"`
	Texts     *cache.TextCache     `validate:"required"`

	// Remote is an optional shared second cache level, consulted after the
	// in-process response cache misses. Read and write errors are logged
	// and treated as misses.
	Remote cache.RemoteStore

	// ChunkSize is the maximum chunk length in bytes. Zero means
	// DefaultChunkSize.
	ChunkSize int `validate:"gte=0"`
}

// Analyzer runs analyses. It is safe for concurrent use; concurrent runs
// share the caches and the scheduler's admission state.
//
// Example usage:
//
//	analyzer, err := analyze.New(analyze.Params{
//		Scheduler: scheduler,
//		Matcher:   pattern.NewMatcher(),
//		Resolver:  resolver,
//		Relations: engine,
//		Responses: responses,
//		Texts:     texts,
//	})
//	if err != nil {
//		return err
//	}
//	result, err := analyzer.Analyze(ctx, text, common.KindBoth)
type Analyzer struct {
	scheduler *schedule.Scheduler
	matcher   *pattern.Matcher
	resolver  *resolve.Resolver
	relations *relation.Engine
	responses *cache.ResponseCache
	texts     *cache.TextCache
	remote    cache.RemoteStore
	chunkSize int

	// flight collapses concurrent requests for the same cache key so a
	// chunk repeated across simultaneous runs costs one model call.
	flight singleflight.Group
}

// New validates params and creates an Analyzer.
func New(params Params) (*Analyzer, error) {
	if err := validator.New().Struct(params); err != nil {
		return nil, fmt.Errorf("analyze: invalid params: %w", err)
	}

	chunkSize := params.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}

	return &Analyzer{
		scheduler: params.Scheduler,
		matcher:   params.Matcher,
		resolver:  params.Resolver,
		relations: params.Relations,
		responses: params.Responses,
		texts:     params.Texts,
		remote:    params.Remote,
		chunkSize: chunkSize,
	}, nil
}

// Analyze runs one analysis of text. All offsets in the result refer to
// the normalized text it carries. A failed chunk contributes nothing and a
// diagnostic; Analyze itself fails only when the context is cancelled, the
// kind is invalid, or every chunk fails.
func (a *Analyzer) Analyze(ctx context.Context, text string, kind common.AnalysisKind) (*common.AnalysisResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("analyze: invalid kind %q", kind)
	}

	runStart := time.Now()
	normalized := a.texts.Normalize(text)

	result := &common.AnalysisResult{
		Text:      normalized,
		Kind:      kind,
		Entities:  []common.ResolvedEntity{},
		Relations: []common.ResolvedRelation{},
		Chunks:    []common.ChunkDiagnostic{},
	}
	if normalized == "" {
		if kind.WantsRelations() {
			result.Graph = relation.BuildGraph(nil, nil)
		}
		return result, nil
	}

	chunks := SplitText(normalized, a.chunkSize)
	logger.Debug("[Analyze] run started",
		"kind", kind,
		"length", len(normalized),
		"chunks", len(chunks),
	)

	responses := make([]ai.AnalysisResponse, len(chunks))
	diags := make([]common.ChunkDiagnostic, len(chunks))
	errs := make([]error, len(chunks))

	g, gCtx := errgroup.WithContext(ctx)
	for _, chunk := range chunks {
		c := chunk
		g.Go(func() error {
			resp, diag, err := a.processChunk(gCtx, kind, c)
			responses[c.Index] = resp
			diags[c.Index] = diag
			errs[c.Index] = err
			// The run is cancelled as a whole or not at all; per-chunk
			// failures stay in the diagnostics.
			if err != nil && gCtx.Err() != nil {
				return gCtx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze: run aborted: %w", err)
	}

	result.Chunks = diags

	failed := 0
	var firstErr error
	for _, err := range errs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failed == len(chunks) {
		return nil, fmt.Errorf("analyze: all %d chunks failed: %w", len(chunks), firstErr)
	}

	aiEntities, aiRelations := collectRaw(chunks, responses)
	ruleEntities, ruleRelations := a.matcher.Extract(normalized)

	// Entities are resolved for every kind: relation endpoints bind against
	// them even when the caller asked for relations only.
	resolved := a.resolver.Resolve(aiEntities, ruleEntities, normalized)
	if kind.WantsEntities() {
		result.Entities = resolved
	}

	if kind.WantsRelations() {
		raw := append(aiRelations, ruleRelations...)
		result.Relations = a.relations.Resolve(raw, resolved)
		result.Graph = relation.BuildGraph(result.Relations, resolved)
	}

	logger.Debug("[Analyze] run complete",
		"kind", kind,
		"chunks", len(chunks),
		"failed", failed,
		"entities", len(result.Entities),
		"relations", len(result.Relations),
		"duration", time.Since(runStart).String(),
	)
	return result, nil
}

// flightResult carries a chunk's parsed response and the scheduler attempt
// count through the singleflight boundary.
type flightResult struct {
	resp     ai.AnalysisResponse
	attempts int
}

// processChunk takes one chunk through the cache levels; only a full miss
// builds a request and submits it to the scheduler. Offsets in the returned
// response are still chunk-relative.
func (a *Analyzer) processChunk(ctx context.Context, kind common.AnalysisKind, chunk Chunk) (ai.AnalysisResponse, common.ChunkDiagnostic, error) {
	start := time.Now()
	diag := common.ChunkDiagnostic{Index: chunk.Index, Start: chunk.Start, End: chunk.End}
	key := cache.Key(kind, chunk.Text)

	if resp, ok := a.responses.Get(key); ok {
		diag.CacheHit = true
		diag.DurationMs = time.Since(start).Milliseconds()
		return resp, diag, nil
	}

	if a.remote != nil {
		var resp ai.AnalysisResponse
		err := a.remote.Get(ctx, key, &resp)
		if err == nil {
			a.responses.Add(key, resp)
			diag.CacheHit = true
			diag.DurationMs = time.Since(start).Milliseconds()
			return resp, diag, nil
		}
		if !errors.Is(err, cache.ErrRemoteMiss) {
			logger.Warn("[Analyze] remote cache read failed", "chunk", chunk.Index, "error", err)
		}
	}

	fr, err := a.submit(ctx, common.AnalysisRequest{
		Text:       chunk.Text,
		Kind:       kind,
		ChunkIndex: chunk.Index,
		Offset:     chunk.Start,
		CacheKey:   key,
	})
	diag.Attempts = fr.attempts
	diag.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		diag.Err = err.Error()
		return ai.AnalysisResponse{}, diag, err
	}
	return fr.resp, diag, nil
}

// submit sends one cache-missed request through the scheduler. Concurrent
// submissions with the same cache key collapse into a single model call.
func (a *Analyzer) submit(ctx context.Context, req common.AnalysisRequest) (flightResult, error) {
	out, err, _ := a.flight.Do(req.CacheKey, func() (any, error) {
		res, err := a.scheduler.Submit(ctx, schedule.Request{
			Prompt: ai.PromptFor(req.Kind, req.Text),
			Opts: []ai.GenerateOption{
				ai.WithJSONFormat("analysis",
					"Entities and relations extracted from a text segment.",
					ai.AnalysisResponse{}),
			},
		})
		if err != nil {
			return flightResult{attempts: res.Attempts}, err
		}

		resp := ai.ParseAnalysis(res.Text)
		a.responses.Add(req.CacheKey, resp)
		if a.remote != nil {
			if err := a.remote.Set(ctx, req.CacheKey, resp, 0); err != nil {
				logger.Warn("[Analyze] remote cache write failed", "chunk", req.ChunkIndex, "error", err)
			}
		}
		return flightResult{resp: resp, attempts: res.Attempts}, nil
	})
	return out.(flightResult), err
}

// collectRaw flattens the per-chunk responses into raw entity and relation
// lists, shifting entity offsets by their chunk's absolute start. The shift
// must happen here: resolution compares spans in full-text coordinates.
func collectRaw(chunks []Chunk, responses []ai.AnalysisResponse) ([]common.RawEntity, []common.RawRelation) {
	var entities []common.RawEntity
	var relations []common.RawRelation

	for i, chunk := range chunks {
		for _, e := range responses[i].Entities {
			raw := common.RawEntity{
				Text:       e.Text,
				Type:       e.Type,
				Confidence: e.Confidence,
				Source:     common.SourceAI,
			}
			if e.End > e.Start {
				raw.Start = e.Start + chunk.Start
				raw.End = e.End + chunk.Start
			}
			entities = append(entities, raw)
		}
		for _, r := range responses[i].Relations {
			relations = append(relations, common.RawRelation{
				Subject:    r.Subject,
				Predicate:  r.Predicate,
				Object:     r.Object,
				Confidence: r.Confidence,
				Context:    r.Context,
				Source:     common.SourceAI,
			})
		}
	}

	return entities, relations
}
