// Package cache provides the lookaside caches that sit in front of the
// model: a response cache keyed by analysis kind and normalized text, and
// a normalization cache keyed by raw input. Both are strict LRUs sized in
// entries, with no time-based expiry.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/trama-ai/trama/internal/util"
	"github.com/trama-ai/trama/pkg/ai"
)

// ResponseCache memoizes parsed model responses so identical segments never
// reach the scheduler twice. A Get refreshes the entry's recency.
type ResponseCache struct {
	lru *lru.Cache[string, ai.AnalysisResponse]
}

// NewResponseCache creates a response cache holding at most size entries.
func NewResponseCache(size int) (*ResponseCache, error) {
	c, err := lru.New[string, ai.AnalysisResponse](size)
	if err != nil {
		return nil, fmt.Errorf("cache: response cache: %w", err)
	}
	return &ResponseCache{lru: c}, nil
}

func (c *ResponseCache) Get(key string) (ai.AnalysisResponse, bool) {
	return c.lru.Get(key)
}

func (c *ResponseCache) Add(key string, resp ai.AnalysisResponse) {
	c.lru.Add(key, resp)
}

func (c *ResponseCache) Len() int {
	return c.lru.Len()
}

// TextCache memoizes whitespace normalization so repeated raw inputs skip
// the normalization pass.
type TextCache struct {
	lru *lru.Cache[string, string]
}

// NewTextCache creates a normalization cache holding at most size entries.
func NewTextCache(size int) (*TextCache, error) {
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("cache: text cache: %w", err)
	}
	return &TextCache{lru: c}, nil
}

// Normalize returns the normalized form of raw, computing and caching it on
// first sight.
func (c *TextCache) Normalize(raw string) string {
	if norm, ok := c.lru.Get(raw); ok {
		return norm
	}
	norm := util.NormalizeText(raw)
	c.lru.Add(raw, norm)
	return norm
}

func (c *TextCache) Len() int {
	return c.lru.Len()
}
