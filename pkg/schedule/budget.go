package schedule

import (
	"sync"
	"time"
)

// budget tracks the two resources a request must hold before it may run:
// an in-flight slot and enough tokens from the per-minute allowance.
// Tokens are refilled lazily on each acquisition attempt; there is no
// background timer.
type budget struct {
	mu sync.Mutex

	tokens     float64
	maxTokens  float64
	ratePerMin float64
	lastRefill time.Time

	inFlight    int
	maxInFlight int
}

func newBudget(maxInFlight, tokensPerMinute int) *budget {
	return &budget{
		tokens:      float64(tokensPerMinute),
		maxTokens:   float64(tokensPerMinute),
		ratePerMin:  float64(tokensPerMinute),
		lastRefill:  time.Now(),
		maxInFlight: maxInFlight,
	}
}

// refillLocked credits tokens for the time elapsed since the last refill,
// capped at the bucket size. Callers must hold mu.
func (b *budget) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed.Minutes() * b.ratePerMin
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now
}

// tryAcquire reserves an in-flight slot and cost tokens. Both are taken
// together or not at all. A cost larger than the bucket itself is clamped
// to the bucket size so oversized prompts drain a full bucket instead of
// waiting forever.
func (b *budget) tryAcquire(cost int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(time.Now())

	c := float64(cost)
	if c > b.maxTokens {
		c = b.maxTokens
	}
	if b.inFlight >= b.maxInFlight || b.tokens < c {
		return false
	}
	b.inFlight++
	b.tokens -= c
	return true
}

// release returns an in-flight slot. Spent tokens are not refunded.
func (b *budget) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFlight--
}

func (b *budget) current() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFlight
}
