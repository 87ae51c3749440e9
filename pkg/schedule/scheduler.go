// Package schedule throttles outbound model calls. Every request must hold
// a concurrency slot and enough token budget before it reaches the client,
// and transient failures are retried with exponential backoff.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator"
	"github.com/pkoukk/tiktoken-go"

	"github.com/trama-ai/trama/internal/util"
	"github.com/trama-ai/trama/pkg/ai"
	"github.com/trama-ai/trama/pkg/logger"
)

// Waiters poll the budget with a doubling backoff so a busy scheduler is
// not hammered by hot loops.
const (
	pollInitial = 20 * time.Millisecond
	pollMax     = 500 * time.Millisecond
)

// TokenEstimator maps a prompt to its token cost against the per-minute
// budget.
type TokenEstimator func(prompt string) int

// DefaultEstimator approximates cost as one token per four bytes of prompt,
// rounded up.
func DefaultEstimator(prompt string) int {
	return (len(prompt) + 3) / 4
}

// TiktokenEstimator returns an estimator backed by the model's BPE
// vocabulary, falling back to the o200k_base encoding for models tiktoken
// does not know about.
func TiktokenEstimator(model string) (TokenEstimator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("o200k_base")
		if err != nil {
			return nil, err
		}
	}
	return func(prompt string) int {
		return len(enc.Encode(prompt, nil, nil))
	}, nil
}

// Request is a single prompt to run against the model.
type Request struct {
	Prompt string
	Opts   []ai.GenerateOption
}

// Response carries the completion text and how many attempts it took.
type Response struct {
	Text     string
	Attempts int
}

// Params contains configuration options for creating a new Scheduler.
type Params struct {
	Client ai.TextAIClient `validate:"required"`

	// MaxConcurrentRequests bounds how many requests may be in flight at
	// once.
	MaxConcurrentRequests int `validate:"gt=0"`
	// MaxTokensPerMinute is both the refill rate and the bucket size of
	// the token budget.
	MaxTokensPerMinute int `validate:"gt=0"`
	// RetryAttempts is the total number of tries per request, including
	// the first.
	RetryAttempts int `validate:"gte=1"`
	// BaseDelay is the backoff before the first retry; it doubles on each
	// further retry.
	BaseDelay time.Duration `validate:"gt=0"`
	// CallTimeout caps a single attempt. Zero disables the per-attempt
	// deadline.
	CallTimeout time.Duration `validate:"gte=0"`

	// TokenEstimator overrides DefaultEstimator when set.
	TokenEstimator TokenEstimator
}

// Scheduler serializes access to a TextAIClient behind a concurrency cap
// and a token-per-minute budget.
//
// Example:
//
//	sched, err := schedule.New(schedule.Params{
//		Client:                client,
//		MaxConcurrentRequests: 12,
//		MaxTokensPerMinute:    90000,
//		RetryAttempts:         3,
//		BaseDelay:             750 * time.Millisecond,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	resp, err := sched.Submit(ctx, schedule.Request{Prompt: prompt})
type Scheduler struct {
	client ai.TextAIClient
	budget *budget

	retries     int
	baseDelay   time.Duration
	callTimeout time.Duration
	estimate    TokenEstimator
}

// New validates params and creates a Scheduler. Invalid configuration is
// reported immediately rather than at the first Submit.
func New(params Params) (*Scheduler, error) {
	if err := validator.New().Struct(params); err != nil {
		return nil, fmt.Errorf("schedule: invalid params: %w", err)
	}

	est := params.TokenEstimator
	if est == nil {
		est = DefaultEstimator
	}

	return &Scheduler{
		client:      params.Client,
		budget:      newBudget(params.MaxConcurrentRequests, params.MaxTokensPerMinute),
		retries:     params.RetryAttempts,
		baseDelay:   params.BaseDelay,
		callTimeout: params.CallTimeout,
		estimate:    est,
	}, nil
}

// Submit blocks until the request holds a concurrency slot and its token
// cost, runs it, and retries transient failures. Content rejections and
// other terminal errors are returned as-is without further attempts. The
// returned Attempts counts every try made, including failed ones.
func (s *Scheduler) Submit(ctx context.Context, req Request) (Response, error) {
	cost := s.estimate(req.Prompt)
	if cost < 1 {
		cost = 1
	}

	if err := s.acquire(ctx, cost); err != nil {
		return Response{}, err
	}
	defer s.budget.release()

	text, attempts, err := util.RetryBackoff(ctx, s.retries, s.baseDelay, ai.IsTransient,
		func(ctx context.Context) (string, error) {
			return s.attempt(ctx, req)
		},
	)
	if err != nil {
		return Response{Attempts: attempts}, err
	}

	logger.Debug("[Scheduler] request complete",
		"cost", cost,
		"attempts", attempts,
		"in_flight", s.budget.current(),
	)

	return Response{Text: text, Attempts: attempts}, nil
}

// InFlight reports how many requests are currently executing.
func (s *Scheduler) InFlight() int {
	return s.budget.current()
}

// acquire polls the budget until slot and tokens are available or the
// context ends.
func (s *Scheduler) acquire(ctx context.Context, cost int) error {
	wait := pollInitial
	for {
		if s.budget.tryAcquire(cost) {
			return nil
		}
		if err := util.SleepContext(ctx, wait); err != nil {
			return err
		}
		wait *= 2
		if wait > pollMax {
			wait = pollMax
		}
	}
}

// attempt runs a single try against the client under the per-attempt
// deadline. A deadline hit that the caller's context did not cause is
// reported as ai.ErrTimeout so the retry loop treats it as transient.
func (s *Scheduler) attempt(parent context.Context, req Request) (string, error) {
	ctx := parent
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.callTimeout)
		defer cancel()
	}

	text, err := s.client.Generate(ctx, req.Prompt, req.Opts...)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return "", fmt.Errorf("%w: %v", ai.ErrTimeout, err)
	}
	return "", err
}
