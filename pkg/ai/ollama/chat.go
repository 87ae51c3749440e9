package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"

	"github.com/trama-ai/trama/pkg/ai"
	"github.com/trama-ai/trama/pkg/logger"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// promptTokens estimates the prompt size so num_ctx can be raised above the
// server default for long chunks. The o200k_base encoding is close enough
// for sizing regardless of the actual model.
func promptTokens(prompt string) (int, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("o200k_base")
	})
	if encErr != nil {
		return 0, encErr
	}
	return len(enc.Encode(prompt, nil, nil)), nil
}

// Generate sends a single-turn prompt and returns the assistant text.
func (c *Client) Generate(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.GenerateOptions{
		Model:       c.model,
		Temperature: 0.1,
	}
	for _, o := range opts {
		o(&options)
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	msgs := make([]api.Message, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: prompt})

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": options.Temperature},
	}

	if options.FormatSchema != nil {
		formatBytes, err := json.Marshal(options.FormatSchema)
		if err != nil {
			return "", err
		}
		req.Format = json.RawMessage(formatBytes)
	}

	tokens, err := promptTokens(prompt)
	if err != nil {
		return "", err
	}
	tokens += 200
	if tokens > 4096 {
		req.Options["num_ctx"] = tokens
	}

	var final api.ChatResponse
	if err := c.api.Chat(ctx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return "", classifyError(err)
	}

	logger.Debug("[Ollama] completion",
		"model", options.Model,
		"input_tokens", final.Metrics.PromptEvalCount,
		"output_tokens", final.Metrics.EvalCount,
		"duration_ms", final.Metrics.TotalDuration.Milliseconds(),
	)

	return final.Message.Content, nil
}

func classifyError(err error) error {
	var statusErr api.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	switch {
	case statusErr.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ai.ErrRateLimited, err)
	case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ai.ErrUnauthorized, err)
	case statusErr.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %v", ai.ErrUnavailable, err)
	}
	return err
}
