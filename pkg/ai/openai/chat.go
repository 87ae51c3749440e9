package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"

	"github.com/trama-ai/trama/pkg/ai"
	"github.com/trama-ai/trama/pkg/logger"
)

// Generate sends a single-turn prompt to the chat model and returns the
// completion as plain text. API failures are classified into the ai error
// taxonomy so the scheduler can decide whether to retry.
//
// Example:
//
//	resp, err := client.Generate(ctx, "Extract entities from ...")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(resp)
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

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	}
	if options.FormatSchema != nil {
		body.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        options.FormatName,
					Description: openai.String(options.FormatDescription),
					Schema:      options.FormatSchema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	start := time.Now()
	response, err := c.chat.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", classifyError(err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response from model")
	}
	choice := response.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", fmt.Errorf("%w: finish_reason=content_filter", ai.ErrContentRejected)
	}

	logger.Debug("[OpenAI] completion",
		"model", options.Model,
		"input_tokens", response.Usage.PromptTokens,
		"output_tokens", response.Usage.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return choice.Message.Content, nil
}

func classifyError(err error) error {
	var apierr *openai.Error
	if !errors.As(err, &apierr) {
		return err
	}
	msg := strings.ToLower(apierr.Error())
	switch {
	case apierr.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ai.ErrRateLimited, err)
	case apierr.StatusCode == http.StatusUnauthorized || apierr.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ai.ErrUnauthorized, err)
	case apierr.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %v", ai.ErrUnavailable, err)
	case strings.Contains(msg, "content_policy") ||
		strings.Contains(msg, "content_filter") ||
		strings.Contains(msg, "content management policy"):
		return fmt.Errorf("%w: %v", ai.ErrContentRejected, err)
	}
	return err
}
