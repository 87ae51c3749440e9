package openai

import (
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Client implements ai.TextAIClient against the OpenAI API or any
// OpenAI-compatible endpoint.
//
// A Client should be created using NewClient.
type Client struct {
	model   string
	baseURL string

	chat *openai.Client
}

// ClientParams defines the configuration for creating a Client.
//
// Model is the chat model used for analysis requests. BaseURL may point at
// a compatible third-party endpoint; leave it empty for the default API.
type ClientParams struct {
	Model   string
	BaseURL string
	APIKey  string
}

// NewClient creates a Client from the given parameters. A missing API key
// or model is a configuration error, reported here so no request is ever
// scheduled against an unusable backend.
//
// Example:
//
//	client, err := openai.NewClient(openai.ClientParams{
//		Model:  "gpt-4o-mini",
//		APIKey: os.Getenv("OPENAI_API_KEY"),
//	})
func NewClient(params ClientParams) (*Client, error) {
	if params.APIKey == "" {
		return nil, fmt.Errorf("openai: missing API key")
	}
	if params.Model == "" {
		return nil, fmt.Errorf("openai: missing model")
	}

	options := []option.RequestOption{
		option.WithAPIKey(params.APIKey),
	}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}
	client := openai.NewClient(options...)

	return &Client{
		model:   params.Model,
		baseURL: params.BaseURL,
		chat:    &client,
	}, nil
}
