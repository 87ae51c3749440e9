package ollama

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// DefaultBaseURL is used when no Ollama server address is configured.
const DefaultBaseURL = "http://localhost:11434"

// Client implements ai.TextAIClient against a locally-hosted Ollama server.
// Requests are throttled through a weighted semaphore since local models
// degrade badly under parallel load.
type Client struct {
	model string

	reqLock *semaphore.Weighted

	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client

	api *api.Client
}

// ClientParams contains configuration options for creating a new Client.
type ClientParams struct {
	Model   string
	BaseURL string
	APIKey  string

	// MaxConcurrentRequests bounds in-flight requests to the server.
	// Values below 1 are treated as 1.
	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewClient creates a new Ollama-backed AI client. It connects to the server
// at params.BaseURL (or DefaultBaseURL if empty) and uses params.Model for
// all generation requests.
//
// Example:
//
//	client, err := ollama.NewClient(ollama.ClientParams{
//		Model:                 "llama3.1",
//		MaxConcurrentRequests: 2,
//	})
func NewClient(params ClientParams) (*Client, error) {
	if params.Model == "" {
		return nil, errors.New("ollama: missing model name")
	}

	base := params.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}

	httpClient := http.DefaultClient
	if params.APIKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{
					"Authorization": "Bearer " + params.APIKey,
				},
				rt: http.DefaultTransport,
			},
		}
	}

	maxReq := params.MaxConcurrentRequests
	if maxReq < 1 {
		maxReq = 1
	}

	return &Client{
		model: params.Model,

		reqLock: semaphore.NewWeighted(maxReq),

		baseURL:    u,
		apiKey:     params.APIKey,
		httpClient: httpClient,

		api: api.NewClient(u, httpClient),
	}, nil
}
