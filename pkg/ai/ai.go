package ai

import (
	"context"
	"reflect"

	"github.com/invopop/jsonschema"
)

// TextAIClient is the outbound interface to the external text-analysis
// service. Implementations send one prompt and return the raw completion
// text; they make no promise about the shape of that text, so callers run
// every response through the parse chain in this package.
type TextAIClient interface {
	Generate(
		ctx context.Context,
		prompt string,
		opts ...GenerateOption,
	) (string, error)
}

// GenerateOptions holds configuration for generation requests.
type GenerateOptions struct {
	Model         string   // Model identifier to use for generation
	SystemPrompts []string // System prompts prepended to the request
	Temperature   float64  // Sampling temperature (0.0-2.0)

	// Structured-output hint. Backends that support schema-constrained
	// responses use it; others ignore it. The response still goes through
	// the parse chain either way.
	FormatName        string
	FormatDescription string
	FormatSchema      any
}

// GenerateOption is a functional option for configuring generation requests.
type GenerateOption func(*GenerateOptions)

// WithModel returns a GenerateOption that sets the model to use for generation.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithSystemPrompts returns a GenerateOption that sets the system prompts
// to prepend to the generation request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature returns a GenerateOption that sets the sampling temperature.
// Higher values (e.g., 1.0) produce more random outputs, while lower values
// (e.g., 0.2) make outputs more focused and deterministic.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithJSONFormat returns a GenerateOption that asks the backend to constrain
// its output to the JSON schema generated from value. Backends without
// structured-output support ignore the hint.
func WithJSONFormat(name, description string, value any) GenerateOption {
	return func(o *GenerateOptions) {
		o.FormatName = name
		o.FormatDescription = description
		o.FormatSchema = GenerateSchema(value)
	}
}

// GenerateSchema reflects a JSON Schema for value in the shape
// structured-output backends take: definitions inlined rather than
// referenced, additional properties rejected. A pointer is dereferenced to
// its element type first.
func GenerateSchema(value any) any {
	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return r.Reflect(reflect.New(t).Interface())
}
