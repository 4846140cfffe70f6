package llm

import "context"

// ResponseFormatJSON asks the model for a bare JSON document
const ResponseFormatJSON = "application/json"

// GenerationConfig carries the per-call generation parameters
type GenerationConfig struct {
	ResponseFormat string
	Temperature    float64
}

// Client performs a single generation call against one model
type Client interface {
	Generate(ctx context.Context, credential, model, prompt string, cfg GenerationConfig) (string, error)
}

// ClientFunc adapts a function to the Client interface
type ClientFunc func(ctx context.Context, credential, model, prompt string, cfg GenerationConfig) (string, error)

func (f ClientFunc) Generate(ctx context.Context, credential, model, prompt string, cfg GenerationConfig) (string, error) {
	return f(ctx, credential, model, prompt, cfg)
}
