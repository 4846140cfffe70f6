package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// GoogleAIClient talks to the Gemini API through langchaingo. One underlying
// client is kept per credential; the model is chosen per call.
type GoogleAIClient struct {
	mu      sync.Mutex
	clients map[string]llms.Model
	newLLM  func(ctx context.Context, credential string) (llms.Model, error)
}

func NewGoogleAIClient() *GoogleAIClient {
	return &GoogleAIClient{
		clients: make(map[string]llms.Model),
		newLLM: func(ctx context.Context, credential string) (llms.Model, error) {
			return googleai.New(ctx, googleai.WithAPIKey(credential))
		},
	}
}

func (c *GoogleAIClient) Generate(ctx context.Context, credential, model, prompt string, cfg GenerationConfig) (string, error) {
	llm, err := c.model(ctx, credential)
	if err != nil {
		return "", err
	}

	opts := []llms.CallOption{
		llms.WithModel(model),
		llms.WithTemperature(cfg.Temperature),
	}
	if cfg.ResponseFormat == ResponseFormatJSON {
		opts = append(opts, llms.WithJSONMode())
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, llm, prompt, opts...)
	if err != nil {
		if IsCredentialError(err) {
			c.Forget(credential)
		}
		return "", err
	}
	return out, nil
}

// Forget drops the cached client for credential
func (c *GoogleAIClient) Forget(credential string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, credential)
}

func (c *GoogleAIClient) model(ctx context.Context, credential string) (llms.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.clients[credential]; ok {
		return m, nil
	}
	m, err := c.newLLM(ctx, credential)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Gemini client")
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.clients[credential] = m
	return m, nil
}
