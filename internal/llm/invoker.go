package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/notsingle/internal/logging"
	"github.com/notsingle/internal/retry"
)

// DefaultAttemptTimeout bounds a single model attempt
const DefaultAttemptTimeout = 45 * time.Second

// InvokerConfig configures the model fallback chain
type InvokerConfig struct {
	Models         []string
	AttemptTimeout time.Duration
	// RequestsPerSecond limits outbound attempts across all cycles; 0 disables the limit.
	RequestsPerSecond float64
}

// Result is a successful generation
type Result struct {
	Text     string
	Model    string
	Attempts int
}

// Invoker tries each configured model in order, once, until one answers
type Invoker struct {
	client         Client
	models         []string
	attemptTimeout time.Duration
	limiter        *rate.Limiter
}

func NewInvoker(client Client, cfg InvokerConfig) *Invoker {
	inv := &Invoker{
		client:         client,
		models:         append([]string(nil), cfg.Models...),
		attemptTimeout: cfg.AttemptTimeout,
	}
	if inv.attemptTimeout <= 0 {
		inv.attemptTimeout = DefaultAttemptTimeout
	}
	if cfg.RequestsPerSecond > 0 {
		inv.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return inv
}

// Models returns the fallback order
func (inv *Invoker) Models() []string {
	return append([]string(nil), inv.models...)
}

// Invoke runs prompt against the fallback chain. A credential rejection stops
// the chain immediately with ErrCredentialInvalid. Any other failure moves on
// to the next model; when none succeed the error wraps ErrAllModelsFailed and
// the last failure.
func (inv *Invoker) Invoke(ctx context.Context, credential, prompt string, cfg GenerationConfig) (*Result, error) {
	if len(inv.models) == 0 {
		return nil, ErrNoModels
	}
	logger := logging.FromContext(ctx)
	zl := logger.Zerolog()

	var lastErr error
	attempts := 0
	for _, model := range inv.models {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("model invocation cancelled: %w", err)
		}
		if inv.limiter != nil {
			if err := inv.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("model invocation cancelled: %w", err)
			}
		}

		attempts++
		logger.LogRequest(model, prompt)
		text, err := inv.attempt(ctx, credential, model, prompt, cfg)
		if err == nil {
			logger.LogResponse(model, text)
			zl.Info().Str("model", model).Int("attempt", attempts).Msg("model answered")
			return &Result{Text: text, Model: model, Attempts: attempts}, nil
		}

		if IsCredentialError(err) {
			zl.Warn().Err(err).Str("model", model).Msg("model credential rejected")
			return nil, fmt.Errorf("%w: %s: %w", ErrCredentialInvalid, model, err)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("model invocation cancelled: %w", ctx.Err())
		}

		zl.Warn().Err(err).
			Str("model", model).
			Int("attempt", attempts).
			Bool("transient", retry.IsRetryableError(err)).
			Msg("model failed, trying next")
		lastErr = err
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrAllModelsFailed, attempts, lastErr)
}

func (inv *Invoker) attempt(ctx context.Context, credential, model, prompt string, cfg GenerationConfig) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, inv.attemptTimeout)
	defer cancel()
	return inv.client.Generate(attemptCtx, credential, model, prompt, cfg)
}
