package cycle

import (
	"context"
	"errors"
	"time"

	"github.com/notsingle/internal/llm"
	"github.com/notsingle/internal/logging"
	"github.com/notsingle/internal/store"
	"github.com/notsingle/pkg/models"
)

// ModelInvoker is the model fallback chain used by a cycle
type ModelInvoker interface {
	Invoke(ctx context.Context, credential, prompt string, cfg llm.GenerationConfig) (*llm.Result, error)
}

// Orchestrator runs one persona's decision cycle: build context, fill the
// prompt, invoke the model, parse the decision and apply it.
type Orchestrator struct {
	store     store.Store
	assembler *Assembler
	prompts   *PromptBuilder
	invoker   ModelInvoker
	executor  *Executor
	genConfig llm.GenerationConfig
	now       func() time.Time
}

// Option customises an Orchestrator
type Option func(*Orchestrator)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithExecutor replaces the default executor
func WithExecutor(e *Executor) Option {
	return func(o *Orchestrator) { o.executor = e }
}

func NewOrchestrator(s store.Store, invoker ModelInvoker, prompts *PromptBuilder, temperature float64, opts ...Option) *Orchestrator {
	if prompts == nil {
		prompts = NewPromptBuilder("")
	}
	o := &Orchestrator{
		store:     s,
		assembler: NewAssembler(s),
		prompts:   prompts,
		invoker:   invoker,
		executor:  NewExecutor(s),
		genConfig: llm.GenerationConfig{ResponseFormat: llm.ResponseFormatJSON, Temperature: temperature},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunCycle returns the applied decision, or nil without error when the
// owner has no usable credential. Failures are *Error values.
func (o *Orchestrator) RunCycle(ctx context.Context, personaID string, awakeCount int) (decision *models.Decision, err error) {
	cl := logging.StartCycleLogging(personaID)
	ctx = logging.NewContext(ctx, cl)
	defer func() { cl.Finish(err) }()

	if awakeCount < 1 {
		awakeCount = 1
	}
	now := o.now()

	cl.LogSection("load")
	persona, err := o.store.GetPersona(ctx, personaID)
	if err != nil {
		return nil, o.loadErr(personaID, "load persona", err)
	}
	user, err := o.store.GetUser(ctx, persona.OwnerID)
	if err != nil {
		return nil, o.loadErr(personaID, "load owner", err)
	}

	if !user.HasUsableKey() {
		if user.GeminiAPIKey == "" && user.IsKeyValid {
			if err := o.store.InvalidateUserKey(ctx, user.ID, now); err != nil {
				cl.LogError("invalidate missing key", err)
			}
		}
		cl.Log("owner has no usable credential, skipping")
		return nil, nil
	}

	cl.LogSection("context")
	dc, err := o.assembler.BuildContext(ctx, persona, now)
	if err != nil {
		return nil, storeErr(personaID, "build context", err)
	}
	cl.Log("context: %d incoming, %d active, discovery limit reached=%t",
		len(dc.IncomingRequests), len(dc.ActiveMatches), dc.Discovery.LimitReached)

	prompt, err := o.prompts.Build(dc)
	if err != nil {
		return nil, newError(KindDecisionParse, personaID, "build prompt", err)
	}

	cl.LogSection("invoke")
	res, err := o.invoker.Invoke(ctx, user.GeminiAPIKey, prompt, o.genConfig)
	if err != nil {
		if llm.IsCredentialError(err) {
			cl.LogError("invoke", err)
			if serr := o.executor.EnterStasis(ctx, user.ID, now); serr != nil {
				cl.LogError("enter stasis", serr)
				err = errors.Join(err, serr)
			}
			return nil, newError(KindCredentialInvalid, personaID, "model rejected credential", err)
		}
		return nil, newError(KindModelInvocation, personaID, "invoke model", err)
	}

	cl.LogSection("parse")
	decision, stats, err := llm.ParseDecision(res.Text)
	if err != nil {
		return nil, newError(KindDecisionParse, personaID, "parse decision from "+res.Model, err)
	}
	if stats.WasRepaired {
		cl.Log("decision JSON repaired: %v", stats.Strategies)
	}

	cl.LogSection("apply")
	report, err := o.executor.Apply(ctx, persona, decision, awakeCount, now)
	if err != nil {
		return nil, err
	}
	cl.Zerolog().Info().
		Str("model", res.Model).
		Interface("report", report).
		Str("thoughts", decision.Thoughts).
		Msg("decision applied")

	return decision, nil
}

func (o *Orchestrator) loadErr(personaID, op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return newError(KindNotFound, personaID, op, err)
	}
	return storeErr(personaID, op, err)
}
