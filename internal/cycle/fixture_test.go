package cycle

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/notsingle/internal/llm"
	"github.com/notsingle/internal/store"
	"github.com/notsingle/pkg/models"
)

var fixedNow = time.Date(2026, 3, 11, 20, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *store.MemoryStore
	user  *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, ctx: context.Background(), store: store.NewMemoryStore()}
	f.user = f.addUser("key-123", true)
	return f
}

func (f *fixture) addUser(key string, valid bool) *models.User {
	f.t.Helper()
	u := &models.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", GeminiAPIKey: key, IsKeyValid: valid}
	require.NoError(f.t, f.store.CreateUser(f.ctx, u))
	return u
}

func (f *fixture) addPersona(name string, g models.Gender, wants ...models.Gender) *models.Persona {
	f.t.Helper()
	return f.addPersonaFor(f.user, name, g, wants...)
}

func (f *fixture) addPersonaFor(u *models.User, name string, g models.Gender, wants ...models.Gender) *models.Persona {
	f.t.Helper()
	p := &models.Persona{
		ID:           uuid.NewString(),
		OwnerID:      u.ID,
		Name:         name,
		Gender:       g,
		InterestedIn: wants,
		ActiveHours:  models.ActiveHours{Start: 0, End: 23, Timezone: "UTC"},
		State:        models.PersonaState{Status: models.StatusActive, CurrentMood: "neutral", SocialBattery: 100},
		ShadowProfile: models.ShadowProfile{
			Traits:           []string{name + "-trait"},
			Vocabulary:       "casual",
			MatchPreferences: "kind people",
		},
		LoyaltyLimit: models.DefaultLoyaltyLimit,
		CreatedAt:    fixedNow.Add(-time.Duration(len(name)) * time.Hour),
	}
	require.NoError(f.t, f.store.CreatePersona(f.ctx, p))
	return p
}

func (f *fixture) addMatch(a, b *models.Persona, status models.MatchStatus, initiator *models.Persona) *models.Match {
	f.t.Helper()
	m := &models.Match{
		ID:           uuid.NewString(),
		PersonaIDs:   [2]string{a.ID, b.ID},
		Status:       status,
		HeatLevel:    1,
		InitiatorID:  initiator.ID,
		LastActivity: fixedNow.Add(-time.Hour),
	}
	require.NoError(f.t, f.store.CreateMatch(f.ctx, m))
	return m
}

func (f *fixture) persona(id string) *models.Persona {
	f.t.Helper()
	p, err := f.store.GetPersona(f.ctx, id)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) match(id string) *models.Match {
	f.t.Helper()
	m, err := f.store.GetMatch(f.ctx, id)
	require.NoError(f.t, err)
	return m
}

// orchestrator wires a real Invoker over a scripted client
func (f *fixture) orchestrator(generate llm.ClientFunc) (*Orchestrator, *int) {
	calls := 0
	client := llm.ClientFunc(func(ctx context.Context, credential, model, prompt string, cfg llm.GenerationConfig) (string, error) {
		calls++
		return generate(ctx, credential, model, prompt, cfg)
	})
	inv := llm.NewInvoker(client, llm.InvokerConfig{Models: []string{"model-a", "model-b"}})
	exec := NewExecutor(f.store)
	exec.intn = func(n int) int { return 0 }
	return NewOrchestrator(f.store, inv, nil, 0.9, WithClock(func() time.Time { return fixedNow }), WithExecutor(exec)), &calls
}

func respond(text string) llm.ClientFunc {
	return func(ctx context.Context, credential, model, prompt string, cfg llm.GenerationConfig) (string, error) {
		return text, nil
	}
}

func (f *fixture) executor() *Executor {
	e := NewExecutor(f.store)
	e.intn = func(n int) int { return n - 1 }
	return e
}
