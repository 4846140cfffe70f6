// Package store persists users, personas, matches and conversations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/notsingle/pkg/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// PersonaStateUpdate is the state write performed at the end of a successful cycle
type PersonaStateUpdate struct {
	Status models.PersonaStatus
	// Mood is left unchanged when nil.
	Mood *string
	// EnergyUsed is subtracted from the social battery, floored at 0.
	EnergyUsed int
	// LoyaltyLimit is clamped to [1,10]; unchanged when nil.
	LoyaltyLimit    *int
	ClearStasisDate bool
}

type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	// InvalidateUserKey marks the user's model credential invalid as of at.
	InvalidateUserKey(ctx context.Context, userID string, at time.Time) error

	CreatePersona(ctx context.Context, p *models.Persona) error
	GetPersona(ctx context.Context, id string) (*models.Persona, error)
	ListPersonasByStatus(ctx context.Context, status models.PersonaStatus) ([]*models.Persona, error)
	// DiscoveryCandidates returns active, mutually compatible personas that
	// share no match of any status with p, at most limit of them.
	DiscoveryCandidates(ctx context.Context, p *models.Persona, limit int) ([]*models.Persona, error)
	UpdatePersonaState(ctx context.Context, id string, upd PersonaStateUpdate) (*models.Persona, error)
	// SetOwnerPersonasStasis moves every persona of ownerID to stasis and returns how many changed.
	SetOwnerPersonasStasis(ctx context.Context, ownerID string, at time.Time) (int, error)

	// CreateMatch returns ErrConflict when the pair already has a match.
	CreateMatch(ctx context.Context, m *models.Match) error
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	// ListMatchesForPersona returns the persona's non-blocked matches, most recent activity first.
	ListMatchesForPersona(ctx context.Context, personaID string) ([]*models.Match, error)
	// MatchExistsBetween reports whether a and b share a match of any status.
	MatchExistsBetween(ctx context.Context, a, b string) (bool, error)
	// TransitionMatch sets status to "to" only if it is currently "from".
	// It reports whether the row changed.
	TransitionMatch(ctx context.Context, id string, from, to models.MatchStatus) (bool, error)
	// TouchMatch sets last activity and, when escalate is set, raises heat by one up to 6.
	TouchMatch(ctx context.Context, id string, at time.Time, escalate bool) error

	GetConversationByMatch(ctx context.Context, matchID string) (*models.Conversation, error)
	// AppendMessage appends msg to the match's conversation, creating the
	// conversation if needed, and returns the conversation id.
	AppendMessage(ctx context.Context, matchID string, msg models.Message) (string, error)
	// UpdateConversationMemory returns ErrNotFound if the match has no conversation.
	UpdateConversationMemory(ctx context.Context, matchID string, mem models.AutonomousMemory) error
}
