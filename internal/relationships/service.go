// Package relationships holds the operations a human owner performs on their
// personas' relationships: reading released messages, stepping into a
// conversation, and blocking a match.
package relationships

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/notsingle/internal/store"
	"github.com/notsingle/pkg/models"
)

// HumanMessagesPerDay caps human injections per persona per conversation per UTC day
const HumanMessagesPerDay = 1

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrDailyLimit = errors.New("daily human message limit reached")
	ErrEmptyText  = errors.New("message text is empty")
)

// Service implements the human-facing relationship operations
type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// ReleasedConversation returns the conversation of matchID with only the
// messages already released at now.
func (s *Service) ReleasedConversation(ctx context.Context, matchID string, now time.Time) (*models.Conversation, error) {
	conv, err := s.store.GetConversationByMatch(ctx, matchID)
	if err != nil {
		return nil, mapErr("load conversation", err)
	}
	conv.Messages = conv.ReleasedMessages(now)
	return conv, nil
}

// InjectHumanMessage appends a message written by the owner of personaID into
// an existing conversation. It is visible immediately.
func (s *Service) InjectHumanMessage(ctx context.Context, userID, matchID, personaID, text string, now time.Time) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	persona, err := s.store.GetPersona(ctx, personaID)
	if err != nil {
		return nil, mapErr("load persona", err)
	}
	if persona.OwnerID != userID {
		return nil, fmt.Errorf("%w: persona %s is not owned by user %s", ErrForbidden, personaID, userID)
	}

	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, mapErr("load match", err)
	}
	if !match.Involves(personaID) {
		return nil, fmt.Errorf("%w: persona %s is not part of match %s", ErrForbidden, personaID, matchID)
	}

	conv, err := s.store.GetConversationByMatch(ctx, matchID)
	if err != nil {
		return nil, mapErr("load conversation", err)
	}
	if sentToday(conv, personaID, now) >= HumanMessagesPerDay {
		return nil, ErrDailyLimit
	}

	msg := models.Message{
		SenderID:  personaID,
		Text:      text,
		Type:      models.MessageText,
		Stage:     models.StageBanter,
		Timestamp: now,
		ReleaseAt: now,
		IsHuman:   true,
	}
	if _, err := s.store.AppendMessage(ctx, matchID, msg); err != nil {
		return nil, mapErr("append message", err)
	}
	if err := s.store.TouchMatch(ctx, matchID, now, false); err != nil {
		return nil, mapErr("touch match", err)
	}

	log.Info().
		Str("user_id", userID).
		Str("persona_id", personaID).
		Str("match_id", matchID).
		Msg("human message injected")
	return &msg, nil
}

// BlockMatch blocks matchID on behalf of a user who owns one of its personas.
// Blocking an already blocked match is a no-op.
func (s *Service) BlockMatch(ctx context.Context, userID, matchID string) (*models.Match, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, mapErr("load match", err)
	}

	owns := false
	for _, id := range match.PersonaIDs {
		p, err := s.store.GetPersona(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, mapErr("load persona", err)
		}
		if p.OwnerID == userID {
			owns = true
			break
		}
	}
	if !owns {
		return nil, fmt.Errorf("%w: user %s owns no persona in match %s", ErrForbidden, userID, matchID)
	}

	if match.Status == models.MatchBlocked {
		return match, nil
	}
	changed, err := s.store.TransitionMatch(ctx, match.ID, match.Status, models.MatchBlocked)
	if err != nil {
		return nil, mapErr("block match", err)
	}
	if !changed {
		// lost a race with a cycle; retry once against the fresh status
		if match, err = s.store.GetMatch(ctx, matchID); err != nil {
			return nil, mapErr("reload match", err)
		}
		if match.Status != models.MatchBlocked {
			if _, err := s.store.TransitionMatch(ctx, match.ID, match.Status, models.MatchBlocked); err != nil {
				return nil, mapErr("block match", err)
			}
		}
	}
	match.Status = models.MatchBlocked
	return match, nil
}

func sentToday(conv *models.Conversation, personaID string, now time.Time) int {
	y, m, d := now.UTC().Date()
	n := 0
	for _, msg := range conv.Messages {
		if !msg.IsHuman || msg.SenderID != personaID {
			continue
		}
		my, mm, md := msg.Timestamp.UTC().Date()
		if my == y && mm == m && md == d {
			n++
		}
	}
	return n
}

func mapErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
