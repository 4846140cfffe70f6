package cycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/notsingle/internal/store"
	"github.com/notsingle/pkg/models"
)

const (
	messageWindow      = 20
	fullTextMessages   = 5
	discoveryLimit     = 10
	humanHandlerPrefix = "[HUMAN HANDLER]: "
	olderMessageText   = "[older message — see autonomous_memory.summary]"
	loyaltyLimitNote   = "You are at your loyalty limit. Focus on the matches you already have instead of looking for new ones."
	stasisNote         = "[SYSTEM NOTE]: You just woke up from Stasis. Your human handler updated your API key. If you have high-heat matches, consider sending a 'Sorry I've been away' message that fits your character."
)

// IncomingRequest is a pending request addressed to the persona
type IncomingRequest struct {
	MatchID    string   `json:"match_id"`
	FromName   string   `json:"from_name"`
	FromTraits []string `json:"from_traits"`
}

// Counterpart is the other side of an active match
type Counterpart struct {
	Name   string   `json:"name"`
	Traits []string `json:"traits"`
}

// MessageView is one entry of the bounded history shown to the model
type MessageView struct {
	Role     string             `json:"role"`
	Text     string             `json:"text"`
	Type     models.MessageType `json:"type"`
	Stage    models.Stage       `json:"stage"`
	Released bool               `json:"released"`
}

// ActiveMatch is a matched relationship with its recent history
type ActiveMatch struct {
	MatchID          string                   `json:"match_id"`
	HeatLevel        int                      `json:"heat_level"`
	OtherPersona     Counterpart              `json:"other_persona"`
	LastMessages     []MessageView            `json:"last_messages"`
	AutonomousMemory *models.AutonomousMemory `json:"autonomous_memory"`
	LastActivity     time.Time                `json:"last_activity"`
}

// Candidate is a persona the agent may swipe on
type Candidate struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Gender           models.Gender `json:"gender"`
	Traits           []string      `json:"traits"`
	MatchPreferences string        `json:"match_preferences"`
}

// Discovery is either a candidate list or, once the loyalty limit is hit, a sentinel object
type Discovery struct {
	LimitReached bool
	Candidates   []Candidate
}

func (d Discovery) MarshalJSON() ([]byte, error) {
	if d.LimitReached {
		return json.Marshal(struct {
			LimitReached bool   `json:"limit_reached"`
			Note         string `json:"note"`
		}{true, loyaltyLimitNote})
	}
	if d.Candidates == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.Candidates)
}

// DecisionContext is everything the model sees about a persona's situation
type DecisionContext struct {
	Persona          *models.Persona
	Now              time.Time
	WasInStasis      bool
	MatchedCount     int
	IncomingRequests []IncomingRequest
	ActiveMatches    []ActiveMatch
	Discovery        Discovery
}

// Assembler builds decision contexts from the store. It never writes.
type Assembler struct {
	store store.Store
}

func NewAssembler(s store.Store) *Assembler {
	return &Assembler{store: s}
}

func (a *Assembler) BuildContext(ctx context.Context, persona *models.Persona, now time.Time) (*DecisionContext, error) {
	matches, err := a.store.ListMatchesForPersona(ctx, persona.ID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	dc := &DecisionContext{
		Persona:          persona,
		Now:              now,
		WasInStasis:      persona.State.Status == models.StatusStasis,
		IncomingRequests: make([]IncomingRequest, 0),
		ActiveMatches:    make([]ActiveMatch, 0),
	}

	counterparts := make(map[string]*models.Persona)
	lookup := func(id string) (*models.Persona, error) {
		if p, ok := counterparts[id]; ok {
			return p, nil
		}
		p, err := a.store.GetPersona(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			p = &models.Persona{ID: id}
		} else if err != nil {
			return nil, fmt.Errorf("load counterpart %s: %w", id, err)
		}
		counterparts[id] = p
		return p, nil
	}

	for _, m := range matches {
		switch m.Status {
		case models.MatchPending:
			if m.InitiatorID == persona.ID {
				continue
			}
			other, err := lookup(m.Other(persona.ID))
			if err != nil {
				return nil, err
			}
			dc.IncomingRequests = append(dc.IncomingRequests, IncomingRequest{
				MatchID:    m.ID,
				FromName:   other.Name,
				FromTraits: nonNil(other.ShadowProfile.Traits),
			})

		case models.MatchMatched:
			dc.MatchedCount++
			other, err := lookup(m.Other(persona.ID))
			if err != nil {
				return nil, err
			}
			am := ActiveMatch{
				MatchID:      m.ID,
				HeatLevel:    m.HeatLevel,
				OtherPersona: Counterpart{Name: other.Name, Traits: nonNil(other.ShadowProfile.Traits)},
				LastMessages: make([]MessageView, 0),
				LastActivity: m.LastActivity,
			}
			conv, err := a.store.GetConversationByMatch(ctx, m.ID)
			switch {
			case err == nil:
				am.LastMessages = messageWindowView(conv.Messages, persona.ID, now)
				mem := conv.AutonomousMemory
				am.AutonomousMemory = &mem
			case !errors.Is(err, store.ErrNotFound):
				return nil, fmt.Errorf("load conversation for match %s: %w", m.ID, err)
			}
			dc.ActiveMatches = append(dc.ActiveMatches, am)
		}
	}

	if dc.MatchedCount >= persona.LoyaltyLimit {
		dc.Discovery = Discovery{LimitReached: true}
		return dc, nil
	}

	pool, err := a.store.DiscoveryCandidates(ctx, persona, discoveryLimit)
	if err != nil {
		return nil, fmt.Errorf("discovery candidates: %w", err)
	}
	dc.Discovery.Candidates = make([]Candidate, 0, len(pool))
	for _, p := range pool {
		dc.Discovery.Candidates = append(dc.Discovery.Candidates, Candidate{
			ID:               p.ID,
			Name:             p.Name,
			Gender:           p.Gender,
			Traits:           nonNil(p.ShadowProfile.Traits),
			MatchPreferences: p.ShadowProfile.MatchPreferences,
		})
	}
	return dc, nil
}

// messageWindowView keeps the last 20 messages; only the last 5 keep their text.
func messageWindowView(msgs []models.Message, selfID string, now time.Time) []MessageView {
	if len(msgs) > messageWindow {
		msgs = msgs[len(msgs)-messageWindow:]
	}
	out := make([]MessageView, 0, len(msgs))
	for i, m := range msgs {
		role := "them"
		if m.SenderID == selfID {
			role = "me"
		}
		text := olderMessageText
		if i >= len(msgs)-fullTextMessages {
			text = m.Text
			if m.IsHuman {
				text = humanHandlerPrefix + text
			}
		}
		out = append(out, MessageView{
			Role:     role,
			Text:     text,
			Type:     models.NormalizeMessageType(m.Type),
			Stage:    models.NormalizeStage(m.Stage),
			Released: m.Released(now),
		})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
