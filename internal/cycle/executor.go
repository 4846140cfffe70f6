package cycle

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/notsingle/internal/logging"
	"github.com/notsingle/internal/store"
	"github.com/notsingle/pkg/models"
)

// ApplyReport counts the effects of one decision
type ApplyReport struct {
	MatchesCreated   int `json:"matches_created"`
	Accepted         int `json:"accepted"`
	Rejected         int `json:"rejected"`
	MessagesAppended int `json:"messages_appended"`
	HeatEscalations  int `json:"heat_escalations"`
	Ghosted          int `json:"ghosted"`
	Blocked          int `json:"blocked"`
	MemoriesUpdated  int `json:"memories_updated"`
	Skipped          int `json:"skipped"`
}

// Executor applies decisions to the store
type Executor struct {
	store store.Store
	intn  func(n int) int
}

func NewExecutor(s store.Store) *Executor {
	return &Executor{store: s, intn: rand.IntN}
}

// Apply commits the effects of d for persona in a fixed order: swipes,
// accepts and rejects, replies, ghosts and blocks, persona state, memory.
// Items that reference unknown ids or disallowed transitions are skipped.
// A store failure aborts the remaining effects.
func (e *Executor) Apply(ctx context.Context, persona *models.Persona, d *models.Decision, awakeCount int, now time.Time) (*ApplyReport, error) {
	a := &applier{
		Executor: e,
		persona:  persona,
		now:      now,
		log:      logging.FromContext(ctx),
		report:   &ApplyReport{},
	}

	steps := []func(context.Context) error{
		func(ctx context.Context) error { return a.swipes(ctx, d.Swipes) },
		func(ctx context.Context) error { return a.respond(ctx, d.Accepts, models.MatchMatched) },
		func(ctx context.Context) error { return a.respond(ctx, d.Rejects, models.MatchRejected) },
		func(ctx context.Context) error { return a.replies(ctx, d.Replies, awakeCount) },
		func(ctx context.Context) error { return a.end(ctx, d.MatchesToGhost, models.MatchGhosted) },
		func(ctx context.Context) error { return a.end(ctx, d.MatchesToBlock, models.MatchBlocked) },
		func(ctx context.Context) error { return a.state(ctx, d) },
		func(ctx context.Context) error { return a.sharedMemory(ctx, d) },
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return a.report, err
		}
	}
	return a.report, nil
}

// EnterStasis invalidates the user's credential and puts all of their personas into stasis
func (e *Executor) EnterStasis(ctx context.Context, userID string, now time.Time) error {
	if err := e.store.InvalidateUserKey(ctx, userID, now); err != nil {
		return fmt.Errorf("invalidate key: %w", err)
	}
	n, err := e.store.SetOwnerPersonasStasis(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("set personas to stasis: %w", err)
	}
	logging.FromContext(ctx).Zerolog().Warn().
		Str("user_id", userID).
		Int("personas", n).
		Msg("credential rejected, personas moved to stasis")
	return nil
}

type applier struct {
	*Executor
	persona *models.Persona
	now     time.Time
	log     *logging.CycleLogger
	report  *ApplyReport
	// matches that received memory from their own reply
	replyMemory map[string]bool
}

func (a *applier) skip(kind, id, reason string) {
	a.report.Skipped++
	a.log.Zerolog().Debug().Str("action", kind).Str("id", id).Str("reason", reason).Msg("skipped decision item")
}

func (a *applier) swipes(ctx context.Context, targets []string) error {
	for _, target := range targets {
		target = strings.TrimSpace(target)
		if _, err := uuid.Parse(target); err != nil {
			a.skip("swipe", target, "malformed id")
			continue
		}
		if target == a.persona.ID {
			a.skip("swipe", target, "self")
			continue
		}
		if _, err := a.store.GetPersona(ctx, target); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				a.skip("swipe", target, "unknown persona")
				continue
			}
			return storeErr(a.persona.ID, "load swipe target", err)
		}
		exists, err := a.store.MatchExistsBetween(ctx, a.persona.ID, target)
		if err != nil {
			return storeErr(a.persona.ID, "check existing match", err)
		}
		if exists {
			a.skip("swipe", target, "already matched")
			continue
		}

		m := &models.Match{
			PersonaIDs:   [2]string{a.persona.ID, target},
			Status:       models.MatchPending,
			HeatLevel:    models.MinHeatLevel,
			InitiatorID:  a.persona.ID,
			LastActivity: a.now,
			CreatedAt:    a.now,
		}
		if err := a.store.CreateMatch(ctx, m); err != nil {
			if errors.Is(err, store.ErrConflict) {
				a.skip("swipe", target, "already matched")
				continue
			}
			return storeErr(a.persona.ID, "create match", err)
		}
		a.report.MatchesCreated++
	}
	return nil
}

// respond handles accepts and rejects of incoming requests
func (a *applier) respond(ctx context.Context, matchIDs []string, to models.MatchStatus) error {
	for _, id := range matchIDs {
		m, ok, err := a.participating(ctx, "respond", id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if m.Status != models.MatchPending {
			a.skip("respond", id, "not pending")
			continue
		}
		if m.InitiatorID == a.persona.ID {
			a.skip("respond", id, "own request")
			continue
		}
		changed, err := a.store.TransitionMatch(ctx, m.ID, models.MatchPending, to)
		if err != nil {
			return storeErr(a.persona.ID, "transition match", err)
		}
		if !changed {
			a.skip("respond", id, "status changed concurrently")
			continue
		}
		if to == models.MatchMatched {
			a.report.Accepted++
		} else {
			a.report.Rejected++
		}
	}
	return nil
}

func (a *applier) replies(ctx context.Context, replies []models.Reply, awakeCount int) error {
	a.replyMemory = make(map[string]bool)
	for _, r := range replies {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			a.skip("reply", r.MatchID, "empty text")
			continue
		}
		m, ok, err := a.participating(ctx, "reply", r.MatchID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if m.Status != models.MatchMatched {
			a.skip("reply", r.MatchID, "match not active")
			continue
		}

		delay := NaturalLatency(awakeCount, a.intn)
		msg := models.Message{
			SenderID:  a.persona.ID,
			Text:      text,
			Type:      models.NormalizeMessageType(r.Type),
			Stage:     models.NormalizeStage(r.Stage),
			Metadata:  r.Metadata,
			Timestamp: a.now,
			ReleaseAt: a.now.Add(delay),
		}
		if _, err := a.store.AppendMessage(ctx, m.ID, msg); err != nil {
			return storeErr(a.persona.ID, "append message", err)
		}
		a.report.MessagesAppended++

		if err := a.store.TouchMatch(ctx, m.ID, a.now, r.EscalateHeat); err != nil {
			return storeErr(a.persona.ID, "touch match", err)
		}
		if r.EscalateHeat && m.HeatLevel < models.MaxHeatLevel {
			a.report.HeatEscalations++
		}

		if r.Memory != nil {
			if err := a.store.UpdateConversationMemory(ctx, m.ID, r.Memory.ToMemory()); err != nil {
				return storeErr(a.persona.ID, "update memory", err)
			}
			a.replyMemory[m.ID] = true
			a.report.MemoriesUpdated++
		}
	}
	return nil
}

// end handles ghosting and blocking
func (a *applier) end(ctx context.Context, matchIDs []string, to models.MatchStatus) error {
	for _, id := range matchIDs {
		m, ok, err := a.participating(ctx, string(to), id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !m.CanTransition(to) {
			a.skip(string(to), id, "transition not allowed from "+string(m.Status))
			continue
		}
		changed, err := a.store.TransitionMatch(ctx, m.ID, m.Status, to)
		if err != nil {
			return storeErr(a.persona.ID, "transition match", err)
		}
		if !changed {
			a.skip(string(to), id, "status changed concurrently")
			continue
		}
		if to == models.MatchGhosted {
			a.report.Ghosted++
		} else {
			a.report.Blocked++
		}
	}
	return nil
}

func (a *applier) state(ctx context.Context, d *models.Decision) error {
	upd := store.PersonaStateUpdate{
		Status:          models.StatusActive,
		EnergyUsed:      d.Energy(),
		ClearStasisDate: true,
	}
	if d.NextMood != nil {
		if mood := strings.TrimSpace(*d.NextMood); mood != "" {
			upd.Mood = &mood
		}
	}
	if d.UpdateLoyaltyLimit != nil {
		limit := int(*d.UpdateLoyaltyLimit)
		upd.LoyaltyLimit = &limit
	}
	if _, err := a.store.UpdatePersonaState(ctx, a.persona.ID, upd); err != nil {
		return storeErr(a.persona.ID, "update persona state", err)
	}
	return nil
}

// sharedMemory applies the top-level memory to the first reply's conversation
// unless that reply already carried its own memory.
func (a *applier) sharedMemory(ctx context.Context, d *models.Decision) error {
	if d.AutonomousMemory == nil || len(d.Replies) == 0 {
		return nil
	}
	matchID := d.Replies[0].MatchID
	if a.replyMemory[matchID] {
		return nil
	}
	m, ok, err := a.participating(ctx, "memory", matchID)
	if err != nil || !ok {
		return err
	}
	err = a.store.UpdateConversationMemory(ctx, m.ID, d.AutonomousMemory.ToMemory())
	if errors.Is(err, store.ErrNotFound) {
		a.skip("memory", matchID, "no conversation")
		return nil
	}
	if err != nil {
		return storeErr(a.persona.ID, "update memory", err)
	}
	a.report.MemoriesUpdated++
	return nil
}

// participating loads a match and reports whether the acting persona is part of it
func (a *applier) participating(ctx context.Context, kind, id string) (*models.Match, bool, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		a.skip(kind, id, "malformed id")
		return nil, false, nil
	}
	m, err := a.store.GetMatch(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		a.skip(kind, id, "unknown match")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeErr(a.persona.ID, "load match", err)
	}
	if !m.Involves(a.persona.ID) {
		a.skip(kind, id, "not a participant")
		return nil, false, nil
	}
	return m, true, nil
}

func storeErr(personaID, op string, err error) error {
	return newError(KindStore, personaID, op, err)
}
