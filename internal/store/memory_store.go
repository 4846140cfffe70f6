package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notsingle/pkg/models"
)

// MemoryStore is a threadsafe in-memory Store used by tests and local runs
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*models.User
	personas      map[string]*models.Persona
	matches       map[string]*models.Match
	conversations map[string]*models.Conversation // by match id
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*models.User),
		personas:      make(map[string]*models.Persona),
		matches:       make(map[string]*models.Match),
		conversations: make(map[string]*models.Conversation),
		now:           time.Now,
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, ok := s.users[u.ID]; ok {
		return ErrConflict
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) InvalidateUserKey(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.IsKeyValid = false
	t := at
	u.LastKeyCheck = &t
	return nil
}

func (s *MemoryStore) CreatePersona(ctx context.Context, p *models.Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := s.personas[p.ID]; ok {
		return ErrConflict
	}
	applyPersonaDefaults(p)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	p.UpdatedAt = p.CreatedAt
	s.personas[p.ID] = clonePersona(p)
	return nil
}

func (s *MemoryStore) GetPersona(ctx context.Context, id string) (*models.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.personas[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePersona(p), nil
}

func (s *MemoryStore) ListPersonasByStatus(ctx context.Context, status models.PersonaStatus) ([]*models.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Persona, 0)
	for _, p := range s.personas {
		if p.State.Status == status {
			out = append(out, clonePersona(p))
		}
	}
	sortPersonas(out)
	return out, nil
}

func (s *MemoryStore) DiscoveryCandidates(ctx context.Context, p *models.Persona, limit int) ([]*models.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Persona, 0)
	for _, c := range s.personas {
		if c.ID == p.ID || c.State.Status != models.StatusActive {
			continue
		}
		if s.matchBetweenLocked(p.ID, c.ID) != nil {
			continue
		}
		if !models.MutuallyCompatible(p, c) {
			continue
		}
		out = append(out, clonePersona(c))
	}
	sortPersonas(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdatePersonaState(ctx context.Context, id string, upd PersonaStateUpdate) (*models.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.personas[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Status != "" {
		p.State.Status = upd.Status
	}
	if upd.Mood != nil {
		p.State.CurrentMood = *upd.Mood
	}
	p.State.SocialBattery -= upd.EnergyUsed
	if p.State.SocialBattery < 0 {
		p.State.SocialBattery = 0
	}
	if upd.LoyaltyLimit != nil {
		p.LoyaltyLimit = models.ClampLoyaltyLimit(*upd.LoyaltyLimit)
	}
	if upd.ClearStasisDate {
		p.LastStasisDate = nil
	}
	p.UpdatedAt = s.now()
	return clonePersona(p), nil
}

func (s *MemoryStore) SetOwnerPersonasStasis(ctx context.Context, ownerID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.personas {
		if p.OwnerID != ownerID {
			continue
		}
		p.State.Status = models.StatusStasis
		t := at
		p.LastStasisDate = &t
		p.UpdatedAt = at
		n++
	}
	return n, nil
}

func (s *MemoryStore) CreateMatch(ctx context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.PersonaIDs[0] == m.PersonaIDs[1] {
		return ErrConflict
	}
	if s.matchBetweenLocked(m.PersonaIDs[0], m.PersonaIDs[1]) != nil {
		return ErrConflict
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.HeatLevel = models.ClampHeat(m.HeatLevel)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	if m.LastActivity.IsZero() {
		m.LastActivity = m.CreatedAt
	}
	cp := *m
	s.matches[m.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListMatchesForPersona(ctx context.Context, personaID string) ([]*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Match, 0)
	for _, m := range s.matches {
		if m.Involves(personaID) && m.Status != models.MatchBlocked {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) MatchExistsBetween(ctx context.Context, a, b string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchBetweenLocked(a, b) != nil, nil
}

func (s *MemoryStore) TransitionMatch(ctx context.Context, id string, from, to models.MatchStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return false, ErrNotFound
	}
	if m.Status != from {
		return false, nil
	}
	m.Status = to
	return true, nil
}

func (s *MemoryStore) TouchMatch(ctx context.Context, id string, at time.Time, escalate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return ErrNotFound
	}
	m.LastActivity = at
	if escalate {
		m.HeatLevel = models.ClampHeat(m.HeatLevel + 1)
	}
	return nil
}

func (s *MemoryStore) GetConversationByMatch(ctx context.Context, matchID string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneConversation(c), nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, matchID string, msg models.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[matchID]; !ok {
		return "", ErrNotFound
	}
	c, ok := s.conversations[matchID]
	if !ok {
		c = &models.Conversation{
			ID:               uuid.NewString(),
			MatchID:          matchID,
			Messages:         []models.Message{},
			AutonomousMemory: models.DefaultAutonomousMemory(),
			CreatedAt:        s.now(),
		}
		s.conversations[matchID] = c
	}
	c.Messages = append(c.Messages, cloneMessage(msg))
	c.UpdatedAt = s.now()
	return c.ID, nil
}

func (s *MemoryStore) UpdateConversationMemory(ctx context.Context, matchID string, mem models.AutonomousMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[matchID]
	if !ok {
		return ErrNotFound
	}
	c.AutonomousMemory = cloneMemory(mem)
	c.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) matchBetweenLocked(a, b string) *models.Match {
	for _, m := range s.matches {
		if m.Involves(a) && m.Involves(b) {
			return m
		}
	}
	return nil
}

func applyPersonaDefaults(p *models.Persona) {
	if p.State.Status == "" {
		p.State.Status = models.StatusActive
	}
	if p.State.CurrentMood == "" {
		p.State.CurrentMood = models.DefaultMood
	}
	if p.LoyaltyLimit == 0 {
		p.LoyaltyLimit = models.DefaultLoyaltyLimit
	}
	if p.SexualIntensity == 0 {
		p.SexualIntensity = models.DefaultSexualIntensity
	}
	if p.ActiveHours.Timezone == "" {
		p.ActiveHours.Timezone = models.DefaultTimezone
	}
}

func sortPersonas(ps []*models.Persona) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.Before(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	if u.LastKeyCheck != nil {
		t := *u.LastKeyCheck
		cp.LastKeyCheck = &t
	}
	return &cp
}

func clonePersona(p *models.Persona) *models.Persona {
	cp := *p
	cp.InterestedIn = append([]models.Gender(nil), p.InterestedIn...)
	cp.Directives = append([]string(nil), p.Directives...)
	cp.ShadowProfile.Traits = append([]string(nil), p.ShadowProfile.Traits...)
	if p.LastStasisDate != nil {
		t := *p.LastStasisDate
		cp.LastStasisDate = &t
	}
	return &cp
}

func cloneMessage(m models.Message) models.Message {
	if m.Metadata != nil {
		md := *m.Metadata
		m.Metadata = &md
	}
	return m
}

func cloneMemory(m models.AutonomousMemory) models.AutonomousMemory {
	m.HardFacts = append([]string{}, m.HardFacts...)
	m.Vibes = append([]string{}, m.Vibes...)
	return m
}

func cloneConversation(c *models.Conversation) *models.Conversation {
	cp := *c
	cp.Messages = make([]models.Message, len(c.Messages))
	for i, m := range c.Messages {
		cp.Messages[i] = cloneMessage(m)
	}
	cp.AutonomousMemory = cloneMemory(c.AutonomousMemory)
	return &cp
}
