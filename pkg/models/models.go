package models

import (
	"time"
)

// Gender is one of the genders a persona can have or be interested in
type Gender string

const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderNonBinary Gender = "non-binary"
)

// PersonaStatus is the lifecycle status stored in Persona.State
type PersonaStatus string

const (
	StatusActive PersonaStatus = "active"
	StatusStasis PersonaStatus = "stasis"
	StatusAsleep PersonaStatus = "asleep"
)

// Persona defaults applied when a record is created without explicit values
const (
	DefaultMood            = "neutral"
	DefaultSocialBattery   = 100
	DefaultLoyaltyLimit    = 4
	DefaultSexualIntensity = 0.5
	DefaultTimezone        = "UTC"

	MinLoyaltyLimit = 1
	MaxLoyaltyLimit = 10
)

// ActiveHours is the persona's main awake window, hours 0-23 in Timezone
type ActiveHours struct {
	Start    int    `json:"start" db:"active_start"`
	End      int    `json:"end" db:"active_end"`
	Timezone string `json:"timezone" db:"timezone"`
}

// PersonaState is the mutable part of a persona
type PersonaState struct {
	Status        PersonaStatus `json:"status" db:"status"`
	CurrentMood   string        `json:"currentMood" db:"current_mood"`
	SocialBattery int           `json:"socialBattery" db:"social_battery"`
}

// ShadowProfile is generated once at creation and never rewritten
type ShadowProfile struct {
	Traits           []string `json:"traits"`
	Vocabulary       string   `json:"vocabulary"`
	MatchPreferences string   `json:"matchPreferences"`
}

// Persona is an autonomous agent owned by a user
type Persona struct {
	ID              string        `json:"id" db:"id"`
	OwnerID         string        `json:"ownerId" db:"owner_id"`
	Name            string        `json:"name" db:"name"`
	Gender          Gender        `json:"gender" db:"gender"`
	InterestedIn    []Gender      `json:"interestedIn" db:"interested_in"`
	SexualIntensity float64       `json:"sexualIntensity" db:"sexual_intensity"`
	ActiveHours     ActiveHours   `json:"activeHours"`
	State           PersonaState  `json:"state"`
	ShadowProfile   ShadowProfile `json:"shadowProfile" db:"shadow_profile"`
	Directives      []string      `json:"directives" db:"directives"`
	LoyaltyLimit    int           `json:"loyaltyLimit" db:"loyalty_limit"`
	LastStasisDate  *time.Time    `json:"lastStasisDate,omitempty" db:"last_stasis_date"`
	CreatedAt       time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time     `json:"updatedAt" db:"updated_at"`
}

// IsInterestedIn reports whether g is in the persona's interest set
func (p *Persona) IsInterestedIn(g Gender) bool {
	for _, want := range p.InterestedIn {
		if want == g {
			return true
		}
	}
	return false
}

// MutuallyCompatible reports whether each persona is interested in the other's gender
func MutuallyCompatible(a, b *Persona) bool {
	return a.IsInterestedIn(b.Gender) && b.IsInterestedIn(a.Gender)
}

// ClampLoyaltyLimit keeps a loyalty limit within [1,10]
func ClampLoyaltyLimit(v int) int {
	if v < MinLoyaltyLimit {
		return MinLoyaltyLimit
	}
	if v > MaxLoyaltyLimit {
		return MaxLoyaltyLimit
	}
	return v
}

// User owns personas and the model credential they run on
type User struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	GeminiAPIKey string     `json:"-" db:"gemini_api_key"`
	IsKeyValid   bool       `json:"is_key_valid" db:"is_key_valid"`
	LastKeyCheck *time.Time `json:"last_key_check,omitempty" db:"last_key_check"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
}

// HasUsableKey reports whether the user has a credential that is not known to be invalid
func (u *User) HasUsableKey() bool {
	return u.GeminiAPIKey != "" && u.IsKeyValid
}

// MatchStatus is the lifecycle status of a Match
type MatchStatus string

const (
	MatchPending  MatchStatus = "pending_request"
	MatchMatched  MatchStatus = "matched"
	MatchRejected MatchStatus = "rejected"
	MatchGhosted  MatchStatus = "ghosted"
	MatchBlocked  MatchStatus = "blocked"
)

// Heat level bounds
const (
	MinHeatLevel = 1
	MaxHeatLevel = 6
)

// IsTerminal reports whether no further transition except block is possible
func (s MatchStatus) IsTerminal() bool {
	return s == MatchRejected || s == MatchGhosted || s == MatchBlocked
}

// Match is a relationship between exactly two personas
type Match struct {
	ID           string      `json:"id" db:"id"`
	PersonaIDs   [2]string   `json:"personaIds"`
	Status       MatchStatus `json:"status" db:"status"`
	HeatLevel    int         `json:"heatLevel" db:"heat_level"`
	InitiatorID  string      `json:"initiatorId" db:"initiator_id"`
	LastActivity time.Time   `json:"lastActivity" db:"last_activity"`
	CreatedAt    time.Time   `json:"createdAt" db:"created_at"`
}

// Involves reports whether personaID is one of the two participants
func (m *Match) Involves(personaID string) bool {
	return m.PersonaIDs[0] == personaID || m.PersonaIDs[1] == personaID
}

// Other returns the counterpart of personaID, or "" if personaID is not a participant
func (m *Match) Other(personaID string) string {
	switch personaID {
	case m.PersonaIDs[0]:
		return m.PersonaIDs[1]
	case m.PersonaIDs[1]:
		return m.PersonaIDs[0]
	}
	return ""
}

// CanTransition reports whether the status machine allows moving to next.
//
//	pending_request -> matched | rejected
//	matched         -> ghosted
//	any non-blocked -> blocked
func (m *Match) CanTransition(next MatchStatus) bool {
	if m.Status == next {
		return false
	}
	switch next {
	case MatchBlocked:
		return m.Status != MatchBlocked
	case MatchMatched, MatchRejected:
		return m.Status == MatchPending
	case MatchGhosted:
		return m.Status == MatchMatched
	}
	return false
}

// ClampHeat keeps a heat level within [1,6]
func ClampHeat(v int) int {
	if v < MinHeatLevel {
		return MinHeatLevel
	}
	if v > MaxHeatLevel {
		return MaxHeatLevel
	}
	return v
}
