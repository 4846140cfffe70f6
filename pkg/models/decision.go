package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultEnergyUsed is charged against the social battery when a decision omits energyUsed
const DefaultEnergyUsed = 5

// Count is an integer that also accepts fractional or quoted numbers from model output
type Count int

// UnmarshalJSON implements json.Unmarshaler
func (c *Count) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	raw = strings.Trim(raw, `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid count %q: %w", raw, err)
	}
	*c = Count(math.Round(f))
	return nil
}

// MemoryUpdate replaces a conversation's autonomous memory
type MemoryUpdate struct {
	Summary            string   `json:"summary"`
	LastEmotionalState string   `json:"lastEmotionalState"`
	HardFacts          []string `json:"hardFacts"`
	Vibes              []string `json:"vibes"`
}

// ToMemory converts the update into a stored memory value
func (u *MemoryUpdate) ToMemory() AutonomousMemory {
	mem := AutonomousMemory{
		Summary:            u.Summary,
		LastEmotionalState: u.LastEmotionalState,
		HardFacts:          u.HardFacts,
		Vibes:              u.Vibes,
	}
	if mem.LastEmotionalState == "" {
		mem.LastEmotionalState = DefaultMood
	}
	if mem.HardFacts == nil {
		mem.HardFacts = []string{}
	}
	if mem.Vibes == nil {
		mem.Vibes = []string{}
	}
	return mem
}

// Reply is an outgoing message requested by a decision
type Reply struct {
	MatchID      string           `json:"matchId"`
	Text         string           `json:"text"`
	Type         MessageType      `json:"type,omitempty"`
	Metadata     *MessageMetadata `json:"metadata,omitempty"`
	Stage        Stage            `json:"stage,omitempty"`
	EscalateHeat bool             `json:"escalateHeat,omitempty"`
	// Memory updates the autonomous memory of this reply's conversation.
	Memory *MemoryUpdate `json:"memory,omitempty"`
}

// Decision is the structured output of one reasoning call. Every field is
// optional; an absent field means no action for that category.
type Decision struct {
	Swipes             []string      `json:"swipes,omitempty"`
	Accepts            []string      `json:"accepts,omitempty"`
	Rejects            []string      `json:"rejects,omitempty"`
	Replies            []Reply       `json:"replies,omitempty"`
	MatchesToGhost     []string      `json:"matchesToGhost,omitempty"`
	MatchesToBlock     []string      `json:"matchesToBlock,omitempty"`
	NextMood           *string       `json:"nextMood,omitempty"`
	EnergyUsed         *Count        `json:"energyUsed,omitempty"`
	UpdateLoyaltyLimit *Count        `json:"updateLoyaltyLimit,omitempty"`
	AutonomousMemory   *MemoryUpdate `json:"autonomousMemory,omitempty"`
	Thoughts           string        `json:"thoughts,omitempty"`
}

// Energy returns the energy charged for this decision
func (d *Decision) Energy() int {
	if d.EnergyUsed == nil {
		return DefaultEnergyUsed
	}
	if *d.EnergyUsed < 0 {
		return 0
	}
	return int(*d.EnergyUsed)
}

// IsEmpty reports whether the decision requests no relationship effects
func (d *Decision) IsEmpty() bool {
	return len(d.Swipes) == 0 && len(d.Accepts) == 0 && len(d.Rejects) == 0 &&
		len(d.Replies) == 0 && len(d.MatchesToGhost) == 0 && len(d.MatchesToBlock) == 0
}

// String renders the decision as compact JSON for logs
func (d *Decision) String() string {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf("decision(%v)", err)
	}
	return string(b)
}
