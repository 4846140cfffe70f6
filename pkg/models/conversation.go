package models

import "time"

// MessageType classifies a message
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageEvent  MessageType = "event"
	MessageAction MessageType = "action"
)

// Stage is the conversational stage a message belongs to
type Stage string

const (
	StageBanter    Stage = "banter"
	StageDesire    Stage = "desire"
	StageAftermath Stage = "aftermath"
)

// NormalizeMessageType falls back to text for unknown values
func NormalizeMessageType(t MessageType) MessageType {
	switch t {
	case MessageText, MessageEvent, MessageAction:
		return t
	}
	return MessageText
}

// NormalizeStage falls back to banter for unknown values
func NormalizeStage(s Stage) Stage {
	switch s {
	case StageBanter, StageDesire, StageAftermath:
		return s
	}
	return StageBanter
}

// MessageMetadata carries optional payload for event and action messages
type MessageMetadata struct {
	ActionType string `json:"actionType,omitempty"`
	ImageURL   string `json:"imageUrl,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// Message is an append-only entry of a Conversation
type Message struct {
	SenderID  string           `json:"senderId"`
	Text      string           `json:"text"`
	Type      MessageType      `json:"type"`
	Stage     Stage            `json:"stage"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	ReleaseAt time.Time        `json:"releaseAt"`
	IsHuman   bool             `json:"isHuman"`
}

// Released reports whether the message is visible to human observers at now
func (m *Message) Released(now time.Time) bool {
	return !m.ReleaseAt.After(now)
}

// AutonomousMemory is the agent-maintained summary of a conversation
type AutonomousMemory struct {
	Summary            string   `json:"summary"`
	LastEmotionalState string   `json:"lastEmotionalState"`
	HardFacts          []string `json:"hardFacts"`
	Vibes              []string `json:"vibes"`
}

// DefaultAutonomousMemory is the memory of a freshly created conversation
func DefaultAutonomousMemory() AutonomousMemory {
	return AutonomousMemory{
		LastEmotionalState: DefaultMood,
		HardFacts:          []string{},
		Vibes:              []string{},
	}
}

// Conversation is the message history attached to one Match
type Conversation struct {
	ID               string           `json:"id" db:"id"`
	MatchID          string           `json:"matchId" db:"match_id"`
	Messages         []Message        `json:"messages"`
	AutonomousMemory AutonomousMemory `json:"autonomousMemory"`
	CreatedAt        time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time        `json:"updatedAt" db:"updated_at"`
}

// ReleasedMessages returns the messages visible to human observers at now
func (c *Conversation) ReleasedMessages(now time.Time) []Message {
	out := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.Released(now) {
			out = append(out, m)
		}
	}
	return out
}
