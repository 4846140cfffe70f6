package llm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notsingle/pkg/models"
)

func TestParseDecision_Full(t *testing.T) {
	raw := "```json\n" + `{
  "swipes": ["p2"],
  "accepts": ["m1"],
  "rejects": [],
  "replies": [
    {"matchId": "m2", "text": "hi there", "type": "text", "stage": "desire", "escalateHeat": true,
     "memory": {"summary": "flirting", "lastEmotionalState": "warm", "hardFacts": ["likes dogs"], "vibes": ["cozy"]}},
  ],
  "matchesToGhost": ["m3"],
  "nextMood": "playful",
  "energyUsed": 7.6,
  "updateLoyaltyLimit": "3",
  "thoughts": "feeling bold"
}` + "\n```"

	d, stats, err := ParseDecision(raw)
	require.NoError(t, err)
	assert.True(t, stats.WasRepaired)

	assert.Equal(t, []string{"p2"}, d.Swipes)
	assert.Equal(t, []string{"m1"}, d.Accepts)
	assert.Equal(t, []string{"m3"}, d.MatchesToGhost)
	require.NotNil(t, d.NextMood)
	assert.Equal(t, "playful", *d.NextMood)
	assert.Equal(t, 8, d.Energy())
	require.NotNil(t, d.UpdateLoyaltyLimit)
	assert.Equal(t, models.Count(3), *d.UpdateLoyaltyLimit)

	want := []models.Reply{{
		MatchID:      "m2",
		Text:         "hi there",
		Type:         models.MessageText,
		Stage:        models.StageDesire,
		EscalateHeat: true,
		Memory: &models.MemoryUpdate{
			Summary:            "flirting",
			LastEmotionalState: "warm",
			HardFacts:          []string{"likes dogs"},
			Vibes:              []string{"cozy"},
		},
	}}
	if diff := cmp.Diff(want, d.Replies); diff != "" {
		t.Errorf("replies mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDecision_EmptyObjectIsValid(t *testing.T) {
	d, _, err := ParseDecision(`{}`)
	require.NoError(t, err)
	assert.True(t, d.IsEmpty())
	assert.Nil(t, d.NextMood)
	assert.Equal(t, models.DefaultEnergyUsed, d.Energy())
}

func TestParseDecision_Failures(t *testing.T) {
	cases := map[string]string{
		"prose":       "I would rather not decide today.",
		"array":       `[{"swipes": []}]`,
		"wrong types": `{"swipes": "everyone"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseDecision(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecisionParse), "got %v", err)
		})
	}
}
