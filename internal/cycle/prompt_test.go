package cycle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notsingle/pkg/models"
)

func promptContext() *DecisionContext {
	p := &models.Persona{
		ID:              "p-1",
		Name:            "Pia",
		SexualIntensity: 0.7,
		LoyaltyLimit:    3,
		State:           models.PersonaState{Status: models.StatusActive, CurrentMood: "curious", SocialBattery: 64},
		ShadowProfile:   models.ShadowProfile{Traits: []string{"witty"}, Vocabulary: "dry", MatchPreferences: "bookish"},
	}
	return &DecisionContext{
		Persona:          p,
		MatchedCount:     1,
		IncomingRequests: []IncomingRequest{{MatchID: "m-1", FromName: "Quinn", FromTraits: []string{"loud"}}},
		ActiveMatches:    []ActiveMatch{},
		Discovery:        Discovery{Candidates: []Candidate{{ID: "p-9", Name: "Tove", Gender: models.GenderMale, Traits: []string{}}}},
	}
}

func TestPromptBuilder_DefaultTemplate(t *testing.T) {
	out, err := NewPromptBuilder("").Build(promptContext())
	require.NoError(t, err)

	assert.NotContains(t, out, "{{")
	assert.Contains(t, out, "You are Pia")
	assert.Contains(t, out, "Current mood: curious")
	assert.Contains(t, out, "0.7")
	assert.Contains(t, out, `"social_battery": 64`)
	assert.Contains(t, out, `"match_id": "m-1"`)
	assert.Contains(t, out, `"id": "p-9"`)
	assert.Contains(t, out, noDirectives)
	assert.NotContains(t, out, stasisNote)
}

func TestPromptBuilder_ReplacesEveryOccurrence(t *testing.T) {
	tmpl := "{{name}}|{{name}}|{{loyalty_limit}}|{{current_matches_count}}|{{discovery_pool}}|{{directives}}"
	dc := promptContext()
	dc.Persona.Directives = []string{"be bold", "  ", "ask about books"}
	dc.Discovery = Discovery{}

	out, err := NewPromptBuilder(tmpl).Build(dc)
	require.NoError(t, err)
	assert.Equal(t, "Pia|Pia|3|1|[]|- be bold\n- ask about books", out)
}

func TestPromptBuilder_StasisNote(t *testing.T) {
	dc := promptContext()
	dc.WasInStasis = true

	out, err := NewPromptBuilder("{{directives}}").Build(dc)
	require.NoError(t, err)
	assert.Equal(t, noDirectives+"\n"+stasisNote, out)
}

func TestLoadPromptBuilder(t *testing.T) {
	b, err := LoadPromptBuilder("")
	require.NoError(t, err)
	assert.Equal(t, defaultPromptTemplate, b.template)

	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi {{name}}"), 0o600))
	b, err = LoadPromptBuilder(path)
	require.NoError(t, err)
	out, err := b.Build(promptContext())
	require.NoError(t, err)
	assert.Equal(t, "hi Pia", strings.TrimSpace(out))

	_, err = LoadPromptBuilder(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
