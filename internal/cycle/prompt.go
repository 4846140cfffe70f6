package cycle

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

//go:embed prompts/decision.txt
var defaultPromptTemplate string

const noDirectives = "- No current directives. Act naturally according to your DNA."

// PromptBuilder fills the decision prompt template
type PromptBuilder struct {
	template string
}

// NewPromptBuilder uses tmpl, or the built-in template when tmpl is empty
func NewPromptBuilder(tmpl string) *PromptBuilder {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = defaultPromptTemplate
	}
	return &PromptBuilder{template: tmpl}
}

// LoadPromptBuilder reads the template at path; an empty path selects the built-in one
func LoadPromptBuilder(path string) (*PromptBuilder, error) {
	if path == "" {
		return NewPromptBuilder(""), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt template: %w", err)
	}
	return NewPromptBuilder(string(b)), nil
}

type personaDNA struct {
	Traits           []string `json:"traits"`
	Vocabulary       string   `json:"vocabulary"`
	MatchPreferences string   `json:"matchPreferences"`
	SocialBattery    int      `json:"social_battery"`
}

// Build replaces every placeholder occurrence in the template
func (b *PromptBuilder) Build(dc *DecisionContext) (string, error) {
	p := dc.Persona

	dna, err := indentJSON(personaDNA{
		Traits:           nonNil(p.ShadowProfile.Traits),
		Vocabulary:       p.ShadowProfile.Vocabulary,
		MatchPreferences: p.ShadowProfile.MatchPreferences,
		SocialBattery:    p.State.SocialBattery,
	})
	if err != nil {
		return "", err
	}
	incoming, err := indentJSON(dc.IncomingRequests)
	if err != nil {
		return "", err
	}
	active, err := indentJSON(dc.ActiveMatches)
	if err != nil {
		return "", err
	}
	discovery, err := indentJSON(dc.Discovery)
	if err != nil {
		return "", err
	}

	r := strings.NewReplacer(
		"{{name}}", p.Name,
		"{{current_mood}}", p.State.CurrentMood,
		"{{sexual_intensity}}", strconv.FormatFloat(p.SexualIntensity, 'f', -1, 64),
		"{{loyalty_limit}}", strconv.Itoa(p.LoyaltyLimit),
		"{{current_matches_count}}", strconv.Itoa(dc.MatchedCount),
		"{{directives}}", directivesText(p.Directives, dc.WasInStasis),
		"{{persona_dna}}", dna,
		"{{incoming_requests}}", incoming,
		"{{active_matches}}", active,
		"{{discovery_pool}}", discovery,
	)
	return r.Replace(b.template), nil
}

func directivesText(directives []string, wasInStasis bool) string {
	lines := make([]string, 0, len(directives))
	for _, d := range directives {
		if d = strings.TrimSpace(d); d != "" {
			lines = append(lines, "- "+d)
		}
	}
	text := noDirectives
	if len(lines) > 0 {
		text = strings.Join(lines, "\n")
	}
	if wasInStasis {
		text += "\n" + stasisNote
	}
	return text
}

func indentJSON(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode prompt section: %w", err)
	}
	return string(b), nil
}
