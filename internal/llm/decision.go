package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/notsingle/pkg/models"
)

// ParseDecision turns raw model output into a Decision. Output that is not a
// JSON object, even after repair, fails with ErrDecisionParse. Individual
// actions that reference unknown ids are left for the executor to skip.
func ParseDecision(raw string) (*models.Decision, RepairStats, error) {
	payload := ExtractJSON(raw)
	if payload == "" {
		return nil, RepairStats{}, fmt.Errorf("%w: no JSON found in response", ErrDecisionParse)
	}

	repaired, stats, err := RepairJSON(payload)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %w", ErrDecisionParse, err)
	}
	if !strings.HasPrefix(strings.TrimSpace(repaired), "{") {
		return nil, stats, fmt.Errorf("%w: expected a JSON object", ErrDecisionParse)
	}

	var d models.Decision
	if err := json.Unmarshal([]byte(repaired), &d); err != nil {
		return nil, stats, fmt.Errorf("%w: %w", ErrDecisionParse, err)
	}
	return &d, stats, nil
}
