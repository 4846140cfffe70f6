package llm

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func TestRepairJSON_ValidJSON(t *testing.T) {
	validJSON := `{"swipes": ["a"], "replies": [{"matchId": "m1", "text": "I'm around tonight"}]}`

	repaired, stats, err := RepairJSON(validJSON)

	if err != nil {
		t.Errorf("Expected no error for valid JSON, got: %v", err)
	}
	if stats.WasRepaired {
		t.Error("Expected WasRepaired to be false for valid JSON")
	}
	if repaired != validJSON {
		t.Error("Expected repaired JSON to be identical to original for valid JSON")
	}
	if stats.OriginalBytes != len(validJSON) || stats.RepairedBytes != len(validJSON) {
		t.Error("Expected byte counts to match original")
	}
}

func TestRepairJSON_TrailingCommas(t *testing.T) {
	malformedJSON := `{"swipes": ["a", "b",], "nextMood": "bold",}`
	expected := `{"swipes": ["a", "b"], "nextMood": "bold"}`

	repaired, stats, err := RepairJSON(malformedJSON)

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if !stats.WasRepaired {
		t.Error("Expected WasRepaired to be true")
	}
	if repaired != expected {
		t.Errorf("Expected %s, got %s", expected, repaired)
	}
	if len(stats.Strategies) != 1 || stats.Strategies[0] != "trailing_commas" {
		t.Errorf("Expected only trailing_commas strategy, got %v", stats.Strategies)
	}
}

func TestRepairJSON_TrailingCommaInsideStringKept(t *testing.T) {
	malformedJSON := `{"text": "wait,]", "vibes": ["x",]}`
	expected := `{"text": "wait,]", "vibes": ["x"]}`

	repaired, _, err := RepairJSON(malformedJSON)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if repaired != expected {
		t.Errorf("Expected %s, got %s", expected, repaired)
	}
}

func TestRepairJSON_LibraryFallback(t *testing.T) {
	cases := map[string]string{
		"comments":      "{\n  // thinking\n  \"swipes\": [\"a\"]\n}",
		"single quotes": `{'nextMood': 'playful'}`,
		"unquoted keys": `{nextMood: "playful", energyUsed: 3}`,
		"truncated":     `{"swipes": ["a", "b"], "replies": [{"matchId": "m1", "text": "hey"`,
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			repaired, stats, err := RepairJSON(input)
			if err != nil {
				t.Fatalf("Expected repair to succeed, got: %v", err)
			}
			if !stats.WasRepaired {
				t.Error("Expected WasRepaired to be true")
			}
			var result map[string]interface{}
			if err := json.Unmarshal([]byte(repaired), &result); err != nil {
				t.Errorf("Repaired JSON should be a valid object: %v (%s)", err, repaired)
			}
		})
	}
}

func TestRepairJSON_Performance(t *testing.T) {
	largeJSON := `{"swipes": [`
	for i := 0; i < 200; i++ {
		if i > 0 {
			largeJSON += ","
		}
		largeJSON += fmt.Sprintf(`"persona-%d"`, i)
	}
	largeJSON += `]}`

	start := time.Now()
	repaired, _, err := RepairJSON(largeJSON)
	duration := time.Since(start)

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if duration > 100*time.Millisecond {
		t.Errorf("Repair took too long: %v", duration)
	}
	if repaired != largeJSON {
		t.Error("Valid JSON should not be modified")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare object", `  {"a": 1}  `, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced with prose", "Here you go:\n```\n{\"a\": 1}\n```\nEnjoy", `{"a": 1}`},
		{"prose around object", `Sure! {"a": "}"} hope that helps`, `{"a": "}"}`},
		{"nothing", "no json here", ""},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.raw); got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}
