package llm

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
)

// RepairStats describes what RepairJSON had to do to a payload
type RepairStats struct {
	OriginalBytes int           `json:"original_bytes"`
	RepairedBytes int           `json:"repaired_bytes"`
	RepairTime    time.Duration `json:"repair_time"`
	Strategies    []string      `json:"strategies"`
	WasRepaired   bool          `json:"was_repaired"`
}

// ExtractJSON pulls the JSON document out of a model answer that may wrap it
// in a code fence or surround it with prose. It returns "" when no object or
// array is present.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		return raw
	}

	if strings.Contains(raw, "```") {
		var body []string
		inFence := false
		for _, line := range strings.Split(raw, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				if inFence {
					break
				}
				inFence = true
				continue
			}
			if inFence {
				body = append(body, line)
			}
		}
		if fenced := strings.TrimSpace(strings.Join(body, "\n")); fenced != "" {
			return fenced
		}
	}

	start := strings.IndexAny(raw, "{[")
	if start == -1 {
		return ""
	}
	if end := matchingClose(raw, start); end != -1 {
		return raw[start : end+1]
	}
	return raw[start:]
}

// matchingClose returns the index closing the bracket at start, skipping string literals
func matchingClose(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// RepairJSON returns raw unchanged when it is valid JSON. Otherwise it strips
// trailing commas and then hands the payload to jsonrepair, which also copes
// with comments, single quotes, unquoted keys and truncated documents.
func RepairJSON(raw string) (string, RepairStats, error) {
	start := time.Now()
	stats := RepairStats{OriginalBytes: len(raw)}
	finish := func(out string) RepairStats {
		stats.RepairedBytes = len(out)
		stats.RepairTime = time.Since(start)
		return stats
	}

	if json.Valid([]byte(raw)) {
		return raw, finish(raw), nil
	}
	stats.WasRepaired = true

	repaired := raw
	if stripped := removeTrailingCommas(repaired); stripped != repaired {
		repaired = stripped
		stats.Strategies = append(stats.Strategies, "trailing_commas")
		if json.Valid([]byte(repaired)) {
			return repaired, finish(repaired), nil
		}
	}

	fixed, err := jsonrepair.JSONRepair(repaired)
	if err == nil && json.Valid([]byte(fixed)) {
		stats.Strategies = append(stats.Strategies, "jsonrepair_library")
		return fixed, finish(fixed), nil
	}
	if err == nil {
		err = errors.New("jsonrepair produced invalid JSON")
	}
	return repaired, finish(repaired), err
}

// removeTrailingCommas drops commas that directly precede } or ] outside string literals
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\n' || s[j] == '\t' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
