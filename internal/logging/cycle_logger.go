package logging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CycleLogger carries the structured context of one persona decision cycle
type CycleLogger struct {
	logger    zerolog.Logger
	cycleID   string
	personaID string
	startTime time.Time
}

type ctxKey struct{}

// StartCycleLogging creates a logger for a single cycle of personaID
func StartCycleLogging(personaID string) *CycleLogger {
	cycleID := "cyc-" + uuid.NewString()
	return &CycleLogger{
		logger: log.Logger.With().
			Str("cycle_id", cycleID).
			Str("persona_id", personaID).
			Logger(),
		cycleID:   cycleID,
		personaID: personaID,
		startTime: time.Now(),
	}
}

// NewContext returns a copy of ctx carrying l
func NewContext(ctx context.Context, l *CycleLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the cycle logger stored in ctx, or nil
func FromContext(ctx context.Context) *CycleLogger {
	l, _ := ctx.Value(ctxKey{}).(*CycleLogger)
	return l
}

// Zerolog returns the underlying structured logger. A nil CycleLogger yields the global logger.
func (c *CycleLogger) Zerolog() *zerolog.Logger {
	if c == nil {
		return &log.Logger
	}
	return &c.logger
}

// CycleID returns the identifier attached to every event of this cycle
func (c *CycleLogger) CycleID() string {
	if c == nil {
		return ""
	}
	return c.cycleID
}

// Log writes an informational message
func (c *CycleLogger) Log(format string, args ...interface{}) {
	if c == nil {
		return
	}
	c.logger.Info().
		Dur("elapsed", time.Since(c.startTime).Round(time.Millisecond)).
		Msg(fmt.Sprintf(format, args...))
}

// Debug writes a debug message
func (c *CycleLogger) Debug(format string, args ...interface{}) {
	if c == nil {
		return
	}
	c.logger.Debug().Msg(fmt.Sprintf(format, args...))
}

// LogSection marks the start of a cycle phase
func (c *CycleLogger) LogSection(title string) {
	if c == nil {
		return
	}
	c.logger.Debug().Str("phase", title).Msg(strings.Repeat("=", 8) + " " + title + " " + strings.Repeat("=", 8))
}

// LogRequest records an outbound model request
func (c *CycleLogger) LogRequest(model, prompt string) {
	if c == nil {
		return
	}
	c.logger.Debug().
		Str("model", model).
		Int("prompt_bytes", len(prompt)).
		Str("prompt_head", truncate(prompt, 300)).
		Msg("model request")
}

// LogResponse records a raw model response
func (c *CycleLogger) LogResponse(model, response string) {
	if c == nil {
		return
	}
	c.logger.Debug().
		Str("model", model).
		Int("response_bytes", len(response)).
		Str("response_head", truncate(response, 500)).
		Msg("model response")
}

// LogError writes an error with the phase it occurred in
func (c *CycleLogger) LogError(phase string, err error) {
	if c == nil || err == nil {
		return
	}
	c.logger.Error().Err(err).Str("phase", phase).Msg("cycle error")
}

// Finish writes the cycle summary line
func (c *CycleLogger) Finish(err error) {
	if c == nil {
		return
	}
	ev := c.logger.Info()
	if err != nil {
		ev = c.logger.Warn().Err(err)
	}
	ev.Dur("duration", time.Since(c.startTime).Round(time.Millisecond)).Msg("cycle finished")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
