package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/notsingle/internal/schedule"
	"github.com/notsingle/internal/store"
	"github.com/notsingle/pkg/models"
)

// CycleRunner runs one persona's decision cycle
type CycleRunner interface {
	RunCycle(ctx context.Context, personaID string, awakeCount int) (*models.Decision, error)
}

// Outcome is the result of one persona's cycle within a dispatch
type Outcome struct {
	PersonaID   string           `json:"persona_id"`
	PersonaName string           `json:"persona_name"`
	Success     bool             `json:"success"`
	Skipped     bool             `json:"skipped,omitempty"`
	Decision    *models.Decision `json:"decision,omitempty"`
	Error       string           `json:"error,omitempty"`

	err error
}

// Err returns the cycle error, if any
func (o Outcome) Err() error { return o.err }

// Report summarises one dispatch
type Report struct {
	Processed   int       `json:"processed"`
	TotalActive int       `json:"total_active"`
	Outcomes    []Outcome `json:"outcomes"`
}

// Failed counts unsuccessful outcomes
func (r *Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Success {
			n++
		}
	}
	return n
}

// Dispatcher runs a cycle for every awake active persona
type Dispatcher struct {
	store  store.Store
	runner CycleRunner
	config Config
}

func NewDispatcher(s store.Store, runner CycleRunner, cfg Config) *Dispatcher {
	return &Dispatcher{store: s, runner: runner, config: cfg}
}

// Dispatch lists active personas, keeps those awake at now and runs their
// cycles concurrently. A failing cycle is reported in its Outcome and never
// affects its siblings. Only the persona listing can fail the dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, now time.Time) (*Report, error) {
	active, err := d.store.ListPersonasByStatus(ctx, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active personas: %w", err)
	}

	awake := make([]*models.Persona, 0, len(active))
	for _, p := range active {
		if schedule.IsAwake(p.ActiveHours, p.ID, now) {
			awake = append(awake, p)
		}
	}

	report := &Report{
		Processed:   len(awake),
		TotalActive: len(active),
		Outcomes:    make([]Outcome, 0, len(awake)),
	}
	log.Info().
		Int("active", len(active)).
		Int("awake", len(awake)).
		Time("at", now).
		Msg("dispatching persona cycles")
	if len(awake) == 0 {
		return report, nil
	}

	queue := ConfigureTaskQueue(d.config)
	for _, p := range awake {
		queue.AddTask(NewCycleTask(p, d.runner, len(awake)))
	}
	results := queue.ProcessAll(ctx)

	for _, p := range awake {
		out := Outcome{PersonaID: p.ID, PersonaName: p.Name}
		res, ok := results[p.ID]
		switch {
		case !ok:
			out.err = fmt.Errorf("no result for persona %s", p.ID)
		case res.Error != nil:
			out.err = res.Error
		default:
			out.Success = true
			if decision, _ := res.Result.(*models.Decision); decision != nil {
				out.Decision = decision
			} else {
				out.Skipped = true
			}
		}
		if out.err != nil {
			out.Error = out.err.Error()
			log.Warn().Err(out.err).Str("persona_id", p.ID).Str("persona", p.Name).Msg("persona cycle failed")
		}
		report.Outcomes = append(report.Outcomes, out)
	}

	log.Info().
		Int("processed", report.Processed).
		Int("failed", report.Failed()).
		Msg("dispatch finished")
	return report, nil
}
