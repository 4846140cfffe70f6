package jobqueue

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog/log"
)

// CronSchedule adapts a cron expression to river.PeriodicSchedule
type CronSchedule struct {
	expr string
}

// NewCronSchedule validates expr with gronx
func NewCronSchedule(expr string) (*CronSchedule, error) {
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid cron expression %q", expr)
	}
	return &CronSchedule{expr: expr}, nil
}

// Next returns the first tick strictly after current
func (s *CronSchedule) Next(current time.Time) time.Time {
	next, err := gronx.NextTickAfter(s.expr, current, false)
	if err != nil {
		log.Error().Err(err).Str("cron", s.expr).Msg("cannot compute next dispatch tick")
		return current.Add(time.Hour)
	}
	return next
}

func (s *CronSchedule) String() string { return s.expr }
