/*
Package jobqueue runs persona dispatch on a schedule using River.

For configuration options see queue_config.go.
*/
package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/notsingle/internal/batch"
)

// Dispatcher runs one dispatch over the awake personas
type Dispatcher interface {
	Dispatch(ctx context.Context, now time.Time) (*batch.Report, error)
}

// DispatchArgs represents the arguments for a dispatch job
type DispatchArgs struct {
	TriggeredBy string `json:"triggered_by"`
}

// Kind returns the job kind for River
func (DispatchArgs) Kind() string {
	return "persona_dispatch"
}

// InsertOpts bounds attempts for every dispatch job; the next tick is the retry
func (DispatchArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: DefaultQueueConfig().MaxRetries}
}

// DispatchWorker handles dispatch jobs
type DispatchWorker struct {
	river.WorkerDefaults[DispatchArgs]
	dispatcher Dispatcher
	config     *QueueConfig
	now        func() time.Time
}

// NewDispatchWorker creates a worker running d
func NewDispatchWorker(d Dispatcher, cfg *QueueConfig) *DispatchWorker {
	if cfg == nil {
		cfg = DefaultQueueConfig()
	}
	return &DispatchWorker{dispatcher: d, config: cfg, now: time.Now}
}

// Timeout bounds a whole dispatch
func (w *DispatchWorker) Timeout(*river.Job[DispatchArgs]) time.Duration {
	return w.config.JobTimeout
}

// Work runs one dispatch. Individual cycle failures are part of the report
// and do not fail the job.
func (w *DispatchWorker) Work(ctx context.Context, job *river.Job[DispatchArgs]) error {
	started := w.now()
	report, err := w.dispatcher.Dispatch(ctx, started)
	if err != nil {
		log.Error().Err(err).Int64("job_id", job.ID).Msg("dispatch failed")
		return fmt.Errorf("dispatch: %w", err)
	}
	log.Info().
		Int64("job_id", job.ID).
		Str("triggered_by", job.Args.TriggeredBy).
		Int("total_active", report.TotalActive).
		Int("processed", report.Processed).
		Int("failed", report.Failed()).
		Dur("elapsed", w.now().Sub(started)).
		Msg("dispatch job finished")
	return nil
}

// JobQueue manages the River job queue
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	config *QueueConfig
}

// NewJobQueue creates a job queue on pool that dispatches on config.Cron
func NewJobQueue(pool *pgxpool.Pool, d Dispatcher, config *QueueConfig) (*JobQueue, error) {
	if config == nil {
		config = DefaultQueueConfig()
	}
	sched, err := NewCronSchedule(config.Cron)
	if err != nil {
		return nil, err
	}

	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, NewDispatchWorker(d, config)); err != nil {
		return nil, fmt.Errorf("failed to register dispatch worker: %w", err)
	}

	periodic := river.NewPeriodicJob(
		sched,
		func() (river.JobArgs, *river.InsertOpts) {
			return DispatchArgs{TriggeredBy: "schedule"}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: config.RunOnStart},
	)

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:       config.RiverQueueConfig(),
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{periodic},
		JobTimeout:   config.JobTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{
		client: client,
		pool:   pool,
		config: config,
	}, nil
}

// Start starts the job queue workers
func (jq *JobQueue) Start(ctx context.Context) error {
	log.Info().Str("cron", jq.config.Cron).Int("workers", jq.config.MaxWorkers).Msg("starting dispatch queue")
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers, letting running jobs finish
func (jq *JobQueue) Stop(ctx context.Context) error {
	return jq.client.Stop(ctx)
}

// QueueDispatchJob inserts a one-off dispatch job
func (jq *JobQueue) QueueDispatchJob(ctx context.Context, triggeredBy string) (int64, error) {
	res, err := jq.client.Insert(ctx, DispatchArgs{TriggeredBy: triggeredBy}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to queue dispatch job: %w", err)
	}
	return res.Job.ID, nil
}
