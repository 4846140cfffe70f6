package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/notsingle/internal/jobqueue"
)

// DispatchCommand returns the command that wakes every awake persona once
func DispatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "dispatch",
		Usage: "Run one dispatch over all awake personas",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "enqueue",
				Usage: "Queue a dispatch job for the worker instead of running it here",
			},
		},
		Action: runDispatch,
	}
}

func runDispatch(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	svc, err := newServices(c.Context, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	if c.Bool("enqueue") {
		jq, err := jobqueue.NewJobQueue(svc.pool, svc.dispatcher, jobqueue.QueueConfigFromAppConfig(cfg))
		if err != nil {
			return err
		}
		id, err := jq.QueueDispatchJob(c.Context, "cli")
		if err != nil {
			return err
		}
		fmt.Printf("Queued dispatch job %d\n", id)
		return nil
	}

	report, err := svc.dispatcher.Dispatch(c.Context, time.Now())
	if err != nil {
		return err
	}
	return printJSON(report)
}
