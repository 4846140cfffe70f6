package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/notsingle/internal/api"
	"github.com/notsingle/internal/config"
	"github.com/notsingle/internal/jobqueue"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the NotSingle API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides api.port)",
			},
			&cli.BoolFlag{
				Name:  "with-worker",
				Usage: "Also run the scheduled dispatch worker in this process",
			},
		},
		Action: runServe,
	}
}

// WorkerCommand returns the command that runs scheduled dispatch
func WorkerCommand() *cli.Command {
	return &cli.Command{
		Name:   "worker",
		Usage:  "Run the scheduled dispatch worker",
		Action: runWorker,
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if port := c.Int("port"); port > 0 {
		cfg.API.Port = port
	}
	if err := config.ValidateServer(cfg); err != nil {
		return err
	}

	ctx, stop := signalContext(c.Context)
	defer stop()

	svc, err := newServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	server := api.NewServer(api.Options{
		Port:       cfg.API.Port,
		CronSecret: cfg.API.CronSecret,
		JWTSecret:  cfg.API.JWTSecret,
	}, api.Deps{
		Dispatcher:    svc.dispatcher,
		Runner:        svc.orchestrator,
		Relationships: svc.relationships,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	if c.Bool("with-worker") {
		g.Go(func() error { return runQueue(gctx, svc) })
	}
	return g.Wait()
}

func runWorker(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(c.Context)
	defer stop()

	svc, err := newServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	return runQueue(ctx, svc)
}

// runQueue runs the River client until ctx is cancelled
func runQueue(ctx context.Context, svc *services) error {
	jq, err := jobqueue.NewJobQueue(svc.pool, svc.dispatcher, jobqueue.QueueConfigFromAppConfig(svc.cfg))
	if err != nil {
		return err
	}
	if err := jq.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	log.Info().Msg("stopping dispatch worker")
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return jq.Stop(stopCtx)
}
