package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// CycleCommand returns the command that runs one persona's decision cycle
func CycleCommand() *cli.Command {
	return &cli.Command{
		Name:      "cycle",
		Usage:     "Run one decision cycle for a persona",
		ArgsUsage: "PERSONA_ID",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "awake",
				Usage: "Number of personas assumed awake, which shortens reply delays",
				Value: 1,
			},
		},
		Action: runCycle,
	}
}

func runCycle(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: PERSONA_ID")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	svc, err := newServices(c.Context, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	decision, err := svc.orchestrator.RunCycle(c.Context, c.Args().Get(0), c.Int("awake"))
	if err != nil {
		return err
	}
	if decision == nil {
		fmt.Println("No cycle ran: the owner has no usable API key")
		return nil
	}
	return printJSON(decision)
}
