package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/notsingle/internal/database"
)

// MigrateCommand returns the command that applies the schema and River migrations
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Apply database migrations",
		Action: runMigrate,
	}
}

func runMigrate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}

	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	pool, err := database.NewPool(c.Context, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.Migrate(c.Context, db, pool); err != nil {
		return err
	}
	fmt.Println("Database is up to date")
	return nil
}
