package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/notsingle/internal/batch"
	"github.com/notsingle/internal/config"
	"github.com/notsingle/internal/cycle"
	"github.com/notsingle/internal/database"
	"github.com/notsingle/internal/llm"
	"github.com/notsingle/internal/logging"
	"github.com/notsingle/internal/relationships"
	"github.com/notsingle/internal/store"
)

// services is the wiring shared by every command that touches the database
type services struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	store         store.Store
	orchestrator  *cycle.Orchestrator
	dispatcher    *batch.Dispatcher
	relationships *relationships.Service
}

// loadConfig reads the --config file, applies --log-level and sets up logging
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		return nil, err
	}
	// a missing url is reported by config.Validate
	if url, err := database.ResolveURL(cfg.Database.URL); err == nil {
		cfg.Database.URL = url
	} else {
		log.Debug().Err(err).Msg("no database url resolved")
	}
	return cfg, nil
}

func newServices(ctx context.Context, cfg *config.Config) (*services, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	prompts, err := cycle.LoadPromptBuilder(cfg.Prompt.TemplatePath)
	if err != nil {
		pool.Close()
		return nil, err
	}

	st := store.NewPostgresStore(pool)
	invoker := llm.NewInvoker(llm.NewGoogleAIClient(), llm.InvokerConfig{
		Models:            cfg.LLM.Models,
		AttemptTimeout:    cfg.LLM.AttemptTimeout,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	})
	orch := cycle.NewOrchestrator(st, invoker, prompts, cfg.LLM.Temperature)

	return &services{
		cfg:           cfg,
		pool:          pool,
		store:         st,
		orchestrator:  orch,
		dispatcher:    batch.NewDispatcher(st, orch, batch.ConfigFromAppConfig(cfg)),
		relationships: relationships.NewService(st),
	}, nil
}

func (s *services) Close() {
	s.pool.Close()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
