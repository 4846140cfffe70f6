package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog/log"

	"github.com/notsingle/internal/retry"
)

//go:embed schema.sql
var schemaSQL string

// NewDB opens a database/sql connection used for schema management
func NewDB(databaseURL string) (*sql.DB, error) {
	dbURL, err := ResolveURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get database URL: %w", err)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return db, nil
}

// NewPool opens the pgx pool used at runtime, waiting for the server with backoff
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	dbURL, err := ResolveURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get database URL: %w", err)
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	logger := log.With().Str("component", "database").Logger()
	result := retry.Do(ctx, retry.DatabaseConnectConfig(), &logger, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if !result.Success {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db after %d attempts: %w", result.Attempts, result.LastError)
	}

	return pool, nil
}

// Migrate applies the application schema and the River job tables
func Migrate(ctx context.Context, db *sql.DB, pool *pgxpool.Pool) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}

	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("migrate river: %w", err)
	}
	for _, v := range res.Versions {
		log.Info().Int("version", v.Version).Msg("applied river migration")
	}
	return nil
}

// ResolveURL returns configured if set, then DATABASE_URL, then DATABASE_URL
// from the nearest .env file walking up from the working directory.
func ResolveURL(configured string) (string, error) {
	if direct := strings.TrimSpace(configured); direct != "" {
		return direct, nil
	}
	if direct := strings.TrimSpace(os.Getenv("DATABASE_URL")); direct != "" {
		return direct, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	envPath, err := findEnvFile(wd)
	if err != nil {
		return "", err
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", envPath, err)
	}

	value, ok := values["DATABASE_URL"]
	if !ok {
		return "", errors.New("DATABASE_URL not found in environment or .env")
	}
	if strings.TrimSpace(value) == "" {
		return "", errors.New("DATABASE_URL is empty in .env")
	}
	return strings.TrimSpace(value), nil
}

func findEnvFile(start string) (string, error) {
	dir := start
	for {
		candidate := filepath.Join(dir, ".env")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf(".env not found starting from %s", start)
}
