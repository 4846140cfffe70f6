package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	if diff := cmp.Diff(DefaultModels, cfg.LLM.Models); diff != "" {
		t.Errorf("models mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 45*time.Second, cfg.LLM.AttemptTimeout)
	assert.Equal(t, 0, cfg.Batch.MaxWorkers)
	assert.Equal(t, 8888, cfg.API.Port)
	assert.Equal(t, "*/15 * * * *", cfg.Schedule.Cron)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notsingle.toml")
	content := `
[database]
url = "postgres://file"

[llm]
models = ["m1", "m2"]
attempt_timeout = "10s"

[api]
cron_secret = "from-file"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("NOTSINGLE_API__CRON_SECRET", "from-env")
	t.Setenv("NOTSINGLE_LLM__ATTEMPT_TIMEOUT", "3s")
	t.Setenv("NOTSINGLE_BATCH__MAX_WORKERS", "7")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://file", cfg.Database.URL)
	assert.Equal(t, []string{"m1", "m2"}, cfg.LLM.Models)
	assert.Equal(t, 3*time.Second, cfg.LLM.AttemptTimeout)
	assert.Equal(t, "from-env", cfg.API.CronSecret)
	assert.Equal(t, 7, cfg.Batch.MaxWorkers)
}

func TestLoadConfigModelsFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))
	t.Setenv("NOTSINGLE_LLM__MODELS", "a, b ,c")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.LLM.Models)
}

func TestLoadConfigFallsBackToDatabaseURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))
	t.Setenv("DATABASE_URL", "postgres://env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.Database.URL)
}

func TestInitConfigRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notsingle.toml")
	require.NoError(t, InitConfig(path))
	assert.Error(t, InitConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.NoError(t, ValidateServer(cfg))
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.LLM.Models = DefaultModels
	cfg.LLM.AttemptTimeout = time.Second
	cfg.API.Port = 8080
	cfg.Schedule.Cron = "* * * * *"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url")

	cfg.Database.URL = "postgres://x"
	assert.NoError(t, Validate(cfg))

	err = ValidateServer(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cron_secret")
}

func TestValidateRejectsBadCron(t *testing.T) {
	cfg := &Config{}
	cfg.Database.URL = "postgres://x"
	cfg.LLM.Models = DefaultModels
	cfg.LLM.AttemptTimeout = time.Second
	cfg.API.Port = 8080
	cfg.Schedule.Cron = "every 15 minutes"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule cron")
}
