package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "123:abc")
	dir := t.TempDir()
	path := writeConfig(t, `
telegram:
  bot_token: ${TEST_BOT_TOKEN}
api:
  base_url: https://api.example.com
  timeout_ms: 2500
  cache_ttl_seconds: 30
redis:
  address: localhost:6379
database:
  path: `+filepath.Join(dir, "db", "journal.db")+`
booking:
  timezone: Asia/Kolkata
managers: [42, 43]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL())
	assert.Equal(t, 2500*time.Millisecond, cfg.APITimeout())
	assert.Equal(t, 30*time.Second, cfg.CacheTTL())
	assert.Equal(t, []int64{42, 43}, cfg.Managers)
	assert.DirExists(t, filepath.Join(dir, "db"))

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, "telegram:\n  debug: true\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL())
	assert.Equal(t, 10*time.Second, cfg.APITimeout())
	assert.Equal(t, time.Duration(0), cfg.CacheTTL())
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout())
	assert.Equal(t, time.Minute, cfg.SessionCleanupInterval())
	assert.Equal(t, 10*time.Second, cfg.RollbackTimeout())
	assert.Equal(t, 24*time.Hour, cfg.BackupInterval())
	assert.Equal(t, 8080, cfg.HTTPPort())
	assert.Equal(t, 20, cfg.HTTPRateLimit())
	assert.Equal(t, 8090, cfg.HealthCheckPort())
	assert.Equal(t, 9090, cfg.PrometheusPort())
	assert.Equal(t, 14, cfg.DaysAhead())
	assert.Equal(t, "data/turfbook.db", cfg.Database.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvAPIBaseURL, "http://backend:9000")
	t.Setenv(EnvAPITimeout, "1500")
	path := writeConfig(t, "api:\n  base_url: http://ignored\n  timeout_ms: 99\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.APIBaseURL())
	assert.Equal(t, 1500*time.Millisecond, cfg.APITimeout())
}

func TestLoad_BadTimeoutEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvAPITimeout, "soon")
	_, err := Load(writeConfig(t, "{}\n"))
	assert.ErrorContains(t, err, EnvAPITimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatcher_Check(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, "managers: [1]\n")
	w, err := NewWatcher(path, time.Second, zerolog.Nop())
	require.NoError(t, err)

	cfg, err := w.Check()
	require.NoError(t, err)
	assert.Nil(t, cfg, "unchanged file must not reload")

	require.NoError(t, os.WriteFile(path, []byte("managers: [1, 2]\n"), 0o600))
	cfg, err = w.Check()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, []int64{1, 2}, cfg.Managers)

	cfg, err = w.Check()
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, os.WriteFile(path, []byte("managers: [oops\n"), 0o600))
	_, err = w.Check()
	assert.Error(t, err)
	require.NoError(t, os.WriteFile(path, []byte("managers: [3]\n"), 0o600))
	cfg, err = w.Check()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, []int64{3}, cfg.Managers)
}

func TestWatcher_MissingFile(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), time.Second, zerolog.Nop())
	assert.Error(t, err)
}

func TestWatcher_RunReportsChanges(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, "managers: [1]\n")
	w, err := NewWatcher(path, 10*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan *Config, 1)
	go w.Run(ctx, func(c *Config) { updates <- c })

	require.NoError(t, os.WriteFile(path, []byte("managers: [1, 2]\n"), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	select {
	case cfg := <-updates:
		assert.Equal(t, []int64{1, 2}, cfg.Managers)
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}
}

// chdir stands in for testing.T.Chdir (Go 1.24+): it changes the working
// directory for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
