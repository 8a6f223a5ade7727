package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 38471, cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.ScrapeAPI.Timeout)
	assert.Equal(t, []string{"seek", "indeed"}, cfg.ScrapeAPI.Sources)
	assert.Equal(t, "0 */6 * * *", cfg.Schedule.Cron)
	assert.Equal(t, "Australia/Sydney", cfg.Schedule.Timezone)
	assert.Len(t, cfg.Schedule.Trades, 13)
	assert.Equal(t, []string{"Sydney", "Melbourne", "Brisbane", "Adelaide", "Perth"}, cfg.Schedule.Cities)
	assert.Equal(t, 720*time.Hour, cfg.Sweep.MaxAge)

	_, v := NormalizeAndValidate(cfg)
	assert.True(t, v.OK(), v.Errors)
}

func TestParseKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := Parse([]byte("app:\n  port: 9000\nschedule:\n  cities: [Hobart]\n"))
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, []string{"Hobart"}, cfg.Schedule.Cities)
	assert.Len(t, cfg.Schedule.Trades, 13)
	assert.Equal(t, "Australia/Sydney", cfg.Schedule.Timezone)

	_, err = Parse([]byte("app: [nope"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"JOBINTEL_DATA_DIR":       "/var/lib/jobintel",
		"JOBINTEL_DB_DRIVER":      "postgres",
		"DATABASE_URL":            "postgres://u@db/jobs",
		"REDIS_URL":               "redis://cache:6379/0",
		"JOBINTEL_SCRAPE_API_URL": "http://scraper:8000",
		"JOBINTEL_PORT":           "8080",
	}
	cfg := ApplyEnv(Default(), func(k string) string { return env[k] })
	assert.Equal(t, "/var/lib/jobintel", cfg.App.DataDir)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://u@db/jobs", cfg.Database.URL)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	assert.Equal(t, "http://scraper:8000", cfg.ScrapeAPI.BaseURL)
	assert.Equal(t, 8080, cfg.App.Port)

	cfg = ApplyEnv(Default(), func(k string) string {
		if k == "JOBINTEL_PORT" {
			return "eighty"
		}
		return ""
	})
	assert.Equal(t, 38471, cfg.App.Port)
}

func TestNormalizeAndValidate(t *testing.T) {
	cfg := Default()
	cfg.ScrapeAPI.Sources = []string{" SEEK ", "seek", "", "Indeed"}
	cfg.ScrapeAPI.BaseURL = "http://localhost:8000/"
	cfg.ScrapeAPI.Burst = 0
	cfg.Schedule.Trades = []string{"Plumber", "plumber", " tiler"}

	out, v := NormalizeAndValidate(cfg)
	require.True(t, v.OK(), v.Errors)
	assert.Equal(t, []string{"seek", "indeed"}, out.ScrapeAPI.Sources)
	assert.Equal(t, []string{"plumber", "tiler"}, out.Schedule.Trades)
	assert.Equal(t, "http://localhost:8000", out.ScrapeAPI.BaseURL)
	assert.Equal(t, 1, out.ScrapeAPI.Burst)
}

func TestNormalizeAndValidateErrors(t *testing.T) {
	cfg := Default()
	cfg.App.Port = 0
	cfg.Database.Driver = "postgres"
	cfg.ScrapeAPI.BaseURL = "scraper"
	cfg.ScrapeAPI.Sources = []string{"linkedin"}
	cfg.Schedule.Cron = "every day"
	cfg.Schedule.Timezone = "Mars/Olympus"
	cfg.Sweep.MaxAge = 0

	_, v := NormalizeAndValidate(cfg)
	assert.False(t, v.OK())
	joined := ""
	for _, e := range v.Errors {
		joined += e + "\n"
	}
	for _, want := range []string{"app.port", "database.url", "scrape_api.base_url", `unknown source "linkedin"`, "schedule.cron", "schedule.timezone", "sweep.max_age"} {
		assert.Contains(t, joined, want)
	}
}

func TestNormalizeAndValidateWarnings(t *testing.T) {
	cfg := Default()
	cfg.ScrapeAPI.RequestsPerSecond = 0
	cfg.Sweep.MaxAge = time.Hour

	_, v := NormalizeAndValidate(cfg)
	assert.True(t, v.OK())
	assert.Len(t, v.Warnings, 2)
}

func TestEnsureUserConfigAndLoad(t *testing.T) {
	dir := t.TempDir()
	path, err := EnsureUserConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yml"), path)

	// existing files are left alone
	require.NoError(t, os.WriteFile(path, []byte("app:\n  port: 1234\n"), 0o644))
	_, err = EnsureUserConfig(dir)
	require.NoError(t, err)

	t.Setenv("JOBINTEL_PORT", "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.App.Port)
}

func TestSaveAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  port: 1111\n"), 0o644))

	cfg := Default()
	cfg.App.Port = 2222
	require.NoError(t, SaveAtomic(path, cfg))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	got, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, 2222, got.App.Port)
	assert.Equal(t, 5*time.Minute, got.ScrapeAPI.Timeout)

	bak, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Contains(t, string(bak), "1111")

	cfg.App.Port = -1
	assert.Error(t, SaveAtomic(path, cfg))
}

func TestDatabasePath(t *testing.T) {
	cfg := Default()
	cfg.App.DataDir = "/data"
	assert.Equal(t, filepath.Join("/data", "jobintel.db"), cfg.DatabasePath())
	cfg.Database.Path = "/abs/x.db"
	assert.Equal(t, "/abs/x.db", cfg.DatabasePath())
}
