package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

//go:embed config.yml
var defaultYAML []byte

type AppConfig struct {
	Port    int    `yaml:"port" json:"port"`
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	Path   string `yaml:"path" json:"path"`
	URL    string `yaml:"url" json:"url"`
}

type ScrapeAPIConfig struct {
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	Sources           []string      `yaml:"sources" json:"sources"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	KeyringAccount    string        `yaml:"keyring_account" json:"keyring_account"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	MaxBackoff  time.Duration `yaml:"max_backoff" json:"max_backoff"`
}

type ScheduleConfig struct {
	Enabled    bool        `yaml:"enabled" json:"enabled"`
	Cron       string      `yaml:"cron" json:"cron"`
	Timezone   string      `yaml:"timezone" json:"timezone"`
	RunOnStart bool        `yaml:"run_on_start" json:"run_on_start"`
	MaxResults int         `yaml:"max_results" json:"max_results"`
	Trades     []string    `yaml:"trades" json:"trades"`
	Cities     []string    `yaml:"cities" json:"cities"`
	Retry      RetryConfig `yaml:"retry" json:"retry"`
}

type SweepConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Cron    string        `yaml:"cron" json:"cron"`
	MaxAge  time.Duration `yaml:"max_age" json:"max_age"`
}

type RedisConfig struct {
	URL     string `yaml:"url" json:"url"`
	Channel string `yaml:"channel" json:"channel"`
}

type Config struct {
	App       AppConfig       `yaml:"app" json:"app"`
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	ScrapeAPI ScrapeAPIConfig `yaml:"scrape_api" json:"scrape_api"`
	Schedule  ScheduleConfig  `yaml:"schedule" json:"schedule"`
	Sweep     SweepConfig     `yaml:"sweep" json:"sweep"`
	Redis     RedisConfig     `yaml:"redis" json:"redis"`
}

// Default returns the embedded defaults.
func Default() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Parse decodes b over the defaults, so keys missing from b keep their
// default value.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Load reads path and applies environment overrides.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return ApplyEnv(cfg, os.Getenv), nil
}

// ApplyEnv overlays the JOBINTEL_* and well-known URL variables.
func ApplyEnv(cfg Config, getenv func(string) string) Config {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.App.DataDir, "JOBINTEL_DATA_DIR")
	set(&cfg.Database.Driver, "JOBINTEL_DB_DRIVER")
	set(&cfg.Database.URL, "DATABASE_URL")
	set(&cfg.Redis.URL, "REDIS_URL")
	set(&cfg.ScrapeAPI.BaseURL, "JOBINTEL_SCRAPE_API_URL")
	if v := strings.TrimSpace(getenv("JOBINTEL_PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = p
		}
	}
	return cfg
}

func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(&cfg)
}
