// Package config provides configuration management for laboveda.
//
// Settings come from a YAML file with LABOVEDA_* environment overrides.
// Environment variables always win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/laboveda/pkg/models"
)

const (
	// DefaultWorkerPort is the default HTTP port for the worker service.
	DefaultWorkerPort = 37780

	// DefaultRecalibrateConcurrency bounds parallel asset recomputes.
	DefaultRecalibrateConcurrency = 4
)

// Config holds the application configuration.
type Config struct {
	// Worker settings
	WorkerPort int `yaml:"worker_port" env:"LABOVEDA_WORKER_PORT" env-default:"37780"`

	// APIToken guards the HTTP API with a bearer token. Read from the environment only.
	APIToken string `yaml:"-" env:"LABOVEDA_API_TOKEN"`

	// Database settings. An empty sqlite DSN resolves to DBPath().
	DBDriver string `yaml:"db_driver" env:"LABOVEDA_DB_DRIVER" env-default:"sqlite"`
	DBDSN    string `yaml:"db_dsn" env:"LABOVEDA_DB_DSN"`
	MaxConns int    `yaml:"max_conns" env:"LABOVEDA_MAX_CONNS"`

	// Redis settings. An empty address keeps locks in-process.
	RedisAddr   string `yaml:"redis_addr" env:"LABOVEDA_REDIS_ADDR"`
	RedisPrefix string `yaml:"redis_prefix" env:"LABOVEDA_REDIS_PREFIX" env-default:"laboveda:lock:"`

	Scoring ScoringSettings `yaml:"scoring"`

	// Recalibration settings. An interval of 0 disables the scheduled run.
	RecalibrateConcurrency     int `yaml:"recalibrate_concurrency" env:"LABOVEDA_RECALIBRATE_CONCURRENCY" env-default:"4"`
	RecalibrateIntervalMinutes int `yaml:"recalibrate_interval_minutes" env:"LABOVEDA_RECALIBRATE_INTERVAL_MINUTES"`

	// Logging settings
	LogLevel  string `yaml:"log_level" env:"LABOVEDA_LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LABOVEDA_LOG_FORMAT" env-default:"console"`
}

// ScoringSettings are the tunable weights and tier cutoffs.
type ScoringSettings struct {
	Weights WeightSettings `yaml:"weights"`
	Tiers   TierSettings   `yaml:"tiers"`
}

// WeightSettings are the per-unit score multipliers.
type WeightSettings struct {
	Impression float64 `yaml:"impression" env:"LABOVEDA_WEIGHT_IMPRESSION" env-default:"0.001"`
	Click      float64 `yaml:"click" env:"LABOVEDA_WEIGHT_CLICK" env-default:"5"`
	Save       float64 `yaml:"save" env:"LABOVEDA_WEIGHT_SAVE" env-default:"0.5"`
	Revenue    float64 `yaml:"revenue" env:"LABOVEDA_WEIGHT_REVENUE" env-default:"20"`
}

// TierSettings are the lower bounds of each tier above DUST.
type TierSettings struct {
	Common    float64 `yaml:"common" env:"LABOVEDA_TIER_COMMON" env-default:"100"`
	Uncommon  float64 `yaml:"uncommon" env:"LABOVEDA_TIER_UNCOMMON" env-default:"500"`
	Rare      float64 `yaml:"rare" env:"LABOVEDA_TIER_RARE" env-default:"1500"`
	Legendary float64 `yaml:"legendary" env:"LABOVEDA_TIER_LEGENDARY" env-default:"5000"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// DataDir returns the data directory path (~/.laboveda).
func DataDir() string {
	if dir := os.Getenv("LABOVEDA_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".laboveda")
}

// DBPath returns the default SQLite database file path.
func DBPath() string {
	return filepath.Join(DataDir(), "laboveda.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.yaml")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings writes a default settings file to path if none exists.
func EnsureSettings(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	cfg := Default()
	cfg.DBDSN = ""
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode default settings: %w", err)
	}
	header := []byte("# laboveda settings. LABOVEDA_* environment variables override these values.\n")
	return os.WriteFile(path, append(header, data...), 0600)
}

// EnsureAll ensures the data directory and settings file exist.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings(SettingsPath())
}

// Default returns a Config with default values.
func Default() *Config {
	ref := models.DefaultScoringConfig()
	return &Config{
		WorkerPort:  DefaultWorkerPort,
		DBDriver:    "sqlite",
		DBDSN:       DBPath(),
		RedisPrefix: "laboveda:lock:",
		Scoring: ScoringSettings{
			Weights: WeightSettings{
				Impression: ref.Weights.Impression,
				Click:      ref.Weights.Click,
				Save:       ref.Weights.Save,
				Revenue:    ref.Weights.RevenueDollar,
			},
			Tiers: TierSettings{
				Common:    ref.Tiers.Common,
				Uncommon:  ref.Tiers.Uncommon,
				Rare:      ref.Tiers.Rare,
				Legendary: ref.Tiers.Legendary,
			},
		},
		RecalibrateConcurrency: DefaultRecalibrateConcurrency,
		LogLevel:               "info",
		LogFormat:              "console",
	}
}

// Load reads path with environment overrides. A missing file (or an empty
// path) falls back to environment variables and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			return cfg.finish()
		} else if !errors.Is(statErr, os.ErrNotExist) {
			return nil, statErr
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return cfg.finish()
}

func (c *Config) finish() (*Config, error) {
	if c.DBDriver == "sqlite" && c.DBDSN == "" {
		c.DBDSN = DBPath()
	}
	if c.RecalibrateConcurrency <= 0 {
		c.RecalibrateConcurrency = DefaultRecalibrateConcurrency
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("db_driver must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.DBDSN == "" {
		return errors.New("db_dsn is required for postgres")
	}
	if c.WorkerPort <= 0 || c.WorkerPort > 65535 {
		return fmt.Errorf("worker_port out of range: %d", c.WorkerPort)
	}
	if c.RecalibrateIntervalMinutes < 0 {
		return fmt.Errorf("recalibrate_interval_minutes must not be negative: %d", c.RecalibrateIntervalMinutes)
	}
	return c.ScoringConfig().Validate()
}

// ScoringConfig converts the scoring settings into a fresh calculator config.
func (c *Config) ScoringConfig() *models.ScoringConfig {
	sc := models.DefaultScoringConfig()
	sc.Weights = models.ScoringWeights{
		Impression:    c.Scoring.Weights.Impression,
		Click:         c.Scoring.Weights.Click,
		Save:          c.Scoring.Weights.Save,
		RevenueDollar: c.Scoring.Weights.Revenue,
	}
	sc.Tiers = models.TierThresholds{
		Common:    c.Scoring.Tiers.Common,
		Uncommon:  c.Scoring.Tiers.Uncommon,
		Rare:      c.Scoring.Tiers.Rare,
		Legendary: c.Scoring.Tiers.Legendary,
	}
	return sc
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		cfg, err := Load(SettingsPath())
		if err != nil {
			cfg = Default()
		}
		configMu.Lock()
		globalConfig = cfg
		configMu.Unlock()
	})

	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// set replaces the global configuration after a reload.
func set(cfg *Config) {
	configOnce.Do(func() {})
	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
}

// GetWorkerPort returns the worker port from environment or config.
func GetWorkerPort() int {
	if port := os.Getenv("LABOVEDA_WORKER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			return p
		}
	}
	return Get().WorkerPort
}
