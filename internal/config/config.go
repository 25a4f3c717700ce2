package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv       = "REVIEWPULSE_CONFIG"
	fingerprintDSNEnv   = "FINGERPRINT_DSN"
	classifierAPIKeyEnv = "OPENAI_API_KEY"
	classifierModelEnv  = "CLASSIFIER_MODEL"
	dataDirEnv          = "REVIEWPULSE_DATA_DIR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Storage    StorageConfig    `yaml:"storage"`
	Database   DatabaseConfig   `yaml:"database"`
	Window     WindowConfig     `yaml:"window"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Validation ValidationConfig `yaml:"validation"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Batching   BatchingConfig   `yaml:"batching"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Exports    []ExportConfig   `yaml:"exports"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StorageConfig describes where weekly documents live.
type StorageConfig struct {
	DataDir string `yaml:"dataDir"`
}

// DatabaseConfig describes the optional Postgres fingerprint backend. When
// the DSN is empty the flat-file cache is used instead.
type DatabaseConfig struct {
	FingerprintDSN string `yaml:"fingerprintDsn"`
}

// WindowConfig bounds the collection window of each run, in days back from
// the trigger time.
type WindowConfig struct {
	DaysBack int `yaml:"daysBack"`
}

// SchedulerConfig defines how often the pipeline runs.
type SchedulerConfig struct {
	IntervalHours int `yaml:"intervalHours"`
}

// Interval resolves the configured run cadence.
func (s SchedulerConfig) Interval() time.Duration {
	if s.IntervalHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(s.IntervalHours) * time.Hour
}

// ValidationConfig holds the acceptance thresholds.
type ValidationConfig struct {
	MinLength            int     `yaml:"minLength"`
	MinEnglishConfidence float64 `yaml:"minEnglishConfidence"`
}

// DedupConfig tunes near-duplicate suppression.
type DedupConfig struct {
	Threshold      float64 `yaml:"threshold"`
	ShingleSize    int     `yaml:"shingleSize"`
	WindowWeeks    int     `yaml:"windowWeeks"`
	RetentionWeeks int     `yaml:"retentionWeeks"`
	CacheFile      string  `yaml:"cacheFile"`
}

// BatchingConfig bounds classification batch size.
type BatchingConfig struct {
	MaxReviews int `yaml:"maxReviews"`
	MaxTokens  int `yaml:"maxTokens"`
}

// ClassifierConfig defines how to contact the classification API and how hard
// to retry it.
type ClassifierConfig struct {
	Endpoint                 string  `yaml:"endpoint"`
	Model                    string  `yaml:"model"`
	APIKey                   string  `yaml:"apiKey"`
	MaxAttempts              int     `yaml:"maxAttempts"`
	BackoffBaseSeconds       float64 `yaml:"backoffBaseSeconds"`
	RateLimitCooldownSeconds float64 `yaml:"rateLimitCooldownSeconds"`
	Workers                  int     `yaml:"workers"`
	RequestsPerSecond        float64 `yaml:"requestsPerSecond"`
	Burst                    int     `yaml:"burst"`
}

// RateLimitCooldown resolves the configured cool-down.
func (c ClassifierConfig) RateLimitCooldown() time.Duration {
	return time.Duration(c.RateLimitCooldownSeconds * float64(time.Second))
}

// ExportConfig points one platform at its export drop directory.
type ExportConfig struct {
	Platform string `yaml:"platform"`
	Dir      string `yaml:"dir"`
}

// Load reads .env, YAML configuration (if present) and applies environment
// overrides.
func Load() Config {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(fingerprintDSNEnv); v != "" {
		c.Database.FingerprintDSN = v
	}

	if v := os.Getenv(classifierAPIKeyEnv); v != "" {
		c.Classifier.APIKey = v
	}

	if v := os.Getenv(classifierModelEnv); v != "" {
		c.Classifier.Model = v
	}

	if v := os.Getenv(dataDirEnv); v != "" {
		c.Storage.DataDir = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Storage.DataDir != "" {
		base.Storage = override.Storage
	}

	if override.Database.FingerprintDSN != "" {
		base.Database = override.Database
	}

	if override.Window.DaysBack > 0 {
		base.Window = override.Window
	}

	if override.Scheduler.IntervalHours > 0 {
		base.Scheduler = override.Scheduler
	}

	if override.Validation.MinLength > 0 {
		base.Validation.MinLength = override.Validation.MinLength
	}
	if override.Validation.MinEnglishConfidence > 0 {
		base.Validation.MinEnglishConfidence = override.Validation.MinEnglishConfidence
	}

	if override.Dedup.Threshold > 0 {
		base.Dedup.Threshold = override.Dedup.Threshold
	}
	if override.Dedup.ShingleSize > 0 {
		base.Dedup.ShingleSize = override.Dedup.ShingleSize
	}
	if override.Dedup.WindowWeeks > 0 {
		base.Dedup.WindowWeeks = override.Dedup.WindowWeeks
	}
	if override.Dedup.RetentionWeeks > 0 {
		base.Dedup.RetentionWeeks = override.Dedup.RetentionWeeks
	}
	if override.Dedup.CacheFile != "" {
		base.Dedup.CacheFile = override.Dedup.CacheFile
	}

	if override.Batching.MaxReviews > 0 {
		base.Batching.MaxReviews = override.Batching.MaxReviews
	}
	if override.Batching.MaxTokens > 0 {
		base.Batching.MaxTokens = override.Batching.MaxTokens
	}

	if override.Classifier.Endpoint != "" {
		base.Classifier.Endpoint = override.Classifier.Endpoint
	}
	if override.Classifier.Model != "" {
		base.Classifier.Model = override.Classifier.Model
	}
	if override.Classifier.APIKey != "" {
		base.Classifier.APIKey = override.Classifier.APIKey
	}
	if override.Classifier.MaxAttempts > 0 {
		base.Classifier.MaxAttempts = override.Classifier.MaxAttempts
	}
	if override.Classifier.BackoffBaseSeconds > 0 {
		base.Classifier.BackoffBaseSeconds = override.Classifier.BackoffBaseSeconds
	}
	if override.Classifier.RateLimitCooldownSeconds > 0 {
		base.Classifier.RateLimitCooldownSeconds = override.Classifier.RateLimitCooldownSeconds
	}
	if override.Classifier.Workers > 0 {
		base.Classifier.Workers = override.Classifier.Workers
	}
	if override.Classifier.RequestsPerSecond > 0 {
		base.Classifier.RequestsPerSecond = override.Classifier.RequestsPerSecond
	}
	if override.Classifier.Burst > 0 {
		base.Classifier.Burst = override.Classifier.Burst
	}

	if len(override.Exports) > 0 {
		base.Exports = override.Exports
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Storage:   StorageConfig{DataDir: "data"},
		Database:  DatabaseConfig{FingerprintDSN: ""},
		Window:    WindowConfig{DaysBack: 7},
		Scheduler: SchedulerConfig{IntervalHours: 7 * 24},
		Validation: ValidationConfig{
			MinLength:            20,
			MinEnglishConfidence: 0.7,
		},
		Dedup: DedupConfig{
			Threshold:      0.85,
			ShingleSize:    3,
			WindowWeeks:    1,
			RetentionWeeks: 26,
			CacheFile:      "data/fingerprints.json",
		},
		Batching: BatchingConfig{
			MaxReviews: 30,
			MaxTokens:  8000,
		},
		Classifier: ClassifierConfig{
			Endpoint:                 "",
			Model:                    "gpt-4o-mini",
			APIKey:                   "",
			MaxAttempts:              5,
			BackoffBaseSeconds:       2.0,
			RateLimitCooldownSeconds: 15,
			Workers:                  4,
			RequestsPerSecond:        1,
			Burst:                    2,
		},
		Exports: []ExportConfig{
			{Platform: "app_store", Dir: "exports/app_store"},
			{Platform: "play_store", Dir: "exports/play_store"},
		},
	}
}
