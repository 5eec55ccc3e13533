// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port        int    `yaml:"port"`
	AdminAPIKey string `yaml:"admin_api_key"`
	CronSecret  string `yaml:"cron_secret"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WorkerConfig struct {
	BaseURL    string `yaml:"base_url"`
	EndpointID string `yaml:"endpoint_id"`
	APIKey     string `yaml:"api_key"`

	// AppURL + WebhookSecret build the callback the worker posts back to.
	AppURL        string `yaml:"app_url"`
	WebhookSecret string `yaml:"webhook_secret"`

	GenerationTimeout time.Duration `yaml:"generation_timeout"`
	TrainingTimeout   time.Duration `yaml:"training_timeout"`

	// Flat per-job cost recorded in the usage ledger on completion.
	GenerationCostUSD float64 `yaml:"generation_cost_usd"`
	TrainingCostUSD   float64 `yaml:"training_cost_usd"`
}

type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

type SchedulerConfig struct {
	AdmissionInterval time.Duration `yaml:"admission_interval"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Worker    WorkerConfig    `yaml:"worker"`
	Poll      PollConfig      `yaml:"poll"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Worker.BaseURL == "" {
		cfg.Worker.BaseURL = "https://api.runpod.ai/v2"
	}
	if cfg.Worker.GenerationTimeout <= 0 {
		cfg.Worker.GenerationTimeout = 15 * time.Minute
	}
	if cfg.Worker.TrainingTimeout <= 0 {
		cfg.Worker.TrainingTimeout = 2 * time.Hour
	}
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = 2 * time.Second
	}
	if cfg.Poll.Timeout <= 0 {
		cfg.Poll.Timeout = 5 * time.Minute
	}
	if cfg.Scheduler.AdmissionInterval <= 0 {
		cfg.Scheduler.AdmissionInterval = 15 * time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Worker.EndpointID == "" && !dev {
		return nil, errors.New("worker.endpoint_id is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
