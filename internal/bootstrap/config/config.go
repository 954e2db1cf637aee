package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"policyguard/internal/bootstrap/logging"
	"policyguard/internal/errs"
)

const EnvPrefix = "POLICYGUARD"

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Server    ServerConfig    `mapstructure:"server"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// LLMConfig points at any OpenAI-compatible chat completions endpoint.
// An empty APIKey disables generation.
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type ScanConfig struct {
	ExtractionRetries int    `mapstructure:"extraction_retries"`
	TempDir           string `mapstructure:"temp_dir"`
	HistoryLimit      int    `mapstructure:"history_limit"`
}

type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// ReferenceDSN is the database scheduled scans run against.
	ReferenceDSN     string        `mapstructure:"reference_dsn"`
	FallbackInterval time.Duration `mapstructure:"fallback_interval"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("llm_model", cfg.LLM.Model),
		slog.Bool("llm_enabled", cfg.LLM.APIKey != ""),
		slog.Bool("scheduler_enabled", cfg.Scheduler.Enabled),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if c.Scan.ExtractionRetries < 0 {
		return fmt.Errorf("scan.extraction_retries must not be negative, got %d", c.Scan.ExtractionRetries)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2], got %v", c.LLM.Temperature)
	}
	if c.Scheduler.FallbackInterval <= 0 {
		return fmt.Errorf("scheduler.fallback_interval must be positive, got %s", c.Scheduler.FallbackInterval)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "policyguard")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".policyguard/policyguard.sqlite")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "llama-3.1-8b-instant")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 800)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("scan.extraction_retries", 2)
	v.SetDefault("scan.temp_dir", "")
	v.SetDefault("scan.history_limit", 50)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reference_dsn", "")
	v.SetDefault("scheduler.fallback_interval", 5*time.Minute)
	v.SetDefault("server.addr", ":8000")
}
