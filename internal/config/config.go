// Package config loads the gastobot configuration: JSON on disk with
// ${VAR} / ${VAR:-default} environment substitution.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Server   ServerConfig   `json:"server"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Pipeline PipelineConfig `json:"pipeline"`
	Storage  StorageConfig  `json:"storage"`
	Redis    RedisConfig    `json:"redis"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// WhatsAppConfig configures the WhatsApp Business Cloud API channel.
type WhatsAppConfig struct {
	AppSecret     string `json:"appSecret,omitempty"`
	AccessToken   string `json:"accessToken,omitempty"`
	VerifyToken   string `json:"verifyToken,omitempty"`
	PhoneNumberID string `json:"phoneNumberId,omitempty"`
	WebhookPath   string `json:"webhookPath,omitempty"`
}

// PipelineConfig tunes the message-processing stages.
type PipelineConfig struct {
	RateLimitCount            int  `json:"rateLimitCount"`
	RateLimitWindowSeconds    int  `json:"rateLimitWindowSeconds"`
	SessionTimeoutMinutes     int  `json:"sessionTimeoutMinutes"`
	IdempotencyRetentionHours int  `json:"idempotencyRetentionHours"`
	MaxConcurrentMessages     int  `json:"maxConcurrentMessages"`
	StoreTimeoutSeconds       int  `json:"storeTimeoutSeconds"`
	NotifyOnThrottle          bool `json:"notifyOnThrottle"`
}

type StorageConfig struct {
	DBPath        string `json:"dbPath"`
	ExportDir     string `json:"exportDir"`
	CategoriesDir string `json:"categoriesDir,omitempty"`
}

// RedisConfig enables the shared-state backends (idempotency, rate limit,
// sessions). With Enabled=false everything runs in process memory.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.gastobot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gastobot"
	}
	return filepath.Join(home, ".gastobot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Storage.DBPath = ExpandPath(cfg.Storage.DBPath)
	cfg.Storage.ExportDir = ExpandPath(cfg.Storage.ExportDir)
	cfg.Storage.CategoriesDir = ExpandPath(cfg.Storage.CategoriesDir)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if cfg.Pipeline.RateLimitCount < 1 {
		errs = append(errs, "pipeline.rateLimitCount must be >= 1")
	}
	if cfg.Pipeline.RateLimitWindowSeconds < 1 {
		errs = append(errs, "pipeline.rateLimitWindowSeconds must be >= 1")
	}
	if cfg.Pipeline.SessionTimeoutMinutes < 1 {
		errs = append(errs, "pipeline.sessionTimeoutMinutes must be >= 1")
	}
	if cfg.Pipeline.IdempotencyRetentionHours < 1 {
		errs = append(errs, "pipeline.idempotencyRetentionHours must be >= 1")
	}
	if cfg.Pipeline.MaxConcurrentMessages < 1 || cfg.Pipeline.MaxConcurrentMessages > 100 {
		errs = append(errs, "pipeline.maxConcurrentMessages must be between 1 and 100")
	}
	if cfg.Pipeline.StoreTimeoutSeconds < 1 {
		errs = append(errs, "pipeline.storeTimeoutSeconds must be >= 1")
	}
	if cfg.Storage.DBPath == "" {
		errs = append(errs, "storage.dbPath is required")
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required when redis is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
