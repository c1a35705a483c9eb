// Package config loads runtime settings for the agent and its command
// execution harness from layered TOML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultModel                  = "gpt-5-mini"
	defaultTemperature            = 1.0
	defaultBaseURL                = "https://api.openai.com/v1"
	defaultShell                  = "bash"
	defaultSentinelToken          = "__CMD_EXIT"
	defaultTerminationGracePeriod = 5 * time.Second
	defaultRequestTimeout         = 120 * time.Second
)

// Config stores runtime settings loaded from TOML files. SafeMode gates
// privileged or destructive commands behind interactive confirmation.
type Config struct {
	SafeMode               bool
	Model                  string
	Temperature            float64
	BaseURL                string
	Shell                  string
	SentinelToken          string
	SignaturesFile         string
	TerminationGracePeriod time.Duration
	RequestTimeout         time.Duration
}

type fileConfig struct {
	SafeMode               *bool    `toml:"safe_mode"`
	Model                  *string  `toml:"model"`
	Temperature            *float64 `toml:"temperature"`
	BaseURL                *string  `toml:"base_url"`
	Shell                  *string  `toml:"shell"`
	SentinelToken          *string  `toml:"sentinel_token"`
	SignaturesFile         *string  `toml:"signatures_file"`
	TerminationGracePeriod *string  `toml:"termination_grace_period"`
	RequestTimeout         *string  `toml:"request_timeout"`
}

// Load reads config from ~/.shellmate/config.toml, overlays a project-local
// .shellmate/config.toml, then applies MODEL and TEMPERATURE environment
// overrides so users can experiment without editing files.
func Load() (*Config, error) {
	cfg := defaults()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	paths := []string{
		filepath.Join(homeDir, ".shellmate", "config.toml"),
		filepath.Join(workingDir, ".shellmate", "config.toml"),
	}

	for _, path := range paths {
		if err := overlayFromFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Model:                  defaultModel,
		Temperature:            defaultTemperature,
		BaseURL:                defaultBaseURL,
		Shell:                  defaultShell,
		SentinelToken:          defaultSentinelToken,
		TerminationGracePeriod: defaultTerminationGracePeriod,
		RequestTimeout:         defaultRequestTimeout,
	}
}

func overlayFromFile(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config must not be nil")
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config file %q: %w", path, err)
	}

	var decoded fileConfig
	if _, err := toml.DecodeFile(path, &decoded); err != nil {
		return fmt.Errorf("decode config file %q: %w", path, err)
	}

	if decoded.SafeMode != nil {
		cfg.SafeMode = *decoded.SafeMode
	}
	if decoded.Model != nil {
		cfg.Model = strings.TrimSpace(*decoded.Model)
	}
	if decoded.Temperature != nil {
		cfg.Temperature = *decoded.Temperature
	}
	if decoded.BaseURL != nil {
		cfg.BaseURL = strings.TrimRight(strings.TrimSpace(*decoded.BaseURL), "/")
	}
	if decoded.Shell != nil {
		cfg.Shell = strings.TrimSpace(*decoded.Shell)
	}
	if decoded.SentinelToken != nil {
		token := strings.TrimSpace(*decoded.SentinelToken)
		if token == "" {
			return fmt.Errorf("parse sentinel_token in %q: must not be empty", path)
		}
		cfg.SentinelToken = token
	}
	if decoded.SignaturesFile != nil {
		cfg.SignaturesFile = strings.TrimSpace(*decoded.SignaturesFile)
	}
	if decoded.TerminationGracePeriod != nil {
		value, err := parseDuration(*decoded.TerminationGracePeriod, "termination_grace_period", path)
		if err != nil {
			return err
		}
		cfg.TerminationGracePeriod = value
	}
	if decoded.RequestTimeout != nil {
		value, err := parseDuration(*decoded.RequestTimeout, "request_timeout", path)
		if err != nil {
			return err
		}
		cfg.RequestTimeout = value
	}

	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if model := strings.TrimSpace(os.Getenv("MODEL")); model != "" {
		cfg.Model = model
	}
	if raw := strings.TrimSpace(os.Getenv("TEMPERATURE")); raw != "" {
		temperature, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("parse TEMPERATURE environment variable %q: %w", raw, err)
		}
		cfg.Temperature = temperature
	}
	return nil
}

func parseDuration(value, key, path string) (time.Duration, error) {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s in %q: %w", key, path, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("parse %s in %q: must be positive", key, path)
	}
	return parsed, nil
}
