// Package config loads taskwright settings from config.yaml and TW_* env vars.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the CLI needs to construct a backend and pick
// execution defaults.
type Config struct {
	Backend  BackendConfig
	Defaults DefaultsConfig
}

// BackendConfig configures the automation runner.
type BackendConfig struct {
	// Command is the runner argv, e.g. ["osascript", "-l", "JavaScript", "runner.js"].
	Command []string

	// Timeout bounds one runner invocation.
	Timeout time.Duration

	// RetryMaxElapsed caps total retry time for transient runner errors.
	RetryMaxElapsed time.Duration
}

// DefaultsConfig supplies execution options when flags don't override them.
type DefaultsConfig struct {
	Atomic      bool
	StopOnError bool
}

// Load reads configuration. An explicit path wins; otherwise
// $XDG_CONFIG_HOME/taskwright/config.yaml (falling back to
// ~/.config/taskwright) and the working directory are searched.
// A missing config file is not an error; env vars still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("backend.timeout", "30s")
	v.SetDefault("backend.retry-max-elapsed", "30s")
	v.SetDefault("defaults.atomic", false)
	v.SetDefault("defaults.stop-on-error", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	command := v.GetStringSlice("backend.command")
	// Env vars carry the runner argv as one whitespace-separated string;
	// viper's slice coercion is not reliable for env-sourced values, so split
	// it here. The env var wins over the file, matching viper's precedence.
	if env := os.Getenv("TW_BACKEND_COMMAND"); env != "" {
		command = strings.Fields(env)
	}

	cfg := &Config{
		Backend: BackendConfig{
			Command:         command,
			Timeout:         v.GetDuration("backend.timeout"),
			RetryMaxElapsed: v.GetDuration("backend.retry-max-elapsed"),
		},
		Defaults: DefaultsConfig{
			Atomic:      v.GetBool("defaults.atomic"),
			StopOnError: v.GetBool("defaults.stop-on-error"),
		},
	}
	return cfg, nil
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "taskwright")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "taskwright")
}
