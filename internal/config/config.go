// Package config layers orchestrator configuration: built-in defaults, a
// config file discovered via viper, then CODEORC_-prefixed environment
// variables, with an optional .env file loaded ahead of all of it via
// godotenv.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the resolved configuration for one orchestrator invocation.
type Config struct {
	WorkDir     string        `mapstructure:"work_dir"`
	MaxRetries  int           `mapstructure:"max_retries"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
	MaxTokens   int           `mapstructure:"max_tokens"`

	ModelName   string  `mapstructure:"model_name"`
	RateLimit   float64 `mapstructure:"rate_limit"`
	OfflineMode bool    `mapstructure:"offline_mode"`

	TraceDir    string `mapstructure:"trace_dir"`
	HistoryPath string `mapstructure:"history_path"`

	AllowedPaths          []string `mapstructure:"allowed_paths"`
	DeniedPaths           []string `mapstructure:"denied_paths"`
	ForbiddenDependencies []string `mapstructure:"forbidden_dependencies"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("max_retries", 3)
	v.SetDefault("max_duration", "10m")
	v.SetDefault("max_tokens", 60_000)
	v.SetDefault("model_name", "gemini-2.0-flash")
	v.SetDefault("rate_limit", 2.0)
	v.SetDefault("offline_mode", false)
	v.SetDefault("trace_dir", ".codeorc/trace")
	v.SetDefault("history_path", ".codeorc/history.jsonl")
}

// Load builds a Config by layering, in increasing precedence: built-in
// defaults, ~/.codeorc/config.yaml, ./.codeorc/config.yaml, and
// CODEORC_-prefixed environment variables. A .env file in the current
// directory, if present, is loaded first so its values participate in the
// environment-variable layer; a malformed .env is a warning, not a fatal
// error, since a missing .env is a normal deployment without one.
func Load(cfgFile string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CODEORC")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.codeorc")
		}
		v.AddConfigPath(".codeorc")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}

	return cfg, nil
}
