// Package config loads the dashboard service settings from an optional file
// and ECO_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. ECO_BACKEND_URL.
const EnvPrefix = "ECO"

// DefaultFile is read when no file is named and it exists.
const DefaultFile = ".env"

var validate = validator.New()

type Config struct {
	Backend  BackendConfig
	Analysis AnalysisConfig
	Session  SessionConfig
	HTTP     HTTPConfig
	Log      LogConfig
}

type BackendConfig struct {
	URL              string        `validate:"required,url"`
	Timeout          time.Duration `validate:"gt=0"`
	TrustedTileHosts []string      `validate:"min=1,dive,required"`
}

type AnalysisConfig struct {
	StartDate  string `validate:"omitempty,datetime=2006-01-02"`
	EndDate    string `validate:"omitempty,datetime=2006-01-02"`
	Resolution int    `validate:"gte=0"`
	// Pace between re-analyses. Negative disables pacing.
	Pace time.Duration
}

type SessionConfig struct {
	TTL           time.Duration `validate:"gt=0"`
	SweepInterval time.Duration `validate:"gt=0"`
}

type HTTPConfig struct {
	AllowedOrigins []string `validate:"dive,required"`
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend_url", "http://localhost:8000")
	v.SetDefault("backend_timeout", "120s")
	v.SetDefault("trusted_tile_hosts", []string{"earthengine.googleapis.com"})
	v.SetDefault("start_date", "2021-01-01")
	v.SetDefault("end_date", "2023-01-01")
	v.SetDefault("resolution", 0)
	v.SetDefault("reanalysis_pace", "500ms")
	v.SetDefault("session_ttl", "2h")
	v.SetDefault("session_sweep_interval", "5m")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("log_level", "info")
}

// Load reads path (YAML, JSON or .env, by extension) when given, otherwise
// .env when present, then applies ECO_* environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	file := path
	if file == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			file = DefaultFile
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Backend: BackendConfig{
			URL:              strings.TrimRight(v.GetString("backend_url"), "/"),
			Timeout:          v.GetDuration("backend_timeout"),
			TrustedTileHosts: list(v.GetStringSlice("trusted_tile_hosts")),
		},
		Analysis: AnalysisConfig{
			StartDate:  v.GetString("start_date"),
			EndDate:    v.GetString("end_date"),
			Resolution: v.GetInt("resolution"),
			Pace:       v.GetDuration("reanalysis_pace"),
		},
		Session: SessionConfig{
			TTL:           v.GetDuration("session_ttl"),
			SweepInterval: v.GetDuration("session_sweep_interval"),
		},
		HTTP: HTTPConfig{
			AllowedOrigins: list(v.GetStringSlice("allowed_origins")),
		},
		Log: LogConfig{
			Level: strings.ToLower(v.GetString("log_level")),
		},
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// list flattens comma separated entries, so env values like "a.com,b.com"
// and YAML lists read the same.
func list(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
