package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"LedgerPro"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	Storage struct {
		DataDir string `envconfig:"DATA_DIR" default:"./data"`
	}

	HTTP struct {
		AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
	}

	// Remote is optional: when set, the session connects to this backend on
	// startup unless a previously stored configuration is restored first.
	Remote struct {
		ProjectURL string `envconfig:"SUPABASE_URL"`
		APIKey     string `envconfig:"SUPABASE_ANON_KEY"`
	}

	Advisor struct {
		APIKey      string `envconfig:"GEMINI_API_KEY"`
		Model       string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
		RecentLimit int    `envconfig:"ADVISOR_RECENT_LIMIT" default:"50"`
	}
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
