package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const DefaultModel = "gemini-2.5-flash-preview-09-2025"

type ServiceEnv struct {
	Port int `env:"PORT" envDefault:"8080"`

	ProjectId          string `env:"PROJECT_ID"`
	GoogleCloudProject string `env:"GOOGLE_CLOUD_PROJECT"`
	VertexLocation     string `env:"VERTEX_AI_LOCATION" envDefault:"global"`
	Model              string `env:"MODEL" envDefault:"gemini-2.5-flash-preview-09-2025"`
	GeminiApiKey       string `env:"GEMINI_API_KEY"`

	ApiKey       string `env:"API_KEY"`
	ApiKeySecret string `env:"API_KEY_SECRET"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	DatabaseUri string `env:"DATABASE_URI"`

	ReportCacheTTL     time.Duration `env:"REPORT_CACHE_TTL" envDefault:"24h"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"10"`
	CorsAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	GenerationTimeout  time.Duration `env:"GENERATION_TIMEOUT" envDefault:"540s"`
}

/**
 * ==========================================================================
 * ==== All variables used by the sales intelligence service are loaded  ====
 * ==== here so that it is clear which variables are exposed and how     ====
 * ==== their values propagate through the service.                      ====
 * ==========================================================================
 */
func LoadServiceEnv(envFile string) (*ServiceEnv, error) {
	if envFile != "" {
		slog.Info("loading env from file", "env_file", envFile)
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("error loading env file '%v': %w", envFile, err)
		}
	}

	cfg := &ServiceEnv{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Project returns PROJECT_ID, falling back to GOOGLE_CLOUD_PROJECT.
func (e *ServiceEnv) Project() string {
	if e.ProjectId != "" {
		return e.ProjectId
	}
	return e.GoogleCloudProject
}

func (e *ServiceEnv) Validate() error {
	var errs []error

	if e.Project() == "" && e.GeminiApiKey == "" {
		errs = append(errs, errors.New("PROJECT_ID or GOOGLE_CLOUD_PROJECT must be set when GEMINI_API_KEY is not provided"))
	}
	if e.Port <= 0 || e.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d", e.Port))
	}
	if e.ReportCacheTTL < 0 {
		errs = append(errs, errors.New("REPORT_CACHE_TTL must not be negative"))
	}
	if e.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must not be negative"))
	}
	if e.GenerationTimeout <= 0 {
		errs = append(errs, errors.New("GENERATION_TIMEOUT must be positive"))
	}
	switch strings.ToLower(e.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got '%v'", e.LogFormat))
	}

	return errors.Join(errs...)
}
