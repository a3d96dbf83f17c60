package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serviceEnvKeys = []string{
	"PORT", "PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "VERTEX_AI_LOCATION", "MODEL", "GEMINI_API_KEY",
	"API_KEY", "API_KEY_SECRET", "LOG_LEVEL", "LOG_FORMAT", "DATABASE_URI", "REPORT_CACHE_TTL",
	"RATE_LIMIT_PER_MINUTE", "CORS_ALLOWED_ORIGINS", "GENERATION_TIMEOUT",
}

// clearServiceEnv unsets every service variable for the duration of the test.
func clearServiceEnv(t *testing.T) {
	for _, key := range serviceEnvKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadServiceEnvDefaults(t *testing.T) {
	clearServiceEnv(t)
	t.Setenv("PROJECT_ID", "sales-project")

	env, err := LoadServiceEnv("")
	require.NoError(t, err)

	assert.Equal(t, 8080, env.Port)
	assert.Equal(t, "sales-project", env.Project())
	assert.Equal(t, "global", env.VertexLocation)
	assert.Equal(t, DefaultModel, env.Model)
	assert.Equal(t, "INFO", env.LogLevel)
	assert.Equal(t, "json", env.LogFormat)
	assert.Equal(t, 24*time.Hour, env.ReportCacheTTL)
	assert.Equal(t, 10, env.RateLimitPerMinute)
	assert.Equal(t, []string{"*"}, env.CorsAllowedOrigins)
	assert.Equal(t, 540*time.Second, env.GenerationTimeout)
	assert.Empty(t, env.ApiKey)
}

func TestLoadServiceEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.env")
	content := "GOOGLE_CLOUD_PROJECT=fallback-project\nPORT=9090\nCORS_ALLOWED_ORIGINS=https://a.example,https://b.example\nREPORT_CACHE_TTL=0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	clearServiceEnv(t)
	// godotenv does not override variables that are already set
	t.Setenv("PORT", "7070")

	env, err := LoadServiceEnv(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, env.Port)
	assert.Equal(t, "fallback-project", env.Project())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, env.CorsAllowedOrigins)
	assert.Equal(t, time.Duration(0), env.ReportCacheTTL)
}

func TestServiceEnvValidate(t *testing.T) {
	valid := ServiceEnv{
		Port:              8080,
		ProjectId:         "p",
		LogFormat:         "json",
		GenerationTimeout: time.Minute,
	}
	assert.NoError(t, valid.Validate())

	apiKeyOnly := valid
	apiKeyOnly.ProjectId = ""
	apiKeyOnly.GeminiApiKey = "key"
	assert.NoError(t, apiKeyOnly.Validate())

	invalid := ServiceEnv{
		Port:               70000,
		LogFormat:          "xml",
		ReportCacheTTL:     -time.Second,
		RateLimitPerMinute: -1,
	}
	err := invalid.Validate()
	require.Error(t, err)
	for _, msg := range []string{"PROJECT_ID", "PORT", "REPORT_CACHE_TTL", "RATE_LIMIT_PER_MINUTE", "GENERATION_TIMEOUT", "LOG_FORMAT"} {
		assert.Contains(t, err.Error(), msg)
	}
}
