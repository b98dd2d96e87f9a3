package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Sandbox config
	assert.Equal(t, "/project", cfg.Sandbox.ProjectRoot)
	assert.Equal(t, "__SANDBOX_BROWSER_MODE", cfg.Sandbox.EnvFlag)
	assert.Empty(t, cfg.Sandbox.Entrypoint)
	assert.Zero(t, cfg.Sandbox.ScriptTimeout)
	assert.Equal(t, 1024, cfg.Sandbox.MaxCallStack)

	// Manifest config
	assert.Equal(t, SourceFile, cfg.Manifest.Source)
	assert.Equal(t, "project_fs.json", cfg.Manifest.Path)

	assert.Equal(t, 64, cfg.Session.Limit)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                   "9000",
		"HOST":                   "127.0.0.1",
		"CORS_ORIGINS":           "http://a.test,https://b.test",
		"LOG_LEVEL":              "debug",
		"LOG_DEV":                "true",
		"RATE_LIMIT_RPS":         "500",
		"RATE_LIMIT_BURST":       "1000",
		"RATE_LIMIT_ENABLED":     "false",
		"SANDBOX_PROJECT_ROOT":   "/workspace",
		"SANDBOX_ENV_FLAG":       "__TEST_MODE",
		"SANDBOX_ENTRYPOINT":     "/lib/boot.js",
		"SANDBOX_SCRIPT_TIMEOUT": "2s",
		"SANDBOX_MAX_CALL_STACK": "256",
		"SANDBOX_PACKAGES":       "lodash,widgets",
		"SANDBOX_PACKAGE_INDEX":  "https://packages.example.com",
		"SANDBOX_PACKAGE_GZIP":   "true",
		"MANIFEST_SOURCE":        "http",
		"MANIFEST_URL":           "https://example.com/project_fs.json",
		"MANIFEST_IGNORE":        "**/*.tmp,build/**",
		"SESSION_LIMIT":          "8",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, []string{"http://a.test", "https://b.test"}, cfg.Server.CORSOrigins)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)

	assert.Equal(t, "/workspace", cfg.Sandbox.ProjectRoot)
	assert.Equal(t, "__TEST_MODE", cfg.Sandbox.EnvFlag)
	assert.Equal(t, "/lib/boot.js", cfg.Sandbox.Entrypoint)
	assert.Equal(t, 2*time.Second, cfg.Sandbox.ScriptTimeout)
	assert.Equal(t, 256, cfg.Sandbox.MaxCallStack)
	assert.Equal(t, []string{"lodash", "widgets"}, cfg.Sandbox.Packages)
	assert.Equal(t, "https://packages.example.com", cfg.Sandbox.PackageIndex)
	assert.True(t, cfg.Sandbox.PackageGzip)

	assert.Equal(t, SourceHTTP, cfg.Manifest.Source)
	assert.Equal(t, "https://example.com/project_fs.json", cfg.Manifest.URL)
	assert.Equal(t, []string{"**/*.tmp", "build/**"}, cfg.Manifest.Ignore)

	assert.Equal(t, 8, cfg.Session.Limit)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Verify overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Verify default values still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "/project", cfg.Sandbox.ProjectRoot)
	assert.Equal(t, SourceFile, cfg.Manifest.Source)
}

func TestRateLimitConfig(t *testing.T) {
	tests := []struct {
		name        string
		rps         string
		burst       string
		enabled     string
		wantRPS     int
		wantBurst   int
		wantEnabled bool
	}{
		{
			name:        "default values",
			wantRPS:     100,
			wantBurst:   200,
			wantEnabled: true,
		},
		{
			name:        "high limits",
			rps:         "1000",
			burst:       "2000",
			wantRPS:     1000,
			wantBurst:   2000,
			wantEnabled: true,
		},
		{
			name:        "disabled",
			enabled:     "false",
			wantRPS:     100,
			wantBurst:   200,
			wantEnabled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.rps != "" {
				t.Setenv("RATE_LIMIT_RPS", tt.rps)
			}
			if tt.burst != "" {
				t.Setenv("RATE_LIMIT_BURST", tt.burst)
			}
			if tt.enabled != "" {
				t.Setenv("RATE_LIMIT_ENABLED", tt.enabled)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantRPS, cfg.RateLimit.RequestsPerSecond)
			assert.Equal(t, tt.wantBurst, cfg.RateLimit.Burst)
			assert.Equal(t, tt.wantEnabled, cfg.RateLimit.Enabled)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "file source",
			mutate: func(c *Config) {},
		},
		{
			name: "dir source",
			mutate: func(c *Config) {
				c.Manifest.Source = SourceDir
				c.Manifest.Path = "./project"
			},
		},
		{
			name: "file source without path",
			mutate: func(c *Config) {
				c.Manifest.Path = ""
			},
			wantErr: "MANIFEST_PATH",
		},
		{
			name: "http source without url",
			mutate: func(c *Config) {
				c.Manifest.Source = SourceHTTP
			},
			wantErr: "MANIFEST_URL",
		},
		{
			name: "unknown source",
			mutate: func(c *Config) {
				c.Manifest.Source = "ftp"
			},
			wantErr: "unknown MANIFEST_SOURCE",
		},
		{
			name: "packages without origin",
			mutate: func(c *Config) {
				c.Sandbox.Packages = []string{"lodash"}
			},
			wantErr: "SANDBOX_PACKAGES",
		},
		{
			name: "explicit origins",
			mutate: func(c *Config) {
				c.Server.CORSOrigins = []string{"http://localhost:3000", "https://app.example.com"}
			},
		},
		{
			name: "origin without scheme",
			mutate: func(c *Config) {
				c.Server.CORSOrigins = []string{"localhost:3000"}
			},
			wantErr: "CORS_ORIGINS",
		},
		{
			name: "packages from dir",
			mutate: func(c *Config) {
				c.Sandbox.Packages = []string{"lodash"}
				c.Sandbox.PackageDir = "./packages"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("MANIFEST_SOURCE", "http")

	_, err := Load()
	require.Error(t, err)

	// LoadOrDefault falls back
	cfg := LoadOrDefault()
	assert.Equal(t, SourceFile, cfg.Manifest.Source)
}
