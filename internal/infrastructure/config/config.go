package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Manifest source kinds
const (
	SourceFile = "file"
	SourceHTTP = "http"
	SourceDir  = "dir"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Sandbox   SandboxConfig
	Manifest  ManifestConfig
	Session   SessionConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// Browser origins allowed to call the API; "*" allows any
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// SandboxConfig holds per-sandbox engine settings.
type SandboxConfig struct {
	ProjectRoot   string        `envconfig:"SANDBOX_PROJECT_ROOT" default:"/project"`
	EnvFlag       string        `envconfig:"SANDBOX_ENV_FLAG" default:"__SANDBOX_BROWSER_MODE"`
	Entrypoint    string        `envconfig:"SANDBOX_ENTRYPOINT"`
	ScriptTimeout time.Duration `envconfig:"SANDBOX_SCRIPT_TIMEOUT" default:"0s"`
	MaxCallStack  int           `envconfig:"SANDBOX_MAX_CALL_STACK" default:"1024"`
	Packages      []string      `envconfig:"SANDBOX_PACKAGES"`
	PackageIndex  string        `envconfig:"SANDBOX_PACKAGE_INDEX"`
	PackageDir    string        `envconfig:"SANDBOX_PACKAGE_DIR"`
	PackageGzip   bool          `envconfig:"SANDBOX_PACKAGE_GZIP" default:"false"`
}

// ManifestConfig selects where project files come from.
type ManifestConfig struct {
	Source string   `envconfig:"MANIFEST_SOURCE" default:"file"`
	Path   string   `envconfig:"MANIFEST_PATH" default:"project_fs.json"`
	URL    string   `envconfig:"MANIFEST_URL"`
	Ignore []string `envconfig:"MANIFEST_IGNORE"`
}

// SessionConfig holds session manager limits.
type SessionConfig struct {
	Limit int `envconfig:"SESSION_LIMIT" default:"64"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	for _, origin := range c.Server.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("CORS_ORIGINS entry %q needs an http or https scheme", origin)
		}
	}
	switch c.Manifest.Source {
	case SourceFile, SourceDir:
		if c.Manifest.Path == "" {
			return fmt.Errorf("MANIFEST_PATH is required for source %q", c.Manifest.Source)
		}
	case SourceHTTP:
		if c.Manifest.URL == "" {
			return fmt.Errorf("MANIFEST_URL is required for source %q", SourceHTTP)
		}
	default:
		return fmt.Errorf("unknown MANIFEST_SOURCE %q", c.Manifest.Source)
	}
	if len(c.Sandbox.Packages) > 0 && c.Sandbox.PackageIndex == "" && c.Sandbox.PackageDir == "" {
		return fmt.Errorf("SANDBOX_PACKAGES needs SANDBOX_PACKAGE_INDEX or SANDBOX_PACKAGE_DIR")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			CORSOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Sandbox: SandboxConfig{
			ProjectRoot:  "/project",
			EnvFlag:      "__SANDBOX_BROWSER_MODE",
			MaxCallStack: 1024,
		},
		Manifest: ManifestConfig{
			Source: SourceFile,
			Path:   "project_fs.json",
		},
		Session: SessionConfig{
			Limit: 64,
		},
	}
}
