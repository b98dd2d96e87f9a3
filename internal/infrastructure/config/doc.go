// Package config provides 12-factor configuration management for the sandbox
// service.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Sandbox: Project root, env flag, entrypoint, timeout, packages
//   - Manifest: Where project files come from (file, http, dir)
//   - Session: Concurrent session limit
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - SANDBOX_PROJECT_ROOT, SANDBOX_ENV_FLAG, SANDBOX_ENTRYPOINT,
//     SANDBOX_SCRIPT_TIMEOUT, SANDBOX_MAX_CALL_STACK
//   - SANDBOX_PACKAGES, SANDBOX_PACKAGE_INDEX, SANDBOX_PACKAGE_DIR,
//     SANDBOX_PACKAGE_GZIP
//   - MANIFEST_SOURCE, MANIFEST_PATH, MANIFEST_URL, MANIFEST_IGNORE
//   - SESSION_LIMIT
package config
