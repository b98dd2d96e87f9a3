package sandbox

import (
	"errors"
	"time"
)

// EntrypointModule names the built-in entrypoint that registers the
// __sandbox service
const EntrypointModule = "sandbox:entrypoint"

var (
	ErrClosed    = errors.New("runtime closed")
	ErrTimeout   = errors.New("script execution timed out")
	ErrNoService = errors.New("entrypoint service not loaded")
	ErrNoValue   = errors.New("expression produced no value")
)

// Config defines sandbox configuration
type Config struct {
	Timeout          time.Duration // Per call; 0 disables the limit
	MaxCallStackSize int           // 0 keeps the engine default
	EnableConsole    bool          // Capture console.log/warn/error/info
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, warn, error, info
	Message string    // Log message
	Time    time.Time // Timestamp
}

// Outcome is what the entrypoint service reports for one script run.
// Script faults land here; only engine faults are returned as errors.
type Outcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Default configuration
func DefaultConfig() Config {
	return Config{
		Timeout:          0,
		MaxCallStackSize: 1024,
		EnableConsole:    true,
	}
}
