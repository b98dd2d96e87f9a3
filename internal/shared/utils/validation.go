package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Payload size limits (in bytes)
const (
	MaxManifestSize = 64 * 1024 * 1024 // 64MB - whole project manifest
	MaxMessageSize  = 1 * 1024 * 1024  // 1MB - single bridge message without manifest
	MaxPathLength   = 1024
)

// SafeIDPattern allows alphanumeric, hyphens, underscores
var SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// SizeValidator validates payload size limits
type SizeValidator struct {
	maxSize int
}

// NewSizeValidator creates a new validator with the specified max size
func NewSizeValidator(maxSize int) *SizeValidator {
	return &SizeValidator{maxSize: maxSize}
}

// ManifestValidator returns a validator with the manifest limit
func ManifestValidator() *SizeValidator {
	return NewSizeValidator(MaxManifestSize)
}

// ValidateSize checks if the data size is within limits
func (v *SizeValidator) ValidateSize(data []byte) error {
	if len(data) > v.maxSize {
		return fmt.Errorf("payload size %d bytes exceeds maximum %d bytes", len(data), v.maxSize)
	}
	return nil
}

// ValidateScriptPath checks a caller-supplied script path before it reaches the sandbox
func ValidateScriptPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("script path cannot be empty")
	}
	if len(path) > MaxPathLength {
		return fmt.Errorf("script path exceeds %d characters", MaxPathLength)
	}
	if !utf8.ValidString(path) {
		return fmt.Errorf("script path must be valid UTF-8")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("script path contains NUL byte")
	}
	return nil
}

// ValidateID checks that an identifier is safe to use as a map key and URL segment
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if len(id) > 128 {
		return fmt.Errorf("id exceeds 128 characters")
	}
	if !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("id contains invalid characters")
	}
	return nil
}
