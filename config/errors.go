package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured indicates a named client has no configuration section.
var ErrNotConfigured = errors.New("not configured")

// Error categories.
const (
	CategoryMissing       = "missing"
	CategoryInvalid       = "invalid"
	CategoryNotConfigured = "not_configured"
)

// ConfigError describes one rejected option with enough context to fix it.
// All messages are lowercase following Go conventions.
//
//nolint:revive // ConfigError is intentionally named for clarity in external API usage
type ConfigError struct {
	Category string // "missing", "invalid", "not_configured"
	Field    string // option path, e.g. "baseUrl" or "resilience.backoff"
	Message  string
	Value    string // received value, empty when absent
	Action   string
}

func (e *ConfigError) Error() string {
	var parts []string

	if e.Category != "" {
		parts = append(parts, fmt.Sprintf("config_%s:", e.Category))
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Value != "" {
		parts = append(parts, fmt.Sprintf("(received %q)", e.Value))
	}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}

	return strings.Join(parts, " ")
}

// Is matches ErrNotConfigured for not_configured errors.
func (e *ConfigError) Is(target error) bool {
	return target == ErrNotConfigured && e.Category == CategoryNotConfigured
}

// NewMissingFieldError reports a required option that is absent or blank.
func NewMissingFieldError(field, value string) *ConfigError {
	return &ConfigError{
		Category: CategoryMissing,
		Field:    field,
		Message:  "is required",
		Value:    value,
		Action:   fmt.Sprintf("set %s in the client options", field),
	}
}

// NewInvalidFieldError reports an option whose value is outside the accepted set.
func NewInvalidFieldError(field, message, value string, validOptions []string) *ConfigError {
	err := &ConfigError{
		Category: CategoryInvalid,
		Field:    field,
		Message:  message,
		Value:    value,
	}
	if len(validOptions) > 0 {
		err.Action = fmt.Sprintf("must be one of: %s", strings.Join(validOptions, ", "))
	}
	return err
}

// NewNotConfiguredError reports a client name with no configuration section.
func NewNotConfiguredError(name, path string) *ConfigError {
	return &ConfigError{
		Category: CategoryNotConfigured,
		Field:    name,
		Message:  "has no configuration",
		Action:   fmt.Sprintf("add %s to the config file or set the matching environment variables", path),
	}
}

// IsNotConfigured reports whether err indicates a missing configuration section.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}
