package config

import "strings"

// maskSecret keeps the first and last four characters of a secret.
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) < 8 {
		return "***"
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

// formatValidationError builds a ValidationError that never leaks the raw secret.
func formatValidationError(field, message string, secret string) error {
	msg := field + " " + message
	if masked := maskSecret(secret); masked != "" {
		msg += " (value: " + masked + ")"
	}
	return &ValidationError{Field: field, Message: msg}
}

// ValidationError is a configuration problem tied to one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Masked returns a copy of c that is safe to print.
func (c Config) Masked() Config {
	c.Runner.APIKey = maskSecret(c.Runner.APIKey)
	return c
}
