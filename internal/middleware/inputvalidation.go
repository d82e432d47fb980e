// Input validation and sanitization: path traversal detection, SQL/command/
// LDAP injection pattern checks on query parameters, and a bluemonday-based
// HTML-stripped copy of JSON bodies. Defense-in-depth ahead of the validator
// package's structured field checks, not a replacement for them.
package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"github.com/logintel/backend/internal/apperrors"
)

// InputValidator handles comprehensive input validation and sanitization
type InputValidator struct {
	sanitizer *bluemonday.Policy
}

// NewInputValidator creates a new input validator
func NewInputValidator() *InputValidator {
	// Strict policy that strips all HTML
	policy := bluemonday.StrictPolicy()

	return &InputValidator{
		sanitizer: policy,
	}
}

// Middleware provides input validation for all requests
func (v *InputValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Validate path parameters
		if err := v.validatePath(c.Request.URL.Path); err != nil {
			apperrors.WriteError(c, http.StatusBadRequest, apperrors.CodeValidationFailed, err.Error())
			return
		}

		// Validate query parameters
		for key, values := range c.Request.URL.Query() {
			for _, value := range values {
				if err := v.validateInput(key, value); err != nil {
					apperrors.WriteError(c, http.StatusBadRequest, apperrors.CodeValidationFailed, fmt.Sprintf("parameter '%s': %s", key, err.Error()))
					return
				}
			}
		}

		c.Next()
	}
}

// SanitizeJSONMiddleware stores an HTML-stripped copy of a JSON object body
// in the context under "sanitized_json". The request body itself is left
// unchanged, so handlers that bind the body see the original input.
func (v *InputValidator) SanitizeJSONMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only process JSON requests
		if c.ContentType() != "application/json" {
			c.Next()
			return
		}

		// Read and preserve the request body
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Next()
			return
		}

		// Restore the body for handlers to read
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		// Try to parse as JSON map
		var data map[string]interface{}
		if err := json.Unmarshal(bodyBytes, &data); err != nil {
			// If it's not a map, let it pass to the handler which will validate properly
			c.Next()
			return
		}

		// Sanitize the data
		sanitized := v.sanitizeMap(data)

		// Expose the sanitized copy; the body keeps the original bytes
		c.Set("sanitized_json", sanitized)
		c.Next()
	}
}

// validatePath checks for path traversal attempts
func (v *InputValidator) validatePath(path string) error {
	// Check for path traversal patterns
	pathTraversalPatterns := []string{
		"../",
		"..\\",
		"/..",
		"\\..",
		"%2e%2e",
		"%252e%252e",
		"..%2f",
		"..%5c",
	}

	lowerPath := strings.ToLower(path)
	for _, pattern := range pathTraversalPatterns {
		if strings.Contains(lowerPath, pattern) {
			return fmt.Errorf("path traversal attempt detected")
		}
	}

	// Check for null bytes (file system attacks)
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("null byte detected in path")
	}

	return nil
}

// validateInput performs comprehensive input validation
func (v *InputValidator) validateInput(key, value string) error {
	// Check length (prevent buffer overflow attacks)
	if len(value) > 10000 {
		return fmt.Errorf("value too long (max 10000 characters)")
	}

	// Check for null bytes
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("null byte detected")
	}

	// Check for SQL injection patterns
	if err := v.checkSQLInjection(value); err != nil {
		return err
	}

	// Check for command injection patterns
	if err := v.checkCommandInjection(value); err != nil {
		return err
	}

	// Check for LDAP injection patterns
	if err := v.checkLDAPInjection(value); err != nil {
		return err
	}

	return nil
}

// checkSQLInjection detects common SQL injection patterns
func (v *InputValidator) checkSQLInjection(value string) error {
	// Common SQL injection patterns
	sqlPatterns := []string{
		`(?i)(union\s+select)`,
		`(?i)(select\s+.*\s+from)`,
		`(?i)(insert\s+into)`,
		`(?i)(delete\s+from)`,
		`(?i)(drop\s+table)`,
		`(?i)(update\s+.*\s+set)`,
		`(?i)(exec\s*\()`,
		`(?i)(execute\s*\()`,
		`(?i)(script\s*>)`,
		`(?i)(javascript:)`,
		`(?i)(onerror\s*=)`,
		`(?i)(onload\s*=)`,
		`--`,  // SQL comment
		`#\s`, // MySQL comment (only if followed by space)
		`/\*`, // SQL block comment
	}

	for _, pattern := range sqlPatterns {
		matched, err := regexp.MatchString(pattern, value)
		if err != nil {
			continue
		}
		if matched {
			return fmt.Errorf("potential SQL injection detected")
		}
	}

	return nil
}

// checkCommandInjection detects command injection attempts
func (v *InputValidator) checkCommandInjection(value string) error {
	// Command injection patterns
	commandPatterns := []string{
		`[;&|]`, // Command separators
		"`",     // Backticks for command substitution
		`\$\(`,  // Command substitution
	}

	for _, pattern := range commandPatterns {
		matched, err := regexp.MatchString(pattern, value)
		if err != nil {
			continue
		}
		if matched {
			return fmt.Errorf("potential command injection detected")
		}
	}

	return nil
}

// checkLDAPInjection detects LDAP injection attempts
func (v *InputValidator) checkLDAPInjection(value string) error {
	// LDAP injection characters
	ldapChars := []string{"*", "(", ")", "\\", "/", "\x00"}

	for _, char := range ldapChars {
		if strings.Contains(value, char) {
			// Only flag if there are multiple special chars (to avoid false positives)
			specialCount := 0
			for _, c := range ldapChars {
				if strings.Contains(value, c) {
					specialCount++
				}
			}
			if specialCount >= 2 {
				return fmt.Errorf("potential LDAP injection detected")
			}
		}
	}

	return nil
}

// sanitizeMap recursively sanitizes a map
func (v *InputValidator) sanitizeMap(data map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for key, value := range data {
		switch val := value.(type) {
		case string:
			// Sanitize string values using bluemonday
			result[key] = v.sanitizer.Sanitize(val)
		case map[string]interface{}:
			// Recursively sanitize nested maps
			result[key] = v.sanitizeMap(val)
		case []interface{}:
			// Sanitize arrays
			result[key] = v.sanitizeArray(val)
		default:
			// Keep other types as-is (numbers, booleans, etc.)
			result[key] = value
		}
	}

	return result
}

// sanitizeArray recursively sanitizes an array
func (v *InputValidator) sanitizeArray(data []interface{}) []interface{} {
	result := make([]interface{}, len(data))

	for i, value := range data {
		switch val := value.(type) {
		case string:
			result[i] = v.sanitizer.Sanitize(val)
		case map[string]interface{}:
			result[i] = v.sanitizeMap(val)
		case []interface{}:
			result[i] = v.sanitizeArray(val)
		default:
			result[i] = value
		}
	}

	return result
}

// ValidateUsername validates username format
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters")
	}
	if len(username) > 64 {
		return fmt.Errorf("username must not exceed 64 characters")
	}

	// Username must be lowercase alphanumeric with hyphens and underscores
	validUsername := regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*[a-z0-9]$`)
	if !validUsername.MatchString(username) {
		return fmt.Errorf("username must contain only lowercase letters, numbers, hyphens, and underscores")
	}

	return nil
}

// ValidateEmail validates email format
func ValidateEmail(email string) error {
	if len(email) > 254 {
		return fmt.Errorf("email too long")
	}

	// Basic email validation (RFC 5322 simplified)
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}

	return nil
}

// SanitizeString removes HTML and dangerous characters from a string
func (v *InputValidator) SanitizeString(input string) string {
	return v.sanitizer.Sanitize(input)
}
