// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"
	"time"

	validation "github.com/jellydator/validation"

	apperrors "github.com/sealbox/sealbox/internal/errors"
)

var (
	// keyNameRegex restricts encryption key names to a safe identifier alphabet.
	keyNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.\-]*$`)

	// pathSegmentRegex restricts a single secret path segment.
	pathSegmentRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.\-]*$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// KeyName validates an encryption key name.
var KeyName = validation.NewStringRuleWithError(
	func(s string) bool {
		return len(s) <= 128 && keyNameRegex.MatchString(s)
	},
	validation.NewError("validation_key_name", "must be a valid key name"),
)

// SecretPath validates a hierarchical secret path such as "db/prod/password".
// Leading and trailing slashes and empty segments are rejected.
var SecretPath = validation.NewStringRuleWithError(
	func(s string) bool {
		if s == "" || len(s) > 512 || strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") {
			return false
		}
		for _, segment := range strings.Split(s, "/") {
			if !pathSegmentRegex.MatchString(segment) {
				return false
			}
		}
		return true
	},
	validation.NewError("validation_secret_path", "must be a valid secret path"),
)

// PositiveDuration validates that a duration is strictly greater than zero.
type PositiveDuration struct{}

// Validate checks that the value is a time.Duration above zero.
func (PositiveDuration) Validate(value interface{}) error {
	d, ok := value.(time.Duration)
	if !ok {
		return validation.NewError("validation_duration_type", "must be a duration")
	}
	if d <= 0 {
		return validation.NewError("validation_duration_positive", "must be greater than zero")
	}
	return nil
}
