package errs

import (
	"errors"
	"fmt"
)

// #region sentinels

// ErrInvalidInput marks caller mistakes: empty symbols, dimension mismatches,
// non-positive counts passed at call time.
var ErrInvalidInput = errors.New("invalid input")

// ErrConfiguration marks construction-time mistakes that would produce a
// degenerate component (zero hyperplanes, non-positive growth threshold).
var ErrConfiguration = errors.New("configuration error")

// #endregion sentinels

// #region constructors

// Invalid wraps ErrInvalidInput with a formatted detail message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Configuration wraps ErrConfiguration with a formatted detail message.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// #endregion constructors
