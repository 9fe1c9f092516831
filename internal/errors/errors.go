package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/daybook/internal/logger"
)

var (
	// ErrNotFound means the record is absent. Callers materialize a default instead of surfacing it.
	ErrNotFound = errors.New("record not found")
	// ErrPersistence is a failed read or write against the store. It is retryable.
	ErrPersistence = errors.New("persistence failure")
	// ErrDecode means a stored record does not match the expected shape.
	ErrDecode = errors.New("decode failure")
	// ErrInvalidTransition is returned synchronously before any persistence call is attempted.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConfirmationRequired is returned when a past period is mutated without confirmation.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrNavigationRejected is returned when navigation would leave the browsable range.
	ErrNavigationRejected = errors.New("navigation rejected")
)

// Persistence wraps err as a persistence failure of op.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// EnsurePersistence wraps err as a persistence failure of op unless it
// already is one.
func EnsurePersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return Persistence(op, err)
}

// Decode wraps err as a decode failure of op.
func Decode(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDecode, err)
}

// NotFound reports that the record identified by what is absent.
func NotFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

// InvalidTransition rejects op with a human readable reason.
func InvalidTransition(op, reason string) error {
	return fmt.Errorf("%s: %w: %s", op, ErrInvalidTransition, reason)
}

// NavigationRejected rejects a period navigation with a reason.
func NavigationRejected(reason string) error {
	return fmt.Errorf("%w: %s", ErrNavigationRejected, reason)
}

// ConfirmationRequired asks the caller to confirm op before retrying it.
func ConfirmationRequired(op, reason string) error {
	return fmt.Errorf("%s: %w: %s", op, ErrConfirmationRequired, reason)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether the caller may retry the operation that produced err.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
