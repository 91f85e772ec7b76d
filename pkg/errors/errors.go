// Package errors provides structured error handling for conduit.
// It defines the connection and dispatch error taxonomy, exit codes, and
// helpers for adding context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess    = 0 // Successful execution
	ExitGeneral    = 1 // General/unknown error
	ExitInput      = 2 // Invalid input
	ExitConnection = 3 // No usable connection
	ExitNotFound   = 4 // Resource not found
	ExitRejected   = 5 // Transaction rejected or failed
	ExitInternal   = 6 // Invariant violated
)

// ConduitError is the structured error type for conduit.
type ConduitError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *ConduitError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ConduitError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for ConduitError.
func (e *ConduitError) Is(target error) bool {
	var t *ConduitError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &ConduitError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &ConduitError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrNotFound = &ConduitError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	// Connection errors.
	ErrInjectedUnavailable = &ConduitError{
		Code:     "INJECTED_UNAVAILABLE",
		Message:  "injected wallet connection unavailable",
		ExitCode: ExitConnection,
	}

	ErrFallbackConnectFailed = &ConduitError{
		Code:       "NO_CONNECTION",
		Message:    "no connection available: fallback endpoint failed to load",
		Suggestion: "check the bridge endpoint URL and signer, or start a wallet and set CONDUIT_WALLET_RPC",
		ExitCode:   ExitConnection,
	}

	ErrNetworkMismatch = &ConduitError{
		Code:     "WRONG_NETWORK",
		Message:  "injected wallet is connected to the wrong network",
		ExitCode: ExitConnection,
	}

	ErrAdapterClosed = &ConduitError{
		Code:     "ADAPTER_CLOSED",
		Message:  "connection adapter is closed",
		ExitCode: ExitConnection,
	}

	// Dispatch errors.
	ErrNoAccount = &ConduitError{
		Code:     "NO_ACCOUNT",
		Message:  "attempting blockchain transaction with no account",
		ExitCode: ExitConnection,
	}

	ErrNoNetwork = &ConduitError{
		Code:     "NO_NETWORK",
		Message:  "attempting blockchain transaction with no network id",
		ExitCode: ExitConnection,
	}

	ErrSubmissionFailed = &ConduitError{
		Code:     "SUBMISSION_FAILED",
		Message:  "transaction submission failed",
		ExitCode: ExitRejected,
	}

	ErrInvariantViolation = &ConduitError{
		Code:     "INVARIANT_VIOLATION",
		Message:  "no error or response received from blockchain action",
		ExitCode: ExitInternal,
	}

	// Chain-specific errors.
	ErrInvalidAddress = &ConduitError{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	ErrInvalidAmount = &ConduitError{
		Code:     "INVALID_AMOUNT",
		Message:  "invalid amount format",
		ExitCode: ExitInput,
	}

	ErrNetworkError = &ConduitError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitGeneral,
	}

	ErrNoSigner = &ConduitError{
		Code:     "NO_SIGNER",
		Message:  "contract handle has no signer account",
		ExitCode: ExitInput,
	}

	// Contract registry errors.
	ErrUnknownContract = &ConduitError{
		Code:     "UNKNOWN_CONTRACT",
		Message:  "unknown contract kind",
		ExitCode: ExitNotFound,
	}

	ErrUnknownMethod = &ConduitError{
		Code:     "UNKNOWN_METHOD",
		Message:  "method not found in contract ABI",
		ExitCode: ExitInput,
	}

	ErrInvalidArgument = &ConduitError{
		Code:     "INVALID_ARGUMENT",
		Message:  "invalid contract call argument",
		ExitCode: ExitInput,
	}

	// Config-specific errors.
	ErrConfigNotFound = &ConduitError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &ConduitError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}
)

// New creates a new ConduitError with the given code and message.
func New(code, message string) *ConduitError {
	return &ConduitError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var ce *ConduitError
	if errors.As(err, &ce) {
		return &ConduitError{
			Code:       ce.Code,
			Message:    fmt.Sprintf("%s: %s", msg, ce.Message),
			Details:    ce.Details,
			Suggestion: ce.Suggestion,
			Cause:      err,
			ExitCode:   ce.ExitCode,
		}
	}

	return &ConduitError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause returns a copy of the sentinel carrying cause as its underlying
// error. The result still matches the sentinel with errors.Is.
func WithCause(sentinel *ConduitError, cause error) error {
	return &ConduitError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		Suggestion: sentinel.Suggestion,
		Cause:      cause,
		ExitCode:   sentinel.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var ce *ConduitError
	if errors.As(err, &ce) {
		return &ConduitError{
			Code:       ce.Code,
			Message:    ce.Message,
			Details:    details,
			Suggestion: ce.Suggestion,
			Cause:      ce.Cause,
			ExitCode:   ce.ExitCode,
		}
	}

	return &ConduitError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var ce *ConduitError
	if errors.As(err, &ce) {
		return &ConduitError{
			Code:       ce.Code,
			Message:    ce.Message,
			Details:    ce.Details,
			Suggestion: suggestion,
			Cause:      ce.Cause,
			ExitCode:   ce.ExitCode,
		}
	}

	return &ConduitError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ce *ConduitError
	if errors.As(err, &ce) {
		return ce.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var ce *ConduitError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
