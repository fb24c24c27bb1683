package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for common failure scenarios.
var (
	ErrRecordingNotFound  = errors.New("recording not found")
	ErrMalformedRecording = errors.New("malformed recording")
	ErrEmptyRecording     = errors.New("empty recording")
	ErrLoadFailed         = errors.New("load failed")
	ErrNotReady           = errors.New("playback not ready")
	ErrInvalidPosition    = errors.New("invalid seek position")
	ErrSyncFailed         = errors.New("sync failed")
	ErrBookmarkNotFound   = errors.New("bookmark not found")
	ErrNetworkError       = errors.New("network error")
	ErrTimeout            = errors.New("request timeout")
	ErrConfigNotFound     = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// MocapError wraps an error with a user-friendly suggestion.
type MocapError struct {
	Err        error
	Suggestion string
}

func (e *MocapError) Error() string {
	return e.Err.Error()
}

func (e *MocapError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &MocapError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var mocapErr *MocapError
	if errors.As(err, &mocapErr) && mocapErr.Suggestion != "" {
		return mocapErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	// Recording errors
	if errors.Is(err, ErrRecordingNotFound) || strings.Contains(errStr, "no such file") {
		return "Check the path, or run 'mocap play' without arguments to pick from your library"
	}

	if errors.Is(err, ErrMalformedRecording) || errors.Is(err, ErrEmptyRecording) {
		return "Recordings must be CSV with delta_time_ms and <device>_pos_*/_rot_* columns"
	}

	// Playback errors
	if errors.Is(err, ErrNotReady) {
		return "Wait for the recording to finish loading before seeking"
	}

	if errors.Is(err, ErrSyncFailed) {
		return "One of the synchronized recordings failed to load. Run 'mocap info' on each file"
	}

	if errors.Is(err, ErrBookmarkNotFound) {
		return "Run 'mocap bookmarks list' to see saved positions"
	}

	// Network errors
	if errors.Is(err, ErrNetworkError) || errors.Is(err, ErrTimeout) ||
		strings.Contains(errStr, "network") || strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") {
		return "Check your internet connection and try again"
	}

	// Config errors
	if errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrInvalidConfig) ||
		strings.Contains(errStr, "config") {
		return "Run 'mocap config init' to create a default configuration"
	}

	if strings.Contains(errStr, "500") || strings.Contains(errStr, "server error") {
		return "The recording server is having issues. Try again in a moment"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}

// PartialResult represents a result that may have partial failures.
type PartialResult[T any] struct {
	Data   T
	Errors []error
}

// HasErrors returns true if there were any errors.
func (p *PartialResult[T]) HasErrors() bool {
	return len(p.Errors) > 0
}

// AddError adds an error to the partial result.
func (p *PartialResult[T]) AddError(err error) {
	if err != nil {
		p.Errors = append(p.Errors, err)
	}
}

// ErrorSummary returns a summary of all errors.
func (p *PartialResult[T]) ErrorSummary() string {
	if len(p.Errors) == 0 {
		return ""
	}
	if len(p.Errors) == 1 {
		return p.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(p.Errors)))
	for i, err := range p.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}
