// Package errors provides standardized error types and helpers for the bankforge codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a requested object or event was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates an unsupported structure or reference
	ErrUnsupported = errors.New("unsupported")
	// ErrCancelled indicates the operator cancelled the run
	ErrCancelled = errors.New("cancelled")
	// ErrInternal indicates an internal system error
	ErrInternal = errors.New("internal error")
)

// LookupError indicates an event or object could not be resolved in a bank
// index, by literal name or by hash. It aborts the whole run.
type LookupError struct {
	Bank string // Which bank was searched ("source", "destination")
	Name string // Name or stringified id that failed to resolve
	Err  error  // Underlying error, if any
}

func (e *LookupError) Error() string {
	if e.Bank != "" {
		return fmt.Sprintf("could not resolve %s in %s bank", e.Name, e.Bank)
	}
	return fmt.Sprintf("could not resolve %s", e.Name)
}

func (e *LookupError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// StructuralError indicates the source hierarchy has a shape the merge
// engine cannot handle, such as an Action targeting a foreign Event that is
// not part of the staged transfer set. It aborts the whole run.
type StructuralError struct {
	ObjectID string // Stringified id of the offending object
	Message  string // Human-readable error message
	Err      error  // Underlying error, if any
}

func (e *StructuralError) Error() string {
	if e.ObjectID != "" {
		return fmt.Sprintf("unsupported structure at %s: %s", e.ObjectID, e.Message)
	}
	return fmt.Sprintf("unsupported structure: %s", e.Message)
}

func (e *StructuralError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// ConfigError indicates invalid run configuration, such as a Wwise ID that
// does not match the <letter><9 digits> pattern. It is raised before any
// bank is loaded.
type ConfigError struct {
	Field   string // Field or value that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// CancelledError indicates the operator answered "cancel" at a decision
// point. All in-memory mutation from the run must be discarded by the caller.
type CancelledError struct {
	Stage string // Where the cancellation happened (e.g., "collision", "write")
}

func (e *CancelledError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("run cancelled during %s", e.Stage)
	}
	return "run cancelled"
}

func (e *CancelledError) Unwrap() error {
	return ErrCancelled
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "JSON", "XML", "links")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// Is reports whether any error in err's chain matches target.
// Re-exported so callers don't need to import both error packages.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
