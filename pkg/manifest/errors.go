package manifest

import (
	"errors"
	"strings"
)

// Sentinel errors for manifest construction, registration and resolution.
var (
	// ErrValidation indicates malformed construction input.
	ErrValidation = errors.New("invalid manifest")
	// ErrCycle indicates a parent chain that contains the manifest itself.
	ErrCycle = errors.New("manifest parent cycle")
	// ErrConflict indicates a second manifest registered at an occupied location.
	ErrConflict = errors.New("manifest already registered")
	// ErrUnresolvedField indicates no manifest in the chain supplies a field
	// and the field has no system default.
	ErrUnresolvedField = errors.New("unresolved manifest field")
	// ErrNotFound indicates no manifest is registered at a location.
	ErrNotFound = errors.New("manifest not found")
	// ErrAuthorNotFound indicates an AuthorList has no author with the given tag.
	ErrAuthorNotFound = errors.New("author not found")
	// ErrUnknownField indicates a field name outside the manifest schema.
	ErrUnknownField = errors.New("unknown manifest field")
	// ErrNoVersion indicates a manifest has no versioned changelog entry.
	ErrNoVersion = errors.New("no version in changelog")
)

// ValidationError records a construction problem with location and field
// context. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Location string
	Field    string
	Err      error
}

// Error returns a human-readable string including location and field context.
func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("manifest")
	if e.Location != "" {
		b.WriteString(" " + e.Location)
	}
	if e.Field != "" {
		b.WriteString(": " + e.Field)
	}
	b.WriteString(": " + e.Err.Error())
	return b.String()
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// CycleError reports a parent chain that would contain the manifest being
// constructed. Path lists location keys from the new manifest up to the
// ancestor that repeats it.
type CycleError struct {
	Path []string
}

// Error renders the offending chain.
func (e *CycleError) Error() string {
	return ErrCycle.Error() + ": " + strings.Join(e.Path, " -> ")
}

// Is reports whether target is ErrCycle.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// UnresolvedFieldError reports a field that no manifest in a chain sets.
type UnresolvedFieldError struct {
	Location string
	Field    Field
}

// Error names the field and the manifest whose chain was walked.
func (e *UnresolvedFieldError) Error() string {
	return "manifest " + e.Location + ": " + ErrUnresolvedField.Error() + " " + string(e.Field)
}

// Is reports whether target is ErrUnresolvedField.
func (e *UnresolvedFieldError) Is(target error) bool {
	return target == ErrUnresolvedField
}

func invalid(loc Location, field string, err error) error {
	return &ValidationError{Location: loc.Key(), Field: field, Err: err}
}
