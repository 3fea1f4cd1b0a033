package manifest

import "fmt"

// Status is the development status of a code unit.
type Status string

// Development statuses.
const (
	StatusPlanning    Status = "planning"
	StatusDevelopment Status = "development"
	StatusUnstable    Status = "unstable"
	StatusStable      Status = "stable"
	StatusProduction  Status = "production"
	StatusDeprecated  Status = "deprecated"
)

// ValidStatuses is the set of recognized status values.
var ValidStatuses = map[Status]bool{
	StatusPlanning:    true,
	StatusDevelopment: true,
	StatusUnstable:    true,
	StatusStable:      true,
	StatusProduction:  true,
	StatusDeprecated:  true,
}

// Valid reports whether s is a recognized status.
func (s Status) Valid() bool {
	return ValidStatuses[s]
}

// ParseStatus converts a string to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", &ValidationError{Field: string(FieldStatus), Err: fmt.Errorf("unknown status %q", s)}
	}
	return st, nil
}

// ThreadSafety describes how a code unit behaves under concurrent use.
type ThreadSafety string

// Thread-safety levels.
const (
	ThreadUnsafe      ThreadSafety = "unsafe"
	ThreadReentrant   ThreadSafety = "reentrant"
	ThreadSafe        ThreadSafety = "thread-safe"
	ThreadProcessSafe ThreadSafety = "process-safe"
	ThreadActorSafe   ThreadSafety = "actor-safe"
	ThreadImmutable   ThreadSafety = "immutable"
)

var threadSafetyDescriptions = map[ThreadSafety]string{
	ThreadUnsafe:      "No synchronization, may cause race conditions.",
	ThreadReentrant:   "Reentrant for single thread recursion, not parallel-safe.",
	ThreadSafe:        "Internally synchronized for parallel access.",
	ThreadProcessSafe: "Safe for concurrent use from multiple processes.",
	ThreadActorSafe:   "Thread-safe via actor/queue-based serialized access.",
	ThreadImmutable:   "Immutable after creation.",
}

// Valid reports whether t is a recognized thread-safety level.
func (t ThreadSafety) Valid() bool {
	_, ok := threadSafetyDescriptions[t]
	return ok
}

// Description explains the level.
func (t ThreadSafety) Description() string {
	return threadSafetyDescriptions[t]
}

// ParseThreadSafety converts a string to a ThreadSafety.
func ParseThreadSafety(s string) (ThreadSafety, error) {
	t := ThreadSafety(s)
	if !t.Valid() {
		return "", &ValidationError{Field: string(FieldThreadSafety), Err: fmt.Errorf("unknown thread safety %q", s)}
	}
	return t, nil
}

// AccessMode describes how a code unit may be invoked.
type AccessMode string

// Access modes.
const (
	AccessAPI    AccessMode = "api"
	AccessCLI    AccessMode = "cli"
	AccessHybrid AccessMode = "hybrid"
)

// ValidAccessModes is the set of recognized access modes.
var ValidAccessModes = map[AccessMode]bool{
	AccessAPI:    true,
	AccessCLI:    true,
	AccessHybrid: true,
}

// Valid reports whether a is a recognized access mode.
func (a AccessMode) Valid() bool {
	return ValidAccessModes[a]
}

// ParseAccessMode converts a string to an AccessMode.
func ParseAccessMode(s string) (AccessMode, error) {
	a := AccessMode(s)
	if !a.Valid() {
		return "", &ValidationError{Field: string(FieldAccessMode), Err: fmt.Errorf("unknown access mode %q", s)}
	}
	return a, nil
}
