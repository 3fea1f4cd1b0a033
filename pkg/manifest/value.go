package manifest

// Value is an optional manifest field. The zero Value is unset; a Value
// created with Set is explicit even when it holds the zero value of T.
type Value[T any] struct {
	v   T
	set bool
}

// Set returns an explicit Value holding v.
func Set[T any](v T) Value[T] {
	return Value[T]{v: v, set: true}
}

// Unset returns a Value that defers to the parent chain.
func Unset[T any]() Value[T] {
	return Value[T]{}
}

// Get returns the held value and whether it was set.
func (v Value[T]) Get() (T, bool) {
	return v.v, v.set
}

// IsSet reports whether the value was set explicitly.
func (v Value[T]) IsSet() bool {
	return v.set
}

// Or returns the held value, or def when unset.
func (v Value[T]) Or(def T) T {
	if v.set {
		return v.v
	}
	return def
}
