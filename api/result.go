package api

// Result carries one pipeline stage's hand-off outcome: success passes
// ownership of Value to the next stage, failure (OK == false) is the
// sentinel a stage propagates so callers close their own resources
// (spec §7 "Propagation").
type Result[T any] struct {
	Value T
	OK    bool
}

// Ok wraps a successful hand-off value.
func Ok[T any](v T) Result[T] { return Result[T]{Value: v, OK: true} }

// Fail returns the zero-value sentinel for a failed hand-off.
func Fail[T any]() Result[T] {
	var zero T
	return Result[T]{Value: zero, OK: false}
}
