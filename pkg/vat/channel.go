package vat

// Channel is an optional per-vertex attribute: either Present with one value
// per vertex, or Absent with a default that stands in for every vertex.
type Channel[T any] struct {
	values  []T
	def     T
	present bool
}

// Present wraps per-vertex values.
func Present[T any](values []T) Channel[T] {
	return Channel[T]{values: values, present: true}
}

// Absent returns a channel that yields def for every vertex.
func Absent[T any](def T) Channel[T] {
	return Channel[T]{def: def}
}

// IsPresent reports whether the channel carries real values.
func (c Channel[T]) IsPresent() bool {
	return c.present
}

// At returns the value for vertex i, or the default when the channel is
// absent or shorter than i.
func (c Channel[T]) At(i int) T {
	if c.present && i >= 0 && i < len(c.values) {
		return c.values[i]
	}
	return c.def
}

// Values returns the per-vertex values, or nil when absent.
func (c Channel[T]) Values() []T {
	if !c.present {
		return nil
	}
	return c.values
}

// Len returns the number of stored values.
func (c Channel[T]) Len() int {
	return len(c.values)
}

// resolve picks Present or Absent for one sub-mesh attribute once, so the
// merge loop never re-checks presence per vertex.
func resolve[T any](values []T, vertexCount int, def T) Channel[T] {
	if vertexCount > 0 && len(values) == vertexCount {
		return Present(values)
	}
	return Absent(def)
}
