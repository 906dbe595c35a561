package typeerased

// Typed is a compile-time typed view of a Box. While a Typed[T] is alive the
// underlying box is guaranteed to hold a T.
type Typed[T any] struct {
	inner Box
}

// NewTyped boxes v and keeps the static type.
func NewTyped[T any](v T) Typed[T] {
	return Typed[T]{inner: New(v)}
}

// NewTypedCloneable is NewTyped with a clone function.
func NewTypedCloneable[T any](v T, clone func(T) T) Typed[T] {
	return Typed[T]{inner: NewCloneable(v, clone)}
}

// AssumeTyped converts an erased box back into a Typed[T]. When the box does
// not hold a T the original box is returned unchanged with ok=false.
func AssumeTyped[T any](b Box) (Typed[T], Box, bool) {
	if !Is[T](b) {
		return Typed[T]{}, b, false
	}
	return Typed[T]{inner: b}, Box{}, true
}

// Value returns a copy of the typed value.
func (t Typed[T]) Value() T {
	return *t.inner.ptr.(*T)
}

// Ref returns a pointer to the typed value.
func (t Typed[T]) Ref() *T {
	return t.inner.ptr.(*T)
}

// Erase returns the underlying box.
func (t Typed[T]) Erase() Box {
	return t.inner
}

// String implements fmt.Stringer.
func (t Typed[T]) String() string {
	return t.inner.String()
}
