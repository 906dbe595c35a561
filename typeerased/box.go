// Package typeerased provides containers that hold a value of any concrete
// type behind a uniform handle while remembering that type, so the value can
// be safely recovered later.
//
// The orchestrator moves operation inputs and outputs around as Box values;
// generated operation code recovers them with Downcast or Typed.
package typeerased

import (
	"fmt"
	"reflect"
)

// Box owns one value of unknown static type.
//
// The zero Box is empty. A Box is a small value type; copying it copies the
// handle, not the payload.
type Box struct {
	ptr   any // always a *T for the boxed T
	typ   reflect.Type
	debug func(any) string
	clone func(any) any
}

// New boxes v. The resulting box is not cloneable.
func New[T any](v T) Box {
	p := new(T)
	*p = v
	return Box{
		ptr:   p,
		typ:   reflect.TypeOf(p).Elem(),
		debug: debugFor[T](),
	}
}

// NewCloneable boxes v together with a clone function used by TryClone.
func NewCloneable[T any](v T, clone func(T) T) Box {
	b := New(v)
	if clone != nil {
		b.clone = func(p any) any {
			c := clone(*p.(*T))
			return &c
		}
	}
	return b
}

func debugFor[T any]() func(any) string {
	return func(p any) string {
		return fmt.Sprintf("%+v", *p.(*T))
	}
}

// IsEmpty reports whether the box holds nothing.
func (b Box) IsEmpty() bool {
	return b.ptr == nil
}

// TypeName returns the name of the boxed type, or "<empty>".
func (b Box) TypeName() string {
	if b.typ == nil {
		return "<empty>"
	}
	return b.typ.String()
}

// Type returns the reflect type of the boxed value, nil when empty.
func (b Box) Type() reflect.Type {
	return b.typ
}

// String renders the boxed value with its type for debugging.
func (b Box) String() string {
	if b.IsEmpty() {
		return "TypeErasedBox[<empty>]"
	}
	return fmt.Sprintf("TypeErasedBox[%s]:%s", b.typ, b.debug(b.ptr))
}

// IsCloneable reports whether TryClone can succeed.
func (b Box) IsCloneable() bool {
	return b.clone != nil
}

// TryClone returns a deep copy of the box when a clone function was supplied
// at construction.
func (b Box) TryClone() (Box, bool) {
	if b.clone == nil {
		return Box{}, false
	}
	return Box{
		ptr:   b.clone(b.ptr),
		typ:   b.typ,
		debug: b.debug,
		clone: b.clone,
	}, true
}

// Is reports whether the box was constructed from a T.
func Is[T any](b Box) bool {
	_, ok := b.ptr.(*T)
	return ok
}

// Downcast recovers the boxed value as a T.
//
// On success it returns the value, an empty box and true. On mismatch it
// returns the zero T, the original box unchanged and false, so the caller can
// try the next candidate type without losing the value.
func Downcast[T any](b Box) (T, Box, bool) {
	if p, ok := b.ptr.(*T); ok {
		return *p, Box{}, true
	}
	var zero T
	return zero, b, false
}

// DowncastRef returns a pointer to the boxed value for in-place access.
func DowncastRef[T any](b Box) (*T, bool) {
	p, ok := b.ptr.(*T)
	return p, ok
}

// MustDowncast is Downcast for callers that already know the type. It panics
// with the actual type name on mismatch.
func MustDowncast[T any](b Box) T {
	v, _, ok := Downcast[T](b)
	if !ok {
		var zero T
		panic(fmt.Sprintf("typeerased: box holds %s, not %T", b.TypeName(), zero))
	}
	return v
}
