// Package configbag provides a layered, type-keyed property store used to
// thread cross-cutting configuration (retry strategy, connection, auth
// schemes, resolvers, serializers) through operation orchestration.
//
// Values are keyed by their static Go type. A Bag is a stack of frozen layers
// with one mutable layer on top; a lookup walks the stack from the top, so a
// value stored in a later layer shadows the same type in an earlier one.
package configbag

import (
	"fmt"
	"reflect"
	"strings"
)

type keyKind int

const (
	kindStore keyKind = iota
	kindAppend
)

type key struct {
	typ  reflect.Type
	kind keyKind
}

type entry struct {
	value any
	unset bool
	items []any
}

// Layer is a named, insertion-ordered set of typed properties.
type Layer struct {
	name  string
	props map[key]*entry
	order []key
}

// NewLayer creates an empty layer.
func NewLayer(name string) *Layer {
	return &Layer{
		name:  name,
		props: make(map[key]*entry),
	}
}

// Name returns the layer name.
func (l *Layer) Name() string {
	return l.name
}

// Len returns the number of distinct keys set in the layer.
func (l *Layer) Len() int {
	return len(l.order)
}

func (l *Layer) put(k key, e *entry) {
	if _, exists := l.props[k]; !exists {
		l.order = append(l.order, k)
	}
	l.props[k] = e
}

func (l *Layer) get(k key) (*entry, bool) {
	e, ok := l.props[k]
	return e, ok
}

// Freeze returns a read-only snapshot of the layer.
func (l *Layer) Freeze() FrozenLayer {
	cp := NewLayer(l.name)
	for _, k := range l.order {
		e := l.props[k]
		cp.put(k, &entry{
			value: e.value,
			unset: e.unset,
			items: append([]any(nil), e.items...),
		})
	}
	return FrozenLayer{layer: cp}
}

// String lists the keys of the layer in insertion order.
func (l *Layer) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Layer(%s)[", l.name)
	for i, k := range l.order {
		if i > 0 {
			sb.WriteString(", ")
		}
		e := l.props[k]
		switch {
		case k.kind == kindAppend:
			fmt.Fprintf(&sb, "%s(x%d)", k.typ, len(e.items))
		case e.unset:
			fmt.Fprintf(&sb, "%s(unset)", k.typ)
		default:
			sb.WriteString(k.typ.String())
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// FrozenLayer is an immutable layer that can be shared between bags.
type FrozenLayer struct {
	layer *Layer
}

// Name returns the layer name.
func (f FrozenLayer) Name() string {
	if f.layer == nil {
		return ""
	}
	return f.layer.name
}

// String implements fmt.Stringer.
func (f FrozenLayer) String() string {
	if f.layer == nil {
		return "Layer(<nil>)"
	}
	return f.layer.String()
}

func storeKey[T any]() key {
	return key{typ: reflect.TypeFor[T](), kind: kindStore}
}

func appendKey[T any]() key {
	return key{typ: reflect.TypeFor[T](), kind: kindAppend}
}

// Store sets the single active value of type T in the layer, replacing any
// previous value of that type in the same layer.
func Store[T any](l *Layer, v T) {
	l.put(storeKey[T](), &entry{value: v})
}

// Unset explicitly clears T in the layer, shadowing values from lower layers.
func Unset[T any](l *Layer) {
	l.put(storeKey[T](), &entry{unset: true})
}

// Append adds v to the ordered list of T values in the layer.
func Append[T any](l *Layer, v T) {
	k := appendKey[T]()
	if e, ok := l.props[k]; ok {
		e.items = append(e.items, v)
		return
	}
	l.put(k, &entry{items: []any{v}})
}

// ClearAppended drops every appended T in the layer and shadows lower layers.
func ClearAppended[T any](l *Layer) {
	l.put(appendKey[T](), &entry{unset: true})
}

// LoadFromLayer reads T from a single layer.
func LoadFromLayer[T any](l *Layer) (T, bool) {
	var zero T
	e, ok := l.get(storeKey[T]())
	if !ok || e.unset {
		return zero, false
	}
	return cast[T](e.value), true
}

// cast tolerates nil values stored under interface types.
func cast[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}
