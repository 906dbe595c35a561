package configbag

import (
	"strings"
)

// Bag is a stack of frozen layers plus a mutable interceptor-state layer.
//
// A Bag is owned by one operation invocation and is not safe for concurrent
// mutation; the frozen layers underneath may be shared freely.
type Bag struct {
	frozen []FrozenLayer
	head   *Layer
}

// New creates a bag from base layers, bottom first.
func New(base ...FrozenLayer) *Bag {
	b := &Bag{head: NewLayer("interceptor_state")}
	for _, l := range base {
		if l.layer != nil {
			b.frozen = append(b.frozen, l)
		}
	}
	return b
}

// Of creates a bag from mutable layers by freezing them.
func Of(layers ...*Layer) *Bag {
	frozen := make([]FrozenLayer, 0, len(layers))
	for _, l := range layers {
		frozen = append(frozen, l.Freeze())
	}
	return New(frozen...)
}

// PushLayer adds a frozen layer above the existing frozen layers and below
// the interceptor-state layer.
func (b *Bag) PushLayer(l FrozenLayer) *Bag {
	if l.layer != nil {
		b.frozen = append(b.frozen, l)
	}
	return b
}

// Interceptor returns the mutable layer on top of the bag.
func (b *Bag) Interceptor() *Layer {
	return b.head
}

// Layers returns the layer names, bottom first.
func (b *Bag) Layers() []string {
	names := make([]string, 0, len(b.frozen)+1)
	for _, f := range b.frozen {
		names = append(names, f.layer.name)
	}
	return append(names, b.head.name)
}

// String dumps every layer for debugging.
func (b *Bag) String() string {
	parts := make([]string, 0, len(b.frozen)+1)
	for _, f := range b.frozen {
		parts = append(parts, f.layer.String())
	}
	parts = append(parts, b.head.String())
	return "ConfigBag{" + strings.Join(parts, ", ") + "}"
}

// each walks layers from top to bottom until fn returns false.
func (b *Bag) each(fn func(*Layer) bool) {
	if !fn(b.head) {
		return
	}
	for i := len(b.frozen) - 1; i >= 0; i-- {
		if !fn(b.frozen[i].layer) {
			return
		}
	}
}

// Load returns the active T: the value in the highest layer that sets or
// unsets T.
func Load[T any](b *Bag) (T, bool) {
	var (
		out   T
		found bool
	)
	k := storeKey[T]()
	b.each(func(l *Layer) bool {
		e, ok := l.get(k)
		if !ok {
			return true
		}
		if !e.unset {
			out, found = cast[T](e.value), true
		}
		return false
	})
	return out, found
}

// LoadOr returns the active T or def when none is set.
func LoadOr[T any](b *Bag, def T) T {
	if v, ok := Load[T](b); ok {
		return v
	}
	return def
}

// Has reports whether an active T exists.
func Has[T any](b *Bag) bool {
	_, ok := Load[T](b)
	return ok
}

// LoadAll returns every appended T in insertion order, bottom layer first.
// A ClearAppended in some layer hides everything appended below it.
func LoadAll[T any](b *Bag) []T {
	k := appendKey[T]()
	var chunks [][]any
	b.each(func(l *Layer) bool {
		e, ok := l.get(k)
		if !ok {
			return true
		}
		chunks = append(chunks, e.items)
		return !e.unset
	})
	var out []T
	for i := len(chunks) - 1; i >= 0; i-- {
		for _, v := range chunks[i] {
			out = append(out, cast[T](v))
		}
	}
	return out
}
