package configbag

import (
	"strings"
	"testing"
)

type retryMode string

type maxAttempts int

type interceptorName string

func TestStoreAndLoad(t *testing.T) {
	l := NewLayer("client")
	Store(l, retryMode("standard"))
	Store(l, maxAttempts(3))

	bag := Of(l)

	mode, ok := Load[retryMode](bag)
	if !ok || mode != "standard" {
		t.Errorf("expected standard, got %q (ok=%v)", mode, ok)
	}
	if n := LoadOr(bag, maxAttempts(1)); n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
	if _, ok := Load[interceptorName](bag); ok {
		t.Error("expected missing key to report not found")
	}
}

func TestLayerShadowing(t *testing.T) {
	client := NewLayer("client")
	Store(client, retryMode("standard"))
	Store(client, maxAttempts(3))

	operation := NewLayer("operation")
	Store(operation, retryMode("adaptive"))
	Unset[maxAttempts](operation)

	bag := New(client.Freeze(), operation.Freeze())

	if mode, _ := Load[retryMode](bag); mode != "adaptive" {
		t.Errorf("expected upper layer to win, got %q", mode)
	}
	if Has[maxAttempts](bag) {
		t.Error("expected Unset to shadow the lower layer")
	}

	Store(bag.Interceptor(), retryMode("never"))
	if mode, _ := Load[retryMode](bag); mode != "never" {
		t.Errorf("expected interceptor layer to win, got %q", mode)
	}
}

func TestStoreReplacesWithinLayer(t *testing.T) {
	l := NewLayer("l")
	Store(l, maxAttempts(1))
	Store(l, maxAttempts(2))
	if l.Len() != 1 {
		t.Errorf("expected one key, got %d", l.Len())
	}
	if v, _ := LoadFromLayer[maxAttempts](l); v != 2 {
		t.Errorf("expected 2, got %d", v)
	}
}

func TestAppendOrder(t *testing.T) {
	client := NewLayer("client")
	Append(client, interceptorName("a"))
	Append(client, interceptorName("b"))

	operation := NewLayer("operation")
	Append(operation, interceptorName("c"))

	bag := New(client.Freeze(), operation.Freeze())
	Append(bag.Interceptor(), interceptorName("d"))

	got := LoadAll[interceptorName](bag)
	want := []interceptorName{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestClearAppendedHidesLowerLayers(t *testing.T) {
	client := NewLayer("client")
	Append(client, interceptorName("a"))

	operation := NewLayer("operation")
	ClearAppended[interceptorName](operation)
	Append(operation, interceptorName("b"))

	got := LoadAll[interceptorName](New(client.Freeze(), operation.Freeze()))
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("expected [b], got %v", got)
	}
}

func TestFreezeIsSnapshot(t *testing.T) {
	l := NewLayer("l")
	Store(l, retryMode("standard"))
	frozen := l.Freeze()
	Store(l, retryMode("adaptive"))

	if mode, _ := Load[retryMode](New(frozen)); mode != "standard" {
		t.Errorf("frozen layer changed after freeze: %q", mode)
	}
}

func TestNilInterfaceValue(t *testing.T) {
	type probe interface{ Dispatch() }
	l := NewLayer("l")
	Store[probe](l, nil)
	v, ok := Load[probe](New(l.Freeze()))
	if !ok || v != nil {
		t.Errorf("expected stored nil interface, got %v (ok=%v)", v, ok)
	}
}

func TestBagString(t *testing.T) {
	l := NewLayer("client")
	Store(l, retryMode("standard"))
	Append(l, interceptorName("a"))
	s := Of(l).String()
	for _, want := range []string{"client", "configbag.retryMode", "interceptorName(x1)", "interceptor_state"} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %q in %s", want, s)
		}
	}
}
