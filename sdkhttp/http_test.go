package sdkhttp

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/kbukum/sdkcore/sdkbody"
)

func TestNewRequest(t *testing.T) {
	req, err := NewRequest("", "https://example.com/a?b=c", nil)
	if err != nil {
		t.Fatal(err)
	}
	if req.Method != http.MethodGet {
		t.Errorf("expected GET default, got %s", req.Method)
	}
	if n, ok := req.ContentLength(); !ok || n != 0 {
		t.Errorf("expected empty body, got %d (%v)", n, ok)
	}
	if _, err := NewRequest("GET", "://bad", nil); err == nil {
		t.Error("expected parse error")
	}
}

func TestRequestTryClone(t *testing.T) {
	req, _ := NewRequest(http.MethodPut, "https://user:pw@example.com/k", sdkbody.FromString("v"))
	req.Header.Set("X-A", "1")

	clone, ok := req.TryClone()
	if !ok {
		t.Fatal("expected clone")
	}
	clone.Header.Set("X-A", "2")
	clone.URL.Path = "/other"
	if req.Header.Get("X-A") != "1" || req.URL.Path != "/k" {
		t.Error("clone must not alias the original")
	}

	streaming, _ := NewRequest(http.MethodPut, "https://example.com", sdkbody.FromReader(strings.NewReader("x")))
	if _, ok := streaming.TryClone(); ok {
		t.Error("opaque streaming body must not clone")
	}
}

func TestResponseTakeBody(t *testing.T) {
	resp := NewResponse(http.StatusOK, sdkbody.FromString("data"))
	if !resp.IsSuccess() {
		t.Error("200 is success")
	}
	body := resp.TakeBody()
	if _, err := resp.Body.Next(context.Background()); !errors.Is(err, sdkbody.ErrBodyTaken) {
		t.Errorf("expected taken body, got %v", err)
	}
	if data, ok := body.Bytes(); !ok || string(data) != "data" {
		t.Errorf("unexpected taken body %q", data)
	}
}

func TestConnectionFunc(t *testing.T) {
	var conn Connection = ConnectionFunc(func(_ context.Context, req *Request) (*Response, error) {
		return NewResponse(http.StatusTeapot, nil), nil
	})
	req, _ := NewRequest("GET", "http://x", nil)
	resp, err := conn.Call(context.Background(), req)
	if err != nil || resp.StatusCode != http.StatusTeapot {
		t.Fatalf("unexpected %v %v", resp, err)
	}
}
