package validation

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/sdkcore/errors"
)

func TestValidatorRequired(t *testing.T) {
	v := New()
	v.Required("endpoint", "https://svc.example.test")
	if v.HasErrors() {
		t.Error("expected no errors for valid input")
	}

	v2 := New()
	v2.Required("endpoint", "   ")
	if !v2.HasErrors() {
		t.Error("expected error for whitespace-only required field")
	}
}

func TestValidatorURL(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"", false},
		{"https://svc.example.test", false},
		{"http://127.0.0.1:8080/base", false},
		{"svc.example.test", true},
		{"ftp://svc.example.test", true},
		{"://bad", true},
	}
	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			v := New().URL("endpoint", tc.value)
			if v.HasErrors() != tc.wantErr {
				t.Errorf("URL(%q) errors = %v, wantErr %v", tc.value, v.Errors(), tc.wantErr)
			}
		})
	}
}

func TestValidatorNonNegative(t *testing.T) {
	v := New().
		NonNegative("timeouts.connect", 0).
		NonNegative("timeouts.read", time.Second)
	if v.HasErrors() {
		t.Errorf("unexpected errors: %v", v.Errors())
	}
	v.NonNegative("timeouts.operation", -time.Millisecond)
	if len(v.Errors()) != 1 || v.Errors()[0].Field != "timeouts.operation" {
		t.Errorf("errors = %v", v.Errors())
	}
}

func TestValidatorRangeAndMin(t *testing.T) {
	v := New()
	v.Range("retry.max_attempts", 3, 1, 10)
	v.Min("pool", 0, 0)
	if v.HasErrors() {
		t.Errorf("unexpected errors: %v", v.Errors())
	}
	v.Range("retry.max_attempts", 11, 1, 10)
	v.Min("pool", -1, 0)
	if len(v.Errors()) != 2 {
		t.Errorf("expected 2 errors, got %v", v.Errors())
	}
}

func TestValidatorOneOf(t *testing.T) {
	allowed := []string{"standard", "adaptive"}
	if New().OneOf("mode", "adaptive", allowed).HasErrors() {
		t.Error("expected no error for allowed value")
	}
	if New().OneOf("mode", "", allowed).HasErrors() {
		t.Error("empty value should be skipped")
	}
	v := New().OneOf("mode", "legacy", allowed)
	if !v.HasErrors() || !strings.Contains(v.Errors()[0].Message, "standard, adaptive") {
		t.Errorf("errors = %v", v.Errors())
	}
}

func TestValidatorCustom(t *testing.T) {
	if New().Custom(true, "f", "bad").HasErrors() {
		t.Error("expected no error")
	}
	if !New().Custom(false, "f", "bad").HasErrors() {
		t.Error("expected error")
	}
}

func TestValidatorErr(t *testing.T) {
	if err := New().Err(); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	err := New().Required("endpoint", "").Range("retry.max_attempts", 0, 1, 10).Err()
	if !errors.IsKind(err, errors.KindConfiguration) {
		t.Fatalf("expected CONFIGURATION error, got %v", err)
	}
	if !strings.Contains(err.Error(), "endpoint: is required") {
		t.Errorf("error = %q", err.Error())
	}
	fields, ok := Fields(err)
	if !ok || len(fields) != 2 {
		t.Fatalf("Fields = %v, %v", fields, ok)
	}
}

func TestValidatorMerge(t *testing.T) {
	inner := New().Required("host", "").Err()

	v := New().
		Merge("proxy", inner).
		Merge("tls", stderrors.New("tls.min_version: unknown version")).
		Merge("ignored", nil)

	got := v.Errors()
	if len(got) != 2 {
		t.Fatalf("errors = %v", got)
	}
	if got[0].Field != "proxy.host" {
		t.Errorf("field = %q, want proxy.host", got[0].Field)
	}
	if got[1].Field != "tls" {
		t.Errorf("field = %q, want tls", got[1].Field)
	}
}

type retrySection struct {
	Mode        string `mapstructure:"mode" validate:"omitempty,oneof=standard adaptive off"`
	MaxAttempts int    `mapstructure:"max_attempts" validate:"gte=0,lte=10"`
}

type clientConfig struct {
	Endpoint string       `mapstructure:"endpoint" validate:"required,url"`
	Retry    retrySection `mapstructure:"retry"`
	Region   string       `validate:"required"`
}

func TestStructValid(t *testing.T) {
	cfg := clientConfig{
		Endpoint: "https://svc.example.test",
		Retry:    retrySection{Mode: "standard", MaxAttempts: 3},
		Region:   "eu-west-1",
	}
	if err := Struct(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStructInvalid(t *testing.T) {
	cfg := clientConfig{
		Endpoint: "not a url",
		Retry:    retrySection{Mode: "legacy", MaxAttempts: 11},
	}
	err := Struct(cfg)
	if !errors.IsKind(err, errors.KindConfiguration) {
		t.Fatalf("expected CONFIGURATION error, got %v", err)
	}
	fields, ok := Fields(err)
	if !ok {
		t.Fatal("expected field details")
	}

	got := make(map[string]string, len(fields))
	for _, f := range fields {
		got[f.Field] = f.Message
	}
	want := map[string]string{
		"endpoint":           "must be a valid URL",
		"retry.mode":         "must be one of: standard adaptive off",
		"retry.max_attempts": "must be less than or equal to 10",
		"region":             "is required",
	}
	for field, msg := range want {
		if got[field] != msg {
			t.Errorf("%s: got %q, want %q", field, got[field], msg)
		}
	}
}

func TestStructNonStruct(t *testing.T) {
	err := Struct(42)
	if !errors.IsKind(err, errors.KindConfiguration) {
		t.Fatalf("expected CONFIGURATION error, got %v", err)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"Region":      "region",
		"MaxAttempts": "max_attempts",
		"x":           "x",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
