package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/sdkhttp"
	"github.com/kbukum/sdkcore/typeerased"
)

func newRequest(t *testing.T) *sdkhttp.Request {
	t.Helper()
	req, err := sdkhttp.NewRequest("GET", "https://example.com/path", nil)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func sign(t *testing.T, s Scheme, opt Option) *sdkhttp.Request {
	t.Helper()
	bag := configbag.New()
	id, err := s.IdentityResolver().ResolveIdentity(context.Background(), bag)
	if err != nil {
		t.Fatal(err)
	}
	req := newRequest(t)
	if err := s.Signer().SignRequest(req, id, opt.Properties, bag); err != nil {
		t.Fatal(err)
	}
	return req
}

func TestBearer(t *testing.T) {
	s := Bearer(StaticIdentityResolver(NewIdentity(Token{Value: "my-token"}, time.Time{})))
	req := sign(t, s, NewOption(BearerSchemeID))
	if got := req.Header.Get("Authorization"); got != "Bearer my-token" {
		t.Errorf("got %q, want %q", got, "Bearer my-token")
	}
}

func TestBasic(t *testing.T) {
	s := Basic(StaticIdentityResolver(NewIdentity(Login{User: "user", Password: "pass"}, time.Time{})))
	req := sign(t, s, NewOption(BasicSchemeID))
	if got := req.Header.Get("Authorization"); got != "Basic dXNlcjpwYXNz" {
		t.Errorf("unexpected authorization %q", got)
	}
}

func TestAPIKey(t *testing.T) {
	s := APIKeyScheme(StaticIdentityResolver(NewIdentity(APIKey{Key: "secret"}, time.Time{})))

	tests := []struct {
		name   string
		props  Properties
		header string
		query  string
	}{
		{"default header", nil, DefaultAPIKeyName, ""},
		{"custom header", Properties{PropertyAPIKeyName: "X-Custom-Key"}, "X-Custom-Key", ""},
		{"query", Properties{PropertyAPIKeyIn: "query", PropertyAPIKeyName: "api_key"}, "", "api_key"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := sign(t, s, Option{SchemeID: APIKeySchemeID, Properties: tc.props})
			if tc.header != "" && req.Header.Get(tc.header) != "secret" {
				t.Errorf("expected key in header %s", tc.header)
			}
			if tc.query != "" && req.URL.Query().Get(tc.query) != "secret" {
				t.Errorf("expected key in query %s, got %s", tc.query, req.URL.RawQuery)
			}
		})
	}
}

func TestSigner_WrongIdentityType(t *testing.T) {
	s := Bearer(StaticIdentityResolver(NewIdentity(Login{User: "u"}, time.Time{})))
	id, _ := s.IdentityResolver().ResolveIdentity(context.Background(), configbag.New())
	if err := s.Signer().SignRequest(newRequest(t), id, nil, configbag.New()); err == nil {
		t.Error("expected identity type error")
	}
}

func TestNoAuth(t *testing.T) {
	req := sign(t, NoAuth(), NewOption(NoAuthSchemeID))
	if len(req.Header) != 0 {
		t.Errorf("no auth must not modify the request: %v", req.Header)
	}
}

func TestSelectOption(t *testing.T) {
	bearer := Bearer(StaticIdentityResolver(Identity{}))
	withoutResolver := NewScheme(BasicSchemeID, nil, SignerFunc(signBasic))
	schemes := []Scheme{withoutResolver, bearer, NoAuth()}

	opt, s, err := SelectOption([]Option{NewOption(BasicSchemeID), NewOption(BearerSchemeID), NewOption(NoAuthSchemeID)}, schemes)
	if err != nil {
		t.Fatal(err)
	}
	if opt.SchemeID != BearerSchemeID || s != bearer {
		t.Errorf("expected bearer to be selected, got %s", opt.SchemeID)
	}

	_, _, err = SelectOption([]Option{NewOption("sigv4")}, schemes)
	var noMatch *NoMatchingSchemeError
	if !errors.As(err, &noMatch) {
		t.Fatalf("expected NoMatchingSchemeError, got %v", err)
	}

	_, _, err = SelectOption(nil, schemes)
	if err == nil || err.Error() != "auth: no auth options were resolved for this operation" {
		t.Errorf("unexpected error %v", err)
	}
}

func TestStaticOptionResolver(t *testing.T) {
	r := StaticOptionResolver{NewOption(NoAuthSchemeID)}
	opts, err := r.ResolveAuthOptions(context.Background(), typeerased.Box{})
	if err != nil || len(opts) != 1 || opts[0].SchemeID != NoAuthSchemeID {
		t.Errorf("unexpected %v %v", opts, err)
	}
}

func TestIdentityExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if (Identity{}).Expired(now) {
		t.Error("zero expiration never expires")
	}
	if !(Identity{Expiration: now}).Expired(now) {
		t.Error("expiration at now is expired")
	}
	if (Identity{Expiration: now.Add(time.Second)}).Expired(now) {
		t.Error("future expiration is not expired")
	}
}

func TestCachedIdentityResolver(t *testing.T) {
	clk := clock.NewMock()
	var calls atomic.Int32
	inner := IdentityResolverFunc(func(context.Context, *configbag.Bag) (Identity, error) {
		n := calls.Add(1)
		return NewIdentity(Token{Value: string(rune('a' + n - 1))}, clk.Now().Add(time.Minute)), nil
	})
	c := NewCachedIdentityResolver(inner, WithClock(clk), WithExpiryBuffer(10*time.Second))
	ctx := context.Background()

	first, _ := c.ResolveIdentity(ctx, nil)
	second, _ := c.ResolveIdentity(ctx, nil)
	if calls.Load() != 1 {
		t.Fatalf("expected cached identity, inner called %d times", calls.Load())
	}
	if first.Data.String() != second.Data.String() {
		t.Error("expected same identity")
	}

	clk.Add(51 * time.Second)
	third, _ := c.ResolveIdentity(ctx, nil)
	if calls.Load() != 2 {
		t.Fatalf("expected refresh inside expiry buffer, calls=%d", calls.Load())
	}
	if tok, _, _ := typeerased.Downcast[Token](third.Data); tok.Value != "b" {
		t.Errorf("expected refreshed token, got %q", tok.Value)
	}

	c.Invalidate()
	_, _ = c.ResolveIdentity(ctx, nil)
	if calls.Load() != 3 {
		t.Errorf("expected reload after invalidate, calls=%d", calls.Load())
	}
}

func TestCachedIdentityResolver_ConcurrentLoadsShareOneCall(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	inner := IdentityResolverFunc(func(context.Context, *configbag.Bag) (Identity, error) {
		calls.Add(1)
		<-release
		return NewIdentity(Token{Value: "t"}, time.Time{}), nil
	})
	c := NewCachedIdentityResolver(inner)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.ResolveIdentity(context.Background(), nil); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if calls.Load() != 1 {
		t.Errorf("expected a single inner call, got %d", calls.Load())
	}
}

func TestCachedIdentityResolver_CancelledCallerDoesNotFailOthers(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	inner := IdentityResolverFunc(func(ctx context.Context, _ *configbag.Bag) (Identity, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return Identity{}, err
		}
		return NewIdentity(Token{Value: "t"}, time.Time{}), nil
	})
	c := NewCachedIdentityResolver(inner)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.ResolveIdentity(ctx, nil)
		firstErr <- err
	}()
	<-started

	secondErr := make(chan error, 1)
	go func() {
		_, err := c.ResolveIdentity(context.Background(), nil)
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("expected the cancelled caller to stop waiting, got %v", err)
	}
	close(release)
	if err := <-secondErr; err != nil {
		t.Errorf("expected the other caller to get the identity, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single inner call, got %d", calls.Load())
	}
}

func TestCachedIdentityResolver_ErrorNotCached(t *testing.T) {
	var calls atomic.Int32
	inner := IdentityResolverFunc(func(context.Context, *configbag.Bag) (Identity, error) {
		if calls.Add(1) == 1 {
			return Identity{}, errors.New("imds unavailable")
		}
		return NewIdentity(Token{Value: "ok"}, time.Time{}), nil
	})
	c := NewCachedIdentityResolver(inner)
	if _, err := c.ResolveIdentity(context.Background(), nil); err == nil {
		t.Fatal("expected first load to fail")
	}
	if _, err := c.ResolveIdentity(context.Background(), nil); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestTokenFromJWT(t *testing.T) {
	exp := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)
	raw, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		Subject:   "svc",
		ExpiresAt: gojwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	id, err := TokenFromJWT(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !id.Expiration.Equal(exp) {
		t.Errorf("expected expiration %v, got %v", exp, id.Expiration)
	}
	tok, _, ok := typeerased.Downcast[Token](id.Data)
	if !ok || tok.Value != raw {
		t.Error("expected token identity carrying the raw jwt")
	}

	if _, err := TokenFromJWT("not-a-jwt"); err == nil {
		t.Error("expected parse error")
	}
}
