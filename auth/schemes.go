package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/sdkhttp"
	"github.com/kbukum/sdkcore/typeerased"
)

// API key placement properties.
const (
	PropertyAPIKeyIn   = "in"
	PropertyAPIKeyName = "name"
	DefaultAPIKeyName  = "X-API-Key"
)

type scheme struct {
	id       SchemeID
	resolver IdentityResolver
	signer   Signer
}

func (s *scheme) SchemeID() SchemeID                 { return s.id }
func (s *scheme) IdentityResolver() IdentityResolver { return s.resolver }
func (s *scheme) Signer() Signer                     { return s.signer }

// NewScheme creates a scheme from its parts.
func NewScheme(id SchemeID, resolver IdentityResolver, signer Signer) Scheme {
	return &scheme{id: id, resolver: resolver, signer: signer}
}

// SignerFunc adapts a function to a Signer.
type SignerFunc func(req *sdkhttp.Request, identity Identity, props Properties, bag *configbag.Bag) error

// SignRequest implements Signer.
func (f SignerFunc) SignRequest(req *sdkhttp.Request, identity Identity, props Properties, bag *configbag.Bag) error {
	return f(req, identity, props, bag)
}

// NoAuth returns the anonymous scheme: an empty identity and a signer that
// leaves the request untouched.
func NoAuth() Scheme {
	return NewScheme(NoAuthSchemeID,
		IdentityResolverFunc(func(context.Context, *configbag.Bag) (Identity, error) {
			return Identity{}, nil
		}),
		SignerFunc(func(*sdkhttp.Request, Identity, Properties, *configbag.Bag) error { return nil }),
	)
}

// Bearer returns the bearer scheme. The resolver must produce Token identities.
func Bearer(resolver IdentityResolver) Scheme {
	return NewScheme(BearerSchemeID, resolver, SignerFunc(signBearer))
}

// Basic returns the basic scheme. The resolver must produce Login identities.
func Basic(resolver IdentityResolver) Scheme {
	return NewScheme(BasicSchemeID, resolver, SignerFunc(signBasic))
}

// APIKeyScheme returns the API key scheme. The key is sent in a header
// unless the option properties say "in": "query".
func APIKeyScheme(resolver IdentityResolver) Scheme {
	return NewScheme(APIKeySchemeID, resolver, SignerFunc(signAPIKey))
}

func identityAs[T any](identity Identity) (T, error) {
	v, _, ok := typeerased.Downcast[T](identity.Data)
	if !ok {
		var zero T
		return zero, fmt.Errorf("auth: expected %T identity, got %s", zero, identity.Data.TypeName())
	}
	return v, nil
}

func signBearer(req *sdkhttp.Request, identity Identity, _ Properties, _ *configbag.Bag) error {
	tok, err := identityAs[Token](identity)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	return nil
}

func signBasic(req *sdkhttp.Request, identity Identity, _ Properties, _ *configbag.Bag) error {
	login, err := identityAs[Login](identity)
	if err != nil {
		return err
	}
	hr := http.Request{Header: req.Header}
	hr.SetBasicAuth(login.User, login.Password)
	return nil
}

func signAPIKey(req *sdkhttp.Request, identity Identity, props Properties, _ *configbag.Bag) error {
	key, err := identityAs[APIKey](identity)
	if err != nil {
		return err
	}
	name := props[PropertyAPIKeyName]
	if name == "" {
		name = DefaultAPIKeyName
	}
	if props[PropertyAPIKeyIn] == "query" {
		q := req.URL.Query()
		q.Set(name, key.Key)
		req.URL.RawQuery = q.Encode()
		return nil
	}
	req.Header.Set(name, key.Key)
	return nil
}
