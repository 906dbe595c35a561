// Package auth defines the contracts used by the orchestrator to pick an
// auth scheme, resolve an identity for it and sign the request, along with
// a handful of HTTP schemes (bearer, basic, API key, anonymous).
//
// The orchestrator asks the OptionResolver for candidate options in
// preference order and uses the first one whose scheme is registered with
// both an identity resolver and a signer.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/sdkhttp"
	"github.com/kbukum/sdkcore/typeerased"
)

// SchemeID identifies an auth scheme.
type SchemeID string

// Built-in scheme IDs.
const (
	NoAuthSchemeID SchemeID = "no_auth"
	BearerSchemeID SchemeID = "http-bearer-auth"
	BasicSchemeID  SchemeID = "http-basic-auth"
	APIKeySchemeID SchemeID = "http-api-key-auth"
)

// Properties are scheme-specific signing properties attached to an option.
type Properties map[string]string

// Option is a candidate auth scheme with its signing properties.
type Option struct {
	SchemeID   SchemeID
	Properties Properties
}

// NewOption creates an option without properties.
func NewOption(id SchemeID) Option {
	return Option{SchemeID: id}
}

// OptionResolver returns the auth options for an operation, most preferred
// first. params holds operation-specific resolver input.
type OptionResolver interface {
	ResolveAuthOptions(ctx context.Context, params typeerased.Box) ([]Option, error)
}

// StaticOptionResolver always returns the same options.
type StaticOptionResolver []Option

// ResolveAuthOptions implements OptionResolver.
func (s StaticOptionResolver) ResolveAuthOptions(context.Context, typeerased.Box) ([]Option, error) {
	return s, nil
}

// Identity is resolved credential material used for signing.
type Identity struct {
	// Data holds the concrete credential (Token, Login, APIKey, ...).
	Data typeerased.Box
	// Expiration is when the identity stops being valid; zero means never.
	Expiration time.Time
}

// NewIdentity boxes data into an identity.
func NewIdentity[T any](data T, expiration time.Time) Identity {
	return Identity{Data: typeerased.New(data), Expiration: expiration}
}

// Expired reports whether the identity is expired at now.
func (i Identity) Expired(now time.Time) bool {
	return !i.Expiration.IsZero() && !now.Before(i.Expiration)
}

// Token is a bearer token identity.
type Token struct {
	Value string
}

// Login is a username/password identity.
type Login struct {
	User     string
	Password string
}

// APIKey is an API key identity.
type APIKey struct {
	Key string
}

// IdentityResolver loads an identity. It may block on network I/O.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, bag *configbag.Bag) (Identity, error)
}

// IdentityResolverFunc adapts a function to an IdentityResolver.
type IdentityResolverFunc func(ctx context.Context, bag *configbag.Bag) (Identity, error)

// ResolveIdentity implements IdentityResolver.
func (f IdentityResolverFunc) ResolveIdentity(ctx context.Context, bag *configbag.Bag) (Identity, error) {
	return f(ctx, bag)
}

// StaticIdentityResolver always returns the same identity.
func StaticIdentityResolver(id Identity) IdentityResolver {
	return IdentityResolverFunc(func(context.Context, *configbag.Bag) (Identity, error) {
		return id, nil
	})
}

// Signer signs a request in place with a resolved identity.
type Signer interface {
	SignRequest(req *sdkhttp.Request, identity Identity, props Properties, bag *configbag.Bag) error
}

// Scheme ties an auth scheme ID to its identity resolver and signer. Either
// may be nil, in which case the scheme is not usable.
type Scheme interface {
	SchemeID() SchemeID
	IdentityResolver() IdentityResolver
	Signer() Signer
}

// NoMatchingSchemeError is returned when none of the resolved options has a
// usable scheme.
type NoMatchingSchemeError struct {
	Options []Option
}

func (e *NoMatchingSchemeError) Error() string {
	if len(e.Options) == 0 {
		return "auth: no auth options were resolved for this operation"
	}
	ids := make([]string, len(e.Options))
	for i, o := range e.Options {
		ids[i] = string(o.SchemeID)
	}
	return fmt.Sprintf("auth: none of the resolved auth options [%s] has a registered scheme with an identity resolver and signer",
		strings.Join(ids, ", "))
}

// SelectOption returns the first option whose scheme is available with both
// an identity resolver and a signer.
func SelectOption(options []Option, schemes []Scheme) (Option, Scheme, error) {
	for _, opt := range options {
		for _, s := range schemes {
			if s == nil || s.SchemeID() != opt.SchemeID {
				continue
			}
			if s.IdentityResolver() != nil && s.Signer() != nil {
				return opt, s, nil
			}
		}
	}
	return Option{}, nil, &NoMatchingSchemeError{Options: options}
}
