// Package auth verifies dashboard administrators. Admins present a Firebase ID
// token as a bearer credential; the token is checked against Google's
// published signing keys and, when configured, an email allowlist.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	// FirebaseJWKSURL serves the keys that sign Firebase ID tokens.
	FirebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

	firebaseIssuerPrefix = "https://securetoken.google.com/"
	jwksRefreshInterval  = 15 * time.Minute
	clockSkew            = 30 * time.Second
)

var (
	// ErrUnauthorized means the credential is missing or does not verify.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrForbidden means the credential verified but the caller is not an admin.
	ErrForbidden = errors.New("auth: forbidden")
)

// KeySource returns the key set used to check token signatures.
type KeySource interface {
	Keys(ctx context.Context) (jwk.Set, error)
}

// JWKSCache is a KeySource backed by a remote JWKS endpoint. Keys are fetched
// on first use and refreshed in the background.
type JWKSCache struct {
	url   string
	cache *jwk.Cache
}

// NewJWKSCache registers url for background refresh. The cache lives until ctx
// is cancelled.
func NewJWKSCache(ctx context.Context, url string) (*JWKSCache, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("auth: jwks url must not be empty")
	}
	cache := jwk.NewCache(ctx)
	if err := cache.Register(url, jwk.WithMinRefreshInterval(jwksRefreshInterval)); err != nil {
		return nil, fmt.Errorf("auth: register jwks url: %w", err)
	}
	return &JWKSCache{url: url, cache: cache}, nil
}

func (c *JWKSCache) Keys(ctx context.Context) (jwk.Set, error) {
	set, err := c.cache.Get(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("auth: fetch jwks: %w", err)
	}
	return set, nil
}

// StaticKeys is a fixed KeySource.
type StaticKeys struct {
	Set jwk.Set
}

func (s StaticKeys) Keys(context.Context) (jwk.Set, error) {
	if s.Set == nil {
		return nil, errors.New("auth: no keys configured")
	}
	return s.Set, nil
}

// Admin is the verified identity behind a dashboard request.
type Admin struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
}

type Verifier struct {
	keys     KeySource
	issuer   string
	audience string
	allowed  map[string]struct{}
	clock    jwt.Clock
}

type Option func(*Verifier)

// WithClock overrides the time source used for exp/iat/nbf checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.clock = jwt.ClockFunc(now)
		}
	}
}

// NewFirebaseVerifier builds a Verifier for ID tokens issued to projectID. An
// empty allowedEmails admits every verified user.
func NewFirebaseVerifier(keys KeySource, projectID string, allowedEmails []string, opts ...Option) (*Verifier, error) {
	if keys == nil {
		return nil, errors.New("auth: key source must not be nil")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errors.New("auth: project id must not be empty")
	}
	v := &Verifier{
		keys:     keys,
		issuer:   firebaseIssuerPrefix + projectID,
		audience: projectID,
		allowed:  make(map[string]struct{}, len(allowedEmails)),
		clock:    jwt.ClockFunc(time.Now),
	}
	for _, email := range allowedEmails {
		if email = normalizeEmail(email); email != "" {
			v.allowed[email] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks a raw ID token. It returns ErrUnauthorized when the token is
// missing or invalid and ErrForbidden when the email is not allowlisted.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (Admin, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Admin{}, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	keyset, err := v.keys.Keys(ctx)
	if err != nil {
		return Admin{}, err
	}

	token, err := jwt.Parse(
		[]byte(rawToken),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithClock(v.clock),
		jwt.WithAcceptableSkew(clockSkew),
	)
	if err != nil {
		return Admin{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if token.Subject() == "" {
		return Admin{}, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}

	admin := Admin{Subject: token.Subject()}
	if email, ok := token.Get("email"); ok {
		if s, ok := email.(string); ok {
			admin.Email = s
		}
	}

	if len(v.allowed) > 0 {
		if _, ok := v.allowed[normalizeEmail(admin.Email)]; !ok {
			return Admin{}, ErrForbidden
		}
	}
	return admin, nil
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
