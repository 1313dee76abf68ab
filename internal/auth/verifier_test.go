package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

const (
	testProject = "interview-gate-test"
	testKeyID   = "test-key-id"
)

type testKeys struct {
	private *rsa.PrivateKey
	set     jwk.Set
}

func newTestKeys(t *testing.T) testKeys {
	t.Helper()
	private, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	public, err := jwk.FromRaw(&private.PublicKey)
	require.NoError(t, err)
	require.NoError(t, public.Set(jwk.KeyIDKey, testKeyID))
	require.NoError(t, public.Set(jwk.AlgorithmKey, jwa.RS256))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(public))
	return testKeys{private: private, set: set}
}

type tokenSpec struct {
	issuer   string
	audience string
	subject  string
	email    string
	issuedAt time.Time
	expires  time.Time
}

func validSpec(email string) tokenSpec {
	now := time.Now()
	return tokenSpec{
		issuer:   "https://securetoken.google.com/" + testProject,
		audience: testProject,
		subject:  "firebase-uid-1",
		email:    email,
		issuedAt: now,
		expires:  now.Add(time.Hour),
	}
}

func (k testKeys) sign(t *testing.T, spec tokenSpec) string {
	t.Helper()
	token := jwt.New()
	require.NoError(t, token.Set(jwt.IssuerKey, spec.issuer))
	require.NoError(t, token.Set(jwt.AudienceKey, spec.audience))
	if spec.subject != "" {
		require.NoError(t, token.Set(jwt.SubjectKey, spec.subject))
	}
	require.NoError(t, token.Set(jwt.IssuedAtKey, spec.issuedAt))
	require.NoError(t, token.Set(jwt.ExpirationKey, spec.expires))
	if spec.email != "" {
		require.NoError(t, token.Set("email", spec.email))
	}

	key, err := jwk.FromRaw(k.private)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, testKeyID))

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, key))
	require.NoError(t, err)
	return string(signed)
}

func newTestVerifier(t *testing.T, keys testKeys, allowed []string, opts ...Option) *Verifier {
	t.Helper()
	v, err := NewFirebaseVerifier(StaticKeys{Set: keys.set}, testProject, allowed, opts...)
	require.NoError(t, err)
	return v
}

func TestVerify_ValidToken(t *testing.T) {
	keys := newTestKeys(t)
	v := newTestVerifier(t, keys, nil)

	admin, err := v.Verify(context.Background(), keys.sign(t, validSpec("admin@example.com")))
	require.NoError(t, err)
	require.Equal(t, Admin{Subject: "firebase-uid-1", Email: "admin@example.com"}, admin)
}

func TestVerify_AllowlistIsCaseInsensitive(t *testing.T) {
	keys := newTestKeys(t)
	v := newTestVerifier(t, keys, []string{" Admin@Example.com ", ""})

	_, err := v.Verify(context.Background(), keys.sign(t, validSpec("admin@example.com")))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), keys.sign(t, validSpec("intruder@example.com")))
	require.ErrorIs(t, err, ErrForbidden)

	_, err = v.Verify(context.Background(), keys.sign(t, validSpec("")))
	require.ErrorIs(t, err, ErrForbidden)
}

func TestVerify_Rejections(t *testing.T) {
	keys := newTestKeys(t)
	other := newTestKeys(t)
	v := newTestVerifier(t, keys, nil)

	wrongIssuer := validSpec("a@example.com")
	wrongIssuer.issuer = "https://securetoken.google.com/other-project"
	wrongAudience := validSpec("a@example.com")
	wrongAudience.audience = "other-project"
	expired := validSpec("a@example.com")
	expired.issuedAt = time.Now().Add(-2 * time.Hour)
	expired.expires = time.Now().Add(-time.Hour)
	noSubject := validSpec("a@example.com")
	noSubject.subject = ""

	cases := []struct {
		name  string
		token string
	}{
		{"missing", "  "},
		{"garbage", "not.a.jwt"},
		{"wrong_issuer", keys.sign(t, wrongIssuer)},
		{"wrong_audience", keys.sign(t, wrongAudience)},
		{"expired", keys.sign(t, expired)},
		{"no_subject", keys.sign(t, noSubject)},
		{"foreign_signer", other.sign(t, validSpec("a@example.com"))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tc.token)
			require.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestVerify_UsesInjectedClock(t *testing.T) {
	keys := newTestKeys(t)
	token := keys.sign(t, validSpec("a@example.com"))
	v := newTestVerifier(t, keys, nil, WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) }))

	_, err := v.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestNewFirebaseVerifier_Validates(t *testing.T) {
	_, err := NewFirebaseVerifier(nil, testProject, nil)
	require.Error(t, err)

	_, err = NewFirebaseVerifier(StaticKeys{}, " ", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "project id")
}

func TestStaticKeys_Empty(t *testing.T) {
	_, err := StaticKeys{}.Keys(context.Background())
	require.Error(t, err)
}

func TestJWKSCache_FetchesRemoteKeys(t *testing.T) {
	keys := newTestKeys(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jwks.json" {
			http.NotFound(w, r)
			return
		}
		body, err := json.Marshal(keys.set)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache, err := NewJWKSCache(ctx, srv.URL+"/jwks.json")
	require.NoError(t, err)

	v, err := NewFirebaseVerifier(cache, testProject, nil)
	require.NoError(t, err)
	admin, err := v.Verify(ctx, keys.sign(t, validSpec("admin@example.com")))
	require.NoError(t, err)
	require.Equal(t, "admin@example.com", admin.Email)
}

func TestNewJWKSCache_EmptyURL(t *testing.T) {
	_, err := NewJWKSCache(context.Background(), " ")
	require.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	require.Equal(t, "abc.def", BearerToken("Bearer abc.def"))
	require.Equal(t, "abc.def", BearerToken("  bearer   abc.def "))
	require.Empty(t, BearerToken("Basic dXNlcjpwYXNz"))
	require.Empty(t, BearerToken("Bearer"))
	require.Empty(t, BearerToken(""))
}
