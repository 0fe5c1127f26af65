package auth0

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testKID      = "test-kid-123"
	testDomain   = "tenant.example.com"
	testIssuer   = "https://tenant.example.com/"
	testAudience = "https://api.dino-games.test"
)

// Test helper to generate RSA key pair
func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey, &privateKey.PublicKey
}

// jwksServer serves a JWKS document and counts downloads
type jwksServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newJWKSServer(t *testing.T, publicKey *rsa.PublicKey, kid string) *jwksServer {
	t.Helper()

	jwk, err := jwkset.NewJWKFromKey(publicKey, jwkset.JWKOptions{
		Metadata: jwkset.JWKMetadataOptions{
			ALG: jwkset.AlgRS256,
			KID: kid,
			USE: jwkset.UseSig,
		},
	})
	require.NoError(t, err)

	body, err := json.Marshal(jwkset.JWKSMarshal{Keys: []jwkset.JWKMarshal{jwk.Marshal()}})
	require.NoError(t, err)

	s := &jwksServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestResolver(t *testing.T, server *jwksServer, fetchesPerMinute int) *KeyResolver {
	t.Helper()
	resolver, err := NewKeyResolver(context.Background(), KeyResolverConfig{
		JWKSURL:          server.URL,
		FetchesPerMinute: fetchesPerMinute,
		HTTPTimeout:      2 * time.Second,
		HTTPClient:       server.Client(),
		Logger:           zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(resolver.Close)
	return resolver
}

// Test helper to create a signed RS256 token
func createTestToken(t *testing.T, privateKey *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	tokenString, err := token.SignedString(privateKey)
	require.NoError(t, err)
	return tokenString
}

func validClaims(sub string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":   testIssuer,
		"sub":   sub,
		"aud":   []string{testAudience, testIssuer + "userinfo"},
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"scope": "openid profile email",
	}
}

func TestNewKeyResolver(t *testing.T) {
	t.Run("requires url", func(t *testing.T) {
		_, err := NewKeyResolver(context.Background(), KeyResolverConfig{})
		assert.Error(t, err)
	})

	t.Run("downloads the key set once at startup", func(t *testing.T) {
		_, publicKey := generateTestKeyPair(t)
		server := newJWKSServer(t, publicKey, testKID)

		newTestResolver(t, server, 5)

		assert.Equal(t, int32(1), server.hits.Load())
	})

	t.Run("unreachable endpoint does not fail construction", func(t *testing.T) {
		resolver, err := NewKeyResolver(context.Background(), KeyResolverConfig{
			JWKSURL:     "http://127.0.0.1:1/.well-known/jwks.json",
			HTTPTimeout: 500 * time.Millisecond,
		})
		require.NoError(t, err)
		resolver.Close()
	})
}

func TestKeyResolver_Keyfunc(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	server := newJWKSServer(t, publicKey, testKID)
	resolver := newTestResolver(t, server, 5)

	t.Run("resolves known kid from cache", func(t *testing.T) {
		tokenString := createTestToken(t, privateKey, testKID, validClaims("auth0|abc"))

		parsed, err := jwt.Parse(tokenString, resolver.Keyfunc(context.Background()))
		require.NoError(t, err)
		assert.True(t, parsed.Valid)
		assert.Equal(t, int32(1), server.hits.Load())
	})

	t.Run("unknown kid fails", func(t *testing.T) {
		tokenString := createTestToken(t, privateKey, "rotated-away", validClaims("auth0|abc"))

		_, err := jwt.Parse(tokenString, resolver.Keyfunc(context.Background()))
		assert.Error(t, err)
	})
}

func TestKeyResolver_UnknownKIDRateLimit(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	server := newJWKSServer(t, publicKey, testKID)
	resolver := newTestResolver(t, server, 1)
	require.Equal(t, int32(1), server.hits.Load())

	keyfunc := resolver.Keyfunc(context.Background())

	// The first unknown kid spends the single fetch in the budget.
	_, err := jwt.Parse(createTestToken(t, privateKey, "unknown-1", validClaims("auth0|abc")), keyfunc)
	require.Error(t, err)
	assert.Equal(t, int32(2), server.hits.Load())

	// Further unknown kids within the minute are denied without a download.
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err = jwt.Parse(createTestToken(t, privateKey, "unknown-2", validClaims("auth0|abc")), keyfunc)
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), server.hits.Load())
	assert.Less(t, time.Since(start), 2*time.Second)

	// Known keys keep resolving while the budget is exhausted.
	_, err = jwt.Parse(createTestToken(t, privateKey, testKID, validClaims("auth0|abc")), keyfunc)
	assert.NoError(t, err)
}
