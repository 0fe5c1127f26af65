package auth0

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/dino-games/backend/services"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// tokenServer is a fake /oauth/token endpoint
type tokenServer struct {
	*httptest.Server
	hits   atomic.Int32
	status atomic.Int32
	delay  time.Duration
	block  chan struct{}
	forms  chan map[string]string
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	s := &tokenServer{forms: make(chan map[string]string, 64)}
	s.status.Store(http.StatusOK)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := s.hits.Add(1)
		require.NoError(t, r.ParseForm())
		s.forms <- map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
			"audience":      r.PostForm.Get("audience"),
		}
		if s.block != nil {
			<-s.block
		}
		time.Sleep(s.delay)

		w.Header().Set("Content-Type", "application/json")
		status := int(s.status.Load())
		w.WriteHeader(status)
		if status != http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "access_denied",
				"error_description": "Unauthorized",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": fmt.Sprintf("mgmt-token-%d", n),
			"token_type":   "Bearer",
			"expires_in":   86400,
		})
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestCredentialCache(t *testing.T, server *tokenServer, clock *fakeClock) *CredentialCache {
	t.Helper()
	cache, err := NewCredentialCache(CredentialCacheConfig{
		TokenURL:     server.URL + "/oauth/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Audience:     "https://" + testDomain + "/api/v2/",
		HTTPClient:   server.Client(),
		Logger:       zap.NewNop(),
	}, WithClock(clock.Now))
	require.NoError(t, err)
	return cache
}

func TestNewCredentialCache(t *testing.T) {
	t.Run("requires token url", func(t *testing.T) {
		_, err := NewCredentialCache(CredentialCacheConfig{ClientID: "id", ClientSecret: "secret"})
		assert.Error(t, err)
	})

	t.Run("requires client credentials", func(t *testing.T) {
		_, err := NewCredentialCache(CredentialCacheConfig{TokenURL: "https://x/oauth/token", ClientID: "id"})
		assert.Error(t, err)
	})

	t.Run("defaults lifetime", func(t *testing.T) {
		cache, err := NewCredentialCache(CredentialCacheConfig{TokenURL: "https://x/oauth/token", ClientID: "id", ClientSecret: "secret"})
		require.NoError(t, err)
		assert.Equal(t, DefaultTokenLifetime, cache.lifetime)
	})

	t.Run("rejects lifetime reaching the provider expiry", func(t *testing.T) {
		for _, lifetime := range []time.Duration{24 * time.Hour, 48 * time.Hour} {
			_, err := NewCredentialCache(CredentialCacheConfig{
				TokenURL: "https://x/oauth/token", ClientID: "id", ClientSecret: "secret",
				Lifetime: lifetime,
			})
			assert.Error(t, err, lifetime.String())
		}
	})
}

func TestCredentialCache_GetToken(t *testing.T) {
	ctx := context.Background()

	t.Run("sends client credentials grant", func(t *testing.T) {
		server := newTokenServer(t)
		cache := newTestCredentialCache(t, server, newFakeClock())

		_, err := cache.GetToken(ctx)
		require.NoError(t, err)

		form := <-server.forms
		assert.Equal(t, "client_credentials", form["grant_type"])
		assert.Equal(t, "client-id", form["client_id"])
		assert.Equal(t, "client-secret", form["client_secret"])
		assert.Equal(t, "https://"+testDomain+"/api/v2/", form["audience"])
	})

	t.Run("reuses token within validity", func(t *testing.T) {
		server := newTokenServer(t)
		clock := newFakeClock()
		cache := newTestCredentialCache(t, server, clock)

		first, err := cache.GetToken(ctx)
		require.NoError(t, err)
		clock.Advance(22 * time.Hour)
		second, err := cache.GetToken(ctx)
		require.NoError(t, err)

		assert.Equal(t, "mgmt-token-1", first)
		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), server.hits.Load())
	})

	t.Run("refreshes once after expiry with concurrent callers", func(t *testing.T) {
		server := newTokenServer(t)
		server.delay = 50 * time.Millisecond
		clock := newFakeClock()
		cache := newTestCredentialCache(t, server, clock)

		_, err := cache.GetToken(ctx)
		require.NoError(t, err)
		clock.Advance(23 * time.Hour)

		var wg sync.WaitGroup
		tokens := make([]string, 20)
		errs := make([]error, 20)
		for i := range tokens {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tokens[i], errs[i] = cache.GetToken(ctx)
			}(i)
		}
		wg.Wait()

		for i := range tokens {
			require.NoError(t, errs[i])
			assert.Equal(t, "mgmt-token-2", tokens[i])
		}
		assert.Equal(t, int32(2), server.hits.Load())
	})

	t.Run("rejected credentials are unauthorized and not cached", func(t *testing.T) {
		server := newTokenServer(t)
		server.status.Store(http.StatusUnauthorized)
		cache := newTestCredentialCache(t, server, newFakeClock())

		_, err := cache.GetToken(ctx)
		require.Error(t, err)
		assert.True(t, services.IsUnauthorizedError(err))
		assert.Equal(t, "invalid credentials", services.GetErrorMessage(err, ""))

		server.status.Store(http.StatusOK)
		token, err := cache.GetToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "mgmt-token-2", token)
	})

	t.Run("provider failure is internal", func(t *testing.T) {
		server := newTokenServer(t)
		server.status.Store(http.StatusInternalServerError)
		cache := newTestCredentialCache(t, server, newFakeClock())

		_, err := cache.GetToken(ctx)
		require.Error(t, err)
		assert.True(t, services.IsInternalError(err))
		assert.Equal(t, "authentication error", services.GetErrorMessage(err, ""))
	})

	t.Run("invalidate forces a new exchange", func(t *testing.T) {
		server := newTokenServer(t)
		cache := newTestCredentialCache(t, server, newFakeClock())

		_, err := cache.GetToken(ctx)
		require.NoError(t, err)
		cache.Invalidate()
		token, err := cache.GetToken(ctx)
		require.NoError(t, err)

		assert.Equal(t, "mgmt-token-2", token)
		assert.Equal(t, int32(2), server.hits.Load())
	})

	t.Run("cancelled caller does not abort the shared exchange", func(t *testing.T) {
		server := newTokenServer(t)
		server.block = make(chan struct{})
		cache := newTestCredentialCache(t, server, newFakeClock())

		cancelCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			_, err := cache.GetToken(cancelCtx)
			done <- err
		}()

		<-server.forms
		cancel()
		select {
		case err := <-done:
			assert.Error(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("cancelled caller did not return")
		}

		close(server.block)
		token, err := cache.GetToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "mgmt-token-1", token)
		assert.Equal(t, int32(1), server.hits.Load())
	})
}
