package auth0

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/upb/dino-games/backend/internal/observability"
	"github.com/upb/dino-games/backend/services"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	// ProviderTokenLifetime is how long Auth0 Management API tokens stay valid
	ProviderTokenLifetime = 24 * time.Hour

	// DefaultTokenLifetime keeps a one hour margin on the provider's 24h tokens
	DefaultTokenLifetime = 23 * time.Hour
)

const refreshKey = "management-token"

// Credential is the cached Management API access token
type Credential struct {
	AccessToken string
	ExpiresAt   time.Time
}

// CredentialCacheConfig holds configuration for CredentialCache
type CredentialCacheConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Audience     string

	// Lifetime is how long a fetched token is reused, measured from the fetch
	Lifetime time.Duration

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// CredentialCache holds one Management API token obtained with the client
// credentials grant. Concurrent refreshes share a single exchange.
type CredentialCache struct {
	oauth    *clientcredentials.Config
	client   *http.Client
	lifetime time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu     sync.Mutex
	cached *Credential
	group  singleflight.Group
}

// CredentialCacheOption configures a CredentialCache
type CredentialCacheOption func(*CredentialCache)

// WithClock replaces time.Now
func WithClock(now func() time.Time) CredentialCacheOption {
	return func(c *CredentialCache) {
		c.now = now
	}
}

// NewCredentialCache creates an empty cache; the first GetToken fetches
func NewCredentialCache(cfg CredentialCacheConfig, opts ...CredentialCacheOption) (*CredentialCache, error) {
	if cfg.TokenURL == "" {
		return nil, errors.New("token url is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("client id and secret are required")
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultTokenLifetime
	}
	if cfg.Lifetime >= ProviderTokenLifetime {
		return nil, fmt.Errorf("token lifetime %s must be shorter than %s", cfg.Lifetime, ProviderTokenLifetime)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	oauthCfg := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if cfg.Audience != "" {
		oauthCfg.EndpointParams = url.Values{"audience": {cfg.Audience}}
	}

	c := &CredentialCache{
		oauth:    oauthCfg,
		client:   cfg.HTTPClient,
		lifetime: cfg.Lifetime,
		now:      time.Now,
		logger:   cfg.Logger.With(zap.String("component", "management_credential")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetToken returns the cached access token, exchanging client credentials
// when there is none or it has expired. A failed exchange caches nothing.
func (c *CredentialCache) GetToken(ctx context.Context) (string, error) {
	if token, ok := c.current(); ok {
		return token, nil
	}

	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		if token, ok := c.current(); ok {
			return token, nil
		}
		// One caller's cancellation must not fail everyone waiting on this call.
		return c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", services.WrapInternal("authentication error", ctx.Err())
	}
}

// Invalidate drops the cached token so the next GetToken exchanges again
func (c *CredentialCache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

func (c *CredentialCache) current() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached == nil || !c.now().Before(c.cached.ExpiresAt) {
		return "", false
	}
	return c.cached.AccessToken, true
}

func (c *CredentialCache) refresh(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)

	token, err := c.oauth.Token(ctx)
	if err != nil {
		observability.CredentialExchanges.WithLabelValues(observability.ResultFailure).Inc()

		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode == http.StatusUnauthorized {
			c.logger.Warn("management credential rejected", zap.Error(err))
			return "", services.NewDomainError(services.ErrorTypeUnauthorized, services.ErrInvalidCredentials.Message, err)
		}

		c.logger.Error("failed to obtain management credential", zap.Error(err))
		return "", services.WrapInternal("authentication error", err)
	}

	credential := &Credential{
		AccessToken: token.AccessToken,
		ExpiresAt:   c.now().Add(c.lifetime),
	}

	c.mu.Lock()
	c.cached = credential
	c.mu.Unlock()

	observability.CredentialExchanges.WithLabelValues(observability.ResultSuccess).Inc()
	c.logger.Info("management credential refreshed", zap.Time("expires_at", credential.ExpiresAt))

	return credential.AccessToken, nil
}
