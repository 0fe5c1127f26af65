package auth0

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultFetchesPerMinute = 5
	defaultRefreshInterval  = 24 * time.Hour
	defaultHTTPTimeout      = 10 * time.Second
)

// KeyResolverConfig holds configuration for KeyResolver
type KeyResolverConfig struct {
	JWKSURL string

	// FetchesPerMinute bounds how often an unknown kid may trigger a JWKS
	// download. A lookup waits for the limiter at most HTTPTimeout.
	FetchesPerMinute int

	// RefreshInterval is the background refresh period of the whole key set
	RefreshInterval time.Duration

	HTTPTimeout time.Duration
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// KeyResolver resolves JWT signing keys by kid from a remote JWKS document
type KeyResolver struct {
	kf     keyfunc.Keyfunc
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewKeyResolver performs the first JWKS download and starts the background
// refresh. A failed first download is logged, not returned: the next unknown
// kid retries within the rate limit.
func NewKeyResolver(ctx context.Context, cfg KeyResolverConfig) (*KeyResolver, error) {
	if cfg.JWKSURL == "" {
		return nil, errors.New("jwks url is required")
	}
	if cfg.FetchesPerMinute <= 0 {
		cfg.FetchesPerMinute = defaultFetchesPerMinute
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	logger := cfg.Logger.With(zap.String("component", "jwks"))
	ctx, cancel := context.WithCancel(ctx)

	kf, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{cfg.JWKSURL}, keyfunc.Override{
		Client:      cfg.HTTPClient,
		HTTPTimeout: cfg.HTTPTimeout,
		// The limiter wait shares this deadline with the refresh request itself.
		RateLimitWaitMax: cfg.HTTPTimeout,
		RefreshErrorHandlerFunc: func(u string) func(ctx context.Context, err error) {
			return func(ctx context.Context, err error) {
				logger.Warn("failed to refresh JWKS",
					zap.String("url", u),
					zap.Error(err))
			}
		},
		RefreshInterval:   cfg.RefreshInterval,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.FetchesPerMinute)), cfg.FetchesPerMinute),
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}

	logger.Info("jwks key resolver started",
		zap.String("url", cfg.JWKSURL),
		zap.Int("fetches_per_minute", cfg.FetchesPerMinute))

	return &KeyResolver{kf: kf, cancel: cancel, logger: logger}, nil
}

// Keyfunc returns a jwt.Keyfunc that resolves keys within ctx
func (r *KeyResolver) Keyfunc(ctx context.Context) jwt.Keyfunc {
	return r.kf.KeyfuncCtx(ctx)
}

// Close stops the background refresh
func (r *KeyResolver) Close() {
	r.cancel()
}
