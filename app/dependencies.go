package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/upb/dino-games/backend/auth0"
	"github.com/upb/dino-games/backend/config"
	"github.com/upb/dino-games/backend/handlers"
	"github.com/upb/dino-games/backend/middleware"
	"github.com/upb/dino-games/backend/repositories"
	"github.com/upb/dino-games/backend/repositories/postgres"
	"github.com/upb/dino-games/backend/services/account"
	"github.com/upb/dino-games/backend/services/games"
	"github.com/upb/dino-games/backend/services/ratelimit"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Redis  redis.UniversalClient
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Repositories *repositories.Repositories
	TxManager    repositories.TransactionManager

	// Auth0
	Keys        *auth0.KeyResolver
	Verifier    *auth0.Verifier
	Credentials *auth0.CredentialCache
	Admin       *auth0.AdminClient

	// Services
	Accounts  *account.Service
	Games     *games.Service
	RateLimit *ratelimit.RateLimitService

	// TrustedProxies may name the client in forwarding headers
	TrustedProxies []*net.IPNet

	// HTTP
	AuthMiddleware *middleware.AuthMiddleware
	AuthHandler    *handlers.AuthHandler
	GamesHandler   *handlers.GamesHandler
	HealthHandler  *handlers.HealthHandler

	ownsRedis bool
}

// Option customizes NewDependencies
type Option func(*options)

type options struct {
	db         *sql.DB
	redis      redis.UniversalClient
	httpClient *http.Client
}

// WithDB uses an already opened database instead of connecting from config
func WithDB(db *sql.DB) Option {
	return func(o *options) { o.db = db }
}

// WithRedis uses an existing redis client for throttling
func WithRedis(client redis.UniversalClient) Option {
	return func(o *options) { o.redis = client }
}

// WithHTTPClient sets the client used for every Auth0 call
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Dependencies, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize PostgreSQL
	if err := deps.initDatabase(ctx, cfg, o.db); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initRedis(ctx, cfg, o.redis); err != nil {
		deps.closeQuietly(ctx)
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	if err := deps.initAuth0(ctx, cfg, o.httpClient); err != nil {
		deps.closeQuietly(ctx)
		return nil, fmt.Errorf("failed to initialize auth0: %w", err)
	}

	deps.initServices()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase opens PostgreSQL, applies the schema and builds the repositories
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config, db *sql.DB) error {
	var factory *postgres.RepositoryFactory
	if db != nil {
		factory = postgres.NewRepositoryFactoryWithDB(postgres.Wrap(db, d.Logger), d.Logger)
	} else {
		var err error
		factory, err = postgres.NewRepositoryFactory(cfg, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to create repository factory: %w", err)
		}
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return err
	}

	d.Repositories = factory.NewRepositories()
	d.TxManager = factory.GetTransactionManager()

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRedis connects the throttle store. Throttling is disabled without REDIS_URL.
func (d *Dependencies) initRedis(ctx context.Context, cfg *config.Config, client redis.UniversalClient) error {
	if client == nil {
		if cfg.Redis.URL == "" {
			d.Logger.Warn("REDIS_URL not set, request throttling disabled")
			return nil
		}
		c, err := ratelimit.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		client = c
		d.ownsRedis = true
	}

	trusted, err := middleware.ParseTrustedProxies(cfg.Throttle.TrustedProxies)
	if err != nil {
		if d.ownsRedis {
			_ = client.Close()
		}
		return err
	}

	limiter, err := ratelimit.NewRateLimitService(client, ratelimit.Config{
		Limit:  cfg.Throttle.Limit,
		Window: cfg.Throttle.Window,
	}, d.Logger)
	if err != nil {
		if d.ownsRedis {
			_ = client.Close()
		}
		return err
	}

	d.Redis = client
	d.RateLimit = limiter
	d.TrustedProxies = trusted
	return nil
}

// initAuth0 builds the key resolver, verifier, credential cache and admin client
func (d *Dependencies) initAuth0(ctx context.Context, cfg *config.Config, client *http.Client) error {
	if client == nil {
		client = &http.Client{Timeout: cfg.Auth0.HTTPTimeout}
	}

	keys, err := auth0.NewKeyResolver(ctx, auth0.KeyResolverConfig{
		JWKSURL:          cfg.Auth0.JWKSURL(),
		FetchesPerMinute: cfg.Auth0.JWKSFetchesPerMinute,
		RefreshInterval:  cfg.Auth0.JWKSRefreshInterval,
		HTTPTimeout:      cfg.Auth0.HTTPTimeout,
		HTTPClient:       client,
		Logger:           d.Logger,
	})
	if err != nil {
		return err
	}
	d.Keys = keys

	d.Verifier, err = auth0.NewVerifier(keys, auth0.VerifierConfig{
		Issuer:   cfg.Auth0.Issuer(),
		Audience: cfg.Auth0.Audience,
		Logger:   d.Logger,
	})
	if err != nil {
		return err
	}

	d.Credentials, err = auth0.NewCredentialCache(auth0.CredentialCacheConfig{
		TokenURL:     cfg.Auth0.TokenURL(),
		ClientID:     cfg.Auth0.ClientID,
		ClientSecret: cfg.Auth0.ClientSecret,
		Audience:     cfg.Auth0.ManagementAudience(),
		Lifetime:     cfg.Auth0.TokenLifetime,
		HTTPClient:   client,
		Logger:       d.Logger,
	})
	if err != nil {
		return err
	}

	d.Admin, err = auth0.NewAdminClient(d.Credentials, auth0.AdminClientConfig{
		BaseURL:     cfg.Auth0.APIBaseURL,
		FrontEndURL: cfg.Auth0.FrontEndURL,
		HTTPClient:  client,
		Logger:      d.Logger,
	})
	if err != nil {
		return err
	}

	d.Logger.Info("auth0 initialized",
		zap.String("domain", cfg.Auth0.Domain),
		zap.String("audience", cfg.Auth0.Audience))
	return nil
}

func (d *Dependencies) initServices() {
	d.Accounts = account.NewService(d.Admin, d.Logger)
	d.Games = games.NewService(d.Repositories, d.TxManager, d.Logger)

	d.AuthMiddleware = middleware.NewAuthMiddleware(&verifierAdapter{verifier: d.Verifier}, d.Admin, d.Logger)
	d.AuthHandler = handlers.NewAuthHandler(d.Accounts, d.Logger)
	d.GamesHandler = handlers.NewGamesHandler(d.Games, d.Logger)

	checks := map[string]handlers.HealthChecker{"database": d.DB}
	if d.RateLimit != nil {
		checks["redis"] = d.RateLimit
	}
	d.HealthHandler = handlers.NewHealthHandler(checks, d.Logger)
}

// verifierAdapter adapts auth0.Verifier to middleware.TokenValidator
type verifierAdapter struct {
	verifier *auth0.Verifier
}

func (a *verifierAdapter) ValidateToken(ctx context.Context, token string) (*middleware.Claims, error) {
	subject, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{
		Sub:       subject.Sub,
		Issuer:    subject.Issuer,
		Audience:  subject.Audience,
		ExpiresAt: subject.ExpiresAt,
		Scope:     subject.Scope,
		Raw:       subject.Raw,
	}, nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Keys != nil {
		d.Keys.Close()
	}

	if d.Redis != nil && d.ownsRedis {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}

func (d *Dependencies) closeQuietly(ctx context.Context) {
	if err := d.Close(ctx); err != nil {
		d.Logger.Warn("cleanup after failed initialization", zap.Error(err))
	}
}
