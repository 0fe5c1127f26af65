package auth0

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/dino-games/backend/internal/observability"
	"go.uber.org/zap"
)

// ErrUnauthorized indicates the bearer token failed validation and the request
// must be treated as unauthenticated.
var ErrUnauthorized = errors.New("auth0: unauthorized")

// KeySource supplies the signing-key lookup for a verification
type KeySource interface {
	Keyfunc(ctx context.Context) jwt.Keyfunc
}

// VerifierConfig holds configuration for Verifier
type VerifierConfig struct {
	Issuer   string
	Audience string
	Logger   *zap.Logger
}

// Subject is the authenticated identity extracted from a valid access token
type Subject struct {
	Sub       string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	Scope     string
	Raw       map[string]interface{}
}

// Verifier validates RS256 access tokens issued by the tenant
type Verifier struct {
	keys   KeySource
	parser *jwt.Parser
	logger *zap.Logger
}

// NewVerifier creates a new token verifier
func NewVerifier(keys KeySource, cfg VerifierConfig) (*Verifier, error) {
	if keys == nil {
		return nil, errors.New("key source is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("audience is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Verifier{
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithAudience(cfg.Audience),
			jwt.WithExpirationRequired(),
		),
		logger: cfg.Logger,
	}, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry, and returns
// the token's subject. Every failure wraps ErrUnauthorized.
func (v *Verifier) Verify(ctx context.Context, token string) (*Subject, error) {
	subject, err := v.verify(ctx, token)
	if err != nil {
		observability.TokenVerifications.WithLabelValues(observability.ResultFailure).Inc()
		v.logger.Debug("token verification failed", zap.Error(err))
		return nil, err
	}

	observability.TokenVerifications.WithLabelValues(observability.ResultSuccess).Inc()
	return subject, nil
}

func (v *Verifier) verify(ctx context.Context, token string) (*Subject, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}

	parsed, err := v.parser.Parse(token, v.keys.Keyfunc(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrUnauthorized)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}

	subject := &Subject{
		Sub: sub,
		Raw: claims,
	}
	subject.Issuer, _ = claims.GetIssuer()
	if aud, err := claims.GetAudience(); err == nil {
		subject.Audience = aud
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		subject.ExpiresAt = exp.Time
	}
	subject.Scope, _ = claims["scope"].(string)

	return subject, nil
}
