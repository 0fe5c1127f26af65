package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/upb/dino-games/backend/internal/observability"
	"github.com/upb/dino-games/backend/models"
	"github.com/upb/dino-games/backend/utils"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating JWT tokens
type TokenValidator interface {
	// ValidateToken validates a JWT token and returns claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// ProfileFetcher loads a user's current identity-provider profile
type ProfileFetcher interface {
	GetUserInfo(ctx context.Context, subject string) (*models.UserProfile, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	profiles  ProfileFetcher
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, profiles ProfileFetcher, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		profiles:  profiles,
		logger:    logger,
	}
}

// RequireAuth is a middleware that requires a valid bearer token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := observability.RequestLogger(ctx, m.logger)

		token := extractBearerToken(r)
		if token == "" {
			logger.Warn("missing token")
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			logger.Warn("token validation failed", zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		logger.Debug("authentication successful", zap.String("sub", claims.Sub))

		next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
	})
}

// RequireVerifiedEmail rejects callers whose email address is not verified.
// It must run after RequireAuth. The profile is fetched on every request so a
// verification completed moments ago is honored immediately.
func (m *AuthMiddleware) RequireVerifiedEmail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := observability.RequestLogger(ctx, m.logger)

		claims := GetClaimsFromContext(ctx)
		if claims == nil {
			logger.Error("claims not found in context")
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		profile, err := m.profiles.GetUserInfo(ctx, claims.Sub)
		if err != nil {
			logger.Error("failed to fetch user profile",
				zap.String("sub", claims.Sub),
				zap.Error(err))
			_ = utils.WriteForbidden(w, "Unable to verify email status")
			return
		}

		if !profile.EmailVerified {
			observability.EmailVerificationRejections.Inc()
			logger.Info("email not verified", zap.String("sub", claims.Sub))
			_ = utils.WriteEmailNotVerified(w, profile.Email, profile.UserID)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserProfile(ctx, profile)))
	})
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
