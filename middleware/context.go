package middleware

import (
	"context"
	"time"

	"github.com/upb/dino-games/backend/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// ClaimsKey is the context key for JWT claims
	ClaimsKey contextKey = "claims"

	// UserProfileKey is the context key for the verified user's profile
	UserProfileKey contextKey = "user_profile"
)

// Claims is the authenticated subject of a request
type Claims struct {
	Sub       string                 `json:"sub"`
	Issuer    string                 `json:"iss"`
	Audience  []string               `json:"aud"`
	ExpiresAt time.Time              `json:"exp"`
	Scope     string                 `json:"scope"`
	Raw       map[string]interface{} `json:"-"`
}

// GetClaimsFromContext retrieves JWT claims from context
func GetClaimsFromContext(ctx context.Context) *Claims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*Claims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds JWT claims to the context
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetUserProfileFromContext retrieves the profile attached by RequireVerifiedEmail
func GetUserProfileFromContext(ctx context.Context) *models.UserProfile {
	if val := ctx.Value(UserProfileKey); val != nil {
		if profile, ok := val.(*models.UserProfile); ok {
			return profile
		}
	}
	return nil
}

// WithUserProfile adds a user profile to the context
func WithUserProfile(ctx context.Context, profile *models.UserProfile) context.Context {
	return context.WithValue(ctx, UserProfileKey, profile)
}
