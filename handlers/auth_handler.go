package handlers

import (
	"context"
	"net/http"

	"github.com/upb/dino-games/backend/internal/observability"
	"github.com/upb/dino-games/backend/middleware"
	"github.com/upb/dino-games/backend/models"
	"github.com/upb/dino-games/backend/services/account"
	"github.com/upb/dino-games/backend/utils"
	"go.uber.org/zap"
)

// AccountService defines the account operations exposed under /api/auth
type AccountService interface {
	TestConnection(ctx context.Context) *models.ConnectionStatus
	ResendVerification(ctx context.Context, subject, requestedUserID string) (*models.VerificationTicket, error)
	CheckVerification(ctx context.Context, subject string) (*account.VerificationStatus, error)
	Profile(ctx context.Context, subject string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, subject string, update account.ProfileUpdate) (*models.UserProfile, error)
}

// ResendVerificationRequest is the body of POST /api/auth/resend-verification
type ResendVerificationRequest struct {
	UserID string `json:"userId" validate:"omitempty,max=255"`
}

// ProfileResponse wraps a user profile
type ProfileResponse struct {
	Success bool                `json:"success"`
	User    *models.UserProfile `json:"user"`
}

// AuthHandler handles the caller's account endpoints
type AuthHandler struct {
	accounts AccountService
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accounts AccountService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// HandleTestConnection handles GET /api/auth/test-connection
func (h *AuthHandler) HandleTestConnection(w http.ResponseWriter, r *http.Request) {
	status := h.accounts.TestConnection(r.Context())
	_ = utils.WriteOK(w, status)
}

// HandleResendVerification handles POST /api/auth/resend-verification
func (h *AuthHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.RequestLogger(ctx, h.logger)

	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req ResendVerificationRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, logger)
		return
	}

	ticket, err := h.accounts.ResendVerification(ctx, claims.Sub, req.UserID)
	if err != nil {
		logger.Warn("resend verification failed", zap.String("sub", claims.Sub), zap.Error(err))
		HandleServiceError(w, err, logger)
		return
	}

	_ = utils.WriteOK(w, ticket)
}

// HandleCheckVerification handles GET /api/auth/check-verification
func (h *AuthHandler) HandleCheckVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	status, err := h.accounts.CheckVerification(ctx, claims.Sub)
	if err != nil {
		HandleServiceError(w, err, observability.RequestLogger(ctx, h.logger))
		return
	}

	_ = utils.WriteOK(w, status)
}

// HandleGetProfile handles GET /api/auth/user-profile
func (h *AuthHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	h.writeProfile(w, r)
}

// HandleRefreshProfile handles POST /api/auth/refresh-profile. Profiles are
// never cached, so this is a fresh read.
func (h *AuthHandler) HandleRefreshProfile(w http.ResponseWriter, r *http.Request) {
	h.writeProfile(w, r)
}

// HandleUpdateProfile handles PATCH /api/auth/user-profile
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.RequestLogger(ctx, h.logger)

	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	var update account.ProfileUpdate
	if err := utils.DecodeJSON(r, &update); err != nil {
		HandleValidationError(w, err, logger)
		return
	}

	profile, err := h.accounts.UpdateProfile(ctx, claims.Sub, update)
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}

	_ = utils.WriteOK(w, ProfileResponse{Success: true, User: profile})
}

func (h *AuthHandler) writeProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	profile, err := h.accounts.Profile(ctx, claims.Sub)
	if err != nil {
		HandleServiceError(w, err, observability.RequestLogger(ctx, h.logger))
		return
	}

	_ = utils.WriteOK(w, ProfileResponse{Success: true, User: profile})
}

func (h *AuthHandler) claims(w http.ResponseWriter, r *http.Request) (*middleware.Claims, bool) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return nil, false
	}
	return claims, true
}
