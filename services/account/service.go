// Package account exposes the caller's Auth0 account: verification status,
// verification email resend, and profile reads and updates.
package account

import (
	"context"
	"time"

	"github.com/upb/dino-games/backend/models"
	"github.com/upb/dino-games/backend/services"
	"go.uber.org/zap"
)

// IdentityProvider is the subset of the Auth0 admin client the account service needs
type IdentityProvider interface {
	GetUserInfo(ctx context.Context, subject string) (*models.UserProfile, error)
	ResendVerificationEmail(ctx context.Context, subject string) (*models.VerificationTicket, error)
	UpdateUser(ctx context.Context, subject string, patch map[string]interface{}) (*models.UserProfile, error)
	TestConnection(ctx context.Context) (*models.ConnectionStatus, error)
}

// VerificationStatus is the email verification state of a subject
type VerificationStatus struct {
	EmailVerified bool   `json:"email_verified"`
	Email         string `json:"email"`
	UserID        string `json:"user_id"`
}

// ProfileUpdate holds the user-editable profile attributes. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=100"`
	Picture *string `json:"picture" validate:"omitempty,url"`
}

// Service handles account operations for authenticated subjects
type Service struct {
	idp    IdentityProvider
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new account service
func NewService(idp IdentityProvider, logger *zap.Logger) *Service {
	return &Service{
		idp:    idp,
		logger: logger,
		now:    time.Now,
	}
}

// TestConnection checks that a Management API credential can be obtained. A
// failure is reported in the status rather than returned.
func (s *Service) TestConnection(ctx context.Context) *models.ConnectionStatus {
	status, err := s.idp.TestConnection(ctx)
	if err != nil {
		s.logger.Warn("auth0 connection test failed", zap.Error(err))
		return &models.ConnectionStatus{
			Success:   false,
			Message:   "Auth0 connection failed",
			Timestamp: s.now().UTC(),
		}
	}
	return status
}

// ResendVerification issues a new verification email for subject. When
// requestedUserID is set it must name the caller.
func (s *Service) ResendVerification(ctx context.Context, subject, requestedUserID string) (*models.VerificationTicket, error) {
	if requestedUserID != "" && requestedUserID != subject {
		s.logger.Warn("verification resend for another user rejected",
			zap.String("sub", subject),
			zap.String("requested_user_id", requestedUserID))
		return nil, services.ErrSubjectMismatch
	}

	ticket, err := s.idp.ResendVerificationEmail(ctx, subject)
	if err != nil {
		return nil, err
	}

	s.logger.Info("verification email requested", zap.String("sub", subject))
	return ticket, nil
}

// CheckVerification reports whether subject's email address is verified
func (s *Service) CheckVerification(ctx context.Context, subject string) (*VerificationStatus, error) {
	profile, err := s.idp.GetUserInfo(ctx, subject)
	if err != nil {
		return nil, err
	}
	return &VerificationStatus{
		EmailVerified: profile.EmailVerified,
		Email:         profile.Email,
		UserID:        profile.UserID,
	}, nil
}

// Profile returns subject's current profile
func (s *Service) Profile(ctx context.Context, subject string) (*models.UserProfile, error) {
	return s.idp.GetUserInfo(ctx, subject)
}

// UpdateProfile applies the set fields of update to subject's profile. An
// empty update returns the current profile without a write.
func (s *Service) UpdateProfile(ctx context.Context, subject string, update ProfileUpdate) (*models.UserProfile, error) {
	patch := make(map[string]interface{})
	if update.Name != nil {
		patch["name"] = *update.Name
	}
	if update.Picture != nil {
		patch["picture"] = *update.Picture
	}

	if len(patch) == 0 {
		return s.idp.GetUserInfo(ctx, subject)
	}

	profile, err := s.idp.UpdateUser(ctx, subject, patch)
	if err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", zap.String("sub", subject), zap.Int("fields", len(patch)))
	return profile, nil
}
