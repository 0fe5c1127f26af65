package auth0

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/upb/dino-games/backend/internal/observability"
	"github.com/upb/dino-games/backend/models"
	"github.com/upb/dino-games/backend/services"
	"go.uber.org/zap"
)

// VerificationTicketTTL is how long an email verification link stays valid
const VerificationTicketTTL = 5 * 24 * time.Hour

// maxErrorBody caps how much of a failed response is read for logging
const maxErrorBody = 4 << 10

// TokenSource supplies Management API bearer tokens
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
	Invalidate()
}

// AdminClientConfig holds configuration for AdminClient
type AdminClientConfig struct {
	// BaseURL is the Management API root, e.g. https://tenant.auth0.com/api/v2
	BaseURL string

	// FrontEndURL is where verification links send the user afterwards
	FrontEndURL string

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// AdminClient calls the Auth0 Management API on behalf of the backend
type AdminClient struct {
	tokens      TokenSource
	baseURL     string
	frontEndURL string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewAdminClient creates a new Management API client
func NewAdminClient(tokens TokenSource, cfg AdminClientConfig) (*AdminClient, error) {
	if tokens == nil {
		return nil, errors.New("token source is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("management api base url is required")
	}
	if cfg.FrontEndURL == "" {
		return nil, errors.New("frontend url is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &AdminClient{
		tokens:      tokens,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		frontEndURL: strings.TrimSuffix(cfg.FrontEndURL, "/"),
		httpClient:  cfg.HTTPClient,
		logger:      cfg.Logger.With(zap.String("component", "management_api")),
	}, nil
}

// userResponse is the subset of the Management API user object we read.
// Missing or null fields decode to their zero value.
type userResponse struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	UserID        string `json:"user_id"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func (u *userResponse) profile() *models.UserProfile {
	return &models.UserProfile{
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Name:          u.Name,
		Picture:       u.Picture,
		UserID:        u.UserID,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

type ticketRequest struct {
	UserID    string `json:"user_id"`
	ResultURL string `json:"result_url"`
	TTLSec    int    `json:"ttl_sec"`
}

type ticketResponse struct {
	Ticket string `json:"ticket"`
}

// apiError is a non-2xx Management API response
type apiError struct {
	Operation string
	Status    int
}

func (e *apiError) Error() string {
	return fmt.Sprintf("management api %s: status %d", e.Operation, e.Status)
}

func statusOf(err error) int {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// internalUnlessDomain keeps domain errors from the token source and wraps
// everything else as internal
func internalUnlessDomain(err error, message string) error {
	if services.GetErrorType(err) != "" {
		return err
	}
	return services.WrapInternal(message, err)
}

// GetUserInfo fetches the user's current profile
func (c *AdminClient) GetUserInfo(ctx context.Context, subject string) (*models.UserProfile, error) {
	var user userResponse
	err := c.do(ctx, "get_user", http.MethodGet, "/users/"+url.PathEscape(subject), nil, &user)
	if err != nil {
		switch statusOf(err) {
		case http.StatusNotFound:
			return nil, services.NewDomainError(services.ErrorTypeNotFound, services.ErrUserNotFound.Message, err)
		case http.StatusUnauthorized:
			return nil, services.NewDomainError(services.ErrorTypeUnauthorized, services.ErrInvalidToken.Message, err)
		}
		return nil, internalUnlessDomain(err, "failed to fetch user")
	}

	return user.profile(), nil
}

// ResendVerificationEmail issues a new email verification ticket. Users that
// are already verified are rejected before any ticket is requested.
func (c *AdminClient) ResendVerificationEmail(ctx context.Context, subject string) (*models.VerificationTicket, error) {
	user, err := c.GetUserInfo(ctx, subject)
	if err != nil {
		return nil, err
	}
	if user.EmailVerified {
		return nil, services.ErrEmailAlreadyVerified
	}

	body := ticketRequest{
		UserID:    subject,
		ResultURL: c.frontEndURL + "/juegos",
		TTLSec:    int(VerificationTicketTTL / time.Second),
	}

	var ticket ticketResponse
	err = c.do(ctx, "create_verification_ticket", http.MethodPost, "/tickets/email-verification", body, &ticket)
	if err != nil {
		switch statusOf(err) {
		case http.StatusBadRequest:
			return nil, services.NewDomainError(services.ErrorTypeValidation, services.ErrInvalidTicketRequest.Message, err)
		case http.StatusForbidden:
			return nil, services.NewDomainError(services.ErrorTypeForbidden, services.ErrInsufficientPermissions.Message, err)
		}
		return nil, internalUnlessDomain(err, "failed to send verification email")
	}

	c.logger.Info("verification email requested", zap.String("user_id", subject))

	return &models.VerificationTicket{
		Success:   true,
		Message:   "Verification email sent",
		TicketURL: ticket.Ticket,
	}, nil
}

// UpdateUser applies a partial update and returns the resulting profile
func (c *AdminClient) UpdateUser(ctx context.Context, subject string, patch map[string]interface{}) (*models.UserProfile, error) {
	var user userResponse
	if err := c.do(ctx, "update_user", http.MethodPatch, "/users/"+url.PathEscape(subject), patch, &user); err != nil {
		return nil, services.WrapInternal("failed to update user", err)
	}
	return user.profile(), nil
}

// TestConnection reports whether a Management API credential can be obtained
func (c *AdminClient) TestConnection(ctx context.Context) (*models.ConnectionStatus, error) {
	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}
	return &models.ConnectionStatus{
		Success:   true,
		Message:   "Auth0 connection succeeded",
		HasToken:  token != "",
		Timestamp: time.Now().UTC(),
	}, nil
}

// do performs one authenticated JSON call. Non-2xx responses become *apiError;
// the provider's body is logged and never returned.
func (c *AdminClient) do(ctx context.Context, operation, method, path string, in, out interface{}) error {
	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	observability.AdminRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.AdminRequests.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("management api %s: %w", operation, err)
	}
	defer resp.Body.Close()

	observability.AdminRequests.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("management api call failed",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw))

		if resp.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate()
		}
		return &apiError{Operation: operation, Status: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}
