package models

import "time"

// UserProfile is the normalized Auth0 user record. Absent strings are empty and
// an absent email_verified is false.
type UserProfile struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	UserID        string `json:"user_id"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// VerificationTicket is the result of requesting a new verification email
type VerificationTicket struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	TicketURL string `json:"ticket_url"`
}

// ConnectionStatus reports whether a Management API credential can be obtained
type ConnectionStatus struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	HasToken  bool      `json:"has_token"`
	Timestamp time.Time `json:"timestamp"`
}
