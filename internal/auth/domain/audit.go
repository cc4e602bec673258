package domain

import "time"

// AuthMethod labels an authentication log entry.
type AuthMethod string

const (
	AuthPassword       AuthMethod = "password"
	AuthEmail          AuthMethod = "email"
	AuthTOTP           AuthMethod = "totp"
	AuthTokenCreate    AuthMethod = "token_create"
	AuthTokenRefresh   AuthMethod = "token_refresh"
	AuthLogout         AuthMethod = "logout"
	AuthForgotPassword AuthMethod = "forgot_password"
)

// AuthLog records every authentication attempt, successful or not.
type AuthLog struct {
	ID        string
	UserID    string
	Method    AuthMethod
	IPAddress string
	Status    bool
	Details   string
	Timestamp time.Time
}

// AuditCategory groups audit log entries.
type AuditCategory string

const (
	AuditSystem AuditCategory = "SYSTEM"
	AuditUser   AuditCategory = "USER"
	AuditClub   AuditCategory = "CLUB"
)

// AuditLog records a state-changing action performed by or on a user.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Category  AuditCategory
	Status    bool
	Details   string
	Timestamp time.Time
}
