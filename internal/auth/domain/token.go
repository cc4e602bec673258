package domain

import "time"

// TokenClass distinguishes the three JWT classes the service mints. They
// differ in curve, lifetime and what they are allowed to unlock.
type TokenClass string

const (
	// TokenSecurity is a short-lived step token minted between the first
	// login factor and 2FA completion, or by a password-reset link.
	TokenSecurity TokenClass = "security"

	// TokenAccess is the regular API token.
	TokenAccess TokenClass = "access"

	// TokenRefresh redeems for a fresh access/refresh pair. Its nbf keeps
	// it unusable while the sibling access token is still young.
	TokenRefresh TokenClass = "refresh"
)

// AMR values carried on security tokens.
const (
	AMRTwoFactor     = "2fa"
	AMRResetPassword = "reset_password"
)

// UserToken is the persisted half of an issued JWT. A JWT whose jti has no
// matching row is dead no matter what its signature says.
type UserToken struct {
	JTI          string
	UserID       string
	Class        TokenClass
	AudienceHash string // salted application hash, identical across a token pair
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// TokenPair is what a completed login or refresh returns.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"` // always "Bearer"
	ExpiresIn    int64  `json:"expires_in"` // access token lifetime in seconds
}
