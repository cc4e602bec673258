package domain

import "time"

// TwoFactorMethod names a second-factor mechanism.
type TwoFactorMethod string

const (
	TwoFactorEmail TwoFactorMethod = "email"
	TwoFactorTOTP  TwoFactorMethod = "totp"
)

// FailsUnconfirmed marks a TOTP enrollment that has not yet proven
// possession of the device. Verification resets it to zero.
const FailsUnconfirmed = -1

// TwoFactor is one registered second factor for a user.
//
// For TOTP the KeyHandle holds the base32 secret sealed under the TOTP
// encryption key, and Counter records the last accepted code's period to
// refuse replays. For email challenges the PublicKey holds the salted hash
// of the emailed code and Counter is unused.
type TwoFactor struct {
	ID     string
	UserID string
	Method TwoFactorMethod

	PublicKey  string
	KeyHandle  string
	Counter    int64
	Fails      int
	DeviceName string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TOTPEnrollment is handed back when a user starts TOTP registration. The
// secret is shown exactly once.
type TOTPEnrollment struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}
