package domain

import "time"

type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string // argon2 encoded

	IsVerified   bool // email ownership confirmed
	IsAnonymized bool
	IsSystem     bool

	// BackupCodesHash holds the user's 2FA backup codes as a comma-joined
	// list of salted hashes. Empty until codes are generated.
	BackupCodesHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}
