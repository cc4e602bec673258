package domain

import "time"

// VerificationStatus tracks an identity verification through review.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// IdentityVerification holds a submitted identity document. The MRZ line
// is sealed to the verification keypair at rest and only opened for an
// authorized reviewer.
type IdentityVerification struct {
	ID     string
	UserID string

	EncryptedMRZ []byte

	FirstName   string
	LastName    string
	DateOfBirth string

	Status    VerificationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}
