package store

import (
	"context"
	"errors"
	"time"

	"github.com/activitymaster/clubauth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable.
type Store interface {
	Users() Users
	Tokens() Tokens
	TwoFactor() TwoFactor
	BackupCodes() BackupCodes
	Clubs() Clubs
	Roles() Roles
	Verifications() Verifications
	Audit() Audit

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction. If fn returns an
	// error the transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during the first login factor.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via UUID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// MarkEmailVerified flips is_verified once the signed link is redeemed.
	MarkEmailVerified(ctx context.Context, userID string) error

	// SetSystemFlag grants or revokes operator standing. There is no HTTP
	// surface for this; it is an operational action.
	SetSystemFlag(ctx context.Context, userID string, isSystem bool) error

	// UpdateBackupCodesHash replaces the stored backup code hash list.
	UpdateBackupCodesHash(ctx context.Context, userID string, hashes string) error

	// AnonymizeUser blanks personal fields and sets is_anonymized.
	AnonymizeUser(ctx context.Context, userID string) error

	// DeleteUser cascades to tokens, 2FA rows and role assignments.
	DeleteUser(ctx context.Context, userID string) error
}

type Tokens interface {
	// CreateToken persists the row backing a freshly minted JWT. Rows are
	// written before the JWT is signed.
	CreateToken(ctx context.Context, t domain.UserToken) error

	// GetToken fetches a token row by jti.
	GetToken(ctx context.Context, jti string) (domain.UserToken, error)

	// DeleteToken revokes one token by jti.
	DeleteToken(ctx context.Context, jti string) error

	// DeleteTokensForAudience revokes every token a user holds under one
	// audience hash (an access/refresh pair shares the hash).
	DeleteTokensForAudience(ctx context.Context, userID, audienceHash string) error

	// DeleteAllUserTokens revokes everything a user holds, all classes.
	DeleteAllUserTokens(ctx context.Context, userID string) error

	// DeleteExpiredTokens is housekeeping.
	DeleteExpiredTokens(ctx context.Context) error
}

type TwoFactor interface {
	// CreateTwoFactor inserts a new second-factor row.
	CreateTwoFactor(ctx context.Context, tf domain.TwoFactor) error

	// GetTwoFactor fetches a user's row for one method.
	GetTwoFactor(ctx context.Context, userID string, method domain.TwoFactorMethod) (domain.TwoFactor, error)

	// ListUserMethods returns the methods a user has registered.
	ListUserMethods(ctx context.Context, userID string) ([]domain.TwoFactor, error)

	// UpdateCounter records the last accepted TOTP period.
	UpdateCounter(ctx context.Context, id string, counter int64) error

	// UpdateFails sets the failure count and bumps updated_at.
	UpdateFails(ctx context.Context, id string, fails int) error

	// UpdateKeyHandles rewrites every row's key_handle in bulk, used when
	// the TOTP encryption key rotates. Must run inside a transaction.
	UpdateKeyHandle(ctx context.Context, id string, keyHandle string) error

	// ListAllTOTP returns every TOTP row in the system (key rotation).
	ListAllTOTP(ctx context.Context) ([]domain.TwoFactor, error)

	// DeleteTwoFactor removes one row.
	DeleteTwoFactor(ctx context.Context, id string) error

	// DeleteStaleEmailCodes removes email challenge rows older than the
	// cutoff (housekeeping).
	DeleteStaleEmailCodes(ctx context.Context, cutoff time.Time) error
}

type BackupCodes interface {
	// ReplaceBackupCodes overwrites a user's backup code set.
	ReplaceBackupCodes(ctx context.Context, userID string, codeHashes []string) error

	// ListBackupCodes returns the unused code hashes for a user.
	ListBackupCodes(ctx context.Context, userID string) ([]string, error)

	// ConsumeBackupCode removes one code hash after use.
	ConsumeBackupCode(ctx context.Context, userID string, codeHash string) error
}

type Clubs interface {
	GetClubByID(ctx context.Context, id string) (domain.Club, error)
	CreateClub(ctx context.Context, c domain.Club) error
	DeleteClub(ctx context.Context, id string) error
}

type Roles interface {
	// GetRoleByID fetches a role by its ID.
	GetRoleByID(ctx context.Context, id int64) (domain.ClubRole, error)

	// GetRoleByName fetches a club's role by name.
	GetRoleByName(ctx context.Context, clubID, name string) (domain.ClubRole, error)

	// ListRoles returns a club's roles ordered by level.
	ListRoles(ctx context.Context, clubID string) ([]domain.ClubRole, error)

	// CreateRole inserts a role and its permission set atomically. The
	// permission names must already be expanded (no wildcards).
	CreateRole(ctx context.Context, r domain.ClubRole, permissions []string) (int64, error)

	// UpdateRolePermissions replaces a role's permission set.
	UpdateRolePermissions(ctx context.Context, roleID int64, permissions []string) error

	// DeleteRole removes a role; fails while assignments reference it.
	DeleteRole(ctx context.Context, roleID int64) error

	// ListRolePermissions returns the permission names a role grants.
	ListRolePermissions(ctx context.Context, roleID int64) ([]string, error)

	// GetPermissionByName resolves a catalog entry.
	GetPermissionByName(ctx context.Context, name string) (domain.Permission, error)

	// ListPermissions returns the whole catalog.
	ListPermissions(ctx context.Context) ([]domain.Permission, error)

	// SeedPermissions inserts missing catalog entries.
	SeedPermissions(ctx context.Context, names []string) error

	// AssignUserClubRole binds a user to a role within a club.
	AssignUserClubRole(ctx context.Context, a domain.UserClubRole) error

	// RemoveUserClubRole unbinds a user from a role within a club.
	RemoveUserClubRole(ctx context.Context, userID, clubID string, roleID int64) error

	// GetUserClubRole returns the user's role in one club.
	GetUserClubRole(ctx context.Context, userID, clubID string) (domain.ClubRole, error)
}

type Verifications interface {
	CreateVerification(ctx context.Context, v domain.IdentityVerification) error
	GetVerificationByUser(ctx context.Context, userID string) (domain.IdentityVerification, error)
	UpdateVerificationStatus(ctx context.Context, id string, status domain.VerificationStatus) error
	DeleteUserVerifications(ctx context.Context, userID string) error
	DeleteExpiredVerifications(ctx context.Context) error
}

type Audit interface {
	// CreateAuthLog records an authentication attempt.
	CreateAuthLog(ctx context.Context, l domain.AuthLog) error

	// CreateAuditLog records a state-changing action.
	CreateAuditLog(ctx context.Context, l domain.AuditLog) error

	// CountRecentAuthLogs counts a user's entries for one method since
	// the cutoff, used for the forgot-password rate guard.
	CountRecentAuthLogs(ctx context.Context, userID string, method domain.AuthMethod, since time.Time) (int, error)

	// AnonymizeOldAuthLogIPs blanks ip_address on entries older than the
	// cutoff (housekeeping, data minimisation).
	AnonymizeOldAuthLogIPs(ctx context.Context, cutoff time.Time) (int64, error)
}
