package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/activitymaster/clubauth/internal/auth/domain"
)

const sampleMRZ = "P<AUSMORGAN<<ALEX<<<<<<<<<<<<<<<<<<<<<<<<<<<" +
	"M1234567<8AUS9001012M3001017<<<<<<<<<<<<<<02"

func newVerificationService(t *testing.T) (*VerificationService, domain.User, domain.User) {
	t.Helper()

	st := newTestStore(t)
	svc := &VerificationService{
		Store: st,
		Keys:  newTestKeys(t),
		Sink:  newTestSink(t, st),
	}
	user := createTestUser(t, st, "applicant@example.com", testPassword, true)
	reviewer := createTestUser(t, st, "reviewer@example.com", testPassword, true)
	return svc, user, reviewer
}

func TestSubmitSealsDocument(t *testing.T) {
	ctx := context.Background()
	svc, user, reviewer := newVerificationService(t)

	v, err := svc.Submit(ctx, user.ID, sampleMRZ, "Alex", "Morgan", "1990-01-01")
	require.NoError(t, err)
	require.Equal(t, domain.VerificationPending, v.Status)
	require.NotContains(t, string(v.EncryptedMRZ), "MORGAN")

	// Status never exposes the sealed document.
	status, err := svc.Status(ctx, user.ID)
	require.NoError(t, err)
	require.Nil(t, status.EncryptedMRZ)

	mrz, err := svc.RevealMRZ(ctx, reviewer.ID, user.ID)
	require.NoError(t, err)
	require.Equal(t, sampleMRZ, mrz)
}

func TestSubmitOnePerUser(t *testing.T) {
	ctx := context.Background()
	svc, user, _ := newVerificationService(t)

	_, err := svc.Submit(ctx, user.ID, sampleMRZ, "Alex", "Morgan", "1990-01-01")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, user.ID, sampleMRZ, "Alex", "Morgan", "1990-01-01")
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestReviewSettlesSubmission(t *testing.T) {
	ctx := context.Background()
	svc, user, reviewer := newVerificationService(t)

	_, err := svc.Submit(ctx, user.ID, sampleMRZ, "Alex", "Morgan", "1990-01-01")
	require.NoError(t, err)

	require.NoError(t, svc.Review(ctx, reviewer.ID, user.ID, true))

	status, err := svc.Status(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, domain.VerificationApproved, status.Status)
}

func TestReviewUnknownUser(t *testing.T) {
	ctx := context.Background()
	svc, _, reviewer := newVerificationService(t)

	require.ErrorIs(t, svc.Review(ctx, reviewer.ID, "no-such-user", false), domain.ErrUserNotFound)
	_, err := svc.RevealMRZ(ctx, reviewer.ID, "no-such-user")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}
