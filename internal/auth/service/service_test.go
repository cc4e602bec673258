package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/activitymaster/clubauth/internal/auth/audit"
	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/internal/auth/keys"
	"github.com/activitymaster/clubauth/internal/auth/store"
	"github.com/activitymaster/clubauth/internal/auth/store/drivers/sqlite"
	"github.com/activitymaster/clubauth/pkg/cryptox"
)

const testApplicationID = "019503aa-8f2e-7aa1-b123-4567890abcde"

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "clubauth-service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper.key"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func newTestKeys(t *testing.T) *keys.KeyStore {
	t.Helper()

	ks, err := keys.Open(t.TempDir(), true)
	require.NoError(t, err)
	return ks
}

func newTestSink(t *testing.T, st store.Store) *audit.Sink {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := audit.NewSink(st, logger, 64)
	sink.Start()
	t.Cleanup(sink.Stop)
	return sink
}

// captureMailer records outgoing mail instead of sending it.
type captureMailer struct {
	mu    sync.Mutex
	codes []string
	links []string
}

func (m *captureMailer) SendTwoFactorCode(_ context.Context, _, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, code)
	return nil
}

func (m *captureMailer) SendVerificationLink(_ context.Context, _, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
	return nil
}

func (m *captureMailer) SendPasswordResetLink(_ context.Context, _, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
	return nil
}

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.codes)
	return m.codes[len(m.codes)-1]
}

func (m *captureMailer) lastLink(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.links)
	return m.links[len(m.links)-1]
}

func createTestUser(t *testing.T, st store.Store, email, password string, verified bool) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		FirstName:    "Alex",
		LastName:     "Morgan",
		Email:        email,
		PasswordHash: hash,
		IsVerified:   verified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), user))
	return user
}
