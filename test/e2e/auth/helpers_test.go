package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/activitymaster/clubauth/internal/auth/audit"
	httpapi "github.com/activitymaster/clubauth/internal/auth/http"
	"github.com/activitymaster/clubauth/internal/auth/keys"
	"github.com/activitymaster/clubauth/internal/auth/service"
	"github.com/activitymaster/clubauth/internal/auth/store"
	"github.com/activitymaster/clubauth/internal/auth/store/drivers/sqlite"
	"github.com/activitymaster/clubauth/pkg/cryptox"
)

/*
 * Common helpers for end-to-end tests. Each test boots the full service
 * in-process against a throwaway database and talks to it over HTTP.
 */

const (
	applicationID = "7b0c36a3-4f12-4d6f-9fd9-2f15a1b0c9d4"
	testIssuer    = "clubauth-test"

	memberEmail    = "member@example.com"
	memberPassword = "correct horse battery staple"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "clubauth-e2e")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	exitCode := m.Run()

	_ = os.RemoveAll(dir)
	os.Exit(exitCode)
}

// captureMailer records outgoing mail so tests can read back codes and
// links instead of polling an inbox.
type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
	links map[string]string
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{
		codes: make(map[string]string),
		links: make(map[string]string),
	}
}

func (m *captureMailer) SendTwoFactorCode(_ context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *captureMailer) SendVerificationLink(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[to] = link
	return nil
}

func (m *captureMailer) SendPasswordResetLink(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[to] = link
	return nil
}

func (m *captureMailer) lastCode(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

func (m *captureMailer) lastLink(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.links[to]
}

// testEnv is a running service instance plus the handles tests need to
// look behind the HTTP surface.
type testEnv struct {
	t       *testing.T
	baseURL string
	store   store.Store
	mailer  *captureMailer
}

// setupServer boots the whole service in-process and returns the test
// environment. The server and database are torn down with the test.
func setupServer(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "auth.db") +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	ks, err := keys.Open(t.TempDir(), true)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sink := audit.NewSink(st, logger, 64)
	sink.Start()
	t.Cleanup(sink.Stop)

	mailer := newCaptureMailer()

	tokens := &service.TokenService{Keys: ks, Store: st, Issuer: testIssuer}
	twoFactor := &service.TwoFactorService{Keys: ks, Store: st, Issuer: testIssuer}
	rbac := service.NewRBACService(st)
	clubs := &service.ClubService{Store: st, RBAC: rbac, Sink: sink}
	require.NoError(t, clubs.EnsurePermissionCatalog(t.Context()))

	router := httpapi.NewRouter(ks, "e2e", st, logger)
	router.TokenService = tokens
	router.AuthService = &service.AuthService{
		Store:         st,
		Tokens:        tokens,
		TwoFactor:     twoFactor,
		Keys:          ks,
		Sink:          sink,
		Mailer:        mailer,
		PublicBaseURL: "http://localhost:8080",
	}
	router.UserService = &service.UserService{
		Store:         st,
		Tokens:        tokens,
		Keys:          ks,
		Sink:          sink,
		Mailer:        mailer,
		PublicBaseURL: "http://localhost:8080",
	}
	router.TwoFactorService = twoFactor
	router.ClubService = clubs
	router.RBACService = rbac
	router.VerificationService = &service.VerificationService{Store: st, Keys: ks, Sink: sink}
	router.KeyRotationService = &service.KeyRotationService{Store: st, Keys: ks}
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{
		t:       t,
		baseURL: server.URL,
		store:   st,
		mailer:  mailer,
	}
}

// do performs a request against the running server. A non-empty token is
// sent as a bearer credential. The response body is fully read.
func (env *testEnv) do(method, path, token string, body any) (int, []byte) {
	env.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(env.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, env.baseURL+path, reader)
	require.NoError(env.t, err)
	req.Header.Set("X-Application-ID", applicationID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(env.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(env.t, err)
	return resp.StatusCode, raw
}

// decode unmarshals a response body, failing the test on malformed JSON.
func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type loginResult struct {
	SecurityToken string   `json:"security_token"`
	Methods       []string `json:"methods"`
}

// registerVerifiedUser registers an account over HTTP and follows the
// emailed verification link.
func (env *testEnv) registerVerifiedUser(email, password string) {
	env.t.Helper()

	status, _ := env.do(http.MethodPost, "/v1/users", "", map[string]string{
		"first_name": "Alex",
		"last_name":  "Rivers",
		"email":      email,
		"password":   password,
	})
	require.Equal(env.t, http.StatusCreated, status)

	link := env.mailer.lastLink(email)
	require.NotEmpty(env.t, link, "verification mail should have been sent")

	status, _ = env.do(http.MethodGet, "/v1/users/verify-email?token="+linkToken(env.t, link), "", nil)
	require.Equal(env.t, http.StatusNoContent, status)
}

// login completes both factors using the emailed code and returns the
// token pair.
func (env *testEnv) login(email, password string) tokenPair {
	env.t.Helper()

	status, raw := env.do(http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(env.t, http.StatusOK, status)
	result := decode[loginResult](env.t, raw)
	require.NotEmpty(env.t, result.SecurityToken)
	require.Contains(env.t, result.Methods, "email")

	code := env.mailer.lastCode(email)
	require.NotEmpty(env.t, code, "challenge mail should have been sent")

	status, raw = env.do(http.MethodPost, "/v1/auth/2fa", "", map[string]string{
		"security_token": result.SecurityToken,
		"method":         "email",
		"code":           code,
	})
	require.Equal(env.t, http.StatusOK, status)

	pair := decode[tokenPair](env.t, raw)
	require.NotEmpty(env.t, pair.AccessToken)
	require.NotEmpty(env.t, pair.RefreshToken)
	require.Equal(env.t, "Bearer", pair.TokenType)
	return pair
}

// linkToken extracts the token query parameter from an emailed link.
func linkToken(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

// markSystemUser flips the operator flag directly in the database. There
// is deliberately no HTTP surface for it.
func (env *testEnv) markSystemUser(email string) {
	env.t.Helper()
	ctx := env.t.Context()

	user, err := env.store.Users().GetUserByEmail(ctx, email)
	require.NoError(env.t, err)
	require.NoError(env.t, env.store.Users().SetSystemFlag(ctx, user.ID, true))
}
