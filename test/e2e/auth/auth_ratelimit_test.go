package auth_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/activitymaster/clubauth/pkg/httpx"
)

func TestLoginRateLimit(t *testing.T) {
	env := setupServer(t)

	// Exhaust the strict budget. Failed attempts count the same as
	// successful ones.
	var limited bool
	for range httpx.StrictLimit.Burst + 1 {
		status, raw := env.do(http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email":    "nobody@example.com",
			"password": "whatever whatever 1",
		})
		if status == http.StatusTooManyRequests {
			limited = true
			errResp := decode[struct {
				Error string `json:"error"`
			}](t, raw)
			require.Equal(t, "rate_limit_exceeded", errResp.Error)
			break
		}
		require.Equal(t, http.StatusUnauthorized, status)
	}
	require.True(t, limited, "the strict limit should kick in")
}

func TestHealthNotRateLimitedAtStrictLevels(t *testing.T) {
	env := setupServer(t)

	// Health probes poll frequently; the budget is far above the strict
	// profile.
	for range httpx.StrictLimit.Burst * 2 {
		status, _ := env.do(http.MethodGet, "/livez", "", nil)
		require.Equal(t, http.StatusOK, status)
	}
}
