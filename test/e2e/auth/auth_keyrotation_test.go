package auth_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestTOTPKeyRotation(t *testing.T) {
	env := setupServer(t)
	env.registerVerifiedUser(memberEmail, memberPassword)
	env.registerVerifiedUser(secondEmail, secondPassword)

	member := env.login(memberEmail, memberPassword)
	operator := env.login(secondEmail, secondPassword)
	// System accounts cannot start logins, so the flag is granted to an
	// already open session.
	env.markSystemUser(secondEmail)

	secret, _ := enrollTOTP(t, env, member.AccessToken)

	status, _ := env.do(http.MethodPost, "/v1/system/rotate-totp-key",
		operator.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, status)

	// Enrolled authenticators keep working under the new sealing key.
	status, raw := env.do(http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    memberEmail,
		"password": memberPassword,
	})
	require.Equal(t, http.StatusOK, status)
	result := decode[loginResult](t, raw)

	code, err := totp.GenerateCode(secret, time.Now().Add(30*time.Second))
	require.NoError(t, err)

	status, _ = env.do(http.MethodPost, "/v1/auth/2fa", "", map[string]string{
		"security_token": result.SecurityToken,
		"method":         "totp",
		"code":           code,
	})
	require.Equal(t, http.StatusOK, status)
}

func TestKeyRotationNeedsOperator(t *testing.T) {
	env := setupServer(t)
	env.registerVerifiedUser(memberEmail, memberPassword)
	member := env.login(memberEmail, memberPassword)

	status, _ := env.do(http.MethodPost, "/v1/system/rotate-totp-key",
		member.AccessToken, nil)
	require.Equal(t, http.StatusForbidden, status)
}
