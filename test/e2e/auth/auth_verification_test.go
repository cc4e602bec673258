package auth_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleMRZ = "P<AUSRIVERS<<ALEX<<<<<<<<<<<<<<<<<<<<<<<<<<<" +
	"M1234567<8AUS8001014F2501017<<<<<<<<<<<<<<06"

func submitVerification(t *testing.T, env *testEnv, token string) {
	t.Helper()

	status, raw := env.do(http.MethodPost, "/v1/verification", token, map[string]string{
		"mrz":           sampleMRZ,
		"first_name":    "Alex",
		"last_name":     "Rivers",
		"date_of_birth": "1980-01-01",
	})
	require.Equal(t, http.StatusAccepted, status)

	submitted := decode[struct {
		Status string `json:"status"`
	}](t, raw)
	require.Equal(t, "pending", submitted.Status)
}

func TestVerificationSubmitAndReview(t *testing.T) {
	env := setupServer(t)
	env.registerVerifiedUser(memberEmail, memberPassword)
	env.registerVerifiedUser(secondEmail, secondPassword)

	member := env.login(memberEmail, memberPassword)
	reviewer := env.login(secondEmail, secondPassword)
	env.markSystemUser(secondEmail)

	submitVerification(t, env, member.AccessToken)

	memberUser, err := env.store.Users().GetUserByEmail(t.Context(), memberEmail)
	require.NoError(t, err)

	// The reviewer opens the sealed document and approves.
	status, raw := env.do(http.MethodGet,
		"/v1/verification/"+memberUser.ID+"/document", reviewer.AccessToken, nil)
	require.Equal(t, http.StatusOK, status)
	revealed := decode[struct {
		MRZ string `json:"mrz"`
	}](t, raw)
	require.Equal(t, sampleMRZ, revealed.MRZ)

	status, _ = env.do(http.MethodPost,
		"/v1/verification/"+memberUser.ID+"/review", reviewer.AccessToken,
		map[string]bool{"approve": true})
	require.Equal(t, http.StatusNoContent, status)

	status, raw = env.do(http.MethodGet, "/v1/verification", member.AccessToken, nil)
	require.Equal(t, http.StatusOK, status)
	settled := decode[struct {
		Status string `json:"status"`
	}](t, raw)
	require.Equal(t, "approved", settled.Status)
}

func TestVerificationReviewNeedsOperator(t *testing.T) {
	env := setupServer(t)
	env.registerVerifiedUser(memberEmail, memberPassword)
	env.registerVerifiedUser(secondEmail, secondPassword)

	member := env.login(memberEmail, memberPassword)
	other := env.login(secondEmail, secondPassword)

	submitVerification(t, env, member.AccessToken)

	memberUser, err := env.store.Users().GetUserByEmail(t.Context(), memberEmail)
	require.NoError(t, err)

	// An ordinary account cannot open someone else's document.
	status, _ := env.do(http.MethodGet,
		"/v1/verification/"+memberUser.ID+"/document", other.AccessToken, nil)
	require.Equal(t, http.StatusForbidden, status)
}
