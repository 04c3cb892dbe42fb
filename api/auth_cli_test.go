package api

import (
	"net/http"
	"testing"

	"github.com/Pablo-Wynistorf/DataDrop/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIHandshake(t *testing.T) {
	env := newTestEnv(t)

	var loginResp struct {
		Code      string `json:"code"`
		VerifyURL string `json:"verifyUrl"`
		ExpiresIn int    `json:"expiresIn"`
	}

	w := env.do(http.MethodPost, "/api/auth/cli/login", nil, &loginResp)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, loginResp.Code)
	assert.Equal(t, "https://app.test/cli?code="+loginResp.Code, loginResp.VerifyURL)

	// Nobody has approved the code yet
	var pollResp struct {
		Status string `json:"status"`
		Token  string `json:"token"`
	}

	w = env.do(http.MethodGet, "/api/auth/cli/poll/"+loginResp.Code, nil, &pollResp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.CLIStatusPending, pollResp.Status)
	assert.Empty(t, pollResp.Token)

	w = env.do(http.MethodPost, "/api/auth/cli/authorize", map[string]any{"code": loginResp.Code}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The approved poll hands out a working identity token
	w = env.do(http.MethodGet, "/api/auth/cli/poll/"+loginResp.Code, nil, &pollResp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.CLIStatusAuthorized, pollResp.Status)
	require.NotEmpty(t, pollResp.Token)

	id, err := env.api.Codec.VerifyCLI(pollResp.Token)
	require.NoError(t, err)
	assert.Equal(t, env.id.UserID, id.UserID)
	assert.Equal(t, env.id.Roles, id.Roles)

	// The token is handed out exactly once
	w = env.do(http.MethodGet, "/api/auth/cli/poll/"+loginResp.Code, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCLIAuthorizeUnknownCode(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/cli/authorize", map[string]any{"code": "nope"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCLIPollUnknownCode(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/auth/cli/poll/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
