package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linechat/internal/app/directory"
	"linechat/internal/configs"
	"linechat/internal/pkg/errs"
	"linechat/internal/pkg/resp"
)

func newTestDeps(t *testing.T) *AppDeps {
	t.Helper()

	store, err := directory.NewFileStore(filepath.Join(t.TempDir(), "users.json"), "local")
	require.NoError(t, err)

	return &AppDeps{
		Store:  store,
		Config: &configs.AppConfig{Environment: "development"},
	}
}

func postAccount(t *testing.T, deps *AppDeps, body string) (*httptest.ResponseRecorder, resp.JSONResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/accounts", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	HandleCreateAccount(deps)(rec, req)

	var parsed resp.JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return rec, parsed
}

func TestHandleCreateAccount(t *testing.T) {
	deps := newTestDeps(t)

	rec, parsed := postAccount(t, deps, `{"username":"alice","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, parsed.Code)

	data, ok := parsed.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", data["username"])
	assert.Equal(t, true, data["hasPassword"])
}

func TestHandleCreateAccountWithoutPassword(t *testing.T) {
	deps := newTestDeps(t)

	_, parsed := postAccount(t, deps, `{"username":"open"}`)
	assert.Equal(t, 0, parsed.Code)

	data, ok := parsed.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, data["hasPassword"])
}

func TestHandleCreateAccountValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "username too short", body: `{"username":"a","password":"secret1"}`, wantCode: errs.ErrInvalidUsername},
		{name: "username with spaces", body: `{"username":"a b","password":"secret1"}`, wantCode: errs.ErrInvalidUsername},
		{name: "password too short", body: `{"username":"alice","password":"pw"}`, wantCode: errs.ErrInvalidPassword},
		{name: "malformed JSON", body: `{"username":`, wantCode: errs.ErrInvalidJSONFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps(t)
			_, parsed := postAccount(t, deps, tt.body)
			assert.Equal(t, tt.wantCode, parsed.Code)
		})
	}
}

func TestHandleCreateAccountDuplicate(t *testing.T) {
	deps := newTestDeps(t)

	_, parsed := postAccount(t, deps, `{"username":"alice","password":"secret1"}`)
	require.Equal(t, 0, parsed.Code)

	_, parsed = postAccount(t, deps, `{"username":"alice","password":"other12"}`)
	assert.Equal(t, errs.ErrUserAlreadyExists, parsed.Code)
}
