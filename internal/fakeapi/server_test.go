package fakeapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "test-key"

func do(t *testing.T, h http.Handler, method, path string, body any, key string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("x-api-key", key)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestServer_CRUD(t *testing.T) {
	srv := New(testKey)
	h := srv.Handler()
	alice := map[string]string{"email": "a@x.com", "username": "alicex", "password": "p@ss1"}

	w, body := do(t, h, http.MethodPost, "/api/users/register", alice, testKey)
	require.Equal(t, http.StatusCreated, w.Code)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	w, body = do(t, h, http.MethodPost, "/api/users/login", alice, testKey)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, id, body["id"])
	token, _ := body["token"].(string)
	tokenUser, err := srv.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, tokenUser)

	update := map[string]string{"email": "a@x.commm", "username": "alicex", "password": "p@ss1"}
	w, body = do(t, h, http.MethodPatch, "/api/users/"+id, update, testKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "a@x.commm", body["email"])

	// Re-applying the same patch leaves the same stored email.
	w, _ = do(t, h, http.MethodPatch, "/api/users/"+id, update, testKey)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = do(t, h, http.MethodGet, "/api/users/"+id, nil, testKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@x.commm", body["email"])

	w, _ = do(t, h, http.MethodDelete, "/api/users/"+id, nil, testKey)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, w.Body.Len())

	w, _ = do(t, h, http.MethodGet, "/api/users/"+id, nil, testKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = do(t, h, http.MethodDelete, "/api/users/"+id, nil, testKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, srv.UserCount())
}

func TestServer_RootRoutes(t *testing.T) {
	h := New("").Handler()

	w, _ := do(t, h, http.MethodPost, "/users/register", map[string]string{"email": "b@x.com", "password": "pw"}, "")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestServer_APIKey(t *testing.T) {
	h := New(testKey).Handler()

	w, _ := do(t, h, http.MethodGet, "/api/users/1", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, h, http.MethodGet, "/api/users/1", nil, "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_RegisterValidation(t *testing.T) {
	h := New(testKey).Handler()

	w, _ := do(t, h, http.MethodPost, "/api/users/register", map[string]string{"email": "nope", "password": "x"}, testKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	user := map[string]string{"email": "c@x.com", "password": "x"}
	w, _ = do(t, h, http.MethodPost, "/api/users/register", user, testKey)
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = do(t, h, http.MethodPost, "/api/users/register", user, testKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_LoginBadCredentials(t *testing.T) {
	h := New(testKey).Handler()
	do(t, h, http.MethodPost, "/api/users/register", map[string]string{"email": "d@x.com", "password": "right"}, testKey)

	w, _ := do(t, h, http.MethodPost, "/api/users/login", map[string]string{"email": "d@x.com", "password": "wrong"}, testKey)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, h, http.MethodPost, "/api/users/login", map[string]string{"email": "nobody@x.com", "password": "right"}, testKey)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_FailRoute(t *testing.T) {
	srv := New(testKey)
	h := srv.Handler()
	user := map[string]string{"email": "e@x.com", "password": "pw"}

	srv.FailRoute(RouteRegister, http.StatusInternalServerError)
	w, _ := do(t, h, http.MethodPost, "/api/users/register", user, testKey)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, srv.UserCount())

	srv.FailRoute(RouteRegister, 0)
	w, _ = do(t, h, http.MethodPost, "/api/users/register", user, testKey)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestServer_WithIDFunc(t *testing.T) {
	h := New(testKey, WithIDFunc(func() string { return "123" })).Handler()

	_, body := do(t, h, http.MethodPost, "/api/users/register", map[string]string{"email": "f@x.com", "password": "pw"}, testKey)
	assert.Equal(t, "123", body["id"])
}

func TestParseToken_Invalid(t *testing.T) {
	srv := New(testKey)
	_, err := srv.ParseToken("not-a-token")
	assert.Error(t, err)

	other := New(testKey, WithJWTSecret([]byte("other")))
	token, err := other.signToken(user{ID: "1", Email: "g@x.com"})
	require.NoError(t, err)
	_, err = srv.ParseToken(token)
	assert.Error(t, err)
}
