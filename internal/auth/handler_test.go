package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth-core/internal/auth"
	"auth-core/internal/observability"
	"auth-core/internal/store/memory"
)

func newTestMux(t *testing.T) (*http.ServeMux, *auth.Service) {
	t.Helper()

	service := newTestService(t, memory.New())
	handler := auth.NewHandler(service, observability.NewLoggerWithOutput(io.Discard, "error"))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", handler.Register)
	mux.HandleFunc("POST /auth/login", handler.Login)
	mux.HandleFunc("POST /auth/logout", handler.Logout)
	mux.Handle("GET /auth/me", auth.Middleware(service, http.HandlerFunc(handler.Me)))
	return mux, service
}

func doRequest(mux http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Flow(t *testing.T) {
	mux, _ := newTestMux(t)
	creds := `{"identity":"alice@example.com","password":"s3cret"}`

	rec := doRequest(mux, http.MethodPost, "/auth/register", creds, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(mux, http.MethodPost, "/auth/register", creds, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(mux, http.MethodPost, "/auth/login", creds, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var token auth.Token
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&token))
	assert.Equal(t, "Bearer", token.TokenType)
	assert.EqualValues(t, 3600, token.ExpiresIn)
	require.NotEmpty(t, token.AccessToken)

	rec = doRequest(mux, http.MethodGet, "/auth/me", "", token.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var me struct {
		Identity  string    `json:"identity"`
		IssuedAt  time.Time `json:"issued_at"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, "alice@example.com", me.Identity)
	assert.Equal(t, time.Hour, me.ExpiresAt.Sub(me.IssuedAt))

	rec = doRequest(mux, http.MethodPost, "/auth/logout", "", token.AccessToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(mux, http.MethodPost, "/auth/logout", "", token.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(mux, http.MethodGet, "/auth/me", "", token.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_BadBodies(t *testing.T) {
	mux, _ := newTestMux(t)

	for _, body := range []string{
		``,
		`not json`,
		`{"identity":"","password":"pw"}`,
		`{"identity":"alice","password":""}`,
		`{"identity":"alice","password":"pw","admin":true}`,
		`{"identity":"` + strings.Repeat("a", 255) + `","password":"pw"}`,
	} {
		rec := doRequest(mux, http.MethodPost, "/auth/register", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestHandler_LoginFailures(t *testing.T) {
	mux, service := newTestMux(t)
	require.NoError(t, service.Register(context.Background(), "alice", "right"))

	rec := doRequest(mux, http.MethodPost, "/auth/login", `{"identity":"alice","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())

	for i := 0; i < 4; i++ {
		doRequest(mux, http.MethodPost, "/auth/login", `{"identity":"alice","password":"wrong"}`, "")
	}

	rec = doRequest(mux, http.MethodPost, "/auth/login", `{"identity":"alice","password":"right"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestMiddleware_RejectsMissingOrMalformed(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doRequest(mux, http.MethodGet, "/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(mux, http.MethodGet, "/auth/me", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
