package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"auth-service/internal/observability"
)

type testServer struct {
	mux   *http.ServeMux
	store *fakeStore
	logs  *observer.ObservedLogs
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := newFakeStore()
	service := newTestService(store)
	cookies := NewCookies(false, 0)
	core, logs := observer.New(zapcore.InfoLevel)
	handler := NewHandler(service, cookies, observability.NewLoggerFromZap(zap.New(core)))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/sign-up", handler.SignUp)
	mux.HandleFunc("POST /api/auth/sign-in", handler.SignIn)
	mux.HandleFunc("POST /api/auth/sign-out", handler.SignOut)
	mux.Handle("GET /api/auth/me", RequireUser(service.Tokens(), cookies, http.HandlerFunc(handler.Me)))

	return &testServer{mux: mux, store: store, logs: logs}
}

func (s *testServer) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func tokenCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == TokenCookieName {
			return c
		}
	}
	t.Fatalf("response did not set %q cookie", TokenCookieName)
	return nil
}

const adaSignUp = `{"name":"Ada","email":"Ada@Example.com","password":"secret1"}`

func TestSignUpCreatesUserAndSetsCookie(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/api/auth/sign-up", adaSignUp)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "User registered successfully", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "Ada", user["name"])
	assert.Equal(t, "ada@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotEmpty(t, user["id"])
	assert.NotContains(t, user, "password_hash")

	cookie := tokenCookie(t, rec)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	entries := srv.logs.FilterMessage("user_signed_up").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ada@example.com", entries[0].ContextMap()["email"])
}

func TestSignUpValidationFailure(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/api/auth/sign-up", `{"name":"Ada","email":"bad","password":"1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "Validation failed!", body["error"])
	assert.Equal(t, "email must be a valid email address, password must be at least 6 characters", body["details"])
	assert.Empty(t, rec.Result().Cookies())
}

func TestSignUpPasswordByteLimit(t *testing.T) {
	srv := newTestServer(t)

	for name, tc := range map[string]struct {
		email    string
		password string
		code     int
	}{
		"72 ascii bytes":    {email: "a@example.com", password: strings.Repeat("a", 72), code: http.StatusCreated},
		"73 ascii bytes":    {email: "b@example.com", password: strings.Repeat("a", 73), code: http.StatusBadRequest},
		"36 two-byte runes": {email: "c@example.com", password: strings.Repeat("é", 36), code: http.StatusCreated},
		"40 two-byte runes": {email: "d@example.com", password: strings.Repeat("é", 40), code: http.StatusBadRequest},
		"100 ascii bytes":   {email: "e@example.com", password: strings.Repeat("x", 100), code: http.StatusBadRequest},
	} {
		t.Run(name, func(t *testing.T) {
			body, err := json.Marshal(map[string]string{"name": "Ada", "email": tc.email, "password": tc.password})
			require.NoError(t, err)

			rec := srv.do(http.MethodPost, "/api/auth/sign-up", string(body))
			require.Equal(t, tc.code, rec.Code)
			if tc.code == http.StatusBadRequest {
				assert.Equal(t, "password must be at most 72 bytes", decodeJSON(t, rec)["details"])
			}
		})
	}
	assert.Zero(t, srv.logs.FilterMessage("sign_up_failed").Len())
}

func TestSignUpAdminRoleDisabled(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/api/auth/sign-up", `{"name":"Mallory","email":"mallory@example.com","password":"secret1","role":"admin"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Admin sign-up is disabled", decodeJSON(t, rec)["message"])
	assert.Empty(t, rec.Result().Cookies())
	assert.Empty(t, srv.store.users)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/auth/sign-up", adaSignUp).Code)

	rec := srv.do(http.MethodPost, "/api/auth/sign-up", adaSignUp)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email already exists", decodeJSON(t, rec)["message"])
}

func TestSignUpStoreFailure(t *testing.T) {
	srv := newTestServer(t)
	srv.store.err = errors.New("db down")

	rec := srv.do(http.MethodPost, "/api/auth/sign-up", adaSignUp)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to sign up", decodeJSON(t, rec)["error"])
	assert.Equal(t, 1, srv.logs.FilterMessage("sign_up_failed").Len())
}

func TestSignIn(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/auth/sign-up", adaSignUp).Code)

	t.Run("success", func(t *testing.T) {
		rec := srv.do(http.MethodPost, "/api/auth/sign-in", `{"email":"ada@example.com","password":"secret1"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeJSON(t, rec)
		assert.Equal(t, "User signed in successfully", body["message"])
		assert.Equal(t, "ada@example.com", body["user"].(map[string]any)["email"])
		assert.NotEmpty(t, tokenCookie(t, rec).Value)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := srv.do(http.MethodPost, "/api/auth/sign-in", `{"email":"bob@example.com","password":"secret1"}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User not found", decodeJSON(t, rec)["message"])
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := srv.do(http.MethodPost, "/api/auth/sign-in", `{"email":"ada@example.com","password":"nope"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid credentials", decodeJSON(t, rec)["message"])
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("invalid body", func(t *testing.T) {
		rec := srv.do(http.MethodPost, "/api/auth/sign-in", `{"email":"ada@example.com"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeJSON(t, rec)
		assert.Equal(t, "Validation failed!", body["error"])
		assert.Equal(t, "password is required", body["details"])
	})
}

func TestSignOutClearsCookie(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/api/auth/sign-out", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User signed out successfully", decodeJSON(t, rec)["message"])

	cookie := tokenCookie(t, rec)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
	entries := srv.logs.FilterMessage("user_signed_out").All()
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].ContextMap(), "email")
}

func TestSignOutLogsSessionUser(t *testing.T) {
	srv := newTestServer(t)
	signUp := srv.do(http.MethodPost, "/api/auth/sign-up", adaSignUp)
	require.Equal(t, http.StatusCreated, signUp.Code)
	session := tokenCookie(t, signUp)

	rec := srv.do(http.MethodPost, "/api/auth/sign-out", "", session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, tokenCookie(t, rec).Value)

	rec = srv.do(http.MethodPost, "/api/auth/sign-out", "", &http.Cookie{Name: TokenCookieName, Value: "garbage"})
	require.Equal(t, http.StatusOK, rec.Code)

	entries := srv.logs.FilterMessage("user_signed_out").All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "ada@example.com", fields["email"])
	assert.NotEmpty(t, fields["user_id"])
	assert.NotContains(t, entries[1].ContextMap(), "email")
}

func TestMe(t *testing.T) {
	srv := newTestServer(t)
	signUp := srv.do(http.MethodPost, "/api/auth/sign-up", adaSignUp)
	require.Equal(t, http.StatusCreated, signUp.Code)
	session := tokenCookie(t, signUp)

	t.Run("with session", func(t *testing.T) {
		rec := srv.do(http.MethodGet, "/api/auth/me", "", session)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ada@example.com", decodeJSON(t, rec)["user"].(map[string]any)["email"])
	})

	t.Run("without session", func(t *testing.T) {
		rec := srv.do(http.MethodGet, "/api/auth/me", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "missing session token", decodeJSON(t, rec)["error"])
	})

	t.Run("tampered session", func(t *testing.T) {
		rec := srv.do(http.MethodGet, "/api/auth/me", "", &http.Cookie{Name: TokenCookieName, Value: session.Value + "x"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid or expired token", decodeJSON(t, rec)["error"])
	})

	t.Run("deleted user", func(t *testing.T) {
		srv.store.delete("ada@example.com")
		rec := srv.do(http.MethodGet, "/api/auth/me", "", session)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User not found", decodeJSON(t, rec)["message"])
	})
}

func TestMeWithoutMiddleware(t *testing.T) {
	handler := NewHandler(newTestService(newFakeStore()), NewCookies(false, 0), nil)

	rec := httptest.NewRecorder()
	handler.Me(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
