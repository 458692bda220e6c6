package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireUserStoresClaims(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	cookies := NewCookies(false, 0)
	token, err := issuer.Issue(User{ID: "u-1", Email: "ada@example.com", Role: RoleUser})
	require.NoError(t, err)

	var got Claims
	handler := RequireUser(issuer, cookies, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		got = claims
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, "ada@example.com", got.Email)
}

func TestRequireUserRejectsBearerHeaderOnly(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	token, err := issuer.Issue(User{ID: "u-1"})
	require.NoError(t, err)

	called := false
	handler := RequireUser(issuer, NewCookies(false, 0), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestClaimsFromContextEmpty(t *testing.T) {
	_, ok := ClaimsFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
