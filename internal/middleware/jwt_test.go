package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/orthoview/kneescan/internal/auth"
)

const testSecret = "mw-test-secret"

func runJWT(t *testing.T, header string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reached := false
	handler := JWTAuth(testSecret)(func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec, reached
}

func TestJWTAuthRejects(t *testing.T) {
	expired, err := auth.NewToken(testSecret, 1, "u", auth.RoleDoctor, -1)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		wantMsg string
	}{
		{name: "no header", header: "", wantMsg: "authentication token missing"},
		{name: "not bearer", header: "Basic abc123", wantMsg: "malformed authorization header"},
		{name: "garbage token", header: "Bearer not.a.token", wantMsg: "malformed token"},
		{name: "expired token", header: "Bearer " + expired.Token, wantMsg: "token expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, reached := runJWT(t, tt.header)
			require.False(t, reached)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Contains(t, rec.Body.String(), tt.wantMsg)
		})
	}
}

func TestJWTAuthInjectsIdentity(t *testing.T) {
	tok, err := auth.NewToken(testSecret, 9, "dr.ahmed", auth.RoleDoctor, 8)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got auth.Identity
	handler := JWTAuth(testSecret)(func(c echo.Context) error {
		id, ok := IdentityFrom(c)
		require.True(t, ok)
		got = id
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(9), got.ID)
	require.Equal(t, "dr.ahmed", got.Username)
	require.Equal(t, auth.RoleDoctor, got.Role)
}

func TestIdentityFromWithoutMiddleware(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, ok := IdentityFrom(c)
	require.False(t, ok)
}
