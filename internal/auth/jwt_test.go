package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	tok, err := NewToken(testSecret, 42, "dr.jones", RoleDoctor, 8)
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)
	require.WithinDuration(t, time.Now().UTC().Add(8*time.Hour), tok.Exp, time.Minute)

	id, err := VerifyToken(testSecret, tok.Token)
	require.NoError(t, err)
	require.Equal(t, uint64(42), id.ID)
	require.Equal(t, "dr.jones", id.Username)
	require.Equal(t, RoleDoctor, id.Role)
}

func TestTokenWithoutRole(t *testing.T) {
	// Unscoped accounts carry no role claim at all; verification must
	// map its absence back to RoleNone rather than failing.
	tok, err := NewToken(testSecret, 7, "someone", RoleNone, 8)
	require.NoError(t, err)

	id, err := VerifyToken(testSecret, tok.Token)
	require.NoError(t, err)
	require.Equal(t, RoleNone, id.Role)
}

func TestVerifyTokenFailures(t *testing.T) {
	expired := signedToken(t, jwt.MapClaims{
		"id":       float64(1),
		"username": "u",
		"exp":      time.Now().UTC().Add(-time.Hour).Unix(),
	})

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "missing", raw: "", wantErr: ErrTokenMissing},
		{name: "garbage", raw: "not.a.token", wantErr: ErrTokenMalformed},
		{name: "wrong secret", raw: signedWithOtherSecret(t), wantErr: ErrTokenMalformed},
		{name: "expired", raw: expired, wantErr: ErrTokenExpired},
		{name: "no id claim", raw: signedToken(t, jwt.MapClaims{"username": "u", "exp": time.Now().Add(time.Hour).Unix()}), wantErr: ErrTokenMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyToken(testSecret, tt.raw)
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func signedWithOtherSecret(t *testing.T) string {
	t.Helper()
	s, err := NewToken("another-secret", 1, "u", RoleAdmin, 8)
	require.NoError(t, err)
	return s.Token
}
