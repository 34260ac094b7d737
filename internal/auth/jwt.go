package auth // package auth provides token issuing and verification helpers

import (
    "errors" // sentinel token errors
    "time"   // expiry calculations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Verification failures are distinguished so the HTTP layer can return a
// distinct diagnostic for each case, as the API contract requires.
var (
    ErrTokenMissing   = errors.New("token missing")
    ErrTokenMalformed = errors.New("token malformed")
    ErrTokenExpired   = errors.New("token expired")
)

// Token represents a signed JWT bearer token along with its expiry. The
// Token field contains the serialized JWT string; Exp stores the UTC
// expiration timestamp. Tokens are presented in the Authorization header
// when calling protected endpoints.
type Token struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewToken builds and signs an HS256 JWT for a user. It takes the
// signing secret, the user's identity fields and a TTL in hours, and
// returns the signed token with its expiration time. The claims carry
// the numeric id, the username, the role (omitted when unscoped),
// expiration (exp) and issued at (iat).
func NewToken(secret string, userID uint64, username string, role Role, ttlHours int) (Token, error) {
    exp := time.Now().UTC().Add(time.Duration(ttlHours) * time.Hour)
    claims := jwt.MapClaims{
        "id":       userID,
        "username": username,
        "exp":      exp.Unix(),
        "iat":      time.Now().UTC().Unix(),
    }
    // Unscoped identities carry no role claim at all; verification maps
    // the absent claim back to RoleNone.
    if role != RoleNone {
        claims["role"] = string(role)
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return Token{}, err
    }
    return Token{Token: signed, Exp: exp}, nil
}

// VerifyToken validates a raw bearer token's signature and expiry and
// extracts the caller's Identity. The role variant is decided here, once,
// so downstream authorization never inspects raw claims. The returned
// error is one of the sentinel values above.
func VerifyToken(secret, raw string) (Identity, error) {
    if raw == "" {
        return Identity{}, ErrTokenMissing
    }
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        // Only HMAC-signed tokens are ever issued; reject anything else.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrTokenMalformed
        }
        return []byte(secret), nil
    })
    if err != nil {
        if errors.Is(err, jwt.ErrTokenExpired) {
            return Identity{}, ErrTokenExpired
        }
        return Identity{}, ErrTokenMalformed
    }
    if !tok.Valid {
        return Identity{}, ErrTokenMalformed
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return Identity{}, ErrTokenMalformed
    }

    var id Identity
    switch v := claims["id"].(type) {
    case float64:
        id.ID = uint64(v)
    default:
        return Identity{}, ErrTokenMalformed
    }
    if name, ok := claims["username"].(string); ok {
        id.Username = name
    }
    if role, ok := claims["role"].(string); ok {
        id.Role = ParseRole(role)
    }
    return id, nil
}
