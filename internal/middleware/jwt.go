package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "errors"    // sentinel comparisons against auth token errors
    "net/http"  // HTTP status codes for responses
    "strings"   // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/orthoview/kneescan/internal/auth"
)

// identityKey is the context key handlers read the verified identity from.
const identityKey = "identity"

// JWTAuth returns an Echo middleware that validates a Bearer token and
// injects the verified auth.Identity into the request context. The
// provided secret must match the one used when issuing tokens. The role
// variant is decided inside auth.VerifyToken, so everything downstream
// of this middleware works with the tagged identity rather than raw
// claims. Each verification failure gets its own diagnostic: missing,
// malformed and expired tokens produce distinct 401 messages.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            header := c.Request().Header.Get("Authorization")
            if header == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication token missing"})
            }
            if !strings.HasPrefix(header, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "malformed authorization header"})
            }
            raw := strings.TrimPrefix(header, "Bearer ")

            id, err := auth.VerifyToken(secret, raw)
            if err != nil {
                msg := "invalid token"
                switch {
                case errors.Is(err, auth.ErrTokenExpired):
                    msg = "token expired"
                case errors.Is(err, auth.ErrTokenMissing):
                    msg = "authentication token missing"
                case errors.Is(err, auth.ErrTokenMalformed):
                    msg = "malformed token"
                }
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
            }

            c.Set(identityKey, id)
            return next(c)
        }
    }
}

// IdentityFrom extracts the verified identity stored by JWTAuth. The
// boolean is false when the middleware did not run for this route.
func IdentityFrom(c echo.Context) (auth.Identity, bool) {
    id, ok := c.Get(identityKey).(auth.Identity)
    return id, ok
}
