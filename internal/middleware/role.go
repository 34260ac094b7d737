package middleware // middleware provides shared request processing for handlers

import (
    "net/http" // http package defines standard HTTP status codes

    "github.com/labstack/echo/v4" // echo provides middleware chaining and context

    "github.com/orthoview/kneescan/internal/auth"
)

// RequireRole returns a middleware that enforces that the authenticated
// identity carries one of the specified role variants. Because roles are
// parsed once at token verification, an unscoped identity is RoleNone —
// a route that should admit unscoped callers must list RoleNone
// explicitly; it is never admitted by accident. Requests with a role
// outside the allowed set are rejected with 403 Forbidden. JWTAuth must
// run earlier in the chain.
func RequireRole(roles ...auth.Role) echo.MiddlewareFunc {
    allowed := make(map[auth.Role]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            id, ok := IdentityFrom(c)
            if !ok || !allowed[id.Role] {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}
