package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/orthoview/kneescan/internal/auth"
	"github.com/orthoview/kneescan/internal/config"
	"github.com/orthoview/kneescan/internal/middleware"
)

// identity extracts the verified caller placed in context by JWTAuth.
func identity(c echo.Context) (auth.Identity, bool) {
	return middleware.IdentityFrom(c)
}

// serverError writes a 500 with a stable error string. Internal details
// are attached only when the deployment runs with development
// diagnostics enabled.
func serverError(c echo.Context, cfg config.Config, msg string, err error) error {
	body := echo.Map{"error": msg}
	if cfg.Dev() && err != nil {
		body["details"] = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, body)
}
