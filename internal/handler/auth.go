package handler

import (
    "context"      // provides context with cancellation for DB calls
    "database/sql" // SQL sentinel errors
    "net/http"     // HTTP status codes and primitives
    "strings"      // string manipulation utilities
    "time"         // timeouts for DB calls

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "github.com/orthoview/kneescan/internal/auth"       // token issuing and identity
    "github.com/orthoview/kneescan/internal/config"     // app configuration
    "github.com/orthoview/kneescan/internal/repository" // DB repositories
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Users *repository.UserRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"` // optional: doctor | admin | patient
}
type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userPart struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}
type authResp struct {
	Token string   `json:"token"`
	User  userPart `json:"user"`
}

// Register creates a user and returns a bearer token immediately. The
// role is optional; accounts registered without one stay unscoped.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}
	role := auth.ParseRole(req.Role)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Username, req.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		if err == repository.ErrUsernameExists {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "username already exists"})
		}
		return serverError(c, h.Cfg, "registration failed", err)
	}

	tok, err := auth.NewToken(h.Cfg.JWTSecret, uid, req.Username, role, h.Cfg.TokenTTLHours)
	if err != nil {
		return serverError(c, h.Cfg, "issue token failed", err)
	}

	return c.JSON(http.StatusCreated, authResp{
		Token: tok.Token,
		User:  userPart{ID: uid, Username: req.Username, Role: string(role)},
	})
}

// Login verifies credentials and returns a fresh token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return serverError(c, h.Cfg, "query failed", err)
	}
	if !auth.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	role := auth.ParseRole(u.Role)
	tok, err := auth.NewToken(h.Cfg.JWTSecret, u.ID, u.Username, role, h.Cfg.TokenTTLHours)
	if err != nil {
		return serverError(c, h.Cfg, "issue token failed", err)
	}

	return c.JSON(http.StatusOK, authResp{
		Token: tok.Token,
		User:  userPart{ID: u.ID, Username: u.Username, Role: string(role)},
	})
}

// Me returns the identity decoded from the presented token.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user": userPart{ID: id.ID, Username: id.Username, Role: string(id.Role)},
	})
}
