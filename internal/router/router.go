package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/orthoview/kneescan/internal/auth"       // role variants for route guards
	"github.com/orthoview/kneescan/internal/config"     // rate limit config
	"github.com/orthoview/kneescan/internal/handler"    // import the handlers that implement business logic
	"github.com/orthoview/kneescan/internal/middleware" // import middleware for JWT authentication and role enforcement

	"github.com/redis/go-redis/v9"
)

// Handlers bundles everything RegisterRoutes needs to wire up the API.
type Handlers struct {
	Auth     *handler.AuthHandler
	Upload   *handler.UploadHandler
	Analysis *handler.AnalysisHandler
	Results  *handler.ResultHandler
	Patients *handler.PatientHandler
}

// RegisterRoutes registers all routes on the provided Echo instance.
// Unauthenticated surface: the health check, the static uploads
// directory and the register/login endpoints. Everything else lives
// under /api behind JWTAuth; role-restricted routes additionally pass
// through RequireRole. rdb may be nil, in which case the upload rate
// limiter degrades to a pass-through.
func RegisterRoutes(e *echo.Echo, h Handlers, cfg config.Config, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	// Uploaded originals and normalized derivatives are served back as
	// static files, matching the paths stored in the images table.
	e.Static("/uploads", cfg.UploadDir)

	// Credential lifecycle does not require an existing session.
	ag := e.Group("/api/auth")
	ag.POST("/register", h.Auth.Register)
	ag.POST("/login", h.Auth.Login)

	// Protected surface. JWTAuth verifies the bearer token and decides
	// the role variant once; handlers and RequireRole work against that.
	api := e.Group("/api")
	api.Use(middleware.JWTAuth(cfg.JWTSecret))

	api.GET("/auth/me", h.Auth.Me)

	// Analysis ingress. These routes move megabytes and run inference,
	// so they are the only ones behind the token-bucket limiter.
	limited := middleware.NewTokenBucket(rlCfg, rdb)
	api.POST("/upload", h.Upload.Upload, limited)
	api.POST("/analysis", h.Analysis.Analyze, limited)

	// Result retrieval and review. The static /results/doctor route must
	// be registered alongside the :id route; echo matches it first.
	api.GET("/results", h.Results.ListResults)
	api.GET("/results/doctor", h.Results.ListDoctorResults, middleware.RequireRole(auth.RoleDoctor))
	api.GET("/results/:id", h.Results.GetResult)
	api.POST("/results", h.Results.CreateResult, middleware.RequireRole(auth.RoleDoctor))
	api.PUT("/results/:id", h.Results.UpdateResult, middleware.RequireRole(auth.RoleDoctor))
	api.DELETE("/results/:id", h.Results.DeleteResult, middleware.RequireRole(auth.RoleAdmin))

	// Patient management.
	api.POST("/patients", h.Patients.CreatePatient, middleware.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	api.GET("/patients", h.Patients.ListPatients)
	api.GET("/patients/:id", h.Patients.GetPatient)
	api.PUT("/patients/:id", h.Patients.UpdatePatient, middleware.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	api.GET("/patients/:id/access", h.Patients.CheckAccess, middleware.RequireRole(auth.RoleDoctor))
}
