package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/orthoview/kneescan/internal/auth"
	"github.com/orthoview/kneescan/internal/config"
	"github.com/orthoview/kneescan/internal/inference"
	"github.com/orthoview/kneescan/internal/repository"
)

// ResultHandler serves the read and review endpoints over results. All
// routes assume JWTAuth has run; authorization happens here, before any
// row is disclosed or mutated, by switching over the identity's result
// scope and consulting the doctor_patient link where required.
type ResultHandler struct {
	Cfg      config.Config
	Results  *repository.ResultRepo
	Patients *repository.PatientRepo
}

func NewResultHandler(cfg config.Config, results *repository.ResultRepo, patients *repository.PatientRepo) *ResultHandler {
	if results == nil || patients == nil {
		panic("nil repository passed to NewResultHandler")
	}
	return &ResultHandler{Cfg: cfg, Results: results, Patients: patients}
}

// GetResult handles GET /api/results/:id. A non-numeric id fails fast
// with 400 before any store access.
func (h *ResultHandler) GetResult(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	resultID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || resultID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid result ID"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	detail, err := h.Results.GetDetail(ctx, resultID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "result not found"})
		}
		return serverError(c, h.Cfg, "query failed", err)
	}

	if err := h.authorizeRead(ctx, id, detail.PatientID); err != nil {
		if err == repository.ErrForbidden {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "unauthorized access"})
		}
		return serverError(c, h.Cfg, "access check failed", err)
	}

	return c.JSON(http.StatusOK, detail)
}

// authorizeRead enforces the per-result visibility rules. The switch is
// exhaustive over the identity's result scope.
func (h *ResultHandler) authorizeRead(ctx context.Context, id auth.Identity, patientID uint64) error {
	switch id.ResultReadScope() {
	case auth.ScopeAll:
		return nil
	case auth.ScopeLinked:
		linked, err := h.Patients.HasDoctorAccess(ctx, id.ID, patientID)
		if err != nil {
			return err
		}
		if !linked {
			return repository.ErrForbidden
		}
		return nil
	case auth.ScopeAny:
		return nil
	default:
		return repository.ErrForbidden
	}
}

// ListResults handles GET /api/results. Admins see everything, doctors
// their linked patients; other identities have no listing view.
func (h *ResultHandler) ListResults(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var (
		details []repository.ResultDetail
		err     error
	)
	switch id.Role {
	case auth.RoleAdmin:
		details, err = h.Results.ListAll(ctx)
	case auth.RoleDoctor:
		details, err = h.Results.ListForDoctor(ctx, id.ID)
	case auth.RolePatient, auth.RoleNone:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if err != nil {
		return serverError(c, h.Cfg, "query failed", err)
	}
	return c.JSON(http.StatusOK, details)
}

// ListDoctorResults handles GET /api/results/doctor, the link-scoped
// listing with embedded patient info. RequireRole(doctor) guards it.
func (h *ResultHandler) ListDoctorResults(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	details, err := h.Results.ListForDoctor(ctx, id.ID)
	if err != nil {
		return serverError(c, h.Cfg, "query failed", err)
	}
	return c.JSON(http.StatusOK, details)
}

type createResultReq struct {
	PatientID  uint64   `json:"patient_id"`
	ImageID    uint64   `json:"image_id"`
	Diagnosis  string   `json:"diagnosis"`
	Confidence *float64 `json:"confidence"`
}

// CreateResult handles POST /api/results: manual result entry by a
// doctor. Severity is derived from the supplied confidence through the
// same mapping the pipeline uses.
func (h *ResultHandler) CreateResult(c echo.Context) error {
	var req createResultReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.PatientID == 0 || req.ImageID == 0 || req.Diagnosis == "" || req.Confidence == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing required fields"})
	}
	if *req.Confidence < 0 || *req.Confidence > 100 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "confidence must be between 0 and 100"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	severity := inference.SeverityForScore(*req.Confidence)
	resultID, err := h.Results.Create(ctx, req.PatientID, req.ImageID, req.Diagnosis, *req.Confidence, severity)
	if err != nil {
		return serverError(c, h.Cfg, "create result failed", err)
	}

	detail, err := h.Results.GetDetail(ctx, resultID)
	if err != nil {
		return serverError(c, h.Cfg, "query failed", err)
	}
	return c.JSON(http.StatusCreated, detail)
}

type updateResultReq struct {
	Diagnosis  string   `json:"diagnosis"`
	Confidence *float64 `json:"confidence"`
}

// UpdateResult handles PUT /api/results/:id: a doctor revising the
// stored diagnosis. The doctor must be linked to the result's patient.
func (h *ResultHandler) UpdateResult(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	resultID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || resultID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid result ID"})
	}
	var req updateResultReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Diagnosis == "" || req.Confidence == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing required fields"})
	}
	if *req.Confidence < 0 || *req.Confidence > 100 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "confidence must be between 0 and 100"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	existing, err := h.Results.GetByID(ctx, resultID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "result not found"})
		}
		return serverError(c, h.Cfg, "query failed", err)
	}
	linked, err := h.Patients.HasDoctorAccess(ctx, id.ID, existing.PatientID)
	if err != nil {
		return serverError(c, h.Cfg, "access check failed", err)
	}
	if !linked {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "unauthorized access"})
	}

	severity := inference.SeverityForScore(*req.Confidence)
	if err := h.Results.Update(ctx, resultID, req.Diagnosis, *req.Confidence, severity); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "result not found"})
		}
		return serverError(c, h.Cfg, "update result failed", err)
	}

	detail, err := h.Results.GetDetail(ctx, resultID)
	if err != nil {
		return serverError(c, h.Cfg, "query failed", err)
	}
	return c.JSON(http.StatusOK, detail)
}

// DeleteResult handles DELETE /api/results/:id. Admin only, enforced by
// RequireRole in the router.
func (h *ResultHandler) DeleteResult(c echo.Context) error {
	resultID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || resultID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid result ID"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Results.Delete(ctx, resultID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "result not found"})
		}
		return serverError(c, h.Cfg, "delete result failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "result deleted successfully"})
}
