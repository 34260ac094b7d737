package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/orthoview/kneescan/internal/config"
	"github.com/orthoview/kneescan/internal/model"
	"github.com/orthoview/kneescan/internal/repository"
)

// PatientHandler serves patient CRUD and the doctor access probe.
type PatientHandler struct {
	Cfg      config.Config
	Patients *repository.PatientRepo
}

func NewPatientHandler(cfg config.Config, patients *repository.PatientRepo) *PatientHandler {
	if patients == nil {
		panic("nil repository passed to NewPatientHandler")
	}
	return &PatientHandler{Cfg: cfg, Patients: patients}
}

type patientReq struct {
	Name   string  `json:"name"`
	Age    *uint8  `json:"age"`
	Gender *string `json:"gender"`
}

type patientResp struct {
	ID     uint64  `json:"id"`
	Name   string  `json:"name"`
	Age    *uint8  `json:"age"`
	Gender *string `json:"gender"`
}

func toPatientResp(p model.Patient) patientResp {
	return patientResp{ID: p.ID, Name: p.Name, Age: p.Age, Gender: p.Gender}
}

// CreatePatient handles POST /api/patients.
func (h *PatientHandler) CreatePatient(c echo.Context) error {
	var req patientReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Patients.Create(ctx, req.Name, req.Age, req.Gender)
	if err != nil {
		return serverError(c, h.Cfg, "create patient failed", err)
	}
	return c.JSON(http.StatusCreated, toPatientResp(p))
}

// normalizePageLimit clamps pagination inputs once, at the HTTP
// boundary; the repository trusts the values it receives.
func normalizePageLimit(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

// ListPatients handles GET /api/patients with ?search=, ?page=, ?limit=.
func (h *PatientHandler) ListPatients(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	page, limit = normalizePageLimit(page, limit)
	search := c.QueryParam("search")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	patients, total, err := h.Patients.List(ctx, search, page, limit)
	if err != nil {
		return serverError(c, h.Cfg, "query failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": patients,
		"pagination": echo.Map{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// GetPatient handles GET /api/patients/:id, embedding the patient's
// analyses in the response.
func (h *PatientHandler) GetPatient(c echo.Context) error {
	patientID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || patientID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid patient ID"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Patients.GetByID(ctx, patientID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "patient not found"})
		}
		return serverError(c, h.Cfg, "query failed", err)
	}
	analyses, err := h.Patients.ListAnalyses(ctx, patientID)
	if err != nil {
		return serverError(c, h.Cfg, "query failed", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":       p.ID,
		"name":     p.Name,
		"age":      p.Age,
		"gender":   p.Gender,
		"analyses": analyses,
	})
}

// UpdatePatient handles PUT /api/patients/:id.
func (h *PatientHandler) UpdatePatient(c echo.Context) error {
	patientID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || patientID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid patient ID"})
	}
	var req patientReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Patients.Update(ctx, patientID, req.Name, req.Age, req.Gender)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "patient not found"})
		}
		return serverError(c, h.Cfg, "update patient failed", err)
	}
	return c.JSON(http.StatusOK, toPatientResp(p))
}

// CheckAccess handles GET /api/patients/:id/access: a doctor probing
// whether a doctor_patient link exists. Returns a bare boolean.
func (h *PatientHandler) CheckAccess(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	patientID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || patientID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid patient ID"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	linked, err := h.Patients.HasDoctorAccess(ctx, id.ID, patientID)
	if err != nil {
		return serverError(c, h.Cfg, "access check failed", err)
	}
	return c.JSON(http.StatusOK, linked)
}
