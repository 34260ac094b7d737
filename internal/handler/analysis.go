package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/orthoview/kneescan/internal/config"
	"github.com/orthoview/kneescan/internal/pipeline"
	"github.com/orthoview/kneescan/internal/repository"
)

// AnalysisHandler serves the one-shot analysis endpoint: the form
// carries patient details instead of an existing patient id, so the
// patient row is created implicitly before the pipeline runs.
type AnalysisHandler struct {
	Cfg      config.Config
	Patients *repository.PatientRepo
	Pipeline *pipeline.Pipeline
}

func NewAnalysisHandler(cfg config.Config, patients *repository.PatientRepo, p *pipeline.Pipeline) *AnalysisHandler {
	if patients == nil || p == nil {
		panic("nil dependency passed to NewAnalysisHandler")
	}
	return &AnalysisHandler{Cfg: cfg, Patients: patients, Pipeline: p}
}

// patientInfo mirrors the JSON-encoded form field.
type patientInfo struct {
	Name   string  `json:"name"`
	Age    *uint8  `json:"age"`
	Gender *string `json:"gender"`
}

// Analyze handles POST /api/analysis. The multipart form carries an
// `image` file and a `patientInfo` JSON object {name, age, gender}.
func (h *AnalysisHandler) Analyze(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	var info patientInfo
	if err := json.Unmarshal([]byte(c.FormValue("patientInfo")), &info); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid patientInfo"})
	}
	if strings.TrimSpace(info.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "patient name is required"})
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no file uploaded"})
	}
	// The patient row is created implicitly below, so the file checks
	// must come first: a rejected upload leaves nothing behind.
	if err := h.Pipeline.ValidateFile(fh.Filename, fh.Header.Get("Content-Type"), fh.Size); err != nil {
		return writePipelineError(c, h.Cfg, err)
	}
	src, err := fh.Open()
	if err != nil {
		return serverError(c, h.Cfg, "analysis failed", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	patient, err := h.Patients.Create(ctx, info.Name, info.Age, info.Gender)
	if err != nil {
		return serverError(c, h.Cfg, "create patient failed", err)
	}

	out, err := h.Pipeline.Run(c.Request().Context(), pipeline.Submission{
		PatientID:   patient.ID,
		UserID:      id.ID,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		File:        src,
	})
	if err != nil {
		return writePipelineError(c, h.Cfg, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"analysisId": out.ResultID,
		"message":    "Analysis completed successfully",
	})
}
