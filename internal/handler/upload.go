package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/orthoview/kneescan/internal/blobstore"
	"github.com/orthoview/kneescan/internal/config"
	"github.com/orthoview/kneescan/internal/pipeline"
)

// UploadHandler exposes the analysis request path over HTTP. It extracts
// the multipart form and delegates the whole intake → inference →
// persistence sequence to the pipeline.
type UploadHandler struct {
	Cfg      config.Config
	Pipeline *pipeline.Pipeline
}

func NewUploadHandler(cfg config.Config, p *pipeline.Pipeline) *UploadHandler {
	if p == nil {
		panic("nil pipeline passed to NewUploadHandler")
	}
	return &UploadHandler{Cfg: cfg, Pipeline: p}
}

// Upload handles POST /api/upload. The form carries an `image` file and
// a `patientId`. On success it returns 201 with the created identifiers
// and the public URL of the normalized derivative.
func (h *UploadHandler) Upload(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	patientID, err := strconv.ParseUint(c.FormValue("patientId"), 10, 64)
	if err != nil || patientID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "patient ID is required"})
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no file uploaded"})
	}
	src, err := fh.Open()
	if err != nil {
		return serverError(c, h.Cfg, "upload failed", err)
	}
	defer src.Close()

	out, err := h.Pipeline.Run(c.Request().Context(), pipeline.Submission{
		PatientID:   patientID,
		UserID:      id.ID,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		File:        src,
	})
	if err != nil {
		return writePipelineError(c, h.Cfg, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success":    true,
		"imageId":    out.ImageID,
		"analysisId": out.ResultID,
		"imageUrl":   "/uploads/" + out.ImageURL,
	})
}

// writePipelineError maps pipeline failures onto the error taxonomy:
// validation problems are 400, a missing patient 404, everything after
// intake a 500 with a stable message.
func writePipelineError(c echo.Context, cfg config.Config, err error) error {
	switch {
	case errors.Is(err, blobstore.ErrNoFile):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no file uploaded"})
	case errors.Is(err, blobstore.ErrTooLarge):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file exceeds upload size limit"})
	case errors.Is(err, blobstore.ErrUnsupportedType):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unsupported file format, only JPEG, PNG or DICOM accepted"})
	case errors.Is(err, pipeline.ErrNoPatient):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "patient not found"})
	}

	var stage *pipeline.StageError
	if errors.As(err, &stage) && stage.State == pipeline.StatePending {
		// Inference failed; the result row stays pending for the
		// reconciler sweep.
		return serverError(c, cfg, "failed to analyze image", err)
	}
	return serverError(c, cfg, "upload failed", err)
}
