package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/orthoview/kneescan/internal/auth"
	"github.com/orthoview/kneescan/internal/blobstore"
	"github.com/orthoview/kneescan/internal/config"
	"github.com/orthoview/kneescan/internal/inference"
	"github.com/orthoview/kneescan/internal/model"
	"github.com/orthoview/kneescan/internal/pipeline"
)

type stubRecordStore struct{}

func (stubRecordStore) PatientExists(ctx context.Context, id uint64) (bool, error) {
	return true, nil
}

func (stubRecordStore) CreatePendingPair(ctx context.Context, patientID uint64, imageURL string) (uint64, uint64, error) {
	return 0, 0, errors.New("unexpected record-store write")
}

func (stubRecordStore) FinalizeResult(ctx context.Context, resultID uint64, pred inference.Prediction) (model.Result, error) {
	return model.Result{}, errors.New("unexpected finalize")
}

func (stubRecordStore) AppendLog(ctx context.Context, userID uint64, action string) error {
	return nil
}

type stubClassifier struct{}

func (stubClassifier) Classify(ctx context.Context, img image.Image) (inference.Prediction, error) {
	return inference.Prediction{}, errors.New("unexpected classify")
}

func analyzeRequest(t *testing.T, filename, contentType string, payload []byte) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("patientInfo", `{"name":"Jane Roe"}`))

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/analysis", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("identity", auth.Identity{ID: 5, Username: "dr", Role: auth.RoleDoctor})
	return c, rec
}

func TestAnalyzeRejectsFileBeforeCreatingPatient(t *testing.T) {
	blob := &blobstore.Store{Dir: t.TempDir(), MaxBytes: 64}
	p := pipeline.New(stubRecordStore{}, blob, stubClassifier{}, nil)
	// Patients stays nil on purpose: reaching the implicit insert would
	// panic, so a clean 400 proves no patient row was attempted.
	h := &AnalysisHandler{Cfg: config.Config{}, Pipeline: p}

	t.Run("oversized", func(t *testing.T) {
		c, rec := analyzeRequest(t, "knee.jpg", "image/jpeg", bytes.Repeat([]byte{0xff}, 128))
		require.NoError(t, h.Analyze(c))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "exceeds upload size limit")
	})

	t.Run("unsupported type", func(t *testing.T) {
		c, rec := analyzeRequest(t, "report.pdf", "application/pdf", []byte("%PDF-"))
		require.NoError(t, h.Analyze(c))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "unsupported file format")
	})
}
