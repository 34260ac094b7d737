package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/orthoview/kneescan/internal/inference"
	"github.com/orthoview/kneescan/internal/model"
)

// AnalysisStore is the record-store face the analysis pipeline runs
// against. It composes the per-table repositories and owns the one
// transaction boundary in the system: the paired Image+pending Result
// insert at intake.
type AnalysisStore struct {
	DB       *sql.DB
	Patients *PatientRepo
	Images   *ImageRepo
	Results  *ResultRepo
	Logs     *LogRepo
}

// NewAnalysisStore wires an AnalysisStore over the shared database handle.
func NewAnalysisStore(db *sql.DB) *AnalysisStore {
	return &AnalysisStore{
		DB:       db,
		Patients: NewPatientRepo(db),
		Images:   NewImageRepo(db),
		Results:  NewResultRepo(db),
		Logs:     NewLogRepo(db),
	}
}

// PatientExists resolves a patient id before any mutation happens.
func (s *AnalysisStore) PatientExists(ctx context.Context, id uint64) (bool, error) {
	return s.Patients.Exists(ctx, id)
}

// CreatePendingPair inserts the image row and its pending result inside
// one transaction. Either both rows exist afterwards or neither does; a
// result can never reference a missing image.
func (s *AnalysisStore) CreatePendingPair(ctx context.Context, patientID uint64, imageURL string) (imageID, resultID uint64, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	imageID, err = s.Images.CreateTx(ctx, tx, patientID, imageURL)
	if err != nil {
		return 0, 0, err
	}
	resultID, err = s.Results.CreatePendingTx(ctx, tx, patientID, imageID)
	if err != nil {
		return 0, 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, 0, err
	}
	committed = true
	return imageID, resultID, nil
}

// FinalizeResult applies the single pending → labeled transition using
// the classifier prediction. Called both by the request pipeline and the
// reconciler; the guarded UPDATE keeps the transition exactly-once.
func (s *AnalysisStore) FinalizeResult(ctx context.Context, resultID uint64, pred inference.Prediction) (model.Result, error) {
	score := inference.Score(pred.Confidence)
	severity := inference.SeverityFor(pred.Confidence)
	if err := s.Results.Finalize(ctx, resultID, pred.Label, score, severity); err != nil {
		return model.Result{}, err
	}
	return s.Results.GetByID(ctx, resultID)
}

// AppendLog records an upload action in the audit table.
func (s *AnalysisStore) AppendLog(ctx context.Context, userID uint64, action string) error {
	return s.Logs.Append(ctx, userID, action)
}

// ListStuckPending exposes the reconciler's sweep query.
func (s *AnalysisStore) ListStuckPending(ctx context.Context, olderThan time.Duration, limit int) ([]PendingResult, error) {
	return s.Results.ListStuckPending(ctx, olderThan, limit)
}
