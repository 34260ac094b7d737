package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/orthoview/kneescan/internal/model"
)

// ResultRepo provides access to the results table: the pending insert at
// intake, the single finalize transition after classification, manual
// entry and the joined read views.
type ResultRepo struct {
    db *sql.DB
}

// NewResultRepo returns a new ResultRepo bound to the given database.
func NewResultRepo(db *sql.DB) *ResultRepo { return &ResultRepo{db: db} }

// CreatePendingTx inserts a result in the pending state for the given
// image, within the scope of an existing transaction. Confidence starts
// at zero and severity NULL; both are set by the finalize transition.
func (r *ResultRepo) CreatePendingTx(ctx context.Context, tx *sql.Tx, patientID, imageID uint64) (uint64, error) {
    res, err := tx.ExecContext(ctx,
        "INSERT INTO results (patient_id, image_id, diagnosis, confidence) VALUES (?,?,?,0)",
        patientID, imageID, model.DiagnosisPending)
    if err != nil {
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

// Finalize performs the pending → labeled transition for a result. The
// WHERE clause guards the state machine: a result that has already left
// the pending state is never overwritten, so the transition happens at
// most once even when the reconciler races a request.
func (r *ResultRepo) Finalize(ctx context.Context, resultID uint64, diagnosis string, confidence float64, severity string) error {
    res, err := r.db.ExecContext(ctx,
        "UPDATE results SET diagnosis=?, confidence=?, severity=? WHERE id=? AND diagnosis=?",
        diagnosis, confidence, severity, resultID, model.DiagnosisPending)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return sql.ErrNoRows
    }
    return nil
}

// Create inserts a fully specified result, used by the manual entry
// endpoint for doctors.
func (r *ResultRepo) Create(ctx context.Context, patientID, imageID uint64, diagnosis string, confidence float64, severity string) (uint64, error) {
    res, err := r.db.ExecContext(ctx,
        "INSERT INTO results (patient_id, image_id, diagnosis, confidence, severity) VALUES (?,?,?,?,?)",
        patientID, imageID, diagnosis, confidence, severity)
    if err != nil {
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

// Update overwrites the diagnosis, confidence and severity of an
// existing result, used by the doctor review endpoint. Unlike Finalize
// it applies regardless of the current state.
func (r *ResultRepo) Update(ctx context.Context, resultID uint64, diagnosis string, confidence float64, severity string) error {
    res, err := r.db.ExecContext(ctx,
        "UPDATE results SET diagnosis=?, confidence=?, severity=? WHERE id=?",
        diagnosis, confidence, severity, resultID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        // Distinguish absent from unchanged.
        var one int
        if err := r.db.QueryRowContext(ctx, "SELECT 1 FROM results WHERE id=? LIMIT 1", resultID).Scan(&one); err != nil {
            return err
        }
    }
    return nil
}

// Delete removes a result row. sql.ErrNoRows is returned when the id
// does not resolve.
func (r *ResultRepo) Delete(ctx context.Context, resultID uint64) error {
    res, err := r.db.ExecContext(ctx, "DELETE FROM results WHERE id=?", resultID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return sql.ErrNoRows
    }
    return nil
}

// GetByID fetches a bare result row.
func (r *ResultRepo) GetByID(ctx context.Context, id uint64) (model.Result, error) {
    var m model.Result
    var severity sql.NullString
    err := r.db.QueryRowContext(ctx,
        "SELECT id, patient_id, image_id, diagnosis, confidence, severity, created_at FROM results WHERE id=? LIMIT 1",
        id).Scan(&m.ID, &m.PatientID, &m.ImageID, &m.Diagnosis, &m.Confidence, &severity, &m.CreatedAt)
    if err != nil {
        return model.Result{}, err
    }
    m.Severity = severity.String
    return m, nil
}

// ResultDetail is the joined Result/Image/Patient view returned by the
// retrieval endpoints.
type ResultDetail struct {
    ID          uint64    `json:"id"`
    PatientID   uint64    `json:"patient_id"`
    ImageID     uint64    `json:"image_id"`
    Diagnosis   string    `json:"diagnosis"`
    Confidence  float64   `json:"confidence"`
    Severity    string    `json:"severity"`
    CreatedAt   time.Time `json:"created_at"`
    ImageURL    string    `json:"image_url"`
    UploadedAt  time.Time `json:"uploaded_at"`
    PatientName string    `json:"patient_name"`
}

func scanDetail(row interface{ Scan(...any) error }, d *ResultDetail) error {
    var severity sql.NullString
    if err := row.Scan(&d.ID, &d.PatientID, &d.ImageID, &d.Diagnosis, &d.Confidence, &severity,
        &d.CreatedAt, &d.ImageURL, &d.UploadedAt, &d.PatientName); err != nil {
        return err
    }
    d.Severity = severity.String
    return nil
}

const detailColumns = `r.id, r.patient_id, r.image_id, r.diagnosis, r.confidence, r.severity,
                       r.created_at, i.image_url, i.uploaded_at, p.name`

// GetDetail returns the joined Result/Image/Patient view for one result.
// sql.ErrNoRows is returned when the result does not exist.
func (r *ResultRepo) GetDetail(ctx context.Context, id uint64) (ResultDetail, error) {
    q := `SELECT ` + detailColumns + `
          FROM results r
          JOIN images i ON i.id = r.image_id
          JOIN patients p ON p.id = r.patient_id
          WHERE r.id = ?`
    var d ResultDetail
    if err := scanDetail(r.db.QueryRowContext(ctx, q, id), &d); err != nil {
        return ResultDetail{}, err
    }
    return d, nil
}

// ListAll returns every result joined to its image and patient, newest
// first. Reserved for admin identities.
func (r *ResultRepo) ListAll(ctx context.Context) ([]ResultDetail, error) {
    q := `SELECT ` + detailColumns + `
          FROM results r
          JOIN images i ON i.id = r.image_id
          JOIN patients p ON p.id = r.patient_id
          ORDER BY r.created_at DESC`
    return r.queryDetails(ctx, q)
}

// ListForDoctor returns results restricted to patients linked to the
// doctor via doctor_patient, newest first.
func (r *ResultRepo) ListForDoctor(ctx context.Context, doctorID uint64) ([]ResultDetail, error) {
    q := `SELECT ` + detailColumns + `
          FROM results r
          JOIN images i ON i.id = r.image_id
          JOIN patients p ON p.id = r.patient_id
          JOIN doctor_patient dp ON dp.patient_id = p.id
          WHERE dp.doctor_id = ?
          ORDER BY r.created_at DESC`
    return r.queryDetails(ctx, q, doctorID)
}

func (r *ResultRepo) queryDetails(ctx context.Context, q string, args ...any) ([]ResultDetail, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := make([]ResultDetail, 0)
    for rows.Next() {
        var d ResultDetail
        if err := scanDetail(rows, &d); err != nil {
            return nil, err
        }
        out = append(out, d)
    }
    return out, rows.Err()
}

// PendingResult pairs a stuck pending result with the image path the
// reconciler needs to re-run classification.
type PendingResult struct {
    ResultID uint64
    ImageURL string
}

// ListStuckPending returns results that have sat in the pending state
// longer than the given age, oldest first, capped at limit. These are
// the rows an adapter failure left behind.
func (r *ResultRepo) ListStuckPending(ctx context.Context, olderThan time.Duration, limit int) ([]PendingResult, error) {
    cutoff := time.Now().UTC().Add(-olderThan)
    const q = `SELECT r.id, i.image_url
               FROM results r
               JOIN images i ON i.id = r.image_id
               WHERE r.diagnosis = ? AND r.created_at < ?
               ORDER BY r.created_at
               LIMIT ?`
    rows, err := r.db.QueryContext(ctx, q, model.DiagnosisPending, cutoff, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := make([]PendingResult, 0)
    for rows.Next() {
        var p PendingResult
        if err := rows.Scan(&p.ResultID, &p.ImageURL); err != nil {
            return nil, err
        }
        out = append(out, p)
    }
    return out, rows.Err()
}
