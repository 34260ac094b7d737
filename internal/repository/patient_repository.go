package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/orthoview/kneescan/internal/model"
)

// PatientRepo provides CRUD operations for patients plus the
// doctor_patient link lookups the access-control layer depends on.
type PatientRepo struct {
    db *sql.DB
}

// NewPatientRepo returns a new PatientRepo bound to the given database.
func NewPatientRepo(db *sql.DB) *PatientRepo { return &PatientRepo{db: db} }

// Create inserts a patient and returns the stored row. Age and gender
// are optional and stored as NULL when absent.
func (r *PatientRepo) Create(ctx context.Context, name string, age *uint8, gender *string) (model.Patient, error) {
    res, err := r.db.ExecContext(ctx,
        "INSERT INTO patients (name, age, gender) VALUES (?,?,?)",
        strings.TrimSpace(name), age, gender)
    if err != nil {
        return model.Patient{}, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return model.Patient{}, err
    }
    return r.GetByID(ctx, uint64(id))
}

// GetByID fetches a single patient. sql.ErrNoRows is returned when the
// id does not resolve.
func (r *PatientRepo) GetByID(ctx context.Context, id uint64) (model.Patient, error) {
    var p model.Patient
    var age sql.NullInt16
    var gender sql.NullString
    err := r.db.QueryRowContext(ctx,
        "SELECT id, name, age, gender FROM patients WHERE id=? LIMIT 1",
        id).Scan(&p.ID, &p.Name, &age, &gender)
    if err != nil {
        return model.Patient{}, err
    }
    if age.Valid {
        a := uint8(age.Int16)
        p.Age = &a
    }
    if gender.Valid {
        g := gender.String
        p.Gender = &g
    }
    return p, nil
}

// Exists reports whether a patient row exists for the id.
func (r *PatientRepo) Exists(ctx context.Context, id uint64) (bool, error) {
    var one int
    err := r.db.QueryRowContext(ctx, "SELECT 1 FROM patients WHERE id=? LIMIT 1", id).Scan(&one)
    if err == sql.ErrNoRows {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}

// Update overwrites a patient's mutable fields. sql.ErrNoRows is
// returned when the id does not resolve.
func (r *PatientRepo) Update(ctx context.Context, id uint64, name string, age *uint8, gender *string) (model.Patient, error) {
    res, err := r.db.ExecContext(ctx,
        "UPDATE patients SET name=?, age=?, gender=? WHERE id=?",
        strings.TrimSpace(name), age, gender, id)
    if err != nil {
        return model.Patient{}, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return model.Patient{}, err
    }
    if n == 0 {
        // Either absent or unchanged; distinguish by reloading.
        if _, err := r.GetByID(ctx, id); err != nil {
            return model.Patient{}, err
        }
    }
    return r.GetByID(ctx, id)
}

// PatientSummary is a patient row augmented with analysis counters for
// the list view.
type PatientSummary struct {
    ID            uint64     `json:"id"`
    Name          string     `json:"name"`
    Age           *uint8     `json:"age"`
    Gender        *string    `json:"gender"`
    AnalysisCount int        `json:"analysis_count"`
    LastAnalysis  *time.Time `json:"last_analysis"`
}

// List returns patients filtered by a case-insensitive name substring,
// ordered by name, paginated. The second return value is the total
// number of matching rows before pagination. page and limit are trusted
// as given; the HTTP layer clamps them once.
func (r *PatientRepo) List(ctx context.Context, search string, page, limit int) ([]PatientSummary, int, error) {
    pattern := "%" + strings.TrimSpace(search) + "%"

    const q = `SELECT p.id, p.name, p.age, p.gender,
                      COUNT(r.id) AS analysis_count,
                      MAX(r.created_at) AS last_analysis
               FROM patients p
               LEFT JOIN results r ON r.patient_id = p.id
               WHERE p.name LIKE ?
               GROUP BY p.id
               ORDER BY p.name
               LIMIT ? OFFSET ?`
    rows, err := r.db.QueryContext(ctx, q, pattern, limit, (page-1)*limit)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()

    out := make([]PatientSummary, 0)
    for rows.Next() {
        var s PatientSummary
        var age sql.NullInt16
        var gender sql.NullString
        var last sql.NullTime
        if err := rows.Scan(&s.ID, &s.Name, &age, &gender, &s.AnalysisCount, &last); err != nil {
            return nil, 0, err
        }
        if age.Valid {
            a := uint8(age.Int16)
            s.Age = &a
        }
        if gender.Valid {
            g := gender.String
            s.Gender = &g
        }
        if last.Valid {
            t := last.Time.UTC()
            s.LastAnalysis = &t
        }
        out = append(out, s)
    }
    if err := rows.Err(); err != nil {
        return nil, 0, err
    }

    var total int
    if err := r.db.QueryRowContext(ctx,
        "SELECT COUNT(*) FROM patients WHERE name LIKE ?", pattern).Scan(&total); err != nil {
        return nil, 0, err
    }
    return out, total, nil
}

// PatientAnalysis is one result attached to a patient's detail view.
type PatientAnalysis struct {
    ID         uint64    `json:"id"`
    Diagnosis  string    `json:"diagnosis"`
    Confidence float64   `json:"confidence"`
    Severity   string    `json:"severity"`
    Date       time.Time `json:"date"`
    ImageURL   string    `json:"image_url"`
}

// ListAnalyses returns a patient's results newest first, joined to their
// image paths, for embedding in the patient detail response.
func (r *PatientRepo) ListAnalyses(ctx context.Context, patientID uint64) ([]PatientAnalysis, error) {
    const q = `SELECT r.id, r.diagnosis, r.confidence, r.severity, r.created_at, i.image_url
               FROM results r
               JOIN images i ON i.id = r.image_id
               WHERE r.patient_id = ?
               ORDER BY r.created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, patientID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := make([]PatientAnalysis, 0)
    for rows.Next() {
        var a PatientAnalysis
        var severity sql.NullString
        if err := rows.Scan(&a.ID, &a.Diagnosis, &a.Confidence, &severity, &a.Date, &a.ImageURL); err != nil {
            return nil, err
        }
        a.Severity = severity.String
        out = append(out, a)
    }
    return out, rows.Err()
}

// HasDoctorAccess consults the doctor_patient link table. It backs every
// per-result authorization check for doctor identities.
func (r *PatientRepo) HasDoctorAccess(ctx context.Context, doctorID, patientID uint64) (bool, error) {
    var one int
    err := r.db.QueryRowContext(ctx,
        "SELECT 1 FROM doctor_patient WHERE doctor_id=? AND patient_id=? LIMIT 1",
        doctorID, patientID).Scan(&one)
    if err == sql.ErrNoRows {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}
