package model

import "time"

// DiagnosisPending is the sentinel diagnosis a result carries between
// intake and its single successful classification transition.
const DiagnosisPending = "pending"

// Severity buckets derived from classifier confidence. See
// inference.SeverityForScore for the thresholds.
const (
	SeverityHigh     = "high"
	SeverityModerate = "moderate"
	SeverityLow      = "low"
)

// Result is a row in the `results` table. A result is created in the
// pending state together with its image, inside one transaction, and is
// mutated exactly once when classification succeeds. Its ImageID must
// reference an image whose patient matches the result's own PatientID.
//
// Fields:
//  ID         – primary key identifier.
//  PatientID  – owning patient.
//  ImageID    – classified image (required foreign key).
//  Diagnosis  – label, or DiagnosisPending before classification.
//  Confidence – 0–100 score; 0 while pending.
//  Severity   – high/moderate/low bucket, empty while pending.
//  CreatedAt  – timestamp of creation.
type Result struct {
	ID         uint64    // results.id
	PatientID  uint64    // results.patient_id
	ImageID    uint64    // results.image_id
	Diagnosis  string    // results.diagnosis
	Confidence float64   // results.confidence
	Severity   string    // results.severity
	CreatedAt  time.Time // results.created_at
}

// Pending reports whether the result is still awaiting classification.
func (r Result) Pending() bool { return r.Diagnosis == DiagnosisPending }
