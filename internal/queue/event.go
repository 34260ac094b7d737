// Package queue defines message payloads exchanged over the message broker.
package queue

// AnalysisCompletedEvent is published when an analysis pipeline run
// reaches its terminal success state. It carries enough information for
// downstream consumers to log or notify without querying the primary
// database.
type AnalysisCompletedEvent struct {
	ResultID    uint64  `json:"result_id"`
	ImageID     uint64  `json:"image_id"`
	PatientID   uint64  `json:"patient_id"`
	UserID      uint64  `json:"user_id"`
	Diagnosis   string  `json:"diagnosis"`
	Confidence  float64 `json:"confidence"`
	Severity    string  `json:"severity"`
	CompletedAt string  `json:"completed_at"`
}
