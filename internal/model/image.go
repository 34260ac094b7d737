package model

import "time"

// Image is a row in the `images` table. Exactly one row is created per
// uploaded file, immediately after the blob store has written the
// normalized derivative. Rows are immutable after creation.
//
// Fields:
//  ID         – primary key identifier.
//  PatientID  – owning patient (required foreign key).
//  ImageURL   – path of the normalized derivative inside the uploads dir.
//  UploadedAt – timestamp of creation.
type Image struct {
	ID         uint64    // images.id
	PatientID  uint64    // images.patient_id
	ImageURL   string    // images.image_url
	UploadedAt time.Time // images.uploaded_at
}
