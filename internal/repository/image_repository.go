package repository

import (
	"context"
	"database/sql"

	"github.com/orthoview/kneescan/internal/model"
)

// ImageRepo provides access to the images table. Images are created
// exactly once per upload, inside the intake transaction, and are
// immutable afterwards.
type ImageRepo struct {
	db *sql.DB
}

// NewImageRepo returns a new ImageRepo bound to the given database.
func NewImageRepo(db *sql.DB) *ImageRepo { return &ImageRepo{db: db} }

// CreateTx inserts an image row within the scope of an existing
// transaction and returns the generated id. The caller must commit or
// roll back the transaction; this keeps the image and its pending result
// logically atomic.
func (r *ImageRepo) CreateTx(ctx context.Context, tx *sql.Tx, patientID uint64, imageURL string) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO images (patient_id, image_url) VALUES (?,?)",
		patientID, imageURL)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a single image row. sql.ErrNoRows is returned when the
// id does not resolve.
func (r *ImageRepo) GetByID(ctx context.Context, id uint64) (model.Image, error) {
	var img model.Image
	err := r.db.QueryRowContext(ctx,
		"SELECT id, patient_id, image_url, uploaded_at FROM images WHERE id=? LIMIT 1",
		id).Scan(&img.ID, &img.PatientID, &img.ImageURL, &img.UploadedAt)
	return img, err
}
