package blobstore

// Package blobstore owns the uploads directory. It validates incoming
// files against the type allow-list and size ceiling, persists the raw
// upload, and writes the normalized derivative that the rest of the
// system (record store, classifier, static file serving) refers to.

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

var (
	// ErrUnsupportedType is returned for files outside the JPEG/PNG/DICOM
	// allow-list.
	ErrUnsupportedType = errors.New("unsupported file format, only JPEG, PNG or DICOM accepted")
	// ErrTooLarge is returned when the upload exceeds the size ceiling.
	ErrTooLarge = errors.New("file exceeds upload size limit")
	// ErrNoFile is returned when the multipart form carries no file part.
	ErrNoFile = errors.New("no file uploaded")
)

// mimeAllowed is the fixed allow-list of declared content types.
var mimeAllowed = map[string]bool{
	"image/jpeg":        true,
	"image/png":         true,
	"application/dicom": true,
	"image/dicom":       true,
}

// extAllowed is the extension fallback used when the declared type is
// absent or generic (browsers often send application/octet-stream for
// .dcm files).
var extAllowed = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".dcm":  true,
}

// Store writes uploads beneath Dir and derivatives beneath Dir/processed.
// MaxBytes is the single size ceiling enforced at intake.
type Store struct {
	Dir      string
	MaxBytes int64
}

// New creates the uploads and processed directories if needed and
// returns a Store rooted at dir.
func New(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "processed"), 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Store{Dir: dir, MaxBytes: maxBytes}, nil
}

// Validate checks the declared content type and size against the
// allow-list and ceiling without reading the payload. Size may be -1
// when unknown; oversize payloads are then caught during Save by the
// limited reader.
func (s *Store) Validate(filename, contentType string, size int64) error {
	if size > s.MaxBytes {
		return ErrTooLarge
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if mimeAllowed[ct] {
		return nil
	}
	if extAllowed[strings.ToLower(path.Ext(filename))] {
		return nil
	}
	return ErrUnsupportedType
}

// Save persists the raw upload under a fresh UUID filename and writes
// the normalized derivative next to it under processed/. It returns the
// derivative path relative to Dir, which is what gets stored in the
// images table and served back under /uploads/. The original is kept on
// disk untouched for later review.
func (s *Store) Save(src io.Reader, filename string) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	name := uuid.New().String() + ext
	origPath := filepath.Join(s.Dir, name)

	f, err := os.Create(origPath)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	// Read one byte past the ceiling so oversize payloads with an unknown
	// length are still rejected.
	n, copyErr := io.Copy(f, io.LimitReader(src, s.MaxBytes+1))
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(origPath)
		return "", fmt.Errorf("store upload: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(origPath)
		return "", fmt.Errorf("store upload: %w", closeErr)
	}
	if n > s.MaxBytes {
		_ = os.Remove(origPath)
		return "", ErrTooLarge
	}

	derivative, err := s.normalize(origPath, name)
	if err != nil {
		_ = os.Remove(origPath)
		return "", err
	}
	return derivative, nil
}

// normalize produces the derivative the classifier and the UI consume:
// bounded to 1024x1024 preserving aspect ratio and never upscaled,
// contrast-stretched, slightly brightened and sharpened, re-encoded as
// JPEG regardless of the input format.
func (s *Store) normalize(origPath, name string) (string, error) {
	img, err := imaging.Open(origPath)
	if err != nil {
		return "", fmt.Errorf("decode medical image: %w", err)
	}
	if b := img.Bounds(); b.Dx() > 1024 || b.Dy() > 1024 {
		img = imaging.Fit(img, 1024, 1024, imaging.Lanczos)
	}
	img = imaging.AdjustContrast(img, 10)
	img = imaging.AdjustBrightness(img, 5)
	img = imaging.Sharpen(img, 1.0)

	base := strings.TrimSuffix(name, path.Ext(name))
	rel := filepath.Join("processed", "processed_"+base+".jpg")
	out := filepath.Join(s.Dir, rel)
	if err := imaging.Save(img, out, imaging.JPEGQuality(92)); err != nil {
		return "", fmt.Errorf("write processed image: %w", err)
	}
	return rel, nil
}

// Abs resolves a stored relative path back to its location on disk.
func (s *Store) Abs(rel string) string { return filepath.Join(s.Dir, rel) }
