package pipeline

// Package pipeline orchestrates a single analysis request: intake →
// blob store → paired record insert → inference → finalize. Each request
// runs the full sequence synchronously inside its own HTTP call; the
// only shared state is the record store, the uploads directory and the
// read-only model instance.

import (
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"time"

	"github.com/disintegration/imaging"

	"github.com/orthoview/kneescan/internal/blobstore"
	"github.com/orthoview/kneescan/internal/inference"
	"github.com/orthoview/kneescan/internal/model"
	"github.com/orthoview/kneescan/internal/queue"
	"github.com/orthoview/kneescan/internal/repository"
)

// State names the stations of the per-request state machine. A request
// either reaches StatePersisted or fails terminally at the stage the
// StageError records.
type State string

const (
	StateReceived   State = "received"
	StateStored     State = "stored"
	StatePending    State = "pending"
	StateClassified State = "classified"
	StatePersisted  State = "persisted"
)

// ErrNoPatient is returned when the submission references a patient id
// that does not resolve. Detected before any mutation.
var ErrNoPatient = repository.ErrPatientNotFound

// StageError marks a terminal pipeline failure with the state the
// request had reached when it failed. Failures at or after StatePending
// leave a pending result row behind for the reconciler.
type StageError struct {
	State State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("analysis failed at %s: %v", e.State, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func fail(s State, err error) error { return &StageError{State: s, Err: err} }

// RecordStore is the pipeline's view of relational persistence. The SQL
// implementation is repository.AnalysisStore.
type RecordStore interface {
	PatientExists(ctx context.Context, id uint64) (bool, error)
	CreatePendingPair(ctx context.Context, patientID uint64, imageURL string) (imageID, resultID uint64, err error)
	FinalizeResult(ctx context.Context, resultID uint64, pred inference.Prediction) (model.Result, error)
	AppendLog(ctx context.Context, userID uint64, action string) error
}

// BlobStore is the pipeline's view of upload storage; blobstore.Store
// satisfies it.
type BlobStore interface {
	Validate(filename, contentType string, size int64) error
	Save(src io.Reader, filename string) (string, error)
	Abs(rel string) string
}

// EventPublisher emits the analysis.completed event after a successful
// run. Publishing is best effort: errors are logged and never fail the
// request.
type EventPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, ev queue.AnalysisCompletedEvent) error
}

// Submission is one analysis request as extracted from the multipart
// form. File may be nil when the form carried no file part.
type Submission struct {
	PatientID   uint64
	UserID      uint64
	Filename    string
	ContentType string
	Size        int64
	File        io.Reader
}

// Outcome reports a completed run: the identifiers handed back to the
// client and the finalized result row.
type Outcome struct {
	ImageID  uint64
	ResultID uint64
	ImageURL string
	Result   model.Result
}

// Pipeline wires the collaborators for the analysis request path. The
// zero value is not usable; construct with New.
type Pipeline struct {
	store      RecordStore
	blob       BlobStore
	classifier inference.Classifier
	events     EventPublisher

	// decode is swapped in tests to avoid touching the filesystem.
	decode func(path string) (image.Image, error)
}

// New constructs a Pipeline. events may be nil when no broker is
// configured.
func New(store RecordStore, blob BlobStore, classifier inference.Classifier, events EventPublisher) *Pipeline {
	if store == nil || blob == nil || classifier == nil {
		panic("nil dependency passed to pipeline.New")
	}
	return &Pipeline{
		store:      store,
		blob:       blob,
		classifier: classifier,
		events:     events,
		decode:     func(path string) (image.Image, error) { return imaging.Open(path) },
	}
}

// ValidateFile runs the blob-store intake checks without writing
// anything. Callers that create other rows before Run — the
// implicit-patient endpoint — use it so a rejected file never leaves an
// orphan record behind.
func (p *Pipeline) ValidateFile(filename, contentType string, size int64) error {
	if err := p.blob.Validate(filename, contentType, size); err != nil {
		return fail(StateReceived, err)
	}
	return nil
}

// Run executes the full state machine for one submission. Validation
// failures surface before anything is written; failures after the
// pending pair is committed leave the pending row for the reconciler and
// are reported as StageError values.
func (p *Pipeline) Run(ctx context.Context, sub Submission) (Outcome, error) {
	// Received → Stored: patient must resolve and the file must pass the
	// allow-list and ceiling before any byte is persisted.
	if sub.File == nil {
		return Outcome{}, fail(StateReceived, blobstore.ErrNoFile)
	}
	ok, err := p.store.PatientExists(ctx, sub.PatientID)
	if err != nil {
		return Outcome{}, fail(StateReceived, err)
	}
	if !ok {
		return Outcome{}, fail(StateReceived, ErrNoPatient)
	}
	if err := p.blob.Validate(sub.Filename, sub.ContentType, sub.Size); err != nil {
		return Outcome{}, fail(StateReceived, err)
	}

	rel, err := p.blob.Save(sub.File, sub.Filename)
	if err != nil {
		return Outcome{}, fail(StateReceived, err)
	}

	// Stored → Pending: the image row and its pending result commit
	// together or not at all.
	imageID, resultID, err := p.store.CreatePendingPair(ctx, sub.PatientID, rel)
	if err != nil {
		return Outcome{}, fail(StateStored, err)
	}

	// Audit trail is write-only and must never sink the request.
	action := fmt.Sprintf("Uploaded image %d for patient %d", imageID, sub.PatientID)
	if err := p.store.AppendLog(ctx, sub.UserID, action); err != nil {
		log.Printf("pipeline: audit log append failed: %v", err)
	}

	// Pending → Classified: any adapter failure is terminal for this
	// request; the result row stays pending for the reconciler sweep.
	pred, err := p.classify(ctx, rel)
	if err != nil {
		return Outcome{ImageID: imageID, ResultID: resultID, ImageURL: rel}, fail(StatePending, err)
	}

	// Classified → Persisted: the single mutation a result ever sees.
	res, err := p.store.FinalizeResult(ctx, resultID, pred)
	if err != nil {
		return Outcome{ImageID: imageID, ResultID: resultID, ImageURL: rel}, fail(StateClassified, err)
	}

	p.publish(ctx, sub.UserID, imageID, res)

	return Outcome{
		ImageID:  imageID,
		ResultID: resultID,
		ImageURL: rel,
		Result:   res,
	}, nil
}

func (p *Pipeline) classify(ctx context.Context, rel string) (inference.Prediction, error) {
	img, err := p.decode(p.blob.Abs(rel))
	if err != nil {
		return inference.Prediction{}, fmt.Errorf("decode stored image: %w", err)
	}
	return p.classifier.Classify(ctx, img)
}

func (p *Pipeline) publish(ctx context.Context, userID, imageID uint64, res model.Result) {
	if p.events == nil {
		return
	}
	ev := queue.AnalysisCompletedEvent{
		ResultID:    res.ID,
		ImageID:     imageID,
		PatientID:   res.PatientID,
		UserID:      userID,
		Diagnosis:   res.Diagnosis,
		Confidence:  res.Confidence,
		Severity:    res.Severity,
		CompletedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.events.PublishAnalysisCompleted(ctx, ev); err != nil {
		log.Printf("pipeline: publish analysis.completed failed: %v", err)
	}
}
