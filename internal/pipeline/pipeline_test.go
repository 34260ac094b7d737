package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/orthoview/kneescan/internal/blobstore"
	"github.com/orthoview/kneescan/internal/inference"
	"github.com/orthoview/kneescan/internal/model"
	"github.com/orthoview/kneescan/internal/queue"
)

// fakeStore records every mutation so tests can assert exactly what was
// written and in which state the request stopped.
type fakeStore struct {
	patients map[uint64]bool

	nextImageID  uint64
	nextResultID uint64
	pairs        []pendingPair
	finalized    map[uint64]inference.Prediction
	logs         []string

	pairErr     error
	finalizeErr error
}

type pendingPair struct {
	patientID uint64
	imageURL  string
	imageID   uint64
	resultID  uint64
}

func newFakeStore(patientIDs ...uint64) *fakeStore {
	s := &fakeStore{
		patients:  map[uint64]bool{},
		finalized: map[uint64]inference.Prediction{},
	}
	for _, id := range patientIDs {
		s.patients[id] = true
	}
	return s
}

func (s *fakeStore) PatientExists(ctx context.Context, id uint64) (bool, error) {
	return s.patients[id], nil
}

func (s *fakeStore) CreatePendingPair(ctx context.Context, patientID uint64, imageURL string) (uint64, uint64, error) {
	if s.pairErr != nil {
		return 0, 0, s.pairErr
	}
	s.nextImageID++
	s.nextResultID++
	p := pendingPair{patientID: patientID, imageURL: imageURL, imageID: s.nextImageID, resultID: s.nextResultID}
	s.pairs = append(s.pairs, p)
	return p.imageID, p.resultID, nil
}

func (s *fakeStore) FinalizeResult(ctx context.Context, resultID uint64, pred inference.Prediction) (model.Result, error) {
	if s.finalizeErr != nil {
		return model.Result{}, s.finalizeErr
	}
	s.finalized[resultID] = pred
	for _, p := range s.pairs {
		if p.resultID == resultID {
			return model.Result{
				ID:         resultID,
				PatientID:  p.patientID,
				ImageID:    p.imageID,
				Diagnosis:  pred.Label,
				Confidence: inference.Score(pred.Confidence),
				Severity:   inference.SeverityFor(pred.Confidence),
			}, nil
		}
	}
	return model.Result{}, errors.New("unknown result id")
}

func (s *fakeStore) AppendLog(ctx context.Context, userID uint64, action string) error {
	s.logs = append(s.logs, action)
	return nil
}

// fakeBlob stores nothing; it hands back deterministic relative paths
// and counts saves so tests can tell whether bytes were persisted.
type fakeBlob struct {
	store blobstore.Store
	saves int

	saveErr error
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{store: blobstore.Store{Dir: "uploads", MaxBytes: 10 << 20}}
}

func (b *fakeBlob) Validate(filename, contentType string, size int64) error {
	return b.store.Validate(filename, contentType, size)
}

func (b *fakeBlob) Save(src io.Reader, filename string) (string, error) {
	if b.saveErr != nil {
		return "", b.saveErr
	}
	if _, err := io.Copy(io.Discard, src); err != nil {
		return "", err
	}
	b.saves++
	return "processed/processed_test.jpg", nil
}

func (b *fakeBlob) Abs(rel string) string { return "uploads/" + rel }

type fakeClassifier struct {
	pred  inference.Prediction
	err   error
	calls int
}

func (c *fakeClassifier) Classify(ctx context.Context, img image.Image) (inference.Prediction, error) {
	c.calls++
	if c.err != nil {
		return inference.Prediction{}, c.err
	}
	return c.pred, nil
}

type fakePublisher struct {
	events []queue.AnalysisCompletedEvent
	err    error
}

func (p *fakePublisher) PublishAnalysisCompleted(ctx context.Context, ev queue.AnalysisCompletedEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func stubDecode(string) (image.Image, error) {
	return imaging.New(8, 8, color.Gray{Y: 128}), nil
}

func submission(patientID uint64) Submission {
	return Submission{
		PatientID:   patientID,
		UserID:      3,
		Filename:    "knee.jpg",
		ContentType: "image/jpeg",
		Size:        2048,
		File:        strings.NewReader("fake image bytes"),
	}
}

func newTestPipeline(store *fakeStore, blob *fakeBlob, cls *fakeClassifier, pub EventPublisher) *Pipeline {
	p := New(store, blob, cls, pub)
	p.decode = stubDecode
	return p
}

func TestDefaultDecodeReadsStoredImage(t *testing.T) {
	// Both constructors wire a real file decoder by default; only tests
	// swap it out. Decode a freshly written image through each.
	path := filepath.Join(t.TempDir(), "knee.jpg")
	require.NoError(t, imaging.Save(imaging.New(16, 16, color.Gray{Y: 90}), path))

	p := New(newFakeStore(1), newFakeBlob(), &fakeClassifier{}, nil)
	img, err := p.decode(path)
	require.NoError(t, err)
	require.Equal(t, 16, img.Bounds().Dx())

	r := NewReconciler(&fakePendingStore{}, newFakeBlob(), &fakeClassifier{})
	img, err = r.decode(path)
	require.NoError(t, err)
	require.Equal(t, 16, img.Bounds().Dy())
}

func TestRunSuccess(t *testing.T) {
	store := newFakeStore(1)
	blob := newFakeBlob()
	cls := &fakeClassifier{pred: inference.Prediction{Label: "severe", Confidence: 0.92}}
	pub := &fakePublisher{}
	p := newTestPipeline(store, blob, cls, pub)

	out, err := p.Run(context.Background(), submission(1))
	require.NoError(t, err)
	require.Equal(t, uint64(1), out.ImageID)
	require.Equal(t, uint64(1), out.ResultID)
	require.Equal(t, "processed/processed_test.jpg", out.ImageURL)
	require.Equal(t, "severe", out.Result.Diagnosis)
	require.Equal(t, float64(92), out.Result.Confidence)
	require.Equal(t, model.SeverityHigh, out.Result.Severity)

	// One committed pair, finalized exactly once, audit line appended,
	// completion event published.
	require.Len(t, store.pairs, 1)
	require.Contains(t, store.finalized, out.ResultID)
	require.Len(t, store.logs, 1)
	require.Len(t, pub.events, 1)
	require.Equal(t, out.ResultID, pub.events[0].ResultID)
	require.Equal(t, "severe", pub.events[0].Diagnosis)
}

func TestValidateFileWritesNothing(t *testing.T) {
	store := newFakeStore(1)
	blob := newFakeBlob()
	p := newTestPipeline(store, blob, &fakeClassifier{}, nil)

	require.NoError(t, p.ValidateFile("knee.jpg", "image/jpeg", 2048))

	err := p.ValidateFile("knee.jpg", "image/jpeg", blob.store.MaxBytes+1)
	require.ErrorIs(t, err, blobstore.ErrTooLarge)
	err = p.ValidateFile("report.pdf", "application/pdf", 10)
	require.ErrorIs(t, err, blobstore.ErrUnsupportedType)

	require.Zero(t, blob.saves)
	require.Empty(t, store.pairs)
}

func TestRunNoFile(t *testing.T) {
	store := newFakeStore(1)
	p := newTestPipeline(store, newFakeBlob(), &fakeClassifier{}, nil)

	sub := submission(1)
	sub.File = nil
	_, err := p.Run(context.Background(), sub)

	require.ErrorIs(t, err, blobstore.ErrNoFile)
	var stage *StageError
	require.ErrorAs(t, err, &stage)
	require.Equal(t, StateReceived, stage.State)
	require.Empty(t, store.pairs)
}

func TestRunUnknownPatient(t *testing.T) {
	store := newFakeStore(1)
	blob := newFakeBlob()
	p := newTestPipeline(store, blob, &fakeClassifier{}, nil)

	_, err := p.Run(context.Background(), submission(99))

	require.ErrorIs(t, err, ErrNoPatient)
	// Rejected before any byte or row is written.
	require.Zero(t, blob.saves)
	require.Empty(t, store.pairs)
	require.Empty(t, store.logs)
}

func TestRunValidationRejectsBeforeStore(t *testing.T) {
	store := newFakeStore(1)
	blob := newFakeBlob()
	p := newTestPipeline(store, blob, &fakeClassifier{}, nil)

	sub := submission(1)
	sub.Filename = "report.pdf"
	sub.ContentType = "application/pdf"
	_, err := p.Run(context.Background(), sub)
	require.ErrorIs(t, err, blobstore.ErrUnsupportedType)

	sub = submission(1)
	sub.Size = blob.store.MaxBytes + 1
	_, err = p.Run(context.Background(), sub)
	require.ErrorIs(t, err, blobstore.ErrTooLarge)

	require.Zero(t, blob.saves)
	require.Empty(t, store.pairs)
}

func TestRunClassifierFailureLeavesPending(t *testing.T) {
	store := newFakeStore(1)
	cls := &fakeClassifier{err: errors.New("model exploded")}
	p := newTestPipeline(store, newFakeBlob(), cls, nil)

	out, err := p.Run(context.Background(), submission(1))

	var stage *StageError
	require.ErrorAs(t, err, &stage)
	require.Equal(t, StatePending, stage.State)

	// The pair was committed, nothing was finalized, and the ids are
	// still reported so the caller can reference the pending row.
	require.Len(t, store.pairs, 1)
	require.Empty(t, store.finalized)
	require.Equal(t, store.pairs[0].resultID, out.ResultID)
	require.Equal(t, store.pairs[0].imageID, out.ImageID)
}

func TestRunFinalizeFailure(t *testing.T) {
	store := newFakeStore(1)
	store.finalizeErr = errors.New("db gone")
	p := newTestPipeline(store, newFakeBlob(), &fakeClassifier{pred: inference.Prediction{Label: "mild", Confidence: 0.4}}, nil)

	_, err := p.Run(context.Background(), submission(1))

	var stage *StageError
	require.ErrorAs(t, err, &stage)
	require.Equal(t, StateClassified, stage.State)
	require.Len(t, store.pairs, 1)
}

func TestRunPublishFailureDoesNotFailRequest(t *testing.T) {
	store := newFakeStore(1)
	pub := &fakePublisher{err: errors.New("broker down")}
	p := newTestPipeline(store, newFakeBlob(), &fakeClassifier{pred: inference.Prediction{Label: "mild", Confidence: 0.4}}, pub)

	_, err := p.Run(context.Background(), submission(1))
	require.NoError(t, err)
}

func TestRunResubmissionCreatesIndependentPairs(t *testing.T) {
	store := newFakeStore(1)
	p := newTestPipeline(store, newFakeBlob(), &fakeClassifier{pred: inference.Prediction{Label: "mild", Confidence: 0.4}}, nil)

	first, err := p.Run(context.Background(), submission(1))
	require.NoError(t, err)
	second, err := p.Run(context.Background(), submission(1))
	require.NoError(t, err)

	require.NotEqual(t, first.ResultID, second.ResultID)
	require.NotEqual(t, first.ImageID, second.ImageID)
	require.Len(t, store.pairs, 2)
	require.Len(t, store.finalized, 2)
}
