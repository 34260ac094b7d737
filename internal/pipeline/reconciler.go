package pipeline

import (
	"context"
	"image"
	"log"
	"time"

	"github.com/disintegration/imaging"

	"github.com/orthoview/kneescan/internal/inference"
	"github.com/orthoview/kneescan/internal/model"
	"github.com/orthoview/kneescan/internal/repository"
)

// PendingStore is the slice of the record store the reconciler needs:
// finding results an adapter failure left in the pending state and
// applying the same finalize transition the request path uses.
type PendingStore interface {
	ListStuckPending(ctx context.Context, olderThan time.Duration, limit int) ([]repository.PendingResult, error)
	FinalizeResult(ctx context.Context, resultID uint64, pred inference.Prediction) (model.Result, error)
}

// Reconciler periodically sweeps results stuck in the pending state and
// retries their classification, keyed by result id. The classify-and-
// update step is independently retryable, so re-running it is safe: the
// guarded UPDATE in the result repository makes the transition
// exactly-once even if a concurrent request finalizes first.
type Reconciler struct {
	store      PendingStore
	blob       BlobStore
	classifier inference.Classifier

	// Interval between sweeps, minimum age before a pending result is
	// considered stuck, and the per-sweep batch cap.
	Interval  time.Duration
	MinAge    time.Duration
	BatchSize int

	decode func(path string) (image.Image, error)
}

// NewReconciler constructs a Reconciler with the default cadence: sweep
// every minute for results pending longer than five minutes, at most 20
// per sweep.
func NewReconciler(store PendingStore, blob BlobStore, classifier inference.Classifier) *Reconciler {
	return &Reconciler{
		store:      store,
		blob:       blob,
		classifier: classifier,
		Interval:   time.Minute,
		MinAge:     5 * time.Minute,
		BatchSize:  20,
		decode:     func(path string) (image.Image, error) { return imaging.Open(path) },
	}
}

// Start runs the sweep loop until the context is cancelled. Intended to
// be launched as a goroutine from main.
func (r *Reconciler) Start(ctx context.Context) {
	t := time.NewTicker(r.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := r.Sweep(ctx); err != nil {
				log.Printf("reconciler: sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("reconciler: recovered %d pending result(s)", n)
			}
		}
	}
}

// Sweep performs one pass and returns how many results were finalized.
// Individual failures are logged and skipped so one undecodable image
// cannot stall the rest of the batch.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	stuck, err := r.store.ListStuckPending(ctx, r.MinAge, r.BatchSize)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, p := range stuck {
		img, err := r.decode(r.blob.Abs(p.ImageURL))
		if err != nil {
			log.Printf("reconciler: decode result %d image: %v", p.ResultID, err)
			continue
		}
		pred, err := r.classifier.Classify(ctx, img)
		if err != nil {
			log.Printf("reconciler: classify result %d: %v", p.ResultID, err)
			continue
		}
		if _, err := r.store.FinalizeResult(ctx, p.ResultID, pred); err != nil {
			log.Printf("reconciler: finalize result %d: %v", p.ResultID, err)
			continue
		}
		recovered++
	}
	return recovered, nil
}
