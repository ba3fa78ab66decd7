package classifier

import (
	"context"
	"errors"
	"image"

	"github.com/vudang/BlurDetector/pkg/types"
)

// ErrClassificationFailed wraps any inference backend error. A failed batch
// fails the whole evaluation; partial results are never returned.
var ErrClassificationFailed = errors.New("classification failed")

// BatchClassifier runs blurred/focused inference over a batch of fixed-size
// patches, returning one prediction per patch in input order. Any conforming
// implementation is interchangeable; implementations must be safe for
// concurrent calls if concurrent evaluations are wanted.
type BatchClassifier interface {
	Classify(ctx context.Context, patches []image.Image) ([]types.Prediction, error)
}
