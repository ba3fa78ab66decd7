package aggregator

import (
	"errors"
	"fmt"
	"image"

	"github.com/vudang/BlurDetector/pkg/types"
)

var (
	// ErrUnknownLabel means the classifier produced a label outside the
	// fixed {blurred, focused} set, which indicates a model/label-set
	// mismatch. Fatal for the invocation.
	ErrUnknownLabel = errors.New("unknown label")

	// ErrEmptyPredictionSet means zero predictions reached aggregation,
	// which signals a pipeline misconfiguration.
	ErrEmptyPredictionSet = errors.New("empty prediction set")
)

// Aggregate combines per-patch predictions into a single blur probability
// plus the ordered per-patch breakdown.
//
// Each patch contributes exactly one vote equal to its top label, regardless
// of confidence margin: probability = blurred / (blurred + focused). The
// three input slices must be aligned index-for-index; any length mismatch is
// an integrity error.
func Aggregate(patches []image.Image, preds []types.Prediction, rects []image.Rectangle) (types.AggregateResult, error) {
	if len(preds) != len(patches) || len(preds) != len(rects) {
		return types.AggregateResult{}, fmt.Errorf(
			"aggregation input mismatch: %d patches, %d predictions, %d rectangles",
			len(patches), len(preds), len(rects))
	}
	if len(preds) == 0 {
		return types.AggregateResult{}, ErrEmptyPredictionSet
	}

	counts := make(map[types.Label]int, 2)
	results := make([]types.PerPatchResult, len(preds))
	for i, pred := range preds {
		if !pred.Label.Known() {
			return types.AggregateResult{}, fmt.Errorf("%w: %q at patch %d", ErrUnknownLabel, pred.Label, i)
		}
		counts[pred.Label]++
		results[i] = types.PerPatchResult{
			Image:      patches[i],
			Label:      pred.Label,
			Confidence: pred.Confidence[pred.Label],
			Rect:       rects[i],
		}
	}

	total := counts[types.LabelBlurred] + counts[types.LabelFocused]
	return types.AggregateResult{
		Probability: float64(counts[types.LabelBlurred]) / float64(total),
		Patches:     results,
	}, nil
}
