package types

import "image"

// Label is a class assigned to a single patch by the classifier.
type Label string

// The fixed label set produced by a conforming classifier.
const (
	LabelBlurred Label = "blurred"
	LabelFocused Label = "focused"
)

// Labels returns the full label set in a stable order.
func Labels() []Label {
	return []Label{LabelBlurred, LabelFocused}
}

// Known reports whether l belongs to the fixed label set.
func (l Label) Known() bool {
	return l == LabelBlurred || l == LabelFocused
}

// Prediction is the classifier output for one patch: the top label plus a
// confidence score per label in [0, 1].
type Prediction struct {
	Label      Label             `json:"label"`
	Confidence map[Label]float64 `json:"confidence"`
}

// PerPatchResult pairs one extracted patch with its classification and the
// source-image rectangle it was sampled from.
type PerPatchResult struct {
	Image      image.Image     `json:"-"`
	Label      Label           `json:"label"`
	Confidence float64         `json:"confidence"`
	Rect       image.Rectangle `json:"rect"`
}

// AggregateResult is the final outcome of one evaluation: a blur probability
// in [0, 1] plus the ordered per-patch breakdown (order matches sampling).
type AggregateResult struct {
	Probability float64          `json:"probability"`
	Patches     []PerPatchResult `json:"patches"`
}
