package extractor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

// ErrExtractionFailed is returned when a sampled rectangle cannot be cropped
// from the source image. Given a correct sampler this indicates an internal
// invariant violation, not a user error.
var ErrExtractionFailed = errors.New("patch extraction failed")

// Extractor crops sampled rectangles out of a source image and resizes them
// to the classifier's fixed input size.
type Extractor struct {
	size    int
	workers int
}

// New creates an Extractor producing size x size patches, extracting with
// one worker per CPU.
func New(size int) *Extractor {
	return NewWithWorkers(size, runtime.NumCPU())
}

// NewWithWorkers creates an Extractor with an explicit extraction
// parallelism. workers < 1 falls back to sequential extraction.
func NewWithWorkers(size, workers int) *Extractor {
	if workers < 1 {
		workers = 1
	}
	return &Extractor{size: size, workers: workers}
}

// Size returns the side length of the patches this extractor produces.
func (e *Extractor) Size() int {
	return e.size
}

// Extract returns one patch per rectangle, in the same order. Patches are
// independent, so extraction runs in parallel; results keep their index.
// Resizing uses Lanczos resampling and only happens when a rectangle's
// dimensions differ from the target size.
func (e *Extractor) Extract(ctx context.Context, img image.Image, rects []image.Rectangle) ([]image.Image, error) {
	bounds := img.Bounds()
	patches := make([]image.Image, len(rects))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, rect := range rects {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !rect.In(bounds) {
				return fmt.Errorf("%w: rectangle %v outside image bounds %v", ErrExtractionFailed, rect, bounds)
			}
			patch := imaging.Crop(img, rect)
			if patch.Bounds().Dx() != e.size || patch.Bounds().Dy() != e.size {
				patch = imaging.Resize(patch, e.size, e.size, imaging.Lanczos)
			}
			patches[i] = patch
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return patches, nil
}
