// Package blurdetector estimates whether an image is blurred by sampling
// many small patches, classifying each patch independently with a
// blurred/focused vision-model classifier, and aggregating the per-patch
// votes into a single blur probability.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		blurdetector "github.com/vudang/BlurDetector"
//		"github.com/vudang/BlurDetector/pkg/imageio"
//		"github.com/vudang/BlurDetector/pkg/ollama"
//	)
//
//	func main() {
//		client, err := ollama.NewClient("http://localhost:11434", "minicpm-v")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		detector := blurdetector.New(client)
//
//		img, err := imageio.Load("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		result, err := detector.Evaluate(context.Background(), img, blurdetector.Options{})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		fmt.Printf("blur probability: %.2f over %d patches\n",
//			result.Probability, len(result.Patches))
//	}
//
// The pipeline runs strictly in order for each evaluation: sample patch
// rectangles, extract patches, classify the batch, aggregate votes. It is
// all-or-nothing: any stage failure fails the whole invocation and no
// partial result is returned. The classifier boundary is the
// classifier.BatchClassifier interface; any conforming implementation is
// interchangeable (pkg/ollama and pkg/llamacpp ship as concrete bindings,
// and tests plug in doubles).
package blurdetector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/vudang/BlurDetector/pkg/aggregator"
	"github.com/vudang/BlurDetector/pkg/classifier"
	"github.com/vudang/BlurDetector/pkg/extractor"
	"github.com/vudang/BlurDetector/pkg/sampler"
	"github.com/vudang/BlurDetector/pkg/types"
)

// Version of the blur detector library.
const Version = "1.0.0"

// Library defaults, overridable per call through Options.
const (
	DefaultPatchCount = 50
	DefaultPatchSize  = 224
	DefaultMaskFactor = 0.7
	DefaultMode       = sampler.ModeRandom
)

// Config holds construction-time configuration for a Detector. Zero values
// fall back to the library defaults.
type Config struct {
	PatchCount int
	PatchSize  int
	MaskFactor float64
	Mode       sampler.Mode
	// Seed fixes the random sampling sequence; 0 seeds from the clock.
	Seed int64
	// Workers caps extraction parallelism; 0 means one per CPU.
	Workers int
	// Logger receives timing and count diagnostics (observability only,
	// never gates success). Nil uses slog.Default().
	Logger *slog.Logger
}

// Options carries per-call overrides for one evaluation. Zero-value fields
// fall back to the Detector's configuration. At most one of Mask and
// MaskFactor may be set; when neither is, the configured mask factor
// applies.
type Options struct {
	PatchCount int
	Mode       sampler.Mode
	MaskFactor float64
	Mask       *image.Rectangle
}

// Outcome is the completion value of an asynchronous evaluation: either a
// result or an error, never both.
type Outcome struct {
	Result types.AggregateResult
	Err    error
}

// Detector wires the sampling, extraction, classification, and aggregation
// stages together. It owns the classifier handle and defaults for its
// lifetime and is read-only after construction, so concurrent evaluations
// need no locking here; the classifier binding must be safe for concurrent
// inference if evaluations overlap.
type Detector struct {
	classifier classifier.BatchClassifier
	sampler    *sampler.Sampler
	extractor  *extractor.Extractor
	config     Config
	logger     *slog.Logger
}

// New creates a Detector with default configuration.
func New(bc classifier.BatchClassifier) *Detector {
	return NewWithConfig(bc, Config{})
}

// NewWithConfig creates a Detector with custom configuration.
func NewWithConfig(bc classifier.BatchClassifier, cfg Config) *Detector {
	if cfg.PatchCount <= 0 {
		cfg.PatchCount = DefaultPatchCount
	}
	if cfg.PatchSize <= 0 {
		cfg.PatchSize = DefaultPatchSize
	}
	if cfg.MaskFactor <= 0 {
		cfg.MaskFactor = DefaultMaskFactor
	}
	if cfg.Mode == "" {
		cfg.Mode = DefaultMode
	}

	s := sampler.New()
	if cfg.Seed != 0 {
		s = sampler.NewWithSeed(cfg.Seed)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{
		classifier: bc,
		sampler:    s,
		extractor:  extractor.NewWithWorkers(cfg.PatchSize, cfg.Workers),
		config:     cfg,
		logger:     logger,
	}
}

// Evaluate runs the full pipeline over one image and returns the aggregate
// blur probability plus the per-patch breakdown. The first failure in any
// stage aborts the invocation; no partial results are ever returned.
func (d *Detector) Evaluate(ctx context.Context, img image.Image, opts Options) (types.AggregateResult, error) {
	mask, err := d.resolveMask(img.Bounds(), opts)
	if err != nil {
		return types.AggregateResult{}, err
	}

	count := opts.PatchCount
	if count <= 0 {
		count = d.config.PatchCount
	}
	mode := opts.Mode
	if mode == "" {
		mode = d.config.Mode
	}

	rects, err := d.sampler.Sample(mask, d.config.PatchSize, count, mode)
	if err != nil {
		return types.AggregateResult{}, err
	}

	extractStart := time.Now()
	patches, err := d.extractor.Extract(ctx, img, rects)
	if err != nil {
		return types.AggregateResult{}, err
	}
	extractDur := time.Since(extractStart)

	classifyStart := time.Now()
	preds, err := d.classifier.Classify(ctx, patches)
	if err != nil {
		return types.AggregateResult{}, fmt.Errorf("%w: %v", classifier.ErrClassificationFailed, err)
	}
	if len(preds) != len(patches) {
		return types.AggregateResult{}, fmt.Errorf("%w: got %d predictions for %d patches",
			classifier.ErrClassificationFailed, len(preds), len(patches))
	}
	classifyDur := time.Since(classifyStart)

	result, err := aggregator.Aggregate(patches, preds, rects)
	if err != nil {
		return types.AggregateResult{}, err
	}

	d.logger.Debug("evaluation complete",
		"patches", len(result.Patches),
		"probability", result.Probability,
		"extract_duration", extractDur,
		"classify_duration", classifyDur,
	)
	return result, nil
}

// EvaluateAsync runs Evaluate on a background goroutine and returns a
// buffered one-shot channel carrying the outcome. The pipeline stages still
// run strictly in sequence before the outcome is observable.
func (d *Detector) EvaluateAsync(ctx context.Context, img image.Image, opts Options) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		result, err := d.Evaluate(ctx, img, opts)
		out <- Outcome{Result: result, Err: err}
		close(out)
	}()
	return out
}

// resolveMask turns the per-call region options into a concrete mask
// rectangle. An explicit rectangle and a mask factor are mutually exclusive.
func (d *Detector) resolveMask(bounds image.Rectangle, opts Options) (image.Rectangle, error) {
	if opts.Mask != nil && opts.MaskFactor != 0 {
		return image.Rectangle{}, errors.New("set either an explicit mask or a mask factor, not both")
	}
	if opts.Mask != nil {
		if !opts.Mask.In(bounds) {
			return image.Rectangle{}, fmt.Errorf("%w: mask %v outside image bounds %v",
				sampler.ErrInvalidSamplingRegion, *opts.Mask, bounds)
		}
		return *opts.Mask, nil
	}

	factor := opts.MaskFactor
	if factor == 0 {
		factor = d.config.MaskFactor
	}
	return sampler.MaskFromFactor(bounds, factor)
}
