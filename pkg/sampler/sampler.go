package sampler

import (
	"errors"
	"fmt"
	"image"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Mode selects the spatial strategy used to place patches inside the mask.
type Mode string

const (
	// ModeRandom draws patch positions independently and uniformly at
	// random. Overlapping or identical rectangles are permitted.
	ModeRandom Mode = "random"
	// ModeUniform lays patches out on a near-regular grid covering the
	// mask, trading exact patch count for even spatial coverage.
	ModeUniform Mode = "uniform"
)

// Valid reports whether m is a supported sampling mode.
func (m Mode) Valid() bool {
	return m == ModeRandom || m == ModeUniform
}

// ErrInvalidSamplingRegion is returned when the sampling mask cannot hold a
// single patch, or when the sampling inputs are otherwise unusable.
var ErrInvalidSamplingRegion = errors.New("invalid sampling region")

// Sampler produces patch rectangles inside a mask region.
//
// Safe for concurrent use: the random source is the only mutable state and
// is guarded by a mutex.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Sampler seeded from the current time.
func New() *Sampler {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed creates a Sampler with a fixed seed. Same seed plus same
// inputs yields the same rectangle sequence in random mode, which is what
// tests rely on.
func NewWithSeed(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// Sample returns patch rectangles of patchSize x patchSize, each fully
// contained in mask.
//
// In random mode exactly count rectangles are returned. In uniform mode the
// realized count may deviate from count in favor of even coverage; the
// deviation never exceeds the number of patches along the shorter grid axis.
func (s *Sampler) Sample(mask image.Rectangle, patchSize, count int, mode Mode) ([]image.Rectangle, error) {
	if patchSize <= 0 {
		return nil, fmt.Errorf("%w: patch size %d must be positive", ErrInvalidSamplingRegion, patchSize)
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: patch count %d must be positive", ErrInvalidSamplingRegion, count)
	}
	if mask.Dx() < patchSize || mask.Dy() < patchSize {
		return nil, fmt.Errorf("%w: mask %dx%d smaller than patch size %d",
			ErrInvalidSamplingRegion, mask.Dx(), mask.Dy(), patchSize)
	}

	switch mode {
	case ModeRandom:
		return s.sampleRandom(mask, patchSize, count), nil
	case ModeUniform:
		return sampleUniform(mask, patchSize, count), nil
	default:
		return nil, fmt.Errorf("%w: unknown sampling mode %q", ErrInvalidSamplingRegion, mode)
	}
}

func (s *Sampler) sampleRandom(mask image.Rectangle, patchSize, count int) []image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()

	spanX := mask.Dx() - patchSize + 1
	spanY := mask.Dy() - patchSize + 1

	rects := make([]image.Rectangle, count)
	for i := range rects {
		x := mask.Min.X + s.rng.Intn(spanX)
		y := mask.Min.Y + s.rng.Intn(spanY)
		rects[i] = image.Rect(x, y, x+patchSize, y+patchSize)
	}
	return rects
}

// sampleUniform derives a rows x cols grid from the requested count and the
// mask aspect ratio. The shorter axis is sized first from the aspect ratio,
// then the longer axis is sized by division, which keeps the realized count
// rows*cols within the shorter axis length of the requested count.
func sampleUniform(mask image.Rectangle, patchSize, count int) []image.Rectangle {
	aspect := float64(mask.Dx()) / float64(mask.Dy())

	var rows, cols int
	if aspect >= 1 {
		rows = gridAxis(math.Sqrt(float64(count) / aspect))
		cols = gridAxis(float64(count) / float64(rows))
	} else {
		cols = gridAxis(math.Sqrt(float64(count) * aspect))
		rows = gridAxis(float64(count) / float64(cols))
	}

	rects := make([]image.Rectangle, 0, rows*cols)
	for r := 0; r < rows; r++ {
		y := gridOffset(mask.Min.Y, mask.Dy(), patchSize, r, rows)
		for c := 0; c < cols; c++ {
			x := gridOffset(mask.Min.X, mask.Dx(), patchSize, c, cols)
			rects = append(rects, image.Rect(x, y, x+patchSize, y+patchSize))
		}
	}
	return rects
}

// gridAxis rounds an ideal axis length to a whole number of patches,
// clamping to at least one.
func gridAxis(ideal float64) int {
	n := int(math.Round(ideal))
	if n < 1 {
		n = 1
	}
	return n
}

// gridOffset spreads index i of n patches across span so the first patch
// touches the leading edge and the last touches the trailing edge.
func gridOffset(min, span, patchSize, i, n int) int {
	if n == 1 {
		return min + (span-patchSize)/2
	}
	return min + i*(span-patchSize)/(n-1)
}

// MaskFromFactor resolves a mask factor to a centered sub-rectangle of
// bounds. A factor of 1.0 covers bounds exactly; 0.5 yields a rectangle
// with half the width and height, centered in bounds.
func MaskFromFactor(bounds image.Rectangle, factor float64) (image.Rectangle, error) {
	if factor <= 0 || factor > 1 {
		return image.Rectangle{}, fmt.Errorf("%w: mask factor %v outside (0, 1]", ErrInvalidSamplingRegion, factor)
	}

	w := int(math.Round(float64(bounds.Dx()) * factor))
	h := int(math.Round(float64(bounds.Dy()) * factor))
	x := bounds.Min.X + (bounds.Dx()-w)/2
	y := bounds.Min.Y + (bounds.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h), nil
}
