package imaging

import "github.com/ecolens/tierscore/internal/domain/artifact"

// Tensor is a model-ready image: float32 pixels with a leading batch axis of 1.
// Only Decoder creates tensors.
type Tensor struct {
	shape  []int64
	layout artifact.Layout
	data   []float32
	source Source
}

// Source describes the decoded image before normalization.
type Source struct {
	Format string
	Width  int
	Height int
}

// Shape returns the tensor shape, e.g. [1, 224, 224, 3] for NHWC.
func (t *Tensor) Shape() []int64 { return append([]int64(nil), t.shape...) }

// Layout returns the memory order of Data.
func (t *Tensor) Layout() artifact.Layout { return t.layout }

// Data returns the flattened pixel values. Callers must not modify it.
func (t *Tensor) Data() []float32 { return t.data }

// Source returns metadata of the original image.
func (t *Tensor) Source() Source { return t.source }
