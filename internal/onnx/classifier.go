package onnx

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/ecolens/tierscore/internal/domain"
	"github.com/ecolens/tierscore/internal/domain/artifact"
	"github.com/ecolens/tierscore/internal/imaging"
)

// Options configures how an artifact is opened.
type Options struct {
	// Sessions is the number of independent sessions. Each session serves one
	// request at a time; 1 serializes all inference behind a single session.
	Sessions       int
	IntraOpThreads int
	Logger         *zap.Logger
}

// Classifier runs an ONNX artifact through a bounded pool of sessions.
type Classifier struct {
	manifest    artifact.Manifest
	inputShape  []int64
	outputWidth int
	logger      *zap.Logger

	mu     sync.RWMutex
	closed bool
	pool   chan runner
	size   int
}

// Open inspects the model, checks it against the manifest and creates the session pool.
func Open(m artifact.Manifest, opts Options) (*Classifier, error) {
	if opts.Sessions <= 0 {
		opts.Sessions = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	inputs, outputs, err := ort.GetInputOutputInfo(m.ModelPath())
	if err != nil {
		return nil, fmt.Errorf("inspect model %s: %w", m.ModelPath(), err)
	}

	in, err := selectIO(inputs, m.InputName, "input")
	if err != nil {
		return nil, err
	}
	out, err := selectIO(outputs, m.OutputName, "output")
	if err != nil {
		return nil, err
	}

	shape := m.BatchShape()
	if !shapeCompatible(in.Dimensions, shape) {
		return nil, fmt.Errorf("%w: model input %q has shape %v, manifest declares %v",
			domain.ErrInvalidManifest, in.Name, in.Dimensions, shape)
	}

	width := len(m.Labels)
	if n := len(out.Dimensions); n > 0 && out.Dimensions[n-1] > 0 {
		if int(out.Dimensions[n-1]) != width {
			return nil, domain.NewVocabularyMismatch(width, int(out.Dimensions[n-1]))
		}
	}

	cfg := sessionConfig{
		modelPath:      m.ModelPath(),
		inputName:      in.Name,
		outputName:     out.Name,
		inputShape:     shape,
		outputWidth:    width,
		intraOpThreads: opts.IntraOpThreads,
	}

	runners := make([]runner, 0, opts.Sessions)
	for i := 0; i < opts.Sessions; i++ {
		s, err := newSession(cfg)
		if err != nil {
			for _, r := range runners {
				_ = r.Destroy()
			}
			return nil, fmt.Errorf("session %d: %w", i, err)
		}
		runners = append(runners, s)
	}

	opts.Logger.Info("ONNX artifact opened",
		zap.String("artifact", m.ID()),
		zap.String("model", m.ModelPath()),
		zap.String("input", in.Name),
		zap.String("output", out.Name),
		zap.Int64s("input_shape", shape),
		zap.Int("classes", width),
		zap.Int("sessions", len(runners)),
	)

	return newClassifier(m, runners, width, opts.Logger), nil
}

func newClassifier(m artifact.Manifest, runners []runner, width int, logger *zap.Logger) *Classifier {
	pool := make(chan runner, len(runners))
	for _, r := range runners {
		pool <- r
	}
	return &Classifier{
		manifest:    m,
		inputShape:  m.BatchShape(),
		outputWidth: width,
		logger:      logger,
		pool:        pool,
		size:        len(runners),
	}
}

// Classify runs one forward pass and returns the class distribution.
// It waits for a free session; ctx cancellation aborts the wait only.
func (c *Classifier) Classify(ctx context.Context, t *imaging.Tensor) (domain.Distribution, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, fmt.Errorf("classifier %s closed: %w", c.manifest.ID(), domain.ErrModelUnavailable)
	}

	if !slices.Equal(t.Shape(), c.inputShape) {
		return nil, fmt.Errorf("tensor shape %v does not match model input %v", t.Shape(), c.inputShape)
	}

	var r runner
	select {
	case r = <-c.pool:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for session: %w", ctx.Err())
	}
	raw, err := c.run(r, t.Data())
	if err != nil {
		return nil, err
	}

	if len(raw) != c.outputWidth {
		return nil, domain.NewVocabularyMismatch(c.outputWidth, len(raw))
	}
	return toDistribution(raw, c.manifest.Output)
}

// run hands r back to the pool even if the session panics.
func (c *Classifier) run(r runner, input []float32) ([]float32, error) {
	defer func() { c.pool <- r }()
	return r.Run(input)
}

// OutputWidth returns the number of classes.
func (c *Classifier) OutputWidth() int { return c.outputWidth }

// Close waits for in-flight classifications and destroys all sessions.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for i := 0; i < c.size; i++ {
		r := <-c.pool
		if err := r.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	c.logger.Info("ONNX artifact closed", zap.String("artifact", c.manifest.ID()))
	return errors.Join(errs...)
}

func selectIO(infos []ort.InputOutputInfo, name, kind string) (ort.InputOutputInfo, error) {
	if len(infos) == 0 {
		return ort.InputOutputInfo{}, fmt.Errorf("model has no %s", kind)
	}
	if name == "" {
		return infos[0], nil
	}
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return ort.InputOutputInfo{}, fmt.Errorf("%w: model has no %s %q (have %v)",
		domain.ErrInvalidManifest, kind, name, names)
}

// shapeCompatible compares shapes, treating non-positive model dimensions as dynamic.
func shapeCompatible(model ort.Shape, want []int64) bool {
	if len(model) != len(want) {
		return false
	}
	for i, d := range model {
		if d > 0 && d != want[i] {
			return false
		}
	}
	return true
}
