// Package inference owns the classifier artifact lifecycle and serves predictions.
package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ecolens/tierscore/internal/domain"
	"github.com/ecolens/tierscore/internal/domain/artifact"
	"github.com/ecolens/tierscore/internal/domain/score"
	"github.com/ecolens/tierscore/internal/domain/vocabulary"
	"github.com/ecolens/tierscore/internal/imaging"
	"github.com/ecolens/tierscore/internal/metrics"
)

// Options configures a Service.
type Options struct {
	// MaxImagePixels bounds uploads before decoding; zero uses imaging.DefaultMaxPixels.
	MaxImagePixels int
	// Cache is optional.
	Cache ResultCache
}

// Info describes the currently published artifact.
type Info struct {
	State      State
	Name       string
	Version    string
	Digest     string
	Labels     []string
	InputShape []int64
	Layout     artifact.Layout
	LoadedAt   time.Time
	LastError  string
}

// loaded is one published artifact with everything derived from its manifest.
type loaded struct {
	manifest   artifact.Manifest
	vocab      vocabulary.Vocabulary
	decoder    *imaging.Decoder
	classifier Classifier
	loadedAt   time.Time
	// cacheID scopes cached results to these exact artifact bytes.
	cacheID string
}

// Service orchestrates decode, classify and score for every request.
type Service struct {
	load   LoadFunc
	opts   Options
	logger *zap.Logger

	state atomic.Int32

	// lifecycle serializes Load, Reload and Unload.
	lifecycle sync.Mutex

	// mu guards current; predictions hold it for reading until they finish.
	mu      sync.RWMutex
	current *loaded
	lastErr error

	// epoch and loads name unsealed artifacts, which have no content digest.
	epoch int64
	loads uint64
}

// New creates a Service in the Unloaded state.
func New(load LoadFunc, opts Options, logger *zap.Logger) *Service {
	s := &Service{load: load, opts: opts, logger: logger, epoch: time.Now().UnixNano()}
	s.setState(Unloaded)
	return s
}

// State returns the current lifecycle state.
func (s *Service) State() State { return State(s.state.Load()) }

func (s *Service) setState(st State) {
	s.state.Store(int32(st))
	metrics.ModelState.Set(float64(st))
}

// Load opens the artifact and publishes it. It is a no-op when an artifact is already published.
// On failure the service stays Unloaded; callers decide whether the error is fatal
// (see domain.IsConfigurationFault).
func (s *Service) Load(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() == Ready {
		return nil
	}

	s.setState(Loading)
	next, err := s.open(ctx)
	if err != nil {
		s.fail(err)
		return err
	}
	s.publish(next)
	return nil
}

// Reload opens the artifact again and swaps it in. The previous artifact keeps serving
// while the new one loads. A failed reload leaves the service Unloaded.
func (s *Service) Reload(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() != Ready {
		s.setState(Loading)
	}
	next, err := s.open(ctx)
	if err != nil {
		s.closeCurrent()
		s.fail(err)
		return err
	}

	prev := s.publish(next)
	if prev != nil {
		s.closeArtifact(prev)
	}
	return nil
}

// Unload waits for in-flight predictions, then releases the artifact.
func (s *Service) Unload() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.closeCurrent()
	s.setState(Unloaded)
}

func (s *Service) open(ctx context.Context) (*loaded, error) {
	m, clf, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	vocab, err := m.Vocabulary()
	if err != nil {
		_ = clf.Close()
		return nil, fmt.Errorf("artifact %s: %w", m.ID(), err)
	}
	if clf.OutputWidth() != vocab.Len() {
		_ = clf.Close()
		return nil, fmt.Errorf("artifact %s: %w", m.ID(), domain.NewVocabularyMismatch(vocab.Len(), clf.OutputWidth()))
	}

	s.loads++
	cacheID := m.Fingerprint()
	if cacheID == "" {
		cacheID = fmt.Sprintf("%s#%x.%d", m.ID(), s.epoch, s.loads)
	}

	return &loaded{
		cacheID:    cacheID,
		manifest:   m,
		vocab:      vocab,
		decoder:    imaging.NewDecoderForManifest(&m, s.opts.MaxImagePixels),
		classifier: clf,
		loadedAt:   time.Now(),
	}, nil
}

// publish swaps next in once no prediction holds the previous artifact and returns the previous one.
func (s *Service) publish(next *loaded) *loaded {
	s.mu.Lock()
	prev := s.current
	s.current = next
	s.lastErr = nil
	s.mu.Unlock()

	s.setState(Ready)
	s.logger.Info("Artifact ready",
		zap.String("artifact", next.manifest.ID()),
		zap.Strings("labels", next.vocab.Labels()),
		zap.Int64s("input_shape", next.manifest.BatchShape()),
	)
	return prev
}

func (s *Service) fail(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	s.setState(Unloaded)
	s.logger.Error("Artifact load failed", zap.Error(err))
}

func (s *Service) closeCurrent() {
	s.mu.Lock()
	prev := s.current
	s.current = nil
	s.mu.Unlock()

	if prev != nil {
		s.closeArtifact(prev)
	}
}

func (s *Service) closeArtifact(a *loaded) {
	if err := a.classifier.Close(); err != nil {
		s.logger.Warn("Failed to close artifact", zap.String("artifact", a.manifest.ID()), zap.Error(err))
		return
	}
	s.logger.Info("Artifact released", zap.String("artifact", a.manifest.ID()))
}

// PredictOption customizes a single prediction.
type PredictOption func(*predictOptions)

type predictOptions struct {
	topK int
}

// WithTopK attaches the k most probable candidates to the result. Zero disables it.
func WithTopK(k int) PredictOption {
	return func(o *predictOptions) { o.topK = k }
}

// Predict classifies one image. Availability is checked before the bytes are decoded,
// so an unloaded service never spends work on the upload.
func (s *Service) Predict(ctx context.Context, data []byte, opts ...PredictOption) (score.Result, error) {
	var po predictOptions
	for _, o := range opts {
		o(&po)
	}

	if s.State() != Ready {
		return score.Result{}, s.failed("model_unavailable", domain.ErrModelUnavailable)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	a := s.current
	if a == nil {
		return score.Result{}, s.failed("model_unavailable", domain.ErrModelUnavailable)
	}

	if po.topK < 0 || po.topK > a.vocab.Len() {
		return score.Result{}, s.failed("invalid_parameter",
			fmt.Errorf("%w: top_k must be between 1 and %d", domain.ErrInvalidParameter, a.vocab.Len()))
	}

	id := a.manifest.ID()
	if s.opts.Cache != nil {
		if cached, ok := s.opts.Cache.Get(ctx, a.cacheID, data); ok {
			metrics.PredictionCacheTotal.WithLabelValues("hit").Inc()
			metrics.PredictionsTotal.WithLabelValues(cached.Label).Inc()
			return withTop(cached, po.topK), nil
		}
		metrics.PredictionCacheTotal.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	tensor, err := a.decoder.Decode(data)
	metrics.DecodeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return score.Result{}, s.failed("invalid_image", err)
	}

	start = time.Now()
	dist, err := a.classifier.Classify(ctx, tensor)
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return score.Result{}, s.failed(reason(err), fmt.Errorf("classify: %w", err))
	}

	result, err := score.Map(dist, a.vocab)
	if err != nil {
		return score.Result{}, s.failed(reason(err), fmt.Errorf("map distribution: %w", err))
	}
	result.Top, err = score.TopK(dist, a.vocab, a.vocab.Len())
	if err != nil {
		return score.Result{}, s.failed(reason(err), fmt.Errorf("rank distribution: %w", err))
	}

	if s.opts.Cache != nil {
		s.opts.Cache.Put(ctx, a.cacheID, data, result)
	}

	metrics.PredictionsTotal.WithLabelValues(result.Label).Inc()
	s.logger.Debug("Prediction completed",
		zap.String("artifact", id),
		zap.String("label", result.Label),
		zap.Float64("confidence", result.Confidence),
		zap.String("format", tensor.Source().Format),
	)
	return withTop(result, po.topK), nil
}

// Info returns a snapshot of the published artifact.
func (s *Service) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := Info{State: s.State()}
	if s.lastErr != nil {
		info.LastError = s.lastErr.Error()
	}
	if a := s.current; a != nil {
		info.Name = a.manifest.Name
		info.Version = a.manifest.Version
		info.Digest = a.manifest.Digest
		info.Labels = a.vocab.Labels()
		info.InputShape = a.manifest.BatchShape()
		info.Layout = a.manifest.Layout
		info.LoadedAt = a.loadedAt
	}
	return info
}

// HealthCheck reports whether predictions can be served.
func (s *Service) HealthCheck(_ context.Context) error {
	if st := s.State(); st != Ready {
		return fmt.Errorf("artifact %s: %w", st, domain.ErrModelUnavailable)
	}
	return nil
}

func (s *Service) failed(reason string, err error) error {
	metrics.PredictionErrorsTotal.WithLabelValues(reason).Inc()
	return err
}

func withTop(r score.Result, k int) score.Result {
	if k <= 0 {
		r.Top = nil
		return r
	}
	r.Top = append([]score.Candidate(nil), r.Top[:min(k, len(r.Top))]...)
	return r
}

func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, domain.ErrVocabularyMismatch):
		return "vocabulary_mismatch"
	case errors.Is(err, domain.ErrInvalidDistribution):
		return "invalid_distribution"
	case errors.Is(err, domain.ErrLabelFormat):
		return "label_format"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "inference"
	}
}
