package tierscore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	dbValkey "github.com/ecolens/tierscore/internal/db/valkey"
	"github.com/ecolens/tierscore/internal/domain/artifact"
	"github.com/ecolens/tierscore/internal/domain/score"
	"github.com/ecolens/tierscore/internal/onnx"
	"github.com/ecolens/tierscore/internal/repository/predcache"
	healthuc "github.com/ecolens/tierscore/internal/usecase/health"
	inferenceuc "github.com/ecolens/tierscore/internal/usecase/inference"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultCacheTTL         = time.Hour
)

// Internal interface so tests can swap the inference service.
type inferenceUseCase interface {
	Predict(ctx context.Context, data []byte, opts ...inferenceuc.PredictOption) (score.Result, error)
	Reload(ctx context.Context) error
	Info() inferenceuc.Info
	Unload()
}

// Client is the tierscore SDK entry point.
type Client struct {
	inference inferenceUseCase
	healthSvc healthUseCase
	closers   []func() error
	obs       *observer
}

// New loads the artifact named by WithManifest and returns a ready Client.
// The provided context bounds the cache readiness check and the artifact load.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		sessions: 1,
		cacheTTL: defaultCacheTTL,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.manifest == "" {
		return nil, errors.New("tierscore: manifest path required (use WithManifest)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	c := &Client{obs: obs}

	svcOpts := inferenceuc.Options{MaxImagePixels: cfg.maxImagePixels}
	var cache healthuc.CachePinger
	if len(cfg.addrs) > 0 {
		store, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("tierscore: create valkey store: %w", err)
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("tierscore: cache not ready: %w", err)
		}
		svcOpts.Cache = predcache.New(store, cfg.cacheTTL, zap.NewNop())
		cache = store
		c.closers = append(c.closers, func() error {
			store.Close()
			return nil
		})
	}

	rt := onnx.NewRuntime(cfg.runtimeLibrary)
	loader := onnx.NewLoader(rt, cfg.manifest, onnx.Options{
		Sessions:       cfg.sessions,
		IntraOpThreads: cfg.intraOpThreads,
	})
	svc := inferenceuc.New(loadFunc(loader), svcOpts, zap.NewNop())
	c.inference = svc
	c.healthSvc = healthuc.New(svc, cache)
	// Runtime goes last: every classifier is closed by Unload before it.
	c.closers = append([]func() error{rt.Close}, c.closers...)

	start := time.Now()
	err = svc.Load(ctx)
	obs.observe("load", start, err)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("tierscore: load artifact: %w", err)
	}
	return c, nil
}

func loadFunc(l *onnx.Loader) inferenceuc.LoadFunc {
	return func(ctx context.Context) (artifact.Manifest, inferenceuc.Classifier, error) {
		m, clf, err := l.Load(ctx)
		if err != nil {
			return m, nil, err
		}
		return m, clf, nil
	}
}

// Close releases the artifact, the runtime and the cache connection.
func (c *Client) Close() error {
	if c.inference != nil {
		c.inference.Unload()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Predict classifies one encoded image (JPEG, PNG, GIF, BMP, TIFF or WebP).
func (c *Client) Predict(ctx context.Context, image []byte, opts ...PredictOption) (p Prediction, err error) {
	start := time.Now()
	defer func() { c.obs.observe("predict", start, err) }()

	var pc predictConfig
	for _, o := range opts {
		o(&pc)
	}
	var ucOpts []inferenceuc.PredictOption
	if pc.topK != 0 {
		ucOpts = append(ucOpts, inferenceuc.WithTopK(pc.topK))
	}

	r, err := c.inference.Predict(ctx, image, ucOpts...)
	if err != nil {
		return Prediction{}, fmt.Errorf("predict: %w", err)
	}
	return toPrediction(r), nil
}

// PredictFile reads and classifies the image at path.
func (c *Client) PredictFile(ctx context.Context, path string, opts ...PredictOption) (Prediction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Prediction{}, fmt.Errorf("read image: %w", err)
	}
	return c.Predict(ctx, data, opts...)
}

// Reload re-reads the manifest and swaps the artifact in.
// On failure the client stays unavailable until a later Reload succeeds.
func (c *Client) Reload(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("reload", start, err) }()

	if err = c.inference.Reload(ctx); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// Model describes the loaded artifact.
func (c *Client) Model() ModelInfo {
	return toModelInfo(c.inference.Info())
}
