package tierscore

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	manifest       string
	runtimeLibrary string
	sessions       int
	intraOpThreads int
	maxImagePixels int

	addrs    []string
	password string
	cacheTTL time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithManifest sets the artifact manifest path. Required.
func WithManifest(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.manifest = path
	})
}

// WithRuntimeLibrary sets the onnxruntime shared library path.
// Empty uses the default library lookup.
func WithRuntimeLibrary(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.runtimeLibrary = path
	})
}

// WithSessions sets how many inference sessions run in parallel.
// Default: 1.
func WithSessions(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.sessions = n
	})
}

// WithIntraOpThreads caps the threads each session uses. Zero keeps the runtime default.
func WithIntraOpThreads(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.intraOpThreads = n
	})
}

// WithMaxImagePixels rejects images whose decoded area exceeds n pixels.
func WithMaxImagePixels(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxImagePixels = n
	})
}

// WithValkey memoizes predictions in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithCacheTTL sets how long memoized predictions live. Default: 1h.
func WithCacheTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheTTL = ttl
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// PredictOption customizes a single prediction.
type PredictOption func(*predictConfig)

type predictConfig struct {
	topK int
}

// WithTopK attaches the k most probable classes to the prediction.
func WithTopK(k int) PredictOption {
	return func(c *predictConfig) {
		c.topK = k
	}
}
