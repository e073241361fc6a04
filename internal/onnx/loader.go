package onnx

import (
	"context"
	"fmt"

	"github.com/ecolens/tierscore/internal/domain/artifact"
)

// Loader reads the manifest and opens its model on every call, so a reload
// picks up a replaced manifest or model file. The runtime is initialized lazily:
// a missing shared library is a load failure, not a startup crash.
type Loader struct {
	runtime  *Runtime
	manifest string
	opts     Options
}

// NewLoader returns a Loader for the manifest at path.
func NewLoader(rt *Runtime, path string, opts Options) *Loader {
	return &Loader{runtime: rt, manifest: path, opts: opts}
}

// Load returns the parsed manifest and an open classifier for it.
// The manifest is returned whenever it parsed, even if opening the model failed.
func (l *Loader) Load(_ context.Context) (artifact.Manifest, *Classifier, error) {
	m, err := artifact.LoadManifest(l.manifest)
	if err != nil {
		return artifact.Manifest{}, nil, err
	}
	// Label faults must surface as configuration faults even when the runtime
	// or model file is missing, so they are checked before any native work.
	if _, err := m.Vocabulary(); err != nil {
		return m, nil, err
	}
	if err := m.Seal(); err != nil {
		return m, nil, err
	}
	if err := l.runtime.Init(); err != nil {
		return m, nil, fmt.Errorf("onnx runtime: %w", err)
	}

	clf, err := Open(m, l.opts)
	if err != nil {
		return m, nil, fmt.Errorf("open %s: %w", m.ID(), err)
	}
	return m, clf, nil
}
