// Package artifact describes a versioned classifier artifact: the model file and
// the label vocabulary it was trained against, shipped together in one manifest.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ecolens/tierscore/internal/domain"
	"github.com/ecolens/tierscore/internal/domain/vocabulary"
)

// Layout is the memory order of the model input tensor.
type Layout string

// Supported layouts.
const (
	NHWC Layout = "nhwc"
	NCHW Layout = "nchw"
)

// PixelRange is the numeric range the model expects pixel values in.
type PixelRange string

// Supported pixel ranges.
const (
	// Raw keeps 0..255 intensities; the model normalizes internally.
	Raw  PixelRange = "raw"
	Unit PixelRange = "unit"
)

// Output describes what the model's output vector contains.
type Output string

// Supported output kinds.
const (
	Probabilities Output = "probabilities"
	Logits        Output = "logits"
)

// Channels is the only supported color channel count.
const Channels = 3

// Manifest is the on-disk artifact descriptor.
type Manifest struct {
	Name       string     `yaml:"name"`
	Version    string     `yaml:"version"`
	Model      string     `yaml:"model"`
	InputName  string     `yaml:"input_name"`
	OutputName string     `yaml:"output_name"`
	InputShape []int64    `yaml:"input_shape"`
	Layout     Layout     `yaml:"layout"`
	PixelRange PixelRange `yaml:"pixel_range"`
	Output     Output     `yaml:"output"`
	Labels     []string   `yaml:"labels"`

	// Digest is the sha256 of the manifest source and the model file, set by Seal.
	Digest string `yaml:"-"`

	dir    string
	source []byte
}

// LoadManifest reads, defaults and validates a manifest file.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %s: %w", path, err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	m.source = data
	return m, nil
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %w", domain.ErrInvalidManifest, err)
	}
	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// ApplyDefaults fills empty fields with the values of the reference training setup.
func (m *Manifest) ApplyDefaults() {
	if m.Layout == "" {
		m.Layout = NHWC
	}
	if len(m.InputShape) == 0 {
		m.InputShape = []int64{224, 224, Channels}
		if m.Layout == NCHW {
			m.InputShape = []int64{Channels, 224, 224}
		}
	}
	if m.PixelRange == "" {
		m.PixelRange = Raw
	}
	if m.Output == "" {
		m.Output = Probabilities
	}
	if m.Version == "" {
		m.Version = "unversioned"
	}
}

// Validate checks structural consistency. Label scores are validated by the vocabulary.
func (m *Manifest) Validate() error {
	if m.Model == "" {
		return fmt.Errorf("%w: model is required", domain.ErrInvalidManifest)
	}
	switch m.Layout {
	case NHWC, NCHW:
	default:
		return fmt.Errorf("%w: layout must be %q or %q, got %q", domain.ErrInvalidManifest, NHWC, NCHW, m.Layout)
	}
	switch m.PixelRange {
	case Raw, Unit:
	default:
		return fmt.Errorf("%w: pixel_range must be %q or %q, got %q",
			domain.ErrInvalidManifest, Raw, Unit, m.PixelRange)
	}
	switch m.Output {
	case Probabilities, Logits:
	default:
		return fmt.Errorf("%w: output must be %q or %q, got %q",
			domain.ErrInvalidManifest, Probabilities, Logits, m.Output)
	}
	if len(m.InputShape) != 3 {
		return fmt.Errorf("%w: input_shape must have 3 dimensions, got %v", domain.ErrInvalidManifest, m.InputShape)
	}
	for _, d := range m.InputShape {
		if d <= 0 {
			return fmt.Errorf("%w: input_shape dimensions must be positive, got %v",
				domain.ErrInvalidManifest, m.InputShape)
		}
	}
	if m.channels() != Channels {
		return fmt.Errorf("%w: input_shape must have %d channels for layout %s, got %v",
			domain.ErrInvalidManifest, Channels, m.Layout, m.InputShape)
	}
	if len(m.Labels) == 0 {
		return fmt.Errorf("%w: labels are required", domain.ErrInvalidManifest)
	}
	return nil
}

// Vocabulary builds the validated label vocabulary.
func (m *Manifest) Vocabulary() (vocabulary.Vocabulary, error) {
	v, err := vocabulary.New(m.Labels)
	if err != nil {
		return vocabulary.Vocabulary{}, fmt.Errorf("artifact %s@%s: %w", m.Name, m.Version, err)
	}
	return v, nil
}

// ModelPath resolves the model file relative to the manifest directory.
func (m *Manifest) ModelPath() string {
	if filepath.IsAbs(m.Model) || m.dir == "" {
		return m.Model
	}
	return filepath.Join(m.dir, m.Model)
}

// Height returns the model input height.
func (m *Manifest) Height() int {
	if m.Layout == NCHW {
		return int(m.InputShape[1])
	}
	return int(m.InputShape[0])
}

// Width returns the model input width.
func (m *Manifest) Width() int {
	if m.Layout == NCHW {
		return int(m.InputShape[2])
	}
	return int(m.InputShape[1])
}

func (m *Manifest) channels() int64 {
	if m.Layout == NCHW {
		return m.InputShape[0]
	}
	return m.InputShape[2]
}

// BatchShape is the input shape with a leading batch axis of 1.
func (m *Manifest) BatchShape() []int64 {
	return append([]int64{1}, m.InputShape...)
}

// Seal hashes the manifest source and the model file into Digest, so an artifact
// replaced on disk without a version bump still gets a new Fingerprint.
func (m *Manifest) Seal() error {
	f, err := os.Open(filepath.Clean(m.ModelPath()))
	if err != nil {
		return fmt.Errorf("open model %s: %w", m.ModelPath(), err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	_, _ = h.Write(m.source)
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash model %s: %w", m.ModelPath(), err)
	}
	m.Digest = hex.EncodeToString(h.Sum(nil))
	return nil
}

// Fingerprint identifies the exact artifact bytes: name@version plus a digest
// prefix. Empty when the manifest has not been sealed.
func (m *Manifest) Fingerprint() string {
	if len(m.Digest) < fingerprintLen {
		return ""
	}
	return m.ID() + "+" + m.Digest[:fingerprintLen]
}

const fingerprintLen = 16

// ID is the name@version identifier of the artifact.
func (m *Manifest) ID() string {
	return m.Name + "@" + m.Version
}
