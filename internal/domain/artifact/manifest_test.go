package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ecolens/tierscore/internal/domain"
)

const validManifest = `
name: sustainability
version: "1"
model: sustainability_model_v1.onnx
labels:
  - 10_high_sustainability
  - 1_low_sustainability
  - 5_medium_sustainability
`

func TestParseManifest_Defaults(t *testing.T) {
	m, err := ParseManifest([]byte(validManifest))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Layout != NHWC {
		t.Errorf("Layout = %q, want %q", m.Layout, NHWC)
	}
	if m.PixelRange != Raw {
		t.Errorf("PixelRange = %q, want %q", m.PixelRange, Raw)
	}
	if m.Output != Probabilities {
		t.Errorf("Output = %q, want %q", m.Output, Probabilities)
	}
	if !reflect.DeepEqual(m.BatchShape(), []int64{1, 224, 224, 3}) {
		t.Errorf("BatchShape = %v", m.BatchShape())
	}
	if m.Height() != 224 || m.Width() != 224 {
		t.Errorf("Height/Width = %d/%d", m.Height(), m.Width())
	}
	if m.ID() != "sustainability@1" {
		t.Errorf("ID = %q", m.ID())
	}

	v, err := m.Vocabulary()
	if err != nil {
		t.Fatalf("vocabulary: %v", err)
	}
	if v.Len() != 3 {
		t.Errorf("vocabulary length = %d", v.Len())
	}
}

func TestParseManifest_NCHW(t *testing.T) {
	m, err := ParseManifest([]byte(validManifest + "layout: nchw\ninput_shape: [3, 160, 192]\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Height() != 160 || m.Width() != 192 {
		t.Errorf("Height/Width = %d/%d, want 160/192", m.Height(), m.Width())
	}
}

func TestParseManifest_NCHWDefaultShape(t *testing.T) {
	m, err := ParseManifest([]byte(validManifest + "layout: nchw\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(m.BatchShape(), []int64{1, 3, 224, 224}) {
		t.Errorf("BatchShape = %v", m.BatchShape())
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		substr string
	}{
		{"no model", "labels: [1_a]\n", "model is required"},
		{"no labels", "model: m.onnx\n", "labels are required"},
		{"bad layout", validManifest + "layout: hwcn\n", "layout"},
		{"bad range", validManifest + "pixel_range: centered\n", "pixel_range"},
		{"bad output", validManifest + "output: argmax\n", "output"},
		{"two dims", validManifest + "input_shape: [224, 224]\n", "3 dimensions"},
		{"zero dim", validManifest + "input_shape: [0, 224, 3]\n", "positive"},
		{"gray", validManifest + "input_shape: [224, 224, 1]\n", "channels"},
		{"nchw channels", validManifest + "layout: nchw\ninput_shape: [224, 224, 3]\n", "channels"},
		{"not yaml", "model: [unterminated", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tc.yaml))
			if !errors.Is(err, domain.ErrInvalidManifest) {
				t.Fatalf("expected ErrInvalidManifest, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.substr) {
				t.Errorf("error %q does not mention %q", err.Error(), tc.substr)
			}
		})
	}
}

func TestManifest_VocabularyLabelFormat(t *testing.T) {
	m, err := ParseManifest([]byte("model: m.onnx\nlabels: [1_low, high]\n"))
	if err != nil {
		t.Fatalf("structural validation should pass: %v", err)
	}
	if _, err := m.Vocabulary(); !errors.Is(err, domain.ErrLabelFormat) {
		t.Fatalf("expected ErrLabelFormat, got %v", err)
	}
}

func TestLoadManifest_ResolvesModelPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, []byte(validManifest), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(dir, "sustainability_model_v1.onnx")
	if m.ModelPath() != want {
		t.Errorf("ModelPath = %q, want %q", m.ModelPath(), want)
	}
}

func TestLoadManifest_AbsoluteModelPath(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "elsewhere", "model.onnx")
	path := filepath.Join(dir, "manifest.yaml")
	data := "model: " + abs + "\nlabels: [1_low]\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ModelPath() != abs {
		t.Errorf("ModelPath = %q, want %q", m.ModelPath(), abs)
	}
}

func TestLoadManifest_Missing(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing manifest")
	}
	if domain.IsConfigurationFault(err) {
		t.Error("a missing file is an operational fault, not a configuration fault")
	}
}

func TestSeal_FingerprintFollowsModelBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	model := filepath.Join(dir, "sustainability_model_v1.onnx")
	if err := os.WriteFile(path, []byte(validManifest), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(model, []byte("weights v1"), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}

	seal := func() Manifest {
		t.Helper()
		m, err := LoadManifest(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if m.Fingerprint() != "" {
			t.Fatalf("unsealed manifest has fingerprint %q", m.Fingerprint())
		}
		if err := m.Seal(); err != nil {
			t.Fatalf("seal: %v", err)
		}
		return m
	}

	first, again := seal(), seal()
	if len(first.Digest) != 64 {
		t.Fatalf("digest = %q, want 64 hex chars", first.Digest)
	}
	if first.Fingerprint() != again.Fingerprint() {
		t.Errorf("same bytes, different fingerprints: %q vs %q", first.Fingerprint(), again.Fingerprint())
	}
	if !strings.HasPrefix(first.Fingerprint(), "sustainability@1+") {
		t.Errorf("fingerprint = %q", first.Fingerprint())
	}

	if err := os.WriteFile(model, []byte("weights v2"), 0o600); err != nil {
		t.Fatalf("rewrite model: %v", err)
	}
	replaced := seal()
	if replaced.Fingerprint() == first.Fingerprint() {
		t.Error("replacing the model file without a version bump must change the fingerprint")
	}
}

func TestSeal_MissingModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, []byte(validManifest), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := m.Seal(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}
