package onnx

import (
	"errors"
	"math"
	"testing"

	"github.com/ecolens/tierscore/internal/domain"
	"github.com/ecolens/tierscore/internal/domain/artifact"
)

func TestToDistribution_Probabilities(t *testing.T) {
	dist, err := toDistribution([]float32{0.05, 0.08, 0.87}, artifact.Probabilities)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dist.Valid(domain.DistributionTolerance) {
		t.Fatalf("expected valid distribution, sum=%v", dist.Sum())
	}
	if math.Abs(dist[2]-0.87) > 1e-6 {
		t.Errorf("dist[2] = %v, want 0.87", dist[2])
	}
}

func TestToDistribution_RenormalizesFloat32Drift(t *testing.T) {
	dist, err := toDistribution([]float32{0.3333, 0.3333, 0.3333}, artifact.Probabilities)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(dist.Sum()-1) > domain.DistributionTolerance {
		t.Errorf("sum = %v, want 1", dist.Sum())
	}
}

func TestToDistribution_Logits(t *testing.T) {
	dist, err := toDistribution([]float32{1000, 1000, -1000}, artifact.Logits)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dist.Valid(domain.DistributionTolerance) {
		t.Fatalf("softmax must be a distribution, got %v", dist)
	}
	if math.Abs(dist[0]-0.5) > 1e-9 || math.Abs(dist[1]-0.5) > 1e-9 || dist[2] > 1e-9 {
		t.Errorf("unexpected softmax: %v", dist)
	}
}

func TestToDistribution_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  []float32
		kind artifact.Output
	}{
		{"empty", nil, artifact.Probabilities},
		{"negative", []float32{1.1, -0.1}, artifact.Probabilities},
		{"logits as probabilities", []float32{2.5, -1, 0.3}, artifact.Probabilities},
		{"nan", []float32{float32(math.NaN()), 1}, artifact.Probabilities},
		{"inf logit", []float32{float32(math.Inf(1)), 0}, artifact.Logits},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := toDistribution(tc.raw, tc.kind)
			if !errors.Is(err, domain.ErrInvalidDistribution) {
				t.Fatalf("expected ErrInvalidDistribution, got %v", err)
			}
		})
	}
}

func TestSoftmax_AlwaysValid(t *testing.T) {
	inputs := [][]float32{
		{0},
		{1, 2, 3},
		{-5, -5, -5, -5},
		{88, -88, 0.5},
	}
	for _, in := range inputs {
		d := softmax(in)
		if !d.Valid(domain.DistributionTolerance) {
			t.Errorf("softmax(%v) = %v is not a distribution", in, d)
		}
	}
}
