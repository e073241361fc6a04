package onnx

import (
	"fmt"
	"math"

	"github.com/ecolens/tierscore/internal/domain"
	"github.com/ecolens/tierscore/internal/domain/artifact"
)

// probabilityTolerance accepts float32 rounding in a softmax output layer.
const probabilityTolerance = 1e-3

// toDistribution converts raw model output into a normalized distribution.
func toDistribution(raw []float32, kind artifact.Output) (domain.Distribution, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty output", domain.ErrInvalidDistribution)
	}
	for i, v := range raw {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("%w: non-finite value at %d", domain.ErrInvalidDistribution, i)
		}
	}

	if kind == artifact.Logits {
		return softmax(raw), nil
	}

	dist := make(domain.Distribution, len(raw))
	for i, v := range raw {
		if v < 0 {
			return nil, fmt.Errorf("%w: negative probability %v at %d", domain.ErrInvalidDistribution, v, i)
		}
		dist[i] = float64(v)
	}
	sum := dist.Sum()
	if math.Abs(sum-1) > probabilityTolerance {
		return nil, fmt.Errorf("%w: probabilities sum to %v", domain.ErrInvalidDistribution, sum)
	}
	for i := range dist {
		dist[i] /= sum
	}
	return dist, nil
}

func softmax(logits []float32) domain.Distribution {
	maxV := float64(logits[0])
	for _, v := range logits[1:] {
		maxV = math.Max(maxV, float64(v))
	}

	dist := make(domain.Distribution, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v) - maxV)
		dist[i] = e
		sum += e
	}
	for i := range dist {
		dist[i] /= sum
	}
	return dist
}
