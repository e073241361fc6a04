// Package score maps a classifier distribution onto a sustainability result.
package score

import (
	"fmt"
	"math"
	"sort"

	"github.com/ecolens/tierscore/internal/domain"
	"github.com/ecolens/tierscore/internal/domain/vocabulary"
)

// confidenceDecimals is the presentation precision of Confidence.
const confidenceDecimals = 4

// Result is the outcome of one classification.
type Result struct {
	Label      string
	Score      int
	Confidence float64
	Top        []Candidate
}

// Candidate is one ranked class of a distribution.
type Candidate struct {
	Label       string
	Score       int
	Probability float64
}

// Map selects the most probable class (lowest index wins ties) and derives its score.
func Map(dist domain.Distribution, vocab vocabulary.Vocabulary) (Result, error) {
	if len(dist) != vocab.Len() {
		return Result{}, domain.NewVocabularyMismatch(vocab.Len(), len(dist))
	}
	if len(dist) == 0 {
		return Result{}, fmt.Errorf("empty distribution: %w", domain.ErrInvalidDistribution)
	}

	best := 0
	for i, p := range dist {
		if p > dist[best] {
			best = i
		}
	}

	s, err := vocab.Score(best)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Label:      vocab.Label(best),
		Score:      s,
		Confidence: Round(dist[best]),
	}, nil
}

// TopK returns the k most probable classes in descending order; ties keep index order.
// Classes whose label has no score are reported with ErrLabelFormat.
func TopK(dist domain.Distribution, vocab vocabulary.Vocabulary, k int) ([]Candidate, error) {
	if len(dist) != vocab.Len() {
		return nil, domain.NewVocabularyMismatch(vocab.Len(), len(dist))
	}
	if k > len(dist) {
		k = len(dist)
	}
	if k <= 0 {
		return nil, nil
	}

	idx := make([]int, len(dist))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return dist[idx[a]] > dist[idx[b]] })

	out := make([]Candidate, k)
	for i := 0; i < k; i++ {
		c := idx[i]
		s, err := vocab.Score(c)
		if err != nil {
			return nil, err
		}
		out[i] = Candidate{Label: vocab.Label(c), Score: s, Probability: Round(dist[c])}
	}
	return out, nil
}

// Round rounds p half away from zero to the presentation precision.
func Round(p float64) float64 {
	pow := math.Pow10(confidenceDecimals)
	return math.Round(p*pow) / pow
}
