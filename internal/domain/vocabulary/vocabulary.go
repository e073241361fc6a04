// Package vocabulary holds the ordered class labels of a classifier artifact
// and the label -> sustainability score table derived from them.
package vocabulary

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ecolens/tierscore/internal/domain"
)

const scoreSeparator = "_"

// Vocabulary is an immutable, index-aligned list of class labels.
type Vocabulary struct {
	labels []string
	scores []int
	valid  []bool
}

// New validates every label and builds the score table.
// Labels must be non-empty, unique and start with an integer token ("5_medium").
func New(labels []string) (Vocabulary, error) {
	if len(labels) == 0 {
		return Vocabulary{}, fmt.Errorf("%w: vocabulary is empty", domain.ErrInvalidManifest)
	}
	seen := make(map[string]struct{}, len(labels))
	v := Reconstruct(labels)
	for i, l := range labels {
		if _, dup := seen[l]; dup {
			return Vocabulary{}, fmt.Errorf("%w: duplicate label %q", domain.ErrInvalidManifest, l)
		}
		seen[l] = struct{}{}
		if !v.valid[i] {
			return Vocabulary{}, fmt.Errorf("label %d %q: %w", i, l, domain.ErrLabelFormat)
		}
	}
	return v, nil
}

// Reconstruct creates a Vocabulary without validation.
// Unscorable labels surface as ErrLabelFormat from Score.
func Reconstruct(labels []string) Vocabulary {
	v := Vocabulary{
		labels: append([]string(nil), labels...),
		scores: make([]int, len(labels)),
		valid:  make([]bool, len(labels)),
	}
	for i, l := range labels {
		if s, err := ParseScore(l); err == nil {
			v.scores[i] = s
			v.valid[i] = true
		}
	}
	return v
}

// ParseScore extracts the leading integer token of a label.
func ParseScore(label string) (int, error) {
	token, _, _ := strings.Cut(label, scoreSeparator)
	s, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("label %q: %w", label, domain.ErrLabelFormat)
	}
	return s, nil
}

// Len returns the number of classes.
func (v Vocabulary) Len() int { return len(v.labels) }

// Label returns the label at index i.
func (v Vocabulary) Label(i int) string { return v.labels[i] }

// Labels returns a copy of the ordered labels.
func (v Vocabulary) Labels() []string { return append([]string(nil), v.labels...) }

// Score returns the sustainability score of class i.
func (v Vocabulary) Score(i int) (int, error) {
	if i < 0 || i >= len(v.labels) {
		return 0, fmt.Errorf("class index %d out of range [0,%d)", i, len(v.labels))
	}
	if !v.valid[i] {
		return 0, fmt.Errorf("label %q: %w", v.labels[i], domain.ErrLabelFormat)
	}
	return v.scores[i], nil
}
