package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable signals that no classifier artifact is loaded.
	ErrModelUnavailable = errors.New("model is not loaded")
	// ErrInvalidImage signals bytes that cannot be decoded as an image.
	ErrInvalidImage = errors.New("invalid image file")
	// ErrVocabularyMismatch signals that the label vocabulary and the classifier output disagree in length.
	ErrVocabularyMismatch = errors.New("vocabulary does not match classifier output")
	// ErrLabelFormat signals a label without a leading integer score token.
	ErrLabelFormat = errors.New("label has no leading score token")
	// ErrInvalidDistribution signals classifier output that is not a probability distribution.
	ErrInvalidDistribution = errors.New("classifier output is not a probability distribution")
	// ErrInvalidManifest signals an artifact manifest that fails validation.
	ErrInvalidManifest = errors.New("invalid artifact manifest")
	// ErrInvalidParameter signals a malformed request option.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// MismatchError wraps ErrVocabularyMismatch with both lengths.
type MismatchError struct {
	Labels  int
	Outputs int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %d labels, %d outputs", ErrVocabularyMismatch.Error(), e.Labels, e.Outputs)
}

func (e *MismatchError) Unwrap() error { return ErrVocabularyMismatch }

// NewVocabularyMismatch creates a vocabulary mismatch error.
func NewVocabularyMismatch(labels, outputs int) error {
	return &MismatchError{Labels: labels, Outputs: outputs}
}

// IsConfigurationFault reports whether err is a deployment defect that should abort startup.
func IsConfigurationFault(err error) bool {
	return errors.Is(err, ErrVocabularyMismatch) ||
		errors.Is(err, ErrLabelFormat) ||
		errors.Is(err, ErrInvalidManifest)
}
