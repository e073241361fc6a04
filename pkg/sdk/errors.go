package tierscore

import "github.com/ecolens/tierscore/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrModelUnavailable    = domain.ErrModelUnavailable
	ErrInvalidImage        = domain.ErrInvalidImage
	ErrInvalidParameter    = domain.ErrInvalidParameter
	ErrVocabularyMismatch  = domain.ErrVocabularyMismatch
	ErrLabelFormat         = domain.ErrLabelFormat
	ErrInvalidManifest     = domain.ErrInvalidManifest
	ErrInvalidDistribution = domain.ErrInvalidDistribution
)
