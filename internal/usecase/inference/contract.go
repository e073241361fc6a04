package inference

import (
	"context"

	"github.com/ecolens/tierscore/internal/domain"
	"github.com/ecolens/tierscore/internal/domain/artifact"
	"github.com/ecolens/tierscore/internal/domain/score"
	"github.com/ecolens/tierscore/internal/imaging"
)

// Classifier runs forward passes of one loaded artifact.
type Classifier interface {
	Classify(ctx context.Context, t *imaging.Tensor) (domain.Distribution, error)
	OutputWidth() int
	Close() error
}

// LoadFunc opens the configured artifact. It returns the manifest the classifier was built from.
type LoadFunc func(ctx context.Context) (artifact.Manifest, Classifier, error)

// ResultCache stores results per artifact and image content. Implementations swallow
// their own failures: a broken cache degrades to a miss.
type ResultCache interface {
	Get(ctx context.Context, artifactID string, image []byte) (score.Result, bool)
	Put(ctx context.Context, artifactID string, image []byte, r score.Result)
}
