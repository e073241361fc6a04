package main

import (
	"context"

	"github.com/ecolens/tierscore/internal/domain/artifact"
	"github.com/ecolens/tierscore/internal/onnx"
	inferenceuc "github.com/ecolens/tierscore/internal/usecase/inference"
)

// artifactLoader adapts an onnx.Loader to the inference service.
// A nil *onnx.Classifier must not escape as a non-nil interface.
func artifactLoader(l *onnx.Loader) inferenceuc.LoadFunc {
	return func(ctx context.Context) (artifact.Manifest, inferenceuc.Classifier, error) {
		m, clf, err := l.Load(ctx)
		if err != nil {
			return m, nil, err
		}
		return m, clf, nil
	}
}
