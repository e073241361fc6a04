package tierscore

import (
	"context"

	"github.com/ecolens/tierscore/internal/domain/score"
	healthuc "github.com/ecolens/tierscore/internal/usecase/health"
	inferenceuc "github.com/ecolens/tierscore/internal/usecase/inference"
)

// --- inferenceUseCase mock ---

type mockInferenceUC struct {
	predictFn func(ctx context.Context, data []byte, opts ...inferenceuc.PredictOption) (score.Result, error)
	reloadFn  func(ctx context.Context) error
	info      inferenceuc.Info
	unloaded  int
}

func (m *mockInferenceUC) Predict(
	ctx context.Context, data []byte, opts ...inferenceuc.PredictOption,
) (score.Result, error) {
	return m.predictFn(ctx, data, opts...)
}

func (m *mockInferenceUC) Reload(ctx context.Context) error { return m.reloadFn(ctx) }

func (m *mockInferenceUC) Info() inferenceuc.Info { return m.info }

func (m *mockInferenceUC) Unload() { m.unloaded++ }

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report { return m.report }
