package onnx

import (
	"errors"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// runner executes one forward pass. Implementations are not safe for concurrent use.
type runner interface {
	Run(input []float32) ([]float32, error)
	Destroy() error
}

// session is one AdvancedSession bound to its own input/output tensors.
type session struct {
	sess   *ort.AdvancedSession
	input  *ort.Tensor[float32]
	output *ort.Tensor[float32]
}

type sessionConfig struct {
	modelPath      string
	inputName      string
	outputName     string
	inputShape     []int64
	outputWidth    int
	intraOpThreads int
}

func newSession(cfg sessionConfig) (*session, error) {
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.inputShape...))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.outputWidth)))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	var opts *ort.SessionOptions
	if cfg.intraOpThreads > 0 {
		opts, err = ort.NewSessionOptions()
		if err != nil {
			_ = input.Destroy()
			_ = output.Destroy()
			return nil, fmt.Errorf("create session options: %w", err)
		}
		defer func() { _ = opts.Destroy() }()
		if err := opts.SetIntraOpNumThreads(cfg.intraOpThreads); err != nil {
			_ = input.Destroy()
			_ = output.Destroy()
			return nil, fmt.Errorf("set intra-op threads: %w", err)
		}
	}

	sess, err := ort.NewAdvancedSession(cfg.modelPath,
		[]string{cfg.inputName}, []string{cfg.outputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		opts)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &session{sess: sess, input: input, output: output}, nil
}

// Run copies input into the bound tensor, runs the graph and returns a copy of the output.
func (s *session) Run(input []float32) ([]float32, error) {
	dst := s.input.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("input has %d values, session expects %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := s.sess.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := s.output.GetData()
	res := make([]float32, len(out))
	copy(res, out)
	return res, nil
}

// Destroy releases native resources.
func (s *session) Destroy() error {
	return errors.Join(s.sess.Destroy(), s.input.Destroy(), s.output.Destroy())
}
