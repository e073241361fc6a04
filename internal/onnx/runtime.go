// Package onnx adapts an ONNX Runtime session to the classifier contract.
package onnx

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Runtime owns the process-wide ONNX Runtime environment.
// Classifiers may be opened and closed repeatedly while it is initialized.
type Runtime struct {
	mu          sync.Mutex
	libraryPath string
	initialized bool
}

// NewRuntime creates a Runtime that loads the shared library from libraryPath.
// An empty path uses the onnxruntime_go default lookup.
func NewRuntime(libraryPath string) *Runtime {
	return &Runtime{libraryPath: libraryPath}
}

// Init initializes the environment once.
func (r *Runtime) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return nil
	}
	if r.libraryPath != "" {
		ort.SetSharedLibraryPath(r.libraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime environment: %w", err)
		}
	}
	r.initialized = true
	return nil
}

// Close destroys the environment. All classifiers must be closed first.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return nil
	}
	r.initialized = false
	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("destroy onnxruntime environment: %w", err)
	}
	return nil
}
