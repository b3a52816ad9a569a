// Package onnxrt owns the process-wide ONNX Runtime environment lifecycle shared by the VAD,
// embedding, and event-classifier adapters. Each adapter still owns its own session and tensors;
// this package only guarantees the runtime library is loaded and initialized exactly once.
package onnxrt

import (
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/vitalscribe/core/internal/coreerr"
)

var (
	initOnce sync.Once
	initErr  error
)

// Init loads the shared ONNX Runtime library from libPath and initializes the environment. Safe
// to call from multiple adapters; only the first call's libPath takes effect.
func Init(libPath string) error {
	initOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return coreerr.Wrap(initErr, coreerr.ModelLoad, "initialize onnx runtime environment")
	}
	return nil
}

// Destroy tears down the shared environment. Intended for process shutdown only; tests that
// construct and discard sessions repeatedly should not call this between sessions.
func Destroy() error {
	return ort.DestroyEnvironment()
}
