package biomarker

import (
	ort "github.com/yalue/onnxruntime_go"

	"github.com/vitalscribe/core/internal/coreerr"
	"github.com/vitalscribe/core/internal/domain"
	"github.com/vitalscribe/core/internal/onnxrt"
)

// WindowSamples is the fixed classifier window: 1 second of 16 kHz audio.
const WindowSamples = 16000

// HopSamples is how far the sliding window advances between classifications.
const HopSamples = 8000

// EventClassifier scores one WindowSamples-length frame against every class the model knows.
// The raw probability vector's layout is model-specific; EventConfig.ClassIndex (Config.Events)
// maps the indices of interest back to named event kinds.
type EventClassifier interface {
	Predict(window []float32) ([]float32, error)
}

// ONNXClassifier runs a fixed-window cough/throat-clearing/sneeze classifier.
type ONNXClassifier struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewONNXClassifier loads modelData and allocates the fixed WindowSamples input tensor. numClasses
// is the model's output width.
func NewONNXClassifier(libPath string, modelData []byte, numClasses int) (*ONNXClassifier, error) {
	if err := onnxrt.Init(libPath); err != nil {
		return nil, err
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, WindowSamples))
	if err != nil {
		return nil, coreerr.Wrap(err, coreerr.ModelLoad, "biomarker: create input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(numClasses)))
	if err != nil {
		input.Destroy()
		return nil, coreerr.Wrap(err, coreerr.ModelLoad, "biomarker: create output tensor")
	}

	session, err := ort.NewAdvancedSessionWithONNXData(
		modelData,
		[]string{"input"},
		[]string{"output"},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, coreerr.Wrap(err, coreerr.ModelLoad, "biomarker: create classifier session")
	}

	return &ONNXClassifier{session: session, input: input, output: output}, nil
}

// Predict runs the classifier over exactly WindowSamples samples.
func (c *ONNXClassifier) Predict(window []float32) ([]float32, error) {
	if len(window) != WindowSamples {
		return nil, coreerr.Newf(coreerr.InvalidInput, "biomarker: window length %d, want %d", len(window), WindowSamples)
	}
	copy(c.input.GetData(), window)
	if err := c.session.Run(); err != nil {
		return nil, coreerr.Wrap(err, coreerr.Inference, "biomarker: run classifier session")
	}
	out := c.output.GetData()
	probs := make([]float32, len(out))
	copy(probs, out)
	return probs, nil
}

// Close releases the session and its tensors.
func (c *ONNXClassifier) Close() {
	if c.session != nil {
		c.session.Destroy()
	}
	if c.input != nil {
		c.input.Destroy()
	}
	if c.output != nil {
		c.output.Destroy()
	}
}

// EventConfig names which classifier output index corresponds to each recognized event, and the
// probability threshold at which it's worth emitting.
type EventConfig struct {
	ClassIndex map[domain.EventKind]int
	Threshold  float32
}

func (ec EventConfig) classify(probs []float32) []domain.EventKind {
	var kinds []domain.EventKind
	for kind, idx := range ec.ClassIndex {
		if idx < 0 || idx >= len(probs) {
			continue
		}
		if probs[idx] > ec.Threshold {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

func probFor(ec EventConfig, probs []float32, kind domain.EventKind) float32 {
	idx, ok := ec.ClassIndex[kind]
	if !ok || idx < 0 || idx >= len(probs) {
		return 0
	}
	return probs[idx]
}
