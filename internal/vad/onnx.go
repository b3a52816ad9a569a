package vad

import (
	ort "github.com/yalue/onnxruntime_go"

	"github.com/vitalscribe/core/internal/coreerr"
	"github.com/vitalscribe/core/internal/onnxrt"
)

const stateSize = 128

// ONNXPredictor runs a Silero-style streaming VAD model: a fixed 512-sample input tensor, a
// carried-forward recurrent state tensor, and a scalar sample-rate tensor.
type ONNXPredictor struct {
	session *ort.AdvancedSession

	inputTensor *ort.Tensor[float32]
	stateTensor *ort.Tensor[float32]
	srTensor    *ort.Tensor[int64]

	outputTensor *ort.Tensor[float32]
	stateNTensor *ort.Tensor[float32]
}

// NewONNXPredictor loads modelData and allocates the tensors it reuses for every Predict call.
// libPath is the shared ONNX Runtime library path, passed through to onnxrt.Init.
func NewONNXPredictor(libPath string, modelData []byte) (*ONNXPredictor, error) {
	if err := onnxrt.Init(libPath); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, ChunkSamples))
	if err != nil {
		return nil, coreerr.Wrap(err, coreerr.ModelLoad, "vad: create input tensor")
	}
	stateTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, stateSize))
	if err != nil {
		inputTensor.Destroy()
		return nil, coreerr.Wrap(err, coreerr.ModelLoad, "vad: create state tensor")
	}
	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{sampleRateHz})
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		return nil, coreerr.Wrap(err, coreerr.ModelLoad, "vad: create sample rate tensor")
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		return nil, coreerr.Wrap(err, coreerr.ModelLoad, "vad: create output tensor")
	}
	stateNTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, stateSize))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		return nil, coreerr.Wrap(err, coreerr.ModelLoad, "vad: create next-state tensor")
	}

	session, err := ort.NewAdvancedSessionWithONNXData(
		modelData,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{inputTensor, stateTensor, srTensor},
		[]ort.Value{outputTensor, stateNTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		stateNTensor.Destroy()
		return nil, coreerr.Wrap(err, coreerr.ModelLoad, "vad: create session")
	}

	return &ONNXPredictor{
		session:      session,
		inputTensor:  inputTensor,
		stateTensor:  stateTensor,
		srTensor:     srTensor,
		outputTensor: outputTensor,
		stateNTensor: stateNTensor,
	}, nil
}

// Predict runs one inference over exactly ChunkSamples samples and carries the recurrent state
// forward for the next call.
func (p *ONNXPredictor) Predict(chunk []float32) (float32, error) {
	if len(chunk) != ChunkSamples {
		return 0, coreerr.Newf(coreerr.InvalidInput, "vad: predict chunk length %d, want %d", len(chunk), ChunkSamples)
	}
	copy(p.inputTensor.GetData(), chunk)

	if err := p.session.Run(); err != nil {
		return 0, coreerr.Wrap(err, coreerr.Inference, "vad: run session")
	}

	prob := p.outputTensor.GetData()[0]
	copy(p.stateTensor.GetData(), p.stateNTensor.GetData())
	return prob, nil
}

// Reset zeroes the recurrent state, used when a new session starts or the gate is explicitly
// reset between recordings on the same process.
func (p *ONNXPredictor) Reset() error {
	data := p.stateTensor.GetData()
	for i := range data {
		data[i] = 0
	}
	return nil
}

// Close releases every tensor and the session. Safe to call once; further use is undefined.
func (p *ONNXPredictor) Close() {
	if p.session != nil {
		p.session.Destroy()
	}
	if p.inputTensor != nil {
		p.inputTensor.Destroy()
	}
	if p.stateTensor != nil {
		p.stateTensor.Destroy()
	}
	if p.srTensor != nil {
		p.srTensor.Destroy()
	}
	if p.outputTensor != nil {
		p.outputTensor.Destroy()
	}
	if p.stateNTensor != nil {
		p.stateNTensor.Destroy()
	}
}
