package mel

import (
	"math"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/vitalscribe/core/internal/coreerr"
	"github.com/vitalscribe/core/internal/onnxrt"
)

// Embedder runs the speaker-embedding model over a variable-length mel spectrogram. Because the
// frame count changes per utterance, it uses a dynamic session and allocates fresh tensors per
// call rather than the fixed-tensor-reuse pattern the VAD model uses.
type Embedder struct {
	session *ort.DynamicAdvancedSession
	dim     int
}

// NewEmbedder loads modelPath (ONNX Runtime requires a filesystem path for dynamic sessions) and
// records the embedding dimension the caller expects back, since it can't be read off the model
// without running it once.
func NewEmbedder(libPath, modelPath string, dim int) (*Embedder, error) {
	if err := onnxrt.Init(libPath); err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, coreerr.Wrap(err, coreerr.ModelLoad, "mel: create session options")
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"mel"},
		[]string{"embedding"},
		opts,
	)
	if err != nil {
		return nil, coreerr.Wrap(err, coreerr.ModelLoad, "mel: create embedding session")
	}

	return &Embedder{session: session, dim: dim}, nil
}

// Extract runs the model over frames ([nFrames][nMels]) shaped as [1, nFrames, nMels] and returns
// an L2-normalized D-dimensional embedding.
func (e *Embedder) Extract(frames [][]float64) ([]float32, error) {
	if len(frames) == 0 {
		return nil, coreerr.New(coreerr.InvalidInput, "mel: no frames to embed")
	}

	flat := make([]float32, len(frames)*nMels)
	for i, f := range frames {
		for j, v := range f {
			flat[i*nMels+j] = float32(v)
		}
	}

	inputShape := ort.NewShape(1, int64(len(frames)), int64(nMels))
	inputTensor, err := ort.NewTensor(inputShape, flat)
	if err != nil {
		return nil, coreerr.Wrap(err, coreerr.Inference, "mel: create input tensor")
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, coreerr.Wrap(err, coreerr.Inference, "mel: run embedding session")
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, coreerr.New(coreerr.Inference, "mel: unexpected embedding output type")
	}
	data := outTensor.GetData()
	if len(data) < e.dim {
		return nil, coreerr.Newf(coreerr.Inference, "mel: embedding output length %d, want %d", len(data), e.dim)
	}

	embedding := make([]float32, e.dim)
	copy(embedding, data[:e.dim])
	return L2Normalize(embedding), nil
}

// Close releases the underlying session.
func (e *Embedder) Close() {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
}

// L2Normalize returns a copy of v scaled to unit length, or v unchanged if its norm is ~zero.
func L2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm < 1e-12 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
