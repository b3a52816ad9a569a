// Package mel computes the log-mel spectrogram used as input to the speaker-embedding model, and
// wraps that model's ONNX session.
package mel

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/vitalscribe/core/internal/coreerr"
)

const (
	nFFT     = 512
	hopLen   = 160
	winLen   = 400
	nMels    = 80
	minHz    = 20.0
	maxHz    = 7600.0
	logFloor = 1e-10
)

// FilterBank turns 16 kHz float32 audio into frames of 80-band log-mel energies.
type FilterBank struct {
	sampleRate int
	fft        *fourier.FFT
	hannCoef   []float64
	filters    [][]float64 // [nMels][nFFT/2+1]
}

// NewFilterBank builds the triangular mel filter matrix for the given sample rate. 16000 is the
// only rate the rest of the core ever calls this with.
func NewFilterBank(sampleRate int) *FilterBank {
	fb := &FilterBank{
		sampleRate: sampleRate,
		fft:        fourier.NewFFT(nFFT),
		hannCoef:   window.Hann(make([]float64, winLen)),
		filters:    buildMelFilters(sampleRate, nFFT, nMels, minHz, maxHz),
	}
	return fb
}

// Compute frames samples into overlapping winLen windows (hopLen apart, trailing partial frame
// dropped) and returns one nMels-length log-mel vector per frame.
func (fb *FilterBank) Compute(samples []float32) ([][]float64, error) {
	if len(samples) == 0 {
		return nil, coreerr.New(coreerr.InvalidInput, "mel: empty input")
	}
	if len(samples) < winLen {
		return nil, coreerr.Newf(coreerr.InvalidInput, "mel: input shorter than window (%d < %d)", len(samples), winLen)
	}

	nFrames := (len(samples)-winLen)/hopLen + 1
	frames := make([][]float64, nFrames)

	windowed := make([]float64, nFFT)
	for i := 0; i < nFrames; i++ {
		start := i * hopLen
		for j := 0; j < nFFT; j++ {
			windowed[j] = 0
		}
		for j := 0; j < winLen; j++ {
			windowed[j] = float64(samples[start+j]) * fb.hannCoef[j]
		}

		coeff := fb.fft.Coefficients(nil, windowed)
		power := make([]float64, len(coeff))
		for k, c := range coeff {
			power[k] = real(c)*real(c) + imag(c)*imag(c)
		}

		logMel := make([]float64, nMels)
		for m, filt := range fb.filters {
			var energy float64
			for k, w := range filt {
				energy += w * power[k]
			}
			logMel[m] = math.Log(math.Max(energy, logFloor))
		}
		frames[i] = logMel
	}

	return frames, nil
}

// Energy returns the mean exp(log-mel) across every band and frame, used as a cheap silence-gate
// signal alongside VAD.
func Energy(frames [][]float64) float64 {
	if len(frames) == 0 {
		return 0
	}
	var sum float64
	var n int
	for _, f := range frames {
		for _, v := range f {
			sum += math.Exp(v)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(m float64) float64 {
	return 700 * (math.Pow(10, m/2595) - 1)
}

// buildMelFilters constructs a triangular filterbank on the mel scale, one row per band, each row
// holding nFFT/2+1 weights aligned to the FFT's real-spectrum bins.
func buildMelFilters(sampleRate, nFFT, nMels int, minHz, maxHz float64) [][]float64 {
	nBins := nFFT/2 + 1
	melMin := hzToMel(minHz)
	melMax := hzToMel(maxHz)

	points := make([]float64, nMels+2)
	for i := range points {
		points[i] = melMin + (melMax-melMin)*float64(i)/float64(nMels+1)
	}
	binIdx := make([]int, nMels+2)
	for i, m := range points {
		hz := melToHz(m)
		binIdx[i] = int(math.Floor((float64(nFFT) + 1) * hz / float64(sampleRate)))
	}

	filters := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		row := make([]float64, nBins)
		left, center, right := binIdx[m], binIdx[m+1], binIdx[m+2]
		if center == left {
			center++
		}
		if right == center {
			right++
		}
		for k := left; k < center && k < nBins; k++ {
			if k < 0 {
				continue
			}
			row[k] = float64(k-left) / float64(center-left)
		}
		for k := center; k < right && k < nBins; k++ {
			if k < 0 {
				continue
			}
			row[k] = float64(right-k) / float64(right-center)
		}
		filters[m] = row
	}
	return filters
}
