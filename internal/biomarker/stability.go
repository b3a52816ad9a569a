package biomarker

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	cppMinQuefrencyMS = 2.0
	cppMaxQuefrencyMS = 20.0
	cppRejectAboveDB  = 50.0
)

// Stability computes cepstral peak prominence for one utterance: pad to the next power of two,
// Hann-window, FFT to a log-magnitude spectrum, inverse-FFT to the real cepstrum, then compare the
// cepstrum's peak against its mean over the quefrency band implied by a plausible pitch range.
// ok is false when the result is NaN, negative, or implausibly large — per the design, these are
// treated as unreliable rather than clamped.
func Stability(samples []float32, sampleRate int) (cppDB float64, ok bool) {
	if len(samples) == 0 {
		return 0, false
	}

	n := nextPowerOfTwo(len(samples))
	padded := make([]float64, n)
	win := window.Hann(make([]float64, len(samples)))
	for i, s := range samples {
		padded[i] = float64(s) * win[i]
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, padded)

	logMag := make([]float64, len(coeff))
	for i, c := range coeff {
		mag := math.Hypot(real(c), imag(c))
		logMag[i] = math.Log(math.Max(mag, 1e-12))
	}

	cepstrum := fft.Sequence(nil, toComplex(logMag, n))

	minLag := int(cppMinQuefrencyMS * float64(sampleRate) / 1000)
	maxLag := int(cppMaxQuefrencyMS * float64(sampleRate) / 1000)
	if maxLag >= len(cepstrum) {
		maxLag = len(cepstrum) - 1
	}
	if minLag < 1 || minLag >= maxLag {
		return 0, false
	}

	var peak, sum float64
	count := 0
	for lag := minLag; lag <= maxLag; lag++ {
		v := math.Abs(cepstrum[lag])
		if v > peak {
			peak = v
		}
		sum += v
		count++
	}
	if count == 0 || sum == 0 {
		return 0, false
	}
	mean := sum / float64(count)
	if mean <= 0 {
		return 0, false
	}

	cpp := 20 * math.Log10(peak/mean)
	if math.IsNaN(cpp) || cpp < 0 || cpp > cppRejectAboveDB {
		return 0, false
	}
	return cpp, true
}

func toComplex(re []float64, n int) []complex128 {
	// fourier.FFT.Sequence expects the half-spectrum layout Coefficients produced: n/2+1 bins.
	out := make([]complex128, n/2+1)
	for i := range out {
		if i < len(re) {
			out[i] = complex(re[i], 0)
		}
	}
	return out
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
