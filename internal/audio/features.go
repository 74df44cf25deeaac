package audio

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/embersense/api/internal/model"
)

// Feature pipeline constants. These mirror the parameters the model was
// trained with; changing any of them invalidates the deployed artifact.
const (
	NumMFCC        = 13   // cepstral coefficients kept
	NumMelBands    = 64   // mel filterbank size
	NumMelFeatures = 8    // leading mel-band energies appended to the vector
	FFTSize        = 1024 // analysis window
	HopLength      = 512
	FMax           = 8000.0 // Hz, upper filterbank edge

	// FeatureVectorLen is 13 MFCC means + 8 mel-band mean energies.
	FeatureVectorLen = NumMFCC + NumMelFeatures
)

const logFloor = 1e-10

// ExtractVector computes the 21-element feature vector the model expects:
// the per-coefficient mean of 13 MFCCs followed by the mean energy of the
// first 8 mel bands.
func ExtractVector(clip *Clip) ([]float64, error) {
	if clip == nil || len(clip.Samples) == 0 {
		return nil, fmt.Errorf("empty clip")
	}

	melSpec := melSpectrogram(clip.Samples)
	if len(melSpec) == 0 {
		return nil, fmt.Errorf("clip too short for analysis")
	}

	mfccMeans := mfccMeans(melSpec)
	melMeans := melBandMeans(melSpec)

	vec := make([]float64, 0, FeatureVectorLen)
	vec = append(vec, mfccMeans...)
	vec = append(vec, melMeans[:NumMelFeatures]...)
	return vec, nil
}

// Stats summarizes a feature vector for API responses.
func Stats(vec []float64) model.FeatureStats {
	if len(vec) == 0 {
		return model.FeatureStats{}
	}
	mean := floats.Sum(vec) / float64(len(vec))
	var variance float64
	for _, v := range vec {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(vec))
	return model.FeatureStats{
		Mean:     mean,
		Variance: variance,
		Min:      floats.Min(vec),
		Max:      floats.Max(vec),
	}
}

// melSpectrogram returns the mel power spectrogram as [frame][band].
func melSpectrogram(samples []float64) [][]float64 {
	window := hannWindow(FFTSize)
	filters := melFilterbank(NumMelBands, FFTSize, TargetSampleRate, FMax)
	fft := fourier.NewFFT(FFTSize)

	numFrames := 1 + (len(samples)-1)/HopLength
	frames := make([][]float64, 0, numFrames)

	frame := make([]float64, FFTSize)
	power := make([]float64, FFTSize/2+1)

	for start := 0; start < len(samples); start += HopLength {
		// Windowed frame, zero-padded at the tail
		for i := 0; i < FFTSize; i++ {
			if start+i < len(samples) {
				frame[i] = samples[start+i] * window[i]
			} else {
				frame[i] = 0
			}
		}

		coeffs := fft.Coefficients(nil, frame)
		for i, c := range coeffs {
			re, im := real(c), imag(c)
			power[i] = re*re + im*im
		}

		bands := make([]float64, NumMelBands)
		for b, filter := range filters {
			var sum float64
			for i, w := range filter {
				if w != 0 {
					sum += w * power[i]
				}
			}
			bands[b] = sum
		}
		frames = append(frames, bands)
	}

	return frames
}

// mfccMeans computes the first NumMFCC cepstral coefficients of each frame
// via a DCT-II over the log mel spectrum, then averages across frames.
// The 13x64 projection is small, so the DCT-II is computed directly.
func mfccMeans(melSpec [][]float64) []float64 {
	n := float64(NumMelBands)
	means := make([]float64, NumMFCC)

	for _, bands := range melSpec {
		logBands := make([]float64, NumMelBands)
		for i, v := range bands {
			logBands[i] = math.Log(v + logFloor)
		}

		for k := 0; k < NumMFCC; k++ {
			var sum float64
			for i := 0; i < NumMelBands; i++ {
				sum += logBands[i] * math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/n)
			}
			// Orthonormal scaling
			if k == 0 {
				sum *= math.Sqrt(1 / n)
			} else {
				sum *= math.Sqrt(2 / n)
			}
			means[k] += sum
		}
	}

	for k := range means {
		means[k] /= float64(len(melSpec))
	}
	return means
}

// melBandMeans averages each mel band's power across frames.
func melBandMeans(melSpec [][]float64) []float64 {
	means := make([]float64, NumMelBands)
	for _, bands := range melSpec {
		floats.Add(means, bands)
	}
	floats.Scale(1/float64(len(melSpec)), means)
	return means
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterbank builds triangular filters over FFT bins, spanning 0..fmax
// on the mel scale. Rows are filters, columns are FFT bins.
func melFilterbank(numBands, fftSize, sampleRate int, fmax float64) [][]float64 {
	numBins := fftSize/2 + 1
	maxMel := hzToMel(fmax)

	// Band edge frequencies: numBands+2 points from 0 to maxMel
	edges := make([]float64, numBands+2)
	for i := range edges {
		edges[i] = melToHz(maxMel * float64(i) / float64(numBands+1))
	}

	binHz := float64(sampleRate) / float64(fftSize)
	filters := make([][]float64, numBands)
	for b := 0; b < numBands; b++ {
		filter := make([]float64, numBins)
		lo, center, hi := edges[b], edges[b+1], edges[b+2]
		for i := 0; i < numBins; i++ {
			f := float64(i) * binHz
			switch {
			case f <= lo || f >= hi:
				// outside the triangle
			case f <= center:
				if center > lo {
					filter[i] = (f - lo) / (center - lo)
				}
			default:
				if hi > center {
					filter[i] = (hi - f) / (hi - center)
				}
			}
		}
		filters[b] = filter
	}
	return filters
}
