package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

// TargetSampleRate is the rate the feature pipeline operates at. Clips
// recorded at other rates are resampled on decode.
const TargetSampleRate = 16000

// Clip is a decoded, mono, 16 kHz waveform
type Clip struct {
	Samples    []float64
	SampleRate int
	Duration   float64 // seconds
	Channels   int     // channel count of the source file
}

// Decode reads a PCM WAV stream, downmixes to mono and resamples to
// TargetSampleRate.
func Decode(r io.Reader) (*Clip, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio stream: %w", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode PCM data: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("empty audio stream")
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	srcRate := buf.Format.SampleRate
	if srcRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", srcRate)
	}

	// Normalize integer PCM to [-1, 1]
	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	// Downmix interleaved channels to mono
	frames := len(buf.Data) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch]) / scale
		}
		mono[i] = sum / float64(channels)
	}

	samples := resample(mono, srcRate, TargetSampleRate)
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty audio stream")
	}

	return &Clip{
		Samples:    samples,
		SampleRate: TargetSampleRate,
		Duration:   float64(len(samples)) / float64(TargetSampleRate),
		Channels:   channels,
	}, nil
}

// resample converts a waveform between rates by linear interpolation.
// Good enough for feature extraction; the model was trained on 16 kHz
// material resampled the same way.
func resample(in []float64, srcRate, dstRate int) []float64 {
	if srcRate == dstRate || len(in) == 0 {
		return in
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(in)) / ratio)
	if outLen == 0 {
		return nil
	}

	out := make([]float64, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}
