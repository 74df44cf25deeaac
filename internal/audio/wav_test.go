package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// buildWAV assembles a 16-bit PCM WAV file from interleaved samples in
// [-1, 1].
func buildWAV(samples []float64, sampleRate, channels int) []byte {
	var data bytes.Buffer
	for _, s := range samples {
		v := int16(math.Round(s * 32767))
		binary.Write(&data, binary.LittleEndian, v)
	}

	var buf bytes.Buffer
	dataLen := uint32(data.Len())
	byteRate := uint32(sampleRate * channels * 2)
	blockAlign := uint16(channels * 2)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // bit depth
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(data.Bytes())

	return buf.Bytes()
}

// sineWave generates a mono sine at the given frequency
func sineWave(freq float64, sampleRate int, seconds float64) []float64 {
	n := int(float64(sampleRate) * seconds)
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestDecode_Mono16k(t *testing.T) {
	wavData := buildWAV(sineWave(440, 16000, 0.5), 16000, 1)

	clip, err := Decode(bytes.NewReader(wavData))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if clip.SampleRate != TargetSampleRate {
		t.Errorf("expected sample rate %d, got %d", TargetSampleRate, clip.SampleRate)
	}
	if clip.Channels != 1 {
		t.Errorf("expected 1 channel, got %d", clip.Channels)
	}
	if math.Abs(clip.Duration-0.5) > 0.01 {
		t.Errorf("expected duration ~0.5s, got %f", clip.Duration)
	}

	for i, s := range clip.Samples {
		if s < -1.0 || s > 1.0 {
			t.Fatalf("sample %d out of range: %f", i, s)
		}
	}
}

func TestDecode_StereoDownmix(t *testing.T) {
	// Opposite-phase channels cancel on downmix
	n := 8000
	interleaved := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		interleaved[2*i] = 0.5
		interleaved[2*i+1] = -0.5
	}
	wavData := buildWAV(interleaved, 16000, 2)

	clip, err := Decode(bytes.NewReader(wavData))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if clip.Channels != 2 {
		t.Errorf("expected 2 source channels, got %d", clip.Channels)
	}
	if len(clip.Samples) != n {
		t.Errorf("expected %d mono samples, got %d", n, len(clip.Samples))
	}
	for i, s := range clip.Samples {
		if math.Abs(s) > 0.001 {
			t.Fatalf("expected near-zero downmix at %d, got %f", i, s)
		}
	}
}

func TestDecode_Resamples44k(t *testing.T) {
	wavData := buildWAV(sineWave(440, 44100, 1.0), 44100, 1)

	clip, err := Decode(bytes.NewReader(wavData))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if clip.SampleRate != TargetSampleRate {
		t.Errorf("expected sample rate %d, got %d", TargetSampleRate, clip.SampleRate)
	}
	if math.Abs(float64(len(clip.Samples))-16000) > 10 {
		t.Errorf("expected ~16000 samples after resampling, got %d", len(clip.Samples))
	}
}

func TestDecode_InvalidData(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("definitely not a wav file")))
	if err == nil {
		t.Fatal("expected error for invalid data")
	}
}

func TestDecode_EmptyStream(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil))
	if err == nil {
		t.Fatal("expected error for empty stream")
	}
}

func TestResample_Identity(t *testing.T) {
	in := []float64{0.1, 0.2, 0.3, 0.4}
	out := resample(in, 16000, 16000)
	if len(out) != len(in) {
		t.Fatalf("expected identity resample, got %d samples", len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d changed: %f != %f", i, out[i], in[i])
		}
	}
}

func TestResample_Halves(t *testing.T) {
	in := make([]float64, 32000)
	out := resample(in, 32000, 16000)
	if len(out) != 16000 {
		t.Errorf("expected 16000 samples, got %d", len(out))
	}
}
