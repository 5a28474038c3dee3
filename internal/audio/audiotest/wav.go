// Package audiotest writes small WAV fixtures for tests.
package audiotest

import (
	"math"
	"os"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WritePCM16 encodes mono 16-bit samples at sampleRate into path.
func WritePCM16(t testing.TB, path string, samples []int16, sampleRate int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav fixture: %v", err)
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalize wav fixture: %v", err)
	}
}

// Silence returns n zero samples.
func Silence(n int) []int16 {
	return make([]int16, n)
}

// Tone returns n samples of a 440 Hz sine at a quarter of full scale.
func Tone(n, sampleRate int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(0.25 * 32767 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	return out
}
