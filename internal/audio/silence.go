package audio

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/wav"
)

type SilenceMetrics struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
}

// IsSilentWAV reports whether an integer PCM WAV stays below thresholdDBFS.
// The peak gate sits 6 dB above the RMS threshold so a single click does not
// count as speech.
func IsSilentWAV(path string, thresholdDBFS float64) (bool, SilenceMetrics, error) {
	metrics, err := measureWAV(path)
	if err != nil {
		return false, SilenceMetrics{}, err
	}

	if metrics.Samples == 0 {
		return true, metrics, nil
	}
	if math.IsInf(metrics.RMSdBFS, -1) && math.IsInf(metrics.PeakdBFS, -1) {
		return true, metrics, nil
	}

	peakGate := thresholdDBFS + 6
	return metrics.RMSdBFS <= thresholdDBFS && metrics.PeakdBFS <= peakGate, metrics, nil
}

func measureWAV(path string) (SilenceMetrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return SilenceMetrics{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return SilenceMetrics{}, ErrInvalidWAV
	}
	if dec.WavAudioFormat != pcmFormat {
		return SilenceMetrics{}, ErrUnsupportedWAV
	}

	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return SilenceMetrics{}, ErrUnsupportedWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return SilenceMetrics{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	fullScale := math.Exp2(float64(bitDepth - 1))
	var peak, sumSquares float64
	for _, raw := range buf.Data {
		sample := float64(raw)
		if bitDepth == 8 {
			// 8-bit PCM is unsigned around 128.
			sample -= 128
		}
		value := sample / fullScale
		if abs := math.Abs(value); abs > peak {
			peak = abs
		}
		sumSquares += value * value
	}

	samples := int64(len(buf.Data))
	if samples == 0 {
		return SilenceMetrics{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}, nil
	}

	return SilenceMetrics{
		RMSdBFS:  amplitudeToDBFS(math.Sqrt(sumSquares / float64(samples))),
		PeakdBFS: amplitudeToDBFS(peak),
		Samples:  samples,
	}, nil
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
