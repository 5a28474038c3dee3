// Package engine defines the transcription model contract shared by every
// backend, and owns the single model handle the service reads from.
package engine

import (
	"context"
	"strings"
	"time"
)

const (
	DefaultBeamSize           = 5
	DefaultMinSilenceDuration = 500 * time.Millisecond

	FallbackDevice      = "cpu"
	FallbackComputeType = "int8"
)

// Model is a loaded transcription engine. Transcribe must be safe to call
// from concurrent requests.
type Model interface {
	Transcribe(ctx context.Context, audioPath string, opts DecodeOptions) (*Transcription, error)
	Close() error
}

// ModelSpec names a model and the hardware configuration to load it with.
type ModelSpec struct {
	Name        string
	Device      string
	ComputeType string
}

// Fallback is the CPU configuration tried once when s cannot be loaded.
func (s ModelSpec) Fallback() ModelSpec {
	return ModelSpec{Name: s.Name, Device: FallbackDevice, ComputeType: FallbackComputeType}
}

type DecodeOptions struct {
	BeamSize           int
	VADFilter          bool
	MinSilenceDuration time.Duration
	// Language is empty for auto-detection.
	Language string
}

// DefaultDecodeOptions is the fixed configuration used by both endpoints.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{
		BeamSize:           DefaultBeamSize,
		VADFilter:          true,
		MinSilenceDuration: DefaultMinSilenceDuration,
	}
}

type Segment struct {
	ID    int
	Start time.Duration
	End   time.Duration
	Text  string
}

type Transcription struct {
	Segments []Segment
	Language string
	Duration time.Duration
}

// Text joins every segment, trimmed, with single spaces in emission order.
func (t *Transcription) Text() string {
	if t == nil || len(t.Segments) == 0 {
		return ""
	}
	parts := make([]string, len(t.Segments))
	for i, seg := range t.Segments {
		parts[i] = strings.TrimSpace(seg.Text)
	}
	return strings.Join(parts, " ")
}

// Seconds reports the duration as fractional seconds.
func (t *Transcription) Seconds() float64 {
	if t == nil {
		return 0
	}
	return t.Duration.Seconds()
}
