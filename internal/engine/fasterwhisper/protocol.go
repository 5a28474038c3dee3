package fasterwhisper

import (
	"math"
	"time"

	"github.com/fmueller/whisperd/internal/engine"
)

type readyMessage struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

type request struct {
	ID                   uint64 `json:"id"`
	AudioPath            string `json:"audio_path"`
	BeamSize             int    `json:"beam_size"`
	VADFilter            bool   `json:"vad_filter"`
	MinSilenceDurationMS int64  `json:"min_silence_duration_ms"`
	Language             string `json:"language,omitempty"`
}

type response struct {
	ID       uint64    `json:"id"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []segment `json:"segments"`
	Error    string    `json:"error,omitempty"`
}

type segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func newRequest(id uint64, audioPath string, opts engine.DecodeOptions) request {
	return request{
		ID:                   id,
		AudioPath:            audioPath,
		BeamSize:             opts.BeamSize,
		VADFilter:            opts.VADFilter,
		MinSilenceDurationMS: opts.MinSilenceDuration.Milliseconds(),
		Language:             opts.Language,
	}
}

func (r response) transcription() *engine.Transcription {
	segments := make([]engine.Segment, 0, len(r.Segments))
	for _, seg := range r.Segments {
		segments = append(segments, engine.Segment{
			ID:    seg.ID,
			Start: secondsToDuration(seg.Start),
			End:   secondsToDuration(seg.End),
			Text:  seg.Text,
		})
	}
	return &engine.Transcription{
		Segments: segments,
		Language: r.Language,
		Duration: secondsToDuration(r.Duration),
	}
}

func secondsToDuration(sec float64) time.Duration {
	if sec <= 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}
