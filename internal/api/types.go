// Package api holds the JSON bodies exchanged with the transcription service.
package api

import "github.com/fmueller/whisperd/internal/engine"

const (
	PathHealth         = "/health"
	PathTranscribe     = "/transcribe"
	PathTranscribeFile = "/transcribe-file"

	// UploadField is the multipart field carrying the audio payload.
	UploadField = "file"

	StatusOK = "ok"
)

type TranscribeRequest struct {
	AudioPath string `json:"audio_path"`
}

type TranscribeResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Model       string `json:"model"`
	ModelLoaded bool   `json:"model_loaded"`
	Backend     string `json:"backend,omitempty"`
	Device      string `json:"device,omitempty"`
	ComputeType string `json:"compute_type,omitempty"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

// NewTranscribeResponse shapes tr for the wire. A nil tr is an empty result.
func NewTranscribeResponse(tr *engine.Transcription) TranscribeResponse {
	if tr == nil {
		return TranscribeResponse{}
	}
	return TranscribeResponse{
		Text:     tr.Text(),
		Language: tr.Language,
		Duration: tr.Seconds(),
	}
}
