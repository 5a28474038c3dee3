package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fmueller/whisperd/internal/api"
	"github.com/fmueller/whisperd/internal/engine"
	"go.uber.org/zap"
)

const detailModelNotLoaded = "Model not loaded"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status:  api.StatusOK,
		Model:   s.modelName,
		Backend: s.backend,
	}
	if spec, ok := s.handle.Spec(); ok {
		resp.ModelLoaded = true
		resp.Device = spec.Device
		resp.ComputeType = spec.ComputeType
	}
	jsonResponse(w, resp, http.StatusOK)
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	model, ok := s.handle.Model()
	if !ok {
		jsonError(w, detailModelNotLoaded, http.StatusServiceUnavailable)
		return
	}

	// AudioPath is nil when the key is absent or null. Any string, blank
	// included, goes to os.Stat.
	var req struct {
		AudioPath *string `json:"audio_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.AudioPath == nil {
		jsonError(w, "audio_path is required", http.StatusBadRequest)
		return
	}
	audioPath := *req.AudioPath

	if _, err := os.Stat(audioPath); err != nil {
		jsonError(w, "Audio file not found: "+audioPath, http.StatusNotFound)
		return
	}

	s.transcribe(w, r, model, audioPath)
}

func (s *Server) handleTranscribeFile(w http.ResponseWriter, r *http.Request) {
	model, ok := s.handle.Model()
	if !ok {
		jsonError(w, detailModelNotLoaded, http.StatusServiceUnavailable)
		return
	}

	path, err := s.receiveUpload(w, r)
	if err != nil {
		var herr *httpError
		if !errors.As(err, &herr) {
			herr = &httpError{status: http.StatusInternalServerError, msg: "Failed to store upload", err: err}
		}
		if herr.status >= 500 {
			s.logger.Error("upload failed", zap.Error(err))
		}
		jsonError(w, herr.msg, herr.status)
		return
	}
	defer s.removeUpload(path)

	s.transcribe(w, r, model, path)
}

// transcribe runs the model on a context detached from the client, so a
// disconnect does not abort decoding.
func (s *Server) transcribe(w http.ResponseWriter, r *http.Request, model engine.Model, audioPath string) {
	ctx := context.WithoutCancel(r.Context())
	start := time.Now()

	s.logger.Info("transcribing", zap.String("audio", audioPath))
	tr, err := model.Transcribe(ctx, audioPath, engine.DefaultDecodeOptions())
	if err != nil {
		s.logger.Error("transcription error", zap.String("audio", audioPath), zap.Error(err))
		jsonError(w, "Transcription error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := api.NewTranscribeResponse(tr)
	s.logger.Info("transcription complete",
		zap.String("language", resp.Language),
		zap.Float64("duration", resp.Duration),
		zap.Duration("elapsed", time.Since(start)),
	)
	jsonResponse(w, resp, http.StatusOK)
}
