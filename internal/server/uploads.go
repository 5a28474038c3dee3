package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fmueller/whisperd/internal/api"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const uploadPrefix = "whisper-upload-"

// receiveUpload streams the multipart file field into the upload directory
// and returns the stored path.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request) (string, error) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return "", &httpError{status: http.StatusBadRequest, msg: "Expected multipart/form-data upload", err: err}
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", &httpError{status: http.StatusBadRequest, msg: "Missing form field: " + api.UploadField}
		}
		if err != nil {
			return "", s.uploadReadError(err)
		}
		if part.FormName() != api.UploadField {
			_ = part.Close()
			continue
		}

		path, err := s.saveUpload(part, part.FileName())
		_ = part.Close()
		if err != nil {
			return "", err
		}
		return path, nil
	}
}

func (s *Server) saveUpload(src io.Reader, filename string) (string, error) {
	path := filepath.Join(s.uploadDir, StorageName(filename))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	_, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		s.removeUpload(path)
		if copyErr != nil {
			return "", s.uploadReadError(copyErr)
		}
		return "", fmt.Errorf("write upload file: %w", closeErr)
	}

	s.logger.Debug("upload stored", zap.String("path", path))
	return path, nil
}

func (s *Server) uploadReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return &httpError{
			status: http.StatusRequestEntityTooLarge,
			msg:    fmt.Sprintf("Uploaded file exceeds %d bytes", maxErr.Limit),
			err:    err,
		}
	}
	return &httpError{status: http.StatusBadRequest, msg: "Failed to read upload", err: err}
}

// removeUpload deletes a stored upload. Failures are logged, never returned.
func (s *Server) removeUpload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove upload", zap.String("path", path), zap.Error(err))
	}
}

// StorageName derives a collision-free file name for an upload, keeping the
// client's base name so engines can sniff the extension.
func StorageName(filename string) string {
	return uploadPrefix + uuid.NewString() + "-" + SanitizeFilename(filename)
}

func SanitizeFilename(filename string) string {
	name := strings.ReplaceAll(filename, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(`:*?"<>|`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return "audio"
	}
	return name
}
