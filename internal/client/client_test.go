package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fmueller/whisperd/internal/api"
	"github.com/fmueller/whisperd/internal/engine"
	"github.com/fmueller/whisperd/internal/server"
	"github.com/stretchr/testify/require"
)

// newService runs the real router over a stub model.
func newService(t *testing.T, model engine.Model) *httptest.Server {
	t.Helper()
	handle := engine.NewHandle()
	if model != nil {
		require.NoError(t, handle.Set(model, engine.ModelSpec{Name: "tiny", Device: "cpu", ComputeType: "int8"}))
	}
	srv := httptest.NewServer(server.New(server.Options{
		Handle:         handle,
		ModelName:      "tiny",
		Backend:        "stub",
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1 << 20,
	}).Router())
	t.Cleanup(srv.Close)
	return srv
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	return path
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newService(t, engine.NewStubModel("hi"))
	c := New(srv.URL + "/")

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
	require.True(t, health.ModelLoaded)
	require.Equal(t, "cpu", health.Device)
	require.True(t, c.Healthy(context.Background()))
}

func TestHealthyFalseWhenUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	require.False(t, New(url).Healthy(context.Background()))
}

func TestTranscribeByPath(t *testing.T) {
	t.Parallel()

	stub := engine.NewStubModel("hello", "world")
	c := New(newService(t, stub).URL)
	audioPath := writeAudio(t)

	resp, err := c.Transcribe(context.Background(), audioPath)
	require.NoError(t, err)
	require.Equal(t, "hello world", resp.Text)
	require.Equal(t, "en", resp.Language)
	require.Equal(t, audioPath, stub.LastPath())
}

func TestTranscribeByUpload(t *testing.T) {
	t.Parallel()

	stub := engine.NewStubModel("uploaded")
	c := New(newService(t, stub).URL)

	resp, err := c.TranscribeFile(context.Background(), writeAudio(t))
	require.NoError(t, err)
	require.Equal(t, "uploaded", resp.Text)
	require.Contains(t, filepath.Base(stub.LastPath()), "-clip.wav")
}

func TestTranscribeSurfacesStatusError(t *testing.T) {
	t.Parallel()

	c := New(newService(t, nil).URL)
	_, err := c.Transcribe(context.Background(), writeAudio(t))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	require.Equal(t, "Model not loaded", statusErr.Detail)
	require.EqualError(t, err, "whisper service returned 503: Model not loaded")
}

func TestTranscribeMissingOnServer(t *testing.T) {
	t.Parallel()

	c := New(newService(t, engine.NewStubModel()).URL)
	missing := filepath.Join(t.TempDir(), "gone.wav")
	_, err := c.Transcribe(context.Background(), missing)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	require.Equal(t, "Audio file not found: "+missing, statusErr.Detail)
}

func TestTranscribeFileMissingLocally(t *testing.T) {
	t.Parallel()

	_, err := New("http://127.0.0.1:1").TranscribeFile(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestStatusErrorWithoutEnvelope(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down\n")
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL).Health(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, "upstream down", statusErr.Detail)
}

func TestWaitReadyPollsUntilHealthy(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(api.HealthResponse{Status: "ok", Model: "tiny", ModelLoaded: true})
	}))
	t.Cleanup(srv.Close)

	require.NoError(t, New(srv.URL).WaitReady(context.Background(), 5, time.Millisecond))
	require.Equal(t, int32(3), calls.Load())
}

func TestWaitReadyGivesUp(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	err := New(srv.URL).WaitReady(context.Background(), 3, time.Millisecond)
	require.ErrorIs(t, err, ErrNotReady)
	require.Equal(t, int32(3), calls.Load())
}

func TestWaitReadyHonorsContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := New(srv.URL).WaitReady(ctx, 100, time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
