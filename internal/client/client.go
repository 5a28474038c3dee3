// Package client talks to a running whisperd service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/whisperd/internal/api"
	"github.com/fmueller/whisperd/internal/version"
)

const (
	DefaultHealthTimeout     = 2 * time.Second
	DefaultTranscribeTimeout = 5 * time.Minute

	DefaultReadyAttempts = 30
	DefaultReadyDelay    = time.Second
)

var ErrNotReady = errors.New("whisper service failed to become ready")

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("whisper service returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("whisper service returned %d: %s", e.StatusCode, e.Detail)
}

type Client struct {
	BaseURL           string
	HTTPClient        *http.Client
	HealthTimeout     time.Duration
	TranscribeTimeout time.Duration
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:           strings.TrimRight(baseURL, "/"),
		HTTPClient:        &http.Client{},
		HealthTimeout:     DefaultHealthTimeout,
		TranscribeTimeout: DefaultTranscribeTimeout,
	}
}

func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	ctx, cancel := withTimeout(ctx, c.HealthTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, api.PathHealth, nil)
	if err != nil {
		return api.HealthResponse{}, err
	}

	var resp api.HealthResponse
	if err := c.do(req, &resp); err != nil {
		return api.HealthResponse{}, err
	}
	return resp, nil
}

// Healthy reports whether the service answers /health with status ok.
func (c *Client) Healthy(ctx context.Context) bool {
	resp, err := c.Health(ctx)
	return err == nil && resp.Status == api.StatusOK
}

// WaitReady polls Healthy up to attempts times, delay apart.
func (c *Client) WaitReady(ctx context.Context, attempts int, delay time.Duration) error {
	if attempts <= 0 {
		attempts = DefaultReadyAttempts
	}
	for i := 0; i < attempts; i++ {
		if c.Healthy(ctx) {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return ErrNotReady
}

// Transcribe asks the service to read audioPath from its own filesystem.
// Relative paths are made absolute first.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (api.TranscribeResponse, error) {
	abs, err := filepath.Abs(audioPath)
	if err != nil {
		return api.TranscribeResponse{}, fmt.Errorf("resolve audio path: %w", err)
	}
	payload, err := json.Marshal(api.TranscribeRequest{AudioPath: abs})
	if err != nil {
		return api.TranscribeResponse{}, err
	}

	ctx, cancel := withTimeout(ctx, c.TranscribeTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPost, api.PathTranscribe, bytes.NewReader(payload))
	if err != nil {
		return api.TranscribeResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp api.TranscribeResponse
	if err := c.do(req, &resp); err != nil {
		return api.TranscribeResponse{}, err
	}
	return resp, nil
}

// TranscribeFile uploads audioPath, streaming it as multipart form data.
func (c *Client) TranscribeFile(ctx context.Context, audioPath string) (api.TranscribeResponse, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return api.TranscribeResponse{}, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile(api.UploadField, filepath.Base(audioPath))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	ctx, cancel := withTimeout(ctx, c.TranscribeTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPost, api.PathTranscribeFile, pr)
	if err != nil {
		_ = pr.Close()
		return api.TranscribeResponse{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp api.TranscribeResponse
	if err := c.do(req, &resp); err != nil {
		_ = pr.Close()
		return api.TranscribeResponse{}, err
	}
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var envelope api.ErrorResponse
		if json.Unmarshal(body, &envelope) == nil && envelope.Detail != "" {
			statusErr.Detail = envelope.Detail
		} else {
			statusErr.Detail = strings.TrimSpace(string(body))
		}
		return statusErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
