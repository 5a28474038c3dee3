package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestDownloader() *Downloader {
	d := New(nil, true)
	d.Backoff = time.Millisecond
	return d
}

func TestParseChecksumPrefersMatchingFilename(t *testing.T) {
	t.Parallel()

	content := []byte(strings.Repeat("a", 64) + "  ggml-tiny.bin\n" +
		strings.Repeat("b", 64) + "  ggml-base.bin\n")

	parsed, err := ParseChecksum(content, "ggml-base.bin")
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("b", 64), parsed)
}

func TestParseChecksumMissing(t *testing.T) {
	t.Parallel()

	_, err := ParseChecksum([]byte("nothing here"), "ggml-base.bin")
	require.Error(t, err)
}

func TestVerifyFileChecksum(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ggml-tiny.bin")
	payload := []byte("weights")
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	sum := sha256.Sum256(payload)
	require.NoError(t, VerifyFileChecksum(path, hex.EncodeToString(sum[:])))
	require.ErrorIs(t, VerifyFileChecksum(path, "deadbeef"), ErrChecksumMismatch)
	require.NoError(t, VerifyFileChecksum(path, ""))
}

func TestFetchWithChecksumURL(t *testing.T) {
	t.Parallel()

	payload := []byte("model-bytes")
	sum := sha256.Sum256(payload)
	destination := filepath.Join(t.TempDir(), "models", "ggml-tiny.bin")
	checksumBody := fmt.Sprintf("%s  %s\n", hex.EncodeToString(sum[:]), filepath.Base(destination))

	var userAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.UserAgent())
		switch r.URL.Path {
		case "/model":
			_, _ = w.Write(payload)
		case "/checksums.txt":
			_, _ = w.Write([]byte(checksumBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	err := newTestDownloader().Fetch(context.Background(), Request{
		URL:         server.URL + "/model",
		Destination: destination,
		ChecksumURL: server.URL + "/checksums.txt",
	})
	require.NoError(t, err)

	onDisk, err := os.ReadFile(destination)
	require.NoError(t, err)
	require.Equal(t, payload, onDisk)
	require.True(t, strings.HasPrefix(userAgent.Load().(string), "whisperd/"))
}

func TestFetchChecksumMismatchLeavesNoFile(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("tampered"))
	}))
	defer server.Close()

	destination := filepath.Join(t.TempDir(), "ggml-tiny.bin")
	err := newTestDownloader().Fetch(context.Background(), Request{
		URL:            server.URL,
		Destination:    destination,
		ExpectedSHA256: strings.Repeat("0", 64),
	})
	require.ErrorIs(t, err, ErrChecksumMismatch)
	require.EqualValues(t, 3, calls.Load())
	require.NoFileExists(t, destination)
	require.NoFileExists(t, destination+".part")
}

func TestFetchRequiresURLAndDestination(t *testing.T) {
	t.Parallel()

	d := newTestDownloader()
	require.Error(t, d.Fetch(context.Background(), Request{Destination: "x"}))
	require.Error(t, d.Fetch(context.Background(), Request{URL: "http://example.invalid"}))
}

func TestResolveChecksum(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("c", 64) + "  model.bin\n"))
	}))
	defer server.Close()

	checksum, err := newTestDownloader().ResolveChecksum(context.Background(), server.URL, "model.bin")
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("c", 64), checksum)
}
