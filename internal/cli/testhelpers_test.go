package cli

import (
	"bytes"
	"context"
	"net"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/fmueller/whisperd/internal/audio/audiotest"
	"github.com/fmueller/whisperd/internal/engine"
	"github.com/fmueller/whisperd/internal/server"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()
	return runCommandContext(t, context.Background(), args)
}

func runCommandContext(t *testing.T, ctx context.Context, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := NewRootCmd()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.ExecuteContext(ctx)
	return outBuf.String(), errBuf.String(), err
}

func freePort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func writeTestWAV(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "speech.wav")
	audiotest.WritePCM16(t, path, audiotest.Tone(1600, 16000), 16000)
	return path
}

// startStubService serves a loaded stub model and returns its base URL.
func startStubService(t *testing.T, model *engine.StubModel) string {
	t.Helper()

	handle := engine.NewHandle()
	require.NoError(t, handle.Set(model, engine.ModelSpec{Name: "tiny", Device: "cpu", ComputeType: "int8"}))

	srv := server.New(server.Options{Handle: handle, ModelName: "tiny", MaxUploadBytes: 1 << 20})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts.URL
}
