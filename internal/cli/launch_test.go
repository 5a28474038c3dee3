package cli

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/fmueller/whisperd/internal/launcher"
	"github.com/fmueller/whisperd/internal/platform"
	"github.com/stretchr/testify/require"
)

func provisionServiceDir(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script service stub")
	}

	serviceDir := t.TempDir()
	python := platform.VenvInterpreter(serviceDir, runtime.GOOS)
	require.NoError(t, os.MkdirAll(filepath.Dir(python), 0o755))
	require.NoError(t, os.WriteFile(python, []byte("#!/bin/sh\n"), 0o755))
	return serviceDir
}

func TestLaunchWithoutVenvExitsOne(t *testing.T) {
	t.Parallel()

	_, stderr, err := runCommand(t, []string{"launch", "--service-dir", t.TempDir(), "--", "/bin/true"})

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected ExitError, got %v", err)
	require.Equal(t, 1, exitErr.Code)
	require.Nil(t, exitErr.Err)
	require.Contains(t, stderr, launcher.MsgVenvMissing)
}

func TestLaunchPropagatesServiceExitCode(t *testing.T) {
	t.Parallel()

	serviceDir := provisionServiceDir(t)
	script := filepath.Join(t.TempDir(), "service")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"model=$WHISPER_MODEL\"\nexit 3\n"), 0o755))

	stdout, stderr, err := runCommand(t, []string{"launch", "--service-dir", serviceDir, "--", script})

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected ExitError, got %v", err)
	require.Equal(t, 3, exitErr.Code)
	require.Contains(t, stdout, "Starting Whisper Transcription Service")
	require.Contains(t, stdout, "model=")
	require.Contains(t, stderr, "Server failed with exit code 3")
}

func TestLaunchCleanServiceExit(t *testing.T) {
	t.Parallel()

	serviceDir := provisionServiceDir(t)
	script := filepath.Join(t.TempDir(), "service")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	_, _, err := runCommand(t, []string{"launch", "--service-dir", serviceDir, "--", script})
	require.NoError(t, err)
}
