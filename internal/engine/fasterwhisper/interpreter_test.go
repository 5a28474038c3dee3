package fasterwhisper

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/fmueller/whisperd/internal/platform"
	"github.com/stretchr/testify/require"
)

func TestResolveInterpreterExplicit(t *testing.T) {
	t.Parallel()

	got, err := ResolveInterpreter("/opt/py/bin/python3", t.TempDir(), "linux")
	require.NoError(t, err)
	require.Equal(t, "/opt/py/bin/python3", got)
}

func TestResolveInterpreterPrefersVenv(t *testing.T) {
	t.Parallel()

	serviceDir := t.TempDir()
	venvPython := platform.VenvInterpreter(serviceDir, runtime.GOOS)
	require.NoError(t, os.MkdirAll(filepath.Dir(venvPython), 0o755))
	require.NoError(t, os.WriteFile(venvPython, []byte("#!/bin/sh\n"), 0o755))

	got, err := ResolveInterpreter("", serviceDir, runtime.GOOS)
	require.NoError(t, err)
	require.Equal(t, venvPython, got)
}

func TestResolveInterpreterFallsBackToPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("PATH lookup uses PATHEXT on windows")
	}

	binDir := t.TempDir()
	python := writeFakePython(t, binDir, "python3", "exit 0\n")
	t.Setenv("PATH", binDir)

	got, err := ResolveInterpreter("", t.TempDir(), "linux")
	require.NoError(t, err)
	require.Equal(t, python, got)
}

func TestResolveInterpreterNotFound(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("PATH lookup uses PATHEXT on windows")
	}

	t.Setenv("PATH", t.TempDir())
	_, err := ResolveInterpreter("", "", "linux")
	require.ErrorContains(t, err, "python3 not found")
}
