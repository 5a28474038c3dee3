package fasterwhisper

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/fmueller/whisperd/internal/platform"
)

// ResolveInterpreter picks the Python used for the worker: an explicit path,
// then the service venv, then the system interpreter on PATH.
func ResolveInterpreter(explicit, serviceDir, goos string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if serviceDir != "" {
		candidate := platform.VenvInterpreter(serviceDir, goos)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	name := platform.SystemPythonName(goos)
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("python interpreter %s not found: %w", name, err)
	}
	return path, nil
}
