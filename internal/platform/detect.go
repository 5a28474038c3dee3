package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = "whisperd"

type Runtime struct {
	OS   string
	Arch string
}

func CurrentRuntime() Runtime {
	return Runtime{
		OS:   runtime.GOOS,
		Arch: NormalizeArch(runtime.GOARCH),
	}
}

func (r Runtime) IsWindows() bool {
	return r.OS == "windows"
}

func (r Runtime) Target() string {
	return r.OS + "_" + r.Arch
}

func NormalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}

// DataDirs carries the environment-derived roots used to place model files.
type DataDirs struct {
	Home         string
	XDGDataHome  string
	LocalAppData string
}

func CurrentDataDirs() (DataDirs, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DataDirs{}, fmt.Errorf("resolve user home: %w", err)
	}
	return DataDirs{
		Home:         homeDir,
		XDGDataHome:  os.Getenv("XDG_DATA_HOME"),
		LocalAppData: os.Getenv("LOCALAPPDATA"),
	}, nil
}

func DefaultModelDirFor(goos string, dirs DataDirs) (string, error) {
	dataDir, err := defaultDataDirFor(goos, dirs)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "models"), nil
}

func ResolveModelDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}

	dirs, err := CurrentDataDirs()
	if err != nil {
		return "", err
	}

	return DefaultModelDirFor(runtime.GOOS, dirs)
}

// ResolveServiceDir returns override when set, otherwise the directory that
// holds the running executable. The provisioned venv lives there.
func ResolveServiceDir(override string) (string, error) {
	if override != "" {
		return filepath.Abs(override)
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

func defaultDataDirFor(goos string, dirs DataDirs) (string, error) {
	if dirs.Home == "" {
		return "", errors.New("home directory is empty")
	}

	switch goos {
	case "linux":
		if dirs.XDGDataHome != "" {
			return filepath.Join(dirs.XDGDataHome, appDirName), nil
		}
		return filepath.Join(dirs.Home, ".local", "share", appDirName), nil
	case "darwin":
		return filepath.Join(dirs.Home, "Library", "Application Support", appDirName), nil
	case "windows":
		if dirs.LocalAppData != "" {
			return filepath.Join(dirs.LocalAppData, appDirName), nil
		}
		return filepath.Join(dirs.Home, "AppData", "Local", appDirName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
}
