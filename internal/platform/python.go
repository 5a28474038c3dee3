package platform

import (
	"path/filepath"
)

// VenvDirName is the virtual environment directory inside the service dir.
const VenvDirName = "venv"

func VenvDir(serviceDir string) string {
	return filepath.Join(serviceDir, VenvDirName)
}

// VenvInterpreter returns the interpreter path a venv created on goos uses.
func VenvInterpreter(serviceDir, goos string) string {
	if goos == "windows" {
		return filepath.Join(VenvDir(serviceDir), "Scripts", "python.exe")
	}
	return filepath.Join(VenvDir(serviceDir), "bin", "python3")
}

// SystemPythonName is the interpreter looked up on PATH when no venv exists.
func SystemPythonName(goos string) string {
	if goos == "windows" {
		return "python.exe"
	}
	return "python3"
}
