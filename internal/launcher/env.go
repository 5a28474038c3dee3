package launcher

import (
	"net"
	"strings"
)

// CUDALibraryPath holds the CUDA 12 runtime shipped with ollama, which the
// faster-whisper wheels link against.
const CUDALibraryPath = "/usr/local/lib/ollama/cuda_v12"

const (
	EnvModel       = "WHISPER_MODEL"
	EnvDevice      = "WHISPER_DEVICE"
	EnvComputeType = "WHISPER_COMPUTE_TYPE"
	EnvPort        = "PORT"
	EnvHost        = "HOST"
	EnvPython      = "WHISPER_PYTHON"
	EnvLibraryPath = "LD_LIBRARY_PATH"
)

// Defaults returns the variables applied when the parent leaves them unset.
func Defaults(goos string) [][2]string {
	device := "cuda"
	if goos == "windows" {
		device = "cpu"
	}
	return [][2]string{
		{EnvModel, "medium"},
		{EnvDevice, device},
		{EnvComputeType, "float16"},
		{EnvPort, "8001"},
		{EnvHost, "127.0.0.1"},
	}
}

// BuildEnv derives the child environment from environ. Variables already
// present, even if empty, are kept.
func BuildEnv(environ []string, goos, python string) []string {
	env := append([]string(nil), environ...)

	if goos != "windows" {
		current, _ := lookupEnv(env, EnvLibraryPath)
		if current == "" {
			env = setEnv(env, EnvLibraryPath, CUDALibraryPath)
		} else {
			env = setEnv(env, EnvLibraryPath, CUDALibraryPath+":"+current)
		}
	}

	for _, kv := range Defaults(goos) {
		if _, ok := lookupEnv(env, kv[0]); !ok {
			env = setEnv(env, kv[0], kv[1])
		}
	}

	return setEnv(env, EnvPython, python)
}

func lookupEnv(environ []string, key string) (string, bool) {
	prefix := key + "="
	for i := len(environ) - 1; i >= 0; i-- {
		if strings.HasPrefix(environ[i], prefix) {
			return environ[i][len(prefix):], true
		}
	}
	return "", false
}

func setEnv(environ []string, key, value string) []string {
	prefix := key + "="
	out := environ[:0]
	for _, kv := range environ {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return append(out, prefix+value)
}

func serviceURL(env []string) string {
	host, _ := lookupEnv(env, EnvHost)
	port, _ := lookupEnv(env, EnvPort)
	return "http://" + net.JoinHostPort(host, port)
}
