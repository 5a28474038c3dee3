package launcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildEnvAppliesDefaults(t *testing.T) {
	t.Parallel()

	env := BuildEnv([]string{"PATH=/usr/bin"}, "linux", "/srv/venv/bin/python3")

	for key, want := range map[string]string{
		EnvModel:       "medium",
		EnvDevice:      "cuda",
		EnvComputeType: "float16",
		EnvPort:        "8001",
		EnvHost:        "127.0.0.1",
		EnvPython:      "/srv/venv/bin/python3",
		EnvLibraryPath: CUDALibraryPath,
		"PATH":         "/usr/bin",
	} {
		got, ok := lookupEnv(env, key)
		require.True(t, ok, key)
		require.Equal(t, want, got, key)
	}
}

func TestBuildEnvKeepsExistingValues(t *testing.T) {
	t.Parallel()

	env := BuildEnv([]string{
		"WHISPER_MODEL=large-v3",
		"WHISPER_DEVICE=cpu",
		"PORT=9000",
		"HOST=",
	}, "linux", "/py")

	model, _ := lookupEnv(env, EnvModel)
	require.Equal(t, "large-v3", model)
	device, _ := lookupEnv(env, EnvDevice)
	require.Equal(t, "cpu", device)
	port, _ := lookupEnv(env, EnvPort)
	require.Equal(t, "9000", port)
	host, ok := lookupEnv(env, EnvHost)
	require.True(t, ok)
	require.Empty(t, host)
}

func TestBuildEnvPrependsLibraryPath(t *testing.T) {
	t.Parallel()

	env := BuildEnv([]string{"LD_LIBRARY_PATH=/opt/lib"}, "linux", "/py")
	got, _ := lookupEnv(env, EnvLibraryPath)
	require.Equal(t, CUDALibraryPath+":/opt/lib", got)

	env = BuildEnv([]string{"LD_LIBRARY_PATH="}, "darwin", "/py")
	got, _ = lookupEnv(env, EnvLibraryPath)
	require.Equal(t, CUDALibraryPath, got)
}

func TestBuildEnvWindows(t *testing.T) {
	t.Parallel()

	env := BuildEnv([]string{"LD_LIBRARY_PATH=/opt/lib"}, "windows", `C:\svc\venv\Scripts\python.exe`)

	got, _ := lookupEnv(env, EnvLibraryPath)
	require.Equal(t, "/opt/lib", got)
	device, _ := lookupEnv(env, EnvDevice)
	require.Equal(t, "cpu", device)
	python, _ := lookupEnv(env, EnvPython)
	require.Equal(t, `C:\svc\venv\Scripts\python.exe`, python)

	env = BuildEnv(nil, "windows", "python.exe")
	_, ok := lookupEnv(env, EnvLibraryPath)
	require.False(t, ok)
}

func TestBuildEnvOverridesInheritedPython(t *testing.T) {
	t.Parallel()

	env := BuildEnv([]string{"WHISPER_PYTHON=/usr/bin/python3"}, "linux", "/svc/venv/bin/python3")
	python, _ := lookupEnv(env, EnvPython)
	require.Equal(t, "/svc/venv/bin/python3", python)

	count := 0
	for _, kv := range env {
		if len(kv) > len(EnvPython) && kv[:len(EnvPython)+1] == EnvPython+"=" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestServiceURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "http://127.0.0.1:8001", serviceURL(BuildEnv(nil, "linux", "/py")))
	require.Equal(t, "http://[::1]:9000", serviceURL([]string{"HOST=::1", "PORT=9000"}))
}
