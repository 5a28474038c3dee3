// Package whispercpp transcribes through a whisper.cpp whisper-cli
// executable, one process per request.
package whispercpp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/fmueller/whisperd/internal/audio"
	"github.com/fmueller/whisperd/internal/engine"
	"github.com/fmueller/whisperd/internal/logging"
	"github.com/fmueller/whisperd/internal/platform"
	"go.uber.org/zap"
)

const DefaultSilenceThresholdDBFS = -65.0

type Options struct {
	// Executable overrides whisper-cli discovery.
	Executable string
	ModelDir   string
	// VADModel enables whisper.cpp's Silero VAD. Without it a silence gate
	// stands in for VAD on WAV input.
	VADModel             string
	SilenceThresholdDBFS float64
	Logger               *zap.Logger
}

// CLIModel is an engine.Model that shells out to whisper-cli. Each call is
// an independent process, so calls may run concurrently.
type CLIModel struct {
	Executable  string
	ModelPath   string
	Device      string
	VADModel    string
	SilenceDBFS float64
	Logger      *zap.Logger
}

func Factory(opts Options) engine.Factory {
	return func(ctx context.Context, spec engine.ModelSpec) (engine.Model, error) {
		return Load(ctx, spec, opts)
	}
}

// Load resolves the executable and the ggml model file. whisper-cli only
// touches the GPU when it runs, so device problems surface per request.
func Load(_ context.Context, spec engine.ModelSpec, opts Options) (*CLIModel, error) {
	logger := logging.OrNop(opts.Logger)

	executable, err := ResolveExecutable(opts.Executable)
	if err != nil {
		return nil, err
	}

	resolved, err := ResolveModel(spec.Name, opts.ModelDir)
	if err != nil {
		return nil, err
	}
	if resolved.NeedsDownload {
		return nil, fmt.Errorf("model %s not found at %s; run `whisperd setup --model %s`", resolved.Name, resolved.Path, resolved.Name)
	}

	if opts.VADModel != "" {
		if _, err := os.Stat(opts.VADModel); err != nil {
			return nil, fmt.Errorf("vad model: %w", err)
		}
	}

	threshold := opts.SilenceThresholdDBFS
	if threshold == 0 {
		threshold = DefaultSilenceThresholdDBFS
	}

	if spec.ComputeType != "" {
		logger.Debug("whisper-cli picks precision from the model file; compute type ignored", zap.String("compute_type", spec.ComputeType))
	}

	return &CLIModel{
		Executable:  executable,
		ModelPath:   resolved.Path,
		Device:      spec.Device,
		VADModel:    opts.VADModel,
		SilenceDBFS: threshold,
		Logger:      logger,
	}, nil
}

func ResolveExecutable(override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		if err := ensureExecutable(override); err != nil {
			return "", fmt.Errorf("WHISPER_CLI_PATH is not executable: %w", err)
		}
		return override, nil
	}

	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve whisperd executable path: %w", err)
	}

	if path, err := ResolveBundledEnginePath(self); err == nil {
		return path, nil
	}
	if path, err := exec.LookPath(engineBinaryName()); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("whisper-cli not found near %s or on PATH; set WHISPER_CLI_PATH or install it at ../libexec/whisper/%s", self, engineBinaryName())
}

func ResolveBundledEnginePath(selfExecutable string) (string, error) {
	for _, candidate := range EnginePathCandidates(selfExecutable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("bundled whisper engine not found near %s", selfExecutable)
}

func EnginePathCandidates(selfExecutable string) []string {
	binDir := filepath.Dir(selfExecutable)
	engineName := engineBinaryName()
	hostTarget := platform.CurrentRuntime().Target()

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, "packaging", "whisper", hostTarget, engineName),
		filepath.Join(binDir, engineName),
	}
}

func (m *CLIModel) Transcribe(ctx context.Context, audioPath string, opts engine.DecodeOptions) (*engine.Transcription, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, errors.New("audio path is required")
	}
	logger := logging.OrNop(m.Logger)

	if opts.VADFilter && m.VADModel == "" {
		if tr, ok := m.silentTranscription(audioPath); ok {
			return tr, nil
		}
	}

	if err := ensureExecutable(m.Executable); err != nil {
		return nil, fmt.Errorf("whisper engine missing or not executable: %w", err)
	}

	outDir, err := os.MkdirTemp("", "whisperd-cpp-*")
	if err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	defer os.RemoveAll(outDir)
	outBase := filepath.Join(outDir, "out")

	args := m.args(audioPath, outBase, opts)
	cmd := exec.CommandContext(ctx, m.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	logger.Debug("running whisper engine", zap.String("engine", m.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if isMissingSharedLibraryError(errText) {
			return nil, fmt.Errorf("whisper engine at %s is missing required shared libraries (%s); rebuild whisper-cli with BUILD_SHARED_LIBS=OFF or fix the library path", m.Executable, errText)
		}
		if isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()) {
			return nil, errors.New("whisper engine crashed with an illegal CPU instruction; " +
				"your CPU may lack required instruction set extensions; " +
				"set WHISPER_CLI_PATH to a whisper-cli binary built for your CPU")
		}
		return nil, fmt.Errorf("whisper transcribe failed: %w (%s)", err, errText)
	}

	tr, err := readOutput(outBase + ".json")
	if err != nil {
		return nil, err
	}
	if audio.IsWAV(audioPath) {
		if info, err := audio.Inspect(audioPath); err == nil {
			tr.Duration = info.Duration
		}
	}
	return tr, nil
}

func (m *CLIModel) Close() error {
	return nil
}

func (m *CLIModel) args(audioPath, outBase string, opts engine.DecodeOptions) []string {
	beam := opts.BeamSize
	if beam <= 0 {
		beam = engine.DefaultBeamSize
	}
	lang := strings.TrimSpace(opts.Language)
	if lang == "" {
		lang = "auto"
	}

	args := []string{
		"-m", m.ModelPath,
		"-f", audioPath,
		"-bs", strconv.Itoa(beam),
		"-l", lang,
		"-oj",
		"-of", outBase,
	}
	if strings.EqualFold(m.Device, "cpu") {
		args = append(args, "-ng")
	}
	if opts.VADFilter && m.VADModel != "" {
		args = append(args,
			"--vad",
			"-vm", m.VADModel,
			"-vsd", strconv.FormatInt(opts.MinSilenceDuration.Milliseconds(), 10),
		)
	}
	return args
}

// silentTranscription short-circuits near-silent WAV input to an empty
// result. Analysis failures fall through to the engine.
func (m *CLIModel) silentTranscription(audioPath string) (*engine.Transcription, bool) {
	if !audio.IsWAV(audioPath) {
		return nil, false
	}
	logger := logging.OrNop(m.Logger)

	silent, metrics, err := audio.IsSilentWAV(audioPath, m.SilenceDBFS)
	if err != nil {
		logger.Warn("silence gate analysis failed; continuing transcription", zap.Error(err), zap.String("audio", audioPath))
		return nil, false
	}
	if !silent {
		return nil, false
	}

	logger.Info(
		"audio considered silent; skipping transcription",
		zap.String("audio", audioPath),
		zap.Float64("rms_dbfs", metrics.RMSdBFS),
		zap.Float64("peak_dbfs", metrics.PeakdBFS),
		zap.Float64("threshold_dbfs", m.SilenceDBFS),
	)

	tr := &engine.Transcription{}
	if info, err := audio.Inspect(audioPath); err == nil {
		tr.Duration = info.Duration
	}
	return tr, true
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	patterns := []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	}

	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}

	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}
