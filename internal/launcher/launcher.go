// Package launcher prepares the environment for the transcription service
// and supervises one service process until it exits or is interrupted.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/fmueller/whisperd/internal/client"
	"github.com/fmueller/whisperd/internal/logging"
	"github.com/fmueller/whisperd/internal/platform"
	"go.uber.org/zap"
)

const (
	MsgVenvMissing = "Virtual environment not found. Run setup script first."

	DefaultStopTimeout = 5 * time.Second
)

var (
	ErrVenvMissing        = errors.New("virtual environment not found")
	ErrInterpreterMissing = errors.New("python interpreter not found in venv")
	ErrNoCommand          = errors.New("no service command")
)

type Options struct {
	// ServiceDir holds the venv; empty means the executable's directory.
	ServiceDir string
	// Command is the service argv.
	Command      []string
	ReuseRunning bool

	ReadyAttempts int
	ReadyDelay    time.Duration
	// StopTimeout bounds the wait after an interrupt before the service is
	// killed.
	StopTimeout time.Duration

	// GOOS and Environ default to the running host.
	GOOS    string
	Environ []string

	Stdout io.Writer
	Stderr io.Writer
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.GOOS == "" {
		o.GOOS = runtime.GOOS
	}
	if o.Environ == nil {
		o.Environ = os.Environ()
	}
	if o.ReadyAttempts <= 0 {
		o.ReadyAttempts = client.DefaultReadyAttempts
	}
	if o.ReadyDelay <= 0 {
		o.ReadyDelay = client.DefaultReadyDelay
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}

// Run launches the service and returns the process exit code the launcher
// should finish with. Canceling ctx forwards an interrupt to the service.
func Run(ctx context.Context, opts Options) (int, error) {
	opts = opts.withDefaults()
	logger := opts.Logger

	if len(opts.Command) == 0 {
		return 1, ErrNoCommand
	}

	serviceDir, err := platform.ResolveServiceDir(opts.ServiceDir)
	if err != nil {
		return 1, err
	}

	venvDir := platform.VenvDir(serviceDir)
	if info, err := os.Stat(venvDir); err != nil || !info.IsDir() {
		fmt.Fprintln(opts.Stderr, MsgVenvMissing)
		return 1, fmt.Errorf("%w: %s", ErrVenvMissing, venvDir)
	}

	python := platform.VenvInterpreter(serviceDir, opts.GOOS)
	if _, err := os.Stat(python); err != nil {
		fmt.Fprintf(opts.Stderr, "Python executable not found in venv: %s\n", python)
		return 1, fmt.Errorf("%w: %s", ErrInterpreterMissing, python)
	}

	env := BuildEnv(opts.Environ, opts.GOOS, python)
	baseURL := serviceURL(env)
	printBanner(opts.Stdout, opts.GOOS, env, baseURL)

	health := client.New(baseURL)
	if opts.ReuseRunning && health.Healthy(ctx) {
		fmt.Fprintf(opts.Stdout, "Whisper service already running at %s\n", baseURL)
		logger.Info("using externally running whisper service", zap.String("url", baseURL))
		return 0, nil
	}

	cmd := exec.Command(opts.Command[0], opts.Command[1:]...)
	cmd.Env = env
	cmd.Dir = serviceDir
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	logger.Debug("starting whisper service", zap.Strings("command", opts.Command), zap.String("dir", serviceDir))
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(opts.Stderr, "Failed to start whisper service: %v\n", err)
		return 1, fmt.Errorf("start service: %w", err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	readyCtx, stopReady := context.WithCancel(context.Background())
	defer stopReady()
	go watchReady(readyCtx, health, baseURL, opts)

	select {
	case err := <-exited:
		stopReady()
		return exitStatus(opts.Stderr, err)
	case <-ctx.Done():
	}

	stopReady()
	logger.Debug("forwarding interrupt to whisper service", zap.Int("pid", cmd.Process.Pid))
	interrupt(cmd.Process)
	stopTimer := time.NewTimer(opts.StopTimeout)
	defer stopTimer.Stop()
	select {
	case <-exited:
	case <-stopTimer.C:
		logger.Warn("whisper service ignored interrupt; killing it",
			zap.Int("pid", cmd.Process.Pid),
			zap.Duration("timeout", opts.StopTimeout),
		)
		_ = cmd.Process.Kill()
		<-exited
	}
	fmt.Fprintln(opts.Stdout, "Shutting down whisper service...")
	return 0, nil
}

func printBanner(w io.Writer, goos string, env []string, baseURL string) {
	model, _ := lookupEnv(env, EnvModel)
	device, _ := lookupEnv(env, EnvDevice)
	computeType, _ := lookupEnv(env, EnvComputeType)

	fmt.Fprintln(w, "Starting Whisper Transcription Service")
	fmt.Fprintf(w, "   Platform: %s\n", platformName(goos))
	fmt.Fprintf(w, "   Model: %s\n", model)
	fmt.Fprintf(w, "   Device: %s\n", device)
	fmt.Fprintf(w, "   Compute Type: %s\n", computeType)
	fmt.Fprintf(w, "   Listening on: %s\n", baseURL)
	fmt.Fprintln(w)
}

func platformName(goos string) string {
	switch goos {
	case "darwin":
		return "Darwin"
	case "":
		return "unknown"
	default:
		return strings.ToUpper(goos[:1]) + goos[1:]
	}
}

// watchReady only logs; a service that never reports ready keeps running.
func watchReady(ctx context.Context, health *client.Client, baseURL string, opts Options) {
	if err := health.WaitReady(ctx, opts.ReadyAttempts, opts.ReadyDelay); err != nil {
		if ctx.Err() == nil {
			opts.Logger.Warn("whisper service did not report ready",
				zap.String("url", baseURL),
				zap.Int("attempts", opts.ReadyAttempts),
			)
		}
		return
	}
	opts.Logger.Info("whisper service ready", zap.String("url", baseURL))
}

func interrupt(p *os.Process) {
	if runtime.GOOS == "windows" {
		_ = p.Kill()
		return
	}
	if err := p.Signal(os.Interrupt); err != nil {
		_ = p.Kill()
	}
}

func exitStatus(stderr io.Writer, err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	code := 1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		code = exitErr.ExitCode()
	}
	fmt.Fprintf(stderr, "Server failed with exit code %d\n", code)
	return code, fmt.Errorf("whisper service exited: %w", err)
}
