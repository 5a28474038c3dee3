// Package fasterwhisper runs the faster-whisper Python engine as a long-lived
// worker process and speaks a JSON-lines protocol with it.
package fasterwhisper

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fmueller/whisperd/internal/engine"
	"github.com/fmueller/whisperd/internal/logging"
	"go.uber.org/zap"
)

//go:embed worker.py
var workerScript string

var ErrWorkerExited = errors.New("faster-whisper worker exited")

const (
	// DefaultStartTimeout covers a first-run model download from the hub.
	DefaultStartTimeout = 10 * time.Minute

	stopTimeout     = 5 * time.Second
	maxLineBytes    = 64 << 20
	stderrTailLines = 20
)

type Options struct {
	// Python overrides interpreter discovery.
	Python       string
	ServiceDir   string
	StartTimeout time.Duration
	Logger       *zap.Logger
}

// Worker is an engine.Model backed by one Python process. Calls are
// serialized; the worker is not restarted once it exits.
type Worker struct {
	logger *zap.Logger

	mu     sync.Mutex
	stdin  io.WriteCloser
	nextID uint64

	ready     chan readyMessage
	responses chan response
	quit      chan struct{}
	done      chan struct{}

	cmd        *exec.Cmd
	stderr     *lineTail
	stderrDone chan struct{}
	waitErr    error

	closeOnce sync.Once
}

// Factory adapts Start to engine.Factory.
func Factory(opts Options) engine.Factory {
	return func(ctx context.Context, spec engine.ModelSpec) (engine.Model, error) {
		return Start(ctx, spec, opts)
	}
}

// Start launches the worker and blocks until the model is loaded or the load
// fails.
func Start(ctx context.Context, spec engine.ModelSpec, opts Options) (*Worker, error) {
	logger := logging.OrNop(opts.Logger)

	python, err := ResolveInterpreter(opts.Python, opts.ServiceDir, runtime.GOOS)
	if err != nil {
		return nil, err
	}

	// The process outlives ctx, so it is not bound to it.
	cmd := exec.Command(python, "-u", "-c", workerScript,
		"--model", spec.Name,
		"--device", spec.Device,
		"--compute-type", spec.ComputeType,
	)
	cmd.Env = append(os.Environ(), "PYTHONIOENCODING=utf-8", "PYTHONUNBUFFERED=1")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stderr: %w", err)
	}

	logger.Debug("starting faster-whisper worker", zap.String("python", python), zap.String("model", spec.Name))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start python worker %s: %w", python, err)
	}

	w := &Worker{
		logger:     logger,
		stdin:      stdin,
		ready:      make(chan readyMessage, 1),
		responses:  make(chan response),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		cmd:        cmd,
		stderr:     newLineTail(stderrTailLines),
		stderrDone: make(chan struct{}),
	}
	go w.pumpStderr(stderr)
	go w.readLoop(stdout)

	timeout := opts.StartTimeout
	if timeout <= 0 {
		timeout = DefaultStartTimeout
	}
	startCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := w.handshake(startCtx); err != nil {
		_ = w.Close()
		if tail := w.stderr.String(); tail != "" {
			return nil, fmt.Errorf("%w\n%s", err, tail)
		}
		return nil, err
	}
	return w, nil
}

// newWorker wires a worker to an already running peer; used with in-memory
// pipes.
func newWorker(stdin io.WriteCloser, stdout io.Reader, logger *zap.Logger) *Worker {
	w := &Worker{
		logger:    logging.OrNop(logger),
		stdin:     stdin,
		ready:     make(chan readyMessage, 1),
		responses: make(chan response),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		stderr:    newLineTail(stderrTailLines),
	}
	go w.readLoop(stdout)
	return w
}

func (w *Worker) handshake(ctx context.Context) error {
	select {
	case msg, ok := <-w.ready:
		if !ok {
			return fmt.Errorf("load model: %w", w.exitErr())
		}
		if !msg.Ready {
			if msg.Error == "" {
				msg.Error = "worker reported not ready"
			}
			return fmt.Errorf("load model: %s", msg.Error)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("load model: %w", ctx.Err())
	}
}

func (w *Worker) Transcribe(ctx context.Context, audioPath string, opts engine.DecodeOptions) (*engine.Transcription, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.done:
		return nil, w.exitErr()
	default:
	}

	w.nextID++
	id := w.nextID

	payload, err := json.Marshal(newRequest(id, audioPath, opts))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if _, err := w.stdin.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("%w: write request: %v", ErrWorkerExited, err)
	}

	for {
		select {
		case resp, ok := <-w.responses:
			if !ok {
				return nil, w.exitErr()
			}
			if resp.ID != id {
				// Left over from a call whose caller stopped waiting.
				w.logger.Debug("discarding stale worker response", zap.Uint64("id", resp.ID))
				continue
			}
			if resp.Error != "" {
				return nil, errors.New(resp.Error)
			}
			return resp.transcription(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close ends the worker by closing its stdin, killing it if it does not exit
// within the stop timeout.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		_ = w.stdin.Close()
		close(w.quit)

		select {
		case <-w.done:
			return
		case <-time.After(stopTimeout):
		}

		if w.cmd != nil && w.cmd.Process != nil {
			w.logger.Warn("faster-whisper worker did not stop, killing it")
			_ = w.cmd.Process.Kill()
		}
		<-w.done
	})
	return nil
}

func (w *Worker) readLoop(stdout io.Reader) {
	defer w.finish()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	handshaken := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !handshaken {
			var msg readyMessage
			if err := json.Unmarshal([]byte(line), &msg); err != nil {
				w.logger.Warn("unexpected worker output before ready", zap.String("line", line))
				continue
			}
			handshaken = true
			w.ready <- msg
			continue
		}

		var resp response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			w.logger.Warn("malformed worker response", zap.Error(err))
			continue
		}
		select {
		case w.responses <- resp:
		case <-w.quit:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		w.logger.Debug("worker output closed", zap.Error(err))
	}
}

// finish runs once the protocol stream ends.
func (w *Worker) finish() {
	close(w.ready)
	close(w.responses)
	if w.cmd != nil {
		<-w.stderrDone
		w.waitErr = w.cmd.Wait()
	}
	close(w.done)
}

func (w *Worker) exitErr() error {
	<-w.done
	if w.waitErr != nil {
		return fmt.Errorf("%w: %v", ErrWorkerExited, w.waitErr)
	}
	return ErrWorkerExited
}

func (w *Worker) pumpStderr(r io.Reader) {
	defer close(w.stderrDone)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		w.stderr.Add(line)
		w.logger.Debug("faster-whisper", zap.String("stderr", line))
	}
}

// lineTail keeps the last n lines written to it.
type lineTail struct {
	mu    sync.Mutex
	n     int
	lines []string
}

func newLineTail(n int) *lineTail {
	return &lineTail{n: n}
}

func (t *lineTail) Add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(strings.Join(t.lines, "\n"))
}
