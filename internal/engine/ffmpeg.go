package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Static errors for the ffmpeg-backed engine.
var (
	// ErrNotLoaded is returned when a file or exec operation is attempted
	// before Load has completed.
	ErrNotLoaded = errors.New("engine not loaded")
	// ErrInvalidName is returned for file names that would escape the
	// engine's flat namespace.
	ErrInvalidName = errors.New("invalid engine file name")
	// ErrProbeExecution is returned when the ffprobe duration query fails.
	ErrProbeExecution = errors.New("ffprobe execution failed")
)

// Compile-time checks that FFmpeg implements the engine capabilities.
var (
	_ Engine         = (*FFmpeg)(nil)
	_ DurationProber = (*FFmpeg)(nil)
)

// FFmpeg implements Engine by shelling out to a local ffmpeg binary.
// A private scratch directory acts as the engine's file namespace; every
// command runs with that directory as its working directory so the flat
// names used by callers resolve inside it.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	dir         string

	mu     sync.Mutex
	loaded bool
	subs   map[int]ProgressFunc
	nextID int
}

// FFmpegOption configures an FFmpeg engine.
type FFmpegOption func(*FFmpeg)

// WithFFprobePath overrides the ffprobe binary used for duration probing.
func WithFFprobePath(path string) FFmpegOption {
	return func(e *FFmpeg) {
		if path != "" {
			e.ffprobePath = path
		}
	}
}

// NewFFmpeg creates an ffmpeg-backed engine rooted at dir. If ffmpegPath is
// empty it defaults to "ffmpeg" (found via PATH). If dir is empty a
// directory under the system temp dir is used. The engine is unusable until
// Load succeeds.
func NewFFmpeg(ffmpegPath, dir string, opts ...FFmpegOption) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "gifforge-engine")
	}
	e := &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: "ffprobe",
		dir:         dir,
		subs:        make(map[int]ProgressFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load verifies the ffmpeg binary is present and runnable and creates the
// scratch directory. It is cheap compared to a wasm engine fetch but keeps
// the same contract: nothing else works until it has succeeded once.
func (e *FFmpeg) Load(ctx context.Context) error {
	path := e.ffmpegPath
	if !strings.ContainsRune(path, os.PathSeparator) {
		resolved, err := exec.LookPath(path)
		if err != nil {
			return fmt.Errorf("ffmpeg binary not found: %w", err)
		}
		path = resolved
	}

	// #nosec G204 - the binary path comes from configuration, not user input
	cmd := exec.CommandContext(ctx, path, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not runnable at %s: %w", path, err)
	}

	if err := os.MkdirAll(e.dir, 0750); err != nil {
		return fmt.Errorf("create engine directory: %w", err)
	}

	e.mu.Lock()
	e.ffmpegPath = path
	e.loaded = true
	e.mu.Unlock()
	return nil
}

// WriteFile stores data under name inside the scratch directory.
func (e *FFmpeg) WriteFile(ctx context.Context, name string, data []byte) error {
	path, err := e.resolve(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write engine file %s: %w", name, err)
	}
	return nil
}

// ReadFile returns the bytes stored under name.
func (e *FFmpeg) ReadFile(ctx context.Context, name string) ([]byte, error) {
	path, err := e.resolve(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 - resolve confines the path
	if err != nil {
		return nil, fmt.Errorf("read engine file %s: %w", name, err)
	}
	return data, nil
}

// DeleteFile removes name from the scratch directory. Missing files are not
// an error so cleanup stays idempotent.
func (e *FFmpeg) DeleteFile(ctx context.Context, name string) error {
	path, err := e.resolve(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete engine file %s: %w", name, err)
	}
	return nil
}

// Exec runs ffmpeg with the given arguments inside the scratch directory.
// Progress is read from ffmpeg's machine-readable -progress stream and
// reported as a ratio against the -t duration found in args; commands
// without a -t flag report no intermediate progress.
func (e *FFmpeg) Exec(ctx context.Context, args []string) error {
	e.mu.Lock()
	loaded := e.loaded
	path := e.ffmpegPath
	e.mu.Unlock()
	if !loaded {
		return ErrNotLoaded
	}

	full := append([]string{"-progress", "pipe:1", "-nostats", "-hide_banner"}, args...)

	// #nosec G204 - the binary path comes from configuration, not user input
	cmd := exec.CommandContext(ctx, path, full...)
	cmd.Dir = e.dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	e.consumeProgress(stdout, expectedDurationSec(args))

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &ExecError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// Duration returns the duration in seconds of a file in the engine's
// namespace, using ffprobe.
func (e *FFmpeg) Duration(ctx context.Context, name string) (float64, error) {
	path, err := e.resolve(name)
	if err != nil {
		return 0, err
	}

	// #nosec G204 - binary and path are controlled by the engine
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrProbeExecution, err, stderr.String())
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

// OnProgress registers a progress observer.
func (e *FFmpeg) OnProgress(fn ProgressFunc) (cancel func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// emit fans a ratio out to all registered observers.
func (e *FFmpeg) emit(ratio float64) {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	e.mu.Lock()
	subs := make([]ProgressFunc, 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()
	for _, fn := range subs {
		fn(ratio)
	}
}

// consumeProgress reads ffmpeg's -progress key=value stream and emits
// ratios. It returns when the stream closes.
func (e *FFmpeg) consumeProgress(r io.Reader, expectedSec float64) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		ratio, ok := progressRatio(scanner.Text(), expectedSec)
		if ok {
			e.emit(ratio)
		}
	}
}

// progressRatio converts one -progress output line into a completion ratio.
// Only out_time_us lines carry timing; everything else is ignored.
func progressRatio(line string, expectedSec float64) (float64, bool) {
	value, found := strings.CutPrefix(line, "out_time_us=")
	if !found || expectedSec <= 0 {
		return 0, false
	}
	us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	return (float64(us) / 1e6) / expectedSec, true
}

// expectedDurationSec extracts the output duration from a -t flag in the
// argument list, or 0 if absent.
func expectedDurationSec(args []string) float64 {
	for i, a := range args {
		if a == "-t" && i+1 < len(args) {
			if sec, err := strconv.ParseFloat(args[i+1], 64); err == nil {
				return sec
			}
		}
	}
	return 0
}

// resolve maps a flat engine file name to a path inside the scratch
// directory, rejecting names that would escape it.
func (e *FFmpeg) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	e.mu.Lock()
	loaded := e.loaded
	e.mu.Unlock()
	if !loaded {
		return "", ErrNotLoaded
	}
	return filepath.Join(e.dir, name), nil
}

// ExecError represents a failed engine command, including the diagnostic
// output the engine produced.
type ExecError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
