package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewFFmpeg_Defaults(t *testing.T) {
	e := NewFFmpeg("", "")
	if e.ffmpegPath != "ffmpeg" {
		t.Errorf("ffmpegPath = %q, want %q", e.ffmpegPath, "ffmpeg")
	}
	if e.ffprobePath != "ffprobe" {
		t.Errorf("ffprobePath = %q, want %q", e.ffprobePath, "ffprobe")
	}
	if e.dir == "" {
		t.Error("expected a default scratch directory")
	}
}

func TestFFmpeg_LoadFailsForMissingBinary(t *testing.T) {
	e := NewFFmpeg("definitely-not-a-real-ffmpeg-binary", t.TempDir())
	if err := e.Load(context.Background()); err == nil {
		t.Fatal("expected load to fail for a missing binary")
	}
}

func TestFFmpeg_OperationsBeforeLoad(t *testing.T) {
	e := NewFFmpeg("", t.TempDir())
	ctx := context.Background()

	if err := e.WriteFile(ctx, "input.mp4", []byte("x")); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("WriteFile before load: expected ErrNotLoaded, got %v", err)
	}
	if _, err := e.ReadFile(ctx, "input.mp4"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("ReadFile before load: expected ErrNotLoaded, got %v", err)
	}
	if err := e.Exec(ctx, []string{"-version"}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Exec before load: expected ErrNotLoaded, got %v", err)
	}
}

func TestFFmpeg_RejectsEscapingNames(t *testing.T) {
	e := NewFFmpeg("", t.TempDir())
	ctx := context.Background()

	for _, name := range []string{"", ".", "..", "../etc/passwd", "a/b", "/abs"} {
		if err := e.WriteFile(ctx, name, []byte("x")); !errors.Is(err, ErrInvalidName) {
			t.Errorf("WriteFile(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestFFmpeg_OnProgressCancel(t *testing.T) {
	e := NewFFmpeg("", t.TempDir())

	var got []float64
	cancel := e.OnProgress(func(ratio float64) { got = append(got, ratio) })

	e.emit(0.5)
	cancel()
	e.emit(0.9)

	if len(got) != 1 || got[0] != 0.5 {
		t.Errorf("observed ratios = %v, want [0.5]", got)
	}
}

func TestFFmpeg_EmitClamps(t *testing.T) {
	e := NewFFmpeg("", t.TempDir())

	var got []float64
	defer e.OnProgress(func(ratio float64) { got = append(got, ratio) })()

	e.emit(-0.5)
	e.emit(1.5)

	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("observed ratios = %v, want [0 1]", got)
	}
}

func TestProgressRatio(t *testing.T) {
	tests := []struct {
		line     string
		expected float64
		want     float64
		ok       bool
	}{
		{"out_time_us=1000000", 2, 0.5, true},
		{"out_time_us=2000000", 2, 1, true},
		{"out_time_us=0", 2, 0, true},
		{"frame=42", 2, 0, false},
		{"out_time_us=not-a-number", 2, 0, false},
		{"out_time_us=-5", 2, 0, false},
		{"out_time_us=1000000", 0, 0, false}, // no duration hint
	}

	for _, tt := range tests {
		got, ok := progressRatio(tt.line, tt.expected)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("progressRatio(%q, %v) = (%v, %v), want (%v, %v)",
				tt.line, tt.expected, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExpectedDurationSec(t *testing.T) {
	args := []string{"-y", "-ss", "1.500", "-t", "2.000", "-i", "input.mp4", "out.gif"}
	if got := expectedDurationSec(args); got != 2 {
		t.Errorf("expectedDurationSec = %v, want 2", got)
	}

	if got := expectedDurationSec([]string{"-i", "input.mp4"}); got != 0 {
		t.Errorf("expectedDurationSec without -t = %v, want 0", got)
	}

	// Trailing -t with no value must not panic.
	if got := expectedDurationSec([]string{"-t"}); got != 0 {
		t.Errorf("expectedDurationSec dangling -t = %v, want 0", got)
	}
}

func TestExecError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &ExecError{Args: []string{"-i", "x"}, Stderr: "boom", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("ExecError should unwrap to its cause")
	}
	msg := err.Error()
	for _, want := range []string{"boom", "exit status 1"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q should contain %q", msg, want)
		}
	}
}
