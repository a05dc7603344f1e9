package job

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	j := New()
	if j.ID == "" {
		t.Error("expected a generated ID")
	}
	if j.Status != StatusInQueue {
		t.Errorf("status = %s, want %s", j.Status, StatusInQueue)
	}
	if j.CreatedAt.IsZero() || j.UpdatedAt.IsZero() {
		t.Error("expected creation timestamps to be set")
	}
}

func TestJob_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"queue to running", StatusInQueue, StatusRunning, false},
		{"queue to abandoned", StatusInQueue, StatusAbandoned, false},
		{"queue to completed", StatusInQueue, StatusCompleted, true},
		{"running to completed", StatusRunning, StatusCompleted, false},
		{"running to failed", StatusRunning, StatusFailed, false},
		{"running to abandoned", StatusRunning, StatusAbandoned, false},
		{"completed is terminal", StatusCompleted, StatusRunning, true},
		{"failed is terminal", StatusFailed, StatusRunning, true},
		{"abandoned is terminal", StatusAbandoned, StatusRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := New()
			j.Status = tt.from

			err := j.TransitionTo(tt.to)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("expected ErrInvalidTransition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if j.GetStatus() != tt.to {
				t.Errorf("status = %s, want %s", j.GetStatus(), tt.to)
			}
		})
	}
}

func TestJob_Lifecycle(t *testing.T) {
	j := New()

	if err := j.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if j.StartedAt.IsZero() {
		t.Error("StartedAt should be set after Start")
	}

	if err := j.Complete(); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if j.CompletedAt.IsZero() {
		t.Error("CompletedAt should be set after Complete")
	}
	if !j.IsTerminal() {
		t.Error("completed job should be terminal")
	}
}

func TestJob_Fail(t *testing.T) {
	j := New()
	if err := j.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := j.Fail("ENGINE_EXECUTION", "pass 1 failed"); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	if j.ErrorKind != "ENGINE_EXECUTION" {
		t.Errorf("ErrorKind = %q, want ENGINE_EXECUTION", j.ErrorKind)
	}
	if j.Error != "pass 1 failed" {
		t.Errorf("Error = %q, want %q", j.Error, "pass 1 failed")
	}
	if !j.IsTerminal() {
		t.Error("failed job should be terminal")
	}
}

func TestJob_UpdateProgress(t *testing.T) {
	j := New()

	j.UpdateProgress(42, "encoding frames")
	if j.Progress != 42 || j.Stage != "encoding frames" {
		t.Errorf("progress = %d/%q, want 42/encoding frames", j.Progress, j.Stage)
	}

	// Clamped to [0, 100].
	j.UpdateProgress(150, "")
	if j.Progress != 100 {
		t.Errorf("progress = %d, want 100", j.Progress)
	}

	// Never moves backwards, and an empty stage keeps the previous one.
	j.UpdateProgress(10, "")
	if j.Progress != 100 {
		t.Errorf("progress moved backwards to %d", j.Progress)
	}
	if j.Stage != "encoding frames" {
		t.Errorf("stage = %q, want it preserved", j.Stage)
	}
}

func TestJob_Clone(t *testing.T) {
	j := New()
	j.SetOutput("/tmp/out.gif", "https://bucket.s3.amazonaws.com/out.gif")
	j.UpdateProgress(55, "encoding frames")

	c := j.Clone()
	if c.ID != j.ID || c.OutputPath != j.OutputPath || c.GIFURL != j.GIFURL || c.Progress != j.Progress {
		t.Errorf("clone differs from original: %+v vs %+v", c, j)
	}

	// Mutating the clone must not touch the original.
	c.Progress = 99
	if j.Progress == 99 {
		t.Error("mutating clone affected original")
	}
}
