// Package job provides the Job aggregate for asynchronous GIF encode
// requests: a small status state machine, progress tracking and repository
// interfaces for persistence.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/gifforge/gifforge/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job has been accepted but not started.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the encode is in progress.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the encode finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the encode failed.
	StatusFailed Status = "FAILED"
	// StatusAbandoned indicates the caller stopped listening for the
	// result. The engine is not interrupted; the result is discarded.
	StatusAbandoned Status = "ABANDONED"
)

// ErrInvalidTransition is returned when an invalid state transition is
// attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusAbandoned},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusAbandoned},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusAbandoned: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents one GIF encode request tracked across its lifetime.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Progress is the percentage of completion (0-100).
	Progress int
	// Stage is the human-readable description of the current step.
	Stage string
	// ErrorKind classifies the failure, if any.
	ErrorKind string
	// Error contains the failure message, if any.
	Error string
	// OutputPath is the local path of the finished GIF.
	OutputPath string
	// GIFURL is the shareable URL if the GIF was uploaded.
	GIFURL string
	// PushToS3 indicates whether the result should be uploaded.
	PushToS3 bool
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when encoding started.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	now := time.Now()
	return &Job{
		ID:        id.Generate(),
		Status:    StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusAbandoned:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED with a classified error.
func (j *Job) Fail(kind, message string) error {
	j.mu.Lock()
	j.ErrorKind = kind
	j.Error = message
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Abandon transitions the job to ABANDONED.
func (j *Job) Abandon() error {
	return j.TransitionTo(StatusAbandoned)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// UpdateProgress sets the progress percentage (0-100) and current stage.
// An empty stage leaves the previous stage in place. Progress never moves
// backwards within one job.
func (j *Job) UpdateProgress(progress int, stage string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress > j.Progress {
		j.Progress = progress
	}
	if stage != "" {
		j.Stage = stage
	}
	j.UpdatedAt = time.Now()
}

// SetOutput records the finished GIF's local path and optional URL.
func (j *Job) SetOutput(path, url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = path
	j.GIFURL = url
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusAbandoned
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Progress:    j.Progress,
		Stage:       j.Stage,
		ErrorKind:   j.ErrorKind,
		Error:       j.Error,
		OutputPath:  j.OutputPath,
		GIFURL:      j.GIFURL,
		PushToS3:    j.PushToS3,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
