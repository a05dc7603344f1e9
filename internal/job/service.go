package job

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gifforge/gifforge/internal/encoder"
	"github.com/gifforge/gifforge/internal/gif"
	"github.com/gifforge/gifforge/internal/storage"
)

// Encoder is the port the service drives to produce a GIF. It is satisfied
// by *encoder.Encoder and stubbed in tests.
type Encoder interface {
	Encode(ctx context.Context, req gif.Request, onProgress encoder.ProgressFunc) ([]byte, error)
}

// EncodeInput contains everything needed to run one encode job.
type EncodeInput struct {
	// Request is the validated encode request.
	Request gif.Request
	// PushToS3 indicates whether the finished GIF should be uploaded.
	PushToS3 bool
}

// EncodeService orchestrates the asynchronous encode workflow: it creates
// jobs, drives the encoder in the background, stores finished GIFs and
// tracks abandonment.
type EncodeService struct {
	repo   Repository
	enc    Encoder
	store  storage.Storage
	logger *slog.Logger

	// abandoned marks jobs whose callers stopped listening. The encode is
	// not interrupted; its result is discarded and the stored job record is
	// left untouched once marked.
	abandonedMu sync.Mutex
	abandoned   map[string]struct{}
}

// NewEncodeService creates a new EncodeService.
func NewEncodeService(repo Repository, enc Encoder, store storage.Storage, logger *slog.Logger) *EncodeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EncodeService{
		repo:      repo,
		enc:       enc,
		store:     store,
		logger:    logger,
		abandoned: make(map[string]struct{}),
	}
}

// CreateJob creates and persists a job in IN_QUEUE status.
func (s *EncodeService) CreateJob(ctx context.Context, input EncodeInput) (*Job, error) {
	j := New()
	j.PushToS3 = input.PushToS3

	s.logger.Info("creating encode job",
		slog.String("job_id", j.ID),
		slog.Int("fps", input.Request.FPS),
		slog.Int("width", input.Request.Width),
		slog.String("quality", string(input.Request.Quality)),
		slog.Bool("push_to_s3", input.PushToS3),
	)

	if err := s.repo.Save(ctx, j); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	return j, nil
}

// GetJob retrieves a job by ID.
func (s *EncodeService) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.FindByID(ctx, jobID)
}

// ListJobs returns all known jobs.
func (s *EncodeService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// AbandonJob marks a job abandoned: the caller stops listening for its
// result. A running engine pass is not interrupted; the encoder's
// serialization guarantees the next request waits for it to quiesce.
// Abandoning a terminal job is a no-op.
func (s *EncodeService) AbandonJob(ctx context.Context, jobID string) (*Job, error) {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.IsTerminal() {
		return j, nil
	}

	s.abandonedMu.Lock()
	s.abandoned[jobID] = struct{}{}
	s.abandonedMu.Unlock()

	if err := j.Abandon(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return nil, fmt.Errorf("save abandoned job: %w", err)
	}

	s.logger.Info("job abandoned", slog.String("job_id", jobID))
	return j, nil
}

// ProcessExistingJob runs the encode workflow for an already-created job.
// It is meant to run on a background goroutine with a detached context.
func (s *EncodeService) ProcessExistingJob(ctx context.Context, jobID string, input EncodeInput) (*Job, error) {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := j.Start(); err != nil {
		return nil, fmt.Errorf("start job %s: %w", jobID, err)
	}
	s.save(ctx, j)

	data, encErr := s.enc.Encode(ctx, input.Request, func(p encoder.Progress) {
		j.UpdateProgress(int(p.Ratio*100), p.Message)
		s.save(ctx, j)
	})

	if s.isAbandoned(jobID) {
		s.logger.Info("discarding result of abandoned job",
			slog.String("job_id", jobID),
		)
		return j, nil
	}

	if encErr != nil {
		kind := string(encoder.KindOf(encErr))
		s.logger.Error("encode failed",
			slog.String("job_id", jobID),
			slog.String("kind", kind),
			slog.String("error", encErr.Error()),
		)
		if err := j.Fail(kind, encErr.Error()); err != nil {
			return nil, err
		}
		s.save(ctx, j)
		return j, nil
	}

	if err := s.storeResult(ctx, j, data); err != nil {
		if failErr := j.Fail("", err.Error()); failErr != nil {
			return nil, failErr
		}
		s.save(ctx, j)
		return j, nil
	}

	if err := j.Complete(); err != nil {
		return nil, err
	}
	s.save(ctx, j)

	s.logger.Info("encode completed",
		slog.String("job_id", jobID),
		slog.Int("bytes", len(data)),
	)
	return j, nil
}

// storeResult persists the finished GIF locally and optionally to S3.
func (s *EncodeService) storeResult(ctx context.Context, j *Job, data []byte) error {
	path, err := s.store.SaveTemp(ctx, j.ID+".gif", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("store output: %w", err)
	}

	var url string
	if j.PushToS3 {
		url, err = s.store.UploadToS3(ctx, j.ID+".gif", bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("upload output: %w", err)
		}
	}

	j.SetOutput(path, url)
	return nil
}

// save persists the job unless it has been abandoned; an abandoned record
// must not be clobbered by the still-running encode's updates.
func (s *EncodeService) save(ctx context.Context, j *Job) {
	if s.isAbandoned(j.ID) {
		return
	}
	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *EncodeService) isAbandoned(jobID string) bool {
	s.abandonedMu.Lock()
	defer s.abandonedMu.Unlock()
	_, ok := s.abandoned[jobID]
	return ok
}
