// Package bootstrap provides dependency initialization for the GIF encode
// service.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/gifforge/gifforge/internal/config"
	"github.com/gifforge/gifforge/internal/encoder"
	"github.com/gifforge/gifforge/internal/engine"
	"github.com/gifforge/gifforge/internal/job"
	"github.com/gifforge/gifforge/internal/session"
	"github.com/gifforge/gifforge/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	EncodeService *job.EncodeService
	Sessions      *session.Manager
}

// NewDependencies creates and initializes all dependencies for the
// application. The engine itself is not loaded here; the session manager
// loads it lazily on the first encode.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	eng := engine.NewFFmpeg(cfg.FFmpegPath, cfg.EngineDir,
		engine.WithFFprobePath(cfg.FFprobePath),
	)
	sessions := session.NewManager(eng, logger)

	enc := encoder.New(sessions, logger,
		encoder.WithBusyPolicy(encoder.BusyPolicy(cfg.BusyPolicy)),
	)

	repo := job.NewMemoryRepository()
	svc := job.NewEncodeService(repo, enc, store, logger)

	return &Dependencies{
		EncodeService: svc,
		Sessions:      sessions,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
