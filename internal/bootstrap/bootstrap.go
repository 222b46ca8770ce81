// Package bootstrap provides dependency initialization for a segmentation run.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/srtsegment/internal/audio"
	"github.com/maauso/srtsegment/internal/caption"
	"github.com/maauso/srtsegment/internal/config"
	"github.com/maauso/srtsegment/internal/media"
	"github.com/maauso/srtsegment/internal/output"
	"github.com/maauso/srtsegment/internal/segment"
	"github.com/maauso/srtsegment/internal/storage"
)

// Dependencies holds all initialized dependencies for the CLI.
type Dependencies struct {
	Segmenter *segment.Service
	Storage   storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
// cfg must already be validated.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize media processor and audio decoder
	processor := media.NewFFmpegProcessor(cfg.FFmpegPath)
	decoder := audio.NewDecoder(processor, store, logger)

	var opts []segment.Option
	if cfg.S3Enabled() {
		opts = append(opts, segment.WithPublisher(store))
	}

	svc, err := segment.NewService(
		decoder,
		Layout(cfg),
		WriterOptions(cfg),
		cfg.ProgressIncrement,
		logger,
		opts...,
	)
	if err != nil {
		return nil, err
	}

	return &Dependencies{
		Segmenter: svc,
		Storage:   store,
	}, nil
}

// Layout maps the output settings of cfg.
func Layout(cfg *config.Config) output.Layout {
	return output.Layout{
		Dir:          cfg.OutputDir,
		ClipsDir:     cfg.ClipsDir,
		AudioPattern: cfg.AudioOutPattern,
		TextPattern:  cfg.TextOutPattern,
	}
}

// WriterOptions maps the output writer settings of cfg.
func WriterOptions(cfg *config.Config) output.Options {
	return output.Options{
		Mode:         output.Mode(cfg.OutputType),
		Separator:    cfg.CSVSeparator,
		ManifestName: cfg.CSVFilename,
		Encoding:     cfg.OutEncoding,
	}
}

// Request builds the run request for the given inputs.
func Request(cfg *config.Config, audioPath, captionPath string) segment.Request {
	return segment.Request{
		AudioPath:   audioPath,
		AudioFormat: cfg.AudioFormat,
		CaptionPath: captionPath,
		Captions: caption.ReadOptions{
			Encoding: cfg.InEncoding,
			Format:   caption.Format(cfg.CaptionFormat),
		},
	}
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 publishing configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("prefix", cfg.S3Prefix),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Debug("local scratch storage configured",
		slog.String("temp_dir", localStore.TempDir()),
	)
	return localStore, nil
}
