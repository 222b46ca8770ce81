package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/maauso/srtsegment/internal/bootstrap"
	"github.com/maauso/srtsegment/internal/config"
	"github.com/maauso/srtsegment/internal/failure"
)

const defaultEnvFile = ".env"

// stringFlag maps a command-line flag to a string config field.
type stringFlag struct {
	name  string
	usage string
	field func(*config.Config) *string
}

var stringFlags = []stringFlag{
	{"output-dir", "Directory for processed files", func(c *config.Config) *string { return &c.OutputDir }},
	{"clips-dir", "Clips subdirectory inside the output directory", func(c *config.Config) *string { return &c.ClipsDir }},
	{"audio-out-file-pattern", "Clip file name pattern; {index} or {} is the caption index", func(c *config.Config) *string { return &c.AudioOutPattern }},
	{"text-out-file-pattern", "Text file name pattern for txt output", func(c *config.Config) *string { return &c.TextOutPattern }},
	{"output-type", "Output type: txt or csv", func(c *config.Config) *string { return &c.OutputType }},
	{"csv-separator", "Separator between clip path and text in the manifest", func(c *config.Config) *string { return &c.CSVSeparator }},
	{"csv-filename", "Manifest file name", func(c *config.Config) *string { return &c.CSVFilename }},
	{"in-encoding", "Text encoding of the caption file", func(c *config.Config) *string { return &c.InEncoding }},
	{"out-encoding", "Text encoding for transcripts (default UTF-8)", func(c *config.Config) *string { return &c.OutEncoding }},
	{"caption-format", "Caption format: srt, vtt, ssa, ass or ttml (default from extension)", func(c *config.Config) *string { return &c.CaptionFormat }},
	{"audio-format", "Audio container format (default from extension)", func(c *config.Config) *string { return &c.AudioFormat }},
	{"ffmpeg", "Path to the ffmpeg binary", func(c *config.Config) *string { return &c.FFmpegPath }},
	{"temp-dir", "Scratch directory for decoded audio", func(c *config.Config) *string { return &c.TempDir }},
	{"s3-bucket", "Publish the output directory to this S3 bucket", func(c *config.Config) *string { return &c.S3Bucket }},
	{"s3-region", "S3 region", func(c *config.Config) *string { return &c.S3Region }},
	{"s3-prefix", "Key prefix for published files", func(c *config.Config) *string { return &c.S3Prefix }},
	{"s3-endpoint", "Custom S3-compatible endpoint", func(c *config.Config) *string { return &c.S3Endpoint }},
	{"log-format", "Log format: auto, json or text", func(c *config.Config) *string { return &c.LogFormat }},
	{"log-level", "Log level: debug, info, warn or error", func(c *config.Config) *string { return &c.LogLevel }},
}

const incrementFlag = "update-increment"

func newRootCommand() *cobra.Command {
	var (
		configPath string
		envFile    string
		flagValues = config.Defaults()
	)

	rootCmd := &cobra.Command{
		Use:   "srtsegment AUDIO CAPTIONS",
		Short: "Segment an audio file into clips along a caption track",
		Long: "srtsegment slices AUDIO (any container ffmpeg can read) into one clip per caption of\n" +
			"CAPTIONS and writes either one text file per clip or a single manifest pairing each\n" +
			"clip with its transcript.",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile, cmd.Flags().Changed("env-file")); err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, flagValues, cfg)

			if err := cfg.Validate(); err != nil {
				return err
			}

			return runSegment(cmd, cfg, args[0], args[1])
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	flags.StringVar(&envFile, "env-file", defaultEnvFile, "Environment file loaded before reading SRTSEG_* variables")
	for _, f := range stringFlags {
		field := f.field(flagValues)
		flags.StringVar(field, f.name, *field, f.usage)
	}
	flags.IntVar(&flagValues.ProgressIncrement, incrementFlag, flagValues.ProgressIncrement,
		"Log progress every N captions")

	return rootCmd
}

// applyFlags copies the flags the operator set into cfg.
func applyFlags(cmd *cobra.Command, from, cfg *config.Config) {
	flags := cmd.Flags()
	for _, f := range stringFlags {
		if flags.Changed(f.name) {
			*f.field(cfg) = *f.field(from)
		}
	}
	if flags.Changed(incrementFlag) {
		cfg.ProgressIncrement = from.ProgressIncrement
	}
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing default file is ignored.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return failure.Config(path, fmt.Errorf("load env file: %w", err))
	}
	return nil
}

func runSegment(cmd *cobra.Command, cfg *config.Config, audioPath, captionPath string) error {
	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting srtsegment",
		slog.String("audio", audioPath),
		slog.String("captions", captionPath),
		slog.String("output_dir", cfg.OutputDir),
		slog.String("output_type", cfg.OutputType),
		slog.Int("progress_increment", cfg.ProgressIncrement),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)
	logger.Debug("effective configuration", slog.String("config", cfg.String()))

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	summary, err := deps.Segmenter.Run(cmd.Context(), bootstrap.Request(cfg, audioPath, captionPath))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
	logger.Info("Processing finished!",
		slog.String("run_id", summary.RunID),
		slog.Duration("elapsed", summary.Elapsed),
	)
	return nil
}
