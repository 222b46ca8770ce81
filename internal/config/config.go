// Package config provides run configuration loading from defaults,
// environment variables and an optional TOML file.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mattn/go-isatty"
	"github.com/pelletier/go-toml/v2"
	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/srtsegment/internal/caption"
	"github.com/maauso/srtsegment/internal/failure"
	"github.com/maauso/srtsegment/internal/output"
	"github.com/maauso/srtsegment/internal/textenc"
)

// Static errors for configuration validation.
var (
	// ErrInvalidValue is returned when a field fails a validation rule.
	ErrInvalidValue = errors.New("invalid configuration value")
	// ErrNotADirectory is returned when output_dir exists as a file.
	ErrNotADirectory = errors.New("output path exists and is not a directory")
	// ErrSeparatorInClipPath is returned when manifest lines could not be split unambiguously.
	ErrSeparatorInClipPath = errors.New("csv separator appears in the clip path")
)

// Config holds all configuration for a segmentation run.
type Config struct {
	// Output settings
	OutputDir       string `env:"SRTSEG_OUTPUT_DIR, default=./out" toml:"output_dir" json:"output_dir" validate:"required"`
	ClipsDir        string `env:"SRTSEG_CLIPS_DIR, default=wavs" toml:"clips_dir" json:"clips_dir" validate:"required,filename"`
	AudioOutPattern string `env:"SRTSEG_AUDIO_OUT_PATTERN, default={index}-audio.wav" toml:"audio_out_pattern" json:"audio_out_pattern" validate:"required,indexpattern"`
	TextOutPattern  string `env:"SRTSEG_TEXT_OUT_PATTERN, default={index}-text.txt" toml:"text_out_pattern" json:"text_out_pattern" validate:"required,indexpattern"`
	OutputType      string `env:"SRTSEG_OUTPUT_TYPE, default=csv" toml:"output_type" json:"output_type" validate:"oneof=txt csv"`
	CSVSeparator    string `env:"SRTSEG_CSV_SEPARATOR, default=|" toml:"csv_separator" json:"csv_separator" validate:"required"`
	CSVFilename     string `env:"SRTSEG_CSV_FILENAME, default=out.csv" toml:"csv_filename" json:"csv_filename" validate:"required,filename"`

	// Processing settings
	ProgressIncrement int    `env:"SRTSEG_PROGRESS_INCREMENT, default=25" toml:"progress_increment" json:"progress_increment" validate:"gt=0"`
	InEncoding        string `env:"SRTSEG_IN_ENCODING, default=utf-8" toml:"in_encoding" json:"in_encoding" validate:"omitempty,encoding"`
	OutEncoding       string `env:"SRTSEG_OUT_ENCODING" toml:"out_encoding" json:"out_encoding" validate:"omitempty,encoding"`
	CaptionFormat     string `env:"SRTSEG_CAPTION_FORMAT" toml:"caption_format" json:"caption_format" validate:"omitempty,captionformat"`
	AudioFormat       string `env:"SRTSEG_AUDIO_FORMAT" toml:"audio_format" json:"audio_format"`
	FFmpegPath        string `env:"SRTSEG_FFMPEG_PATH, default=ffmpeg" toml:"ffmpeg_path" json:"ffmpeg_path"`
	TempDir           string `env:"SRTSEG_TEMP_DIR" toml:"temp_dir" json:"temp_dir"`

	// Optional S3 settings
	S3Bucket           string `env:"SRTSEG_S3_BUCKET" toml:"s3_bucket" json:"s3_bucket,omitempty"`
	S3Region           string `env:"SRTSEG_S3_REGION" toml:"s3_region" json:"s3_region,omitempty" validate:"required_with=S3Bucket"`
	S3Prefix           string `env:"SRTSEG_S3_PREFIX" toml:"s3_prefix" json:"s3_prefix,omitempty"`
	S3Endpoint         string `env:"SRTSEG_S3_ENDPOINT" toml:"s3_endpoint" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" toml:"-" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" toml:"-" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"SRTSEG_LOG_FORMAT, default=auto" toml:"log_format" json:"log_format" validate:"oneof=auto json text"`
	LogLevel  string `env:"SRTSEG_LOG_LEVEL, default=info" toml:"log_level" json:"log_level" validate:"oneof=debug info warn warning error"`
}

// Defaults returns the built-in configuration, ignoring the environment.
func Defaults() *Config {
	cfg := &Config{}
	// The tags are static, so this cannot fail.
	_ = envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.MapLookuper(nil),
	})
	return cfg
}

// Load reads configuration from environment variables using go-envconfig,
// then overlays the TOML file at path if path is not empty. Keys missing
// from the file keep their environment or default value; unknown keys are
// an error. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, failure.Config("environment", err)
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, failure.Config(path, err)
		}
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config: %s", strict.String())
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Validate checks the configuration before any file is created. Every
// failure is a config failure naming the offending key.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return failure.Config(fe.Field(), fmt.Errorf("%w: %q fails %s", ErrInvalidValue, fmt.Sprint(fe.Value()), describeRule(fe)))
		}
		return failure.Config("config", err)
	}

	for _, dir := range []string{c.OutputDir, filepath.Join(c.OutputDir, c.ClipsDir)} {
		info, err := os.Stat(dir)
		if err == nil && !info.IsDir() {
			return failure.Config("output_dir", fmt.Errorf("%w: %s", ErrNotADirectory, dir))
		}
	}

	if output.Mode(c.OutputType) == output.ModeManifest {
		// The rendered index may hold any digit.
		stripped := strings.NewReplacer(output.IndexPlaceholder, "", output.BarePlaceholder, "").Replace(c.AudioOutPattern)
		if strings.Contains(c.ClipsDir+"/"+stripped, c.CSVSeparator) || strings.ContainsAny(c.CSVSeparator, "0123456789") {
			return failure.Config("csv_separator", fmt.Errorf("%w: %q", ErrSeparatorInClipPath, c.CSVSeparator))
		}
	}

	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("toml"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("indexpattern", func(fl validator.FieldLevel) bool {
		p := fl.Field().String()
		return output.HasPlaceholder(p) && !strings.ContainsAny(p, `/\`)
	})
	_ = v.RegisterValidation("filename", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return name != "." && name != ".." && name != output.LockFileName && !strings.ContainsAny(name, `/\`)
	})
	_ = v.RegisterValidation("encoding", func(fl validator.FieldLevel) bool {
		_, err := textenc.Lookup(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("captionformat", func(fl validator.FieldLevel) bool {
		return caption.Format(fl.Field().String()).IsValid()
	})
	return v
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "indexpattern":
		return "rule: must contain {index} or {} and no path separator"
	case "filename":
		return "rule: must be a single file or directory name other than " + output.LockFileName
	case "encoding":
		return "rule: must name a known text encoding"
	case "required_with":
		return "rule: required when " + fe.Param() + " is set"
	}
	if fe.Param() != "" {
		return fmt.Sprintf("rule: %s=%s", fe.Tag(), fe.Param())
	}
	return "rule: " + fe.Tag()
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// NewLogger creates a structured logger on stderr based on the configuration.
// When LogFormat is "json", it outputs JSON logs. "text" outputs
// human-readable logs, and "auto" picks text on a terminal and JSON otherwise.
func (c *Config) NewLogger() *slog.Logger {
	fd := os.Stderr.Fd()
	return c.newLogger(os.Stderr, isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}

func (c *Config) newLogger(w io.Writer, terminal bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	format := strings.ToLower(c.LogFormat)
	if format == "auto" || format == "" {
		format = "json"
		if terminal {
			format = "text"
		}
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{OutputDir: %s, ClipsDir: %s, OutputType: %s, CSVFilename: %s, ProgressIncrement: %d, InEncoding: %s, OutEncoding: %s, TempDir: %s, S3Bucket: %s, S3Region: %s, S3Prefix: %s, AWSAccessKeyID: %s, LogFormat: %s, LogLevel: %s}",
		c.OutputDir,
		c.ClipsDir,
		c.OutputType,
		c.CSVFilename,
		c.ProgressIncrement,
		c.InEncoding,
		c.OutEncoding,
		c.TempDir,
		c.S3Bucket,
		c.S3Region,
		c.S3Prefix,
		mask(c.AWSAccessKeyID),
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
