package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// LoggerConfig describes how the process logger is built.
type LoggerConfig struct {
	Level          string `yaml:"level" validate:"oneof=debug info warn error"`
	Format         string `yaml:"format" validate:"oneof=json console"`
	OutputTarget   string `yaml:"output_target" validate:"oneof=stdout stderr"`
	TimeFormat     string `yaml:"time_format" validate:"oneof=rfc3339 rfc3339nano unix unix_ms"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Env            string `yaml:"env" validate:"oneof=dev staging prod"`
	WithCaller     bool   `yaml:"with_caller"`
}

// New validates cfg (after filling defaults) and builds a zerolog.Logger.
func New(cfg *LoggerConfig) (zerolog.Logger, error) {
	cfg.setDefaults()

	if err := validator.New().Struct(cfg); err != nil {
		return zerolog.Nop(), fmt.Errorf("logger config validation error: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var out io.Writer = os.Stdout
	if cfg.OutputTarget == "stderr" {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat(cfg.TimeFormat)}
	}

	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("version", cfg.ServiceVersion).
		Str("env", cfg.Env).
		Logger()

	if cfg.WithCaller {
		logger = logger.With().Caller().Logger()
	}
	return logger, nil
}

func timeFormat(name string) string {
	switch name {
	case "rfc3339":
		return "2006-01-02T15:04:05Z07:00"
	case "unix":
		return zerolog.TimeFormatUnix
	case "unix_ms":
		return zerolog.TimeFormatUnixMs
	default:
		return "2006-01-02T15:04:05.999999999Z07:00"
	}
}

func (c *LoggerConfig) setDefaults() {
	if c.Env == "" {
		c.Env = "prod"
	}
	if c.Level == "" {
		if c.Env == "dev" {
			c.Level = "debug"
		} else {
			c.Level = "info"
		}
	}
	if c.Format == "" {
		if c.Env == "dev" {
			c.Format = "console"
		} else {
			c.Format = "json"
		}
	}
	if c.OutputTarget == "" {
		c.OutputTarget = "stdout"
	}
	if c.TimeFormat == "" {
		c.TimeFormat = "rfc3339nano"
	}
	if !c.WithCaller && c.Env == "dev" {
		c.WithCaller = true
	}
	if c.ServiceName == "" {
		c.ServiceName = "hrportal"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.1.0"
	}
}
