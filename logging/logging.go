// Package logging builds the zap logger used across the engine.
package logging

import (
	"fmt"
	"io"
	"os"

	"TinyRDB/config"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing to stderr at cfg.LogLevel.
func New(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "bad log level")
	}

	switch cfg.LogFormat {
	case "", "console", "json":
	default:
		return nil, errors.Errorf("bad log format %q", cfg.LogFormat)
	}

	zc := zap.NewProductionConfig()
	if cfg.LogFormat != "json" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true

	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return logger.Named("tinyrdb"), nil
}

// Must is New for command line tools: when the configuration is unusable it
// reports the error on stderr and falls back to a no-op logger.
func Must(cfg config.Config) *zap.Logger {
	return mustTo(cfg, os.Stderr)
}

func mustTo(cfg config.Config, w io.Writer) *zap.Logger {
	logger, err := New(cfg)
	if err != nil {
		fmt.Fprintf(w, "logging disabled: %v\n", err)
		return zap.NewNop()
	}
	return logger
}
