// Package logging builds the process-wide zap logger from the log section
// of the daemon configuration.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/levyledger/levyd/internal/config"
)

// New constructs a logger for the given configuration. Output is "stderr",
// "stdout", or a file path, which is opened in append mode. The returned
// close function flushes buffered entries and releases the sink.
func New(cfg config.LogConfig) (*zap.Logger, func(), error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var enc zapcore.Encoder
	switch cfg.Format {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console", "":
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	sink, closeSink, err := openSink(cfg.Output)
	if err != nil {
		return nil, nil, err
	}

	core := zapcore.NewCore(enc, sink, level)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	cleanup := func() {
		_ = logger.Sync()
		closeSink()
	}
	return logger, cleanup, nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func openSink(output string) (zapcore.WriteSyncer, func(), error) {
	switch output {
	case "stderr", "":
		return zapcore.AddSync(os.Stderr), func() {}, nil
	case "stdout":
		return zapcore.AddSync(os.Stdout), func() {}, nil
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", output, err)
		}
		return zapcore.AddSync(file), func() { _ = file.Close() }, nil
	}
}
