// Package observability sets up logging for meshgraph binaries.
package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"meshgraph/pkg/config"
)

// ParseLevel maps a config level name to a zap level. Unknown names
// select info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	}
	return zap.InfoLevel
}

// SetupLogger builds a zap.Logger from c, installs it as the global
// logger and redirects the stdlib log package. The returned function
// flushes and closes file outputs.
func SetupLogger(c config.LogConfig) (*zap.Logger, func(), error) {
	level := zap.NewAtomicLevelAt(ParseLevel(c.Level))

	encCfg := encoderConfig(c.Development)
	var encoder zapcore.Encoder
	if strings.EqualFold(c.Format, "json") {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var (
		cores   []zapcore.Core
		closers []func() error
	)
	for _, out := range c.Outputs {
		ws, closeFn, err := sinkFor(out, c)
		if err != nil {
			for _, cl := range closers {
				_ = cl()
			}
			return nil, nil, err
		}
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
		cores = append(cores, zapcore.NewCore(encoder, ws, level))
	}

	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	}
	if c.Development {
		opts = append(opts, zap.Development())
	}

	logger := zap.New(zapcore.NewTee(cores...), opts...)
	restoreGlobals := zap.ReplaceGlobals(logger)
	restoreLog, _ := zap.RedirectStdLogAt(logger, zap.InfoLevel)
	cleanup := func() {
		_ = logger.Sync()
		restoreLog()
		restoreGlobals()
		for _, cl := range closers {
			_ = cl()
		}
	}
	return logger, cleanup, nil
}

func sinkFor(out string, c config.LogConfig) (zapcore.WriteSyncer, func() error, error) {
	switch strings.ToLower(out) {
	case "stdout":
		return zapcore.Lock(os.Stdout), nil, nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil, nil
	}
	if c.Rotation.Enable {
		lj := &lumberjack.Logger{
			Filename:   rotationFilename(out, c),
			MaxSize:    max(c.Rotation.MaxSizeMB, 10),
			MaxBackups: max(c.Rotation.MaxBackups, 1),
			MaxAge:     max(c.Rotation.MaxAgeDays, 7),
			Compress:   c.Rotation.Compress,
		}
		return zapcore.AddSync(lj), lj.Close, nil
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("log output %q: %w", out, err)
		}
	}
	f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("log output %q: %w", out, err)
	}
	return zapcore.AddSync(f), f.Close, nil
}

func encoderConfig(dev bool) zapcore.EncoderConfig {
	if dev {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}
	return zap.NewProductionEncoderConfig()
}

// rotationFilename prefers the rotation filename over the output path
// when one is configured.
func rotationFilename(out string, c config.LogConfig) string {
	if name := strings.TrimSpace(c.Rotation.Filename); name != "" {
		return name
	}
	return out
}
