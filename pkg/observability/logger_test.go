package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"meshgraph/pkg/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zap.DebugLevel,
		" WARN ":  zap.WarnLevel,
		"warning": zap.WarnLevel,
		"error":   zap.ErrorLevel,
		"bogus":   zap.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "node.log")
	logger, cleanup, err := SetupLogger(config.LogConfig{Level: "debug", Format: "json", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if zap.L() != logger {
		t.Fatalf("global logger not installed")
	}
	zap.L().Debug("graph encoded", zap.Int("refs", 2))
	cleanup()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"graph encoded"`) || !strings.Contains(string(b), `"refs":2`) {
		t.Fatalf("unexpected log contents: %s", b)
	}
	if zap.L() == logger {
		t.Fatalf("cleanup must restore the previous global logger")
	}
}

func TestSetupLoggerRotation(t *testing.T) {
	dir := t.TempDir()
	rot := filepath.Join(dir, "rotated.log")
	c := config.LogConfig{
		Level:    "info",
		Format:   "json",
		Outputs:  []string{filepath.Join(dir, "ignored.log")},
		Rotation: config.RotationConfig{Enable: true, Filename: rot},
	}
	logger, cleanup, err := SetupLogger(c)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger.Info("rotated")
	cleanup()
	if _, err := os.Stat(rot); err != nil {
		t.Fatalf("rotation file missing: %v", err)
	}
}
