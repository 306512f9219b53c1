package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"fintrack/internal/config"
)

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&config.Config{LogLevel: "warn", LogFormat: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON warn record: %s", out)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("FINTRACK_TEST_VALUE=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FINTRACK_TEST_VALUE", "")
	os.Unsetenv("FINTRACK_TEST_VALUE")

	LoadEnvFile(path)
	if got := os.Getenv("FINTRACK_TEST_VALUE"); got != "from-dotenv" {
		t.Errorf("FINTRACK_TEST_VALUE = %q", got)
	}

	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("AUTH_JWT_SECRET", "")
	if _, err := LoadAndValidateConfig(); err == nil {
		t.Fatal("expected error without secret")
	}

	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef")
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatal(err)
	}
	res, err := InitBackend(context.Background(), nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := res.Store.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestGracefulShutdownOnSignal(t *testing.T) {
	ctx, stop := GracefulShutdown(context.Background(), SetupLogger(nil, &bytes.Buffer{}))
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled by SIGTERM")
	}
}
