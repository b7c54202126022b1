package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ledgerbook/internal/api"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("LEDGERBOOK_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LEDGERBOOK_TEST_VALUE", "")
	os.Unsetenv("LEDGERBOOK_TEST_VALUE")

	if err := LoadEnvFile(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFile() = %v", err)
	}
	if got := os.Getenv("LEDGERBOOK_TEST_VALUE"); got != "from-file" {
		t.Errorf("LEDGERBOOK_TEST_VALUE = %q, want from-file", got)
	}
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("LEDGERBOOK_CONFIG", "")
	t.Setenv("STORAGE_PATH", filepath.Join(t.TempDir(), "db", "ledgerbook.db"))
	t.Setenv("DATA_BACKEND", "nope")

	if _, err := LoadAndValidateConfig(); err == nil || !strings.Contains(err.Error(), "invalid data backend") {
		t.Fatalf("expected backend validation error, got %v", err)
	}

	t.Setenv("DATA_BACKEND", "offline")
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatalf("LoadAndValidateConfig() = %v", err)
	}
	if cfg.DataBackend != "offline" {
		t.Errorf("DataBackend = %q", cfg.DataBackend)
	}
}

func TestSetupLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("info", &buf)
	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("unexpected log output: %q", out)
	}
}

func TestTerminalNavigator(t *testing.T) {
	var buf bytes.Buffer
	nav := NewTerminalNavigator(&buf, "list")
	if nav.Location() != "/list" {
		t.Fatalf("Location() = %q", nav.Location())
	}

	nav.Redirect(api.LoginPath)
	nav.Redirect(api.LoginPath)

	if nav.Location() != api.LoginPath {
		t.Errorf("Location() = %q after redirect", nav.Location())
	}
	if n := strings.Count(buf.String(), "ledgerbook login"); n != 1 {
		t.Errorf("hint printed %d times, want 1", n)
	}
}
