package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docket/internal/config"
)

func TestLoadDefaultsUseEnvTokenAndExpandPaths(t *testing.T) {
	t.Setenv("DOCKET_SOURCE_TOKEN", "env-token")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configDir := filepath.Join(tempHome, ".config", "docket")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := "[source]\nbase_url = \"https://mail.example.com/api\"\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" || !exists {
		t.Fatalf("expected resolved existing config path, got %q exists=%v", resolved, exists)
	}

	wantData := filepath.Join(tempHome, ".local", "share", "docket")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Source.Token != "env-token" {
		t.Fatalf("expected token from env, got %q", cfg.Source.Token)
	}
	if cfg.Source.PageSize != config.Default().Source.PageSize {
		t.Fatalf("unexpected page size: %d", cfg.Source.PageSize)
	}
	if cfg.Attachments.MaxInlineMiB != 25 {
		t.Fatalf("unexpected attachment threshold: %d", cfg.Attachments.MaxInlineMiB)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "docket.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
}

func TestLoadRejectsMissingBaseURL(t *testing.T) {
	t.Setenv("DOCKET_SOURCE_TOKEN", "env-token")
	t.Setenv("HOME", t.TempDir())

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error when base_url is unset")
	}
	if !strings.Contains(err.Error(), "source.base_url") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsUnknownLogFormat(t *testing.T) {
	t.Setenv("DOCKET_SOURCE_TOKEN", "env-token")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, "docket.toml")
	content := "[source]\nbase_url = \"https://mail.example.com\"\n[logging]\nformat = \"xml\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format error, got %v", err)
	}
}

func TestNormalizeTrimsBaseURLAndBoundsValues(t *testing.T) {
	t.Setenv("DOCKET_SOURCE_TOKEN", "env-token")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, "docket.toml")
	content := "[source]\nbase_url = \"https://mail.example.com/api/\"\npage_size = -5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Source.BaseURL != "https://mail.example.com/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Source.BaseURL)
	}
	if cfg.Source.PageSize != config.Default().Source.PageSize {
		t.Fatalf("expected page size reset to default, got %d", cfg.Source.PageSize)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(target); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(target); err == nil {
		t.Fatal("expected error when config already exists")
	}
}
