package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	return setupCLITestEnvWithSource(t, "https://mail.test.invalid")
}

func setupCLITestEnvWithSource(t *testing.T, sourceURL string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
blob_dir = %q
log_dir = %q

[source]
base_url = %q
token = "test-token"
page_delay_millis = 1
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "blobs"),
		filepath.Join(base, "logs"),
		sourceURL,
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{baseDir: base, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = []string{"--config", configPath}
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got %q", want, output)
	}
}

func TestCLIRootShowsHelp(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, nil, env.configPath)
	if err != nil {
		t.Fatalf("root command: %v", err)
	}
	requireContains(t, out, "Usage:")
	requireContains(t, out, "ingest")
}

func TestCLIRequiresFlags(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"ingest"}, env.configPath); err == nil {
		t.Fatal("expected ingest without flags to fail")
	}
	if _, _, err := runCLI(t, []string{"timeline", "--org-id", "org-1"}, env.configPath); err == nil {
		t.Fatal("expected timeline without entity flag to fail")
	}
}
