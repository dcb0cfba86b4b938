package testsupport

import (
	"path/filepath"
	"testing"

	"docket/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.BlobDir = filepath.Join(base, "blobs")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Source.BaseURL = "https://mail.test.invalid"
	cfg.Source.Token = "test-token"
	cfg.Source.PageDelayMillis = 0

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithSourceURL overrides the mailbox API base URL on the test config.
func WithSourceURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Source.BaseURL = url
	}
}

// WithMaxInlineMiB overrides the attachment size threshold on the test config.
func WithMaxInlineMiB(mib int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Attachments.MaxInlineMiB = mib
	}
}

// WithLookbackDays overrides the ingestion window on the test config.
func WithLookbackDays(days int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Source.LookbackDays = days
	}
}
