package main

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"docket/internal/blob"
	"docket/internal/config"
	"docket/internal/ingest"
	"docket/internal/ledger"
	"docket/internal/logging"
	"docket/internal/mailbox"
	"docket/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the pipeline database for the duration of fn.
func (c *commandContext) withStore(fn func(cfg *config.Config, st *store.Store, lg *ledger.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cfg, st, ledger.New(st.DB()))
}

func (c *commandContext) logger() *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewNop()
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// newIngestor wires a full ingestion pipeline: mailbox client, blob storage,
// and the orchestrator.
func (c *commandContext) newIngestor(cfg *config.Config, st *store.Store, lg *ledger.Store, logger *slog.Logger) (*ingest.Ingestor, error) {
	client, err := mailbox.New(cfg.Source.BaseURL, mailbox.StaticToken(cfg.Source.Token),
		mailbox.WithPageSize(cfg.Source.PageSize),
		mailbox.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Source.RequestTimeoutSeconds) * time.Second}),
		mailbox.WithDownloadClient(&http.Client{Timeout: time.Duration(cfg.Source.DownloadTimeoutSeconds) * time.Second}),
	)
	if err != nil {
		return nil, err
	}
	storage, err := blob.NewFS(cfg.Paths.BlobDir)
	if err != nil {
		return nil, err
	}
	saver, err := blob.NewSaver(client, storage, int64(cfg.Attachments.MaxInlineMiB)<<20)
	if err != nil {
		return nil, err
	}
	return ingest.New(cfg, client, st, lg, saver, logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
