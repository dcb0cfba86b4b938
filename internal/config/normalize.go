package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSource()
	c.normalizeAttachments()
	c.normalizeNormalize()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.BlobDir) == "" {
		c.Paths.BlobDir = defaultBlobDir
	}
	if c.Paths.BlobDir, err = expandPath(c.Paths.BlobDir); err != nil {
		return fmt.Errorf("paths.blob_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSource() {
	c.Source.BaseURL = strings.TrimRight(strings.TrimSpace(c.Source.BaseURL), "/")
	c.Source.SourceType = strings.TrimSpace(c.Source.SourceType)
	if c.Source.SourceType == "" {
		c.Source.SourceType = defaultSourceType
	}
	if c.Source.Token == "" {
		c.Source.Token = strings.TrimSpace(os.Getenv("DOCKET_SOURCE_TOKEN"))
	}
	if c.Source.PageSize <= 0 {
		c.Source.PageSize = defaultPageSize
	}
	if c.Source.PageDelayMillis < 0 {
		c.Source.PageDelayMillis = defaultPageDelayMillis
	}
	if c.Source.LookbackDays <= 0 {
		c.Source.LookbackDays = defaultLookbackDays
	}
	if c.Source.PreflightRetrySeconds <= 0 {
		c.Source.PreflightRetrySeconds = defaultPreflightRetrySeconds
	}
	if c.Source.RequestTimeoutSeconds <= 0 {
		c.Source.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if c.Source.DownloadTimeoutSeconds <= 0 {
		c.Source.DownloadTimeoutSeconds = defaultDownloadTimeoutSeconds
	}
}

func (c *Config) normalizeAttachments() {
	if c.Attachments.MaxInlineMiB <= 0 {
		c.Attachments.MaxInlineMiB = defaultMaxInlineMiB
	}
}

func (c *Config) normalizeNormalize() {
	if c.Normalize.MaxRecipients <= 0 {
		c.Normalize.MaxRecipients = defaultMaxRecipients
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
