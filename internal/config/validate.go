package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateAttachments(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.BlobDir) == "" {
		return errors.New("paths.blob_dir must be set")
	}
	return nil
}

func (c *Config) validateSource() error {
	if c.Source.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/docket/config.toml"
		}
		return fmt.Errorf("source.base_url is required. Edit %s (create with 'docket config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Source.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("source.base_url %q is not a valid URL", c.Source.BaseURL)
	}
	if c.Source.Token == "" {
		return errors.New("source.token is required. Set DOCKET_SOURCE_TOKEN env var or edit the config file")
	}
	return nil
}

func (c *Config) validateAttachments() error {
	if c.Attachments.MaxInlineMiB > 1024 {
		return errors.New("attachments.max_inline_mib must not exceed 1024")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
