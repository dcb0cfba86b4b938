package config

const (
	defaultDataDir                = "~/.local/share/docket"
	defaultBlobDir                = "~/.local/share/docket/blobs"
	defaultLogDir                 = "~/.local/share/docket/logs"
	defaultSourceType             = "mailbox"
	defaultPageSize               = 50
	defaultPageDelayMillis        = 500
	defaultLookbackDays           = 7
	defaultPreflightRetrySeconds  = 60
	defaultRequestTimeoutSeconds  = 30
	defaultDownloadTimeoutSeconds = 120
	defaultMaxInlineMiB           = 25
	defaultMaxRecipients          = 10
	defaultLogLevel               = "info"
	defaultLogFormat              = "console"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			BlobDir: defaultBlobDir,
			LogDir:  defaultLogDir,
		},
		Source: Source{
			SourceType:             defaultSourceType,
			PageSize:               defaultPageSize,
			PageDelayMillis:        defaultPageDelayMillis,
			LookbackDays:           defaultLookbackDays,
			PreflightRetrySeconds:  defaultPreflightRetrySeconds,
			RequestTimeoutSeconds:  defaultRequestTimeoutSeconds,
			DownloadTimeoutSeconds: defaultDownloadTimeoutSeconds,
		},
		Attachments: Attachments{
			MaxInlineMiB: defaultMaxInlineMiB,
		},
		Normalize: Normalize{
			MaxRecipients: defaultMaxRecipients,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
