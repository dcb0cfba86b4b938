package ingest

import (
	"errors"
	"fmt"
	"log/slog"

	"docket/internal/blob"
	"docket/internal/config"
	"docket/internal/ledger"
	"docket/internal/logging"
	"docket/internal/mailbox"
	"docket/internal/store"
)

// Ingestor pulls threads from a remote mailbox source and lands them as raw
// items, documents, and thread aggregates. Every write is idempotent, so an
// interrupted run can simply be repeated.
type Ingestor struct {
	cfg    *config.Config
	source mailbox.Source
	store  *store.Store
	ledger *ledger.Store
	saver  *blob.Saver
	logger *slog.Logger
}

func New(cfg *config.Config, source mailbox.Source, st *store.Store, lg *ledger.Store, saver *blob.Saver, logger *slog.Logger) (*Ingestor, error) {
	if cfg == nil || source == nil || st == nil || lg == nil || saver == nil {
		return nil, errors.New("ingestor requires config, source, store, ledger, and saver")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ingestor{
		cfg:    cfg,
		source: source,
		store:  st,
		ledger: lg,
		saver:  saver,
		logger: logging.NewComponentLogger(logger, "ingest"),
	}, nil
}

// RunRequest identifies one ingestion pass.
type RunRequest struct {
	OrgID     string
	MailboxID string
	// FromCheckpoint resumes from the stored cursor instead of the
	// configured lookback window.
	FromCheckpoint bool
}

// ContainerError records a thread that failed without aborting the run.
type ContainerError struct {
	ThreadID string
	Err      error
}

func (e *ContainerError) Error() string {
	return fmt.Sprintf("thread %s: %v", e.ThreadID, e.Err)
}

func (e *ContainerError) Unwrap() error {
	return e.Err
}

// RunResult summarizes one ingestion pass.
type RunResult struct {
	ThreadsIngested    int
	MessagesIngested   int
	AttachmentsStored  int
	AttachmentsSkipped int
	Errors             []*ContainerError
	Cursor             string
}
