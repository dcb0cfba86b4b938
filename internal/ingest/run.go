package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"docket/internal/blob"
	"docket/internal/ledger"
	"docket/internal/logging"
	"docket/internal/mailbox"
	"docket/internal/message"
	"docket/internal/store"
)

// ErrAlreadyRunning reports that another ingestion pass holds the source lock.
var ErrAlreadyRunning = errors.New("ingestion already running for this source")

// Run executes one full ingestion pass: preflight, paginated thread listing,
// per-thread processing, and a checkpoint commit. Thread failures are
// collected in the result rather than aborting the pass; only source-level
// failures (permission, exhausted retries, storage) are fatal.
func (i *Ingestor) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.OrgID == "" || req.MailboxID == "" {
		return nil, errors.New("run requires org and mailbox ids")
	}

	lock := flock.New(filepath.Join(i.cfg.LockDir(), req.MailboxID+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire source lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			i.logger.Warn("failed to release source lock", logging.Error(err))
		}
	}()

	query, err := i.windowQuery(ctx, req)
	if err != nil {
		return nil, err
	}
	i.markRunning(ctx, req)

	firstPage, err := i.preflight(ctx, query)
	if err != nil {
		i.recordCheckpoint(ctx, req, "", err)
		return nil, err
	}

	runID := uuid.NewString()
	if _, err := i.ledger.Append(ctx, ledger.Event{
		OrgID:         req.OrgID,
		EventType:     ledger.EventRunStarted,
		EntityType:    ledger.EntityRun,
		EntityID:      runID,
		CorrelationID: runID,
		Payload: map[string]any{
			"mailbox_id": req.MailboxID,
			"query":      query,
		},
	}); err != nil {
		return nil, fmt.Errorf("ledger run started: %w", err)
	}
	i.logger.Info("ingestion run started",
		logging.String(logging.FieldOrgID, req.OrgID),
		logging.String(logging.FieldSourceID, req.MailboxID),
		logging.String(logging.FieldCorrelationID, runID),
		logging.String("query", query),
	)

	result := &RunResult{}
	page := firstPage
	for {
		for _, summary := range page.Threads {
			if err := ctx.Err(); err != nil {
				i.recordCheckpoint(ctx, req, "", err)
				return result, err
			}
			if cursorLess(result.Cursor, summary.Cursor) {
				result.Cursor = summary.Cursor
			}
			if err := i.processThread(ctx, req, runID, summary.ID, result); err != nil {
				containerErr := &ContainerError{ThreadID: summary.ID, Err: err}
				result.Errors = append(result.Errors, containerErr)
				i.logger.Error("thread failed",
					logging.String(logging.FieldThreadID, summary.ID),
					logging.String(logging.FieldCorrelationID, runID),
					logging.Error(err),
				)
				continue
			}
			result.ThreadsIngested++
		}

		if page.NextPageToken == "" {
			break
		}
		if err := i.pause(ctx, time.Duration(i.cfg.Source.PageDelayMillis)*time.Millisecond); err != nil {
			i.recordCheckpoint(ctx, req, "", err)
			return result, err
		}
		page, err = i.source.ListThreads(ctx, query, page.NextPageToken)
		if err != nil {
			i.recordCheckpoint(ctx, req, "", err)
			return result, fmt.Errorf("list threads: %w", err)
		}
	}

	var checkpointErr error
	if len(result.Errors) > 0 {
		checkpointErr = result.Errors[0]
	}
	i.recordCheckpoint(ctx, req, result.Cursor, checkpointErr)

	if _, err := i.ledger.Append(ctx, ledger.Event{
		OrgID:         req.OrgID,
		EventType:     ledger.EventRunCompleted,
		EntityType:    ledger.EntityRun,
		EntityID:      runID,
		CorrelationID: runID,
		Payload: map[string]any{
			"mailbox_id":          req.MailboxID,
			"threads_ingested":    result.ThreadsIngested,
			"messages_ingested":   result.MessagesIngested,
			"attachments_stored":  result.AttachmentsStored,
			"attachments_skipped": result.AttachmentsSkipped,
			"thread_errors":       len(result.Errors),
		},
	}); err != nil {
		return result, fmt.Errorf("ledger run completed: %w", err)
	}
	i.logger.Info("ingestion run completed",
		logging.String(logging.FieldOrgID, req.OrgID),
		logging.String(logging.FieldCorrelationID, runID),
		logging.Int("threads", result.ThreadsIngested),
		logging.Int("messages", result.MessagesIngested),
		logging.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// windowQuery derives the listing query: the checkpoint cursor when resuming,
// otherwise the configured lookback window.
func (i *Ingestor) windowQuery(ctx context.Context, req RunRequest) (string, error) {
	if req.FromCheckpoint {
		cp, err := i.store.GetCheckpoint(ctx, req.MailboxID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("load checkpoint: %w", err)
		}
		if err == nil && cp.LastCursor != "" {
			return "newer:" + cp.LastCursor, nil
		}
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -i.cfg.Source.LookbackDays)
	return "after:" + cutoff.Format("2006/01/02"), nil
}

// preflight verifies the source answers a listing request. A propagating
// outage gets one retry after the configured delay; permission failures and
// second failures are fatal.
func (i *Ingestor) preflight(ctx context.Context, query string) (*mailbox.ThreadPage, error) {
	page, err := i.source.ListThreads(ctx, query, "")
	if err == nil {
		return page, nil
	}
	if !errors.Is(err, mailbox.ErrPropagating) {
		return nil, fmt.Errorf("source preflight: %w", err)
	}

	delay := time.Duration(i.cfg.Source.PreflightRetrySeconds) * time.Second
	i.logger.Warn("source unavailable; retrying preflight",
		logging.Duration("delay", delay),
		logging.Error(err),
	)
	if err := i.pause(ctx, delay); err != nil {
		return nil, err
	}
	page, err = i.source.ListThreads(ctx, query, "")
	if err != nil {
		return nil, fmt.Errorf("source preflight retry: %w", err)
	}
	return page, nil
}

func (i *Ingestor) processThread(ctx context.Context, req RunRequest, runID, threadID string, result *RunResult) error {
	thread, err := i.source.GetThread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("fetch thread: %w", err)
	}

	agg := newThreadAggregate(req.OrgID, thread.ID)
	for _, msg := range thread.Messages {
		parsed, err := message.Parse(msg)
		if err != nil {
			return fmt.Errorf("parse message: %w", err)
		}
		agg.add(parsed)
		if err := i.ingestMessage(ctx, req, runID, parsed, result); err != nil {
			return err
		}
	}

	if _, err := i.store.UpsertThread(ctx, agg.thread()); err != nil {
		return fmt.Errorf("upsert thread: %w", err)
	}
	return nil
}

func (i *Ingestor) ingestMessage(ctx context.Context, req RunRequest, runID string, parsed *message.Parsed, result *RunResult) error {
	sourceType := i.cfg.Source.SourceType
	key := store.IdempotencyKey(sourceType, parsed.ExternalID)

	payload := map[string]any{
		"message_id":      parsed.ExternalID,
		"thread_id":       parsed.ThreadID,
		"subject":         parsed.Subject,
		"from":            parsed.From,
		"body_text":       parsed.BodyText,
		"has_attachments": parsed.HasAttachments(),
	}
	if parsed.FromName != "" {
		payload["from_name"] = parsed.FromName
	}
	if len(parsed.To) > 0 {
		recipients := make([]any, 0, len(parsed.To))
		for _, to := range parsed.To {
			recipients = append(recipients, to)
		}
		payload["to"] = recipients
	}
	if !parsed.Date.IsZero() {
		payload["date"] = parsed.Date.Format(time.RFC3339Nano)
	}

	rawID, created, err := i.store.CreateRawItem(ctx, req.OrgID, key, sourceType, payload)
	if err != nil {
		return fmt.Errorf("create raw item: %w", err)
	}
	if created {
		result.MessagesIngested++
	}

	if _, err := i.ledger.Append(ctx, ledger.Event{
		OrgID:         req.OrgID,
		EventType:     ledger.EventItemIngested,
		EntityType:    ledger.EntityRawItem,
		EntityID:      rawID,
		CorrelationID: runID,
		Payload: map[string]any{
			"idempotency_key": key,
			"thread_id":       parsed.ThreadID,
		},
	}); err != nil {
		return fmt.Errorf("ledger ingested event: %w", err)
	}

	for _, attachment := range parsed.Attachments {
		if err := i.ingestAttachment(ctx, req, runID, rawID, parsed.ExternalID, attachment, result); err != nil {
			return err
		}
	}
	return nil
}

func (i *Ingestor) ingestAttachment(ctx context.Context, req RunRequest, runID, rawID, messageID string, ref message.AttachmentRef, result *RunResult) error {
	sourceType := i.cfg.Source.SourceType
	externalRef := store.IdempotencyKey(sourceType, messageID) + ":" + ref.AttachmentID

	if _, err := i.store.FindDocumentByExternalRef(ctx, req.OrgID, externalRef); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check document: %w", err)
	}

	saved, err := i.saver.Save(ctx, blob.SaveRequest{
		OrgID:      req.OrgID,
		MailboxID:  req.MailboxID,
		SourceType: sourceType,
		MessageID:  messageID,
		Attachment: ref,
	})
	if err != nil {
		return fmt.Errorf("save attachment: %w", err)
	}

	tags := []string{"source:" + sourceType, "ext:" + ref.AttachmentID}
	if saved.SHA256 != nil {
		tags = append(tags, "sha256:"+*saved.SHA256)
	}
	if _, err := i.store.CreateDocument(ctx, &store.Document{
		OrgID:       req.OrgID,
		Name:        saved.Filename,
		StoragePath: saved.StoragePath,
		SHA256:      saved.SHA256,
		ByteSize:    saved.ByteSize,
		MimeType:    saved.MimeType,
		ExternalRef: externalRef,
		Tags:        tags,
	}); err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	if saved.Stored {
		result.AttachmentsStored++
		if _, err := i.ledger.Append(ctx, ledger.Event{
			OrgID:         req.OrgID,
			EventType:     ledger.EventAttachmentIngested,
			EntityType:    ledger.EntityRawItem,
			EntityID:      rawID,
			CorrelationID: runID,
			Payload: map[string]any{
				"idempotency_key": "attachment:" + externalRef,
				"storage_path":    saved.StoragePath,
				"byte_size":       saved.ByteSize,
			},
		}); err != nil {
			return fmt.Errorf("ledger attachment event: %w", err)
		}
		return nil
	}

	result.AttachmentsSkipped++
	i.logger.Info("attachment recorded by reference",
		logging.String(logging.FieldMessageID, messageID),
		logging.String("attachment_id", ref.AttachmentID),
		logging.Int64("byte_size", ref.ByteSize),
	)
	return nil
}

// markRunning flags the source checkpoint while a pass is in flight. The
// stored cursor is carried over untouched.
func (i *Ingestor) markRunning(ctx context.Context, req RunRequest) {
	cursor := ""
	if cp, err := i.store.GetCheckpoint(ctx, req.MailboxID); err == nil {
		cursor = cp.LastCursor
	}
	now := time.Now().UTC()
	if err := i.store.UpsertCheckpoint(ctx, &store.Checkpoint{
		SourceID:   req.MailboxID,
		OrgID:      req.OrgID,
		LastCursor: cursor,
		LastRunAt:  &now,
		Status:     store.CheckpointRunning,
	}); err != nil {
		i.logger.Error("failed to mark checkpoint running",
			logging.String(logging.FieldSourceID, req.MailboxID),
			logging.Error(err),
		)
	}
}

// recordCheckpoint commits run progress for the source. An empty cursor keeps
// the previously stored one; fatal exits pass it so a partial pass never
// advances the window and the next run re-scans it.
func (i *Ingestor) recordCheckpoint(ctx context.Context, req RunRequest, cursor string, runErr error) {
	status := store.CheckpointIdle
	errorMessage := ""
	if runErr != nil {
		status = store.CheckpointError
		errorMessage = runErr.Error()
	}
	if cursor == "" {
		if cp, err := i.store.GetCheckpoint(ctx, req.MailboxID); err == nil {
			cursor = cp.LastCursor
		}
	}
	now := time.Now().UTC()
	if err := i.store.UpsertCheckpoint(ctx, &store.Checkpoint{
		SourceID:         req.MailboxID,
		OrgID:            req.OrgID,
		LastCursor:       cursor,
		LastRunAt:        &now,
		Status:           status,
		LastErrorMessage: errorMessage,
	}); err != nil {
		i.logger.Error("failed to record checkpoint",
			logging.String(logging.FieldSourceID, req.MailboxID),
			logging.Error(err),
		)
	}
}

func (i *Ingestor) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// cursorLess compares listing cursors, numerically when both parse as
// integers.
func cursorLess(a, b string) bool {
	if b == "" {
		return false
	}
	if a == "" {
		return true
	}
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

// threadAggregate accumulates the thread-level view while messages stream
// through.
type threadAggregate struct {
	orgID          string
	externalID     string
	subject        string
	participants   map[string]struct{}
	firstMessageAt *time.Time
	lastMessageAt  *time.Time
	hasAttachments bool
	messageCount   int
}

func newThreadAggregate(orgID, externalID string) *threadAggregate {
	return &threadAggregate{
		orgID:        orgID,
		externalID:   externalID,
		participants: make(map[string]struct{}),
	}
}

func (a *threadAggregate) add(parsed *message.Parsed) {
	a.messageCount++
	if a.subject == "" {
		a.subject = parsed.Subject
	}
	if parsed.From != "" {
		a.participants[parsed.From] = struct{}{}
	}
	for _, to := range parsed.To {
		a.participants[to] = struct{}{}
	}
	if parsed.HasAttachments() {
		a.hasAttachments = true
	}
	if !parsed.Date.IsZero() {
		date := parsed.Date
		if a.firstMessageAt == nil || date.Before(*a.firstMessageAt) {
			a.firstMessageAt = &date
		}
		if a.lastMessageAt == nil || date.After(*a.lastMessageAt) {
			a.lastMessageAt = &date
		}
	}
}

func (a *threadAggregate) thread() *store.Thread {
	participants := make([]string, 0, len(a.participants))
	for participant := range a.participants {
		participants = append(participants, participant)
	}
	sort.Strings(participants)
	return &store.Thread{
		OrgID:          a.orgID,
		ExternalID:     a.externalID,
		Subject:        a.subject,
		Participants:   participants,
		FirstMessageAt: a.firstMessageAt,
		LastMessageAt:  a.lastMessageAt,
		HasAttachments: a.hasAttachments,
		MessageCount:   a.messageCount,
	}
}
