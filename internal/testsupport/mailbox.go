package testsupport

import (
	"context"
	"fmt"
	"sync"

	"docket/internal/mailbox"
)

// FakeSource is a scripted in-memory mailbox source. It satisfies both the
// thread listing interface and the attachment byte fetcher, so one fake can
// back an entire ingestion run.
type FakeSource struct {
	mu          sync.Mutex
	pages       map[string]*mailbox.ThreadPage
	threads     map[string]*mailbox.Thread
	attachments map[string][]byte
	listErrs    []error

	ListCalls  int
	FetchCalls int
}

var _ mailbox.Source = (*FakeSource)(nil)

func NewFakeSource() *FakeSource {
	return &FakeSource{
		pages:       make(map[string]*mailbox.ThreadPage),
		threads:     make(map[string]*mailbox.Thread),
		attachments: make(map[string][]byte),
	}
}

// AddPage registers one listing page under its page token. The first page
// lives under the empty token.
func (f *FakeSource) AddPage(token string, page *mailbox.ThreadPage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[token] = page
}

func (f *FakeSource) AddThread(thread *mailbox.Thread) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads[thread.ID] = thread
}

func (f *FakeSource) AddAttachment(messageID, attachmentID string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachments[messageID+":"+attachmentID] = data
}

// FailListWith queues errors returned by the next listing calls before any
// page is served.
func (f *FakeSource) FailListWith(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErrs = append(f.listErrs, errs...)
}

func (f *FakeSource) ListThreads(_ context.Context, _ string, pageToken string) (*mailbox.ThreadPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		return nil, err
	}
	page, ok := f.pages[pageToken]
	if !ok {
		return nil, fmt.Errorf("no page for token %q", pageToken)
	}
	return page, nil
}

func (f *FakeSource) GetThread(_ context.Context, id string) (*mailbox.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	thread, ok := f.threads[id]
	if !ok {
		return nil, fmt.Errorf("no thread %q", id)
	}
	return thread, nil
}

func (f *FakeSource) GetAttachment(_ context.Context, messageID, attachmentID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchCalls++
	data, ok := f.attachments[messageID+":"+attachmentID]
	if !ok {
		return nil, fmt.Errorf("no attachment %q on message %q", attachmentID, messageID)
	}
	return data, nil
}
