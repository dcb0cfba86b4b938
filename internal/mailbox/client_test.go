package mailbox_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"docket/internal/mailbox"
)

func TestListThreadsPaginates(t *testing.T) {
	var gotToken, gotPage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/threads" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotToken = r.Header.Get("Authorization")
		gotPage = r.URL.Query().Get("pageToken")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
            "threads": [{"id": "thr-1", "historyId": "1001"}, {"id": "thr-2", "historyId": "1002"}],
            "nextPageToken": "page-2",
            "resultSizeEstimate": 2
        }`))
	}))
	defer server.Close()

	client, err := mailbox.New(server.URL, mailbox.StaticToken("tok"), mailbox.WithPageSize(2))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	page, err := client.ListThreads(context.Background(), "after:2026/08/01", "page-1")
	if err != nil {
		t.Fatalf("ListThreads failed: %v", err)
	}
	if gotToken != "Bearer tok" {
		t.Fatalf("expected bearer token header, got %q", gotToken)
	}
	if gotPage != "page-1" {
		t.Fatalf("expected page token forwarded, got %q", gotPage)
	}
	if len(page.Threads) != 2 || page.NextPageToken != "page-2" {
		t.Fatalf("unexpected page: %#v", page)
	}
	if page.Threads[1].Cursor != "1002" {
		t.Fatalf("unexpected cursor: %q", page.Threads[1].Cursor)
	}
}

func TestGetThreadDecodesMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/threads/thr-1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
            "id": "thr-1",
            "messages": [{
                "id": "msg-1",
                "threadId": "thr-1",
                "internalDate": "1756000000000",
                "payload": {"mimeType": "text/plain", "body": {"size": 2, "data": "aGk"}}
            }]
        }`))
	}))
	defer server.Close()

	client, err := mailbox.New(server.URL, mailbox.StaticToken("tok"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	thread, err := client.GetThread(context.Background(), "thr-1")
	if err != nil {
		t.Fatalf("GetThread failed: %v", err)
	}
	if len(thread.Messages) != 1 || thread.Messages[0].InternalDate != 1756000000000 {
		t.Fatalf("unexpected thread: %#v", thread)
	}
}

func TestGetAttachmentDecodesBase64URL(t *testing.T) {
	raw := []byte{0x00, 0x01, 0xfe, 0xff}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages/msg-1/attachments/att-1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"size": 4, "data": "` + encoded + `"}`))
	}))
	defer server.Close()

	client, err := mailbox.New(server.URL, mailbox.StaticToken("tok"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	data, err := client.GetAttachment(context.Background(), "msg-1", "att-1")
	if err != nil {
		t.Fatalf("GetAttachment failed: %v", err)
	}
	if string(data) != string(raw) {
		t.Fatalf("unexpected bytes: %v", data)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, "", mailbox.ErrPermission},
		{"forbidden", http.StatusForbidden, `{"error": "insufficient scope"}`, mailbox.ErrPermission},
		{"propagating", http.StatusForbidden, `{"error": "Mailbox service not enabled for this account"}`, mailbox.ErrPropagating},
		{"unavailable", http.StatusServiceUnavailable, "", mailbox.ErrPropagating},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client, err := mailbox.New(server.URL, mailbox.StaticToken("tok"))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			_, err = client.ListThreads(context.Background(), "", "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewRequiresBaseURLAndTokens(t *testing.T) {
	if _, err := mailbox.New("", mailbox.StaticToken("tok")); err == nil {
		t.Fatal("expected error for missing base url")
	}
	if _, err := mailbox.New("https://mail.example.com", nil); err == nil {
		t.Fatal("expected error for missing token provider")
	}
}
