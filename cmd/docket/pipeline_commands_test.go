package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"docket/internal/store"
)

// newMailboxServer serves one thread with two messages, the second carrying
// a small attachment.
func newMailboxServer(t *testing.T) *httptest.Server {
	t.Helper()

	encode := func(s string) string {
		return base64.RawURLEncoding.EncodeToString([]byte(s))
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/threads", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"threads": []map[string]any{
				{"id": "t1", "snippet": "Acme renewal", "historyId": "100"},
			},
			"resultSizeEstimate": 1,
		})
	})
	mux.HandleFunc("/threads/t1", func(w http.ResponseWriter, r *http.Request) {
		message := func(id, from, subject string, date string, parts []map[string]any) map[string]any {
			return map[string]any{
				"id":           id,
				"threadId":     "t1",
				"internalDate": date,
				"payload": map[string]any{
					"mimeType": "multipart/mixed",
					"headers": []map[string]string{
						{"name": "From", "value": from},
						{"name": "To", "value": "team@example.com"},
						{"name": "Subject", "value": subject},
					},
					"parts": parts,
				},
			}
		}
		textPart := map[string]any{
			"partId":   "0",
			"mimeType": "text/plain",
			"body":     map[string]any{"size": 5, "data": encode("hello")},
		}
		attachmentPart := map[string]any{
			"partId":   "1",
			"mimeType": "application/pdf",
			"filename": "contract.pdf",
			"body":     map[string]any{"attachmentId": "att-1", "size": 9},
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":        "t1",
			"historyId": "100",
			"messages": []map[string]any{
				message("m1", "ana@example.com", "Acme renewal", "1767000000000", []map[string]any{textPart}),
				message("m2", "bo@example.com", "Re: Acme renewal", "1767003600000", []map[string]any{textPart, attachmentPart}),
			},
		})
	})
	mux.HandleFunc("/messages/m2/attachments/att-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"size": 9,
			"data": encode("pdf bytes"),
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCLIRunPipelineEndToEnd(t *testing.T) {
	srv := newMailboxServer(t)
	env := setupCLITestEnvWithSource(t, srv.URL)

	out, _, err := runCLI(t, []string{"records", "add", "--org-id", "org-1", "--title", "Acme renewal"}, env.configPath)
	if err != nil {
		t.Fatalf("records add: %v", err)
	}
	requireContains(t, out, "Created record")

	out, _, err = runCLI(t, []string{"run", "--org-id", "org-1", "--source-id", "mb-1"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Ingested 1 thread(s), 2 message(s)")
	requireContains(t, out, "Attachments: 1 stored, 0 by reference")
	requireContains(t, out, "Normalized 2 item(s)")
	requireContains(t, out, "Matched 2 item(s)")

	st := openTestStore(t, env.configPath)
	ctx := context.Background()
	items, err := st.ListNormalizedItems(ctx, "org-1")
	if err != nil {
		t.Fatalf("list normalized items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 normalized items, got %d", len(items))
	}
	for _, item := range items {
		if item.Payload.MatchStatus != store.MatchStatusMatched {
			t.Fatalf("expected matched item, got %#v", item.Payload)
		}
	}

	cp, err := st.GetCheckpoint(ctx, "mb-1")
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if cp.LastCursor != "100" || cp.Status != store.CheckpointIdle {
		t.Fatalf("unexpected checkpoint: %#v", cp)
	}

	// Second pass finds nothing new.
	out, _, err = runCLI(t, []string{"run", "--org-id", "org-1", "--source-id", "mb-1", "--from-checkpoint"}, env.configPath)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	requireContains(t, out, "Ingested 1 thread(s), 0 message(s)")
}

func TestCLIStatusShowsCheckpoint(t *testing.T) {
	srv := newMailboxServer(t)
	env := setupCLITestEnvWithSource(t, srv.URL)

	if _, _, err := runCLI(t, []string{"ingest", "--org-id", "org-1", "--source-id", "mb-1"}, env.configPath); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	out, _, err := runCLI(t, []string{"status", "--source-id", "mb-1", "--org-id", "org-1"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Checkpoint")
	requireContains(t, out, "idle")
	requireContains(t, out, "Raw items")
}

func TestCLIPreflightFailsOnBadSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	env := setupCLITestEnvWithSource(t, srv.URL)

	out, _, err := runCLI(t, []string{"preflight"}, env.configPath)
	if err == nil {
		t.Fatal("expected preflight to fail against unauthorized source")
	}
	requireContains(t, out, "auth failed")
}
