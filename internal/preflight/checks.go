package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CheckSource verifies that the mailbox API is reachable and the token is
// accepted. It uses a 5-second timeout and a single attempt (no retries).
func CheckSource(ctx context.Context, baseURL, token string) Result {
	const name = "Mailbox source"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	if strings.TrimSpace(token) == "" {
		return Result{Name: name, Detail: "missing token"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	endpoint := base + "/threads?" + url.Values{"maxResults": {"1"}}.Encode()
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("probe failed (%v)", err)}
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeSourceError(err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid token)"}
	case http.StatusServiceUnavailable:
		return Result{Name: name, Detail: "source unavailable (503)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("probe failed (%d)", resp.StatusCode)}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}

	probe, err := os.CreateTemp(path, ".docket-preflight-*")
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	probe.Close()
	_ = os.Remove(probe.Name())

	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDatabase verifies the database file location is usable: either the
// file exists, or its parent directory is writable so first open can create
// it.
func CheckDatabase(path string) Result {
	const name = "Database"

	if _, err := os.Stat(path); err == nil {
		return Result{Name: name, Passed: true, Detail: path}
	}
	parent := CheckDirectoryAccess(name, filepath.Dir(path))
	if parent.Passed {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
	}
	return Result{Name: name, Detail: parent.Detail}
}

// summarizeSourceError produces a human-readable summary for source probe
// failures.
func summarizeSourceError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "probe timed out (source unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "probe timed out (source unreachable)"
	}
	return err.Error()
}
