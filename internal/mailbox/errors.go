package mailbox

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrPermission indicates the credential lacks a required scope or is
// invalid. Never retried.
var ErrPermission = errors.New("mailbox permission denied")

// ErrPropagating indicates the remote mailbox service was recently enabled
// and is still propagating. Retried once with a fixed delay at preflight.
var ErrPropagating = errors.New("mailbox service propagating")

// classifyStatus maps an HTTP failure to the client error taxonomy.
func classifyStatus(status int, body string) error {
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: credential rejected (status 401); verify the source token has mailbox read access", ErrPermission)
	case http.StatusForbidden:
		if strings.Contains(strings.ToLower(body), "not enabled") {
			return fmt.Errorf("%w: mailbox API reports the service is not yet enabled", ErrPropagating)
		}
		return fmt.Errorf("%w: missing mailbox read scope (status 403)", ErrPermission)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: service unavailable (status 503)", ErrPropagating)
	default:
		return fmt.Errorf("mailbox API returned %d", status)
	}
}
