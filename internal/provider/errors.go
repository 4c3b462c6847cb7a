package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Provider failures are classified, not just surfaced. The orchestrator
// keys its fallback behavior on these sentinels:
//
//   - ErrInvalidInput: malformed request, surfaced to the caller, no retry.
//   - ErrConfig: bad credential. Logged once; serving degrades to fallback
//     paths and the error is never retried automatically.
//   - ErrQuotaExceeded: provider cost/rate limit hit. Degrades to fallback
//     and is retried on a cooldown, not per-request.
//   - ErrTransient: network error or provider 5xx. Retried with bounded
//     exponential backoff, then degrades.
var (
	ErrInvalidInput  = errors.New("provider: invalid input")
	ErrConfig        = errors.New("provider: invalid credentials")
	ErrQuotaExceeded = errors.New("provider: quota exceeded")
	ErrTransient     = errors.New("provider: transient failure")
)

// IsInvalidInput reports whether err is an input validation failure.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsConfigError reports whether err is a fatal credential/config failure.
func IsConfigError(err error) bool { return errors.Is(err, ErrConfig) }

// IsQuotaExceeded reports whether err is a provider quota/rate-limit failure.
func IsQuotaExceeded(err error) bool { return errors.Is(err, ErrQuotaExceeded) }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// classifyStatus maps an HTTP response status from a provider to the error
// taxonomy. 401/403 are credential problems, 429 is quota, 400/422 indicate
// the request itself was malformed, and everything else (5xx, unexpected
// codes) is treated as transient.
func classifyStatus(status int, body string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: provider returned status %d: %s", ErrConfig, status, body)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: provider returned status %d: %s", ErrQuotaExceeded, status, body)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: provider returned status %d: %s", ErrInvalidInput, status, body)
	default:
		return fmt.Errorf("%w: provider returned status %d: %s", ErrTransient, status, body)
	}
}
