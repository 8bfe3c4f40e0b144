package llm

import "errors"

var (
	// ErrUnavailable marks transport failures and provider 5xx responses.
	ErrUnavailable = errors.New("llm: provider unavailable")

	// ErrRateLimited marks provider 429 responses. Retryable after backoff.
	ErrRateLimited = errors.New("llm: rate limited")
)

// Retryable reports whether the error is worth retrying against the same
// provider. Bad requests and auth failures are not.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited)
}

func classifyStatus(status int) error {
	switch {
	case status == 429:
		return ErrRateLimited
	case status >= 500, status == 0:
		return ErrUnavailable
	default:
		return nil
	}
}
