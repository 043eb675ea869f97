// internal/errors/errors.go
package errors

import "fmt"

// ErrInvalidRepoFormat is returned when a repository full name is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// RateLimitError is returned when GitHub kept rate limiting a request after
// every retry attempt was spent.
type RateLimitError struct {
	Attempts int
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github API rate limit exceeded after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// ProviderError is a GitHub API failure that was not retried or whose
// retries were exhausted. StatusCode is zero for transport failures.
type ProviderError struct {
	StatusCode int
	Attempts   int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("github API request failed after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("github API returned HTTP %d after %d attempts: %v", e.StatusCode, e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
