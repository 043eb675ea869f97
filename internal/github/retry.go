// internal/github/retry.go
package github

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v62/github"

	custom_errors "github-sync-service/internal/errors"
	"github-sync-service/internal/model"
)

// failureClass groups API failures by how the retry policy treats them.
type failureClass int

const (
	classPermanent failureClass = iota
	classRateLimited
	classTransient
)

func (f failureClass) String() string {
	switch f {
	case classRateLimited:
		return "rate_limited"
	case classTransient:
		return "transient"
	default:
		return "permanent"
	}
}

// classify decides whether a failed call may be retried. Rate limits and
// 5xx responses are retryable, as are transport failures while ctx is
// still live. Every other 4xx fails immediately.
func classify(ctx context.Context, err error) failureClass {
	if ctx.Err() != nil {
		return classPermanent
	}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return classRateLimited
	}

	var acceptedErr *github.AcceptedError
	if errors.As(err, &acceptedErr) {
		return classPermanent
	}

	switch code := statusCode(err); {
	case code == http.StatusTooManyRequests:
		return classRateLimited
	case code >= http.StatusInternalServerError:
		return classTransient
	case code >= http.StatusBadRequest:
		return classPermanent
	case code == 0:
		return classTransient
	default:
		return classPermanent
	}
}

// statusCode digs the HTTP status out of a go-github error, or 0 when the
// request never produced a response.
func statusCode(err error) int {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) && rateErr.Response != nil {
		return rateErr.Response.StatusCode
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.Response != nil {
		return abuseErr.Response.StatusCode
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode
	}
	return 0
}

// retry runs call under the client's backoff policy: exponential delays
// starting at retryBaseDelay, doubling, capped at retryMaxDelay, for at most
// maxAttempts attempts in total. Each attempt gets a fresh go-github client
// for token, so a rate limit remembered by one attempt never fails the next
// one locally; every attempt reaches GitHub.
func (c *Client) retry(ctx context.Context, op string, token model.AccessToken, call func(ctx context.Context, gh *github.Client) (*github.Response, error)) (*github.Response, error) {

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryBaseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = c.retryMaxDelay
	policy.MaxElapsedTime = 0

	var (
		attempts int
		resp     *github.Response
		last     failureClass
	)

	operation := func() error {
		attempts++
		r, err := call(ctx, c.forToken(token))
		resp = r
		if err == nil {
			return nil
		}

		last = classify(ctx, err)
		if last == classPermanent {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		c.logger.Warn("Retrying GitHub API call",
			"op", op,
			"attempt", attempts,
			"class", last.String(),
			"backoff", delay,
			"error", err,
		)
		if c.onRetry != nil {
			c.onRetry(attempts, delay)
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxAttempts-1)), ctx)
	err := backoff.RetryNotify(operation, b, notify)
	if err == nil {
		return resp, nil
	}

	if last == classRateLimited && ctx.Err() == nil {
		return resp, &custom_errors.RateLimitError{Attempts: attempts, Err: err}
	}
	return resp, &custom_errors.ProviderError{StatusCode: statusCode(err), Attempts: attempts, Err: err}
}
