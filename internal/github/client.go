// internal/github/client.go
package github

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github-sync-service/internal/model"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultMaxAttempts    = 3

	// Max per page
	pageSize = 100
)

// Config holds the settings for a Client. Zero values fall back to defaults.
type Config struct {
	// BaseURL overrides the public API root, e.g. for GitHub Enterprise or tests.
	BaseURL        string
	Timeout        time.Duration
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	MaxAttempts    int
	// HTTPClient supplies the base transport. Its Timeout is ignored in favour of Timeout.
	HTTPClient *http.Client
}

// Client is a wrapper around the go-github client. A go-github client is
// built per call from the caller's access token; the Client itself holds no
// credentials and is safe for concurrent use.
type Client struct {
	baseURL        *url.URL
	transport      http.RoundTripper
	timeout        time.Duration
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	maxAttempts    int
	logger         *slog.Logger

	// onRetry observes every backoff delay before it is slept.
	onRetry func(attempt int, delay time.Duration)
}

// NewClient creates and configures a new Client instance.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	c := &Client{
		transport:      http.DefaultTransport,
		timeout:        cfg.Timeout,
		retryBaseDelay: cfg.RetryBaseDelay,
		retryMaxDelay:  cfg.RetryMaxDelay,
		maxAttempts:    cfg.MaxAttempts,
		logger:         logger,
	}
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		c.transport = cfg.HTTPClient.Transport
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.retryBaseDelay <= 0 {
		c.retryBaseDelay = defaultRetryBaseDelay
	}
	if c.retryMaxDelay <= 0 {
		c.retryMaxDelay = defaultRetryMaxDelay
	}
	if c.retryMaxDelay < c.retryBaseDelay {
		c.retryMaxDelay = c.retryBaseDelay
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}

	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", cfg.BaseURL, err)
		}
		c.baseURL = u
	}

	return c, nil
}

// forToken returns a go-github client that authenticates with the given
// bearer token. go-github pins the X-GitHub-Api-Version header itself.
func (c *Client) forToken(token model.AccessToken) *github.Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: string(token)},
	)
	tc := &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: c.transport},
		Timeout:   c.timeout,
	}

	gh := github.NewClient(tc)
	if c.baseURL != nil {
		gh.BaseURL = c.baseURL
	}
	return gh
}

// ListRepositories lazily yields every repository the token's user can
// access, most recently updated first. A page is fetched only when the
// consumer has drained the previous one. The first error ends the sequence.
func (c *Client) ListRepositories(ctx context.Context, token model.AccessToken) iter.Seq2[model.Repository, error] {
	return func(yield func(model.Repository, error) bool) {
		opts := &github.RepositoryListByAuthenticatedUserOptions{
			Sort: "updated",
			ListOptions: github.ListOptions{
				PerPage: pageSize,
			},
		}

		for {
			c.logger.Debug("Fetching repositories page", "page", opts.Page)

			var repos []*github.Repository
			resp, err := c.retry(ctx, "list repositories", token, func(ctx context.Context, gh *github.Client) (*github.Response, error) {
				var (
					r   *github.Response
					err error
				)
				repos, r, err = gh.Repositories.ListByAuthenticatedUser(ctx, opts)
				return r, err
			})
			if err != nil {
				yield(model.Repository{}, err)
				return
			}

			for _, r := range repos {
				if !yield(FromGitHubRepository(r), nil) {
					return
				}
			}

			if resp == nil || resp.NextPage == 0 {
				return
			}
			opts.Page = resp.NextPage
		}
	}
}

// ListLanguages returns the bytes of code per language for a repository.
// On failure it returns an empty, non-nil map together with the error.
func (c *Client) ListLanguages(ctx context.Context, owner, repo string, token model.AccessToken) (map[string]int, error) {
	var languages map[string]int
	_, err := c.retry(ctx, "list languages", token, func(ctx context.Context, gh *github.Client) (*github.Response, error) {
		var (
			r   *github.Response
			err error
		)
		languages, r, err = gh.Repositories.ListLanguages(ctx, owner, repo)
		return r, err
	})
	if err != nil {
		return map[string]int{}, err
	}
	if languages == nil {
		languages = map[string]int{}
	}
	return languages, nil
}

// UserLogin resolves the login of the token's user.
func (c *Client) UserLogin(ctx context.Context, token model.AccessToken) (string, error) {
	var user *github.User
	_, err := c.retry(ctx, "get user", token, func(ctx context.Context, gh *github.Client) (*github.Response, error) {
		var (
			r   *github.Response
			err error
		)
		user, r, err = gh.Users.Get(ctx, "")
		return r, err
	})
	if err != nil {
		return "", err
	}
	return user.GetLogin(), nil
}

// RecentEvents returns the most recent page of events performed by login.
func (c *Client) RecentEvents(ctx context.Context, login string, token model.AccessToken) ([]model.ProviderEvent, error) {
	var events []*github.Event
	_, err := c.retry(ctx, "list user events", token, func(ctx context.Context, gh *github.Client) (*github.Response, error) {
		var (
			r   *github.Response
			err error
		)
		events, r, err = gh.Activity.ListEventsPerformedByUser(ctx, login, false, &github.ListOptions{PerPage: pageSize})
		return r, err
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.ProviderEvent, 0, len(events))
	for _, e := range events {
		out = append(out, toInternalEvent(e))
	}
	return out, nil
}

// FromGitHubRepository translates a github.Repository object to our internal model.Repository.
// Owner-scoped and bookkeeping fields are left for the caller.
func FromGitHubRepository(r *github.Repository) model.Repository {
	repo := model.Repository{
		GithubRepoID: r.GetID(),
		Owner:        r.GetOwner().GetLogin(),
		Name:         r.GetName(),
		FullName:     r.GetFullName(),
		Description:  r.GetDescription(),
		URL:          r.GetURL(),
		HTMLURL:      r.GetHTMLURL(),
		Language:     r.GetLanguage(),
		StarsCount:   r.GetStargazersCount(),
		ForksCount:   r.GetForksCount(),
		Private:      r.GetPrivate(),
	}
	if r.PushedAt != nil {
		pushed := r.GetPushedAt().Time
		repo.LastActivityAt = &pushed
	}
	return repo
}

// toInternalEvent translates a github.Event object to our internal model.ProviderEvent.
func toInternalEvent(e *github.Event) model.ProviderEvent {
	ev := model.ProviderEvent{
		ID:        e.GetID(),
		Type:      e.GetType(),
		CreatedAt: e.GetCreatedAt().Time,
	}
	if ev.Type != "PushEvent" {
		return ev
	}

	var push *github.PushEvent
	if e.RawPayload != nil {
		if payload, err := e.ParsePayload(); err == nil {
			push, _ = payload.(*github.PushEvent)
		}
	}
	ev.PushCommits = PushCommitCount(push)
	return ev
}

// PushCommitCount prefers the commits listed in a push, then its reported
// size, and counts at least one. A nil push counts as one commit.
func PushCommitCount(push *github.PushEvent) int {
	if push == nil {
		return 1
	}
	if n := len(push.Commits); n > 0 {
		return n
	}
	if n := push.GetSize(); n > 0 {
		return n
	}
	return 1
}
