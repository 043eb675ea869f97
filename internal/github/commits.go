// internal/github/commits.go
package github

import (
	"context"

	"github.com/google/go-github/v62/github"

	"github-sync-service/internal/model"
)

// CommitCount estimates the number of commits in a repository.
//
// The weekly participation series covers the last 52 weeks and is summed
// when available. If GitHub errors (including the 202 returned while stats
// are still being computed), the count falls back to the last page number
// of a one-commit-per-page listing. That is 1 when no pagination hint is
// present and 0 when the fallback call fails too, in which case the error
// is returned alongside. The result is best effort either way.
func (c *Client) CommitCount(ctx context.Context, owner, repo string, token model.AccessToken) (int, error) {
	logger := c.logger.With("owner", owner, "repo", repo)

	var participation *github.RepositoryParticipation
	_, err := c.retry(ctx, "participation stats", token, func(ctx context.Context, gh *github.Client) (*github.Response, error) {
		var (
			r   *github.Response
			err error
		)
		participation, r, err = gh.Repositories.ListParticipation(ctx, owner, repo)
		return r, err
	})
	if err == nil && participation != nil {
		total := 0
		for _, weekly := range participation.All {
			total += weekly
		}
		return total, nil
	}

	logger.Debug("Participation stats unavailable, counting commit pages", "error", err)
	return c.commitCountFromPagination(ctx, owner, repo, token)
}

func (c *Client) commitCountFromPagination(ctx context.Context, owner, repo string, token model.AccessToken) (int, error) {
	opts := &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	}

	resp, err := c.retry(ctx, "list commits", token, func(ctx context.Context, gh *github.Client) (*github.Response, error) {
		_, r, err := gh.Repositories.ListCommits(ctx, owner, repo, opts)
		return r, err
	})
	if err != nil {
		return 0, err
	}

	// With one commit per page, the last page number is the commit count.
	if resp != nil && resp.LastPage > 0 {
		return resp.LastPage, nil
	}
	return 1, nil
}
