// internal/syncer/enrich.go
package syncer

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	custom_errors "github-sync-service/internal/errors"
	"github-sync-service/internal/model"
)

// RepoIdentifier holds the owner and name of a repository.
type RepoIdentifier struct {
	Owner string
	Name  string
}

// fetchAndEnrich drains the provider's repository sequence and enriches each
// repository concurrently, at most s.concurrency at a time. The result keeps
// the provider's order. Enrichment failures never drop a repository; only a
// listing failure fails the whole batch.
func (s *Syncer) fetchAndEnrich(ctx context.Context, logger *slog.Logger, token model.AccessToken) ([]model.Repository, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var slots []*model.Repository
	var listErr error

	for repo, err := range s.provider.ListRepositories(ctx, token) {
		if err != nil {
			listErr = err
			break
		}

		slot := &model.Repository{}
		slots = append(slots, slot)
		g.Go(func() error {
			*slot = s.enrich(gctx, logger, repo, token)
			return nil
		})
	}

	// Wait even on a listing error so no goroutine outlives the call.
	_ = g.Wait()
	if listErr != nil {
		return nil, listErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Repository, len(slots))
	for i, slot := range slots {
		out[i] = *slot
	}
	return out, nil
}

// enrich fetches languages and commit count for a single repository in parallel.
func (s *Syncer) enrich(ctx context.Context, logger *slog.Logger, repo model.Repository, token model.AccessToken) model.Repository {
	id, err := parseRepoIdentifier(repo.FullName)
	if err != nil {
		logger.Warn("Falling back to owner login", "error", err, "owner", repo.Owner)
		id = RepoIdentifier{Owner: repo.Owner, Name: repo.Name}
	}
	logger = logger.With("owner", id.Owner, "repo", id.Name)

	var (
		languages map[string]int
		commits   int
		g         errgroup.Group
	)
	g.Go(func() error {
		languages = s.languagesOrDefault(ctx, logger, id, token)
		return nil
	})
	g.Go(func() error {
		commits = s.commitCountOrDefault(ctx, logger, id, token)
		return nil
	})
	_ = g.Wait()

	repo.Owner = id.Owner
	repo.Languages = languages
	repo.CommitCount = commits
	return repo
}

// languagesOrDefault substitutes an empty map when languages cannot be fetched.
func (s *Syncer) languagesOrDefault(ctx context.Context, logger *slog.Logger, id RepoIdentifier, token model.AccessToken) map[string]int {
	languages, err := s.provider.ListLanguages(ctx, id.Owner, id.Name, token)
	if err != nil {
		logger.Warn("Failed to fetch languages, using empty set", "error", err)
		return map[string]int{}
	}
	if languages == nil {
		return map[string]int{}
	}
	return languages
}

// commitCountOrDefault substitutes zero when the commit count cannot be fetched.
func (s *Syncer) commitCountOrDefault(ctx context.Context, logger *slog.Logger, id RepoIdentifier, token model.AccessToken) int {
	count, err := s.provider.CommitCount(ctx, id.Owner, id.Name, token)
	if err != nil {
		logger.Warn("Failed to fetch commit count, using zero", "error", err)
		return 0
	}
	if count < 0 {
		return 0
	}
	return count
}

func parseRepoIdentifier(fullName string) (RepoIdentifier, error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepoIdentifier{}, &custom_errors.ErrInvalidRepoFormat{Repo: fullName}
	}
	return RepoIdentifier{Owner: parts[0], Name: parts[1]}, nil
}
