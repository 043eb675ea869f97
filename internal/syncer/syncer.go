// internal/syncer/syncer.go
package syncer

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github-sync-service/internal/database"
	"github-sync-service/internal/events"
	"github-sync-service/internal/model"
)

// ProviderClient is the subset of the GitHub client the syncer depends on.
type ProviderClient interface {
	ListRepositories(ctx context.Context, token model.AccessToken) iter.Seq2[model.Repository, error]
	ListLanguages(ctx context.Context, owner, repo string, token model.AccessToken) (map[string]int, error)
	CommitCount(ctx context.Context, owner, repo string, token model.AccessToken) (int, error)
}

// Syncer orchestrates the fetching, enrichment and storing of an owner's repositories.
type Syncer struct {
	store       database.Store
	provider    ProviderClient
	publisher   events.Publisher
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
	newID       func() string
}

type Option func(*Syncer)

// WithConcurrency bounds how many repositories are enriched in parallel.
// Values below 1 select runtime.GOMAXPROCS(0).
func WithConcurrency(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(store database.Store, provider ProviderClient, publisher events.Publisher, logger *slog.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		store:       store,
		provider:    provider,
		publisher:   publisher,
		logger:      logger,
		concurrency: runtime.GOMAXPROCS(0),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync fetches every repository visible to token, enriches it with languages
// and commit count, and reconciles it into the store under ownerID. The
// owner's status record tracks the run from IN_PROGRESS to SUCCESS or FAILED.
// On success one synced event per repository is published.
func (s *Syncer) Sync(ctx context.Context, ownerID string, token model.AccessToken) ([]model.Repository, error) {
	run, err := s.startRun(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	logger := run.logger
	logger.Info("Starting repository sync", "concurrency", s.concurrency)

	enriched, err := s.fetchAndEnrich(ctx, logger, token)
	if err != nil {
		logger.Error("Failed to fetch repositories", "error", err)
		s.finishRun(ctx, run, model.SyncStateFailed, 0, err)
		return nil, fmt.Errorf("failed to fetch repositories: %w", err)
	}
	logger.Info("Fetched and enriched repositories", "count", len(enriched))

	saved := make([]model.Repository, 0, len(enriched))
	for _, repo := range enriched {
		r, err := s.reconcile(ctx, ownerID, repo)
		if err != nil {
			logger.Error("Failed to save repository", "repo", repo.FullName, "error", err)
			s.finishRun(ctx, run, model.SyncStateFailed, len(saved), err)
			return nil, fmt.Errorf("failed to save repository %s: %w", repo.FullName, err)
		}
		saved = append(saved, r)
	}

	s.finishRun(ctx, run, model.SyncStateSuccess, len(saved), nil)
	s.publishSynced(ctx, logger, ownerID, saved)

	logger.Info("Repository sync finished", "count", len(saved))
	return saved, nil
}

// publishSynced emits one event per repository. Failures are logged only.
func (s *Syncer) publishSynced(ctx context.Context, logger *slog.Logger, ownerID string, repos []model.Repository) {
	for _, r := range repos {
		event := model.RepoSyncedEvent{
			EventID:      s.newID(),
			GithubRepoID: strconv.FormatInt(r.GithubRepoID, 10),
			OwnerID:      ownerID,
			OccurredAt:   s.now().UTC(),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			logger.Warn("Failed to publish repository synced event", "github_repo_id", event.GithubRepoID, "error", err)
		}
	}
}

// ListRepositories returns every stored repository of an owner.
func (s *Syncer) ListRepositories(ctx context.Context, ownerID string) ([]model.Repository, error) {
	return s.store.ListRepositoriesByOwner(ctx, ownerID)
}

// GetSyncStatus returns database.ErrNotFound when the owner never synced.
func (s *Syncer) GetSyncStatus(ctx context.Context, ownerID string) (model.SyncStatus, error) {
	return s.store.GetSyncStatus(ctx, ownerID)
}

// PurgeOwner deletes every repository, commit activity and status record of an owner.
func (s *Syncer) PurgeOwner(ctx context.Context, ownerID string) error {
	return s.store.ExecTx(ctx, func(q database.Querier) error {
		repos, err := q.DeleteRepositoriesByOwner(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("failed to delete repositories: %w", err)
		}
		days, err := q.DeleteCommitActivityByOwner(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("failed to delete commit activity: %w", err)
		}
		if _, err := q.DeleteSyncStatus(ctx, ownerID); err != nil {
			return fmt.Errorf("failed to delete sync status: %w", err)
		}
		s.logger.Info("Purged owner data", "user_id", ownerID, "repositories", repos, "activity_days", days)
		return nil
	})
}
