// internal/syncer/reconcile.go
package syncer

import (
	"context"

	"github-sync-service/internal/database"
	"github-sync-service/internal/model"
)

// reconcile wraps the upsert of a single repository in a DB transaction.
func (s *Syncer) reconcile(ctx context.Context, ownerID string, repo model.Repository) (model.Repository, error) {
	var saved model.Repository
	err := s.store.ExecTx(ctx, func(q database.Querier) error {
		var err error
		saved, err = s.upsertRepository(ctx, q, ownerID, repo)
		return err
	})
	return saved, err
}

// upsertRepository creates or overwrites a repository keyed by owner and
// GitHub id. Insert and update are one statement, so a concurrent writer of
// the same key makes this a last-write-wins update rather than a conflict.
func (s *Syncer) upsertRepository(ctx context.Context, q database.Querier, ownerID string, repo model.Repository) (model.Repository, error) {
	saved, err := q.UpsertRepository(ctx, database.CreateRepositoryParams{
		OwnerID:        ownerID,
		GithubRepoID:   repo.GithubRepoID,
		Owner:          repo.Owner,
		Name:           repo.Name,
		FullName:       repo.FullName,
		Description:    repo.Description,
		URL:            repo.URL,
		HTMLURL:        repo.HTMLURL,
		Language:       repo.Language,
		Languages:      repo.Languages,
		StarsCount:     repo.StarsCount,
		ForksCount:     repo.ForksCount,
		Private:        repo.Private,
		CommitCount:    repo.CommitCount,
		LastActivityAt: repo.LastActivityAt,
		Now:            s.now().UTC(),
	})
	if err != nil {
		return model.Repository{}, err
	}

	s.logger.Debug("Upserted repository", "user_id", ownerID, "github_repo_id", repo.GithubRepoID, "id", saved.ID)
	return saved, nil
}
