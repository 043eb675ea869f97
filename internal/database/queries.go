// internal/database/queries.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github-sync-service/internal/model"
)

const repositoryColumns = `id, owner_id, github_repo_id, owner, name, full_name, description, url, html_url,
	language, languages, stars_count, forks_count, private, commit_count, last_activity_at,
	synced_at, created_at, updated_at`

func scanRepository(row pgx.Row) (model.Repository, error) {
	var r model.Repository
	err := row.Scan(
		&r.ID,
		&r.OwnerID,
		&r.GithubRepoID,
		&r.Owner,
		&r.Name,
		&r.FullName,
		&r.Description,
		&r.URL,
		&r.HTMLURL,
		&r.Language,
		&r.Languages,
		&r.StarsCount,
		&r.ForksCount,
		&r.Private,
		&r.CommitCount,
		&r.LastActivityAt,
		&r.SyncedAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if r.Languages == nil {
		r.Languages = map[string]int{}
	}
	return r, notFound(err)
}

const getRepositoryByOwnerAndGithubID = `SELECT ` + repositoryColumns + `
FROM repositories
WHERE owner_id = $1 AND github_repo_id = $2`

func (q *Queries) GetRepositoryByOwnerAndGithubID(ctx context.Context, arg RepositoryKey) (model.Repository, error) {
	row := q.db.QueryRow(ctx, getRepositoryByOwnerAndGithubID, arg.OwnerID, arg.GithubRepoID)
	return scanRepository(row)
}

const lockRepositoryByOwnerAndGithubID = getRepositoryByOwnerAndGithubID + `
FOR UPDATE`

func (q *Queries) LockRepositoryByOwnerAndGithubID(ctx context.Context, arg RepositoryKey) (model.Repository, error) {
	row := q.db.QueryRow(ctx, lockRepositoryByOwnerAndGithubID, arg.OwnerID, arg.GithubRepoID)
	return scanRepository(row)
}

const listRepositoriesByOwner = `SELECT ` + repositoryColumns + `
FROM repositories
WHERE owner_id = $1
ORDER BY updated_at DESC, id`

func (q *Queries) ListRepositoriesByOwner(ctx context.Context, ownerID string) ([]model.Repository, error) {
	rows, err := q.db.Query(ctx, listRepositoriesByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.Repository{}
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const insertRepositoryColumns = `INSERT INTO repositories (
	owner_id, github_repo_id, owner, name, full_name, description, url, html_url,
	language, languages, stars_count, forks_count, private, commit_count, last_activity_at,
	synced_at, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16, $16
)`

const createRepository = insertRepositoryColumns + `
ON CONFLICT (owner_id, github_repo_id) DO NOTHING
RETURNING ` + repositoryColumns

// CreateRepository inserts a repository unless the owner already stores it,
// in which case ErrAlreadyExists is returned and the stored row is untouched.
func (q *Queries) CreateRepository(ctx context.Context, arg CreateRepositoryParams) (model.Repository, error) {
	r, err := scanRepository(q.db.QueryRow(ctx, createRepository, repositoryArgs(arg)...))
	if errors.Is(err, ErrNotFound) {
		return model.Repository{}, ErrAlreadyExists
	}
	return r, err
}

const upsertRepository = insertRepositoryColumns + `
ON CONFLICT (owner_id, github_repo_id) DO UPDATE
SET name = EXCLUDED.name,
	full_name = EXCLUDED.full_name,
	description = EXCLUDED.description,
	url = EXCLUDED.url,
	html_url = EXCLUDED.html_url,
	language = EXCLUDED.language,
	languages = EXCLUDED.languages,
	stars_count = EXCLUDED.stars_count,
	forks_count = EXCLUDED.forks_count,
	private = EXCLUDED.private,
	commit_count = EXCLUDED.commit_count,
	last_activity_at = COALESCE(EXCLUDED.last_activity_at, repositories.last_activity_at),
	synced_at = EXCLUDED.synced_at,
	updated_at = EXCLUDED.updated_at
RETURNING ` + repositoryColumns

func (q *Queries) UpsertRepository(ctx context.Context, arg CreateRepositoryParams) (model.Repository, error) {
	return scanRepository(q.db.QueryRow(ctx, upsertRepository, repositoryArgs(arg)...))
}

func repositoryArgs(arg CreateRepositoryParams) []any {
	return []any{
		arg.OwnerID,
		arg.GithubRepoID,
		arg.Owner,
		arg.Name,
		arg.FullName,
		arg.Description,
		arg.URL,
		arg.HTMLURL,
		arg.Language,
		languagesOrEmpty(arg.Languages),
		arg.StarsCount,
		arg.ForksCount,
		arg.Private,
		arg.CommitCount,
		arg.LastActivityAt,
		arg.Now,
	}
}

const updateRepositoryMetadata = `UPDATE repositories
SET name = $2,
	full_name = $3,
	description = $4,
	stars_count = $5,
	forks_count = $6,
	private = $7,
	updated_at = $8
WHERE id = $1
RETURNING ` + repositoryColumns

func (q *Queries) UpdateRepositoryMetadata(ctx context.Context, arg UpdateRepositoryMetadataParams) (model.Repository, error) {
	row := q.db.QueryRow(ctx, updateRepositoryMetadata,
		arg.ID,
		arg.Name,
		arg.FullName,
		arg.Description,
		arg.StarsCount,
		arg.ForksCount,
		arg.Private,
		arg.Now,
	)
	return scanRepository(row)
}

const touchRepositoryActivity = `UPDATE repositories
SET last_activity_at = $2,
	updated_at = $2
WHERE id = $1
RETURNING ` + repositoryColumns

func (q *Queries) TouchRepositoryActivity(ctx context.Context, arg TouchRepositoryActivityParams) (model.Repository, error) {
	row := q.db.QueryRow(ctx, touchRepositoryActivity, arg.ID, arg.Now)
	return scanRepository(row)
}

const deleteRepository = `DELETE FROM repositories
WHERE owner_id = $1 AND github_repo_id = $2`

func (q *Queries) DeleteRepository(ctx context.Context, arg RepositoryKey) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteRepository, arg.OwnerID, arg.GithubRepoID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteRepositoriesByOwner = `DELETE FROM repositories WHERE owner_id = $1`

func (q *Queries) DeleteRepositoriesByOwner(ctx context.Context, ownerID string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteRepositoriesByOwner, ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const syncStatusColumns = `owner_id, run_id, status, error_message, repositories_synced, last_sync_at, updated_at`

func scanSyncStatus(row pgx.Row) (model.SyncStatus, error) {
	var (
		s      model.SyncStatus
		status string
	)
	err := row.Scan(
		&s.OwnerID,
		&s.RunID,
		&status,
		&s.ErrorMessage,
		&s.RepositoriesSynced,
		&s.LastSyncAt,
		&s.UpdatedAt,
	)
	s.Status = model.SyncState(status)
	return s, notFound(err)
}

const startSyncStatus = `INSERT INTO sync_status (
	owner_id, run_id, status, error_message, repositories_synced, last_sync_at, updated_at
) VALUES (
	$1, $2, $3, NULL, NULL, $4, $4
)
ON CONFLICT (owner_id) DO UPDATE
SET run_id = EXCLUDED.run_id,
	status = EXCLUDED.status,
	error_message = NULL,
	repositories_synced = NULL,
	last_sync_at = EXCLUDED.last_sync_at,
	updated_at = EXCLUDED.updated_at
RETURNING ` + syncStatusColumns

func (q *Queries) StartSyncStatus(ctx context.Context, arg StartSyncStatusParams) (model.SyncStatus, error) {
	row := q.db.QueryRow(ctx, startSyncStatus, arg.OwnerID, arg.RunID, string(model.SyncStateInProgress), arg.Now)
	return scanSyncStatus(row)
}

const finishSyncStatus = `UPDATE sync_status
SET status = $3,
	error_message = $4,
	repositories_synced = $5,
	last_sync_at = $6,
	updated_at = $6
WHERE owner_id = $1 AND run_id = $2`

func (q *Queries) FinishSyncStatus(ctx context.Context, arg FinishSyncStatusParams) (bool, error) {
	if !arg.Status.IsTerminal() {
		return false, fmt.Errorf("sync status %q is not terminal", arg.Status)
	}
	tag, err := q.db.Exec(ctx, finishSyncStatus,
		arg.OwnerID,
		arg.RunID,
		string(arg.Status),
		arg.ErrorMessage,
		arg.RepositoriesSynced,
		arg.Now,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const getSyncStatus = `SELECT ` + syncStatusColumns + `
FROM sync_status
WHERE owner_id = $1`

func (q *Queries) GetSyncStatus(ctx context.Context, ownerID string) (model.SyncStatus, error) {
	return scanSyncStatus(q.db.QueryRow(ctx, getSyncStatus, ownerID))
}

const deleteSyncStatus = `DELETE FROM sync_status WHERE owner_id = $1`

func (q *Queries) DeleteSyncStatus(ctx context.Context, ownerID string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteSyncStatus, ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const setCommitActivity = `INSERT INTO commit_activity (owner_id, activity_date, commit_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (owner_id, activity_date) DO UPDATE
SET commit_count = EXCLUDED.commit_count,
	updated_at = EXCLUDED.updated_at`

func (q *Queries) SetCommitActivity(ctx context.Context, arg CommitActivityParams) error {
	_, err := q.db.Exec(ctx, setCommitActivity, arg.OwnerID, model.Day(arg.Date), arg.CommitCount, arg.Now)
	return err
}

const addCommitActivity = `INSERT INTO commit_activity (owner_id, activity_date, commit_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (owner_id, activity_date) DO UPDATE
SET commit_count = commit_activity.commit_count + EXCLUDED.commit_count,
	updated_at = EXCLUDED.updated_at`

func (q *Queries) AddCommitActivity(ctx context.Context, arg CommitActivityParams) error {
	_, err := q.db.Exec(ctx, addCommitActivity, arg.OwnerID, model.Day(arg.Date), arg.CommitCount, arg.Now)
	return err
}

const listCommitActivitySince = `SELECT owner_id, activity_date, commit_count, created_at, updated_at
FROM commit_activity
WHERE owner_id = $1 AND activity_date >= $2
ORDER BY activity_date`

func (q *Queries) ListCommitActivitySince(ctx context.Context, arg ListCommitActivitySinceParams) ([]model.CommitActivity, error) {
	rows, err := q.db.Query(ctx, listCommitActivitySince, arg.OwnerID, model.Day(arg.Since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.CommitActivity{}
	for rows.Next() {
		var a model.CommitActivity
		if err := rows.Scan(&a.OwnerID, &a.Date, &a.CommitCount, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const deleteCommitActivityByOwner = `DELETE FROM commit_activity WHERE owner_id = $1`

func (q *Queries) DeleteCommitActivityByOwner(ctx context.Context, ownerID string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteCommitActivityByOwner, ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func languagesOrEmpty(languages map[string]int) map[string]int {
	if languages == nil {
		return map[string]int{}
	}
	return languages
}
