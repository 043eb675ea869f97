// internal/database/querier.go
package database

import (
	"context"
	"time"

	"github-sync-service/internal/model"
)

type Querier interface {
	GetRepositoryByOwnerAndGithubID(ctx context.Context, arg RepositoryKey) (model.Repository, error)
	// LockRepositoryByOwnerAndGithubID is GetRepositoryByOwnerAndGithubID
	// with a row lock held until the surrounding transaction ends.
	LockRepositoryByOwnerAndGithubID(ctx context.Context, arg RepositoryKey) (model.Repository, error)
	ListRepositoriesByOwner(ctx context.Context, ownerID string) ([]model.Repository, error)
	// CreateRepository returns ErrAlreadyExists when the key is taken.
	CreateRepository(ctx context.Context, arg CreateRepositoryParams) (model.Repository, error)
	// UpsertRepository inserts the repository or overwrites the stored one
	// in a single statement. A nil LastActivityAt keeps the stored value.
	UpsertRepository(ctx context.Context, arg CreateRepositoryParams) (model.Repository, error)
	UpdateRepositoryMetadata(ctx context.Context, arg UpdateRepositoryMetadataParams) (model.Repository, error)
	TouchRepositoryActivity(ctx context.Context, arg TouchRepositoryActivityParams) (model.Repository, error)
	DeleteRepository(ctx context.Context, arg RepositoryKey) (int64, error)
	DeleteRepositoriesByOwner(ctx context.Context, ownerID string) (int64, error)

	StartSyncStatus(ctx context.Context, arg StartSyncStatusParams) (model.SyncStatus, error)
	// FinishSyncStatus reports whether the row still belonged to arg.RunID
	// and was therefore updated.
	FinishSyncStatus(ctx context.Context, arg FinishSyncStatusParams) (bool, error)
	GetSyncStatus(ctx context.Context, ownerID string) (model.SyncStatus, error)
	DeleteSyncStatus(ctx context.Context, ownerID string) (int64, error)

	// SetCommitActivity replaces the count stored for a day.
	SetCommitActivity(ctx context.Context, arg CommitActivityParams) error
	// AddCommitActivity adds to the count stored for a day.
	AddCommitActivity(ctx context.Context, arg CommitActivityParams) error
	ListCommitActivitySince(ctx context.Context, arg ListCommitActivitySinceParams) ([]model.CommitActivity, error)
	DeleteCommitActivityByOwner(ctx context.Context, ownerID string) (int64, error)
}

var _ Querier = (*Queries)(nil)

type RepositoryKey struct {
	OwnerID      string
	GithubRepoID int64
}

type CreateRepositoryParams struct {
	OwnerID        string
	GithubRepoID   int64
	Owner          string
	Name           string
	FullName       string
	Description    string
	URL            string
	HTMLURL        string
	Language       string
	Languages      map[string]int
	StarsCount     int
	ForksCount     int
	Private        bool
	CommitCount    int
	LastActivityAt *time.Time
	Now            time.Time
}

type UpdateRepositoryMetadataParams struct {
	ID          int64
	Name        string
	FullName    string
	Description string
	StarsCount  int
	ForksCount  int
	Private     bool
	Now         time.Time
}

type TouchRepositoryActivityParams struct {
	ID  int64
	Now time.Time
}

type StartSyncStatusParams struct {
	OwnerID string
	RunID   string
	Now     time.Time
}

type FinishSyncStatusParams struct {
	OwnerID            string
	RunID              string
	Status             model.SyncState
	ErrorMessage       *string
	RepositoriesSynced int
	Now                time.Time
}

type CommitActivityParams struct {
	OwnerID     string
	Date        time.Time
	CommitCount int
	Now         time.Time
}

type ListCommitActivitySinceParams struct {
	OwnerID string
	Since   time.Time
}
