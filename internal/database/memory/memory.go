// internal/database/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github-sync-service/internal/database"
	"github-sync-service/internal/model"
)

type activityKey struct {
	ownerID string
	date    time.Time
}

// Store is an in-memory database.Store for local runs and tests.
// Values are copied in and out so callers never share state with the store.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	repos    map[database.RepositoryKey]*model.Repository
	statuses map[string]*model.SyncStatus
	activity map[activityKey]*model.CommitActivity

	// txMu serializes ExecTx so a transaction behaves as if every row it
	// touches were locked.
	txMu sync.Mutex
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		repos:    make(map[database.RepositoryKey]*model.Repository),
		statuses: make(map[string]*model.SyncStatus),
		activity: make(map[activityKey]*model.CommitActivity),
	}
}

var _ database.Store = (*Store)(nil)

func (s *Store) ExecTx(ctx context.Context, fn func(database.Querier) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s)
}

// Repository operations

func (s *Store) GetRepositoryByOwnerAndGithubID(ctx context.Context, arg database.RepositoryKey) (model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.repos[arg]
	if !ok {
		return model.Repository{}, database.ErrNotFound
	}
	return copyRepository(r), nil
}

func (s *Store) LockRepositoryByOwnerAndGithubID(ctx context.Context, arg database.RepositoryKey) (model.Repository, error) {
	return s.GetRepositoryByOwnerAndGithubID(ctx, arg)
}

func (s *Store) ListRepositoriesByOwner(ctx context.Context, ownerID string) ([]model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	repos := []model.Repository{}
	for key, r := range s.repos {
		if key.OwnerID == ownerID {
			repos = append(repos, copyRepository(r))
		}
	}
	sort.Slice(repos, func(i, j int) bool {
		if !repos[i].UpdatedAt.Equal(repos[j].UpdatedAt) {
			return repos[i].UpdatedAt.After(repos[j].UpdatedAt)
		}
		return repos[i].ID < repos[j].ID
	})
	return repos, nil
}

func (s *Store) CreateRepository(ctx context.Context, arg database.CreateRepositoryParams) (model.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := database.RepositoryKey{OwnerID: arg.OwnerID, GithubRepoID: arg.GithubRepoID}
	if _, exists := s.repos[key]; exists {
		return model.Repository{}, database.ErrAlreadyExists
	}
	return copyRepository(s.insertLocked(key, arg)), nil
}

func (s *Store) UpsertRepository(ctx context.Context, arg database.CreateRepositoryParams) (model.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := database.RepositoryKey{OwnerID: arg.OwnerID, GithubRepoID: arg.GithubRepoID}
	r, exists := s.repos[key]
	if !exists {
		return copyRepository(s.insertLocked(key, arg)), nil
	}

	r.Name = arg.Name
	r.FullName = arg.FullName
	r.Description = arg.Description
	r.URL = arg.URL
	r.HTMLURL = arg.HTMLURL
	r.Language = arg.Language
	r.Languages = cloneLanguages(arg.Languages)
	r.StarsCount = arg.StarsCount
	r.ForksCount = arg.ForksCount
	r.Private = arg.Private
	r.CommitCount = arg.CommitCount
	if arg.LastActivityAt != nil {
		r.LastActivityAt = cloneTime(arg.LastActivityAt)
	}
	r.SyncedAt = arg.Now
	r.UpdatedAt = arg.Now
	return copyRepository(r), nil
}

func (s *Store) insertLocked(key database.RepositoryKey, arg database.CreateRepositoryParams) *model.Repository {
	s.nextID++
	r := &model.Repository{
		ID:             s.nextID,
		OwnerID:        arg.OwnerID,
		GithubRepoID:   arg.GithubRepoID,
		Owner:          arg.Owner,
		Name:           arg.Name,
		FullName:       arg.FullName,
		Description:    arg.Description,
		URL:            arg.URL,
		HTMLURL:        arg.HTMLURL,
		Language:       arg.Language,
		Languages:      cloneLanguages(arg.Languages),
		StarsCount:     arg.StarsCount,
		ForksCount:     arg.ForksCount,
		Private:        arg.Private,
		CommitCount:    arg.CommitCount,
		LastActivityAt: cloneTime(arg.LastActivityAt),
		SyncedAt:       arg.Now,
		CreatedAt:      arg.Now,
		UpdatedAt:      arg.Now,
	}
	s.repos[key] = r
	return r
}

func (s *Store) UpdateRepositoryMetadata(ctx context.Context, arg database.UpdateRepositoryMetadataParams) (model.Repository, error) {
	return s.updateByID(arg.ID, func(r *model.Repository) {
		r.Name = arg.Name
		r.FullName = arg.FullName
		r.Description = arg.Description
		r.StarsCount = arg.StarsCount
		r.ForksCount = arg.ForksCount
		r.Private = arg.Private
		r.UpdatedAt = arg.Now
	})
}

func (s *Store) TouchRepositoryActivity(ctx context.Context, arg database.TouchRepositoryActivityParams) (model.Repository, error) {
	return s.updateByID(arg.ID, func(r *model.Repository) {
		now := arg.Now
		r.LastActivityAt = &now
		r.UpdatedAt = arg.Now
	})
}

func (s *Store) updateByID(id int64, apply func(r *model.Repository)) (model.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.repos {
		if r.ID == id {
			apply(r)
			return copyRepository(r), nil
		}
	}
	return model.Repository{}, database.ErrNotFound
}

func (s *Store) DeleteRepository(ctx context.Context, arg database.RepositoryKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.repos[arg]; !ok {
		return 0, nil
	}
	delete(s.repos, arg)
	return 1, nil
}

func (s *Store) DeleteRepositoriesByOwner(ctx context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key := range s.repos {
		if key.OwnerID == ownerID {
			delete(s.repos, key)
			n++
		}
	}
	return n, nil
}

// Sync status operations

func (s *Store) StartSyncStatus(ctx context.Context, arg database.StartSyncStatusParams) (model.SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &model.SyncStatus{
		OwnerID:    arg.OwnerID,
		RunID:      arg.RunID,
		Status:     model.SyncStateInProgress,
		LastSyncAt: arg.Now,
		UpdatedAt:  arg.Now,
	}
	s.statuses[arg.OwnerID] = st
	return copySyncStatus(st), nil
}

func (s *Store) FinishSyncStatus(ctx context.Context, arg database.FinishSyncStatusParams) (bool, error) {
	if !arg.Status.IsTerminal() {
		return false, fmt.Errorf("sync status %q is not terminal", arg.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[arg.OwnerID]
	if !ok || st.RunID != arg.RunID {
		return false, nil
	}

	count := arg.RepositoriesSynced
	st.Status = arg.Status
	st.ErrorMessage = cloneString(arg.ErrorMessage)
	st.RepositoriesSynced = &count
	st.LastSyncAt = arg.Now
	st.UpdatedAt = arg.Now
	return true, nil
}

func (s *Store) GetSyncStatus(ctx context.Context, ownerID string) (model.SyncStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.statuses[ownerID]
	if !ok {
		return model.SyncStatus{}, database.ErrNotFound
	}
	return copySyncStatus(st), nil
}

func (s *Store) DeleteSyncStatus(ctx context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.statuses[ownerID]; !ok {
		return 0, nil
	}
	delete(s.statuses, ownerID)
	return 1, nil
}

// Commit activity operations

func (s *Store) SetCommitActivity(ctx context.Context, arg database.CommitActivityParams) error {
	s.upsertActivity(arg, func(current int) int { return arg.CommitCount })
	return nil
}

func (s *Store) AddCommitActivity(ctx context.Context, arg database.CommitActivityParams) error {
	s.upsertActivity(arg, func(current int) int { return current + arg.CommitCount })
	return nil
}

func (s *Store) upsertActivity(arg database.CommitActivityParams, next func(current int) int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := activityKey{ownerID: arg.OwnerID, date: model.Day(arg.Date)}
	a, ok := s.activity[key]
	if !ok {
		a = &model.CommitActivity{
			OwnerID:   arg.OwnerID,
			Date:      key.date,
			CreatedAt: arg.Now,
		}
		s.activity[key] = a
	}
	a.CommitCount = next(a.CommitCount)
	a.UpdatedAt = arg.Now
}

func (s *Store) ListCommitActivitySince(ctx context.Context, arg database.ListCommitActivitySinceParams) ([]model.CommitActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := model.Day(arg.Since)
	items := []model.CommitActivity{}
	for key, a := range s.activity {
		if key.ownerID == arg.OwnerID && !key.date.Before(since) {
			items = append(items, *a)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Date.Before(items[j].Date) })
	return items, nil
}

func (s *Store) DeleteCommitActivityByOwner(ctx context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key := range s.activity {
		if key.ownerID == ownerID {
			delete(s.activity, key)
			n++
		}
	}
	return n, nil
}

// Helper functions for deep copying

func copyRepository(r *model.Repository) model.Repository {
	c := *r
	c.Languages = cloneLanguages(r.Languages)
	c.LastActivityAt = cloneTime(r.LastActivityAt)
	return c
}

func copySyncStatus(st *model.SyncStatus) model.SyncStatus {
	c := *st
	c.ErrorMessage = cloneString(st.ErrorMessage)
	if st.RepositoriesSynced != nil {
		n := *st.RepositoriesSynced
		c.RepositoriesSynced = &n
	}
	return c
}

func cloneLanguages(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return maps.Clone(m)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
