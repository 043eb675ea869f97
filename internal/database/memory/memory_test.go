package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-sync-service/internal/database"
	"github-sync-service/internal/database/memory"
	"github-sync-service/internal/model"
)

func TestStore_Repositories(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	created, err := store.CreateRepository(ctx, database.CreateRepositoryParams{
		OwnerID:      "user-1",
		GithubRepoID: 42,
		Name:         "repo",
		FullName:     "octo/repo",
		Languages:    map[string]int{"Go": 10},
		Now:          now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, now, created.SyncedAt)

	t.Run("rejects a duplicate owner and external id", func(t *testing.T) {
		_, err := store.CreateRepository(ctx, database.CreateRepositoryParams{OwnerID: "user-1", GithubRepoID: 42, Now: now})
		assert.ErrorIs(t, err, database.ErrAlreadyExists)
	})

	t.Run("returns copies", func(t *testing.T) {
		got, err := store.GetRepositoryByOwnerAndGithubID(ctx, database.RepositoryKey{OwnerID: "user-1", GithubRepoID: 42})
		require.NoError(t, err)
		got.Languages["Rust"] = 1

		again, err := store.GetRepositoryByOwnerAndGithubID(ctx, database.RepositoryKey{OwnerID: "user-1", GithubRepoID: 42})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"Go": 10}, again.Languages)
	})

	t.Run("isolates owners", func(t *testing.T) {
		_, err := store.GetRepositoryByOwnerAndGithubID(ctx, database.RepositoryKey{OwnerID: "user-2", GithubRepoID: 42})
		assert.ErrorIs(t, err, database.ErrNotFound)

		repos, err := store.ListRepositoriesByOwner(ctx, "user-2")
		require.NoError(t, err)
		assert.Empty(t, repos)
	})

	t.Run("metadata update leaves sync time alone", func(t *testing.T) {
		later := now.Add(time.Hour)
		updated, err := store.UpdateRepositoryMetadata(ctx, database.UpdateRepositoryMetadataParams{
			ID:         created.ID,
			Name:       "repo",
			FullName:   "octo/repo",
			StarsCount: 9,
			Now:        later,
		})
		require.NoError(t, err)
		assert.Equal(t, 9, updated.StarsCount)
		assert.Equal(t, later, updated.UpdatedAt)
		assert.Equal(t, now, updated.SyncedAt)
		assert.Equal(t, map[string]int{"Go": 10}, updated.Languages)
	})

	t.Run("upsert overwrites in place and keeps last activity", func(t *testing.T) {
		pushed := now.Add(-24 * time.Hour)
		_, err := store.TouchRepositoryActivity(ctx, database.TouchRepositoryActivityParams{ID: created.ID, Now: pushed})
		require.NoError(t, err)

		later := now.Add(2 * time.Hour)
		upserted, err := store.UpsertRepository(ctx, database.CreateRepositoryParams{
			OwnerID:      "user-1",
			GithubRepoID: 42,
			Name:         "renamed",
			FullName:     "octo/renamed",
			CommitCount:  12,
			Now:          later,
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, upserted.ID)
		assert.Equal(t, "octo/renamed", upserted.FullName)
		assert.Equal(t, 12, upserted.CommitCount)
		assert.Equal(t, map[string]int{}, upserted.Languages)
		assert.Equal(t, later, upserted.SyncedAt)
		assert.Equal(t, now, upserted.CreatedAt)
		require.NotNil(t, upserted.LastActivityAt)
		assert.Equal(t, pushed, *upserted.LastActivityAt)

		inserted, err := store.UpsertRepository(ctx, database.CreateRepositoryParams{OwnerID: "user-3", GithubRepoID: 42, Now: later})
		require.NoError(t, err)
		assert.NotEqual(t, created.ID, inserted.ID)
		_, err = store.DeleteRepositoriesByOwner(ctx, "user-3")
		require.NoError(t, err)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := store.TouchRepositoryActivity(ctx, database.TouchRepositoryActivityParams{ID: 999, Now: now})
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("deletes by owner", func(t *testing.T) {
		n, err := store.DeleteRepositoriesByOwner(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = store.DeleteRepository(ctx, database.RepositoryKey{OwnerID: "user-1", GithubRepoID: 42})
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestStore_SyncStatus(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.GetSyncStatus(ctx, "user-1")
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = store.StartSyncStatus(ctx, database.StartSyncStatusParams{OwnerID: "user-1", RunID: "run-1", Now: now})
	require.NoError(t, err)
	_, err = store.StartSyncStatus(ctx, database.StartSyncStatusParams{OwnerID: "user-1", RunID: "run-2", Now: now})
	require.NoError(t, err)

	applied, err := store.FinishSyncStatus(ctx, database.FinishSyncStatusParams{
		OwnerID: "user-1", RunID: "run-1", Status: model.SyncStateSuccess, RepositoriesSynced: 3, Now: now,
	})
	require.NoError(t, err)
	assert.False(t, applied, "a superseded run must not finish the status")

	applied, err = store.FinishSyncStatus(ctx, database.FinishSyncStatusParams{
		OwnerID: "user-1", RunID: "run-2", Status: model.SyncStateSuccess, RepositoriesSynced: 5, Now: now,
	})
	require.NoError(t, err)
	assert.True(t, applied)

	st, err := store.GetSyncStatus(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.SyncStateSuccess, st.Status)
	assert.Equal(t, "run-2", st.RunID)
	require.NotNil(t, st.RepositoriesSynced)
	assert.Equal(t, 5, *st.RepositoriesSynced)

	_, err = store.FinishSyncStatus(ctx, database.FinishSyncStatusParams{OwnerID: "user-1", RunID: "run-2", Status: model.SyncStateInProgress})
	assert.Error(t, err)

	t.Run("a new run clears the previous failure", func(t *testing.T) {
		msg := "github API returned HTTP 502"
		applied, err := store.FinishSyncStatus(ctx, database.FinishSyncStatusParams{
			OwnerID: "user-1", RunID: "run-2", Status: model.SyncStateFailed, ErrorMessage: &msg, RepositoriesSynced: 2, Now: now,
		})
		require.NoError(t, err)
		require.True(t, applied)

		later := now.Add(time.Minute)
		_, err = store.StartSyncStatus(ctx, database.StartSyncStatusParams{OwnerID: "user-1", RunID: "run-3", Now: later})
		require.NoError(t, err)

		st, err := store.GetSyncStatus(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, model.SyncStateInProgress, st.Status)
		assert.Equal(t, "run-3", st.RunID)
		assert.Nil(t, st.ErrorMessage)
		assert.Nil(t, st.RepositoriesSynced)
		assert.Equal(t, later, st.LastSyncAt)
	})
}

func TestStore_CommitActivity(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	day := time.Date(2024, 6, 1, 15, 30, 0, 0, time.UTC)

	require.NoError(t, store.AddCommitActivity(ctx, database.CommitActivityParams{OwnerID: "u", Date: day, CommitCount: 2, Now: day}))
	require.NoError(t, store.AddCommitActivity(ctx, database.CommitActivityParams{OwnerID: "u", Date: day.Add(time.Hour), CommitCount: 3, Now: day}))
	require.NoError(t, store.SetCommitActivity(ctx, database.CommitActivityParams{OwnerID: "u", Date: day.AddDate(0, 0, -400), CommitCount: 7, Now: day}))

	items, err := store.ListCommitActivitySince(ctx, database.ListCommitActivitySinceParams{OwnerID: "u", Since: day.AddDate(0, 0, -365)})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].CommitCount)
	assert.Equal(t, model.Day(day), items[0].Date)

	require.NoError(t, store.SetCommitActivity(ctx, database.CommitActivityParams{OwnerID: "u", Date: day, CommitCount: 1, Now: day}))
	items, err = store.ListCommitActivitySince(ctx, database.ListCommitActivitySinceParams{OwnerID: "u", Since: day})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].CommitCount)

	n, err := store.DeleteCommitActivityByOwner(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
