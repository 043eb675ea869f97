package activity

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github-sync-service/internal/database"
	"github-sync-service/internal/database/memory"
	"github-sync-service/internal/model"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) UserLogin(ctx context.Context, token model.AccessToken) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) RecentEvents(ctx context.Context, login string, token model.AccessToken) ([]model.ProviderEvent, error) {
	args := m.Called(ctx, login, token)
	return args.Get(0).([]model.ProviderEvent), args.Error(1)
}

const (
	testOwner = "user-1"
	testToken = model.AccessToken("token")
)

var (
	testNow    = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	testLogger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
)

func ptr[T any](v T) *T { return &v }

func seedRepos(t *testing.T, store *memory.Store, repos ...database.CreateRepositoryParams) {
	t.Helper()
	for _, r := range repos {
		r.OwnerID = testOwner
		r.Now = testNow
		_, err := store.CreateRepository(context.Background(), r)
		require.NoError(t, err)
	}
}

func newAggregator(store *memory.Store, provider ProviderClient) *Aggregator {
	return NewAggregator(store, provider, testLogger, WithClock(func() time.Time { return testNow }))
}

func TestAggregator_ContributionCalendar(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	day := time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC)

	// Seeds clamp to 5 and floor at 1; repositories without activity add nothing.
	seedRepos(t, store,
		database.CreateRepositoryParams{GithubRepoID: 1, CommitCount: 120, LastActivityAt: ptr(day)},
		database.CreateRepositoryParams{GithubRepoID: 2, CommitCount: 3, LastActivityAt: ptr(day.Add(-48 * time.Hour))},
		database.CreateRepositoryParams{GithubRepoID: 3, CommitCount: 30},
	)
	require.NoError(t, store.AddCommitActivity(ctx, database.CommitActivityParams{OwnerID: testOwner, Date: day, CommitCount: 4, Now: testNow}))
	require.NoError(t, store.AddCommitActivity(ctx, database.CommitActivityParams{OwnerID: testOwner, Date: testNow.AddDate(-2, 0, 0), CommitCount: 9, Now: testNow}))

	calendar, err := newAggregator(store, new(MockProvider)).ContributionCalendar(ctx, testOwner)

	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"2024-06-01": 9,
		"2024-05-30": 1,
	}, calendar)
}

func TestAggregator_RefreshFromEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("overwrites each day with push totals", func(t *testing.T) {
		store := memory.New()
		require.NoError(t, store.AddCommitActivity(ctx, database.CommitActivityParams{OwnerID: testOwner, Date: testNow, CommitCount: 50, Now: testNow}))

		provider := new(MockProvider)
		provider.On("UserLogin", ctx, testToken).Return("octocat", nil).Once()
		provider.On("RecentEvents", ctx, "octocat", testToken).Return([]model.ProviderEvent{
			{Type: "PushEvent", CreatedAt: testNow, PushCommits: 3},
			{Type: "PushEvent", CreatedAt: testNow.Add(-time.Hour), PushCommits: 2},
			{Type: "PushEvent", CreatedAt: testNow.AddDate(0, 0, -1), PushCommits: 1},
			{Type: "WatchEvent", CreatedAt: testNow},
		}, nil).Once()

		err := newAggregator(store, provider).RefreshFromEvents(ctx, testOwner, testToken)
		require.NoError(t, err)
		provider.AssertExpectations(t)

		items, err := store.ListCommitActivitySince(ctx, database.ListCommitActivitySinceParams{OwnerID: testOwner, Since: testNow.AddDate(0, 0, -7)})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, model.Day(testNow.AddDate(0, 0, -1)), items[0].Date)
		assert.Equal(t, 1, items[0].CommitCount)
		assert.Equal(t, model.Day(testNow), items[1].Date)
		assert.Equal(t, 5, items[1].CommitCount)
	})

	t.Run("skips an empty login", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("UserLogin", ctx, testToken).Return("", nil).Once()

		err := newAggregator(memory.New(), provider).RefreshFromEvents(ctx, testOwner, testToken)

		require.NoError(t, err)
		provider.AssertNotCalled(t, "RecentEvents", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("skips when the login lookup fails", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("UserLogin", ctx, testToken).Return("", errors.New("503 service unavailable")).Once()

		err := newAggregator(memory.New(), provider).RefreshFromEvents(ctx, testOwner, testToken)

		require.NoError(t, err)
		provider.AssertNotCalled(t, "RecentEvents", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("returns provider errors", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("UserLogin", ctx, testToken).Return("octocat", nil).Once()
		provider.On("RecentEvents", ctx, "octocat", testToken).Return([]model.ProviderEvent(nil), errors.New("502")).Once()

		err := newAggregator(memory.New(), provider).RefreshFromEvents(ctx, testOwner, testToken)

		assert.ErrorContains(t, err, "502")
	})
}

func TestAggregator_Summary(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		summary, err := newAggregator(memory.New(), new(MockProvider)).Summary(ctx, testOwner)
		require.NoError(t, err)
		assert.Equal(t, model.ActivitySummary{}, summary)
	})

	t.Run("totals, rounded average and most active", func(t *testing.T) {
		store := memory.New()
		seedRepos(t, store,
			database.CreateRepositoryParams{GithubRepoID: 1, Name: "a", CommitCount: 10, HTMLURL: "https://github.com/o/a"},
			database.CreateRepositoryParams{GithubRepoID: 2, Name: "b", CommitCount: 25, HTMLURL: "https://github.com/o/b"},
		)

		summary, err := newAggregator(store, new(MockProvider)).Summary(ctx, testOwner)

		require.NoError(t, err)
		assert.Equal(t, 35, summary.TotalCommits)
		assert.Equal(t, 2, summary.TotalRepositories)
		assert.Equal(t, 18, summary.AverageCommitsPerRepo)
		require.NotNil(t, summary.MostActiveRepository)
		assert.Equal(t, model.MostActiveRepository{Name: "b", CommitCount: 25, URL: "https://github.com/o/b"}, *summary.MostActiveRepository)
	})
}

func TestAggregator_LanguageStatistics(t *testing.T) {
	store := memory.New()
	seedRepos(t, store,
		database.CreateRepositoryParams{GithubRepoID: 1, Languages: map[string]int{"Go": 100, "Shell": 5}},
		database.CreateRepositoryParams{GithubRepoID: 2, Languages: map[string]int{"Go": 50}},
	)

	stats, err := newAggregator(store, new(MockProvider)).LanguageStatistics(context.Background(), testOwner)

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Go": 150, "Shell": 5}, stats)
}
