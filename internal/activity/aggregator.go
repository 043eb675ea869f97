// internal/activity/aggregator.go
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github-sync-service/internal/database"
	"github-sync-service/internal/model"
)

const (
	calendarWindowDays = 365

	// Per-repository weight of a last-activity seed, before clamping.
	seedCommitsPerUnit = 10
	seedMax            = 5
)

// ProviderClient is the subset of the GitHub client the aggregator depends on.
type ProviderClient interface {
	UserLogin(ctx context.Context, token model.AccessToken) (string, error)
	RecentEvents(ctx context.Context, login string, token model.AccessToken) ([]model.ProviderEvent, error)
}

// Aggregator derives activity views from stored repositories and commit activity.
type Aggregator struct {
	store    database.Store
	provider ProviderClient
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

func NewAggregator(store database.Store, provider ProviderClient, logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:    store,
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ContributionCalendar maps YYYY-MM-DD (UTC) to a contribution count. Every
// repository with a last activity contributes a weight derived from its
// commit count on that day, and stored commit activity of the trailing year
// is added on top.
func (a *Aggregator) ContributionCalendar(ctx context.Context, ownerID string) (map[string]int, error) {
	repos, err := a.store.ListRepositoriesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	calendar := make(map[string]int)
	for _, r := range repos {
		if r.LastActivityAt == nil {
			continue
		}
		calendar[r.LastActivityAt.UTC().Format(model.DateLayout)] += seedWeight(r.CommitCount)
	}

	since := a.now().UTC().AddDate(0, 0, -calendarWindowDays)
	days, err := a.store.ListCommitActivitySince(ctx, database.ListCommitActivitySinceParams{
		OwnerID: ownerID,
		Since:   since,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list commit activity: %w", err)
	}
	for _, d := range days {
		calendar[d.Date.UTC().Format(model.DateLayout)] += d.CommitCount
	}

	return calendar, nil
}

func seedWeight(commitCount int) int {
	return max(min(commitCount/seedCommitsPerUnit, seedMax), 1)
}

// RefreshFromEvents recomputes commit activity from the user's recent push
// events. Each day present in the events is overwritten with its new total.
func (a *Aggregator) RefreshFromEvents(ctx context.Context, ownerID string, token model.AccessToken) error {
	logger := a.logger.With("user_id", ownerID)

	// A failed lookup degrades to an empty login.
	login, err := a.provider.UserLogin(ctx, token)
	if err != nil {
		logger.Warn("Failed to resolve user login", "error", err)
		login = ""
	}
	if login == "" {
		logger.Warn("No user login, skipping activity refresh")
		return nil
	}

	events, err := a.provider.RecentEvents(ctx, login, token)
	if err != nil {
		return fmt.Errorf("failed to fetch events for %s: %w", login, err)
	}

	perDay := pushCommitsPerDay(events)
	now := a.now().UTC()
	err = a.store.ExecTx(ctx, func(q database.Querier) error {
		for day, count := range perDay {
			if err := q.SetCommitActivity(ctx, database.CommitActivityParams{
				OwnerID:     ownerID,
				Date:        day,
				CommitCount: count,
				Now:         now,
			}); err != nil {
				return fmt.Errorf("failed to store activity for %s: %w", day.Format(model.DateLayout), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Refreshed commit activity", "login", login, "events", len(events), "days", len(perDay))
	return nil
}

// pushCommitsPerDay sums the commits of every PushEvent by UTC day.
func pushCommitsPerDay(events []model.ProviderEvent) map[time.Time]int {
	perDay := make(map[time.Time]int)
	for _, e := range events {
		if e.Type != "PushEvent" {
			continue
		}
		perDay[model.Day(e.CreatedAt)] += max(e.PushCommits, 1)
	}
	return perDay
}

// Summary aggregates commit counts over the owner's repositories.
func (a *Aggregator) Summary(ctx context.Context, ownerID string) (model.ActivitySummary, error) {
	repos, err := a.store.ListRepositoriesByOwner(ctx, ownerID)
	if err != nil {
		return model.ActivitySummary{}, fmt.Errorf("failed to list repositories: %w", err)
	}

	summary := model.ActivitySummary{TotalRepositories: len(repos)}
	var mostActive *model.Repository
	for i := range repos {
		summary.TotalCommits += repos[i].CommitCount
		if mostActive == nil || repos[i].CommitCount > mostActive.CommitCount {
			mostActive = &repos[i]
		}
	}
	if len(repos) > 0 {
		summary.AverageCommitsPerRepo = int(math.Round(float64(summary.TotalCommits) / float64(len(repos))))
	}
	if mostActive != nil {
		summary.MostActiveRepository = &model.MostActiveRepository{
			Name:        mostActive.Name,
			CommitCount: mostActive.CommitCount,
			URL:         mostActive.HTMLURL,
		}
	}
	return summary, nil
}

// LanguageStatistics sums language bytes over the owner's repositories.
func (a *Aggregator) LanguageStatistics(ctx context.Context, ownerID string) (map[string]int, error) {
	repos, err := a.store.ListRepositoriesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	stats := make(map[string]int)
	for _, r := range repos {
		for lang, bytes := range r.Languages {
			stats[lang] += bytes
		}
	}
	return stats, nil
}
