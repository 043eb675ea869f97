// internal/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github-sync-service/internal/model"
)

// DefaultChannel is where repository synced events go unless configured otherwise.
const DefaultChannel = "github.repo.synced"

// Publisher delivers outbound repository synced events.
type Publisher interface {
	Publish(ctx context.Context, event model.RepoSyncedEvent) error
}

// LogPublisher writes each event as a structured log line.
type LogPublisher struct {
	channel string
	logger  *slog.Logger
}

func NewLogPublisher(channel string, logger *slog.Logger) *LogPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &LogPublisher{channel: channel, logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event model.RepoSyncedEvent) error {
	p.logger.InfoContext(ctx, "Repository synced event",
		"channel", p.channel,
		"event_id", event.EventID,
		"github_repo_id", event.GithubRepoID,
		"user_id", event.OwnerID,
		"occurred_at", event.OccurredAt,
	)
	return nil
}

// Notifier sends a payload on a named channel, e.g. Postgres NOTIFY.
type Notifier interface {
	Notify(ctx context.Context, channel, payload string) error
}

// PostgresPublisher sends events as JSON through pg_notify so any session
// that LISTENs on the channel receives them.
type PostgresPublisher struct {
	channel  string
	notifier Notifier
}

func NewPostgresPublisher(channel string, notifier Notifier) *PostgresPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &PostgresPublisher{channel: channel, notifier: notifier}
}

func (p *PostgresPublisher) Publish(ctx context.Context, event model.RepoSyncedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.EventID, err)
	}
	if err := p.notifier.Notify(ctx, p.channel, string(payload)); err != nil {
		return fmt.Errorf("failed to publish event %s on %s: %w", event.EventID, p.channel, err)
	}
	return nil
}
