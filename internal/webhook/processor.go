// internal/webhook/processor.go
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/go-github/v62/github"

	"github-sync-service/internal/database"
	ghclient "github-sync-service/internal/github"
)

// ErrInvalidSignature is returned by Verify when the payload signature does not match.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Processor applies GitHub webhook deliveries to stored repositories. It keeps
// no state between deliveries.
type Processor struct {
	store  database.Store
	secret []byte
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Processor)

// WithSecret enables X-Hub-Signature-256 verification.
func WithSecret(secret string) Option {
	return func(p *Processor) {
		p.secret = []byte(secret)
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

func NewProcessor(store database.Store, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Verify checks the delivery signature. It accepts everything when no secret is configured.
func (p *Processor) Verify(signature string, payload []byte) error {
	if len(p.secret) == 0 {
		return nil
	}
	if err := github.ValidateSignature(signature, payload, p.secret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// Process decodes one delivery and applies it for ownerID. Event types
// without a handler are ignored.
func (p *Processor) Process(ctx context.Context, ownerID, eventType string, payload []byte) error {
	logger := p.logger.With("user_id", ownerID, "event", eventType)

	switch eventType {
	case "push", "repository", "star", "fork":
	default:
		logger.Debug("Ignoring unsupported webhook event")
		return nil
	}

	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		return fmt.Errorf("failed to parse %s webhook: %w", eventType, err)
	}

	switch ev := event.(type) {
	case *github.PushEvent:
		if ev.GetRepo() == nil {
			logger.Warn("Ignoring webhook without repository")
			return nil
		}
		return p.handlePush(ctx, logger, ownerID, ev)
	case *github.RepositoryEvent:
		if ev.GetRepo() == nil {
			logger.Warn("Ignoring webhook without repository")
			return nil
		}
		return p.handleRepository(ctx, logger, ownerID, ev)
	case *github.StarEvent:
		if ev.GetRepo() == nil {
			logger.Warn("Ignoring webhook without repository")
			return nil
		}
		return p.refreshMetadata(ctx, logger, ownerID, ev.GetRepo())
	case *github.ForkEvent:
		if ev.GetRepo() == nil {
			logger.Warn("Ignoring webhook without repository")
			return nil
		}
		// Repo is the repository that was forked, whose fork count changed.
		return p.refreshMetadata(ctx, logger, ownerID, ev.GetRepo())
	default:
		logger.Debug("Ignoring unsupported webhook event", "type", fmt.Sprintf("%T", event))
		return nil
	}
}

// handlePush records activity on a known repository: last activity becomes
// now and the pushed commits are added to today's commit activity.
func (p *Processor) handlePush(ctx context.Context, logger *slog.Logger, ownerID string, ev *github.PushEvent) error {
	repoID := ev.GetRepo().GetID()
	commits := ghclient.PushCommitCount(ev)
	now := p.now().UTC()
	logger = logger.With("github_repo_id", repoID, "commits", commits)

	return p.store.ExecTx(ctx, func(q database.Querier) error {
		repo, err := q.LockRepositoryByOwnerAndGithubID(ctx, database.RepositoryKey{OwnerID: ownerID, GithubRepoID: repoID})
		if errors.Is(err, database.ErrNotFound) {
			logger.Info("Push for unknown repository, nothing to update")
			return nil
		} else if err != nil {
			return err
		}

		if _, err := q.TouchRepositoryActivity(ctx, database.TouchRepositoryActivityParams{ID: repo.ID, Now: now}); err != nil {
			return fmt.Errorf("failed to update last activity: %w", err)
		}
		if err := q.AddCommitActivity(ctx, database.CommitActivityParams{
			OwnerID:     ownerID,
			Date:        now,
			CommitCount: commits,
			Now:         now,
		}); err != nil {
			return fmt.Errorf("failed to record commit activity: %w", err)
		}

		logger.Info("Recorded push activity")
		return nil
	})
}

func (p *Processor) handleRepository(ctx context.Context, logger *slog.Logger, ownerID string, ev *github.RepositoryEvent) error {
	switch action := ev.GetAction(); action {
	case "created":
		return p.createRepository(ctx, logger, ownerID, ev.GetRepo())
	case "deleted":
		key := database.RepositoryKey{OwnerID: ownerID, GithubRepoID: ev.GetRepo().GetID()}
		n, err := p.store.DeleteRepository(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to delete repository %d: %w", key.GithubRepoID, err)
		}
		logger.Info("Deleted repository", "github_repo_id", key.GithubRepoID, "deleted", n)
		return nil
	case "edited", "publicized", "privatized":
		return p.refreshMetadata(ctx, logger, ownerID, ev.GetRepo())
	default:
		logger.Debug("Ignoring repository action", "action", action)
		return nil
	}
}

// createRepository stores a repository announced by a created event. A
// record that already exists, e.g. written by a concurrent sync, is kept.
func (p *Processor) createRepository(ctx context.Context, logger *slog.Logger, ownerID string, ghRepo *github.Repository) error {
	repo := ghclient.FromGitHubRepository(ghRepo)
	logger = logger.With("github_repo_id", repo.GithubRepoID)

	_, err := p.store.CreateRepository(ctx, database.CreateRepositoryParams{
		OwnerID:        ownerID,
		GithubRepoID:   repo.GithubRepoID,
		Owner:          repo.Owner,
		Name:           repo.Name,
		FullName:       repo.FullName,
		Description:    repo.Description,
		URL:            repo.URL,
		HTMLURL:        repo.HTMLURL,
		Language:       repo.Language,
		StarsCount:     repo.StarsCount,
		ForksCount:     repo.ForksCount,
		Private:        repo.Private,
		LastActivityAt: repo.LastActivityAt,
		Now:            p.now().UTC(),
	})
	if errors.Is(err, database.ErrAlreadyExists) {
		logger.Info("Repository already stored, ignoring created event")
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}

	logger.Info("Created repository from webhook")
	return nil
}

// refreshMetadata copies the descriptor's mutable fields onto the stored
// record. The sync timestamp is left untouched.
func (p *Processor) refreshMetadata(ctx context.Context, logger *slog.Logger, ownerID string, ghRepo *github.Repository) error {
	repo := ghclient.FromGitHubRepository(ghRepo)
	logger = logger.With("github_repo_id", repo.GithubRepoID)

	return p.store.ExecTx(ctx, func(q database.Querier) error {
		existing, err := q.LockRepositoryByOwnerAndGithubID(ctx, database.RepositoryKey{OwnerID: ownerID, GithubRepoID: repo.GithubRepoID})
		if errors.Is(err, database.ErrNotFound) {
			logger.Info("Repository not stored, ignoring update")
			return nil
		} else if err != nil {
			return err
		}

		if _, err := q.UpdateRepositoryMetadata(ctx, database.UpdateRepositoryMetadataParams{
			ID:          existing.ID,
			Name:        repo.Name,
			FullName:    repo.FullName,
			Description: repo.Description,
			StarsCount:  repo.StarsCount,
			ForksCount:  repo.ForksCount,
			Private:     repo.Private,
			Now:         p.now().UTC(),
		}); err != nil {
			return fmt.Errorf("failed to update repository: %w", err)
		}
		logger.Info("Updated repository from webhook")
		return nil
	})
}
