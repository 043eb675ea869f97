// internal/model/models.go
package model

import (
	"log/slog"
	"time"
)

// AccessToken is a caller-supplied GitHub bearer credential. It never
// renders in logs.
type AccessToken string

func (t AccessToken) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// Repository is a GitHub repository persisted on behalf of an owner.
// It is unique per (OwnerID, GithubRepoID).
type Repository struct {
	ID             int64          `json:"id"`
	OwnerID        string         `json:"userId"`
	GithubRepoID   int64          `json:"githubId"`
	Owner          string         `json:"owner"`
	Name           string         `json:"name"`
	FullName       string         `json:"fullName"`
	Description    string         `json:"description"`
	URL            string         `json:"url"`
	HTMLURL        string         `json:"htmlUrl"`
	Language       string         `json:"language"`
	Languages      map[string]int `json:"languages"`
	StarsCount     int            `json:"stars"`
	ForksCount     int            `json:"forks"`
	Private        bool           `json:"isPrivate"`
	CommitCount    int            `json:"commitCount"`
	LastActivityAt *time.Time     `json:"lastCommitAt,omitempty"`
	SyncedAt       time.Time      `json:"syncedAt"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// SyncState is the lifecycle state of an owner's most recent sync run.
type SyncState string

const (
	SyncStateInProgress SyncState = "IN_PROGRESS"
	SyncStateSuccess    SyncState = "SUCCESS"
	SyncStateFailed     SyncState = "FAILED"
)

// IsTerminal reports whether no further transition is expected for the run.
func (s SyncState) IsTerminal() bool {
	return s == SyncStateSuccess || s == SyncStateFailed
}

// SyncStatus is the single status record kept per owner. RunID identifies
// the run that last wrote it.
type SyncStatus struct {
	OwnerID            string    `json:"userId"`
	RunID              string    `json:"runId"`
	Status             SyncState `json:"status"`
	ErrorMessage       *string   `json:"errorMessage"`
	RepositoriesSynced *int      `json:"repositoriesSynced"`
	LastSyncAt         time.Time `json:"lastSyncAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// CommitActivity is the number of commits an owner made on one calendar day.
type CommitActivity struct {
	OwnerID     string    `json:"userId"`
	Date        time.Time `json:"date"`
	CommitCount int       `json:"commitCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DateLayout formats the calendar day keys of commit activity.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ProviderEvent is one entry of a user's public GitHub event stream.
type ProviderEvent struct {
	ID        string
	Type      string
	CreatedAt time.Time
	// PushCommits is the number of commits a PushEvent carried, zero for
	// every other event type.
	PushCommits int
}

// RepoSyncedEvent is published once per reconciled repository after a
// successful sync.
type RepoSyncedEvent struct {
	EventID      string    `json:"eventId"`
	GithubRepoID string    `json:"githubRepoId"`
	OwnerID      string    `json:"userId"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// ActivitySummary aggregates commit counts across an owner's repositories.
type ActivitySummary struct {
	TotalCommits          int                   `json:"totalCommits"`
	TotalRepositories     int                   `json:"totalRepositories"`
	AverageCommitsPerRepo int                   `json:"averageCommitsPerRepo"`
	MostActiveRepository  *MostActiveRepository `json:"mostActiveRepository,omitempty"`
}

type MostActiveRepository struct {
	Name        string `json:"name"`
	CommitCount int    `json:"commitCount"`
	URL         string `json:"url"`
}
