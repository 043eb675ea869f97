// internal/syncer/status.go
package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github-sync-service/internal/database"
	"github-sync-service/internal/model"
)

// syncRun identifies one pass of Sync for an owner.
type syncRun struct {
	ownerID string
	id      string
	logger  *slog.Logger
}

// startRun takes over the owner's status record with a fresh run id.
// A run still in flight for the same owner keeps going, but can no longer
// write its terminal state.
func (s *Syncer) startRun(ctx context.Context, ownerID string) (syncRun, error) {
	run := syncRun{ownerID: ownerID, id: s.newID()}
	run.logger = s.logger.With("user_id", ownerID, "run_id", run.id)

	_, err := s.store.StartSyncStatus(ctx, database.StartSyncStatusParams{
		OwnerID: ownerID,
		RunID:   run.id,
		Now:     s.now().UTC(),
	})
	if err != nil {
		return syncRun{}, fmt.Errorf("failed to record sync start: %w", err)
	}
	return run, nil
}

// finishRun writes the terminal state of run. It still writes when ctx is
// cancelled, so an aborted sync is recorded as FAILED.
func (s *Syncer) finishRun(ctx context.Context, run syncRun, state model.SyncState, count int, cause error) {
	params := database.FinishSyncStatusParams{
		OwnerID:            run.ownerID,
		RunID:              run.id,
		Status:             state,
		RepositoriesSynced: count,
		Now:                s.now().UTC(),
	}
	if cause != nil {
		msg := cause.Error()
		params.ErrorMessage = &msg
	}

	applied, err := s.store.FinishSyncStatus(context.WithoutCancel(ctx), params)
	if err != nil {
		run.logger.Error("Failed to record sync status", "status", state, "error", err)
		return
	}
	if !applied {
		run.logger.Warn("Sync run was superseded, status left to the newer run", "status", state)
	}
}
