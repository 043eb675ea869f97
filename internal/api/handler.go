// internal/api/handler.go
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github-sync-service/internal/database"
	custom_errors "github-sync-service/internal/errors"
	"github-sync-service/internal/errutil"
	"github-sync-service/internal/logging"
	"github-sync-service/internal/model"
)

const (
	requestTimeout     = 2 * time.Minute
	syncTimeout        = 30 * time.Minute
	maxWebhookBodySize = 25 << 20

	headerUserID    = "X-User-Id"
	headerToken     = "X-GitHub-Token"
	headerEvent     = "X-GitHub-Event"
	headerSignature = "X-Hub-Signature-256"
)

// SyncService runs and inspects repository syncs.
type SyncService interface {
	Sync(ctx context.Context, ownerID string, token model.AccessToken) ([]model.Repository, error)
	ListRepositories(ctx context.Context, ownerID string) ([]model.Repository, error)
	GetSyncStatus(ctx context.Context, ownerID string) (model.SyncStatus, error)
	PurgeOwner(ctx context.Context, ownerID string) error
}

// ActivityService serves derived activity views.
type ActivityService interface {
	ContributionCalendar(ctx context.Context, ownerID string) (map[string]int, error)
	RefreshFromEvents(ctx context.Context, ownerID string, token model.AccessToken) error
	Summary(ctx context.Context, ownerID string) (model.ActivitySummary, error)
	LanguageStatistics(ctx context.Context, ownerID string) (map[string]int, error)
}

// WebhookProcessor verifies and applies webhook deliveries.
type WebhookProcessor interface {
	Verify(signature string, payload []byte) error
	Process(ctx context.Context, ownerID, eventType string, payload []byte) error
}

// Handler is the container for API dependencies.
type Handler struct {
	syncer   SyncService
	activity ActivityService
	webhooks WebhookProcessor
	logger   *slog.Logger

	// background tracks work started by a request that outlives it.
	background sync.WaitGroup
}

func NewHandler(syncer SyncService, activity ActivityService, webhooks WebhookProcessor, logger *slog.Logger) *Handler {
	return &Handler{
		syncer:   syncer,
		activity: activity,
		webhooks: webhooks,
		logger:   logger,
	}
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(h.logger))
	r.Use(middleware.Recoverer)

	// API Routes
	r.With(middleware.Timeout(requestTimeout)).Get("/health", h.healthCheck)
	r.Route("/api/v1/github", func(r chi.Router) {
		// A full sync of a large account outlives the regular request timeout.
		r.With(middleware.Timeout(syncTimeout)).Post("/sync", h.syncRepositories)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Get("/sync/status", h.getSyncStatus)
			r.Get("/repositories", h.getRepositories)
			r.Delete("/repositories", h.purgeRepositories)
			r.Get("/stats", h.getLanguageStats)
			r.Get("/stats/{userId}", h.getLanguageStats)
			r.Get("/activity/summary", h.getActivitySummary)
			r.Get("/activity/calendar", h.getContributionCalendar)
			r.Post("/activity/refresh", h.refreshActivity)
			r.Post("/webhook", h.handleWebhook)
			r.Get("/webhook/health", h.webhookHealth)
		})
	})

	return r
}

// Wait blocks until background work started by requests has finished.
func (h *Handler) Wait() {
	h.background.Wait()
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// syncRepositories runs a full sync for the caller.
// POST /api/v1/github/sync
func (h *Handler) syncRepositories(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	token := extractToken(r)
	if token == "" {
		respondWithError(w, http.StatusBadRequest, "GitHub token is required")
		return
	}

	repos, err := h.syncer.Sync(r.Context(), ownerID, token)
	if err != nil {
		var rateErr *custom_errors.RateLimitError
		if errors.As(err, &rateErr) {
			respondWithJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":   "rate_limited",
				"message": err.Error(),
			})
			return
		}
		errutil.HandleError(r.Context(), "Failed to sync repositories", err, "user_id", ownerID)
		respondWithJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "sync_failed",
			"message": err.Error(),
		})
		return
	}

	h.refreshInBackground(r.Context(), ownerID, token)

	respondWithJSON(w, http.StatusOK, map[string]any{
		"message":      "Successfully synced repositories",
		"count":        len(repos),
		"repositories": repos,
	})
}

// refreshInBackground recomputes commit activity after a sync without
// holding up the response. It keeps the request's values but not its
// cancellation.
func (h *Handler) refreshInBackground(ctx context.Context, ownerID string, token model.AccessToken) {
	ctx = context.WithoutCancel(ctx)
	h.background.Add(1)
	go func() {
		defer h.background.Done()
		if err := h.activity.RefreshFromEvents(ctx, ownerID, token); err != nil {
			logging.From(ctx).Warn("Failed to refresh contribution activity", "user_id", ownerID, "error", err)
		}
	}()
}

// GET /api/v1/github/sync/status
func (h *Handler) getSyncStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	status, err := h.syncer.GetSyncStatus(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "No sync status found")
			return
		}
		h.internalError(w, r, "Failed to get sync status", err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

// GET /api/v1/github/repositories
func (h *Handler) getRepositories(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	repos, err := h.syncer.ListRepositories(r.Context(), ownerID)
	if err != nil {
		h.internalError(w, r, "Failed to get repositories", err)
		return
	}
	respondWithJSON(w, http.StatusOK, repos)
}

// DELETE /api/v1/github/repositories
func (h *Handler) purgeRepositories(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.syncer.PurgeOwner(r.Context(), ownerID); err != nil {
		h.internalError(w, r, "Failed to delete repositories", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getLanguageStats serves the caller's language totals, or another user's
// when the path names one.
// GET /api/v1/github/stats, GET /api/v1/github/stats/{userId}
func (h *Handler) getLanguageStats(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "userId")
	if ownerID == "" {
		var ok bool
		if ownerID, ok = requireUserID(w, r); !ok {
			return
		}
	}

	stats, err := h.activity.LanguageStatistics(r.Context(), ownerID)
	if err != nil {
		h.internalError(w, r, "Failed to get language statistics", err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// GET /api/v1/github/activity/summary
func (h *Handler) getActivitySummary(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	summary, err := h.activity.Summary(r.Context(), ownerID)
	if err != nil {
		h.internalError(w, r, "Failed to get activity summary", err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// GET /api/v1/github/activity/calendar
func (h *Handler) getContributionCalendar(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	calendar, err := h.activity.ContributionCalendar(r.Context(), ownerID)
	if err != nil {
		h.internalError(w, r, "Failed to get contribution calendar", err)
		return
	}
	respondWithJSON(w, http.StatusOK, calendar)
}

// POST /api/v1/github/activity/refresh
func (h *Handler) refreshActivity(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	token := extractToken(r)
	if token == "" {
		respondWithError(w, http.StatusBadRequest, "GitHub token is required")
		return
	}

	if err := h.activity.RefreshFromEvents(r.Context(), ownerID, token); err != nil {
		var rateErr *custom_errors.RateLimitError
		if errors.As(err, &rateErr) {
			respondWithError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		h.internalError(w, r, "Failed to refresh activity", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleWebhook applies one GitHub webhook delivery.
// POST /api/v1/github/webhook
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	eventType := r.Header.Get(headerEvent)
	ownerID := r.Header.Get(headerUserID)
	if eventType == "" || ownerID == "" {
		respondWithError(w, http.StatusBadRequest, "X-GitHub-Event and X-User-Id headers are required")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if err := h.webhooks.Verify(r.Header.Get(headerSignature), payload); err != nil {
		logging.From(r.Context()).Warn("Rejected webhook delivery", "event", eventType, "error", err)
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	if err := h.webhooks.Process(r.Context(), ownerID, eventType, payload); err != nil {
		errutil.HandleError(r.Context(), "Failed to process webhook", err, "event", eventType, "user_id", ownerID)
		respondWithJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// GET /api/v1/github/webhook/health
func (h *Handler) webhookHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "github-webhook"})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	errutil.HandleError(r.Context(), msg, err)
	respondWithError(w, http.StatusInternalServerError, "Internal server error")
}

func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := r.Header.Get(headerUserID)
	if ownerID == "" {
		respondWithError(w, http.StatusBadRequest, "X-User-Id header is required")
		return "", false
	}
	return ownerID, true
}

// extractToken reads the caller's GitHub token from X-GitHub-Token or a
// bearer Authorization header.
func extractToken(r *http.Request) model.AccessToken {
	if token := r.Header.Get(headerToken); token != "" {
		return model.AccessToken(token)
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
		return model.AccessToken(token)
	}
	return ""
}
