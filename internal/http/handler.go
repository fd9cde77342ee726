package httpapp

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rtuszik/discogsdash/internal/app"
	"github.com/rtuszik/discogsdash/internal/constants"
	"github.com/rtuszik/discogsdash/internal/domain"
	"github.com/rtuszik/discogsdash/internal/http/dto"
	"github.com/rtuszik/discogsdash/internal/logger"
	"github.com/rtuszik/discogsdash/internal/oauth"
)

// SyncTrigger starts a run and reports whether one is in flight.
type SyncTrigger interface {
	StartSync(ctx context.Context) (*app.SyncResult, error)
	Running() bool
}

type StatusReader interface {
	Status(ctx context.Context) (*domain.SyncStatus, error)
}

// AuthManager drives the authorization handshake.
type AuthManager interface {
	State(ctx context.Context) (oauth.State, error)
	StartHandshake(ctx context.Context) (*oauth.Handshake, error)
	CompleteHandshake(ctx context.Context, token, verifier string) (*domain.Credential, error)
	Revoke(ctx context.Context) error
}

// CollectionReader serves the persisted collection and its value history.
type CollectionReader interface {
	ListItems(ctx context.Context, limit int) ([]*domain.CollectionItem, error)
	ListSnapshots(ctx context.Context, limit int) ([]*domain.ValueSnapshot, error)
}

type Handler struct {
	Sync       SyncTrigger
	Status     StatusReader
	Auth       AuthManager
	Collection CollectionReader
	Logger     *logger.Logger

	// SyncRateLimit caps manual triggers per client IP per minute.
	SyncRateLimit int
}

func NewHandler(sync SyncTrigger, status StatusReader, auth AuthManager, collection CollectionReader, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Sync:          sync,
		Status:        status,
		Auth:          auth,
		Collection:    collection,
		Logger:        log.WithComponent("http"),
		SyncRateLimit: constants.SyncTriggerPerMin,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.With(httprate.LimitByIP(h.SyncRateLimit, time.Minute)).Post("/sync", h.TriggerSync)
		r.Get("/sync/status", h.SyncStatus)

		r.Get("/auth/status", h.AuthStatus)
		r.Post("/auth/request-token", h.RequestToken)
		r.Post("/auth/access-token", h.AccessToken)
		r.Delete("/auth", h.RevokeAuth)

		r.Get("/items", h.ListItems)
		r.Get("/snapshots", h.ListSnapshots)
	})
	r.Handle("/metrics", promhttp.Handler())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, dto.ErrorResponse{Error: msg})
}
