package httpapp

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/rtuszik/discogsdash/internal/apierr"
	"github.com/rtuszik/discogsdash/internal/app"
	"github.com/rtuszik/discogsdash/internal/constants"
	"github.com/rtuszik/discogsdash/internal/domain"
	"github.com/rtuszik/discogsdash/internal/http/dto"
	"github.com/rtuszik/discogsdash/internal/oauth"
)

// TriggerSync runs a sync and answers when it finishes. The run is detached
// from the request context so a closed client does not abort it.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.Sync.StartSync(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, app.ErrSyncInProgress):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrNotConfigured):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		h.writeJSON(w, http.StatusOK, result)
	}
}

func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Status.Status(r.Context())
	if err != nil {
		h.Logger.Error("Failed to read sync status", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.Auth.State(r.Context())
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.AuthStatusResponse{
		State:         string(state),
		Authenticated: state == oauth.StateAuthenticated,
	})
}

func (h *Handler) RequestToken(w http.ResponseWriter, r *http.Request) {
	hs, err := h.Auth.StartHandshake(r.Context())
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, hs)
}

func (h *Handler) AccessToken(w http.ResponseWriter, r *http.Request) {
	var req dto.AccessTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if errs := dto.Validate(&req); len(errs) > 0 {
		h.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:  dto.ToResponse(errs),
			Fields: dto.ToMap(errs),
		})
		return
	}

	if _, err := h.Auth.CompleteHandshake(r.Context(), req.Token, req.Verifier); err != nil {
		h.writeAuthError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.AuthStatusResponse{
		State:         string(oauth.StateAuthenticated),
		Authenticated: true,
	})
}

func (h *Handler) RevokeAuth(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Revoke(r.Context()); err != nil {
		h.writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	limit, err := dto.ParseLimit(r.URL.Query().Get("limit"), constants.DefaultListLimit, constants.MaxListItems)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.Collection.ListItems(r.Context(), limit)
	if err != nil {
		h.Logger.Error("Failed to list items", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []*domain.CollectionItem{}
	}
	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit, err := dto.ParseLimit(r.URL.Query().Get("limit"), constants.DefaultListLimit, constants.MaxListItems)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snaps, err := h.Collection.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.Logger.Error("Failed to list snapshots", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snaps == nil {
		snaps = []*domain.ValueSnapshot{}
	}
	h.writeJSON(w, http.StatusOK, snaps)
}

func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apierr.KindOf(err) {
	case apierr.KindConfig, apierr.KindClient:
		status = http.StatusBadRequest
	case apierr.KindAuth:
		status = http.StatusUnauthorized
	case apierr.KindRateLimit, apierr.KindUnavailable, apierr.KindTransient:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error("Auth request failed", "error", err)
	}
	h.writeError(w, status, err.Error())
}
