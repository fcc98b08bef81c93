package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
)

type createStrategyRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Provider      string `json:"provider"`
	ProviderRefID string `json:"providerRefId"`
}

func (h *handler) createStrategy(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	var req createStrategyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeErr(w, r, apierrors.Validation("name", "name is required"))
		return
	}

	id, err := h.app.Store.NextID(r.Context(), "strategy")
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to allocate strategy id", err))
		return
	}
	now := time.Now().UTC()
	strategy, err := h.app.Store.CreateStrategy(r.Context(), domain.Strategy{
		ID:            id,
		Name:          req.Name,
		Description:   req.Description,
		Provider:      req.Provider,
		ProviderRefID: req.ProviderRefID,
		TenantID:      ident.TenantID,
		UserID:        ident.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
		SchemaVersion: domain.SchemaVersion,
	})
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to create strategy", err))
		return
	}
	writeOK(w, r, http.StatusCreated, strategy)
}

func (h *handler) listStrategies(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	strategies, err := h.app.Store.ListStrategies(r.Context(), ident.TenantID)
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to list strategies", err))
		return
	}
	writeOK(w, r, http.StatusOK, strategies)
}

func (h *handler) getStrategy(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	strategy, err := h.app.Store.GetStrategy(r.Context(), ident.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, apierrors.NotFound("strategy", chi.URLParam(r, "id")))
		return
	}
	writeOK(w, r, http.StatusOK, strategy)
}
