package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/execution"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
)

// scopeDeploymentRecords namespaces the handler-level idempotency cache that
// replays the full Deployment record (including its allocated id), as
// opposed to execution.CommandService's own cache which only replays the
// provider's result.
const scopeDeploymentRecords = "http_records_deployments"

type createDeploymentRequest struct {
	StrategyID string                `json:"strategyId"`
	Mode       domain.DeploymentMode `json:"mode"`
	Capital    float64               `json:"capital"`
}

// createDeployment runs the full side-effecting command chain: risk gate,
// execution command (idempotent on Idempotency-Key), then the store write
// that applies the adapter's result. A replayed Idempotency-Key short-circuits
// before any of that runs and returns the previously created record verbatim.
func (h *handler) createDeployment(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	var req createDeploymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		hit, err := h.app.Idempotent.Lookup(r.Context(), scopeDeploymentRecords, idempotencyKey, req)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if hit.Replayed {
			var cached domain.Deployment
			if err := json.Unmarshal(hit.Body, &cached); err != nil {
				writeErr(w, r, apierrors.Internal("failed to decode replayed deployment record", err))
				return
			}
			writeOK(w, r, http.StatusAccepted, cached)
			return
		}
	}

	strategy, err := h.app.Store.GetStrategy(r.Context(), ident.TenantID, req.StrategyID)
	if err != nil {
		writeErr(w, r, apierrors.NotFound("strategy", req.StrategyID))
		return
	}

	if err := h.app.Risk.EnsureDeploymentAllowed(r.Context(), ident.TenantID, ident.UserID, ident.RequestID, req.Capital); err != nil {
		writeErr(w, r, err)
		return
	}

	result, _, err := h.app.Commands.CreateDeployment(r.Context(), idempotencyKey, execution.CreateDeploymentRequest{
		StrategyProviderRefID: strategy.ProviderRefID,
		Mode:                  string(req.Mode),
		Capital:               req.Capital,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}

	id, err := h.app.Store.NextID(r.Context(), "deployment")
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to allocate deployment id", err))
		return
	}
	now := time.Now().UTC()
	deployment, err := h.app.Store.CreateDeployment(r.Context(), domain.Deployment{
		ID:            id,
		StrategyID:    strategy.ID,
		Mode:          req.Mode,
		Status:        fsmStatusFromProvider(result.Status),
		Capital:       req.Capital,
		ProviderRefID: result.ProviderRefID,
		TenantID:      ident.TenantID,
		UserID:        ident.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
		SchemaVersion: domain.SchemaVersion,
	})
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to create deployment", err))
		return
	}

	if idempotencyKey != "" {
		body, _ := json.Marshal(deployment)
		if err := h.app.Idempotent.Store(r.Context(), scopeDeploymentRecords, idempotencyKey, req, http.StatusAccepted, body); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	writeOK(w, r, http.StatusAccepted, deployment)
}

func fsmStatusFromProvider(raw string) domain.DeploymentStatus {
	switch raw {
	case "running":
		return domain.DeploymentRunning
	case "paused":
		return domain.DeploymentPaused
	case "stopping":
		return domain.DeploymentStopping
	case "stopped":
		return domain.DeploymentStopped
	case "failed":
		return domain.DeploymentFailed
	default:
		return domain.DeploymentQueued
	}
}

func (h *handler) listDeployments(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	if err := h.app.Reconcile.ReconcileDeployments(r.Context(), ident.TenantID, ident.UserID); err != nil {
		h.app.Log.WithContext(r.Context()).WithError(err).Warn("deployment reconciliation failed")
	}
	deployments, err := h.app.Store.ListDeployments(r.Context(), ident.TenantID)
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to list deployments", err))
		return
	}
	writeOK(w, r, http.StatusOK, deployments)
}

// getDeployment opportunistically evaluates the drawdown kill-switch per
// spec §4.4 before returning the deployment's current state.
func (h *handler) getDeployment(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	id := chi.URLParam(r, "id")
	deployment, err := h.app.Store.GetDeployment(r.Context(), ident.TenantID, id)
	if err != nil {
		writeErr(w, r, apierrors.NotFound("deployment", id))
		return
	}

	triggered, _, err := h.app.Risk.EvaluateKillSwitch(r.Context(), ident.TenantID, deployment, time.Now())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if triggered {
		if deployment.ProviderRefID != "" {
			if stopErr := h.app.Commands.StopDeployment(r.Context(), deployment.ProviderRefID); stopErr != nil {
				h.app.Log.WithContext(r.Context()).WithError(stopErr).Warn("kill-switch stop command failed")
			}
		}
		deployment.Status = domain.DeploymentStopping
		deployment.UpdatedAt = time.Now().UTC()
		if deployment, err = h.app.Store.UpdateDeployment(r.Context(), deployment); err != nil {
			writeErr(w, r, apierrors.Internal("failed to persist kill-switch stop", err))
			return
		}
	}
	writeOK(w, r, http.StatusOK, deployment)
}

func (h *handler) stopDeployment(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	id := chi.URLParam(r, "id")
	deployment, err := h.app.Store.GetDeployment(r.Context(), ident.TenantID, id)
	if err != nil {
		writeErr(w, r, apierrors.NotFound("deployment", id))
		return
	}
	if deployment.ProviderRefID != "" {
		if err := h.app.Commands.StopDeployment(r.Context(), deployment.ProviderRefID); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	deployment.Status = domain.DeploymentStopping
	deployment.UpdatedAt = time.Now().UTC()
	updated, err := h.app.Store.UpdateDeployment(r.Context(), deployment)
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to persist deployment stop", err))
		return
	}
	writeOK(w, r, http.StatusOK, updated)
}
