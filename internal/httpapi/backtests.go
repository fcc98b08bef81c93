package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/knowledge"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
)

type createBacktestRequest struct {
	DatasetIDs  []string `json:"datasetIds"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	InitialCash float64  `json:"initialCash"`
}

// createBacktest resolves every referenced dataset to a provider id through
// the dataset bridge before queuing the run, so an unpublished dataset fails
// the request up front rather than surfacing mid-backtest.
func (h *handler) createBacktest(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	strategyID := chi.URLParam(r, "id")

	strategy, err := h.app.Store.GetStrategy(r.Context(), ident.TenantID, strategyID)
	if err != nil {
		writeErr(w, r, apierrors.NotFound("strategy", strategyID))
		return
	}

	var req createBacktestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if len(req.DatasetIDs) > 0 {
		if _, err := h.app.Datasets.ResolveDatasetRefs(r.Context(), ident.TenantID, req.DatasetIDs); err != nil {
			writeErr(w, r, err)
			return
		}
	}

	id, err := h.app.Store.NextID(r.Context(), "backtest")
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to allocate backtest id", err))
		return
	}
	now := time.Now().UTC()
	backtest, err := h.app.Store.CreateBacktest(r.Context(), domain.Backtest{
		ID:            id,
		StrategyID:    strategy.ID,
		DatasetIDs:    req.DatasetIDs,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		InitialCash:   req.InitialCash,
		Status:        domain.BacktestQueued,
		TenantID:      ident.TenantID,
		UserID:        ident.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
		SchemaVersion: domain.SchemaVersion,
	})
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to create backtest", err))
		return
	}
	writeOK(w, r, http.StatusAccepted, backtest)
}

func (h *handler) listBacktestsForStrategy(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	backtests, err := h.app.Store.ListBacktestsByStrategy(r.Context(), ident.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to list backtests", err))
		return
	}
	writeOK(w, r, http.StatusOK, backtests)
}

func (h *handler) getBacktest(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	backtest, err := h.app.Store.GetBacktest(r.Context(), ident.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, apierrors.NotFound("backtest", chi.URLParam(r, "id")))
		return
	}
	writeOK(w, r, http.StatusOK, backtest)
}

type updateBacktestStatusRequest struct {
	Status           domain.BacktestStatus `json:"status"`
	Metrics          map[string]float64    `json:"metrics"`
	ProviderReportID string                `json:"providerReportId"`
	Error            string                `json:"error"`
}

// updateBacktestStatus applies a provider-reported status change (the path a
// reconciliation pass or provider callback would use) and, on a terminal
// status, best-effort ingests the outcome into the knowledge base.
func (h *handler) updateBacktestStatus(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	id := chi.URLParam(r, "id")
	backtest, err := h.app.Store.GetBacktest(r.Context(), ident.TenantID, id)
	if err != nil {
		writeErr(w, r, apierrors.NotFound("backtest", id))
		return
	}

	var req updateBacktestStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	backtest.Status = req.Status
	backtest.Metrics = req.Metrics
	backtest.ProviderReportID = req.ProviderReportID
	backtest.Error = req.Error
	backtest.UpdatedAt = time.Now().UTC()

	updated, err := h.app.Store.UpdateBacktest(r.Context(), backtest)
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to update backtest", err))
		return
	}

	event := knowledge.BacktestOutcomeEvent{
		StrategyID: updated.StrategyID,
		BacktestID: updated.ID,
		Status:     updated.Status,
		Metrics:    updated.Metrics,
		Error:      updated.Error,
	}
	if err := h.app.Knowledge.IngestBacktestOutcome(r.Context(), ident.TenantID, event); err != nil {
		h.app.Log.WithContext(r.Context()).WithError(err).Warn("knowledge ingestion failed for backtest outcome")
	}
	writeOK(w, r, http.StatusOK, updated)
}
