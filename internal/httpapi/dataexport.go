package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
)

type createBacktestExportRequest struct {
	BacktestID string `json:"backtestId"`
	Format     string `json:"format"`
}

func (h *handler) createBacktestExport(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	var req createBacktestExportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if _, err := h.app.Store.GetBacktest(r.Context(), ident.TenantID, req.BacktestID); err != nil {
		writeErr(w, r, apierrors.NotFound("backtest", req.BacktestID))
		return
	}

	id, err := h.app.Store.NextID(r.Context(), "export")
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to allocate export id", err))
		return
	}
	export, err := h.app.Store.CreateDatasetExport(r.Context(), domain.DatasetExport{
		ID:            id,
		BacktestID:    req.BacktestID,
		Format:        req.Format,
		TenantID:      ident.TenantID,
		UserID:        ident.UserID,
		CreatedAt:     time.Now().UTC(),
		SchemaVersion: domain.SchemaVersion,
	})
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to create backtest export", err))
		return
	}
	writeOK(w, r, http.StatusAccepted, export)
}

func (h *handler) getBacktestExport(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	id := chi.URLParam(r, "id")
	export, err := h.app.Store.GetDatasetExport(r.Context(), ident.TenantID, id)
	if err != nil {
		writeErr(w, r, apierrors.DataExportNotFound(id))
		return
	}
	writeOK(w, r, http.StatusOK, export)
}
