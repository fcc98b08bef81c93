package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
)

type createDatasetRequest struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"sizeBytes"`
}

func (h *handler) createDataset(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	var req createDatasetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		writeErr(w, r, apierrors.Validation("filename", "filename is required"))
		return
	}

	id, err := h.app.Store.NextID(r.Context(), "dataset")
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to allocate dataset id", err))
		return
	}
	now := time.Now().UTC()
	dataset, err := h.app.Store.CreateDataset(r.Context(), domain.Dataset{
		ID:            id,
		Filename:      req.Filename,
		SizeBytes:     req.SizeBytes,
		Status:        domain.DatasetInitialized,
		TenantID:      ident.TenantID,
		UserID:        ident.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
		SchemaVersion: domain.SchemaVersion,
	})
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to create dataset", err))
		return
	}
	writeOK(w, r, http.StatusCreated, dataset)
}

func (h *handler) getDataset(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	id := chi.URLParam(r, "id")
	dataset, err := h.app.Store.GetDataset(r.Context(), ident.TenantID, id)
	if err != nil {
		writeErr(w, r, apierrors.DatasetNotFound(id))
		return
	}
	writeOK(w, r, http.StatusOK, dataset)
}

func (h *handler) publishDataset(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	id := chi.URLParam(r, "id")
	if _, err := h.app.Datasets.EnsurePublished(r.Context(), ident.TenantID, id); err != nil {
		writeErr(w, r, err)
		return
	}
	dataset, err := h.app.Store.GetDataset(r.Context(), ident.TenantID, id)
	if err != nil {
		writeErr(w, r, apierrors.DatasetNotFound(id))
		return
	}
	writeOK(w, r, http.StatusOK, dataset)
}
