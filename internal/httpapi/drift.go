package httpapi

import (
	"net/http"

	"github.com/tradeforge/controlplane/internal/platform/apierrors"
)

func (h *handler) listDriftEvents(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	resourceType := r.URL.Query().Get("resourceType")
	events, err := h.app.Store.ListDriftEvents(r.Context(), ident.TenantID, resourceType)
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to list drift events", err))
		return
	}
	writeOK(w, r, http.StatusOK, events)
}
