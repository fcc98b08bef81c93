package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
)

func (h *handler) getPortfolio(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	mode := domain.DeploymentMode(chi.URLParam(r, "mode"))
	if mode != domain.ModePaper && mode != domain.ModeLive {
		writeErr(w, r, apierrors.Validation("mode", "mode must be paper or live"))
		return
	}
	portfolio, err := h.app.Store.GetPortfolio(r.Context(), ident.TenantID, mode)
	if err != nil {
		writeErr(w, r, apierrors.NotFound("portfolio", string(mode)))
		return
	}
	writeOK(w, r, http.StatusOK, portfolio)
}
