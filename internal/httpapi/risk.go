package httpapi

import (
	"net/http"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/risk"
	"github.com/tradeforge/controlplane/internal/store"
)

func (h *handler) getRiskPolicy(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	policy, err := h.app.Store.GetRiskPolicy(r.Context(), ident.TenantID)
	if err != nil {
		if err == store.ErrNotFound {
			seeded, putErr := h.app.Store.PutRiskPolicy(r.Context(), risk.DefaultPolicy(ident.TenantID))
			if putErr != nil {
				writeErr(w, r, apierrors.Internal("failed to seed default risk policy", putErr))
				return
			}
			writeOK(w, r, http.StatusOK, seeded)
			return
		}
		writeErr(w, r, apierrors.Internal("failed to load risk policy", err))
		return
	}
	writeOK(w, r, http.StatusOK, policy)
}

func (h *handler) putRiskPolicy(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	var policy domain.RiskPolicy
	if err := decodeJSON(r, &policy); err != nil {
		writeErr(w, r, err)
		return
	}
	policy.TenantID = ident.TenantID
	if err := risk.ValidatePolicy(policy); err != nil {
		writeErr(w, r, apierrors.RiskPolicyInvalid(err))
		return
	}
	updated, err := h.app.Store.PutRiskPolicy(r.Context(), policy)
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to persist risk policy", err))
		return
	}
	writeOK(w, r, http.StatusOK, updated)
}

func (h *handler) listRiskAudit(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	records, err := h.app.Store.ListRiskAudit(r.Context(), ident.TenantID)
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to list risk audit records", err))
		return
	}
	writeOK(w, r, http.StatusOK, records)
}
