package httpapi

import (
	"net/http"
)

type marketScanRequest struct {
	Assets           []string `json:"assets"`
	Query            string   `json:"query"`
	EstimatedCostUsd float64  `json:"estimatedCostUsd"`
}

// marketScan reserves research budget for the caller-supplied
// estimatedCostUsd and, on success, echoes the request back with status
// "reserved". It makes no market-scan provider call.
func (h *handler) marketScan(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	var req marketScanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := h.app.Research.Reserve(r.Context(), ident.TenantID, req.EstimatedCostUsd); err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, r, http.StatusAccepted, map[string]interface{}{
		"assets":           req.Assets,
		"query":            req.Query,
		"estimatedCostUsd": req.EstimatedCostUsd,
		"status":           "reserved",
	})
}
