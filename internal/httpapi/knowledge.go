package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (h *handler) searchKnowledge(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	query := r.URL.Query().Get("query")
	assets := splitCSV(r.URL.Query().Get("assets"))
	limit := parseLimit(r.URL.Query().Get("limit"))

	hits, err := h.app.Knowledge.Search(r.Context(), ident.TenantID, query, assets, limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, hits)
}

func (h *handler) listPatterns(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	patternType := r.URL.Query().Get("patternType")
	asset := r.URL.Query().Get("asset")
	limit := parseLimit(r.URL.Query().Get("limit"))

	patterns, err := h.app.Knowledge.ListPatterns(r.Context(), ident.TenantID, patternType, asset, limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, patterns)
}

func (h *handler) getOpenRegime(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	regime, err := h.app.Knowledge.GetOpenRegime(r.Context(), ident.TenantID, chi.URLParam(r, "asset"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, regime)
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
