package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradeforge/controlplane/internal/platform/apierrors"
)

type enqueueRunRequest struct {
	Priority int `json:"priority"`
}

func (h *handler) enqueueRun(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	var req enqueueRunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	run, err := h.app.Queue.Enqueue(r.Context(), ident.TenantID, ident.UserID, req.Priority)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, r, http.StatusAccepted, run)
}

func (h *handler) dequeueRun(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	run, ok, err := h.app.Queue.DequeueNext(r.Context(), ident.TenantID, ident.UserID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if !ok {
		writeOK(w, r, http.StatusOK, nil)
		return
	}
	h.app.Retry.BeginAttempt(run.ID)
	writeOK(w, r, http.StatusOK, run)
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	id := chi.URLParam(r, "id")
	run, err := h.app.Store.GetOrchestratorRun(r.Context(), ident.TenantID, id)
	if err != nil {
		writeErr(w, r, apierrors.NotFound("orchestrator_run", id))
		return
	}
	writeOK(w, r, http.StatusOK, run)
}

func (h *handler) markAwaitingTool(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	run, err := h.app.Queue.MarkAwaitingTool(r.Context(), ident.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, run)
}

func (h *handler) markAwaitingUserConfirmation(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	run, err := h.app.Queue.MarkAwaitingUserConfirmation(r.Context(), ident.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, run)
}

func (h *handler) resumeRun(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	run, err := h.app.Queue.Resume(r.Context(), ident.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, run)
}

func (h *handler) completeRun(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	id := chi.URLParam(r, "id")
	run, err := h.app.Queue.Complete(r.Context(), ident.TenantID, id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	h.app.Retry.RecordSuccess(id)
	writeOK(w, r, http.StatusOK, run)
}

type failRunRequest struct {
	Reason string `json:"reason"`
}

// failRun consults the retry budget before committing the run to the
// terminal failed state: a run still under budget goes back to
// awaiting_tool instead, carrying the computed backoff in the response.
func (h *handler) failRun(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	id := chi.URLParam(r, "id")
	var req failRunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	decision := h.app.Retry.RecordFailure(id)
	if !decision.RetryAllowed {
		run, err := h.app.Queue.Fail(r.Context(), ident.TenantID, id, req.Reason)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeOK(w, r, http.StatusOK, map[string]interface{}{"run": run, "retry": decision})
		return
	}

	run, err := h.app.Queue.MarkAwaitingTool(r.Context(), ident.TenantID, id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, map[string]interface{}{"run": run, "retry": decision})
}

type cancelRunRequest struct {
	Reason string `json:"reason"`
}

func (h *handler) cancelRun(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	var req cancelRunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	run, err := h.app.Queue.Cancel(r.Context(), ident.TenantID, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, run)
}

func (h *handler) getTrace(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	writeOK(w, r, http.StatusOK, h.app.Queue.Trace(ident.TenantID))
}
