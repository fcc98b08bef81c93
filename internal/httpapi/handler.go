package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tradeforge/controlplane/internal/app"
	"github.com/tradeforge/controlplane/internal/identity"
	"github.com/tradeforge/controlplane/internal/orchestrator"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/platform/httpmw"
	"github.com/tradeforge/controlplane/internal/platform/logger"
)

// handler bundles every resource handler group over a single Application.
type handler struct {
	app *app.Application
}

type identityCtxKey struct{}

// authenticate resolves the caller's identity and rejects the request with
// the resolver's error on failure; on success it stashes the Identity and
// request-scoped log fields on the context.
func (h *handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := h.app.Identity.Resolve(r)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), identityCtxKey{}, ident)
		ctx = logger.WithRequestFields(ctx, ident.TenantID, ident.UserID, ident.RequestID)
		ctx = orchestrator.WithRequestID(ctx, ident.RequestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(ctx context.Context) identity.Identity {
	ident, _ := ctx.Value(identityCtxKey{}).(identity.Identity)
	return ident
}

// decodeJSON decodes the request body strictly, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierrors.Validation("body", "request body is not valid JSON for this operation")
	}
	return nil
}

// writeErr renders err as the canonical error envelope, stamping the
// request id carried on the context if err doesn't already have one.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, ok := apierrors.As(err)
	if !ok {
		apiErr = apierrors.Internal("unexpected error", err)
	}
	if apiErr.RequestID == "" {
		apiErr = apiErr.WithRequestID(httpmw.RequestIDFromContext(r.Context()))
	}
	httpmw.WriteJSONError(w, apiErr)
}

// writeOK renders a 2xx envelope carrying requestId alongside the payload.
func writeOK(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	httpmw.WriteJSON(w, status, envelope{RequestID: httpmw.RequestIDFromContext(r.Context()), Data: body})
}

type envelope struct {
	RequestID string      `json:"requestId"`
	Data      interface{} `json:"data"`
}
