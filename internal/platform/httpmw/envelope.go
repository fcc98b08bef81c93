package httpmw

import (
	"encoding/json"
	"net/http"

	"github.com/tradeforge/controlplane/internal/platform/apierrors"
)

type errorEnvelope struct {
	RequestID string    `json:"requestId,omitempty"`
	Error     errorBody `json:"error"`
}

type errorBody struct {
	Code    apierrors.Code         `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSONError renders the canonical {"requestId","error":{"code","message","details"}}
// envelope for a PlatformAPIError.
func WriteJSONError(w http.ResponseWriter, err *apierrors.PlatformAPIError) {
	status := err.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		RequestID: err.RequestID,
		Error: errorBody{
			Code:    err.Code,
			Message: err.Message,
			Details: err.Details,
		},
	})
}

// WriteJSON renders a 2xx JSON body.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
