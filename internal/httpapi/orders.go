package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/execution"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/risk"
)

// scopeOrderRecords namespaces the handler-level idempotency cache that
// replays the full Order record (including its allocated id), as opposed to
// execution.CommandService's own cache which only replays the provider's
// result.
const scopeOrderRecords = "http_records_orders"

type createOrderRequest struct {
	Symbol       string           `json:"symbol"`
	Side         domain.OrderSide `json:"side"`
	OrderType    string           `json:"orderType"`
	Quantity     float64          `json:"quantity"`
	Price        *float64         `json:"price"`
	DeploymentID string           `json:"deploymentId"`
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		writeErr(w, r, apierrors.Validation("symbol", "symbol is required"))
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		hit, err := h.app.Idempotent.Lookup(r.Context(), scopeOrderRecords, idempotencyKey, req)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if hit.Replayed {
			var cached domain.Order
			if err := json.Unmarshal(hit.Body, &cached); err != nil {
				writeErr(w, r, apierrors.Internal("failed to decode replayed order record", err))
				return
			}
			writeOK(w, r, http.StatusAccepted, cached)
			return
		}
	}

	if req.DeploymentID != "" {
		if _, err := h.app.Store.GetDeployment(r.Context(), ident.TenantID, req.DeploymentID); err != nil {
			writeErr(w, r, apierrors.NotFound("deployment", req.DeploymentID))
			return
		}
	}

	if err := h.app.Risk.EnsureOrderAllowed(r.Context(), ident.TenantID, ident.UserID, ident.RequestID, risk.OrderRequest{
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
		Price:    req.Price,
	}); err != nil {
		writeErr(w, r, err)
		return
	}

	result, _, err := h.app.Commands.PlaceOrder(r.Context(), idempotencyKey, execution.PlaceOrderRequest{
		Symbol:       req.Symbol,
		Side:         string(req.Side),
		OrderType:    req.OrderType,
		Quantity:     req.Quantity,
		Price:        req.Price,
		DeploymentID: req.DeploymentID,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}

	id, err := h.app.Store.NextID(r.Context(), "order")
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to allocate order id", err))
		return
	}
	now := time.Now().UTC()
	order, err := h.app.Store.CreateOrder(r.Context(), domain.Order{
		ID:              id,
		Symbol:          req.Symbol,
		Side:            req.Side,
		OrderType:       req.OrderType,
		Quantity:        req.Quantity,
		Price:           req.Price,
		Status:          domain.OrderPending,
		DeploymentID:    req.DeploymentID,
		ProviderOrderID: result.ProviderOrderID,
		TenantID:        ident.TenantID,
		UserID:          ident.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
		SchemaVersion:   domain.SchemaVersion,
	})
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to create order", err))
		return
	}

	if idempotencyKey != "" {
		body, _ := json.Marshal(order)
		if err := h.app.Idempotent.Store(r.Context(), scopeOrderRecords, idempotencyKey, req, http.StatusAccepted, body); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	writeOK(w, r, http.StatusAccepted, order)
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	if err := h.app.Reconcile.ReconcileOrders(r.Context(), ident.TenantID, ident.UserID); err != nil {
		h.app.Log.WithContext(r.Context()).WithError(err).Warn("order reconciliation failed")
	}
	orders, err := h.app.Store.ListOrders(r.Context(), ident.TenantID)
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to list orders", err))
		return
	}
	writeOK(w, r, http.StatusOK, orders)
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	id := chi.URLParam(r, "id")
	order, err := h.app.Store.GetOrder(r.Context(), ident.TenantID, id)
	if err != nil {
		writeErr(w, r, apierrors.NotFound("order", id))
		return
	}
	writeOK(w, r, http.StatusOK, order)
}

func (h *handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	id := chi.URLParam(r, "id")
	order, err := h.app.Store.GetOrder(r.Context(), ident.TenantID, id)
	if err != nil {
		writeErr(w, r, apierrors.NotFound("order", id))
		return
	}
	if order.ProviderOrderID != "" {
		if err := h.app.Commands.CancelOrder(r.Context(), order.ProviderOrderID); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	order.Status = domain.OrderCancelled
	order.UpdatedAt = time.Now().UTC()
	updated, err := h.app.Store.UpdateOrder(r.Context(), order)
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to persist order cancellation", err))
		return
	}
	writeOK(w, r, http.StatusOK, updated)
}
