// Package execution is the sole side-effecting boundary: it holds the
// provider adapter interfaces and the Execution Command Service that
// delegates to them, integrating the idempotency cache on the create-deployment
// and place-order commands (stop and cancel are not cached).
package execution

import (
	"context"
	"fmt"
)

// AdapterError is the typed failure every provider adapter call raises. It
// carries a stable code taxonomy and never leaks raw provider payloads.
type AdapterError struct {
	Code       string
	StatusCode int
	Message    string
	Err        error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// LiveEngineAdapter is the boundary to the live/paper execution engine.
type LiveEngineAdapter interface {
	CreateDeployment(ctx context.Context, req CreateDeploymentRequest) (ProviderDeploymentResult, error)
	StopDeployment(ctx context.Context, providerRefID string) error
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (ProviderOrderResult, error)
	CancelOrder(ctx context.Context, providerOrderID string) error
	GetDeploymentStatus(ctx context.Context, providerRefID string) (ProviderDeploymentStatus, error)
	GetOrderStatus(ctx context.Context, providerOrderID string) (ProviderOrderStatus, error)
}

// CreateDeploymentRequest is the normalized input to CreateDeployment.
type CreateDeploymentRequest struct {
	StrategyProviderRefID string
	Mode                  string
	Capital               float64
}

// ProviderDeploymentResult is the normalized response from CreateDeployment.
type ProviderDeploymentResult struct {
	ProviderRefID string
	Status        string
}

// ProviderDeploymentStatus is a polled deployment status snapshot.
type ProviderDeploymentStatus struct {
	Status    string
	LatestPnl *float64
}

// PlaceOrderRequest is the normalized input to PlaceOrder.
type PlaceOrderRequest struct {
	Symbol       string
	Side         string
	OrderType    string
	Quantity     float64
	Price        *float64
	DeploymentID string
}

// ProviderOrderResult is the normalized response from PlaceOrder.
type ProviderOrderResult struct {
	ProviderOrderID string
	Status          string
}

// ProviderOrderStatus is a polled order status snapshot.
type ProviderOrderStatus struct {
	Status string
}
