package execution

import (
	"context"
	"encoding/json"

	"github.com/tradeforge/controlplane/internal/idempotency"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
)

// CommandService is the only component permitted to issue side effects to
// the execution provider. It canonicalizes payloads, checks the idempotency
// cache, delegates to the adapter, and caches the result — it never mutates
// entity state directly; callers apply the returned result to the store.
type CommandService struct {
	adapter    LiveEngineAdapter
	idempotent *idempotency.Cache
}

// NewCommandService builds a CommandService.
func NewCommandService(adapter LiveEngineAdapter, cache *idempotency.Cache) *CommandService {
	return &CommandService{adapter: adapter, idempotent: cache}
}

const (
	scopeDeployments = "execution_commands_deployments"
	scopeOrders      = "execution_commands_orders"
)

// CreateDeployment checks idempotency, calls the adapter, and caches the
// result keyed by idempotencyKey. replayed is true when a cached response for
// the same (scope,key,payload) was returned instead of executing.
func (s *CommandService) CreateDeployment(ctx context.Context, idempotencyKey string, req CreateDeploymentRequest) (result ProviderDeploymentResult, replayed bool, err error) {
	if idempotencyKey != "" {
		hit, lookupErr := s.idempotent.Lookup(ctx, scopeDeployments, idempotencyKey, req)
		if lookupErr != nil {
			return ProviderDeploymentResult{}, false, lookupErr
		}
		if hit.Replayed {
			var cached ProviderDeploymentResult
			if jsonErr := json.Unmarshal(hit.Body, &cached); jsonErr != nil {
				return ProviderDeploymentResult{}, false, apierrors.Internal("failed to decode replayed deployment response", jsonErr)
			}
			return cached, true, nil
		}
	}

	result, err = s.adapter.CreateDeployment(ctx, req)
	if err != nil {
		return ProviderDeploymentResult{}, false, toPlatformError(err)
	}
	if idempotencyKey != "" {
		body, _ := json.Marshal(result)
		if storeErr := s.idempotent.Store(ctx, scopeDeployments, idempotencyKey, req, 202, body); storeErr != nil {
			return result, false, storeErr
		}
	}
	return result, false, nil
}

// StopDeployment issues a stop command (not cached; idempotent by nature at
// the provider, per spec only create commands carry an Idempotency-Key).
func (s *CommandService) StopDeployment(ctx context.Context, providerRefID string) error {
	if err := s.adapter.StopDeployment(ctx, providerRefID); err != nil {
		return toPlatformError(err)
	}
	return nil
}

// PlaceOrder mirrors CreateDeployment's idempotency handling for order placement.
func (s *CommandService) PlaceOrder(ctx context.Context, idempotencyKey string, req PlaceOrderRequest) (result ProviderOrderResult, replayed bool, err error) {
	if idempotencyKey != "" {
		hit, lookupErr := s.idempotent.Lookup(ctx, scopeOrders, idempotencyKey, req)
		if lookupErr != nil {
			return ProviderOrderResult{}, false, lookupErr
		}
		if hit.Replayed {
			var cached ProviderOrderResult
			if jsonErr := json.Unmarshal(hit.Body, &cached); jsonErr != nil {
				return ProviderOrderResult{}, false, apierrors.Internal("failed to decode replayed order response", jsonErr)
			}
			return cached, true, nil
		}
	}

	result, err = s.adapter.PlaceOrder(ctx, req)
	if err != nil {
		return ProviderOrderResult{}, false, toPlatformError(err)
	}
	if idempotencyKey != "" {
		body, _ := json.Marshal(result)
		if storeErr := s.idempotent.Store(ctx, scopeOrders, idempotencyKey, req, 202, body); storeErr != nil {
			return result, false, storeErr
		}
	}
	return result, false, nil
}

// CancelOrder issues a cancel command.
func (s *CommandService) CancelOrder(ctx context.Context, providerOrderID string) error {
	if err := s.adapter.CancelOrder(ctx, providerOrderID); err != nil {
		return toPlatformError(err)
	}
	return nil
}

// toPlatformError converts an AdapterError into a PlatformAPIError preserving
// code and status, per spec §4.11.
func toPlatformError(err error) error {
	if adapterErr, ok := err.(*AdapterError); ok {
		return apierrors.Wrap(apierrors.Code(adapterErr.Code), adapterErr.StatusCode, adapterErr.Message, adapterErr.Err)
	}
	return apierrors.Internal("unexpected adapter failure", err)
}
