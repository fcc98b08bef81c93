package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// LiveEngineHTTPAdapter talks to the external live-execution engine over
// HTTP. Responses are untyped at the wire; fields are pulled out with gjson
// before being mapped onto the normalized result structs defined in adapter.go.
type LiveEngineHTTPAdapter struct {
	baseURL string
	client  *http.Client
}

// NewLiveEngineHTTPAdapter builds an adapter with the given base URL and
// request deadline.
func NewLiveEngineHTTPAdapter(baseURL string, timeout time.Duration) *LiveEngineHTTPAdapter {
	return &LiveEngineHTTPAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

var _ LiveEngineAdapter = (*LiveEngineHTTPAdapter)(nil)

func (a *LiveEngineHTTPAdapter) CreateDeployment(ctx context.Context, req CreateDeploymentRequest) (ProviderDeploymentResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ProviderDeploymentResult{}, &AdapterError{Code: "LIVE_ENGINE_BAD_REQUEST", StatusCode: 400, Message: "failed to encode request", Err: err}
	}
	raw, err := a.post(ctx, "/deployments", body)
	if err != nil {
		return ProviderDeploymentResult{}, err
	}
	if !gjson.ValidBytes(raw) {
		return ProviderDeploymentResult{}, &AdapterError{Code: "LIVE_ENGINE_BAD_RESPONSE_JSON", StatusCode: 502, Message: "live engine returned invalid JSON"}
	}
	parsed := gjson.ParseBytes(raw)
	return ProviderDeploymentResult{
		ProviderRefID: parsed.Get("providerRefId").String(),
		Status:        parsed.Get("status").String(),
	}, nil
}

func (a *LiveEngineHTTPAdapter) StopDeployment(ctx context.Context, providerRefID string) error {
	_, err := a.post(ctx, fmt.Sprintf("/deployments/%s/stop", providerRefID), nil)
	return err
}

func (a *LiveEngineHTTPAdapter) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (ProviderOrderResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ProviderOrderResult{}, &AdapterError{Code: "LIVE_ENGINE_BAD_REQUEST", StatusCode: 400, Message: "failed to encode request", Err: err}
	}
	raw, err := a.post(ctx, "/orders", body)
	if err != nil {
		return ProviderOrderResult{}, err
	}
	if !gjson.ValidBytes(raw) {
		return ProviderOrderResult{}, &AdapterError{Code: "LIVE_ENGINE_BAD_RESPONSE_JSON", StatusCode: 502, Message: "live engine returned invalid JSON"}
	}
	parsed := gjson.ParseBytes(raw)
	return ProviderOrderResult{
		ProviderOrderID: parsed.Get("providerOrderId").String(),
		Status:          parsed.Get("status").String(),
	}, nil
}

func (a *LiveEngineHTTPAdapter) CancelOrder(ctx context.Context, providerOrderID string) error {
	_, err := a.post(ctx, fmt.Sprintf("/orders/%s/cancel", providerOrderID), nil)
	return err
}

func (a *LiveEngineHTTPAdapter) GetDeploymentStatus(ctx context.Context, providerRefID string) (ProviderDeploymentStatus, error) {
	raw, err := a.get(ctx, fmt.Sprintf("/deployments/%s", providerRefID))
	if err != nil {
		return ProviderDeploymentStatus{}, err
	}
	if !gjson.ValidBytes(raw) {
		return ProviderDeploymentStatus{}, &AdapterError{Code: "LIVE_ENGINE_BAD_RESPONSE_JSON", StatusCode: 502, Message: "live engine returned invalid JSON"}
	}
	parsed := gjson.ParseBytes(raw)
	status := ProviderDeploymentStatus{Status: parsed.Get("status").String()}
	if pnl := parsed.Get("latestPnl"); pnl.Exists() && pnl.Type == gjson.Number {
		v := pnl.Float()
		status.LatestPnl = &v
	}
	return status, nil
}

func (a *LiveEngineHTTPAdapter) GetOrderStatus(ctx context.Context, providerOrderID string) (ProviderOrderStatus, error) {
	raw, err := a.get(ctx, fmt.Sprintf("/orders/%s", providerOrderID))
	if err != nil {
		return ProviderOrderStatus{}, err
	}
	if !gjson.ValidBytes(raw) {
		return ProviderOrderStatus{}, &AdapterError{Code: "LIVE_ENGINE_BAD_RESPONSE_JSON", StatusCode: 502, Message: "live engine returned invalid JSON"}
	}
	return ProviderOrderStatus{Status: gjson.GetBytes(raw, "status").String()}, nil
}

func (a *LiveEngineHTTPAdapter) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &AdapterError{Code: "LIVE_ENGINE_REQUEST_FAILED", StatusCode: 502, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req)
}

func (a *LiveEngineHTTPAdapter) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, &AdapterError{Code: "LIVE_ENGINE_REQUEST_FAILED", StatusCode: 502, Message: "failed to build request", Err: err}
	}
	return a.do(req)
}

func (a *LiveEngineHTTPAdapter) do(req *http.Request) ([]byte, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &AdapterError{Code: "LIVE_ENGINE_UNREACHABLE", StatusCode: 502, Message: "live engine unreachable", Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AdapterError{Code: "LIVE_ENGINE_READ_FAILED", StatusCode: 502, Message: "failed to read live engine response", Err: err}
	}
	if resp.StatusCode >= 400 {
		return nil, &AdapterError{Code: "LIVE_ENGINE_ERROR_STATUS", StatusCode: 502, Message: fmt.Sprintf("live engine returned status %d", resp.StatusCode)}
	}
	return raw, nil
}
