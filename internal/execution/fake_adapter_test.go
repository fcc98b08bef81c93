package execution

import "context"

// fakeAdapter is a minimal in-memory LiveEngineAdapter for command service tests.
type fakeAdapter struct {
	deploymentCalls int
	orderCalls      int
	nextDeploymentRef string
	nextOrderRef      string
}

var _ LiveEngineAdapter = (*fakeAdapter)(nil)

func (f *fakeAdapter) CreateDeployment(_ context.Context, _ CreateDeploymentRequest) (ProviderDeploymentResult, error) {
	f.deploymentCalls++
	ref := f.nextDeploymentRef
	if ref == "" {
		ref = "provider-deployment-1"
	}
	return ProviderDeploymentResult{ProviderRefID: ref, Status: "queued"}, nil
}

func (f *fakeAdapter) StopDeployment(_ context.Context, _ string) error { return nil }

func (f *fakeAdapter) PlaceOrder(_ context.Context, _ PlaceOrderRequest) (ProviderOrderResult, error) {
	f.orderCalls++
	ref := f.nextOrderRef
	if ref == "" {
		ref = "provider-order-1"
	}
	return ProviderOrderResult{ProviderOrderID: ref, Status: "pending"}, nil
}

func (f *fakeAdapter) CancelOrder(_ context.Context, _ string) error { return nil }

func (f *fakeAdapter) GetDeploymentStatus(_ context.Context, _ string) (ProviderDeploymentStatus, error) {
	return ProviderDeploymentStatus{Status: "running"}, nil
}

func (f *fakeAdapter) GetOrderStatus(_ context.Context, _ string) (ProviderOrderStatus, error) {
	return ProviderOrderStatus{Status: "filled"}, nil
}
