// Package httpapi mounts the versioned HTTP surface over internal/app's
// services: middleware chain, identity resolution, and one handler file per
// resource family.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradeforge/controlplane/internal/app"
	"github.com/tradeforge/controlplane/internal/platform/httpmw"
	"github.com/tradeforge/controlplane/internal/platform/metrics"
)

// instrumented wraps fn with request counters/duration labeled by pattern,
// the chi route pattern it is mounted under (not the raw path).
func instrumented(pattern string, fn http.HandlerFunc) http.HandlerFunc {
	wrapped := metrics.InstrumentHandler(pattern, fn)
	return wrapped.ServeHTTP
}

// NewRouter builds the full HTTP surface: ambient endpoints unauthenticated,
// /v1 and /v2 behind the identity + rate-limit middleware chain.
func NewRouter(a *app.Application, allowedOrigins []string) http.Handler {
	h := &handler{app: a}
	limiter := httpmw.NewTenantRateLimiter(0, 0)

	r := chi.NewRouter()
	r.Use(httpmw.RequestID)
	r.Use(httpmw.Recovery(a.Log))
	r.Use(httpmw.Logging(a.Log))
	r.Use(httpmw.CORS(allowedOrigins))

	r.Get("/healthz", instrumented("/healthz", h.healthz))
	r.Get("/system/status", instrumented("/system/status", h.systemStatus))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(limiter.Handler)
		v1.Use(h.authenticate)

		v1.Route("/strategies", func(sr chi.Router) {
			sr.Post("/", instrumented("/v1/strategies", h.createStrategy))
			sr.Get("/", instrumented("/v1/strategies", h.listStrategies))
			sr.Get("/{id}", instrumented("/v1/strategies/{id}", h.getStrategy))
			sr.Get("/{id}/backtests", instrumented("/v1/strategies/{id}/backtests", h.listBacktestsForStrategy))
			sr.Post("/{id}/backtests", instrumented("/v1/strategies/{id}/backtests", h.createBacktest))
		})
		v1.Route("/backtests", func(br chi.Router) {
			br.Get("/{id}", instrumented("/v1/backtests/{id}", h.getBacktest))
			br.Put("/{id}/status", instrumented("/v1/backtests/{id}/status", h.updateBacktestStatus))
		})
		v1.Route("/deployments", func(dr chi.Router) {
			dr.Post("/", instrumented("/v1/deployments", h.createDeployment))
			dr.Get("/", instrumented("/v1/deployments", h.listDeployments))
			dr.Get("/{id}", instrumented("/v1/deployments/{id}", h.getDeployment))
			dr.Post("/{id}/stop", instrumented("/v1/deployments/{id}/stop", h.stopDeployment))
		})
		v1.Route("/orders", func(or chi.Router) {
			or.Post("/", instrumented("/v1/orders", h.createOrder))
			or.Get("/", instrumented("/v1/orders", h.listOrders))
			or.Get("/{id}", instrumented("/v1/orders/{id}", h.getOrder))
			or.Post("/{id}/cancel", instrumented("/v1/orders/{id}/cancel", h.cancelOrder))
		})
		v1.Get("/portfolios/{mode}", instrumented("/v1/portfolios/{mode}", h.getPortfolio))

		v1.Route("/datasets", func(dr chi.Router) {
			dr.Post("/", instrumented("/v1/datasets", h.createDataset))
			dr.Get("/{id}", instrumented("/v1/datasets/{id}", h.getDataset))
			dr.Post("/{id}/publish", instrumented("/v1/datasets/{id}/publish", h.publishDataset))
		})

		v1.Route("/risk-policy", func(rr chi.Router) {
			rr.Get("/", instrumented("/v1/risk-policy", h.getRiskPolicy))
			rr.Put("/", instrumented("/v1/risk-policy", h.putRiskPolicy))
		})
		v1.Get("/risk-audit", instrumented("/v1/risk-audit", h.listRiskAudit))

		v1.Route("/orchestrator", func(orr chi.Router) {
			orr.Post("/runs", instrumented("/v1/orchestrator/runs", h.enqueueRun))
			orr.Post("/runs/dequeue", instrumented("/v1/orchestrator/runs/dequeue", h.dequeueRun))
			orr.Get("/runs/{id}", instrumented("/v1/orchestrator/runs/{id}", h.getRun))
			orr.Post("/runs/{id}/awaiting-tool", instrumented("/v1/orchestrator/runs/{id}/awaiting-tool", h.markAwaitingTool))
			orr.Post("/runs/{id}/awaiting-user-confirmation", instrumented("/v1/orchestrator/runs/{id}/awaiting-user-confirmation", h.markAwaitingUserConfirmation))
			orr.Post("/runs/{id}/resume", instrumented("/v1/orchestrator/runs/{id}/resume", h.resumeRun))
			orr.Post("/runs/{id}/complete", instrumented("/v1/orchestrator/runs/{id}/complete", h.completeRun))
			orr.Post("/runs/{id}/fail", instrumented("/v1/orchestrator/runs/{id}/fail", h.failRun))
			orr.Post("/runs/{id}/cancel", instrumented("/v1/orchestrator/runs/{id}/cancel", h.cancelRun))
			orr.Get("/trace", instrumented("/v1/orchestrator/trace", h.getTrace))
		})

		v1.Get("/drift-events", instrumented("/v1/drift-events", h.listDriftEvents))
	})

	r.Route("/v2", func(v2 chi.Router) {
		v2.Use(limiter.Handler)
		v2.Use(h.authenticate)

		v2.Get("/knowledge/search", instrumented("/v2/knowledge/search", h.searchKnowledge))
		v2.Get("/knowledge/patterns", instrumented("/v2/knowledge/patterns", h.listPatterns))
		v2.Get("/knowledge/regimes/{asset}", instrumented("/v2/knowledge/regimes/{asset}", h.getOpenRegime))

		v2.Post("/research/market-scan", instrumented("/v2/research/market-scan", h.marketScan))

		v2.Post("/data/backtest-exports", instrumented("/v2/data/backtest-exports", h.createBacktestExport))
		v2.Get("/data/backtest-exports/{id}", instrumented("/v2/data/backtest-exports/{id}", h.getBacktestExport))

		v2.Post("/replay/evaluate", instrumented("/v2/replay/evaluate", h.evaluateReplay))
	})

	return r
}
