// Package app wires every domain service into a single dependency-injected
// Application, built once at startup. There is no package-level mutable
// state outside of it.
package app

import (
	"time"

	"github.com/tradeforge/controlplane/internal/dataset"
	"github.com/tradeforge/controlplane/internal/execution"
	"github.com/tradeforge/controlplane/internal/identity"
	"github.com/tradeforge/controlplane/internal/idempotency"
	"github.com/tradeforge/controlplane/internal/knowledge"
	"github.com/tradeforge/controlplane/internal/orchestrator"
	"github.com/tradeforge/controlplane/internal/platform/logger"
	"github.com/tradeforge/controlplane/internal/reconcile"
	"github.com/tradeforge/controlplane/internal/research"
	"github.com/tradeforge/controlplane/internal/risk"
	"github.com/tradeforge/controlplane/internal/store"
)

// Application bundles every service the HTTP layer and background
// schedulers depend on.
type Application struct {
	Store store.Store
	Log   *logger.Logger

	Identity   *identity.Resolver
	Idempotent *idempotency.Cache
	Risk       *risk.Engine
	Commands   *execution.CommandService
	Reconcile  *reconcile.Service
	Queue      *orchestrator.Queue
	Retry      *orchestrator.RetryBudget
	Knowledge  *knowledge.Service
	Datasets   *dataset.Bridge
	Research   *research.Guard
}

// Option customizes an Application during New.
type Option func(*Application)

// WithPublisher overrides the dataset publisher (default dataset.StaticPublisher).
func WithPublisher(p dataset.Publisher) Option {
	return func(a *Application) {
		a.Datasets = dataset.New(a.Store, p)
	}
}

// WithRetryPolicy overrides the default orchestrator retry budget policy.
func WithRetryPolicy(policy orchestrator.RetryBudgetPolicy) Option {
	return func(a *Application) {
		a.Retry = orchestrator.NewRetryBudget(policy)
	}
}

// New builds an Application over s, using adapter for execution commands and
// reconciliation polling, reconcileMinInterval as the per-(tenant,resource)
// reconciliation throttle, and log for structured logging.
func New(s store.Store, adapter execution.LiveEngineAdapter, log *logger.Logger, jwtSecret string, reconcileMinInterval time.Duration, opts ...Option) *Application {
	idempotent := idempotency.New(s)
	a := &Application{
		Store:      s,
		Log:        log,
		Identity:   identity.NewResolver(jwtSecret),
		Idempotent: idempotent,
		Risk:       risk.NewEngine(s),
		Commands:   execution.NewCommandService(adapter, idempotent),
		Reconcile:  reconcile.New(s, adapter, log, reconcileMinInterval),
		Queue:      orchestrator.New(s),
		Retry:      orchestrator.NewRetryBudget(orchestrator.DefaultRetryBudgetPolicy()),
		Knowledge:  knowledge.New(s),
		Datasets:   dataset.New(s, dataset.StaticPublisher{}),
		Research:   research.New(s),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}
