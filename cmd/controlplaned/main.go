package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tradeforge/controlplane/internal/app"
	"github.com/tradeforge/controlplane/internal/execution"
	"github.com/tradeforge/controlplane/internal/httpapi"
	"github.com/tradeforge/controlplane/internal/platform/config"
	"github.com/tradeforge/controlplane/internal/platform/logger"
	"github.com/tradeforge/controlplane/internal/store"
	"github.com/tradeforge/controlplane/internal/store/memory"
	"github.com/tradeforge/controlplane/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Infof("starting controlplaned: %s", cfg.String())

	var s store.Store
	if cfg.UsesDurableStore() {
		pgStore, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("connect to postgres: %v", err)
		}
		s = pgStore
	} else {
		s = memory.New()
		log.Warn("no DATABASE_URL configured; running with in-memory storage")
	}

	adapter := execution.NewLiveEngineHTTPAdapter(liveEngineBaseURL(), cfg.LiveEngineTimeout)
	application := app.New(s, adapter, log, cfg.JWTSecret, cfg.ReconcileInterval)

	router := httpapi.NewRouter(application, allowedOrigins())
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	scheduler := cron.New()
	spec := fmt.Sprintf("@every %s", cfg.ReconcileInterval)
	if _, err := scheduler.AddFunc(spec, func() { runReconciliation(application) }); err != nil {
		log.Fatalf("schedule reconciliation: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	go func() {
		log.Infof("http server listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown: %v", err)
	}
}

// systemReconcileUser tags drift events and audit metadata produced by the
// background sweep rather than a request on behalf of an authenticated user.
const systemReconcileUser = "system-scheduler"

// runReconciliation sweeps every tenant the store has observed and converges
// their active deployments and orders against provider state, independent of
// any tenant actively polling the HTTP surface (which also reconciles
// opportunistically on read).
func runReconciliation(a *app.Application) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tenantIDs, err := a.Store.ListTenantIDs(ctx)
	if err != nil {
		a.Log.WithContext(ctx).WithError(err).Warn("reconciliation sweep: failed to list tenants")
		return
	}
	for _, tenantID := range tenantIDs {
		if err := a.Reconcile.ReconcileDeployments(ctx, tenantID, systemReconcileUser); err != nil {
			a.Log.WithContext(ctx).WithField("tenantId", tenantID).WithError(err).Warn("scheduled deployment reconciliation failed")
		}
		if err := a.Reconcile.ReconcileOrders(ctx, tenantID, systemReconcileUser); err != nil {
			a.Log.WithContext(ctx).WithField("tenantId", tenantID).WithError(err).Warn("scheduled order reconciliation failed")
		}
	}
}

func liveEngineBaseURL() string {
	if v := strings.TrimSpace(os.Getenv("LIVE_ENGINE_BASE_URL")); v != "" {
		return v
	}
	return "http://localhost:9090"
}

func allowedOrigins() []string {
	raw := strings.TrimSpace(os.Getenv("CONTROLPLANE_ALLOWED_ORIGINS"))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
