package postgres

import (
	"testing"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/store"
)

func TestStoreIntegration(t *testing.T) {
	s, ctx := newTestStore(t)

	id, err := s.NextID(ctx, "strategy")
	if err != nil {
		t.Fatalf("next id: %v", err)
	}

	st, err := s.CreateStrategy(ctx, domain.Strategy{ID: id, TenantID: "tenant-a", UserID: "user-1", Name: "s1"})
	if err != nil {
		t.Fatalf("create strategy: %v", err)
	}
	if st.CreatedAt.IsZero() || st.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set")
	}

	if _, err := s.GetStrategy(ctx, "tenant-b", id); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}

	got, err := s.GetStrategy(ctx, "tenant-a", id)
	if err != nil {
		t.Fatalf("get strategy: %v", err)
	}
	if got.Name != "s1" {
		t.Fatalf("unexpected name: %q", got.Name)
	}

	tenants, err := s.ListTenantIDs(ctx)
	if err != nil {
		t.Fatalf("list tenants: %v", err)
	}
	found := false
	for _, tid := range tenants {
		if tid == "tenant-a" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected tenant-a to be registered, got %v", tenants)
	}

	running, err := s.CreateDeployment(ctx, domain.Deployment{ID: "d1", TenantID: "tenant-a", Status: domain.DeploymentRunning})
	if err != nil {
		t.Fatalf("create deployment: %v", err)
	}
	if _, err := s.CreateDeployment(ctx, domain.Deployment{ID: "d2", TenantID: "tenant-a", Status: domain.DeploymentStopped}); err != nil {
		t.Fatalf("create stopped deployment: %v", err)
	}

	active, err := s.ListActiveDeployments(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("list active deployments: %v", err)
	}
	if len(active) != 1 || active[0].ID != running.ID {
		t.Fatalf("expected only the running deployment, got %+v", active)
	}

	entry := domain.IdempotencyEntry{Scope: "execution_commands_deployments", Key: "k1", PayloadFingerprint: "fp1"}
	stored, won, err := s.PutIdempotencyIfAbsent(ctx, entry)
	if err != nil {
		t.Fatalf("put idempotency: %v", err)
	}
	if !won || stored.PayloadFingerprint != "fp1" {
		t.Fatalf("expected first writer to win, got won=%v stored=%+v", won, stored)
	}

	conflict := domain.IdempotencyEntry{Scope: "execution_commands_deployments", Key: "k1", PayloadFingerprint: "fp2"}
	existing, won, err := s.PutIdempotencyIfAbsent(ctx, conflict)
	if err != nil {
		t.Fatalf("put conflicting idempotency: %v", err)
	}
	if won || existing.PayloadFingerprint != "fp1" {
		t.Fatalf("expected conflicting writer to lose, got won=%v existing=%+v", won, existing)
	}

	record := domain.RiskAuditRecord{TenantID: "tenant-a", Decision: domain.RiskDecisionAllow}
	auditFirst, err := s.AppendRiskAudit(ctx, record)
	if err != nil {
		t.Fatalf("append risk audit: %v", err)
	}
	auditSecond, err := s.AppendRiskAudit(ctx, record)
	if err != nil {
		t.Fatalf("append second risk audit: %v", err)
	}
	if auditFirst.ID == "" || auditSecond.ID == "" || auditFirst.ID == auditSecond.ID {
		t.Fatalf("expected distinct self-allocated ids, got %q and %q", auditFirst.ID, auditSecond.ID)
	}

	audits, err := s.ListRiskAudit(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("list risk audit: %v", err)
	}
	if len(audits) != 2 {
		t.Fatalf("expected two audit records, got %d", len(audits))
	}
}
