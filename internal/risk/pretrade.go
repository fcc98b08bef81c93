package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/platform/metrics"
	"github.com/tradeforge/controlplane/internal/store"
)

// Engine evaluates the pre-trade gate, kill-switch drawdown trigger, and
// writes the risk audit trail.
type Engine struct {
	store store.Store
}

// NewEngine builds a risk Engine over s.
func NewEngine(s store.Store) *Engine {
	return &Engine{store: s}
}

func (e *Engine) validatedPolicy(ctx context.Context, tenantID string) (domain.RiskPolicy, error) {
	policy, err := e.store.GetRiskPolicy(ctx, tenantID)
	if err != nil {
		if err == store.ErrNotFound {
			policy = DefaultPolicy(tenantID)
			if _, putErr := e.store.PutRiskPolicy(ctx, policy); putErr != nil {
				return domain.RiskPolicy{}, apierrors.Internal("failed to seed default risk policy", putErr)
			}
		} else {
			return domain.RiskPolicy{}, apierrors.Internal("failed to load risk policy", err)
		}
	}
	if vErr := ValidatePolicy(policy); vErr != nil {
		return domain.RiskPolicy{}, apierrors.RiskPolicyInvalid(vErr)
	}
	return policy, nil
}

func (e *Engine) ensureKillSwitchNotTriggered(policy domain.RiskPolicy) error {
	if policy.KillSwitch.Enabled && policy.KillSwitch.Triggered {
		return apierrors.RiskKillSwitchActive()
	}
	return nil
}

func limitBreach(message string) error {
	return apierrors.RiskLimitBreach(message)
}

// EnsureDeploymentAllowed implements spec §4.4's deployment-creation gate.
func (e *Engine) EnsureDeploymentAllowed(ctx context.Context, tenantID, userID, requestID string, capital float64) error {
	policy, err := e.validatedPolicy(ctx, tenantID)
	if err != nil {
		return e.audit(ctx, tenantID, userID, requestID, "deployment_create", "", policy, domain.RiskDecisionBlock, "", err)
	}
	if kErr := e.ensureKillSwitchNotTriggered(policy); kErr != nil {
		return e.audit(ctx, tenantID, userID, requestID, "deployment_create", "", policy, domain.RiskDecisionBlock, "kill_switch_active", kErr)
	}

	active, err := e.store.ListActiveDeployments(ctx, tenantID)
	if err != nil {
		return apierrors.Internal("failed to list active deployments", err)
	}
	var activeCapital float64
	for _, d := range active {
		activeCapital += d.Capital
	}
	projected := activeCapital + capital

	if capital > policy.Limits.MaxNotionalUsd {
		bErr := limitBreach(fmt.Sprintf("deployment capital exceeds risk maxNotionalUsd (%v > %v)", capital, policy.Limits.MaxNotionalUsd))
		return e.audit(ctx, tenantID, userID, requestID, "deployment_create", "", policy, domain.RiskDecisionBlock, "capital_exceeds_max_notional", bErr)
	}
	if projected > policy.Limits.MaxNotionalUsd {
		bErr := limitBreach(fmt.Sprintf("projected active deployment capital exceeds risk maxNotionalUsd (%v > %v)", projected, policy.Limits.MaxNotionalUsd))
		return e.audit(ctx, tenantID, userID, requestID, "deployment_create", "", policy, domain.RiskDecisionBlock, "projected_capital_exceeds_max_notional", bErr)
	}

	return e.audit(ctx, tenantID, userID, requestID, "deployment_create", "", policy, domain.RiskDecisionAllow, "", nil)
}

// OrderRequest carries the fields EnsureOrderAllowed needs to compute notional.
type OrderRequest struct {
	Symbol   string
	Quantity float64
	Price    *float64
}

// EnsureOrderAllowed implements spec §4.4's order-placement gate.
func (e *Engine) EnsureOrderAllowed(ctx context.Context, tenantID, userID, requestID string, req OrderRequest) error {
	policy, err := e.validatedPolicy(ctx, tenantID)
	if err != nil {
		return e.audit(ctx, tenantID, userID, requestID, "order_place", "", policy, domain.RiskDecisionBlock, "", err)
	}
	if kErr := e.ensureKillSwitchNotTriggered(policy); kErr != nil {
		return e.audit(ctx, tenantID, userID, requestID, "order_place", "", policy, domain.RiskDecisionBlock, "kill_switch_active", kErr)
	}

	refPrice, err := e.resolveReferencePrice(ctx, tenantID, req)
	if err != nil {
		bErr := limitBreach(fmt.Sprintf("cannot resolve a reference price for %s; notional limits cannot be evaluated", req.Symbol))
		return e.audit(ctx, tenantID, userID, requestID, "order_place", "", policy, domain.RiskDecisionBlock, "reference_price_unresolved", bErr)
	}
	orderNotional := req.Quantity * refPrice

	if orderNotional > policy.Limits.MaxPositionNotionalUsd {
		bErr := limitBreach(fmt.Sprintf("order notional exceeds risk maxPositionNotionalUsd (%v > %v)", orderNotional, policy.Limits.MaxPositionNotionalUsd))
		return e.audit(ctx, tenantID, userID, requestID, "order_place", "", policy, domain.RiskDecisionBlock, "order_notional_exceeds_position_limit", bErr)
	}
	if orderNotional > policy.Limits.MaxNotionalUsd {
		bErr := limitBreach(fmt.Sprintf("order notional exceeds risk maxNotionalUsd (%v > %v)", orderNotional, policy.Limits.MaxNotionalUsd))
		return e.audit(ctx, tenantID, userID, requestID, "order_place", "", policy, domain.RiskDecisionBlock, "order_notional_exceeds_max_notional", bErr)
	}

	portfolios, aggregateNotional, dailyLoss, err := e.portfolioAggregates(ctx, tenantID)
	if err != nil {
		return apierrors.Internal("failed to load portfolio aggregates", err)
	}
	_ = portfolios

	projected := aggregateNotional + orderNotional
	if projected > policy.Limits.MaxNotionalUsd {
		bErr := limitBreach(fmt.Sprintf("projected total notional exceeds risk maxNotionalUsd (%v > %v)", projected, policy.Limits.MaxNotionalUsd))
		return e.audit(ctx, tenantID, userID, requestID, "order_place", "", policy, domain.RiskDecisionBlock, "projected_notional_exceeds_max_notional", bErr)
	}
	if dailyLoss >= policy.Limits.MaxDailyLossUsd {
		bErr := limitBreach(fmt.Sprintf("daily loss limit reached; new orders are blocked (%v >= %v)", dailyLoss, policy.Limits.MaxDailyLossUsd))
		return e.audit(ctx, tenantID, userID, requestID, "order_place", "", policy, domain.RiskDecisionBlock, "daily_loss_limit_reached", bErr)
	}

	return e.audit(ctx, tenantID, userID, requestID, "order_place", "", policy, domain.RiskDecisionAllow, "", nil)
}

func (e *Engine) resolveReferencePrice(ctx context.Context, tenantID string, req OrderRequest) (float64, error) {
	if req.Price != nil {
		return *req.Price, nil
	}
	for _, mode := range []domain.DeploymentMode{domain.ModePaper, domain.ModeLive} {
		p, err := e.store.GetPortfolio(ctx, tenantID, mode)
		if err != nil {
			continue
		}
		for _, pos := range p.Positions {
			if pos.Symbol == req.Symbol {
				return pos.CurrentPrice, nil
			}
		}
	}
	return 0, fmt.Errorf("no open position or explicit price for symbol %q", req.Symbol)
}

func (e *Engine) portfolioAggregates(ctx context.Context, tenantID string) ([]domain.Portfolio, float64, float64, error) {
	var aggregateNotional, dailyLoss float64
	var portfolios []domain.Portfolio
	for _, mode := range []domain.DeploymentMode{domain.ModePaper, domain.ModeLive} {
		p, err := e.store.GetPortfolio(ctx, tenantID, mode)
		if err != nil {
			continue
		}
		portfolios = append(portfolios, p)
		for _, pos := range p.Positions {
			aggregateNotional += abs(pos.Quantity * pos.CurrentPrice)
		}
		if p.PnlTotal < 0 {
			dailyLoss += -p.PnlTotal
		}
	}
	return portfolios, aggregateNotional, dailyLoss, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// EvaluateKillSwitch implements the drawdown evaluation opportunistically run
// on deployment reads (spec §4.4). It mutates and persists the policy if the
// drawdown threshold is crossed, returning true if it triggered.
func (e *Engine) EvaluateKillSwitch(ctx context.Context, tenantID string, deployment domain.Deployment, now time.Time) (bool, domain.RiskPolicy, error) {
	policy, err := e.store.GetRiskPolicy(ctx, tenantID)
	if err != nil {
		if err == store.ErrNotFound {
			return false, domain.RiskPolicy{}, nil
		}
		return false, domain.RiskPolicy{}, apierrors.Internal("failed to load risk policy", err)
	}
	if policy.Mode != domain.RiskModeEnforced || !policy.KillSwitch.Enabled || policy.KillSwitch.Triggered {
		return false, policy, nil
	}
	if deployment.LatestPnl == nil || deployment.Capital <= 0 {
		return false, policy, nil
	}
	drawdownPct := abs(*deployment.LatestPnl) / deployment.Capital * 100
	if drawdownPct < policy.Limits.MaxDrawdownPct {
		return false, policy, nil
	}

	triggeredAt := now.UTC()
	reason := fmt.Sprintf("deployment %s breached max drawdown: %.2f%% >= %.2f%%", deployment.ID, drawdownPct, policy.Limits.MaxDrawdownPct)
	policy.KillSwitch.Triggered = true
	policy.KillSwitch.TriggeredAt = &triggeredAt
	policy.KillSwitch.Reason = reason

	updated, err := e.store.PutRiskPolicy(ctx, policy)
	if err != nil {
		return false, policy, apierrors.Internal("failed to persist kill-switch trigger", err)
	}
	metrics.SetKillSwitchActive(tenantID, true)
	return true, updated, nil
}

func (e *Engine) audit(ctx context.Context, tenantID, userID, requestID, checkType, resourceID string, policy domain.RiskPolicy, decision domain.RiskAuditDecision, outcomeCode string, cause error) error {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	metricOutcome := "allow"
	if decision == domain.RiskDecisionBlock {
		metricOutcome = outcomeCode
		if metricOutcome == "" {
			metricOutcome = "blocked"
		}
	}
	metrics.RecordRiskDecision(metricOutcome)

	_, auditErr := e.store.AppendRiskAudit(ctx, domain.RiskAuditRecord{
		Decision:      decision,
		CheckType:     checkType,
		ResourceType:  "deployment",
		ResourceID:    resourceID,
		PolicyVersion: policy.Version,
		PolicyMode:    policy.Mode,
		OutcomeCode:   outcomeCode,
		Reason:        reason,
		RequestID:     requestID,
		TenantID:      tenantID,
		UserID:        userID,
	})
	if auditErr != nil && cause == nil {
		return apierrors.Internal("failed to record risk audit", auditErr)
	}
	return cause
}
