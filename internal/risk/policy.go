// Package risk implements the schema-validated risk policy document, the
// pre-trade gate, drawdown kill-switch evaluation, and the audit trail.
package risk

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/tradeforge/controlplane/internal/domain"
)

const policyVersion = "risk-policy.v1"

// ValidatePolicy enforces schema `risk-policy.v1` strictly: non-negative
// limits, drawdown in [0,100], non-empty/unique actionsOnBreach, and
// maxPositionNotionalUsd <= maxNotionalUsd. Every violation is collected so
// the caller sees the complete set of problems in one error.
func ValidatePolicy(p domain.RiskPolicy) error {
	var result *multierror.Error

	if p.Version != policyVersion {
		result = multierror.Append(result, fmt.Errorf("version must be %q, got %q", policyVersion, p.Version))
	}
	if p.Mode != domain.RiskModeAdvisory && p.Mode != domain.RiskModeEnforced {
		result = multierror.Append(result, fmt.Errorf("mode must be advisory or enforced, got %q", p.Mode))
	}
	if p.Limits.MaxNotionalUsd < 0 {
		result = multierror.Append(result, fmt.Errorf("limits.maxNotionalUsd must be non-negative"))
	}
	if p.Limits.MaxPositionNotionalUsd < 0 {
		result = multierror.Append(result, fmt.Errorf("limits.maxPositionNotionalUsd must be non-negative"))
	}
	if p.Limits.MaxDailyLossUsd < 0 {
		result = multierror.Append(result, fmt.Errorf("limits.maxDailyLossUsd must be non-negative"))
	}
	if p.Limits.MaxDrawdownPct < 0 || p.Limits.MaxDrawdownPct > 100 {
		result = multierror.Append(result, fmt.Errorf("limits.maxDrawdownPct must be in [0,100], got %v", p.Limits.MaxDrawdownPct))
	}
	if p.Limits.MaxPositionNotionalUsd > p.Limits.MaxNotionalUsd {
		result = multierror.Append(result, fmt.Errorf("limits.maxPositionNotionalUsd (%v) must not exceed limits.maxNotionalUsd (%v)",
			p.Limits.MaxPositionNotionalUsd, p.Limits.MaxNotionalUsd))
	}
	if len(p.ActionsOnBreach) == 0 {
		result = multierror.Append(result, fmt.Errorf("actionsOnBreach must be non-empty"))
	}
	seen := make(map[string]bool, len(p.ActionsOnBreach))
	for _, a := range p.ActionsOnBreach {
		if seen[a] {
			result = multierror.Append(result, fmt.Errorf("actionsOnBreach contains duplicate %q", a))
		}
		seen[a] = true
	}

	if result != nil {
		return result.ErrorOrNil()
	}
	return nil
}

// DefaultPolicy returns a permissive, schema-valid starting policy for a
// tenant that has not configured one explicitly.
func DefaultPolicy(tenantID string) domain.RiskPolicy {
	return domain.RiskPolicy{
		Version:  policyVersion,
		TenantID: tenantID,
		Mode:     domain.RiskModeEnforced,
		Limits: domain.RiskLimits{
			MaxNotionalUsd:         100000,
			MaxPositionNotionalUsd: 50000,
			MaxDrawdownPct:         20,
			MaxDailyLossUsd:        10000,
		},
		KillSwitch:      domain.KillSwitch{Enabled: true},
		ActionsOnBreach: []string{"block", "notify"},
	}
}
