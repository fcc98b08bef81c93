package fsm

import "github.com/tradeforge/controlplane/internal/domain"

// Deployment is the deployment lifecycle machine.
var Deployment = newMachine("deployment",
	map[domain.DeploymentStatus]bool{
		domain.DeploymentQueued: true, domain.DeploymentRunning: true, domain.DeploymentPaused: true,
		domain.DeploymentStopping: true, domain.DeploymentStopped: true, domain.DeploymentFailed: true,
	},
	map[domain.DeploymentStatus]map[domain.DeploymentStatus]bool{
		domain.DeploymentQueued:   {domain.DeploymentRunning: true, domain.DeploymentFailed: true, domain.DeploymentStopped: true},
		domain.DeploymentRunning:  {domain.DeploymentPaused: true, domain.DeploymentStopping: true, domain.DeploymentStopped: true, domain.DeploymentFailed: true},
		domain.DeploymentPaused:   {domain.DeploymentRunning: true, domain.DeploymentStopping: true, domain.DeploymentStopped: true, domain.DeploymentFailed: true},
		domain.DeploymentStopping: {domain.DeploymentStopped: true, domain.DeploymentFailed: true},
	},
	map[domain.DeploymentStatus]bool{domain.DeploymentStopped: true, domain.DeploymentFailed: true},
)

// MapProviderDeploymentStatus normalizes a provider-reported status string
// into an internal DeploymentStatus.
func MapProviderDeploymentStatus(raw string) domain.DeploymentStatus {
	switch raw {
	case "active", "running":
		return domain.DeploymentRunning
	case "halting", "stopping":
		return domain.DeploymentStopping
	case "terminated", "stopped":
		return domain.DeploymentStopped
	case "error", "failed":
		return domain.DeploymentFailed
	default:
		return domain.DeploymentFailed
	}
}

// ApplyProviderDeploymentStatus maps raw to an internal target state and
// reconciles it against current: if the target isn't reachable from current,
// current is preserved unless the target is "failed".
func ApplyProviderDeploymentStatus(current domain.DeploymentStatus, raw string) domain.DeploymentStatus {
	target := MapProviderDeploymentStatus(raw)
	if next, err := Deployment.Transition(current, target); err == nil {
		return next
	}
	if target == domain.DeploymentFailed {
		return domain.DeploymentFailed
	}
	return current
}

// ActiveDeploymentStatuses are the states counted toward capital-limit gates.
var ActiveDeploymentStatuses = map[domain.DeploymentStatus]bool{
	domain.DeploymentQueued: true, domain.DeploymentRunning: true, domain.DeploymentPaused: true,
}
