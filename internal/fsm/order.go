package fsm

import "github.com/tradeforge/controlplane/internal/domain"

// Order is the order lifecycle machine.
var Order = newMachine("order",
	map[domain.OrderStatus]bool{
		domain.OrderPending: true, domain.OrderFilled: true, domain.OrderCancelled: true, domain.OrderFailed: true,
	},
	map[domain.OrderStatus]map[domain.OrderStatus]bool{
		domain.OrderPending: {domain.OrderFilled: true, domain.OrderCancelled: true, domain.OrderFailed: true},
	},
	map[domain.OrderStatus]bool{domain.OrderFilled: true, domain.OrderCancelled: true, domain.OrderFailed: true},
)

// MapProviderOrderStatus normalizes a provider-reported order status string.
// filled/executed -> filled; rejected/error/failed -> failed; any
// cancel(ed/led) spelling -> cancelled; pending/open/working/partially_filled
// stay pending (the order is still live at the provider, so this is a no-op
// transition); an unrecognized string falls through to failed, since it is
// not a status this machine knows how to treat as still-open.
func MapProviderOrderStatus(raw string) domain.OrderStatus {
	switch raw {
	case "filled", "fill", "executed":
		return domain.OrderFilled
	case "rejected", "error", "failed":
		return domain.OrderFailed
	case "cancelled", "canceled":
		return domain.OrderCancelled
	case "pending", "open", "working", "partially_filled":
		return domain.OrderPending
	default:
		return domain.OrderFailed
	}
}

// ApplyProviderOrderStatus maps raw to a target state and transitions current
// toward it, preserving current if the move is invalid (e.g. current is
// already terminal).
func ApplyProviderOrderStatus(current domain.OrderStatus, raw string) domain.OrderStatus {
	target := MapProviderOrderStatus(raw)
	if next, err := Order.Transition(current, target); err == nil {
		return next
	}
	return current
}
