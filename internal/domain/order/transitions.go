package order

import (
	"fmt"
	"slices"

	"github.com/example/ec-storefront/internal/domain/orderstatus"
)

var (
	fulfillment = []orderstatus.Status{
		orderstatus.OrderPlaced, orderstatus.Processing, orderstatus.Shipped, orderstatus.Delivered,
	}
	returns = []orderstatus.Status{
		orderstatus.Delivered, orderstatus.ReturnAccepted, orderstatus.ReturnPickedUp, orderstatus.RefundCompleted,
	}
)

// checkTransition enforces the status policy: forward moves inside the
// fulfillment or return flow, cancellation before delivery, and nothing out of
// CANCELLED or REFUND_COMPLETED.
func checkTransition(from, to orderstatus.Status) error {
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s is final", ErrTerminalStatus, from)
	}

	if to == orderstatus.Cancelled {
		switch from {
		case orderstatus.OrderPlaced, orderstatus.Processing, orderstatus.Shipped:
			return nil
		case orderstatus.Delivered:
			return ErrOrderDelivered
		}
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}

	if forward(fulfillment, from, to) || forward(returns, from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
}

func forward(flow []orderstatus.Status, from, to orderstatus.Status) bool {
	i, j := slices.Index(flow, from), slices.Index(flow, to)
	return i >= 0 && j > i
}
