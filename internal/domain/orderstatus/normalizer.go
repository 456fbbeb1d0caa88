// Package orderstatus maps raw order status strings from every producer
// (admin UI, payment webhook, legacy rows) onto the canonical status enum.
package orderstatus

import (
	"strings"
)

// Status is a canonical order status. Values outside the constants below only
// appear as the pass-through result of Normalize for unseen input.
type Status string

const (
	OrderPlaced     Status = "ORDER_PLACED"
	Processing      Status = "PROCESSING"
	Shipped         Status = "SHIPPED"
	Delivered       Status = "DELIVERED"
	Cancelled       Status = "CANCELLED"
	ReturnAccepted  Status = "RETURN_ACCEPTED"
	ReturnPickedUp  Status = "RETURN_PICKED_UP"
	RefundCompleted Status = "REFUND_COMPLETED"
)

// All lists the canonical statuses in display order.
var All = []Status{
	OrderPlaced, Processing, Shipped, Delivered,
	Cancelled, ReturnAccepted, ReturnPickedUp, RefundCompleted,
}

// rule matches when the folded input contains every keyword of any one group.
type rule struct {
	groups [][]string
	status Status
}

// rules is consulted top to bottom and the first match wins. Return and refund
// keywords must precede the normal flow so "Return Accepted" is not read as ACCEPT.
var rules = []rule{
	{groups: [][]string{{"REFUND"}}, status: RefundCompleted},
	{groups: [][]string{{"RETURN", "PICK"}}, status: ReturnPickedUp},
	{groups: [][]string{{"RETURN", "ACCEPT"}}, status: ReturnAccepted},
	{groups: [][]string{{"CANCEL"}}, status: Cancelled},
	{groups: [][]string{{"DELIVERED"}}, status: Delivered},
	{groups: [][]string{{"SHIP"}, {"DISPATCH"}, {"TRANSIT"}, {"OUT_FOR_DELIVERY"}}, status: Shipped},
	{groups: [][]string{{"PROCESS"}, {"CONFIRM"}, {"ACCEPT"}, {"PACK"}, {"PAID"}}, status: Processing},
	{groups: [][]string{{"PLACED"}, {"PENDING"}, {"CREATED"}, {"NEW"}}, status: OrderPlaced},
}

func (r rule) matches(folded string) bool {
	for _, group := range r.groups {
		all := true
		for _, kw := range group {
			if !strings.Contains(folded, kw) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// Normalize returns the canonical status for raw. Empty input is ORDER_PLACED;
// input that matches no rule comes back folded but otherwise unchanged.
func Normalize(raw string) Status {
	folded := fold(raw)
	if folded == "" {
		return OrderPlaced
	}
	for _, r := range rules {
		if r.matches(folded) {
			return r.status
		}
	}
	return Status(folded)
}

// fold upper-cases s and collapses runs of spaces, underscores and hyphens into one underscore.
func fold(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	sep := false
	for _, r := range s {
		if r == ' ' || r == '_' || r == '-' || r == '\t' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

// IsCanonical reports whether s is one of the eight enum values.
func (s Status) IsCanonical() bool {
	for _, c := range All {
		if s == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no policy transition leaves s.
func (s Status) IsTerminal() bool {
	return s == Cancelled || s == RefundCompleted
}

func (s Status) String() string { return string(s) }

// Label is the human readable form used in tracking and notifications.
func (s Status) Label() string {
	switch s {
	case OrderPlaced:
		return "Order Placed"
	case Processing:
		return "Processing"
	case Shipped:
		return "Shipped"
	case Delivered:
		return "Delivered"
	case Cancelled:
		return "Cancelled"
	case ReturnAccepted:
		return "Return Accepted"
	case ReturnPickedUp:
		return "Return Picked Up"
	case RefundCompleted:
		return "Refund Completed"
	}
	return string(s)
}
