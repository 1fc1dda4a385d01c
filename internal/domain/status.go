package domain

import "fmt"

// OrderStatus is a node of the order lifecycle graph.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusPickedUp  OrderStatus = "picked_up"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// Actor roles on an order.
const (
	RoleBuyer  = "buyer"
	RoleVendor = "vendor"
	RoleSystem = "system"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []OrderStatus{
	StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
	StatusPickedUp, StatusCompleted, StatusCancelled,
}

// transitions is the directed edge set. Terminal states have no entry.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusPickedUp},
	StatusPickedUp:  {StatusCompleted},
}

// actors says which roles may drive the transition into a status.
var actors = map[OrderStatus][]string{
	StatusConfirmed: {RoleVendor},
	StatusPreparing: {RoleVendor},
	StatusReady:     {RoleVendor},
	StatusPickedUp:  {RoleBuyer},
	StatusCompleted: {RoleVendor},
	StatusCancelled: {RoleBuyer, RoleVendor},
}

// cancelBlocked lists, per role, the statuses from which that role may no
// longer cancel.
var cancelBlocked = map[string][]OrderStatus{
	RoleBuyer:  {StatusReady, StatusPickedUp, StatusCompleted},
	RoleVendor: {StatusPreparing, StatusReady, StatusPickedUp, StatusCompleted},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing edges.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// NextStatuses returns a copy of the statuses reachable from s in one step.
func NextStatuses(s OrderStatus) []OrderStatus {
	next := transitions[s]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from→to is an edge of the graph.
func CanTransition(from, to OrderStatus) bool {
	for _, n := range transitions[from] {
		if n == to {
			return true
		}
	}
	return false
}

// RoleMayTransition reports whether role may move an order into to.
func RoleMayTransition(role string, to OrderStatus) bool {
	for _, r := range actors[to] {
		if r == role {
			return true
		}
	}
	return false
}

// CancelAllowed reports whether role may cancel an order currently in from.
func CancelAllowed(role string, from OrderStatus) bool {
	for _, s := range cancelBlocked[role] {
		if s == from {
			return false
		}
	}
	return true
}

// StatusMessage is the customer-facing copy for an order entering s.
func StatusMessage(s OrderStatus, reason string) string {
	switch s {
	case StatusPending:
		return "Order placed! Waiting for the vendor to confirm."
	case StatusConfirmed:
		return "Order accepted! Preparing your food now."
	case StatusPreparing:
		return "Your order is being prepared with care! 🍳"
	case StatusReady:
		return "Your order is ready for pickup! 🎉"
	case StatusPickedUp:
		return "Order picked up. Enjoy!"
	case StatusCompleted:
		return "Enjoy your meal! Thank you for ordering. 😊"
	case StatusCancelled:
		if reason == "" {
			return "Order cancelled."
		}
		return fmt.Sprintf("Order cancelled. Reason: %s", reason)
	default:
		return fmt.Sprintf("Order status updated to %s.", s)
	}
}
