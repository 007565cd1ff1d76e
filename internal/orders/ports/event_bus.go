package ports

import "context"

// EventBus defines the contract for publishing order lifecycle events.
// Publishing is best-effort: the order state in the database is authoritative
// and a lost event never rolls a transition back.
type EventBus interface {
	PublishOrderCreated(ctx context.Context, orderID string) error
	PublishOrderClaimed(ctx context.Context, orderID, carrierID string) error
	PublishOrderDropped(ctx context.Context, orderID, carrierID string) error
	PublishOrderDelivered(ctx context.Context, orderID string) error
	PublishOrderCancelled(ctx context.Context, orderID string) error
}
