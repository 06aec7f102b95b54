package escrow

import (
	"strconv"

	"github.com/merlox/ethereum-store/core/types"
	"github.com/merlox/ethereum-store/crypto"
)

const (
	EventTypeOrderCreated   = "market.order.created"
	EventTypeOrderSent      = "market.order.sent"
	EventTypeOrderCompleted = "market.order.completed"
	EventTypeOrderDisputed  = "market.order.disputed"
	EventTypeOrderRefunded  = "market.order.refunded"
	EventTypeOrderResolved  = "market.order.resolved"
)

// NewOrderCreatedEvent returns the canonical payload for a purchase.
func NewOrderCreatedEvent(o *Order) *types.Event { return newOrderEvent(EventTypeOrderCreated, o) }

// NewOrderSentEvent returns the payload emitted when the seller ships.
func NewOrderSentEvent(o *Order) *types.Event { return newOrderEvent(EventTypeOrderSent, o) }

// NewOrderCompletedEvent returns the payload emitted when escrow is released
// to the seller.
func NewOrderCompletedEvent(o *Order) *types.Event {
	return newOrderEvent(EventTypeOrderCompleted, o)
}

// NewOrderDisputedEvent returns the payload emitted when the buyer disputes.
func NewOrderDisputedEvent(o *Order) *types.Event { return newOrderEvent(EventTypeOrderDisputed, o) }

// NewOrderRefundedEvent returns the payload emitted when escrow is returned to
// the buyer.
func NewOrderRefundedEvent(o *Order) *types.Event { return newOrderEvent(EventTypeOrderRefunded, o) }

// NewOrderResolvedEvent returns the payload emitted when arbitration settles
// the order.
func NewOrderResolvedEvent(o *Order) *types.Event { return newOrderEvent(EventTypeOrderResolved, o) }

// Shipping details never appear in event payloads.
func newOrderEvent(eventType string, o *Order) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["orderId"] = strconv.FormatUint(o.ID, 10)
	attrs["productId"] = strconv.FormatUint(o.ProductID, 10)
	attrs["buyer"] = crypto.FormatAddress(o.Buyer)
	attrs["seller"] = crypto.FormatAddress(o.Seller)
	attrs["state"] = o.State.String()
	attrs["createdAt"] = strconv.FormatInt(o.CreatedAt, 10)
	if o.Price != nil {
		attrs["price"] = o.Price.String()
	}
	if o.Resolution != ResolutionNone {
		attrs["resolution"] = o.Resolution.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
