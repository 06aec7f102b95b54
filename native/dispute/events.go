package dispute

import (
	"strconv"

	"github.com/merlox/ethereum-store/core/types"
	"github.com/merlox/ethereum-store/crypto"
)

const (
	EventTypeDisputeOpened    = "market.dispute.opened"
	EventTypeDisputeCountered = "market.dispute.countered"
	EventTypeDisputeResolved  = "market.dispute.resolved"
	EventTypeOperatorUpdated  = "market.operator.updated"
)

type disputeEvent struct {
	evt *types.Event
}

func (e disputeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e disputeEvent) Event() *types.Event { return e.evt }

func NewDisputeOpenedEvent(d *Dispute) *types.Event {
	return newDisputeEvent(EventTypeDisputeOpened, d)
}

func NewDisputeCounteredEvent(d *Dispute) *types.Event {
	return newDisputeEvent(EventTypeDisputeCountered, d)
}

func NewDisputeResolvedEvent(d *Dispute) *types.Event {
	evt := newDisputeEvent(EventTypeDisputeResolved, d)
	if d != nil {
		evt.Attributes["resolver"] = crypto.FormatAddress(d.Resolver)
		evt.Attributes["resolvedAt"] = strconv.FormatInt(d.ResolvedAt, 10)
	}
	return evt
}

// NewOperatorUpdatedEvent reports an operator seat change.
func NewOperatorUpdatedEvent(index int, op Operator) *types.Event {
	return &types.Event{
		Type: EventTypeOperatorUpdated,
		Attributes: map[string]string{
			"index":   strconv.Itoa(index),
			"address": crypto.FormatAddress(op.Address),
			"active":  strconv.FormatBool(op.Active),
		},
	}
}

func newDisputeEvent(eventType string, d *Dispute) *types.Event {
	attrs := make(map[string]string)
	if d == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["disputeId"] = strconv.FormatUint(d.ID, 10)
	attrs["orderId"] = strconv.FormatUint(d.OrderID, 10)
	attrs["state"] = d.State.String()
	if d.Outcome != OutcomeNone {
		attrs["outcome"] = d.Outcome.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
