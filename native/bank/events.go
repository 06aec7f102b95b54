package bank

import (
	"math/big"

	"github.com/merlox/ethereum-store/core/types"
	"github.com/merlox/ethereum-store/crypto"
)

const (
	EventTypeTransfer = "bank.transfer"
	EventTypeApproval = "bank.approval"
	EventTypeMint     = "bank.mint"
)

type bankEvent struct {
	evt *types.Event
}

func (e bankEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e bankEvent) Event() *types.Event { return e.evt }

func newTransferEvent(eventType string, from, to [20]byte, amount *big.Int) *types.Event {
	value := "0"
	if amount != nil {
		value = amount.String()
	}
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"from":   crypto.FormatAddress(from),
			"to":     crypto.FormatAddress(to),
			"amount": value,
		},
	}
}
