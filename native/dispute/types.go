package dispute

import (
	"fmt"
	"strings"

	marketerrors "github.com/merlox/ethereum-store/core/errors"
)

// MaxReasonBytes bounds the free-form text either party can attach.
const MaxReasonBytes = 1024

// State enumerates the dispute lifecycle.
type State uint8

const (
	StateOpen State = iota
	StateCountered
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCountered:
		return "countered"
	case StateResolved:
		return "resolved"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Valid reports whether the state value is within the supported range.
func (s State) Valid() bool { return s <= StateResolved }

// Outcome records the arbitration ruling.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeBuyerWins
	OutcomeSellerWins
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBuyerWins:
		return "buyer-wins"
	case OutcomeSellerWins:
		return "seller-wins"
	default:
		return "none"
	}
}

// Dispute is a buyer's contest of an order.
type Dispute struct {
	ID            uint64
	OrderID       uint64
	Reason        string
	CounterReason string
	State         State
	Outcome       Outcome
	CreatedAt     int64
	ResolvedAt    int64
	Resolver      [20]byte
}

// Clone returns a copy of the dispute.
func (d *Dispute) Clone() *Dispute {
	if d == nil {
		return nil
	}
	clone := *d
	return &clone
}

// Operator is an arbitration seat. Index 0 of the operator set is the owner.
type Operator struct {
	Address [20]byte
	Active  bool
}

func sanitizeReason(kind, reason string) (string, error) {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s required", marketerrors.ErrInvalidInput, kind)
	}
	if len(trimmed) > MaxReasonBytes {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", marketerrors.ErrInvalidInput, kind, MaxReasonBytes)
	}
	return trimmed, nil
}
