package dispute

import (
	"errors"
	"fmt"
	"time"

	marketerrors "github.com/merlox/ethereum-store/core/errors"
	"github.com/merlox/ethereum-store/core/events"
	"github.com/merlox/ethereum-store/core/types"
	nativecommon "github.com/merlox/ethereum-store/native/common"
	"github.com/merlox/ethereum-store/native/escrow"
)

// ModuleName identifies arbitration for pause switches and metrics.
const ModuleName = "dispute"

var (
	errNilState  = errors.New("dispute engine: state not configured")
	errNilOrders = errors.New("dispute engine: order book not configured")
	errNoOwner   = errors.New("dispute engine: arbitration owner not configured")
)

// OrderBook is the slice of the escrow engine arbitration depends on.
type OrderBook interface {
	Order(id uint64) (*escrow.Order, error)
	OpenDispute(orderID uint64, caller [20]byte) (*escrow.Order, error)
	SettleDispute(orderID uint64, buyerWins bool) (*escrow.Order, error)
}

type engineState interface {
	DisputePut(*Dispute) error
	DisputeGet(id uint64) (*Dispute, bool, error)
	DisputeForOrder(orderID uint64) (uint64, bool, error)
	NextDisputeID() (uint64, error)
	LastDisputeID() (uint64, error)
	OperatorsGet() ([]Operator, error)
	OperatorsPut([]Operator) error
}

// Engine runs buyer disputes and the operator set that rules on them.
type Engine struct {
	state   engineState
	orders  OrderBook
	emitter events.Emitter
	nowFn   func() int64
	pauses  nativecommon.PauseView
}

// NewEngine creates a dispute engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetOrderBook(orders OrderBook) { e.orders = orders }

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(disputeEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.orders == nil {
		return errNilOrders
	}
	return nativecommon.Guard(e.pauses, ModuleName)
}

func (e *Engine) loadDispute(id uint64) (*Dispute, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	d, ok, err := e.state.DisputeGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("dispute: dispute %d: %w", id, marketerrors.ErrNotFound)
	}
	return d, nil
}

// EnsureOwner seats the arbitration owner at index 0 when the operator set is
// empty. It is a no-op once an owner exists.
func (e *Engine) EnsureOwner(owner [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if owner == ([20]byte{}) {
		return fmt.Errorf("%w: owner address required", marketerrors.ErrInvalidInput)
	}
	ops, err := e.state.OperatorsGet()
	if err != nil {
		return err
	}
	if len(ops) > 0 {
		return nil
	}
	op := Operator{Address: owner, Active: true}
	if err := e.state.OperatorsPut([]Operator{op}); err != nil {
		return err
	}
	e.emit(NewOperatorUpdatedEvent(0, op))
	return nil
}

// DisputeOrder opens a dispute for the caller's order while the window is
// still open. Each order can be disputed once.
func (e *Engine) DisputeOrder(caller [20]byte, orderID uint64, reason string) (*Dispute, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	clean, err := sanitizeReason("reason", reason)
	if err != nil {
		return nil, err
	}
	if _, exists, err := e.state.DisputeForOrder(orderID); err != nil {
		return nil, err
	} else if exists {
		order, err := e.orders.Order(orderID)
		if err != nil {
			return nil, err
		}
		if caller != order.Buyer {
			return nil, fmt.Errorf("dispute: order %d: %w", orderID, marketerrors.ErrUnauthorized)
		}
		return nil, fmt.Errorf("dispute: order %d already disputed: %w", orderID, marketerrors.ErrInvalidState)
	}
	order, err := e.orders.OpenDispute(orderID, caller)
	if err != nil {
		return nil, err
	}
	id, err := e.state.NextDisputeID()
	if err != nil {
		return nil, err
	}
	d := &Dispute{
		ID:        id,
		OrderID:   order.ID,
		Reason:    clean,
		State:     StateOpen,
		CreatedAt: e.now(),
	}
	if err := e.state.DisputePut(d); err != nil {
		return nil, err
	}
	e.emit(NewDisputeOpenedEvent(d))
	return d.Clone(), nil
}

// CounterDispute lets the seller answer an open dispute.
func (e *Engine) CounterDispute(caller [20]byte, disputeID uint64, counterReason string) error {
	if err := e.ready(); err != nil {
		return err
	}
	d, err := e.loadDispute(disputeID)
	if err != nil {
		return err
	}
	order, err := e.orders.Order(d.OrderID)
	if err != nil {
		return err
	}
	if caller != order.Seller {
		return fmt.Errorf("dispute: counter dispute %d: %w", disputeID, marketerrors.ErrUnauthorized)
	}
	if d.State != StateOpen {
		return fmt.Errorf("dispute: counter dispute %d in state %s: %w", disputeID, d.State, marketerrors.ErrInvalidState)
	}
	clean, err := sanitizeReason("counter reason", counterReason)
	if err != nil {
		return err
	}
	d.CounterReason = clean
	d.State = StateCountered
	if err := e.state.DisputePut(d); err != nil {
		return err
	}
	e.emit(NewDisputeCounteredEvent(d))
	return nil
}

// SetOperator manages the operator set. Only the owner may call it. A false
// flag adds or reactivates addr; a true flag deactivates it. The owner seat
// cannot be deactivated.
func (e *Engine) SetOperator(caller, addr [20]byte, flag bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	ops, err := e.state.OperatorsGet()
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return errNoOwner
	}
	if caller != ops[0].Address {
		return fmt.Errorf("dispute: set operator: %w", marketerrors.ErrUnauthorized)
	}
	if addr == ([20]byte{}) {
		return fmt.Errorf("%w: operator address required", marketerrors.ErrInvalidInput)
	}
	idx := -1
	for i, op := range ops {
		if op.Address == addr {
			idx = i
			break
		}
	}
	switch {
	case flag && idx < 0:
		return fmt.Errorf("dispute: operator not registered: %w", marketerrors.ErrNotFound)
	case flag && idx == 0:
		return fmt.Errorf("dispute: owner seat cannot be deactivated: %w", marketerrors.ErrInvalidState)
	case flag:
		ops[idx].Active = false
	case idx >= 0:
		ops[idx].Active = true
	default:
		ops = append(ops, Operator{Address: addr, Active: true})
		idx = len(ops) - 1
	}
	if err := e.state.OperatorsPut(ops); err != nil {
		return err
	}
	e.emit(NewOperatorUpdatedEvent(idx, ops[idx]))
	return nil
}

// ResolveDispute rules on an open or countered dispute. A buyer win refunds
// the order price; either way the dispute and its order end resolved.
func (e *Engine) ResolveDispute(caller [20]byte, disputeID uint64, isBuyerWinner bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	d, err := e.loadDispute(disputeID)
	if err != nil {
		return err
	}
	active, err := e.IsOperator(caller)
	if err != nil {
		return err
	}
	if !active {
		return fmt.Errorf("dispute: resolve dispute %d: %w", disputeID, marketerrors.ErrUnauthorized)
	}
	if d.State != StateOpen && d.State != StateCountered {
		return fmt.Errorf("dispute: resolve dispute %d in state %s: %w", disputeID, d.State, marketerrors.ErrInvalidState)
	}
	if _, err := e.orders.SettleDispute(d.OrderID, isBuyerWinner); err != nil {
		return err
	}
	d.State = StateResolved
	d.Outcome = OutcomeSellerWins
	if isBuyerWinner {
		d.Outcome = OutcomeBuyerWins
	}
	d.ResolvedAt = e.now()
	d.Resolver = caller
	if err := e.state.DisputePut(d); err != nil {
		return err
	}
	e.emit(NewDisputeResolvedEvent(d))
	return nil
}

// Dispute returns a copy of the stored dispute.
func (e *Engine) Dispute(id uint64) (*Dispute, error) {
	return e.loadDispute(id)
}

// DisputeForOrder returns the dispute raised against the order, if any.
func (e *Engine) DisputeForOrder(orderID uint64) (*Dispute, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	id, ok, err := e.state.DisputeForOrder(orderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("dispute: order %d has no dispute: %w", orderID, marketerrors.ErrNotFound)
	}
	return e.loadDispute(id)
}

// LastDisputeID returns the number of disputes opened so far.
func (e *Engine) LastDisputeID() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.LastDisputeID()
}

// Operator returns the active operator seated at index.
func (e *Engine) Operator(index uint64) ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, errNilState
	}
	ops, err := e.state.OperatorsGet()
	if err != nil {
		return [20]byte{}, err
	}
	if index >= uint64(len(ops)) || !ops[index].Active {
		return [20]byte{}, fmt.Errorf("dispute: operator %d: %w", index, marketerrors.ErrNotFound)
	}
	return ops[index].Address, nil
}

// OperatorCount returns the number of seats ever allocated, active or not.
func (e *Engine) OperatorCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	ops, err := e.state.OperatorsGet()
	if err != nil {
		return 0, err
	}
	return uint64(len(ops)), nil
}

// IsOperator reports whether addr holds an active seat.
func (e *Engine) IsOperator(addr [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	ops, err := e.state.OperatorsGet()
	if err != nil {
		return false, err
	}
	for _, op := range ops {
		if op.Address == addr && op.Active {
			return true, nil
		}
	}
	return false, nil
}
