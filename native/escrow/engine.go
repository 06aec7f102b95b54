package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	marketerrors "github.com/merlox/ethereum-store/core/errors"
	"github.com/merlox/ethereum-store/core/events"
	"github.com/merlox/ethereum-store/core/types"
	"github.com/merlox/ethereum-store/native/catalog"
	nativecommon "github.com/merlox/ethereum-store/native/common"
)

// ModuleName identifies the escrow for pause switches and metrics.
const ModuleName = "escrow"

var (
	errNilState  = errors.New("escrow engine: state not configured")
	errNilLedger = errors.New("escrow engine: ledger not configured")
	errNilVault  = errors.New("escrow engine: vault not configured")
)

// ValueLedger moves the fungible token used for payment.
type ValueLedger interface {
	Transfer(from, to [20]byte, amount *big.Int) error
	TransferFrom(owner, spender, to [20]byte, amount *big.Int) error
	BalanceOf(addr [20]byte) (*big.Int, error)
}

// Catalog takes stock for a purchase.
type Catalog interface {
	Reserve(productID uint64) (*catalog.Product, error)
}

type engineState interface {
	OrderPut(*Order) error
	OrderGet(id uint64) (*Order, bool, error)
	NextOrderID() (uint64, error)
	LastOrderID() (uint64, error)
	EscrowCredit(orderID uint64, amt *big.Int) error
	EscrowDebit(orderID uint64, amt *big.Int) error
	EscrowBalance(orderID uint64) (*big.Int, error)
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine runs the order lifecycle. Payment sits at the vault address on the
// ledger; per-order custody records make sure each order pays out at most once
// and only its own price.
type Engine struct {
	state   engineState
	ledger  ValueLedger
	catalog Catalog
	vault   [20]byte
	emitter events.Emitter
	nowFn   func() int64
	pauses  nativecommon.PauseView
}

// NewEngine creates an escrow engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the token ledger.
func (e *Engine) SetLedger(ledger ValueLedger) { e.ledger = ledger }

// SetCatalog configures the product catalog consulted on purchase.
func (e *Engine) SetCatalog(c Catalog) { e.catalog = c }

// SetVault configures the address holding escrowed payments.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// Vault returns the configured custody address.
func (e *Engine) Vault() [20]byte { return e.vault }

// SetPauses wires the pause switches consulted before every mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
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
	e.emitter.Emit(escrowEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if e.vault == ([20]byte{}) {
		return errNilVault
	}
	return nativecommon.Guard(e.pauses, ModuleName)
}

func (e *Engine) loadOrder(id uint64) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	order, ok, err := e.state.OrderGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("escrow: order %d: %w", id, marketerrors.ErrNotFound)
	}
	return order, nil
}

// BuyProduct takes one unit of the product, records the order and pulls the
// price from the buyer into custody. The ledger call runs last so a payment
// failure leaves only staged writes for the caller to discard.
func (e *Engine) BuyProduct(caller [20]byte, productID uint64, shipping Shipping) (*Order, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.catalog == nil {
		return nil, errors.New("escrow engine: catalog not configured")
	}
	if caller == e.vault {
		return nil, fmt.Errorf("escrow: vault cannot buy: %w", marketerrors.ErrUnauthorized)
	}
	product, err := e.catalog.Reserve(productID)
	if err != nil {
		return nil, err
	}
	clean, err := shipping.Sanitize()
	if err != nil {
		return nil, err
	}
	id, err := e.state.NextOrderID()
	if err != nil {
		return nil, err
	}
	order := &Order{
		ID:        id,
		ProductID: product.ID,
		Buyer:     caller,
		Seller:    product.Owner,
		Shipping:  clean,
		Price:     cloneBigInt(product.Price),
		Barcode:   product.Barcode,
		CreatedAt: e.now(),
		State:     OrderCreated,
	}
	if err := e.state.OrderPut(order); err != nil {
		return nil, err
	}
	if err := e.state.EscrowCredit(order.ID, order.Price); err != nil {
		return nil, err
	}
	if err := e.ledger.TransferFrom(caller, e.vault, e.vault, order.Price); err != nil {
		return nil, fmt.Errorf("escrow: collect payment for order %d: %w: %w", order.ID, marketerrors.ErrPaymentFailed, err)
	}
	e.emit(NewOrderCreatedEvent(order))
	return order.Clone(), nil
}

// MarkOrderSent records shipment. Only the seller may call it and only once.
func (e *Engine) MarkOrderSent(caller [20]byte, orderID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	order, err := e.loadOrder(orderID)
	if err != nil {
		return err
	}
	if caller != order.Seller {
		return fmt.Errorf("escrow: mark order %d sent: %w", orderID, marketerrors.ErrUnauthorized)
	}
	if order.SentAt != 0 || order.Settled() {
		return fmt.Errorf("escrow: mark order %d sent in state %s: %w", orderID, order.State, marketerrors.ErrInvalidState)
	}
	order.SentAt = e.now()
	if order.State == OrderCreated {
		order.State = OrderSent
	}
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	e.emit(NewOrderSentEvent(order))
	return nil
}

// ReceivePayment releases the escrowed price to the seller once the dispute
// window has elapsed for a shipped order.
func (e *Engine) ReceivePayment(caller [20]byte, orderID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	order, err := e.loadOrder(orderID)
	if err != nil {
		return err
	}
	if caller != order.Seller {
		return fmt.Errorf("escrow: receive payment for order %d: %w", orderID, marketerrors.ErrUnauthorized)
	}
	switch {
	case order.Settled():
		return fmt.Errorf("escrow: order %d already %s: %w", orderID, settledLabel(order), marketerrors.ErrInvalidState)
	case order.State == OrderDisputed:
		return fmt.Errorf("escrow: order %d: %w", orderID, marketerrors.ErrDisputePending)
	case order.SentAt == 0:
		return fmt.Errorf("escrow: order %d not sent: %w", orderID, marketerrors.ErrInvalidState)
	}
	if e.now() < order.DisputeDeadline() {
		return fmt.Errorf("escrow: order %d releasable at %d: %w", orderID, order.DisputeDeadline(), marketerrors.ErrWindowNotElapsed)
	}
	order.State = OrderCompleted
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	if err := e.payout(order, order.Seller); err != nil {
		return err
	}
	e.emit(NewOrderCompletedEvent(order))
	return nil
}

func settledLabel(o *Order) string {
	if o.Refunded() {
		return "refunded"
	}
	return "completed"
}

// OpenDispute moves an order into the disputed state on behalf of the
// arbitration engine. The caller must be the buyer and the window must still
// be open.
func (e *Engine) OpenDispute(orderID uint64, caller [20]byte) (*Order, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	order, err := e.loadOrder(orderID)
	if err != nil {
		return nil, err
	}
	if caller != order.Buyer {
		return nil, fmt.Errorf("escrow: dispute order %d: %w", orderID, marketerrors.ErrUnauthorized)
	}
	if e.now() >= order.DisputeDeadline() {
		return nil, fmt.Errorf("escrow: dispute order %d closed at %d: %w", orderID, order.DisputeDeadline(), marketerrors.ErrWindowExpired)
	}
	if order.State != OrderCreated && order.State != OrderSent {
		return nil, fmt.Errorf("escrow: dispute order %d in state %s: %w", orderID, order.State, marketerrors.ErrInvalidState)
	}
	order.State = OrderDisputed
	if err := e.state.OrderPut(order); err != nil {
		return nil, err
	}
	e.emit(NewOrderDisputedEvent(order))
	return order.Clone(), nil
}

// SettleDispute applies an arbitration outcome. A buyer win refunds the price
// from custody; a seller win leaves funds in custody for ReceivePayment.
func (e *Engine) SettleDispute(orderID uint64, buyerWins bool) (*Order, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	order, err := e.loadOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.State != OrderDisputed {
		return nil, fmt.Errorf("escrow: settle order %d in state %s: %w", orderID, order.State, marketerrors.ErrInvalidState)
	}
	order.State = OrderResolved
	order.Resolution = ResolutionSeller
	if buyerWins {
		order.Resolution = ResolutionBuyer
	}
	if err := e.state.OrderPut(order); err != nil {
		return nil, err
	}
	if buyerWins {
		if err := e.payout(order, order.Buyer); err != nil {
			return nil, err
		}
		e.emit(NewOrderRefundedEvent(order))
	}
	e.emit(NewOrderResolvedEvent(order))
	return order.Clone(), nil
}

// payout debits the order's custody record and then moves the funds out of the
// vault. Callers store the settled order first so the ledger call runs last.
func (e *Engine) payout(order *Order, recipient [20]byte) error {
	amount := cloneBigInt(order.Price)
	if err := e.state.EscrowDebit(order.ID, amount); err != nil {
		return fmt.Errorf("escrow: custody for order %d: %w: %w", order.ID, marketerrors.ErrInvalidState, err)
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := e.ledger.Transfer(e.vault, recipient, amount); err != nil {
		return fmt.Errorf("escrow: pay out order %d: %w: %w", order.ID, marketerrors.ErrPaymentFailed, err)
	}
	return nil
}

// Order returns a copy of the stored order.
func (e *Engine) Order(id uint64) (*Order, error) {
	return e.loadOrder(id)
}

// LastOrderID returns the number of orders created so far.
func (e *Engine) LastOrderID() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.LastOrderID()
}

// EscrowBalance returns the amount still held in custody for the order.
func (e *Engine) EscrowBalance(orderID uint64) (*big.Int, error) {
	if _, err := e.loadOrder(orderID); err != nil {
		return nil, err
	}
	return e.state.EscrowBalance(orderID)
}
