package bank

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/merlox/ethereum-store/core/events"
	"github.com/merlox/ethereum-store/core/types"
)

var (
	ErrInsufficientBalance   = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
	ErrOverflow              = errors.New("bank: amount overflow")
	ErrNegativeAmount        = errors.New("bank: negative amount")

	errNilState = errors.New("bank: state not configured")
)

type ledgerState interface {
	BalanceGet(addr [20]byte) (*big.Int, error)
	BalancePut(addr [20]byte, amount *big.Int) error
	AllowanceGet(owner, spender [20]byte) (*big.Int, error)
	AllowancePut(owner, spender [20]byte, amount *big.Int) error
}

// Ledger is a fungible token ledger with ERC20-style allowances. Balances
// live in the marketplace state, so ledger movements commit or roll back with
// the surrounding transaction.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger binds a ledger to its state backend.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil discards events.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(evt *types.Event) {
	if l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(bankEvent{evt: evt})
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

func (l *Ledger) balance(addr [20]byte) (*uint256.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	raw, err := l.state.BalanceGet(addr)
	if err != nil {
		return nil, err
	}
	return toUint256(raw)
}

// BalanceOf returns the balance of addr.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	bal, err := l.balance(addr)
	if err != nil {
		return nil, err
	}
	return bal.ToBig(), nil
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	l.emit(newTransferEvent(EventTypeTransfer, from, to, amount))
	return nil
}

func (l *Ledger) move(from, to [20]byte, amount *big.Int) error {
	amt, err := toUint256(amount)
	if err != nil {
		return err
	}
	fromBal, err := l.balance(from)
	if err != nil {
		return err
	}
	if fromBal.Lt(amt) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBal.Dec(), amt.Dec())
	}
	if from == to {
		return nil
	}
	toBal, err := l.balance(to)
	if err != nil {
		return err
	}
	newTo, overflow := new(uint256.Int).AddOverflow(toBal, amt)
	if overflow {
		return ErrOverflow
	}
	newFrom := new(uint256.Int).Sub(fromBal, amt)
	if err := l.state.BalancePut(from, newFrom.ToBig()); err != nil {
		return err
	}
	return l.state.BalancePut(to, newTo.ToBig())
}

// TransferFrom moves amount out of owner's account using the allowance owner
// granted to spender.
func (l *Ledger) TransferFrom(owner, spender, to [20]byte, amount *big.Int) error {
	amt, err := toUint256(amount)
	if err != nil {
		return err
	}
	if l == nil || l.state == nil {
		return errNilState
	}
	rawAllowance, err := l.state.AllowanceGet(owner, spender)
	if err != nil {
		return err
	}
	allowance, err := toUint256(rawAllowance)
	if err != nil {
		return err
	}
	if allowance.Lt(amt) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance.Dec(), amt.Dec())
	}
	if err := l.move(owner, to, amount); err != nil {
		return err
	}
	remaining := new(uint256.Int).Sub(allowance, amt)
	if err := l.state.AllowancePut(owner, spender, remaining.ToBig()); err != nil {
		return err
	}
	l.emit(newTransferEvent(EventTypeTransfer, owner, to, amount))
	return nil
}

// Approve sets the amount spender may move on behalf of owner.
func (l *Ledger) Approve(owner, spender [20]byte, amount *big.Int) error {
	amt, err := toUint256(amount)
	if err != nil {
		return err
	}
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := l.state.AllowancePut(owner, spender, amt.ToBig()); err != nil {
		return err
	}
	l.emit(newTransferEvent(EventTypeApproval, owner, spender, amount))
	return nil
}

// Allowance returns the amount spender may still move on behalf of owner.
func (l *Ledger) Allowance(owner, spender [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	raw, err := l.state.AllowanceGet(owner, spender)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(raw), nil
}

// Mint credits new tokens to addr. It is used for genesis balances.
func (l *Ledger) Mint(to [20]byte, amount *big.Int) error {
	amt, err := toUint256(amount)
	if err != nil {
		return err
	}
	bal, err := l.balance(to)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(bal, amt)
	if overflow {
		return ErrOverflow
	}
	if err := l.state.BalancePut(to, next.ToBig()); err != nil {
		return err
	}
	l.emit(newTransferEvent(EventTypeMint, [20]byte{}, to, amount))
	return nil
}
