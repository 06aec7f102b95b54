package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	marketerrors "github.com/merlox/ethereum-store/core/errors"
	"github.com/merlox/ethereum-store/core/events"
	"github.com/merlox/ethereum-store/core/state"
	"github.com/merlox/ethereum-store/crypto"
	"github.com/merlox/ethereum-store/native/bank"
	"github.com/merlox/ethereum-store/native/catalog"
	nativecommon "github.com/merlox/ethereum-store/native/common"
	"github.com/merlox/ethereum-store/native/dispute"
	"github.com/merlox/ethereum-store/native/escrow"
	"github.com/merlox/ethereum-store/native/identity"
	"github.com/merlox/ethereum-store/observability"
	"github.com/merlox/ethereum-store/observability/logging"
	"github.com/merlox/ethereum-store/storage"
)

var genesisAppliedKey = []byte("genesis/applied")

// Options configures a Marketplace.
type Options struct {
	// Vault holds escrowed payments on the ledger.
	Vault [20]byte
	// Identity is consulted before publish and buy when RequireIdentity is set.
	Identity        identity.Registry
	RequireIdentity bool
	Pauses          nativecommon.PauseView
	// Emitter receives events after their transaction commits.
	Emitter events.Emitter
	Logger  *slog.Logger
	// Now is the clock source in unix seconds. The marketplace never lets the
	// observed time move backwards.
	Now func() int64
}

// Marketplace serialises every operation and runs each one as a single
// transaction over the order store. Staged writes are committed together or
// discarded together, and events reach the emitter only after commit.
type Marketplace struct {
	mu sync.RWMutex

	state    *state.Manager
	ledger   *bank.Ledger
	catalog  *catalog.Engine
	escrow   *escrow.Engine
	disputes *dispute.Engine

	buffer  *events.Buffer
	emitter events.Emitter
	log     *slog.Logger

	identity        identity.Registry
	requireIdentity bool

	source func() int64
	last   int64
}

// NewMarketplace wires the engines over db.
func NewMarketplace(db storage.Database, opts Options) (*Marketplace, error) {
	if db == nil {
		return nil, errors.New("marketplace: database required")
	}
	if opts.Vault == ([20]byte{}) {
		return nil, errors.New("marketplace: vault address required")
	}
	if opts.RequireIdentity && opts.Identity == nil {
		return nil, errors.New("marketplace: identity registry required")
	}
	m := &Marketplace{
		state:           state.NewManager(db),
		buffer:          &events.Buffer{},
		emitter:         opts.Emitter,
		log:             opts.Logger,
		identity:        opts.Identity,
		requireIdentity: opts.RequireIdentity,
		source:          opts.Now,
	}
	if m.emitter == nil {
		m.emitter = events.NoopEmitter{}
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.source == nil {
		m.source = func() int64 { return time.Now().Unix() }
	}

	m.ledger = bank.NewLedger(m.state)
	m.ledger.SetEmitter(m.buffer)

	m.catalog = catalog.NewEngine()
	m.catalog.SetState(m.state)
	m.catalog.SetEmitter(m.buffer)
	m.catalog.SetNowFunc(m.now)
	m.catalog.SetPauses(opts.Pauses)

	m.escrow = escrow.NewEngine()
	m.escrow.SetState(m.state)
	m.escrow.SetLedger(m.ledger)
	m.escrow.SetCatalog(m.catalog)
	m.escrow.SetVault(opts.Vault)
	m.escrow.SetEmitter(m.buffer)
	m.escrow.SetNowFunc(m.now)
	m.escrow.SetPauses(opts.Pauses)

	m.disputes = dispute.NewEngine()
	m.disputes.SetState(m.state)
	m.disputes.SetOrderBook(m.escrow)
	m.disputes.SetEmitter(m.buffer)
	m.disputes.SetNowFunc(m.now)
	m.disputes.SetPauses(opts.Pauses)
	return m, nil
}

// now returns the timestamp pinned for the running transaction.
func (m *Marketplace) now() int64 { return m.last }

func (m *Marketplace) tick() {
	ts := m.source()
	if ts < m.last {
		ts = m.last
	}
	m.last = ts
}

// exec runs fn as one transaction on behalf of caller. The vault never acts
// as a caller: its balance moves only through escrow payouts.
func (m *Marketplace) exec(op string, caller [20]byte, fn func() error) error {
	return m.run(op, caller, func() error {
		if caller == m.escrow.Vault() {
			return fmt.Errorf("marketplace: %s as vault %s: %w", op, crypto.FormatAddress(caller), marketerrors.ErrUnauthorized)
		}
		return fn()
	})
}

// run executes fn as one transaction. The caller must not hold m.mu.
func (m *Marketplace) run(op string, caller [20]byte, fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := time.Now()
	m.tick()
	err := fn()
	if err == nil {
		err = m.state.Commit()
	}
	observability.Market().Observe(op, err, time.Since(start))
	if err != nil {
		m.state.Discard()
		m.buffer.Reset()
		m.log.Info("market operation rejected",
			slog.String("op", op),
			slog.String("caller", crypto.FormatAddress(caller)),
			slog.String("outcome", marketerrors.Code(err)),
			slog.String("error", err.Error()))
		return err
	}
	emitted := m.buffer.Flush(m.emitter)
	m.log.Debug("market operation committed",
		slog.String("op", op),
		slog.String("caller", crypto.FormatAddress(caller)),
		slog.Int("events", len(emitted)),
		slog.Int64("at", m.last))
	return nil
}

func (m *Marketplace) requireVerified(caller [20]byte) error {
	if !m.requireIdentity {
		return nil
	}
	ok, err := m.identity.IsVerified(caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("marketplace: caller %s has no verified identity: %w", crypto.FormatAddress(caller), marketerrors.ErrUnauthorized)
	}
	return nil
}

// Seed describes the initial ledger balances and arbitration seats.
type Seed struct {
	Owner     [20]byte
	Operators [][20]byte
	Balances  []Allocation
}

// Allocation credits Amount to Address at bootstrap.
type Allocation struct {
	Address [20]byte
	Amount  *big.Int
}

// Bootstrap applies the seed once. Later calls report false without touching
// state.
func (m *Marketplace) Bootstrap(seed Seed) (bool, error) {
	applied := false
	err := m.run("bootstrap", seed.Owner, func() error {
		done, err := m.state.KVGet(genesisAppliedKey, nil)
		if err != nil || done {
			return err
		}
		if err := m.disputes.EnsureOwner(seed.Owner); err != nil {
			return err
		}
		for _, op := range seed.Operators {
			if err := m.disputes.SetOperator(seed.Owner, op, false); err != nil {
				return err
			}
		}
		for _, alloc := range seed.Balances {
			if err := m.ledger.Mint(alloc.Address, alloc.Amount); err != nil {
				return err
			}
		}
		applied = true
		return m.state.KVPut(genesisAppliedKey, true)
	})
	return applied, err
}

// PublishProduct lists a new product owned by caller.
func (m *Marketplace) PublishProduct(caller [20]byte, in catalog.ProductInput) (*catalog.Product, error) {
	var out *catalog.Product
	err := m.exec("publishProduct", caller, func() error {
		if err := m.requireVerified(caller); err != nil {
			return err
		}
		var err error
		out, err = m.catalog.PublishProduct(caller, in)
		return err
	})
	return out, err
}

// DeleteProduct tombstones a product owned by caller.
func (m *Marketplace) DeleteProduct(caller [20]byte, id uint64) error {
	return m.exec("deleteProduct", caller, func() error {
		return m.catalog.DeleteProduct(caller, id)
	})
}

// CreateInventory stores a named SKU group owned by caller.
func (m *Marketplace) CreateInventory(caller [20]byte, name string, skus []string) (*catalog.Inventory, error) {
	var out *catalog.Inventory
	err := m.exec("createInventory", caller, func() error {
		var err error
		out, err = m.catalog.CreateInventory(caller, name, skus)
		return err
	})
	return out, err
}

// DeleteInventory removes an inventory owned by caller.
func (m *Marketplace) DeleteInventory(caller [20]byte, id uint64) error {
	return m.exec("deleteInventory", caller, func() error {
		return m.catalog.DeleteInventory(caller, id)
	})
}

// BuyProduct purchases one unit, escrowing the price. Stock, order and payment
// land together or not at all.
func (m *Marketplace) BuyProduct(caller [20]byte, productID uint64, shipping escrow.Shipping) (*escrow.Order, error) {
	var out *escrow.Order
	err := m.exec("buyProduct", caller, func() error {
		if err := m.requireVerified(caller); err != nil {
			return err
		}
		var err error
		out, err = m.escrow.BuyProduct(caller, productID, shipping)
		return err
	})
	if err == nil {
		m.log.Debug("order shipping recorded",
			slog.Uint64("orderId", out.ID),
			slog.Any(logging.ShippingGroup, out.Shipping))
	}
	return out, err
}

// MarkOrderSent records shipment of the seller's order.
func (m *Marketplace) MarkOrderSent(caller [20]byte, orderID uint64) error {
	return m.exec("markOrderSent", caller, func() error {
		return m.escrow.MarkOrderSent(caller, orderID)
	})
}

// ReceivePayment releases escrow to the seller after the dispute window.
func (m *Marketplace) ReceivePayment(caller [20]byte, orderID uint64) error {
	return m.exec("receivePayment", caller, func() error {
		return m.escrow.ReceivePayment(caller, orderID)
	})
}

// DisputeOrder opens a dispute on the buyer's order.
func (m *Marketplace) DisputeOrder(caller [20]byte, orderID uint64, reason string) (*dispute.Dispute, error) {
	var out *dispute.Dispute
	err := m.exec("disputeOrder", caller, func() error {
		var err error
		out, err = m.disputes.DisputeOrder(caller, orderID, reason)
		return err
	})
	return out, err
}

// CounterDispute records the seller's answer to an open dispute.
func (m *Marketplace) CounterDispute(caller [20]byte, disputeID uint64, counterReason string) error {
	return m.exec("counterDispute", caller, func() error {
		return m.disputes.CounterDispute(caller, disputeID, counterReason)
	})
}

// SetOperator adds (flag false) or deactivates (flag true) an operator.
func (m *Marketplace) SetOperator(caller, addr [20]byte, flag bool) error {
	return m.exec("setOperator", caller, func() error {
		return m.disputes.SetOperator(caller, addr, flag)
	})
}

// ResolveDispute rules on a dispute.
func (m *Marketplace) ResolveDispute(caller [20]byte, disputeID uint64, isBuyerWinner bool) error {
	return m.exec("resolveDispute", caller, func() error {
		return m.disputes.ResolveDispute(caller, disputeID, isBuyerWinner)
	})
}

// Approve lets spender move up to amount of caller's balance.
func (m *Marketplace) Approve(caller, spender [20]byte, amount *big.Int) error {
	return m.exec("approve", caller, func() error {
		return m.ledger.Approve(caller, spender, amount)
	})
}

// Transfer moves amount of caller's balance to another account.
func (m *Marketplace) Transfer(caller, to [20]byte, amount *big.Int) error {
	return m.exec("transfer", caller, func() error {
		return m.ledger.Transfer(caller, to, amount)
	})
}

func (m *Marketplace) read() func() {
	m.mu.RLock()
	return m.mu.RUnlock
}

// Product returns a live product.
func (m *Marketplace) Product(id uint64) (*catalog.Product, error) {
	defer m.read()()
	return m.catalog.Product(id)
}

// Inventory returns a live inventory.
func (m *Marketplace) Inventory(id uint64) (*catalog.Inventory, error) {
	defer m.read()()
	return m.catalog.Inventory(id)
}

// LastID returns the number of product ids allocated.
func (m *Marketplace) LastID() (uint64, error) {
	defer m.read()()
	return m.catalog.LastID()
}

// LastInventoryID returns the number of inventory ids allocated.
func (m *Marketplace) LastInventoryID() (uint64, error) {
	defer m.read()()
	return m.catalog.LastInventoryID()
}

// Order returns an order.
func (m *Marketplace) Order(id uint64) (*escrow.Order, error) {
	defer m.read()()
	return m.escrow.Order(id)
}

// LastOrderID returns the number of orders created.
func (m *Marketplace) LastOrderID() (uint64, error) {
	defer m.read()()
	return m.escrow.LastOrderID()
}

// EscrowBalance returns the custody still held for an order.
func (m *Marketplace) EscrowBalance(orderID uint64) (*big.Int, error) {
	defer m.read()()
	return m.escrow.EscrowBalance(orderID)
}

// Dispute returns a dispute.
func (m *Marketplace) Dispute(id uint64) (*dispute.Dispute, error) {
	defer m.read()()
	return m.disputes.Dispute(id)
}

// DisputeForOrder returns the dispute raised against an order.
func (m *Marketplace) DisputeForOrder(orderID uint64) (*dispute.Dispute, error) {
	defer m.read()()
	return m.disputes.DisputeForOrder(orderID)
}

// LastDisputeID returns the number of disputes opened.
func (m *Marketplace) LastDisputeID() (uint64, error) {
	defer m.read()()
	return m.disputes.LastDisputeID()
}

// Operator returns the active operator at index.
func (m *Marketplace) Operator(index uint64) ([20]byte, error) {
	defer m.read()()
	return m.disputes.Operator(index)
}

// OperatorCount returns the number of operator seats.
func (m *Marketplace) OperatorCount() (uint64, error) {
	defer m.read()()
	return m.disputes.OperatorCount()
}

// BalanceOf returns a ledger balance.
func (m *Marketplace) BalanceOf(addr [20]byte) (*big.Int, error) {
	defer m.read()()
	return m.ledger.BalanceOf(addr)
}

// Allowance returns how much spender may move for owner.
func (m *Marketplace) Allowance(owner, spender [20]byte) (*big.Int, error) {
	defer m.read()()
	return m.ledger.Allowance(owner, spender)
}

// Vault returns the custody address.
func (m *Marketplace) Vault() [20]byte { return m.escrow.Vault() }
