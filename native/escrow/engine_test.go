package escrow

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	marketerrors "github.com/merlox/ethereum-store/core/errors"
	"github.com/merlox/ethereum-store/core/events"
	"github.com/merlox/ethereum-store/native/catalog"
)

type mockState struct {
	orders  map[uint64]*Order
	custody map[uint64]*big.Int
	next    uint64
}

func newMockState() *mockState {
	return &mockState{
		orders:  make(map[uint64]*Order),
		custody: make(map[uint64]*big.Int),
	}
}

func (m *mockState) OrderPut(o *Order) error {
	if !o.State.Valid() {
		return fmt.Errorf("invalid order state %d", o.State)
	}
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *mockState) OrderGet(id uint64) (*Order, bool, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, false, nil
	}
	return o.Clone(), true, nil
}

func (m *mockState) NextOrderID() (uint64, error) {
	id := m.next
	m.next++
	return id, nil
}

func (m *mockState) LastOrderID() (uint64, error) { return m.next, nil }

func (m *mockState) EscrowCredit(id uint64, amt *big.Int) error {
	bal := m.custody[id]
	if bal == nil {
		bal = big.NewInt(0)
	}
	m.custody[id] = new(big.Int).Add(bal, amt)
	return nil
}

func (m *mockState) EscrowDebit(id uint64, amt *big.Int) error {
	bal := m.custody[id]
	if bal == nil || bal.Cmp(amt) < 0 {
		return fmt.Errorf("insufficient custody for order %d", id)
	}
	m.custody[id] = new(big.Int).Sub(bal, amt)
	return nil
}

func (m *mockState) EscrowBalance(id uint64) (*big.Int, error) {
	if bal := m.custody[id]; bal != nil {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

type mockLedger struct {
	balances map[[20]byte]*big.Int
	failPull bool
}

func (l *mockLedger) balance(addr [20]byte) *big.Int {
	if bal := l.balances[addr]; bal != nil {
		return bal
	}
	return big.NewInt(0)
}

func (l *mockLedger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l.balance(from).Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	l.balances[from] = new(big.Int).Sub(l.balance(from), amount)
	l.balances[to] = new(big.Int).Add(l.balance(to), amount)
	return nil
}

func (l *mockLedger) TransferFrom(owner, _, to [20]byte, amount *big.Int) error {
	if l.failPull {
		return errors.New("allowance exceeded")
	}
	return l.Transfer(owner, to, amount)
}

func (l *mockLedger) BalanceOf(addr [20]byte) (*big.Int, error) {
	return new(big.Int).Set(l.balance(addr)), nil
}

type mockCatalog struct {
	products map[uint64]*catalog.Product
}

func (c *mockCatalog) Reserve(id uint64) (*catalog.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return nil, marketerrors.ErrNotFound
	}
	if p.Quantity == 0 {
		return nil, marketerrors.ErrInsufficientStock
	}
	p.Quantity--
	return p.Clone(), nil
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func (c *captureEmitter) types() []string {
	out := make([]string, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType())
	}
	return out
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var (
	seller = newTestAddress(0x01)
	buyer  = newTestAddress(0x02)
	vault  = newTestAddress(0xEE)
	price  = big.NewInt(200)
)

type fixture struct {
	engine  *Engine
	state   *mockState
	ledger  *mockLedger
	catalog *mockCatalog
	emitter *captureEmitter
	now     int64
}

func newFixture() *fixture {
	f := &fixture{
		state:   newMockState(),
		ledger:  &mockLedger{balances: map[[20]byte]*big.Int{buyer: big.NewInt(1000)}},
		catalog: &mockCatalog{products: map[uint64]*catalog.Product{0: {ID: 0, Owner: seller, Price: new(big.Int).Set(price), Quantity: 5, Barcode: 42}}},
		emitter: &captureEmitter{},
		now:     1_700_000_000,
	}
	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetLedger(f.ledger)
	f.engine.SetCatalog(f.catalog)
	f.engine.SetVault(vault)
	f.engine.SetEmitter(f.emitter)
	f.engine.SetNowFunc(func() int64 { return f.now })
	return f
}

func testShipping() Shipping {
	return Shipping{Name: "Ada", Address: "1 Main St", City: "Springfield", Country: "US", Phone: "555"}
}

func (f *fixture) buy(t *testing.T) *Order {
	t.Helper()
	order, err := f.engine.BuyProduct(buyer, 0, testShipping())
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	return order
}

func (f *fixture) balance(addr [20]byte) int64 {
	bal, _ := f.ledger.BalanceOf(addr)
	return bal.Int64()
}

func TestBuyProductEscrowsPrice(t *testing.T) {
	f := newFixture()
	order := f.buy(t)
	if order.ID != 0 || order.State != OrderCreated || order.Seller != seller || order.Buyer != buyer {
		t.Fatalf("unexpected order %+v", order)
	}
	if order.Price.Cmp(price) != 0 || order.Barcode != 42 || order.CreatedAt != f.now {
		t.Fatalf("order fields not copied from product: %+v", order)
	}
	if f.balance(buyer) != 800 || f.balance(vault) != 200 {
		t.Fatalf("unexpected balances buyer=%d vault=%d", f.balance(buyer), f.balance(vault))
	}
	custody, err := f.engine.EscrowBalance(order.ID)
	if err != nil || custody.Cmp(price) != 0 {
		t.Fatalf("expected custody 200, got %v (%v)", custody, err)
	}
	if f.catalog.products[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", f.catalog.products[0].Quantity)
	}
	last, _ := f.engine.LastOrderID()
	if last != 1 {
		t.Fatalf("expected last order id 1, got %d", last)
	}
	if got := f.emitter.types(); len(got) != 1 || got[0] != EventTypeOrderCreated {
		t.Fatalf("unexpected events %v", got)
	}
	if _, ok := f.emitter.events[0].Event().Attributes["phone"]; ok {
		t.Fatalf("shipping data leaked into event payload")
	}
}

func TestBuyProductFailures(t *testing.T) {
	f := newFixture()
	if _, err := f.engine.BuyProduct(buyer, 9, testShipping()); !errors.Is(err, marketerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	f.catalog.products[0].Quantity = 0
	if _, err := f.engine.BuyProduct(buyer, 0, testShipping()); !errors.Is(err, marketerrors.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	f.catalog.products[0].Quantity = 1
	f.ledger.failPull = true
	if _, err := f.engine.BuyProduct(buyer, 0, testShipping()); !errors.Is(err, marketerrors.ErrPaymentFailed) {
		t.Fatalf("expected payment failed, got %v", err)
	}
	if _, err := f.engine.BuyProduct(buyer, 0, Shipping{}); err == nil {
		t.Fatalf("expected empty shipping to be rejected")
	}
	if len(f.emitter.events) != 0 {
		t.Fatalf("failed purchases must not emit events")
	}
}

func TestEngineRequiresVault(t *testing.T) {
	f := newFixture()
	f.engine.SetVault([20]byte{})
	if _, err := f.engine.BuyProduct(buyer, 0, testShipping()); !errors.Is(err, errNilVault) {
		t.Fatalf("expected vault error, got %v", err)
	}
}

func TestMarkOrderSent(t *testing.T) {
	f := newFixture()
	order := f.buy(t)
	if err := f.engine.MarkOrderSent(buyer, order.ID); !errors.Is(err, marketerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	f.now += 60
	if err := f.engine.MarkOrderSent(seller, order.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	stored, _ := f.engine.Order(order.ID)
	if stored.State != OrderSent || stored.SentAt != f.now {
		t.Fatalf("unexpected order after send %+v", stored)
	}
	if err := f.engine.MarkOrderSent(seller, order.ID); !errors.Is(err, marketerrors.ErrInvalidState) {
		t.Fatalf("expected invalid state on second send, got %v", err)
	}
	if err := f.engine.MarkOrderSent(seller, 7); !errors.Is(err, marketerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReceivePaymentAfterWindow(t *testing.T) {
	f := newFixture()
	order := f.buy(t)
	if err := f.engine.MarkOrderSent(seller, order.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	f.now = order.CreatedAt + DisputeWindow - 1
	if err := f.engine.ReceivePayment(seller, order.ID); !errors.Is(err, marketerrors.ErrWindowNotElapsed) {
		t.Fatalf("expected window not elapsed, got %v", err)
	}
	f.now = order.CreatedAt + DisputeWindow
	if err := f.engine.ReceivePayment(buyer, order.ID); !errors.Is(err, marketerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := f.engine.ReceivePayment(seller, order.ID); err != nil {
		t.Fatalf("receive payment: %v", err)
	}
	if f.balance(seller) != 200 || f.balance(vault) != 0 {
		t.Fatalf("unexpected balances seller=%d vault=%d", f.balance(seller), f.balance(vault))
	}
	stored, _ := f.engine.Order(order.ID)
	if stored.State != OrderCompleted {
		t.Fatalf("expected completed, got %s", stored.State)
	}
	if err := f.engine.ReceivePayment(seller, order.ID); !errors.Is(err, marketerrors.ErrInvalidState) {
		t.Fatalf("expected invalid state on double release, got %v", err)
	}
	if f.balance(seller) != 200 {
		t.Fatalf("double release moved funds")
	}
}

func TestReceivePaymentRequiresShipment(t *testing.T) {
	f := newFixture()
	order := f.buy(t)
	f.now = order.CreatedAt + DisputeWindow
	if err := f.engine.ReceivePayment(seller, order.ID); !errors.Is(err, marketerrors.ErrInvalidState) {
		t.Fatalf("expected invalid state for unsent order, got %v", err)
	}
}

func TestDisputeBlocksReleaseAndBuyerWinRefunds(t *testing.T) {
	f := newFixture()
	order := f.buy(t)
	if err := f.engine.MarkOrderSent(seller, order.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if _, err := f.engine.OpenDispute(order.ID, seller); !errors.Is(err, marketerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized dispute, got %v", err)
	}
	if _, err := f.engine.OpenDispute(order.ID, buyer); err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if _, err := f.engine.OpenDispute(order.ID, buyer); !errors.Is(err, marketerrors.ErrInvalidState) {
		t.Fatalf("expected invalid state on second dispute, got %v", err)
	}
	f.now = order.CreatedAt + DisputeWindow
	if err := f.engine.ReceivePayment(seller, order.ID); !errors.Is(err, marketerrors.ErrDisputePending) {
		t.Fatalf("expected dispute pending, got %v", err)
	}
	settled, err := f.engine.SettleDispute(order.ID, true)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.State != OrderResolved || settled.Resolution != ResolutionBuyer {
		t.Fatalf("unexpected settled order %+v", settled)
	}
	if f.balance(buyer) != 1000 || f.balance(vault) != 0 {
		t.Fatalf("buyer not refunded: buyer=%d vault=%d", f.balance(buyer), f.balance(vault))
	}
	if err := f.engine.ReceivePayment(seller, order.ID); !errors.Is(err, marketerrors.ErrInvalidState) {
		t.Fatalf("expected invalid state after refund, got %v", err)
	}
	if _, err := f.engine.SettleDispute(order.ID, false); !errors.Is(err, marketerrors.ErrInvalidState) {
		t.Fatalf("expected one-shot settlement, got %v", err)
	}
	want := []string{EventTypeOrderCreated, EventTypeOrderSent, EventTypeOrderDisputed, EventTypeOrderRefunded, EventTypeOrderResolved}
	got := f.emitter.types()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestSellerWinLeavesFundsForRelease(t *testing.T) {
	f := newFixture()
	order := f.buy(t)
	if err := f.engine.MarkOrderSent(seller, order.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if _, err := f.engine.OpenDispute(order.ID, buyer); err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if _, err := f.engine.SettleDispute(order.ID, false); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if f.balance(buyer) != 800 || f.balance(vault) != 200 {
		t.Fatalf("seller win must not move funds")
	}
	f.now = order.CreatedAt + DisputeWindow
	if err := f.engine.ReceivePayment(seller, order.ID); err != nil {
		t.Fatalf("receive payment: %v", err)
	}
	if f.balance(seller) != 200 {
		t.Fatalf("expected seller paid, got %d", f.balance(seller))
	}
}

func TestDisputeWindowExpires(t *testing.T) {
	f := newFixture()
	order := f.buy(t)
	f.now = order.CreatedAt + 16*24*60*60
	if _, err := f.engine.OpenDispute(order.ID, buyer); !errors.Is(err, marketerrors.ErrWindowExpired) {
		t.Fatalf("expected window expired, got %v", err)
	}
}

func TestDisputeWindowBoundary(t *testing.T) {
	f := newFixture()
	late := f.buy(t)
	onTime := f.buy(t)

	f.now = late.CreatedAt + DisputeWindow
	if _, err := f.engine.OpenDispute(late.ID, buyer); !errors.Is(err, marketerrors.ErrWindowExpired) {
		t.Fatalf("expected window expired at the deadline, got %v", err)
	}
	f.now = onTime.CreatedAt + DisputeWindow - 1
	if _, err := f.engine.OpenDispute(onTime.ID, buyer); err != nil {
		t.Fatalf("dispute one second before the deadline: %v", err)
	}
}

func TestVaultCannotBuy(t *testing.T) {
	f := newFixture()
	f.ledger.balances[vault] = big.NewInt(1000)
	if _, err := f.engine.BuyProduct(vault, 0, testShipping()); !errors.Is(err, marketerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if f.catalog.products[0].Quantity != 5 {
		t.Fatalf("vault purchase reserved stock")
	}
}

func TestCustodyIsPerOrder(t *testing.T) {
	f := newFixture()
	first := f.buy(t)
	second := f.buy(t)
	if err := f.state.EscrowDebit(first.ID, price); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if err := f.engine.MarkOrderSent(seller, first.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	f.now = first.CreatedAt + DisputeWindow
	if err := f.engine.ReceivePayment(seller, first.ID); !errors.Is(err, marketerrors.ErrInvalidState) {
		t.Fatalf("expected invalid state without custody, got %v", err)
	}
	if f.balance(seller) != 0 {
		t.Fatalf("release without custody paid the seller")
	}
	bal, _ := f.engine.EscrowBalance(second.ID)
	if bal.Cmp(price) != 0 {
		t.Fatalf("second order custody touched: %v", bal)
	}
}
