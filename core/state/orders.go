package state

import (
	"fmt"
	"math/big"

	"github.com/merlox/ethereum-store/native/escrow"
)

type storedShipping struct {
	Name       string
	Address    string
	City       string
	Region     string
	PostalCode string
	Country    string
	Phone      string
}

type storedOrder struct {
	ID         uint64
	ProductID  uint64
	Buyer      [20]byte
	Seller     [20]byte
	Shipping   storedShipping
	Price      *big.Int
	Barcode    uint64
	CreatedAt  uint64
	SentAt     uint64
	State      uint8
	Resolution uint8
}

// OrderPut stores the order record.
func (m *Manager) OrderPut(o *escrow.Order) error {
	if o == nil {
		return fmt.Errorf("state: nil order")
	}
	if !o.State.Valid() {
		return fmt.Errorf("state: invalid order state %d", o.State)
	}
	price := big.NewInt(0)
	if o.Price != nil {
		price = new(big.Int).Set(o.Price)
	}
	record := &storedOrder{
		ID:         o.ID,
		ProductID:  o.ProductID,
		Buyer:      o.Buyer,
		Seller:     o.Seller,
		Shipping:   storedShipping(o.Shipping),
		Price:      price,
		Barcode:    o.Barcode,
		CreatedAt:  fromUnix(o.CreatedAt),
		SentAt:     fromUnix(o.SentAt),
		State:      uint8(o.State),
		Resolution: uint8(o.Resolution),
	}
	return m.KVPut(orderKey(o.ID), record)
}

// OrderGet returns the stored order.
func (m *Manager) OrderGet(id uint64) (*escrow.Order, bool, error) {
	stored := new(storedOrder)
	ok, err := m.KVGet(orderKey(id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	price := big.NewInt(0)
	if stored.Price != nil {
		price = new(big.Int).Set(stored.Price)
	}
	return &escrow.Order{
		ID:         stored.ID,
		ProductID:  stored.ProductID,
		Buyer:      stored.Buyer,
		Seller:     stored.Seller,
		Shipping:   escrow.Shipping(stored.Shipping),
		Price:      price,
		Barcode:    stored.Barcode,
		CreatedAt:  toUnix(stored.CreatedAt),
		SentAt:     toUnix(stored.SentAt),
		State:      escrow.OrderState(stored.State),
		Resolution: escrow.Resolution(stored.Resolution),
	}, true, nil
}

// NextOrderID allocates the next order identifier.
func (m *Manager) NextOrderID() (uint64, error) { return m.nextCounter(orderSeqKey) }

// LastOrderID returns the number of orders created.
func (m *Manager) LastOrderID() (uint64, error) { return m.counter(orderSeqKey) }

// EscrowCredit increases the custody balance held for the order.
func (m *Manager) EscrowCredit(orderID uint64, amt *big.Int) error {
	if amt == nil || amt.Sign() < 0 {
		return fmt.Errorf("state: escrow credit must be non-negative")
	}
	current, err := m.getBig(custodyKey(orderID))
	if err != nil {
		return err
	}
	return m.putBig(custodyKey(orderID), new(big.Int).Add(current, amt))
}

// EscrowDebit decreases the custody balance held for the order, failing when
// the balance cannot cover the amount.
func (m *Manager) EscrowDebit(orderID uint64, amt *big.Int) error {
	if amt == nil || amt.Sign() < 0 {
		return fmt.Errorf("state: escrow debit must be non-negative")
	}
	current, err := m.getBig(custodyKey(orderID))
	if err != nil {
		return err
	}
	if current.Cmp(amt) < 0 {
		return fmt.Errorf("state: escrow custody for order %d holds %s, need %s", orderID, current, amt)
	}
	return m.putBig(custodyKey(orderID), new(big.Int).Sub(current, amt))
}

// EscrowBalance returns the custody balance held for the order.
func (m *Manager) EscrowBalance(orderID uint64) (*big.Int, error) {
	return m.getBig(custodyKey(orderID))
}
