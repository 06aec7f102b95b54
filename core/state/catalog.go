package state

import (
	"fmt"
	"math/big"

	"github.com/merlox/ethereum-store/native/catalog"
)

type storedProduct struct {
	ID              uint64
	Title           string
	SKU             [32]byte
	Description     string
	Price           *big.Int
	Image           string
	AttributeNames  []string
	AttributeValues []string
	Quantity        uint64
	Barcode         uint64
	Owner           [20]byte
	CreatedAt       uint64
	Deleted         bool
}

type storedInventory struct {
	ID      uint64
	Name    string
	SKUs    [][32]byte
	Owner   [20]byte
	Deleted bool
}

func newStoredProduct(p *catalog.Product) *storedProduct {
	price := big.NewInt(0)
	if p.Price != nil {
		price = new(big.Int).Set(p.Price)
	}
	return &storedProduct{
		ID:              p.ID,
		Title:           p.Title,
		SKU:             p.SKU,
		Description:     p.Description,
		Price:           price,
		Image:           p.Image,
		AttributeNames:  append([]string(nil), p.AttributeNames...),
		AttributeValues: append([]string(nil), p.AttributeValues...),
		Quantity:        p.Quantity,
		Barcode:         p.Barcode,
		Owner:           p.Owner,
		CreatedAt:       fromUnix(p.CreatedAt),
	}
}

func (s *storedProduct) toProduct() *catalog.Product {
	price := big.NewInt(0)
	if s.Price != nil {
		price = new(big.Int).Set(s.Price)
	}
	return &catalog.Product{
		ID:              s.ID,
		Title:           s.Title,
		SKU:             catalog.SKU(s.SKU),
		Description:     s.Description,
		Price:           price,
		Image:           s.Image,
		AttributeNames:  append([]string(nil), s.AttributeNames...),
		AttributeValues: append([]string(nil), s.AttributeValues...),
		Quantity:        s.Quantity,
		Barcode:         s.Barcode,
		Owner:           s.Owner,
		CreatedAt:       toUnix(s.CreatedAt),
	}
}

// ProductPut stores the product record.
func (m *Manager) ProductPut(p *catalog.Product) error {
	if p == nil {
		return fmt.Errorf("state: nil product")
	}
	return m.KVPut(productKey(p.ID), newStoredProduct(p))
}

// ProductGet returns the product. Tombstoned records read as absent.
func (m *Manager) ProductGet(id uint64) (*catalog.Product, bool, error) {
	stored := new(storedProduct)
	ok, err := m.KVGet(productKey(id), stored)
	if err != nil || !ok || stored.Deleted {
		return nil, false, err
	}
	return stored.toProduct(), true, nil
}

// ProductDelete tombstones the product so its identifier is never reused.
func (m *Manager) ProductDelete(id uint64) error {
	stored := new(storedProduct)
	ok, err := m.KVGet(productKey(id), stored)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("state: product %d not found", id)
	}
	stored.Deleted = true
	return m.KVPut(productKey(id), stored)
}

// NextProductID allocates the next product identifier.
func (m *Manager) NextProductID() (uint64, error) { return m.nextCounter(productSeqKey) }

// LastProductID returns the number of product identifiers allocated.
func (m *Manager) LastProductID() (uint64, error) { return m.counter(productSeqKey) }

// InventoryPut stores the inventory record.
func (m *Manager) InventoryPut(inv *catalog.Inventory) error {
	if inv == nil {
		return fmt.Errorf("state: nil inventory")
	}
	skus := make([][32]byte, len(inv.SKUs))
	for i, sku := range inv.SKUs {
		skus[i] = sku
	}
	return m.KVPut(inventoryKey(inv.ID), &storedInventory{ID: inv.ID, Name: inv.Name, SKUs: skus, Owner: inv.Owner})
}

// InventoryGet returns the inventory. Deleted records read as absent.
func (m *Manager) InventoryGet(id uint64) (*catalog.Inventory, bool, error) {
	stored := new(storedInventory)
	ok, err := m.KVGet(inventoryKey(id), stored)
	if err != nil || !ok || stored.Deleted {
		return nil, false, err
	}
	skus := make([]catalog.SKU, len(stored.SKUs))
	for i, sku := range stored.SKUs {
		skus[i] = sku
	}
	return &catalog.Inventory{ID: stored.ID, Name: stored.Name, SKUs: skus, Owner: stored.Owner}, true, nil
}

// InventoryDelete tombstones the inventory.
func (m *Manager) InventoryDelete(id uint64) error {
	stored := new(storedInventory)
	ok, err := m.KVGet(inventoryKey(id), stored)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("state: inventory %d not found", id)
	}
	stored.Deleted = true
	return m.KVPut(inventoryKey(id), stored)
}

// NextInventoryID allocates the next inventory identifier.
func (m *Manager) NextInventoryID() (uint64, error) { return m.nextCounter(inventorySeqKey) }

// LastInventoryID returns the number of inventory identifiers allocated.
func (m *Manager) LastInventoryID() (uint64, error) { return m.counter(inventorySeqKey) }
