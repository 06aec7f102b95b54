package routes

import (
	"math/big"

	"github.com/merlox/ethereum-store/crypto"
	"github.com/merlox/ethereum-store/native/catalog"
	"github.com/merlox/ethereum-store/native/dispute"
	"github.com/merlox/ethereum-store/native/escrow"
)

type productView struct {
	ID              uint64   `json:"id"`
	Title           string   `json:"title"`
	SKU             string   `json:"sku"`
	Description     string   `json:"description"`
	Price           string   `json:"price"`
	Image           string   `json:"image"`
	AttributeNames  []string `json:"attributeNames"`
	AttributeValues []string `json:"attributeValues"`
	Quantity        uint64   `json:"quantity"`
	Barcode         uint64   `json:"barcode"`
	Owner           string   `json:"owner"`
	CreatedAt       int64    `json:"createdAt"`
}

func newProductView(p *catalog.Product) productView {
	return productView{
		ID:              p.ID,
		Title:           p.Title,
		SKU:             p.SKU.String(),
		Description:     p.Description,
		Price:           amountString(p.Price),
		Image:           p.Image,
		AttributeNames:  nonNil(p.AttributeNames),
		AttributeValues: nonNil(p.AttributeValues),
		Quantity:        p.Quantity,
		Barcode:         p.Barcode,
		Owner:           crypto.FormatAddress(p.Owner),
		CreatedAt:       p.CreatedAt,
	}
}

type inventoryView struct {
	ID    uint64   `json:"id"`
	Name  string   `json:"name"`
	SKUs  []string `json:"skus"`
	Owner string   `json:"owner"`
}

func newInventoryView(inv *catalog.Inventory) inventoryView {
	skus := make([]string, len(inv.SKUs))
	for i, sku := range inv.SKUs {
		skus[i] = sku.String()
	}
	return inventoryView{ID: inv.ID, Name: inv.Name, SKUs: skus, Owner: crypto.FormatAddress(inv.Owner)}
}

// orderView omits shipping details; see shippingView.
type orderView struct {
	ID              uint64 `json:"id"`
	ProductID       uint64 `json:"productId"`
	Buyer           string `json:"buyer"`
	Seller          string `json:"seller"`
	Price           string `json:"price"`
	Barcode         uint64 `json:"barcode"`
	CreatedAt       int64  `json:"createdAt"`
	SentAt          int64  `json:"sentAt"`
	DisputeDeadline int64  `json:"disputeDeadline"`
	State           string `json:"state"`
	Resolution      string `json:"resolution"`
}

func newOrderView(o *escrow.Order) orderView {
	return orderView{
		ID:              o.ID,
		ProductID:       o.ProductID,
		Buyer:           crypto.FormatAddress(o.Buyer),
		Seller:          crypto.FormatAddress(o.Seller),
		Price:           amountString(o.Price),
		Barcode:         o.Barcode,
		CreatedAt:       o.CreatedAt,
		SentAt:          o.SentAt,
		DisputeDeadline: o.DisputeDeadline(),
		State:           o.State.String(),
		Resolution:      o.Resolution.String(),
	}
}

type shippingView struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func (s shippingView) toShipping() escrow.Shipping {
	return escrow.Shipping{
		Name:       s.Name,
		Address:    s.Address,
		City:       s.City,
		Region:     s.Region,
		PostalCode: s.PostalCode,
		Country:    s.Country,
		Phone:      s.Phone,
	}
}

func newShippingView(s escrow.Shipping) shippingView {
	return shippingView{
		Name:       s.Name,
		Address:    s.Address,
		City:       s.City,
		Region:     s.Region,
		PostalCode: s.PostalCode,
		Country:    s.Country,
		Phone:      s.Phone,
	}
}

type disputeView struct {
	ID            uint64 `json:"id"`
	OrderID       uint64 `json:"orderId"`
	Reason        string `json:"reason"`
	CounterReason string `json:"counterReason,omitempty"`
	State         string `json:"state"`
	Outcome       string `json:"outcome"`
	CreatedAt     int64  `json:"createdAt"`
	ResolvedAt    int64  `json:"resolvedAt,omitempty"`
	Resolver      string `json:"resolver,omitempty"`
}

func newDisputeView(d *dispute.Dispute) disputeView {
	view := disputeView{
		ID:            d.ID,
		OrderID:       d.OrderID,
		Reason:        d.Reason,
		CounterReason: d.CounterReason,
		State:         d.State.String(),
		Outcome:       d.Outcome.String(),
		CreatedAt:     d.CreatedAt,
		ResolvedAt:    d.ResolvedAt,
	}
	if d.Resolver != ([20]byte{}) {
		view.Resolver = crypto.FormatAddress(d.Resolver)
	}
	return view
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
