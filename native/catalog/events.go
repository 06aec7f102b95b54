package catalog

import (
	"strconv"
	"strings"

	"github.com/merlox/ethereum-store/core/types"
	"github.com/merlox/ethereum-store/crypto"
)

const (
	EventTypeProductPublished = "market.product.published"
	EventTypeProductDeleted   = "market.product.deleted"
	EventTypeProductReserved  = "market.product.reserved"
	EventTypeInventoryCreated = "market.inventory.created"
	EventTypeInventoryDeleted = "market.inventory.deleted"
)

type catalogEvent struct {
	evt *types.Event
}

func (e catalogEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e catalogEvent) Event() *types.Event { return e.evt }

// NewProductPublishedEvent returns the canonical payload for a new listing.
func NewProductPublishedEvent(p *Product) *types.Event {
	return newProductEvent(EventTypeProductPublished, p)
}

// NewProductDeletedEvent returns the payload emitted when a listing is
// tombstoned.
func NewProductDeletedEvent(p *Product) *types.Event {
	return newProductEvent(EventTypeProductDeleted, p)
}

// NewProductReservedEvent returns the payload emitted when a purchase takes a
// unit of stock.
func NewProductReservedEvent(p *Product) *types.Event {
	return newProductEvent(EventTypeProductReserved, p)
}

// NewInventoryCreatedEvent returns the payload for a new inventory.
func NewInventoryCreatedEvent(i *Inventory) *types.Event {
	return newInventoryEvent(EventTypeInventoryCreated, i)
}

// NewInventoryDeletedEvent returns the payload for a removed inventory.
func NewInventoryDeletedEvent(i *Inventory) *types.Event {
	return newInventoryEvent(EventTypeInventoryDeleted, i)
}

func newProductEvent(eventType string, p *Product) *types.Event {
	attrs := make(map[string]string)
	if p == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["productId"] = strconv.FormatUint(p.ID, 10)
	attrs["sku"] = p.SKU.String()
	attrs["owner"] = crypto.FormatAddress(p.Owner)
	attrs["quantity"] = strconv.FormatUint(p.Quantity, 10)
	if p.Price != nil {
		attrs["price"] = p.Price.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newInventoryEvent(eventType string, i *Inventory) *types.Event {
	attrs := make(map[string]string)
	if i == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	skus := make([]string, 0, len(i.SKUs))
	for _, sku := range i.SKUs {
		skus = append(skus, sku.String())
	}
	attrs["inventoryId"] = strconv.FormatUint(i.ID, 10)
	attrs["name"] = i.Name
	attrs["owner"] = crypto.FormatAddress(i.Owner)
	attrs["skus"] = strings.Join(skus, ",")
	return &types.Event{Type: eventType, Attributes: attrs}
}
