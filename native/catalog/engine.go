package catalog

import (
	"errors"
	"fmt"
	"time"

	marketerrors "github.com/merlox/ethereum-store/core/errors"
	"github.com/merlox/ethereum-store/core/events"
	"github.com/merlox/ethereum-store/core/types"
	nativecommon "github.com/merlox/ethereum-store/native/common"
)

// ModuleName identifies the catalog for pause switches and metrics.
const ModuleName = "catalog"

var errNilState = errors.New("catalog engine: state not configured")

type engineState interface {
	ProductPut(*Product) error
	ProductGet(id uint64) (*Product, bool, error)
	ProductDelete(id uint64) error
	NextProductID() (uint64, error)
	LastProductID() (uint64, error)
	InventoryPut(*Inventory) error
	InventoryGet(id uint64) (*Inventory, bool, error)
	InventoryDelete(id uint64) error
	NextInventoryID() (uint64, error)
	LastInventoryID() (uint64, error)
}

// Engine owns product and inventory bookkeeping. It never moves funds.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
	pauses  nativecommon.PauseView
}

// NewEngine creates a catalog engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses wires the pause switches consulted before every mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
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
	e.emitter.Emit(catalogEvent{evt: evt})
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
	return nativecommon.Guard(e.pauses, ModuleName)
}

// PublishProduct validates and stores a new listing owned by the caller and
// returns it with its sequential identifier.
func (e *Engine) PublishProduct(caller [20]byte, in ProductInput) (*Product, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	product, err := SanitizeProductInput(in)
	if err != nil {
		return nil, err
	}
	id, err := e.state.NextProductID()
	if err != nil {
		return nil, err
	}
	product.ID = id
	product.Owner = caller
	product.CreatedAt = e.now()
	if err := e.state.ProductPut(product); err != nil {
		return nil, err
	}
	e.emit(NewProductPublishedEvent(product))
	return product.Clone(), nil
}

// DeleteProduct tombstones the listing. Only the listing owner may delete it.
func (e *Engine) DeleteProduct(caller [20]byte, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	product, err := e.Product(id)
	if err != nil {
		return err
	}
	if product.Owner != caller {
		return fmt.Errorf("catalog: delete product %d: %w", id, marketerrors.ErrUnauthorized)
	}
	if err := e.state.ProductDelete(id); err != nil {
		return err
	}
	e.emit(NewProductDeletedEvent(product))
	return nil
}

// Product returns the listing or ErrNotFound when it was never created or has
// been deleted.
func (e *Engine) Product(id uint64) (*Product, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	product, ok, err := e.state.ProductGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("catalog: product %d: %w", id, marketerrors.ErrNotFound)
	}
	return product, nil
}

// Reserve takes one unit of stock for a purchase and returns the updated
// product.
func (e *Engine) Reserve(id uint64) (*Product, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	product, err := e.Product(id)
	if err != nil {
		return nil, err
	}
	if product.Quantity == 0 {
		return nil, fmt.Errorf("catalog: product %d: %w", id, marketerrors.ErrInsufficientStock)
	}
	product.Quantity--
	if err := e.state.ProductPut(product); err != nil {
		return nil, err
	}
	e.emit(NewProductReservedEvent(product))
	return product.Clone(), nil
}

// LastID returns the number of product identifiers allocated so far.
func (e *Engine) LastID() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.LastProductID()
}

// CreateInventory stores a named group of SKUs owned by the caller.
func (e *Engine) CreateInventory(caller [20]byte, name string, skus []string) (*Inventory, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	trimmed := NormalizeText(name)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: inventory name required", marketerrors.ErrInvalidInput)
	}
	refs := make([]SKU, 0, len(skus))
	for _, raw := range skus {
		sku, err := NewSKU(raw)
		if err != nil {
			return nil, err
		}
		refs = append(refs, sku)
	}
	id, err := e.state.NextInventoryID()
	if err != nil {
		return nil, err
	}
	inv := &Inventory{ID: id, Name: trimmed, SKUs: refs, Owner: caller}
	if err := e.state.InventoryPut(inv); err != nil {
		return nil, err
	}
	e.emit(NewInventoryCreatedEvent(inv))
	return inv.Clone(), nil
}

// DeleteInventory removes the inventory. Only its creator may delete it.
func (e *Engine) DeleteInventory(caller [20]byte, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	inv, err := e.Inventory(id)
	if err != nil {
		return err
	}
	if inv.Owner != caller {
		return fmt.Errorf("catalog: delete inventory %d: %w", id, marketerrors.ErrUnauthorized)
	}
	if err := e.state.InventoryDelete(id); err != nil {
		return err
	}
	e.emit(NewInventoryDeletedEvent(inv))
	return nil
}

// Inventory returns the inventory or ErrNotFound.
func (e *Engine) Inventory(id uint64) (*Inventory, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	inv, ok, err := e.state.InventoryGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("catalog: inventory %d: %w", id, marketerrors.ErrNotFound)
	}
	return inv, nil
}

// LastInventoryID returns the number of inventory identifiers allocated so
// far.
func (e *Engine) LastInventoryID() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.LastInventoryID()
}
