package escrow

import (
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	marketerrors "github.com/merlox/ethereum-store/core/errors"
	"github.com/merlox/ethereum-store/observability/logging"
)

// DisputeWindow is the number of seconds after purchase during which the buyer
// may open a dispute. Payment can only be released once it has elapsed.
const DisputeWindow int64 = 15 * 24 * 60 * 60

// OrderState represents the lifecycle states of a purchase.
type OrderState uint8

const (
	OrderCreated OrderState = iota
	OrderSent
	OrderDisputed
	OrderResolved
	OrderCompleted
)

// Valid reports whether the state value is within the supported range.
func (s OrderState) Valid() bool {
	switch s {
	case OrderCreated, OrderSent, OrderDisputed, OrderResolved, OrderCompleted:
		return true
	default:
		return false
	}
}

func (s OrderState) String() string {
	switch s {
	case OrderCreated:
		return "created"
	case OrderSent:
		return "sent"
	case OrderDisputed:
		return "disputed"
	case OrderResolved:
		return "resolved"
	case OrderCompleted:
		return "completed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Resolution records which party an arbitration ruled for.
type Resolution uint8

const (
	ResolutionNone Resolution = iota
	ResolutionBuyer
	ResolutionSeller
)

func (r Resolution) String() string {
	switch r {
	case ResolutionBuyer:
		return "buyer"
	case ResolutionSeller:
		return "seller"
	default:
		return "none"
	}
}

// Shipping is the delivery information supplied by the buyer.
type Shipping struct {
	Name       string
	Address    string
	City       string
	Region     string
	PostalCode string
	Country    string
	Phone      string
}

// LogValue renders the shipping details with personal fields masked.
func (s Shipping) LogValue() slog.Value {
	return logging.Delivery(s).LogValue()
}

// MaxShippingFieldBytes bounds every shipping field.
const MaxShippingFieldBytes = 256

// Sanitize trims the fields and enforces the size bound.
func (s Shipping) Sanitize() (Shipping, error) {
	fields := []*string{&s.Name, &s.Address, &s.City, &s.Region, &s.PostalCode, &s.Country, &s.Phone}
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
		if len(*f) > MaxShippingFieldBytes {
			return s, fmt.Errorf("%w: shipping field exceeds %d bytes", marketerrors.ErrInvalidInput, MaxShippingFieldBytes)
		}
	}
	if s.Name == "" || s.Address == "" {
		return s, fmt.Errorf("%w: shipping name and address required", marketerrors.ErrInvalidInput)
	}
	return s, nil
}

// Order captures a single purchase. Price is copied from the product at
// purchase time and never changes afterwards.
type Order struct {
	ID         uint64
	ProductID  uint64
	Buyer      [20]byte
	Seller     [20]byte
	Shipping   Shipping
	Price      *big.Int
	Barcode    uint64
	CreatedAt  int64
	SentAt     int64
	State      OrderState
	Resolution Resolution
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Price != nil {
		clone.Price = new(big.Int).Set(o.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// DisputeDeadline returns the first instant at which the order can no longer
// be disputed and payment may be released.
func (o *Order) DisputeDeadline() int64 {
	if o == nil {
		return 0
	}
	return o.CreatedAt + DisputeWindow
}

// Refunded reports whether arbitration returned the price to the buyer.
func (o *Order) Refunded() bool {
	return o != nil && o.State == OrderResolved && o.Resolution == ResolutionBuyer
}

// Settled reports whether the escrowed amount has already left custody.
func (o *Order) Settled() bool {
	return o != nil && (o.State == OrderCompleted || o.Refunded())
}
