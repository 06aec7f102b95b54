package catalog

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/text/unicode/norm"

	marketerrors "github.com/merlox/ethereum-store/core/errors"
)

// SKU is the fixed-width stock keeping identifier attached to products and
// inventories.
type SKU [32]byte

// MaxFieldBytes bounds fixed-width text fields (SKUs and attribute labels).
const MaxFieldBytes = 32

// NormalizeText trims surrounding whitespace and folds the text to NFKC so
// visually identical listings store identical bytes.
func NormalizeText(raw string) string {
	return strings.TrimSpace(norm.NFKC.String(raw))
}

// NewSKU converts a textual identifier into its fixed-width form.
func NewSKU(raw string) (SKU, error) {
	var sku SKU
	trimmed := NormalizeText(raw)
	if trimmed == "" {
		return sku, fmt.Errorf("%w: sku required", marketerrors.ErrInvalidInput)
	}
	if len(trimmed) > MaxFieldBytes {
		return sku, fmt.Errorf("%w: sku exceeds %d bytes", marketerrors.ErrInvalidInput, MaxFieldBytes)
	}
	copy(sku[:], trimmed)
	return sku, nil
}

// String trims the zero padding.
func (s SKU) String() string {
	return string(bytes.TrimRight(s[:], "\x00"))
}

// Product is a listed item. Price is a fixed-point integer on an 18-decimal
// scale and is copied onto each order at purchase time.
type Product struct {
	ID              uint64
	Title           string
	SKU             SKU
	Description     string
	Price           *big.Int
	Image           string
	AttributeNames  []string
	AttributeValues []string
	Quantity        uint64
	Barcode         uint64
	Owner           [20]byte
	CreatedAt       int64
}

// Clone returns a deep copy of the product so callers can safely mutate the
// copy without affecting the stored instance.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Price != nil {
		clone.Price = new(big.Int).Set(p.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	clone.AttributeNames = append([]string(nil), p.AttributeNames...)
	clone.AttributeValues = append([]string(nil), p.AttributeValues...)
	return &clone
}

// ProductInput carries the caller supplied listing fields.
type ProductInput struct {
	Title           string
	SKU             string
	Description     string
	Price           *big.Int
	Image           string
	AttributeNames  []string
	AttributeValues []string
	Quantity        uint64
	Barcode         uint64
}

// Inventory groups SKU references under a name. Nothing ties the SKUs to
// existing products.
type Inventory struct {
	ID    uint64
	Name  string
	SKUs  []SKU
	Owner [20]byte
}

// Clone returns a deep copy of the inventory.
func (i *Inventory) Clone() *Inventory {
	if i == nil {
		return nil
	}
	clone := *i
	clone.SKUs = append([]SKU(nil), i.SKUs...)
	return &clone
}

// SanitizeProductInput validates the listing and returns the normalised
// product fields. The input is not mutated.
func SanitizeProductInput(in ProductInput) (*Product, error) {
	title := NormalizeText(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title required", marketerrors.ErrInvalidInput)
	}
	sku, err := NewSKU(in.SKU)
	if err != nil {
		return nil, err
	}
	price := big.NewInt(0)
	if in.Price != nil {
		price = new(big.Int).Set(in.Price)
	}
	if price.Sign() < 0 {
		return nil, fmt.Errorf("%w: price must be non-negative", marketerrors.ErrInvalidInput)
	}
	names, err := sanitizeLabels("attribute name", in.AttributeNames)
	if err != nil {
		return nil, err
	}
	values, err := sanitizeLabels("attribute value", in.AttributeValues)
	if err != nil {
		return nil, err
	}
	return &Product{
		Title:           title,
		SKU:             sku,
		Description:     NormalizeText(in.Description),
		Price:           price,
		Image:           strings.TrimSpace(in.Image),
		AttributeNames:  names,
		AttributeValues: values,
		Quantity:        in.Quantity,
		Barcode:         in.Barcode,
	}, nil
}

func sanitizeLabels(kind string, labels []string) ([]string, error) {
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		trimmed := NormalizeText(label)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: empty %s", marketerrors.ErrInvalidInput, kind)
		}
		if len(trimmed) > MaxFieldBytes {
			return nil, fmt.Errorf("%w: %s %q exceeds %d bytes", marketerrors.ErrInvalidInput, kind, trimmed, MaxFieldBytes)
		}
		out = append(out, trimmed)
	}
	return out, nil
}
