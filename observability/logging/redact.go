package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces buyer-identifying values in log output.
const RedactedValue = "[REDACTED]"

// ShippingGroup is the attribute group that carries delivery details.
const ShippingGroup = "shipping"

// personalKeys identify a buyer or their doorstep. Region and country stay
// readable for fulfilment dashboards.
var personalKeys = map[string]struct{}{
	"name":       {},
	"address":    {},
	"city":       {},
	"postalcode": {},
	"phone":      {},
}

// IsPersonal reports whether a delivery key carries personal data.
func IsPersonal(key string) bool {
	_, ok := personalKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// Delivery is the loggable form of an order's shipping details.
type Delivery struct {
	Name       string
	Address    string
	City       string
	Region     string
	PostalCode string
	Country    string
	Phone      string
}

// LogValue implements slog.LogValuer with personal fields masked. Blank
// fields stay blank so operators can see what the buyer left out.
func (d Delivery) LogValue() slog.Value {
	fields := []struct{ key, value string }{
		{"name", d.Name},
		{"address", d.Address},
		{"city", d.City},
		{"region", d.Region},
		{"postalCode", d.PostalCode},
		{"country", d.Country},
		{"phone", d.Phone},
	}
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, maskDeliveryField(f.key, f.value))
	}
	return slog.GroupValue(attrs...)
}

func maskDeliveryField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || !IsPersonal(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// redactShipping masks personal keys logged under ShippingGroup by code that
// bypassed Delivery.
func redactShipping(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) == 0 || groups[len(groups)-1] != ShippingGroup {
		return attr
	}
	if attr.Value.Kind() != slog.KindString {
		return attr
	}
	return maskDeliveryField(attr.Key, attr.Value.String())
}
