package escrow

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestShippingLogValueMasksBuyer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("order", slog.Any("shipping", testShipping()))
	out := buf.String()
	for _, secret := range []string{"Ada", "1 Main St", "Springfield", "555"} {
		if strings.Contains(out, secret) {
			t.Fatalf("log line leaked %q: %s", secret, out)
		}
	}
	if !strings.Contains(out, `"country":"US"`) {
		t.Fatalf("expected country to stay readable: %s", out)
	}
}
