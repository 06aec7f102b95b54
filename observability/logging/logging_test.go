package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))
	logger.Debug("hidden")
	logger.Info("order committed", "op", "buyProduct")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "order committed", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Contains(t, line, "timestamp")
	require.Equal(t, "buyProduct", line["op"])
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestDeliveryMasksPersonalFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))
	logger.Info("buy", slog.Any(ShippingGroup, Delivery{
		Name: "Ada", Address: "1 Main St", City: "Springfield", Region: "IL",
		PostalCode: "62701", Country: "US", Phone: "555-0100",
	}))

	var line struct {
		Shipping map[string]string `json:"shipping"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, RedactedValue, line.Shipping["phone"])
	require.Equal(t, RedactedValue, line.Shipping["address"])
	require.Equal(t, RedactedValue, line.Shipping["postalCode"])
	require.Equal(t, "US", line.Shipping["country"])
	require.Equal(t, "IL", line.Shipping["region"])
	require.NotContains(t, buf.String(), "555-0100")
}

func TestDeliveryMasksWithForeignHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("buy", slog.Any(ShippingGroup, Delivery{Name: "Ada", Phone: "555-0100", Country: "US"}))
	require.NotContains(t, buf.String(), "Ada")
	require.NotContains(t, buf.String(), "555-0100")
	require.Contains(t, buf.String(), "shipping.country=US")
	require.Contains(t, buf.String(), "shipping.city=\"\"")
}

func TestHandlerMasksRawShippingGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))
	logger.Info("manual", slog.Group(ShippingGroup,
		slog.String("phone", "555-0100"),
		slog.String("country", "US"),
		slog.String("name", ""),
	), slog.String("name", "orders"))

	var line struct {
		Name     string            `json:"name"`
		Shipping map[string]string `json:"shipping"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, RedactedValue, line.Shipping["phone"])
	require.Equal(t, "US", line.Shipping["country"])
	require.Equal(t, "", line.Shipping["name"])
	require.Equal(t, "orders", line.Name)
}

func TestIsPersonal(t *testing.T) {
	require.True(t, IsPersonal(" PostalCode "))
	require.True(t, IsPersonal("phone"))
	require.False(t, IsPersonal("country"))
	require.False(t, IsPersonal("op"))
}

func TestConfigWriterRotatesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.log")
	w := Config{File: path, MaxSizeMB: 1}.Writer()
	_, err := w.Write([]byte("{\"message\":\"hello\"}\n"))
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
}
