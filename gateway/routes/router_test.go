package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/merlox/ethereum-store/core"
	"github.com/merlox/ethereum-store/core/events"
	"github.com/merlox/ethereum-store/crypto"
	"github.com/merlox/ethereum-store/gateway/middleware"
	nativecommon "github.com/merlox/ethereum-store/native/common"
	"github.com/merlox/ethereum-store/observability/journal"
	"github.com/merlox/ethereum-store/storage"
)

const day = int64(24 * 60 * 60)

var (
	seller   = [20]byte{0xA0}
	buyer    = [20]byte{0xB1}
	stranger = [20]byte{0xD3}
	vault    = [20]byte{0xEE}
)

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	market *core.Marketplace
	stream *events.Stream
	clock  int64
}

func newTestServer(t *testing.T, paused ...string) *testServer {
	t.Helper()
	ts := &testServer{t: t, clock: 1_700_000_000}

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	ts.stream = events.NewStream()
	market, err := core.NewMarketplace(storage.NewMemDB(), core.Options{
		Vault:   vault,
		Emitter: events.Multi{j, ts.stream},
		Pauses:  nativecommon.NewStaticPauses(paused),
		Now:     func() int64 { return ts.clock },
	})
	require.NoError(t, err)
	_, err = market.Bootstrap(core.Seed{
		Owner:    seller,
		Balances: []core.Allocation{{Address: buyer, Amount: big.NewInt(1_000)}},
	})
	require.NoError(t, err)
	ts.market = market

	handler, err := New(Config{
		Market:        market,
		Events:        j,
		Stream:        ts.stream,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{}, nil),
		RateLimiter:   middleware.NewRateLimiter(middleware.RateLimit{}),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{}, nil, nil, nil),
	})
	require.NoError(t, err)
	ts.srv = httptest.NewServer(handler)
	t.Cleanup(ts.srv.Close)
	return ts
}

// do sends a request as caller (zero address means anonymous) and decodes a
// JSON response into out when given.
func (ts *testServer) do(method, path string, caller [20]byte, body interface{}, out interface{}) int {
	ts.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(ts.t, err)
	req.Header.Set("Content-Type", "application/json")
	if caller != ([20]byte{}) {
		req.Header.Set(middleware.CallerHeader, crypto.FormatAddress(caller))
	}
	resp, err := ts.srv.Client().Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(out))
	}
	if out != nil && resp.StatusCode >= 400 {
		require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func shirtRequest(quantity uint64) map[string]interface{} {
	return map[string]interface{}{
		"title":           "Shirt",
		"sku":             "SHIRT-01",
		"price":           "200",
		"attributeNames":  []string{"size"},
		"attributeValues": []string{"M", "L"},
		"quantity":        quantity,
		"barcode":         42,
	}
}

var shippingRequest = map[string]string{"name": "Buyer", "address": "1 Main St", "phone": "555"}

func (ts *testServer) publishAndBuy(quantity uint64) (productView, orderView) {
	ts.t.Helper()
	var product productView
	require.Equal(ts.t, http.StatusCreated, ts.do(http.MethodPost, "/v1/products", seller, shirtRequest(quantity), &product))
	require.Equal(ts.t, http.StatusNoContent, ts.do(http.MethodPost, "/v1/accounts/approve", buyer,
		map[string]string{"spender": crypto.FormatAddress(vault), "amount": product.Price}, nil))
	var order orderView
	require.Equal(ts.t, http.StatusCreated, ts.do(http.MethodPost, "/v1/products/0/buy", buyer, shippingRequest, &order))
	return product, order
}

func TestPurchaseAndRelease(t *testing.T) {
	ts := newTestServer(t)
	product, order := ts.publishAndBuy(2)
	require.Equal(t, crypto.FormatAddress(seller), product.Owner)
	require.Equal(t, "created", order.State)
	require.Equal(t, "200", order.Price)

	var got productView
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/products/0", [20]byte{}, nil, &got))
	require.Equal(t, uint64(1), got.Quantity)

	var escrowed map[string]string
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/orders/0/escrow", [20]byte{}, nil, &escrowed))
	require.Equal(t, "200", escrowed["balance"])

	var sent orderView
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/v1/orders/0/sent", seller, nil, &sent))
	require.Equal(t, "sent", sent.State)

	var failure map[string]string
	require.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodPost, "/v1/orders/0/release", seller, nil, &failure))
	require.Equal(t, "window_not_elapsed", failure["code"])

	ts.clock += 15 * day
	var done orderView
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/v1/orders/0/release", seller, nil, &done))
	require.Equal(t, "completed", done.State)

	var bal map[string]string
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/accounts/"+crypto.FormatAddress(seller)+"/balance", [20]byte{}, nil, &bal))
	require.Equal(t, "200", bal["balance"])

	var evts struct {
		Events []eventView `json:"events"`
	}
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/events?type=market.order.completed", [20]byte{}, nil, &evts))
	require.Len(t, evts.Events, 1)
	require.Equal(t, "0", evts.Events[0].Attributes["orderId"])
}

func TestDisputeResolvedForBuyer(t *testing.T) {
	ts := newTestServer(t)
	ts.publishAndBuy(1)

	var d disputeView
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/v1/orders/0/dispute", buyer, map[string]string{"reason": "never arrived"}, &d))
	require.Equal(t, "open", d.State)

	require.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/v1/disputes/0/counter", stranger, map[string]string{"reason": "x"}, nil))
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/v1/disputes/0/counter", seller, map[string]string{"reason": "tracking attached"}, &d))
	require.Equal(t, "countered", d.State)

	var failure map[string]string
	require.Equal(t, http.StatusConflict, ts.do(http.MethodPost, "/v1/orders/0/release", seller, nil, &failure))
	require.Equal(t, "dispute_pending", failure["code"])

	require.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/v1/disputes/0/resolve", stranger, map[string]bool{"buyerWins": true}, nil))
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/v1/disputes/0/resolve", seller, map[string]bool{"buyerWins": true}, &d))
	require.Equal(t, "resolved", d.State)
	require.Equal(t, "buyer-wins", d.Outcome)
	require.Equal(t, http.StatusConflict, ts.do(http.MethodPost, "/v1/disputes/0/resolve", seller, map[string]bool{"buyerWins": false}, nil))

	var order orderView
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/orders/0", [20]byte{}, nil, &order))
	require.Equal(t, "resolved", order.State)
	require.Equal(t, "buyer", order.Resolution)

	var bal map[string]string
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/accounts/"+crypto.FormatAddress(buyer)+"/balance", [20]byte{}, nil, &bal))
	require.Equal(t, "1000", bal["balance"])

	var byOrder disputeView
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/orders/0/dispute", [20]byte{}, nil, &byOrder))
	require.Equal(t, uint64(0), byOrder.ID)
}

func TestShippingVisibleToPartiesOnly(t *testing.T) {
	ts := newTestServer(t)
	ts.publishAndBuy(1)

	var order map[string]interface{}
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/orders/0", [20]byte{}, nil, &order))
	require.NotContains(t, order, "shipping")

	var ship shippingView
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/orders/0/shipping", seller, nil, &ship))
	require.Equal(t, "1 Main St", ship.Address)
	require.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/v1/orders/0/shipping", stranger, nil, nil))
	require.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/v1/orders/0/shipping", [20]byte{}, nil, nil))
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/v1/products/9", [20]byte{}, nil, nil))
	require.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/v1/orders/abc", [20]byte{}, nil, nil))
	require.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/v1/products", [20]byte{}, shirtRequest(1), nil))
	require.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/v1/products", seller, nil, nil))

	var failure map[string]string
	negative := shirtRequest(1)
	negative["price"] = "-1"
	require.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodPost, "/v1/products", seller, negative, &failure))
	require.Equal(t, "invalid_input", failure["code"])

	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/v1/products", seller, shirtRequest(1), nil))
	require.Equal(t, http.StatusPaymentRequired, ts.do(http.MethodPost, "/v1/products/0/buy", buyer, shippingRequest, &failure))
	require.Equal(t, "payment_failed", failure["code"])

	var product productView
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/products/0", [20]byte{}, nil, &product))
	require.Equal(t, uint64(1), product.Quantity)

	var last map[string]uint64
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/orders/last", [20]byte{}, nil, &last))
	require.Equal(t, uint64(0), last["lastId"])

	require.Equal(t, http.StatusNoContent, ts.do(http.MethodPost, "/v1/accounts/approve", buyer,
		map[string]string{"spender": crypto.FormatAddress(vault), "amount": "1000"}, nil))
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/v1/products/0/buy", buyer, shippingRequest, nil))
	require.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodPost, "/v1/products/0/buy", buyer, shippingRequest, &failure))
	require.Equal(t, "insufficient_stock", failure["code"])

	require.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodPost, "/v1/accounts/transfer", stranger,
		map[string]string{"to": crypto.FormatAddress(buyer), "amount": "5"}, &failure))
	require.Equal(t, "insufficient_funds", failure["code"])

	require.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/v1/accounts/transfer", vault,
		map[string]string{"to": crypto.FormatAddress(stranger), "amount": "1"}, &failure))
	require.Equal(t, "unauthorized", failure["code"])
}

func TestPausedModule(t *testing.T) {
	ts := newTestServer(t, "catalog")
	var failure map[string]string
	require.Equal(t, http.StatusLocked, ts.do(http.MethodPost, "/v1/products", seller, shirtRequest(1), &failure))
	require.Equal(t, "module_paused", failure["code"])
}

func TestOperatorsAndInventory(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/v1/operators", stranger,
		map[string]interface{}{"address": crypto.FormatAddress(stranger)}, nil))
	require.Equal(t, http.StatusNoContent, ts.do(http.MethodPost, "/v1/operators", seller,
		map[string]interface{}{"address": crypto.FormatAddress(stranger)}, nil))

	var ops struct {
		Count  uint64         `json:"count"`
		Active []operatorView `json:"active"`
	}
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/operators", [20]byte{}, nil, &ops))
	require.Equal(t, uint64(2), ops.Count)
	require.Len(t, ops.Active, 2)

	require.Equal(t, http.StatusNoContent, ts.do(http.MethodPost, "/v1/operators", seller,
		map[string]interface{}{"address": crypto.FormatAddress(stranger), "deactivate": true}, nil))
	require.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/v1/operators/1", [20]byte{}, nil, nil))

	var inv inventoryView
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/v1/inventories", seller,
		map[string]interface{}{"name": "Summer", "skus": []string{"SHIRT-01", "HAT-02"}}, &inv))
	require.Equal(t, []string{"SHIRT-01", "HAT-02"}, inv.SKUs)
	require.Equal(t, http.StatusForbidden, ts.do(http.MethodDelete, "/v1/inventories/0", stranger, nil, nil))
	require.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/v1/inventories/0", seller, nil, nil))
	require.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/v1/inventories/0", [20]byte{}, nil, nil))
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.srv.Client().Get(ts.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ts.do(http.MethodGet, "/v1/products/last", [20]byte{}, nil, nil)
	resp, err = ts.srv.Client().Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "gateway_requests_total")
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/v1/events/stream?type=market.product.published"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	require.Eventually(t, func() bool { return ts.stream.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/v1/products", seller, shirtRequest(1), nil))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg streamMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "market.product.published", msg.Type)
	require.Equal(t, "0", msg.Attributes["productId"])
}

func TestEventStreamReplaysFromCursor(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/v1/products", seller, shirtRequest(1), nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/v1/events/stream?cursor=0&type=market.product.published"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg streamMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "market.product.published", msg.Type)
}
