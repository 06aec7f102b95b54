package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/merlox/ethereum-store/core"
	"github.com/merlox/ethereum-store/core/events"
	"github.com/merlox/ethereum-store/gateway/middleware"
	"github.com/merlox/ethereum-store/observability/journal"
)

// EventSource lists committed events, newest first.
type EventSource interface {
	Recent(eventType string, limit int) ([]journal.Entry, error)
}

type Config struct {
	Market        *core.Marketplace
	Events        EventSource
	Stream        *events.Stream
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
}

type handlers struct {
	market  *core.Marketplace
	events  EventSource
	stream  *events.Stream
	origins []string
	log     *slog.Logger
}

// New builds the HTTP surface of the marketplace. Reads are public; every
// mutation runs as the authenticated caller.
func New(cfg Config) (http.Handler, error) {
	if cfg.Market == nil {
		return nil, errors.New("routes: marketplace required")
	}
	if cfg.Authenticator == nil {
		return nil, errors.New("routes: authenticator required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := cfg.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	h := &handlers{market: cfg.Market, events: cfg.Events, stream: cfg.Stream, origins: origins, log: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestIDs)
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Observability != nil {
		r.Use(cfg.Observability.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Observability != nil {
		r.Handle("/metrics", cfg.Observability.MetricsHandler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.RateLimiter != nil {
			v1.Use(cfg.RateLimiter.Middleware)
		}

		v1.Get("/products/last", h.lastProduct)
		v1.Get("/products/{id}", h.getProduct)
		v1.Get("/inventories/last", h.lastInventory)
		v1.Get("/inventories/{id}", h.getInventory)
		v1.Get("/orders/last", h.lastOrder)
		v1.Get("/orders/{id}", h.getOrder)
		v1.Get("/orders/{id}/escrow", h.getEscrow)
		v1.Get("/orders/{id}/dispute", h.getOrderDispute)
		v1.Get("/disputes/last", h.lastDispute)
		v1.Get("/disputes/{id}", h.getDispute)
		v1.Get("/operators", h.listOperators)
		v1.Get("/operators/{index}", h.getOperator)
		v1.Get("/accounts/{address}/balance", h.getBalance)
		v1.Get("/accounts/{owner}/allowances/{spender}", h.getAllowance)
		v1.Get("/vault", h.getVault)
		v1.Get("/events", h.listEvents)
		v1.Get("/events/stream", h.streamEvents)

		v1.Group(func(auth chi.Router) {
			auth.Use(cfg.Authenticator.Middleware)

			auth.Post("/products", h.publishProduct)
			auth.Delete("/products/{id}", h.deleteProduct)
			auth.Post("/products/{id}/buy", h.buyProduct)
			auth.Post("/inventories", h.createInventory)
			auth.Delete("/inventories/{id}", h.deleteInventory)
			auth.Get("/orders/{id}/shipping", h.getShipping)
			auth.Post("/orders/{id}/sent", h.markSent)
			auth.Post("/orders/{id}/release", h.receivePayment)
			auth.Post("/orders/{id}/dispute", h.disputeOrder)
			auth.Post("/disputes/{id}/counter", h.counterDispute)
			auth.Post("/disputes/{id}/resolve", h.resolveDispute)
			auth.Post("/operators", h.setOperator)
			auth.Post("/accounts/approve", h.approve)
			auth.Post("/accounts/transfer", h.transfer)
		})
	})

	return otelhttp.NewHandler(r, "marketd"), nil
}
