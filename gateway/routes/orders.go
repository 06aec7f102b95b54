package routes

import (
	"fmt"
	"net/http"

	marketerrors "github.com/merlox/ethereum-store/core/errors"
)

func (h *handlers) buyProduct(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req shippingView
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	order, err := h.market.BuyProduct(caller, id, req.toShipping())
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderView(order))
}

func (h *handlers) markSent(w http.ResponseWriter, r *http.Request) {
	h.orderMutation(w, r, h.market.MarkOrderSent)
}

func (h *handlers) receivePayment(w http.ResponseWriter, r *http.Request) {
	h.orderMutation(w, r, h.market.ReceivePayment)
}

// orderMutation runs fn and answers with the updated order.
func (h *handlers) orderMutation(w http.ResponseWriter, r *http.Request, fn func(caller [20]byte, orderID uint64) error) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := fn(caller, id); err != nil {
		writeMarketError(w, err)
		return
	}
	order, err := h.market.Order(id)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(order))
}

func (h *handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	order, err := h.market.Order(id)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(order))
}

// getShipping discloses the delivery details to the two order parties only.
func (h *handlers) getShipping(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	order, err := h.market.Order(id)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	if caller != order.Buyer && caller != order.Seller {
		writeMarketError(w, fmt.Errorf("%w: shipping details are visible to buyer and seller only", marketerrors.ErrUnauthorized))
		return
	}
	writeJSON(w, http.StatusOK, newShippingView(order.Shipping))
}

func (h *handlers) lastOrder(w http.ResponseWriter, r *http.Request) {
	last, err := h.market.LastOrderID()
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"lastId": last})
}

func (h *handlers) getEscrow(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if _, err := h.market.Order(id); err != nil {
		writeMarketError(w, err)
		return
	}
	balance, err := h.market.EscrowBalance(id)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": amountString(balance)})
}
