package routes

import (
	"net/http"

	"github.com/merlox/ethereum-store/crypto"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

type resolveRequest struct {
	BuyerWins bool `json:"buyerWins"`
}

type setOperatorRequest struct {
	Address    string `json:"address"`
	Deactivate bool   `json:"deactivate"`
}

func (h *handlers) disputeOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	orderID, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req reasonRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	d, err := h.market.DisputeOrder(caller, orderID, req.Reason)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newDisputeView(d))
}

func (h *handlers) counterDispute(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req reasonRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.market.CounterDispute(caller, id, req.Reason); err != nil {
		writeMarketError(w, err)
		return
	}
	h.writeDispute(w, id)
}

func (h *handlers) resolveDispute(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.market.ResolveDispute(caller, id, req.BuyerWins); err != nil {
		writeMarketError(w, err)
		return
	}
	h.writeDispute(w, id)
}

func (h *handlers) getDispute(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	h.writeDispute(w, id)
}

func (h *handlers) writeDispute(w http.ResponseWriter, id uint64) {
	d, err := h.market.Dispute(id)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDisputeView(d))
}

func (h *handlers) getOrderDispute(w http.ResponseWriter, r *http.Request) {
	orderID, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	d, err := h.market.DisputeForOrder(orderID)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDisputeView(d))
}

func (h *handlers) lastDispute(w http.ResponseWriter, r *http.Request) {
	last, err := h.market.LastDisputeID()
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"lastId": last})
}

type operatorView struct {
	Index   uint64 `json:"index"`
	Address string `json:"address"`
}

// listOperators returns the active seats with their indices.
func (h *handlers) listOperators(w http.ResponseWriter, r *http.Request) {
	count, err := h.market.OperatorCount()
	if err != nil {
		writeMarketError(w, err)
		return
	}
	active := make([]operatorView, 0, count)
	for i := uint64(0); i < count; i++ {
		addr, err := h.market.Operator(i)
		if err != nil {
			continue
		}
		active = append(active, operatorView{Index: i, Address: crypto.FormatAddress(addr)})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": count, "active": active})
}

func (h *handlers) getOperator(w http.ResponseWriter, r *http.Request) {
	index, err := uintParam(r, "index")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	addr, err := h.market.Operator(index)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, operatorView{Index: index, Address: crypto.FormatAddress(addr)})
}

func (h *handlers) setOperator(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var req setOperatorRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	addr, err := crypto.ParseAddress(req.Address)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.market.SetOperator(caller, addr, req.Deactivate); err != nil {
		writeMarketError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
