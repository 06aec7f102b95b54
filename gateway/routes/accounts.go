package routes

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/merlox/ethereum-store/crypto"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

type amountRequest struct {
	Spender string `json:"spender,omitempty"`
	To      string `json:"to,omitempty"`
	Amount  string `json:"amount"`
}

func (h *handlers) getBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	balance, err := h.market.BalanceOf(addr)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": crypto.FormatAddress(addr), "balance": amountString(balance)})
}

func (h *handlers) getAllowance(w http.ResponseWriter, r *http.Request) {
	owner, err := addressParam(r, "owner")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	spender, err := addressParam(r, "spender")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	allowance, err := h.market.Allowance(owner, spender)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"allowance": amountString(allowance)})
}

func (h *handlers) getVault(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"vault": crypto.FormatAddress(h.market.Vault())})
}

func (h *handlers) approve(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	spender, err := crypto.ParseAddress(req.Spender)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.market.Approve(caller, spender, amount); err != nil {
		writeMarketError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) transfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	to, err := crypto.ParseAddress(req.To)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.market.Transfer(caller, to, amount); err != nil {
		writeMarketError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type eventView struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt string            `json:"recordedAt"`
}

func (h *handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"events": []eventView{}})
		return
	}
	limit := defaultEventLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, errInvalidLimit(raw))
			return
		}
		limit = parsed
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	entries, err := h.events.Recent(strings.TrimSpace(r.URL.Query().Get("type")), limit)
	if err != nil {
		h.log.Error("list events", "error", err)
		writeMarketError(w, err)
		return
	}
	out := make([]eventView, 0, len(entries))
	for _, entry := range entries {
		attrs, err := entry.Decode()
		if err != nil {
			h.log.Warn("decode journal entry", "id", entry.ID.String(), "error", err)
			continue
		}
		out = append(out, eventView{
			ID:         entry.ID.String(),
			Sequence:   entry.Sequence,
			Type:       entry.Type,
			Attributes: attrs,
			RecordedAt: entry.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": out})
}
