package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	marketerrors "github.com/merlox/ethereum-store/core/errors"
	"github.com/merlox/ethereum-store/crypto"
	"github.com/merlox/ethereum-store/gateway/middleware"
	"github.com/merlox/ethereum-store/native/bank"
)

const requestLimit = 1 << 20 // 1 MiB

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, "bad_request", err)
}

func writeJSONError(w http.ResponseWriter, status int, code string, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}

// writeMarketError maps the marketplace error taxonomy onto HTTP statuses.
func writeMarketError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusFor(err), codeFor(err), err)
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, marketerrors.ErrPaymentFailed):
		return marketerrors.Code(err)
	case errors.Is(err, bank.ErrInsufficientBalance), errors.Is(err, bank.ErrInsufficientAllowance):
		return "insufficient_funds"
	case errors.Is(err, bank.ErrNegativeAmount), errors.Is(err, bank.ErrOverflow):
		return "invalid_input"
	default:
		return marketerrors.Code(err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, marketerrors.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, marketerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, marketerrors.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, marketerrors.ErrInvalidState), errors.Is(err, marketerrors.ErrDisputePending):
		return http.StatusConflict
	case errors.Is(err, marketerrors.ErrInvalidInput),
		errors.Is(err, marketerrors.ErrWindowExpired),
		errors.Is(err, marketerrors.ErrWindowNotElapsed),
		errors.Is(err, marketerrors.ErrInsufficientStock),
		errors.Is(err, bank.ErrNegativeAmount),
		errors.Is(err, bank.ErrOverflow),
		errors.Is(err, bank.ErrInsufficientBalance),
		errors.Is(err, bank.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, marketerrors.ErrModulePaused):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, requestLimit))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func uintParam(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return value, nil
}

func addressParam(r *http.Request, name string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		return addr, fmt.Errorf("invalid %s: %w", name, err)
	}
	return addr, nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func callerFrom(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	caller, ok := middleware.Caller(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated", errors.New("caller required"))
	}
	return caller, ok
}

func errInvalidLimit(raw string) error {
	return fmt.Errorf("invalid limit %q", raw)
}
