package errors

import stderrors "errors"

// Outcome taxonomy shared by the catalog, escrow and dispute engines. Engines
// wrap these sentinels with context; callers match them with errors.Is.
var (
	ErrNotFound          = stderrors.New("market: not found")
	ErrUnauthorized      = stderrors.New("market: unauthorized caller")
	ErrInvalidState      = stderrors.New("market: invalid state")
	ErrInvalidInput      = stderrors.New("market: invalid input")
	ErrWindowExpired     = stderrors.New("market: dispute window expired")
	ErrWindowNotElapsed  = stderrors.New("market: dispute window not elapsed")
	ErrInsufficientStock = stderrors.New("market: insufficient stock")
	ErrPaymentFailed     = stderrors.New("market: payment failed")
	ErrDisputePending    = stderrors.New("market: dispute pending")
)

// ErrModulePaused is returned when an operator has paused a module.
var ErrModulePaused = stderrors.New("market: module paused")

var codes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "not_found"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalidState, "invalid_state"},
	{ErrInvalidInput, "invalid_input"},
	{ErrWindowExpired, "window_expired"},
	{ErrWindowNotElapsed, "window_not_elapsed"},
	{ErrInsufficientStock, "insufficient_stock"},
	{ErrPaymentFailed, "payment_failed"},
	{ErrDisputePending, "dispute_pending"},
	{ErrModulePaused, "module_paused"},
}

// Code returns a stable label for err: "ok" for nil, the sentinel name for a
// known outcome, "internal" otherwise.
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	for _, c := range codes {
		if stderrors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
