package state

import "math/big"

// BalanceGet returns the ledger balance of addr.
func (m *Manager) BalanceGet(addr [20]byte) (*big.Int, error) { return m.getBig(balanceKey(addr)) }

// BalancePut stores the ledger balance of addr.
func (m *Manager) BalancePut(addr [20]byte, amount *big.Int) error {
	return m.putBig(balanceKey(addr), amount)
}

// AllowanceGet returns how much spender may move on behalf of owner.
func (m *Manager) AllowanceGet(owner, spender [20]byte) (*big.Int, error) {
	return m.getBig(allowanceKey(owner, spender))
}

// AllowancePut stores the allowance granted by owner to spender.
func (m *Manager) AllowancePut(owner, spender [20]byte, amount *big.Int) error {
	return m.putBig(allowanceKey(owner, spender), amount)
}
