package bank

import (
	"errors"
	"math/big"
	"testing"

	"github.com/merlox/ethereum-store/core/state"
	"github.com/merlox/ethereum-store/storage"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return NewLedger(state.NewManager(storage.NewMemDB()))
}

func TestMintAndTransfer(t *testing.T) {
	ledger := newTestLedger(t)
	alice, bob := [20]byte{1}, [20]byte{2}
	if err := ledger.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	a, _ := ledger.BalanceOf(alice)
	b, _ := ledger.BalanceOf(bob)
	if a.Int64() != 60 || b.Int64() != 40 {
		t.Fatalf("unexpected balances %s/%s", a, b)
	}
	if err := ledger.Transfer(bob, alice, big.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(-1)); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected negative amount error, got %v", err)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger := newTestLedger(t)
	owner, spender, vault := [20]byte{1}, [20]byte{2}, [20]byte{3}
	if err := ledger.Mint(owner, big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.TransferFrom(owner, spender, vault, big.NewInt(200)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected insufficient allowance, got %v", err)
	}
	if err := ledger.Approve(owner, spender, big.NewInt(300)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom(owner, spender, vault, big.NewInt(200)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	allowance, _ := ledger.Allowance(owner, spender)
	if allowance.Int64() != 100 {
		t.Fatalf("expected remaining allowance 100, got %s", allowance)
	}
	bal, _ := ledger.BalanceOf(vault)
	if bal.Int64() != 200 {
		t.Fatalf("expected vault 200, got %s", bal)
	}
}

func TestMintOverflow(t *testing.T) {
	ledger := newTestLedger(t)
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if err := ledger.Mint([20]byte{1}, max); err != nil {
		t.Fatalf("mint max: %v", err)
	}
	if err := ledger.Mint([20]byte{1}, big.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}
