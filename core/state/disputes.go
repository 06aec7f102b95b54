package state

import (
	"fmt"

	"github.com/merlox/ethereum-store/native/dispute"
)

type storedDispute struct {
	ID            uint64
	OrderID       uint64
	Reason        string
	CounterReason string
	State         uint8
	Outcome       uint8
	CreatedAt     uint64
	ResolvedAt    uint64
	Resolver      [20]byte
}

type storedOperator struct {
	Address [20]byte
	Active  bool
}

// DisputePut stores the dispute and indexes it by order.
func (m *Manager) DisputePut(d *dispute.Dispute) error {
	if d == nil {
		return fmt.Errorf("state: nil dispute")
	}
	if !d.State.Valid() {
		return fmt.Errorf("state: invalid dispute state %d", d.State)
	}
	record := &storedDispute{
		ID:            d.ID,
		OrderID:       d.OrderID,
		Reason:        d.Reason,
		CounterReason: d.CounterReason,
		State:         uint8(d.State),
		Outcome:       uint8(d.Outcome),
		CreatedAt:     fromUnix(d.CreatedAt),
		ResolvedAt:    fromUnix(d.ResolvedAt),
		Resolver:      d.Resolver,
	}
	if err := m.KVPut(disputeKey(d.ID), record); err != nil {
		return err
	}
	return m.KVPut(disputeByOrderKey(d.OrderID), d.ID)
}

// DisputeGet returns the stored dispute.
func (m *Manager) DisputeGet(id uint64) (*dispute.Dispute, bool, error) {
	stored := new(storedDispute)
	ok, err := m.KVGet(disputeKey(id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &dispute.Dispute{
		ID:            stored.ID,
		OrderID:       stored.OrderID,
		Reason:        stored.Reason,
		CounterReason: stored.CounterReason,
		State:         dispute.State(stored.State),
		Outcome:       dispute.Outcome(stored.Outcome),
		CreatedAt:     toUnix(stored.CreatedAt),
		ResolvedAt:    toUnix(stored.ResolvedAt),
		Resolver:      stored.Resolver,
	}, true, nil
}

// DisputeForOrder returns the dispute identifier raised against the order.
func (m *Manager) DisputeForOrder(orderID uint64) (uint64, bool, error) {
	var id uint64
	ok, err := m.KVGet(disputeByOrderKey(orderID), &id)
	if err != nil || !ok {
		return 0, false, err
	}
	return id, true, nil
}

// NextDisputeID allocates the next dispute identifier.
func (m *Manager) NextDisputeID() (uint64, error) { return m.nextCounter(disputeSeqKey) }

// LastDisputeID returns the number of disputes opened.
func (m *Manager) LastDisputeID() (uint64, error) { return m.counter(disputeSeqKey) }

// OperatorsGet returns the ordered operator set.
func (m *Manager) OperatorsGet() ([]dispute.Operator, error) {
	var stored []storedOperator
	if _, err := m.KVGet(operatorsKey, &stored); err != nil {
		return nil, err
	}
	ops := make([]dispute.Operator, len(stored))
	for i, op := range stored {
		ops[i] = dispute.Operator{Address: op.Address, Active: op.Active}
	}
	return ops, nil
}

// OperatorsPut replaces the operator set.
func (m *Manager) OperatorsPut(ops []dispute.Operator) error {
	stored := make([]storedOperator, len(ops))
	for i, op := range ops {
		stored[i] = storedOperator{Address: op.Address, Active: op.Active}
	}
	return m.KVPut(operatorsKey, stored)
}
