package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merlox/ethereum-store/core/events"
	"github.com/merlox/ethereum-store/core/types"
	"github.com/merlox/ethereum-store/observability/journal"
)

type entryEvent struct{ typ string }

func (e entryEvent) EventType() string { return e.typ }
func (e entryEvent) Event() *types.Event {
	return &types.Event{Type: e.typ, Attributes: map[string]string{"orderId": "0"}}
}

var _ events.Event = entryEvent{}

func TestRunVerifyAndExport(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "journal.db")
	j, err := journal.Open(dsn, nil)
	require.NoError(t, err)
	j.Emit(entryEvent{"market.order.created"})
	j.Emit(entryEvent{"market.order.sent"})
	require.NoError(t, j.Close())

	var out bytes.Buffer
	err = run(options{dsn: dsn, verify: true, export: filepath.Join(dir, "out.parquet")}, &out, nil)
	require.NoError(t, err)
	require.Contains(t, out.String(), "verified 2 entries")
	require.Contains(t, out.String(), "exported 2 entries")
}

func TestRunRequiresAction(t *testing.T) {
	require.Error(t, run(options{}, &bytes.Buffer{}, nil))
	require.Error(t, run(options{dsn: "x.db"}, &bytes.Buffer{}, nil))
}
