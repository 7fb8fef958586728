package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestExportImportRoundTrip(t *testing.T) {
	m := newTestManager(testConfig())

	stop := 90.0
	_, err := m.Buy("momentum", "AAPL", 100, 100.0, &stop, nil, nil, "entry")
	require.NoError(t, err)
	_, err = m.Sell("momentum", "AAPL", 40, 110.0, "trim")
	require.NoError(t, err)
	require.NoError(t, m.SetStrategyAllocation("momentum", 0.6))

	lastRebalance := time.Date(2025, 1, 3, 17, 30, 0, 0, time.UTC)
	data, err := m.ExportState(lastRebalance)
	require.NoError(t, err)

	restored := newTestManager(testConfig())
	got, err := restored.ImportState(data)
	require.NoError(t, err)
	assert.True(t, got.Equal(lastRebalance))

	assert.InDelta(t, m.Cash(), restored.Cash(), 1e-9)
	assert.Equal(t, m.Positions(), restored.Positions())
	assert.Equal(t, m.StrategyAllocations(), restored.StrategyAllocations())
	assert.Len(t, restored.TradeHistory("", 0), 2)

	// The restored ledger keeps working.
	_, err = restored.Sell("momentum", "AAPL", 60, 120.0, "exit")
	require.NoError(t, err)
}

func TestExportBeforeAnyRebalanceCarriesZeroMarker(t *testing.T) {
	m := newTestManager(testConfig())

	data, err := m.ExportState(time.Time{})
	require.NoError(t, err)

	restored := newTestManager(testConfig())
	got, err := restored.ImportState(data)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestImportRejectsUnknownSchemaVersion(t *testing.T) {
	bundle := stateBundle{SchemaVersion: 99}
	data, err := msgpack.Marshal(bundle)
	require.NoError(t, err)

	m := newTestManager(testConfig())
	_, err = m.ImportState(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema version")
}

func TestImportRejectsGarbage(t *testing.T) {
	m := newTestManager(testConfig())
	_, err := m.ImportState([]byte("not msgpack at all"))
	assert.Error(t, err)
}
