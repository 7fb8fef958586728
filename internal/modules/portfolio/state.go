package portfolio

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/arena/internal/domain"
)

// stateSchemaVersion guards bundle compatibility across releases. Bump when
// the bundle layout changes; ImportState rejects versions it does not know.
const stateSchemaVersion = 2

type stateBundle struct {
	SchemaVersion     int                        `msgpack:"schema_version"`
	ExportedAt        time.Time                  `msgpack:"exported_at"`
	Name              string                     `msgpack:"name"`
	Cash              float64                    `msgpack:"cash"`
	InitialCapital    float64                    `msgpack:"initial_capital"`
	LastSnapshotValue float64                    `msgpack:"last_snapshot_value"`
	LastRebalance     time.Time                  `msgpack:"last_rebalance_date"`
	Positions         map[string]domain.Position `msgpack:"positions"`
	Allocations       map[string]float64         `msgpack:"allocations"`
	Trades            []domain.Trade             `msgpack:"trades"`
}

// ExportState serializes the full ledger to a versioned msgpack bundle.
// lastRebalance is the rebalancer's last cycle time; it rides along so a
// restore can reinstate the weekly dedup marker as of the backup, not as of
// the restore.
func (m *Manager) ExportState(lastRebalance time.Time) ([]byte, error) {
	m.mu.Lock()
	bundle := stateBundle{
		SchemaVersion:     stateSchemaVersion,
		ExportedAt:        m.clock.Now(),
		Name:              m.name,
		Cash:              m.cash,
		InitialCapital:    m.initialCapital,
		LastSnapshotValue: m.lastSnapshotValue,
		LastRebalance:     lastRebalance,
		Positions:         m.copyPositionsLocked(),
		Allocations:       make(map[string]float64, len(m.allocations)),
		Trades:            append([]domain.Trade(nil), m.trades...),
	}
	for k, v := range m.allocations {
		bundle.Allocations[k] = v
	}
	m.mu.Unlock()

	data, err := msgpack.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal portfolio state: %w", err)
	}
	return data, nil
}

// ImportState replaces the full ledger with a previously exported bundle and
// returns the bundle's last rebalance time for the caller to hand back to the
// rebalancer.
func (m *Manager) ImportState(data []byte) (time.Time, error) {
	var bundle stateBundle
	if err := msgpack.Unmarshal(data, &bundle); err != nil {
		return time.Time{}, fmt.Errorf("failed to unmarshal portfolio state: %w", err)
	}
	if bundle.SchemaVersion != stateSchemaVersion {
		return time.Time{}, fmt.Errorf("unsupported state schema version %d (want %d)", bundle.SchemaVersion, stateSchemaVersion)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cash = bundle.Cash
	m.initialCapital = bundle.InitialCapital
	m.lastSnapshotValue = bundle.LastSnapshotValue
	m.positions = bundle.Positions
	if m.positions == nil {
		m.positions = make(map[string]domain.Position)
	}
	m.allocations = bundle.Allocations
	if m.allocations == nil {
		m.allocations = make(map[string]float64)
	}
	m.trades = bundle.Trades

	m.log.Info().
		Int("positions", len(m.positions)).
		Int("trades", len(m.trades)).
		Time("exported_at", bundle.ExportedAt).
		Time("last_rebalance", bundle.LastRebalance).
		Msg("imported portfolio state")

	return bundle.LastRebalance, nil
}
