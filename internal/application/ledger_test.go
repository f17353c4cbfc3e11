package application

import (
	"testing"
	"time"

	"github.com/bnema/rigpilot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCooldownLedgerBlocksWithinCooldown(t *testing.T) {
	ledger := NewCooldownLedger(30 * time.Second)
	key := LedgerKey{RigID: "r1", Kind: domain.ActionClaimIncome}

	require.True(t, ledger.Allow(key, t0))
	ledger.Record(key, t0)

	assert.False(t, ledger.Allow(key, t0.Add(10*time.Second)))
	assert.Equal(t, 20*time.Second, ledger.Remaining(key, t0.Add(10*time.Second)))
	assert.True(t, ledger.Allow(key, t0.Add(30*time.Second)))
	assert.Zero(t, ledger.Remaining(key, t0.Add(31*time.Second)))
}

func TestCooldownLedgerKeysAreIndependent(t *testing.T) {
	ledger := NewCooldownLedger(time.Minute)
	ledger.Record(LedgerKey{RigID: "r1", Kind: domain.ActionRepair}, t0)

	assert.True(t, ledger.Allow(LedgerKey{RigID: "r1", Kind: domain.ActionClaimIncome}, t0))
	assert.True(t, ledger.Allow(LedgerKey{RigID: "r2", Kind: domain.ActionRepair}, t0))
}

func TestCooldownLedgerClockSkewStaysBlocked(t *testing.T) {
	ledger := NewCooldownLedger(time.Minute)
	key := LedgerKey{RigID: "r1", Kind: domain.ActionRepair}
	ledger.Record(key, t0)

	assert.False(t, ledger.Allow(key, t0.Add(-time.Hour)))
	assert.Equal(t, time.Minute, ledger.Remaining(key, t0.Add(-time.Hour)))
}

func TestCooldownLedgerSuppressionIsPermanent(t *testing.T) {
	ledger := NewCooldownLedger(time.Second)
	key := LedgerKey{RigID: "r1", Kind: domain.ActionCollectGift}
	ledger.Record(key, t0)
	ledger.Suppress(key)

	assert.False(t, ledger.Allow(key, t0.Add(24*time.Hour)))

	entry, ok := ledger.Entry(key)
	require.True(t, ok)
	assert.True(t, entry.Suppressed)
	assert.Equal(t, 1, entry.Attempts)
}

func TestCooldownLedgerNotifiesOnce(t *testing.T) {
	ledger := NewCooldownLedger(time.Second)
	key := LedgerKey{RigID: "r1", Kind: domain.ActionRechargeEnergy}

	assert.True(t, ledger.MarkNotified(key))
	assert.False(t, ledger.MarkNotified(key))
	assert.Equal(t, 1, ledger.Len())
}
