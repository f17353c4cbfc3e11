package application

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/bnema/rigpilot/internal/adapters/clock"
	"github.com/bnema/rigpilot/internal/domain"
	"github.com/stretchr/testify/mock"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestLoop() (*Loop, *clock.Manual) {
	clk := clock.NewManual(t0)
	return NewLoop(clk), clk
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// advance moves the manual clock forward in steps, settling the loop after
// each one so timers armed by callbacks see the intermediate times.
func advance(loop *Loop, clk *clock.Manual, total, step time.Duration) {
	for moved := time.Duration(0); moved < total; moved += step {
		d := step
		if total-moved < step {
			d = total - moved
		}
		clk.Advance(d)
		loop.Settle()
	}
}

func mockAnyContext() any {
	return mock.MatchedBy(func(context.Context) bool { return true })
}

func ptr[T any](v T) *T {
	return &v
}

func testRig(id string) domain.Rig {
	return domain.Rig{
		ID:              domain.RigID(id),
		Name:            "Rig " + id,
		Tier:            "basic",
		Energy:          100,
		EnergyUpdatedAt: t0,
		LastClaimAt:     t0,
		LastGiftAt:      t0,
		AcquiredAt:      t0.Add(-30 * 24 * time.Hour),
		Status:          domain.RigStatusNormal,
	}
}

func entitledAccount() domain.Account {
	return domain.Account{Balance: 1000, Entitlement: &domain.Entitlement{}}
}

func snapshotOf(account domain.Account, rigs ...domain.Rig) domain.Snapshot {
	return domain.Snapshot{Account: account, Rigs: rigs, AsOf: t0}
}

// recordingNotifier collects notifications in order.
type recordingNotifier struct {
	items []notice
}

type notice struct {
	severity domain.Severity
	message  string
}

func (n *recordingNotifier) Notify(severity domain.Severity, message string) string {
	n.items = append(n.items, notice{severity: severity, message: message})
	return ""
}

func mockAnyValue() any {
	return mock.Anything
}
