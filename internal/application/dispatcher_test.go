package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bnema/rigpilot/internal/adapters/clock"
	"github.com/bnema/rigpilot/internal/domain"
	"github.com/bnema/rigpilot/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatcherFixture struct {
	loop       *Loop
	clk        *clock.Manual
	remote     *mocks.MockRemoteAPI
	cache      *StateCache
	ledger     *CooldownLedger
	notifier   *recordingNotifier
	dispatcher *Dispatcher
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()

	loop, clk := newTestLoop()
	f := &dispatcherFixture{
		loop:     loop,
		clk:      clk,
		remote:   mocks.NewMockRemoteAPI(t),
		cache:    NewStateCache(),
		ledger:   NewCooldownLedger(30 * time.Second),
		notifier: &recordingNotifier{},
	}
	f.cache.Replace(snapshotOf(entitledAccount(), testRig("a")), t0)
	f.dispatcher = NewDispatcher(loop, f.remote, f.cache, f.ledger, f.notifier, quietLogger())
	return f
}

func (f *dispatcherFixture) perform(kind domain.ActionKind, origin domain.Origin) Outcome {
	var got Outcome
	f.loop.Post(func() {
		f.dispatcher.Perform(Request{RigID: "a", Kind: kind, Origin: origin, Done: func(o Outcome) { got = o }})
	})
	f.loop.Settle()
	return got
}

func TestDispatcherInteractiveSuccessAppliesUpdate(t *testing.T) {
	f := newDispatcherFixture(t)
	f.clk.Advance(5 * time.Second)
	f.remote.EXPECT().PerformAction(mockAnyContext(), domain.RigID("a"), domain.ActionClaimIncome).Return(domain.RigUpdate{
		Balance:     ptr(int64(2234)),
		LastClaimAt: ptr(t0.Add(5 * time.Second)),
		Granted:     &domain.Reward{Kind: "coins", Amount: 1234},
	}, nil)

	outcome := f.perform(domain.ActionClaimIncome, domain.OriginInteractive)

	require.True(t, outcome.OK())
	assert.Equal(t, int64(2234), f.cache.Account().Balance)
	rig, _ := f.cache.Rig("a")
	assert.Equal(t, t0.Add(5*time.Second), rig.LastClaimAt)
	require.Len(t, f.notifier.items, 1)
	assert.Equal(t, domain.SeveritySuccess, f.notifier.items[0].severity)
	assert.Contains(t, f.notifier.items[0].message, "+1,234")
}

func TestDispatcherAutomatedSuccessIsInfo(t *testing.T) {
	f := newDispatcherFixture(t)
	f.remote.EXPECT().PerformAction(mockAnyContext(), domain.RigID("a"), domain.ActionRechargeEnergy).Return(domain.RigUpdate{Energy: ptr(100.0)}, nil)

	outcome := f.perform(domain.ActionRechargeEnergy, domain.OriginAutomated)

	require.True(t, outcome.OK())
	require.Len(t, f.notifier.items, 1)
	assert.Equal(t, domain.SeverityInfo, f.notifier.items[0].severity)
}

func TestDispatcherAutomatedFailureTaxonomy(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantKind    domain.ErrorKind
		wantNotices int
		suppressed  bool
	}{
		{name: "validation suppresses and warns once", err: &domain.ActionError{Kind: domain.ErrorKindValidation, Detail: "rig sold"}, wantKind: domain.ErrorKindValidation, wantNotices: 1, suppressed: true},
		{name: "cooldown is silent", err: &domain.ActionError{Kind: domain.ErrorKindCooldownActive, RetryAfter: time.Minute}, wantKind: domain.ErrorKindCooldownActive},
		{name: "insufficient notifies once", err: &domain.ActionError{Kind: domain.ErrorKindInsufficientResource}, wantKind: domain.ErrorKindInsufficientResource, wantNotices: 1},
		{name: "transient is logged only", err: &domain.ActionError{Kind: domain.ErrorKindTransient}, wantKind: domain.ErrorKindTransient},
		{name: "unclassified error is transient", err: errors.New("connection reset"), wantKind: domain.ErrorKindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture(t)
			f.remote.EXPECT().PerformAction(mockAnyContext(), domain.RigID("a"), domain.ActionCollectGift).Return(domain.RigUpdate{}, tt.err).Times(2)

			first := f.perform(domain.ActionCollectGift, domain.OriginAutomated)
			second := f.perform(domain.ActionCollectGift, domain.OriginAutomated)

			assert.Equal(t, tt.wantKind, first.ErrorKind)
			assert.Equal(t, tt.wantKind, second.ErrorKind)
			assert.Len(t, f.notifier.items, tt.wantNotices)

			entry, _ := f.ledger.Entry(LedgerKey{RigID: "a", Kind: domain.ActionCollectGift})
			assert.Equal(t, tt.suppressed, entry.Suppressed)
		})
	}
}

func TestDispatcherInteractiveFailuresAlwaysNotify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		severity domain.Severity
		contains string
	}{
		{name: "validation", err: &domain.ActionError{Kind: domain.ErrorKindValidation, Detail: "rig is locked"}, severity: domain.SeverityError, contains: "rig is locked"},
		{name: "cooldown shows exact wait", err: &domain.ActionError{Kind: domain.ErrorKindCooldownActive, RetryAfter: 2*time.Minute + 12*time.Second + 300*time.Millisecond}, severity: domain.SeverityWarning, contains: "2m13s"},
		{name: "insufficient", err: &domain.ActionError{Kind: domain.ErrorKindInsufficientResource}, severity: domain.SeverityError, contains: "Not enough resources"},
		{name: "transient", err: errors.New("timeout"), severity: domain.SeverityError, contains: "try again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture(t)
			f.remote.EXPECT().PerformAction(mockAnyContext(), domain.RigID("a"), domain.ActionRepair).Return(domain.RigUpdate{}, tt.err).Times(2)

			for i := 0; i < 2; i++ {
				outcome := f.perform(domain.ActionRepair, domain.OriginInteractive)
				require.Error(t, outcome.Err)
				assert.Contains(t, outcome.Message, tt.contains)
			}
			require.Len(t, f.notifier.items, 2)
			assert.Equal(t, tt.severity, f.notifier.items[0].severity)
			assert.Zero(t, f.ledger.Len(), "interactive actions never touch the ledger")
		})
	}
}

func TestDispatcherDiscardsResultWhenOwnerIsGone(t *testing.T) {
	f := newDispatcherFixture(t)
	f.remote.EXPECT().PerformAction(mockAnyContext(), domain.RigID("a"), domain.ActionRechargeEnergy).Return(domain.RigUpdate{Energy: ptr(100.0)}, nil)
	before, _ := f.cache.Rig("a")
	alive := true

	var got Outcome
	f.loop.Post(func() {
		f.dispatcher.Perform(Request{
			RigID: "a", Kind: domain.ActionRechargeEnergy, Origin: domain.OriginAutomated,
			Alive: func() bool { return alive },
			Done:  func(o Outcome) { got = o },
		})
		alive = false
	})
	f.loop.Settle()

	assert.True(t, got.Discarded)
	after, _ := f.cache.Rig("a")
	assert.Equal(t, before, after)
	assert.Empty(t, f.notifier.items)
}

func TestDispatcherCloseDiscardsInFlight(t *testing.T) {
	f := newDispatcherFixture(t)
	f.remote.EXPECT().PerformAction(mockAnyContext(), domain.RigID("a"), domain.ActionClaimIncome).Return(domain.RigUpdate{Balance: ptr(int64(1))}, nil)

	f.loop.Post(func() {
		f.dispatcher.Perform(Request{RigID: "a", Kind: domain.ActionClaimIncome, Origin: domain.OriginInteractive})
		f.dispatcher.Close()
	})
	f.loop.Settle()

	assert.Equal(t, int64(1000), f.cache.Account().Balance)
	assert.Empty(t, f.notifier.items)
}

func TestDispatcherRejectsUnknownRigWithoutRemoteCall(t *testing.T) {
	f := newDispatcherFixture(t)

	var got Outcome
	f.loop.Post(func() {
		f.dispatcher.Perform(Request{RigID: "ghost", Kind: domain.ActionRepair, Origin: domain.OriginInteractive, Done: func(o Outcome) { got = o }})
	})
	f.loop.Settle()

	assert.Equal(t, domain.ErrorKindValidation, got.ErrorKind)
	assert.ErrorContains(t, got.Err, "ghost")
}

func TestDispatcherPerformAndWait(t *testing.T) {
	f := newDispatcherFixture(t)
	f.remote.EXPECT().PerformAction(mockAnyContext(), domain.RigID("a"), domain.ActionCollectMaterial).Return(domain.RigUpdate{ClearReward: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.loop.Run(ctx) }()

	outcome, err := f.dispatcher.PerformAndWait(ctx, "a", domain.ActionCollectMaterial)
	require.NoError(t, err)
	assert.True(t, outcome.OK())
	assert.Equal(t, domain.OriginInteractive, outcome.Origin)
}

func TestFormatWaitRoundsUp(t *testing.T) {
	assert.Equal(t, "0s", FormatWait(0))
	assert.Equal(t, "1s", FormatWait(time.Millisecond))
	assert.Equal(t, "2m13s", FormatWait(2*time.Minute+12*time.Second+time.Nanosecond))
	assert.Equal(t, "30s", FormatWait(30*time.Second))
}
