package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/rigpilot/internal/adapters/clock"
	"github.com/bnema/rigpilot/internal/domain"
	"github.com/bnema/rigpilot/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type agentFixture struct {
	loop     *Loop
	clk      *clock.Manual
	remote   *mocks.MockRemoteAPI
	cache    *StateCache
	ledger   *CooldownLedger
	notifier *recordingNotifier
	agent    *Agent
}

func newAgentFixture(t *testing.T, account domain.Account, rigs ...domain.Rig) *agentFixture {
	t.Helper()

	loop, clk := newTestLoop()
	f := &agentFixture{
		loop:     loop,
		clk:      clk,
		remote:   mocks.NewMockRemoteAPI(t),
		cache:    NewStateCache(),
		ledger:   NewCooldownLedger(30 * time.Second),
		notifier: &recordingNotifier{},
	}
	if rigs != nil {
		f.cache.Replace(snapshotOf(account, rigs...), t0)
	}

	dispatcher := NewDispatcher(loop, f.remote, f.cache, f.ledger, f.notifier, quietLogger())
	projector := domain.Projector{Catalog: domain.DefaultCatalog(), BoostMultiplier: 2, GiftInterval: 24 * time.Hour}
	f.agent = NewAgent(loop, f.cache, f.ledger, dispatcher, projector, AgentConfig{
		TickInterval:      time.Second,
		RechargeThreshold: 20,
		ClaimInterval:     time.Hour,
	}, quietLogger())

	loop.Post(func() { f.agent.Start(context.Background()) })
	loop.Settle()
	return f
}

func (f *agentFixture) countActions() *atomic.Int32 {
	var calls atomic.Int32
	f.remote.EXPECT().PerformAction(mockAnyContext(), mockAnyValue(), mockAnyValue()).
		RunAndReturn(func(context.Context, domain.RigID, domain.ActionKind) (domain.RigUpdate, error) {
			calls.Add(1)
			return domain.RigUpdate{}, nil
		}).Maybe()
	return &calls
}

func TestAgentStartsDisabledUntilEntitled(t *testing.T) {
	f := newAgentFixture(t, domain.Account{})
	assert.Equal(t, AgentDisabled, f.agent.State())

	f.cache.Replace(snapshotOf(entitledAccount(), testRig("a")), t0)
	assert.Equal(t, AgentActive, f.agent.State())
}

func TestAgentEntitlementExpiryDisables(t *testing.T) {
	account := domain.Account{Entitlement: &domain.Entitlement{ExpiresAt: t0.Add(10 * time.Second)}}
	f := newAgentFixture(t, account, testRig("a"))
	var states []AgentState
	f.agent.OnStateChange(func(s AgentState) { states = append(states, s) })

	require.Equal(t, AgentActive, f.agent.State())
	advance(f.loop, f.clk, 10*time.Second, time.Second)

	assert.Equal(t, AgentDisabled, f.agent.State())
	assert.Equal(t, []AgentState{AgentActive, AgentDisabled}, states)

	_, err := f.agent.Toggle()
	assert.ErrorIs(t, err, domain.ErrAutomationUnavailable)
}

func TestAgentTogglePausesDispatch(t *testing.T) {
	rig := testRig("a")
	rig.Status = domain.RigStatusBroken
	f := newAgentFixture(t, entitledAccount(), rig)
	calls := f.countActions()

	state, err := f.agent.Toggle()
	require.NoError(t, err)
	assert.Equal(t, AgentPaused, state)
	advance(f.loop, f.clk, 5*time.Second, time.Second)
	assert.Zero(t, calls.Load())

	state, err = f.agent.Toggle()
	require.NoError(t, err)
	assert.Equal(t, AgentActive, state)
	advance(f.loop, f.clk, time.Second, time.Second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAgentRulePriority(t *testing.T) {
	now := t0.Add(time.Minute)
	base := testRig("a")

	tests := []struct {
		name   string
		mutate func(*domain.Rig)
		want   domain.ActionKind
	}{
		{name: "broken wins over everything", mutate: func(r *domain.Rig) {
			r.Status = domain.RigStatusBroken
			r.PendingReward = &domain.Reward{Kind: domain.RewardKindMaterial, Amount: 1}
			r.Energy = 0
		}, want: domain.ActionRepair},
		{name: "pending reward", mutate: func(r *domain.Rig) {
			r.PendingReward = &domain.Reward{Kind: domain.RewardKindKey, Amount: 1}
			r.LastGiftAt = time.Time{}
		}, want: domain.ActionCollectMaterial},
		{name: "gift available", mutate: func(r *domain.Rig) {
			r.LastGiftAt = t0.Add(-25 * time.Hour)
			r.Energy = 5
		}, want: domain.ActionCollectGift},
		{name: "low energy", mutate: func(r *domain.Rig) {
			r.Energy = 19
			r.LastClaimAt = time.Time{}
		}, want: domain.ActionRechargeEnergy},
		{name: "claim due", mutate: func(r *domain.Rig) {
			r.LastClaimAt = t0.Add(-2 * time.Hour)
		}, want: domain.ActionClaimIncome},
		{name: "claim due but server window closed", mutate: func(r *domain.Rig) {
			r.LastClaimAt = t0.Add(-2 * time.Hour)
			r.ClaimAvailableAt = now.Add(time.Minute)
		}},
		{name: "claim within local interval", mutate: func(r *domain.Rig) {
			r.LastClaimAt = now.Add(-time.Hour)
		}},
		{name: "nothing to do"},
	}

	f := newAgentFixture(t, entitledAccount(), base)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := base
			if tt.mutate != nil {
				tt.mutate(&rig)
			}
			got, ok := f.agent.NextAction(rig, entitledAccount(), now)
			assert.Equal(t, tt.want != "", ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAgentDispatchesAtMostOncePerRigPerTick(t *testing.T) {
	rig := testRig("a")
	rig.Status = domain.RigStatusBroken
	rig.Energy = 0
	rig.PendingReward = &domain.Reward{Kind: domain.RewardKindMaterial, Amount: 2}
	other := testRig("b")
	other.LastClaimAt = t0.Add(-2 * time.Hour)
	locked := testRig("c")
	locked.Status = domain.RigStatusLocked
	locked.Energy = 0

	f := newAgentFixture(t, entitledAccount(), rig, other, locked)
	f.remote.EXPECT().PerformAction(mockAnyContext(), domain.RigID("a"), domain.ActionRepair).Return(domain.RigUpdate{}, nil).Once()
	f.remote.EXPECT().PerformAction(mockAnyContext(), domain.RigID("b"), domain.ActionClaimIncome).Return(domain.RigUpdate{}, nil).Once()

	f.loop.Post(f.agent.Tick)
	f.loop.Settle()

	assert.Equal(t, 2, f.ledger.Len())
}

func TestAgentWritesLedgerBeforeRemoteCall(t *testing.T) {
	rig := testRig("a")
	rig.Status = domain.RigStatusBroken
	f := newAgentFixture(t, entitledAccount(), rig)
	release := make(chan struct{})
	f.remote.EXPECT().PerformAction(mockAnyContext(), domain.RigID("a"), domain.ActionRepair).
		RunAndReturn(func(context.Context, domain.RigID, domain.ActionKind) (domain.RigUpdate, error) {
			<-release
			return domain.RigUpdate{}, nil
		}).Once()

	var entry LedgerEntry
	var ok bool
	f.loop.Post(func() {
		f.agent.Tick()
		entry, ok = f.ledger.Entry(LedgerKey{RigID: "a", Kind: domain.ActionRepair})
	})
	f.loop.Drain()
	close(release)
	f.loop.Settle()

	require.True(t, ok)
	assert.Equal(t, 1, entry.Attempts)
	assert.Equal(t, t0, entry.LastAttempt)
}

func TestAgentSecondClaimWithinTenSecondsIsSkipped(t *testing.T) {
	rig := testRig("a")
	rig.LastClaimAt = t0.Add(-2 * time.Hour)
	f := newAgentFixture(t, entitledAccount(), rig)
	var calls atomic.Int32
	f.remote.EXPECT().PerformAction(mockAnyContext(), domain.RigID("a"), domain.ActionClaimIncome).
		RunAndReturn(func(context.Context, domain.RigID, domain.ActionKind) (domain.RigUpdate, error) {
			calls.Add(1)
			return domain.RigUpdate{}, &domain.ActionError{Kind: domain.ErrorKindCooldownActive, RetryAfter: time.Hour}
		})

	advance(f.loop, f.clk, 10*time.Second, time.Second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, f.notifier.items, "server cooldown is silent in automated context")

	advance(f.loop, f.clk, 21*time.Second, time.Second)
	assert.Equal(t, int32(2), calls.Load(), "retried once the ledger cooldown elapsed")
}

func TestAgentAttemptsAreAtLeastCooldownApart(t *testing.T) {
	rig := testRig("a")
	rig.Status = domain.RigStatusBroken
	f := newAgentFixture(t, entitledAccount(), rig)
	var at []time.Time
	f.remote.EXPECT().PerformAction(mockAnyContext(), domain.RigID("a"), domain.ActionRepair).
		RunAndReturn(func(context.Context, domain.RigID, domain.ActionKind) (domain.RigUpdate, error) {
			return domain.RigUpdate{}, &domain.ActionError{Kind: domain.ErrorKindTransient}
		})
	f.agent.OnOutcome(func(o Outcome) { at = append(at, f.loop.Now()) })

	advance(f.loop, f.clk, 3*time.Minute, time.Second)

	require.GreaterOrEqual(t, len(at), 2)
	for i := 1; i < len(at); i++ {
		assert.GreaterOrEqual(t, at[i].Sub(at[i-1]), 30*time.Second)
	}
}

func TestAgentSuppressedPairIsNeverRetried(t *testing.T) {
	rig := testRig("a")
	rig.LastGiftAt = time.Time{}
	f := newAgentFixture(t, entitledAccount(), rig)
	var calls atomic.Int32
	f.remote.EXPECT().PerformAction(mockAnyContext(), domain.RigID("a"), domain.ActionCollectGift).
		RunAndReturn(func(context.Context, domain.RigID, domain.ActionKind) (domain.RigUpdate, error) {
			calls.Add(1)
			return domain.RigUpdate{}, &domain.ActionError{Kind: domain.ErrorKindValidation, Detail: "gift already taken"}
		})

	advance(f.loop, f.clk, 5*time.Minute, time.Second)

	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, f.notifier.items, 1)
	assert.Equal(t, domain.SeverityWarning, f.notifier.items[0].severity)
}

func TestAgentStopDiscardsInFlightCompletion(t *testing.T) {
	rig := testRig("a")
	rig.Energy = 5
	f := newAgentFixture(t, entitledAccount(), rig)
	release := make(chan struct{})
	f.remote.EXPECT().PerformAction(mockAnyContext(), domain.RigID("a"), domain.ActionRechargeEnergy).
		RunAndReturn(func(context.Context, domain.RigID, domain.ActionKind) (domain.RigUpdate, error) {
			<-release
			return domain.RigUpdate{Energy: ptr(100.0)}, nil
		}).Once()
	outcomes := 0
	f.agent.OnOutcome(func(Outcome) { outcomes++ })

	f.loop.Post(func() {
		f.agent.Tick()
		f.agent.Stop()
	})
	f.loop.Drain()
	close(release)
	f.loop.Settle()

	got, _ := f.cache.Rig("a")
	assert.Equal(t, 5.0, got.Energy)
	assert.Zero(t, outcomes)
	assert.Empty(t, f.notifier.items)
}
