package application

import (
	"context"
	"time"

	"github.com/bnema/rigpilot/internal/domain"
)

// RigView is a rig with every time-derived value projected to Now.
type RigView struct {
	Rig          domain.Rig
	Energy       float64
	GiftEligible bool
	NextGiftAt   time.Time
	// NextAction is what the agent would dispatch for the rig right now, or
	// empty when no rule matches.
	NextAction domain.ActionKind
	ClaimReady time.Time
}

type View struct {
	Now      time.Time
	Loaded   bool
	Account  domain.Account
	Rigs     []RigView
	AsOf     time.Time
	SyncedAt time.Time
	SyncErr  error
	State    AgentState
	Toasts   []Toast
	// BoostMultiplier is the multiplier an active boost applies, with the
	// configured default filled in.
	BoostMultiplier float64
}

// View projects the cache at the current clock time. Must be called on the
// loop.
func (s *Session) View() View {
	now := s.Loop.Now()
	snapshot := s.Cache.Snapshot()

	view := View{
		Now:      now,
		Loaded:   s.Cache.Loaded(),
		Account:  snapshot.Account,
		AsOf:     snapshot.AsOf,
		SyncedAt: s.Cache.SyncedAt(),
		SyncErr:  s.Synchronizer.LastError(),
		State:    s.Agent.State(),
		Toasts:   s.Toasts.Toasts(),

		BoostMultiplier: domain.EffectiveMultiplier(snapshot.Account.Boost, s.projector.BoostMultiplier),
	}

	for _, rig := range snapshot.Rigs {
		view.Rigs = append(view.Rigs, s.projectRig(rig, snapshot.Account, now))
	}
	return view
}

// Snapshot returns a View from any goroutine other than the loop.
func (s *Session) Snapshot(ctx context.Context) (View, error) {
	var view View
	if err := s.Loop.Call(ctx, func() { view = s.View() }); err != nil {
		return View{}, err
	}
	return view, nil
}

func (s *Session) projectRig(rig domain.Rig, account domain.Account, now time.Time) RigView {
	out := RigView{
		Rig:    rig,
		Energy: s.projector.Energy(rig, account, now),
	}

	if next, ok := s.projector.NextGiftAt(rig, account, now); ok {
		out.NextGiftAt = next
		out.GiftEligible = !now.Before(next)
	}

	if rig.Status != domain.RigStatusLocked {
		if kind, ok := s.Agent.NextAction(rig, account, now); ok {
			out.NextAction = kind
		}
	}

	out.ClaimReady = rig.ClaimAvailableAt
	if !rig.LastClaimAt.IsZero() {
		local := rig.LastClaimAt.Add(s.Agent.cfg.ClaimInterval)
		if local.After(out.ClaimReady) {
			out.ClaimReady = local
		}
	}
	return out
}
