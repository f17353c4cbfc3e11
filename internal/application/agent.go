package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/bnema/rigpilot/internal/domain"
	"github.com/bnema/rigpilot/internal/ports"
)

type AgentState string

const (
	AgentDisabled AgentState = "disabled"
	AgentPaused   AgentState = "paused"
	AgentActive   AgentState = "active"
)

const (
	DefaultTickInterval      = time.Second
	DefaultRechargeThreshold = 20.0
	DefaultClaimInterval     = time.Hour
)

type AgentConfig struct {
	TickInterval      time.Duration
	RechargeThreshold float64
	// ClaimInterval is the local minimum between automated claims. The server
	// may still refuse a claim through Rig.ClaimAvailableAt.
	ClaimInterval time.Duration
}

// Agent runs the automation rules against the cached state once per tick.
type Agent struct {
	loop       *Loop
	cache      *StateCache
	ledger     *CooldownLedger
	dispatcher *Dispatcher
	projector  domain.Projector
	cfg        AgentConfig
	logger     *slog.Logger

	state   AgentState
	gen     uint64
	running bool
	ctx     context.Context
	ticker  ports.Timer
	busy    map[domain.RigID]bool

	onState   []func(AgentState)
	onOutcome []func(Outcome)
}

func NewAgent(loop *Loop, cache *StateCache, ledger *CooldownLedger, dispatcher *Dispatcher, projector domain.Projector, cfg AgentConfig, logger *slog.Logger) *Agent {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.ClaimInterval < 0 {
		cfg.ClaimInterval = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Agent{
		loop:       loop,
		cache:      cache,
		ledger:     ledger,
		dispatcher: dispatcher,
		projector:  projector,
		cfg:        cfg,
		logger:     logger,
		state:      AgentDisabled,
		busy:       map[domain.RigID]bool{},
	}
}

func (a *Agent) SetProjector(projector domain.Projector) {
	a.projector = projector
}

func (a *Agent) OnStateChange(fn func(AgentState)) {
	a.onState = append(a.onState, fn)
}

// OnOutcome registers fn for the outcome of every automated dispatch that
// was not discarded.
func (a *Agent) OnOutcome(fn func(Outcome)) {
	a.onOutcome = append(a.onOutcome, fn)
}

func (a *Agent) Start(ctx context.Context) {
	if a.running {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a.running = true
	a.ctx = ctx
	a.ticker = a.loop.Every(a.cfg.TickInterval, a.Tick)
}

// Stop halts ticking. Completions of dispatches issued before the stop are
// discarded.
func (a *Agent) Stop() {
	if !a.running {
		return
	}

	a.running = false
	a.gen++
	a.busy = map[domain.RigID]bool{}
	if a.ticker != nil {
		a.ticker.Stop()
		a.ticker = nil
	}
}

// State re-derives the automation state from the cached entitlement.
func (a *Agent) State() AgentState {
	a.refresh(a.loop.Now())
	return a.state
}

// Toggle flips between paused and active.
func (a *Agent) Toggle() (AgentState, error) {
	a.refresh(a.loop.Now())

	switch a.state {
	case AgentActive:
		a.setState(AgentPaused)
	case AgentPaused:
		a.setState(AgentActive)
	default:
		return a.state, domain.ErrAutomationUnavailable
	}
	return a.state, nil
}

func (a *Agent) refresh(now time.Time) {
	if !a.cache.Loaded() {
		return
	}

	entitled := a.cache.Account().Entitlement.ValidAt(now)
	switch {
	case !entitled && a.state != AgentDisabled:
		a.setState(AgentDisabled)
	case entitled && a.state == AgentDisabled:
		a.setState(AgentActive)
	}
}

func (a *Agent) setState(next AgentState) {
	if a.state == next {
		return
	}

	a.logger.Info("automation state changed", "from", a.state, "to", next)
	a.state = next
	for _, fn := range a.onState {
		fn(next)
	}
}

// Tick evaluates every rig once, in cache order, and dispatches at most one
// action per rig.
func (a *Agent) Tick() {
	now := a.loop.Now()
	a.refresh(now)
	if a.state != AgentActive || !a.running {
		return
	}

	account := a.cache.Account()
	for _, rig := range a.cache.Rigs() {
		if rig.Status == domain.RigStatusLocked || a.busy[rig.ID] {
			continue
		}

		kind, ok := a.NextAction(rig, account, now)
		if !ok {
			continue
		}

		key := LedgerKey{RigID: rig.ID, Kind: kind}
		if !a.ledger.Allow(key, now) {
			continue
		}

		a.ledger.Record(key, now)
		a.dispatch(rig.ID, kind)
	}
}

// NextAction returns the highest-priority rule that matches rig.
func (a *Agent) NextAction(rig domain.Rig, account domain.Account, now time.Time) (domain.ActionKind, bool) {
	switch {
	case rig.Status == domain.RigStatusBroken:
		return domain.ActionRepair, true
	case rig.PendingReward != nil:
		return domain.ActionCollectMaterial, true
	case a.projector.GiftAvailable(rig, account, now):
		return domain.ActionCollectGift, true
	case a.projector.Energy(rig, account, now) < a.cfg.RechargeThreshold:
		return domain.ActionRechargeEnergy, true
	case a.claimDue(rig, now):
		return domain.ActionClaimIncome, true
	}
	return "", false
}

func (a *Agent) claimDue(rig domain.Rig, now time.Time) bool {
	if !rig.LastClaimAt.IsZero() && now.Sub(rig.LastClaimAt) <= a.cfg.ClaimInterval {
		return false
	}
	return rig.ClaimAvailableAt.IsZero() || !now.Before(rig.ClaimAvailableAt)
}

func (a *Agent) dispatch(rigID domain.RigID, kind domain.ActionKind) {
	gen := a.gen
	a.busy[rigID] = true
	a.logger.Debug("automated dispatch", "rig", rigID, "action", kind)

	a.dispatcher.Perform(Request{
		Ctx:    a.ctx,
		RigID:  rigID,
		Kind:   kind,
		Origin: domain.OriginAutomated,
		Alive:  func() bool { return a.gen == gen },
		Done: func(outcome Outcome) {
			if a.gen != gen {
				return
			}
			delete(a.busy, rigID)
			if outcome.Discarded {
				return
			}
			for _, fn := range a.onOutcome {
				fn(outcome)
			}
		},
	})
}
