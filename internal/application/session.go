package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/rigpilot/internal/domain"
	"github.com/bnema/rigpilot/internal/ports"
)

const (
	DefaultActionCooldown  = 30 * time.Second
	DefaultGiftInterval    = 24 * time.Hour
	DefaultBoostMultiplier = 2.0
)

type Options struct {
	PollInterval      time.Duration
	TickInterval      time.Duration
	ActionCooldown    time.Duration
	RechargeThreshold float64
	ClaimInterval     time.Duration
	GiftInterval      time.Duration
	BoostMultiplier   float64
	ToastTTL          time.Duration
	ToastExit         time.Duration
}

func DefaultOptions() Options {
	return Options{
		PollInterval:      DefaultPollInterval,
		TickInterval:      DefaultTickInterval,
		ActionCooldown:    DefaultActionCooldown,
		RechargeThreshold: DefaultRechargeThreshold,
		ClaimInterval:     DefaultClaimInterval,
		GiftInterval:      DefaultGiftInterval,
		BoostMultiplier:   DefaultBoostMultiplier,
		ToastTTL:          DefaultToastTTL,
		ToastExit:         DefaultToastExit,
	}
}

// Session wires the automation core onto one loop. Everything except the
// exported helpers that go through the loop must run on the loop goroutine.
type Session struct {
	Loop         *Loop
	Cache        *StateCache
	Ledger       *CooldownLedger
	Toasts       *ToastQueue
	Dispatcher   *Dispatcher
	Synchronizer *Synchronizer
	Agent        *Agent

	repo      ports.SnapshotRepository
	projector domain.Projector
	logger    *slog.Logger

	running    bool
	persisting bool
	listeners  []func()
}

func NewSession(remote ports.RemoteAPI, repo ports.SnapshotRepository, clock ports.Clock, catalog domain.Catalog, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.GiftInterval <= 0 {
		opts.GiftInterval = DefaultGiftInterval
	}
	if opts.BoostMultiplier <= 0 {
		opts.BoostMultiplier = DefaultBoostMultiplier
	}

	loop := NewLoop(clock)
	cache := NewStateCache()
	ledger := NewCooldownLedger(opts.ActionCooldown)
	toasts := NewToastQueue(loop, opts.ToastTTL, opts.ToastExit)
	dispatcher := NewDispatcher(loop, remote, cache, ledger, toasts, logger.With("component", "dispatcher"))
	projector := domain.Projector{
		Catalog:         catalog,
		BoostMultiplier: opts.BoostMultiplier,
		GiftInterval:    opts.GiftInterval,
	}

	s := &Session{
		Loop:         loop,
		Cache:        cache,
		Ledger:       ledger,
		Toasts:       toasts,
		Dispatcher:   dispatcher,
		Synchronizer: NewSynchronizer(loop, remote, cache, opts.PollInterval, logger.With("component", "sync")),
		Agent: NewAgent(loop, cache, ledger, dispatcher, projector, AgentConfig{
			TickInterval:      opts.TickInterval,
			RechargeThreshold: opts.RechargeThreshold,
			ClaimInterval:     opts.ClaimInterval,
		}, logger.With("component", "agent")),
		repo:      repo,
		projector: projector,
		logger:    logger,
	}

	s.Synchronizer.OnSync(s.synced)
	s.Toasts.Subscribe(s.changed)
	s.Agent.OnStateChange(func(AgentState) { s.changed() })
	s.Agent.OnOutcome(func(Outcome) { s.changed() })
	return s
}

// OnChange registers fn to run on the loop whenever visible state changes.
func (s *Session) OnChange(fn func()) {
	s.listeners = append(s.listeners, fn)
}

func (s *Session) Projector() domain.Projector {
	return s.projector
}

// SetCatalog swaps the tier table. Must be called on the loop.
func (s *Session) SetCatalog(catalog domain.Catalog) {
	s.projector.Catalog = catalog
	s.Agent.SetProjector(s.projector)
	s.changed()
}

// Start begins polling and automation. Must be called on the loop.
func (s *Session) Start(ctx context.Context) {
	if s.running {
		return
	}
	s.running = true
	s.Synchronizer.Start(ctx)
	s.Agent.Start(ctx)
}

// Stop tears the components down and persists the last synchronized
// snapshot. Must be called on the loop, or after the loop has stopped.
func (s *Session) Stop(ctx context.Context) error {
	if !s.running {
		return nil
	}
	s.running = false

	s.Agent.Stop()
	s.Synchronizer.Stop()
	s.Dispatcher.Close()
	s.Toasts.Close()

	if s.repo == nil || !s.Cache.Loaded() {
		return nil
	}
	if err := s.repo.Save(ctx, s.Cache.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Run starts the session and drives the loop until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	s.Loop.Post(func() { s.Start(ctx) })

	err := s.Loop.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(err, s.Stop(shutdownCtx))
}

// Act performs an interactive action and waits for its outcome. Safe from
// any goroutine other than the loop.
func (s *Session) Act(ctx context.Context, rigID domain.RigID, kind domain.ActionKind) (Outcome, error) {
	return s.Dispatcher.PerformAndWait(ctx, rigID, kind)
}

// ToggleAutomation flips the agent between paused and active. A refused
// toggle also raises a warning toast. Safe from any goroutine other than the
// loop.
func (s *Session) ToggleAutomation(ctx context.Context) (AgentState, error) {
	var (
		state     AgentState
		toggleErr error
	)
	err := s.Loop.Call(ctx, func() {
		state, toggleErr = s.Agent.Toggle()
		if errors.Is(toggleErr, domain.ErrAutomationUnavailable) {
			s.Toasts.Notify(domain.SeverityWarning, "Automation unavailable: no active entitlement")
		}
	})
	if err != nil {
		return "", err
	}
	return state, toggleErr
}

// SyncNow asks for a fetch outside the poll schedule. Safe from any
// goroutine.
func (s *Session) SyncNow() {
	s.Loop.Post(s.Synchronizer.SyncNow)
}

// DismissNewest dismisses the most recent visible toast. Safe from any
// goroutine.
func (s *Session) DismissNewest() {
	s.Loop.Post(func() { s.Toasts.DismissNewest() })
}

// Seed loads a snapshot into the cache without starting the session, for
// one-shot views. Must be called on the loop or before Run.
func (s *Session) Seed(snapshot domain.Snapshot, issuedAt time.Time) {
	s.Cache.Replace(snapshot, issuedAt)
}

func (s *Session) synced(snapshot domain.Snapshot) {
	s.persist(snapshot)
	s.changed()
}

func (s *Session) persist(snapshot domain.Snapshot) {
	if s.repo == nil || s.persisting {
		return
	}
	s.persisting = true

	repo := s.repo
	s.Loop.Go(func() func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := repo.Save(ctx, snapshot)
		return func() {
			s.persisting = false
			if err != nil {
				s.logger.Warn("persist snapshot failed", "error", err)
			}
		}
	})
}

func (s *Session) changed() {
	for _, fn := range s.listeners {
		fn()
	}
}
