// Package sim is an in-memory game server. It backs the offline simulate
// command and the tests of the HTTP adapter.
package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/bnema/rigpilot/internal/domain"
	"github.com/bnema/rigpilot/internal/ports"
)

var rigNames = []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot", "Golf", "Hotel", "India", "Juliett", "Kilo", "Lima"}

var rigTiers = []domain.Tier{"basic", "advanced", "premium", "legendary", "starter"}

type Config struct {
	Rigs         int
	Seed         uint64
	StartBalance int64
	// ClaimCooldown is the server-side minimum between claims.
	ClaimCooldown time.Duration
	IncomePerHour int64
	RechargeCost  int64
	RepairCost    int64
	RewardEvery   time.Duration
	// MeanTimeToFailure drives random breakdowns; zero disables them.
	MeanTimeToFailure time.Duration
	// Entitlement is how long automation stays licensed; zero is permanent.
	Entitlement     time.Duration
	Boost           time.Duration
	BoostMultiplier float64
	Token           string
}

func DefaultConfig() Config {
	return Config{
		Rigs:              6,
		Seed:              1,
		StartBalance:      5000,
		ClaimCooldown:     45 * time.Minute,
		IncomePerHour:     120,
		RechargeCost:      150,
		RepairCost:        300,
		RewardEvery:       6 * time.Hour,
		MeanTimeToFailure: 36 * time.Hour,
		BoostMultiplier:   2,
	}
}

type Stats struct {
	Fetches    int
	Actions    map[domain.ActionKind]int
	Rejections map[domain.ErrorKind]int
}

type rigState struct {
	rig          domain.Rig
	lastRewardAt time.Time
	breaksAt     time.Time
}

// Server holds the authoritative world. It is safe for concurrent use.
type Server struct {
	mu        sync.Mutex
	clock     ports.Clock
	cfg       Config
	projector domain.Projector
	rng       *rand.Rand
	account   domain.Account
	rigs      []*rigState
	offline   bool
	stats     Stats
}

var _ ports.RemoteAPI = (*Server)(nil)

func NewServer(clock ports.Clock, catalog domain.Catalog, cfg Config) *Server {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if cfg.BoostMultiplier <= 0 {
		cfg.BoostMultiplier = 2
	}

	now := clock.Now()
	s := &Server{
		clock: clock,
		cfg:   cfg,
		projector: domain.Projector{
			Catalog:         catalog,
			BoostMultiplier: cfg.BoostMultiplier,
			GiftInterval:    24 * time.Hour,
		},
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		account: domain.Account{
			Balance:     cfg.StartBalance,
			Entitlement: &domain.Entitlement{},
		},
		stats: Stats{
			Actions:    map[domain.ActionKind]int{},
			Rejections: map[domain.ErrorKind]int{},
		},
	}
	if cfg.Entitlement > 0 {
		s.account.Entitlement.ExpiresAt = now.Add(cfg.Entitlement)
	}
	if cfg.Boost > 0 {
		s.account.Boost = &domain.Boost{StartedAt: now, ExpiresAt: now.Add(cfg.Boost), Multiplier: cfg.BoostMultiplier}
	}

	for i := 0; i < cfg.Rigs; i++ {
		s.rigs = append(s.rigs, s.newRig(i, now))
	}
	return s
}

func (s *Server) newRig(i int, now time.Time) *rigState {
	name := rigNames[i%len(rigNames)]
	if i >= len(rigNames) {
		name = fmt.Sprintf("%s %d", name, i/len(rigNames)+1)
	}

	status := domain.RigStatusNormal
	if i > 0 && i%7 == 6 {
		status = domain.RigStatusLocked
	}

	state := &rigState{
		rig: domain.Rig{
			ID:              domain.RigID(fmt.Sprintf("rig-%02d", i+1)),
			Name:            name,
			Tier:            rigTiers[i%len(rigTiers)],
			Energy:          float64(30 + s.rng.IntN(71)),
			EnergyUpdatedAt: now,
			LastClaimAt:     now.Add(-s.jitter(3 * time.Hour)),
			LastGiftAt:      now.Add(-s.jitter(30 * time.Hour)),
			AcquiredAt:      now.Add(-time.Duration(1+s.rng.IntN(90)) * 24 * time.Hour),
			Status:          status,
		},
		lastRewardAt: now.Add(-s.jitter(s.cfg.RewardEvery)),
	}
	state.breaksAt = s.nextBreak(now)
	return state
}

func (s *Server) jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(s.rng.Int64N(int64(max)))
}

func (s *Server) nextBreak(now time.Time) time.Time {
	if s.cfg.MeanTimeToFailure <= 0 {
		return time.Time{}
	}
	mean := float64(s.cfg.MeanTimeToFailure)
	return now.Add(time.Duration(s.rng.ExpFloat64() * mean))
}

// SetOffline makes every call fail with a transient error.
func (s *Server) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// Mutate edits the world directly. Intended for tests and scenario setup.
func (s *Server) Mutate(fn func(account *domain.Account, rigs []*domain.Rig)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rigs := make([]*domain.Rig, 0, len(s.rigs))
	for _, state := range s.rigs {
		rigs = append(rigs, &state.rig)
	}
	fn(&s.account, rigs)
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Stats{
		Fetches:    s.stats.Fetches,
		Actions:    make(map[domain.ActionKind]int, len(s.stats.Actions)),
		Rejections: make(map[domain.ErrorKind]int, len(s.stats.Rejections)),
	}
	for k, v := range s.stats.Actions {
		out.Actions[k] = v
	}
	for k, v := range s.stats.Rejections {
		out.Rejections[k] = v
	}
	return out
}

func (s *Server) FetchSnapshot(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.offline {
		return domain.Snapshot{}, unavailable()
	}

	now := s.clock.Now()
	s.evolve(now)
	s.stats.Fetches++

	snapshot := domain.Snapshot{AsOf: now, Account: cloneAccount(s.account)}
	for _, state := range s.rigs {
		rig := state.rig
		if rig.Status == domain.RigStatusBroken {
			// A broken rig does not drain.
			rig.EnergyUpdatedAt = now
		}
		if rig.PendingReward != nil {
			reward := *rig.PendingReward
			rig.PendingReward = &reward
		}
		snapshot.Rigs = append(snapshot.Rigs, rig)
	}
	return snapshot, nil
}

func (s *Server) PerformAction(ctx context.Context, rigID domain.RigID, kind domain.ActionKind) (domain.RigUpdate, error) {
	if err := ctx.Err(); err != nil {
		return domain.RigUpdate{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.offline {
		return domain.RigUpdate{}, unavailable()
	}

	now := s.clock.Now()
	s.evolve(now)

	update, err := s.perform(now, rigID, kind)
	if err != nil {
		s.stats.Rejections[err.Kind]++
		return domain.RigUpdate{}, err
	}
	s.stats.Actions[kind]++
	update.RigID = rigID
	return update, nil
}

func (s *Server) perform(now time.Time, rigID domain.RigID, kind domain.ActionKind) (domain.RigUpdate, *domain.ActionError) {
	state := s.find(rigID)
	if state == nil {
		return domain.RigUpdate{}, rejected(domain.ErrorKindValidation, "rig %s not found", rigID)
	}
	rig := &state.rig
	if rig.Status == domain.RigStatusLocked {
		return domain.RigUpdate{}, rejected(domain.ErrorKindValidation, "rig is locked")
	}

	switch kind {
	case domain.ActionRepair:
		return s.repair(now, state)
	case domain.ActionCollectMaterial:
		if rig.PendingReward == nil {
			return domain.RigUpdate{}, rejected(domain.ErrorKindValidation, "nothing to collect")
		}
		granted := *rig.PendingReward
		rig.PendingReward = nil
		return domain.RigUpdate{ClearReward: true, Granted: &granted}, nil
	case domain.ActionCollectGift:
		return s.collectGift(now, rig)
	case domain.ActionRechargeEnergy:
		return s.recharge(now, rig)
	case domain.ActionClaimIncome:
		return s.claim(now, rig)
	default:
		return domain.RigUpdate{}, rejected(domain.ErrorKindValidation, "unknown action %q", kind)
	}
}

func (s *Server) repair(now time.Time, state *rigState) (domain.RigUpdate, *domain.ActionError) {
	rig := &state.rig
	if rig.Status != domain.RigStatusBroken {
		return domain.RigUpdate{}, rejected(domain.ErrorKindValidation, "rig is not broken")
	}
	if s.account.Balance < s.cfg.RepairCost {
		return domain.RigUpdate{}, rejected(domain.ErrorKindInsufficientResource, "repair costs %d", s.cfg.RepairCost)
	}

	s.account.Balance -= s.cfg.RepairCost
	rig.Status = domain.RigStatusNormal
	// Drain restarts from the level the rig broke at.
	rig.EnergyUpdatedAt = now
	state.breaksAt = s.nextBreak(now)

	status := rig.Status
	energy := rig.Energy
	balance := s.account.Balance
	return domain.RigUpdate{Balance: &balance, Status: &status, Energy: &energy, EnergyUpdatedAt: &now}, nil
}

func (s *Server) collectGift(now time.Time, rig *domain.Rig) (domain.RigUpdate, *domain.ActionError) {
	next, ok := s.projector.NextGiftAt(*rig, s.account, now)
	if !ok {
		return domain.RigUpdate{}, rejected(domain.ErrorKindValidation, "tier %s has no gift", rig.Tier)
	}
	if now.Before(next) {
		err := rejected(domain.ErrorKindCooldownActive, "gift not ready")
		err.RetryAfter = next.Sub(now)
		return domain.RigUpdate{}, err
	}

	rig.LastGiftAt = now
	return domain.RigUpdate{LastGiftAt: &now, Granted: &domain.Reward{Kind: domain.RewardKindKey, Amount: 1}}, nil
}

func (s *Server) recharge(now time.Time, rig *domain.Rig) (domain.RigUpdate, *domain.ActionError) {
	if s.account.Balance < s.cfg.RechargeCost {
		return domain.RigUpdate{}, rejected(domain.ErrorKindInsufficientResource, "recharge costs %d", s.cfg.RechargeCost)
	}

	s.account.Balance -= s.cfg.RechargeCost
	rig.Energy = 100
	rig.EnergyUpdatedAt = now

	energy := rig.Energy
	balance := s.account.Balance
	return domain.RigUpdate{Balance: &balance, Energy: &energy, EnergyUpdatedAt: &now}, nil
}

func (s *Server) claim(now time.Time, rig *domain.Rig) (domain.RigUpdate, *domain.ActionError) {
	if !rig.ClaimAvailableAt.IsZero() && now.Before(rig.ClaimAvailableAt) {
		err := rejected(domain.ErrorKindCooldownActive, "claim not ready")
		err.RetryAfter = rig.ClaimAvailableAt.Sub(now)
		return domain.RigUpdate{}, err
	}

	elapsed := now.Sub(rig.LastClaimAt)
	if rig.LastClaimAt.IsZero() || elapsed > 24*time.Hour {
		elapsed = 24 * time.Hour
	}
	income := int64(elapsed.Hours() * float64(s.cfg.IncomePerHour))

	s.account.Balance += income
	rig.LastClaimAt = now
	rig.ClaimAvailableAt = now.Add(s.cfg.ClaimCooldown)

	balance := s.account.Balance
	available := rig.ClaimAvailableAt
	return domain.RigUpdate{
		Balance:          &balance,
		LastClaimAt:      &now,
		ClaimAvailableAt: &available,
		Granted:          &domain.Reward{Kind: domain.RewardKindCoins, Amount: income},
	}, nil
}

// evolve applies everything that happened on the server side up to now:
// breakdowns, empty rigs and pending rewards.
func (s *Server) evolve(now time.Time) {
	for _, state := range s.rigs {
		rig := &state.rig
		if rig.Status != domain.RigStatusNormal {
			continue
		}

		energy := s.projector.Energy(*rig, s.account, now)
		broke := !state.breaksAt.IsZero() && !now.Before(state.breaksAt)
		if energy <= 0 || broke {
			rig.Energy = energy
			rig.EnergyUpdatedAt = now
			rig.Status = domain.RigStatusBroken
			continue
		}

		if s.cfg.RewardEvery > 0 && rig.PendingReward == nil && now.Sub(state.lastRewardAt) >= s.cfg.RewardEvery {
			rig.PendingReward = &domain.Reward{Kind: domain.RewardKindMaterial, Amount: int64(1 + s.rng.IntN(5))}
			state.lastRewardAt = now
		}
	}
}

func (s *Server) find(id domain.RigID) *rigState {
	for _, state := range s.rigs {
		if state.rig.ID == id {
			return state
		}
	}
	return nil
}

func rejected(kind domain.ErrorKind, format string, args ...any) *domain.ActionError {
	return &domain.ActionError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func unavailable() *domain.ActionError {
	return &domain.ActionError{Kind: domain.ErrorKindTransient, Detail: "server unavailable"}
}

func cloneAccount(account domain.Account) domain.Account {
	if account.Boost != nil {
		boost := *account.Boost
		account.Boost = &boost
	}
	if account.Entitlement != nil {
		entitlement := *account.Entitlement
		account.Entitlement = &entitlement
	}
	return account
}
