package application

import (
	"time"

	"github.com/bnema/rigpilot/internal/domain"
)

type field int

const (
	fieldBalance field = iota
	fieldEnergy
	fieldClaim
	fieldClaimWindow
	fieldGift
	fieldStatus
	fieldReward
	fieldCount
)

// stamps records, per field, when a dispatch response last wrote it. A zero
// stamp means the value came from a poll.
type stamps [fieldCount]time.Time

// keep reports whether a dispatch-written value must survive a poll issued
// at issuedAt. The poll cannot be trusted to include a response that arrived
// at or after the moment it was issued.
func (s *stamps) keep(f field, issuedAt time.Time) bool {
	written := s[f]
	return !written.IsZero() && !written.Before(issuedAt)
}

type rigEntry struct {
	rig    domain.Rig
	stamps stamps
}

// StateCache is the local projection of the server state. It is owned by
// the session loop; nothing else may touch it.
type StateCache struct {
	account       domain.Account
	accountStamps stamps
	rigs          []*rigEntry
	index         map[domain.RigID]*rigEntry
	asOf          time.Time
	syncedAt      time.Time
	loaded        bool
	version       uint64
}

func NewStateCache() *StateCache {
	return &StateCache{index: map[domain.RigID]*rigEntry{}}
}

func (c *StateCache) Loaded() bool {
	return c.loaded
}

// Version increases on every change.
func (c *StateCache) Version() uint64 {
	return c.version
}

func (c *StateCache) SyncedAt() time.Time {
	return c.syncedAt
}

// Replace merges an authoritative snapshot fetched by a request issued at
// issuedAt. Poll values win for every field except those a dispatch wrote
// at or after issuedAt. Rigs missing from the snapshot are dropped and rig
// order follows the snapshot.
func (c *StateCache) Replace(snapshot domain.Snapshot, issuedAt time.Time) {
	next := &StateCache{
		index:    make(map[domain.RigID]*rigEntry, len(snapshot.Rigs)),
		asOf:     snapshot.AsOf,
		syncedAt: issuedAt,
		loaded:   true,
		version:  c.version + 1,
	}
	if next.asOf.IsZero() {
		next.asOf = issuedAt
	}

	next.account = cloneAccount(snapshot.Account)
	if c.accountStamps.keep(fieldBalance, issuedAt) {
		next.account.Balance = c.account.Balance
		next.accountStamps[fieldBalance] = c.accountStamps[fieldBalance]
	}

	for _, incoming := range snapshot.Rigs {
		if _, dup := next.index[incoming.ID]; dup {
			continue
		}
		entry := &rigEntry{rig: cloneRig(incoming)}
		if previous, ok := c.index[incoming.ID]; ok {
			mergeDispatchWrites(entry, previous, issuedAt)
		}
		next.rigs = append(next.rigs, entry)
		next.index[incoming.ID] = entry
	}

	*c = *next
}

func mergeDispatchWrites(entry, previous *rigEntry, issuedAt time.Time) {
	local := previous.rig
	if previous.stamps.keep(fieldEnergy, issuedAt) {
		entry.rig.Energy = local.Energy
		entry.rig.EnergyUpdatedAt = local.EnergyUpdatedAt
		entry.stamps[fieldEnergy] = previous.stamps[fieldEnergy]
	}
	if previous.stamps.keep(fieldClaim, issuedAt) {
		entry.rig.LastClaimAt = local.LastClaimAt
		entry.stamps[fieldClaim] = previous.stamps[fieldClaim]
	}
	if previous.stamps.keep(fieldClaimWindow, issuedAt) {
		entry.rig.ClaimAvailableAt = local.ClaimAvailableAt
		entry.stamps[fieldClaimWindow] = previous.stamps[fieldClaimWindow]
	}
	if previous.stamps.keep(fieldGift, issuedAt) {
		entry.rig.LastGiftAt = local.LastGiftAt
		entry.stamps[fieldGift] = previous.stamps[fieldGift]
	}
	if previous.stamps.keep(fieldStatus, issuedAt) {
		entry.rig.Status = local.Status
		entry.stamps[fieldStatus] = previous.stamps[fieldStatus]
	}
	if previous.stamps.keep(fieldReward, issuedAt) {
		entry.rig.PendingReward = cloneReward(local.PendingReward)
		entry.stamps[fieldReward] = previous.stamps[fieldReward]
	}
}

// Apply writes the fields of a successful action response received at at.
// This is the only path besides Replace that moves a last-known value.
func (c *StateCache) Apply(update domain.RigUpdate, at time.Time) error {
	entry, ok := c.index[update.RigID]
	if !ok {
		return domain.ErrRigNotFound
	}

	if update.Balance != nil {
		c.account.Balance = *update.Balance
		c.accountStamps[fieldBalance] = at
	}
	if update.Energy != nil {
		entry.rig.Energy = *update.Energy
		entry.rig.EnergyUpdatedAt = at
		if update.EnergyUpdatedAt != nil {
			entry.rig.EnergyUpdatedAt = *update.EnergyUpdatedAt
		}
		entry.stamps[fieldEnergy] = at
	}
	if update.LastClaimAt != nil {
		entry.rig.LastClaimAt = *update.LastClaimAt
		entry.stamps[fieldClaim] = at
	}
	if update.ClaimAvailableAt != nil {
		entry.rig.ClaimAvailableAt = *update.ClaimAvailableAt
		entry.stamps[fieldClaimWindow] = at
	}
	if update.LastGiftAt != nil {
		entry.rig.LastGiftAt = *update.LastGiftAt
		entry.stamps[fieldGift] = at
	}
	if update.Status != nil {
		entry.rig.Status = *update.Status
		entry.stamps[fieldStatus] = at
	}
	if update.ClearReward {
		entry.rig.PendingReward = nil
		entry.stamps[fieldReward] = at
	}

	c.version++
	return nil
}

func (c *StateCache) Account() domain.Account {
	return cloneAccount(c.account)
}

func (c *StateCache) Rig(id domain.RigID) (domain.Rig, bool) {
	entry, ok := c.index[id]
	if !ok {
		return domain.Rig{}, false
	}
	return cloneRig(entry.rig), true
}

// Rigs returns copies in snapshot order.
func (c *StateCache) Rigs() []domain.Rig {
	rigs := make([]domain.Rig, 0, len(c.rigs))
	for _, entry := range c.rigs {
		rigs = append(rigs, cloneRig(entry.rig))
	}
	return rigs
}

func (c *StateCache) Snapshot() domain.Snapshot {
	return domain.Snapshot{
		Account: c.Account(),
		Rigs:    c.Rigs(),
		AsOf:    c.asOf,
	}
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

func cloneRig(rig domain.Rig) domain.Rig {
	rig.PendingReward = cloneReward(rig.PendingReward)
	return rig
}

func cloneReward(reward *domain.Reward) *domain.Reward {
	if reward == nil {
		return nil
	}
	copied := *reward
	return &copied
}
