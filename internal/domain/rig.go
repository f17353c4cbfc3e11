package domain

import "time"

type RigID string

type RigStatus string

const (
	RigStatusNormal RigStatus = "normal"
	RigStatusBroken RigStatus = "broken"
	RigStatusLocked RigStatus = "locked"
)

func (s RigStatus) Valid() bool {
	switch s {
	case RigStatusNormal, RigStatusBroken, RigStatusLocked:
		return true
	default:
		return false
	}
}

// ParseRigStatus maps an unrecognized status to locked, which automation
// leaves alone.
func ParseRigStatus(raw string) RigStatus {
	status := RigStatus(raw)
	if !status.Valid() {
		return RigStatusLocked
	}
	return status
}

type RewardKind string

const (
	RewardKindMaterial RewardKind = "material"
	RewardKindKey      RewardKind = "key"
	// RewardKindCoins is only ever granted by a claim; it is never pending.
	RewardKindCoins RewardKind = "coins"
)

type Reward struct {
	Kind   RewardKind
	Amount int64
}

type Rig struct {
	ID              RigID
	Name            string
	Tier            Tier
	Energy          float64
	EnergyUpdatedAt time.Time
	LastClaimAt     time.Time
	LastGiftAt      time.Time
	AcquiredAt      time.Time
	Status          RigStatus
	PendingReward   *Reward
	// ClaimAvailableAt is the server-trusted claim cooldown. Zero when the
	// server did not report one.
	ClaimAvailableAt time.Time
}

func (r Rig) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return string(r.ID)
}

// RigUpdate carries the authoritative fields a successful action returned.
// Nil fields were not part of the response.
type RigUpdate struct {
	RigID            RigID
	Balance          *int64
	Energy           *float64
	EnergyUpdatedAt  *time.Time
	LastClaimAt      *time.Time
	LastGiftAt       *time.Time
	Status           *RigStatus
	ClaimAvailableAt *time.Time
	// ClearReward is set when the action consumed the pending reward.
	ClearReward bool
	Granted     *Reward
}
