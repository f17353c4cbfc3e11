package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version int           `toml:"version"`
	AsOf    string        `toml:"as_of"`
	SavedAt string        `toml:"saved_at"`
	Account accountSchema `toml:"account"`
	Rigs    []rigSchema   `toml:"rigs"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported snapshot schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type accountSchema struct {
	Balance     int64              `toml:"balance"`
	Boost       *boostSchema       `toml:"boost,omitempty"`
	Entitlement *entitlementSchema `toml:"entitlement,omitempty"`
}

type boostSchema struct {
	StartedAt  string  `toml:"started_at"`
	ExpiresAt  string  `toml:"expires_at"`
	Multiplier float64 `toml:"multiplier,omitempty"`
}

type entitlementSchema struct {
	ExpiresAt string `toml:"expires_at"`
}

type rigSchema struct {
	ID               string        `toml:"id"`
	Name             string        `toml:"name"`
	Tier             string        `toml:"tier"`
	Energy           float64       `toml:"energy"`
	EnergyUpdatedAt  string        `toml:"energy_updated_at"`
	LastClaimAt      string        `toml:"last_claim_at"`
	LastGiftAt       string        `toml:"last_gift_at"`
	AcquiredAt       string        `toml:"acquired_at"`
	Status           string        `toml:"status"`
	PendingReward    *rewardSchema `toml:"pending_reward,omitempty"`
	ClaimAvailableAt string        `toml:"claim_available_at,omitempty"`
}

type rewardSchema struct {
	Kind   string `toml:"kind"`
	Amount int64  `toml:"amount"`
}
