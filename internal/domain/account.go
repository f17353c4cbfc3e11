package domain

import "time"

type Account struct {
	Balance     int64
	Boost       *Boost
	Entitlement *Entitlement
}

// Boost is a time-boxed global multiplier (overclock). A zero Multiplier
// means the configured default applies.
type Boost struct {
	StartedAt  time.Time
	ExpiresAt  time.Time
	Multiplier float64
}

func (b *Boost) ActiveAt(now time.Time) bool {
	if b == nil {
		return false
	}
	if !b.StartedAt.IsZero() && now.Before(b.StartedAt) {
		return false
	}
	return now.Before(b.ExpiresAt)
}

// Entitlement gates the automation agent. A zero ExpiresAt never expires.
type Entitlement struct {
	ExpiresAt time.Time
}

func (e *Entitlement) ValidAt(now time.Time) bool {
	if e == nil {
		return false
	}
	if e.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(e.ExpiresAt)
}

type Snapshot struct {
	Account Account
	Rigs    []Rig
	AsOf    time.Time
}

func (s Snapshot) Rig(id RigID) (Rig, bool) {
	for _, rig := range s.Rigs {
		if rig.ID == id {
			return rig, true
		}
	}
	return Rig{}, false
}

func (s Snapshot) IsStale(now time.Time, maxAge time.Duration) bool {
	if s.AsOf.IsZero() {
		return true
	}

	if maxAge <= 0 {
		return false
	}

	return now.Sub(s.AsOf) > maxAge
}
