package domain

import "time"

const (
	minEnergy = 0
	maxEnergy = 100
)

// Projector predicts server-owned values between authoritative updates.
// Every method is a pure function of its arguments and the projector's own
// configuration.
type Projector struct {
	Catalog Catalog
	// BoostMultiplier applies while a boost is active and the boost does not
	// carry its own multiplier.
	BoostMultiplier float64
	GiftInterval    time.Duration
}

func (p Projector) Energy(rig Rig, account Account, now time.Time) float64 {
	spec := p.Catalog.Spec(rig.Tier)
	return ProjectEnergy(rig.Energy, rig.EnergyUpdatedAt, now, spec.DrainPerHour, account.Boost, p.BoostMultiplier)
}

// NextGiftAt returns when the rig's periodic gift becomes collectable. The
// second result is false for tiers exempt from gifts.
func (p Projector) NextGiftAt(rig Rig, account Account, now time.Time) (time.Time, bool) {
	spec := p.Catalog.Spec(rig.Tier)
	if spec.NoGift {
		return time.Time{}, false
	}

	interval := p.GiftInterval
	if spec.GiftInterval > 0 {
		interval = spec.GiftInterval
	}

	speed := 1.0
	if account.Boost.ActiveAt(now) {
		speed = EffectiveMultiplier(account.Boost, p.BoostMultiplier)
	}

	return NextGiftAt(rig.LastGiftAt, interval, speed), true
}

func (p Projector) GiftAvailable(rig Rig, account Account, now time.Time) bool {
	next, ok := p.NextGiftAt(rig, account, now)
	if !ok {
		return false
	}
	return !now.Before(next)
}

// EffectiveMultiplier resolves the multiplier a boost applies. Values below
// one are treated as no boost.
func EffectiveMultiplier(boost *Boost, fallback float64) float64 {
	multiplier := fallback
	if boost != nil && boost.Multiplier > 0 {
		multiplier = boost.Multiplier
	}
	if multiplier < 1 {
		return 1
	}
	return multiplier
}

// ProjectEnergy drains lastLevel by drainPerHour for the time elapsed since
// lastUpdate. The part of the window covered by an active boost drains at
// the boosted rate.
func ProjectEnergy(lastLevel float64, lastUpdate, now time.Time, drainPerHour float64, boost *Boost, boostMultiplier float64) float64 {
	if lastUpdate.IsZero() || !now.After(lastUpdate) || drainPerHour <= 0 {
		return clampEnergy(lastLevel)
	}

	elapsed := now.Sub(lastUpdate)
	boosted := boostOverlap(boost, lastUpdate, now)
	normal := elapsed - boosted
	multiplier := EffectiveMultiplier(boost, boostMultiplier)

	drained := drainPerHour * (normal.Hours() + boosted.Hours()*multiplier)
	return clampEnergy(lastLevel - drained)
}

func boostOverlap(boost *Boost, from, to time.Time) time.Duration {
	if boost == nil {
		return 0
	}

	start := from
	if boost.StartedAt.After(start) {
		start = boost.StartedAt
	}
	end := to
	if boost.ExpiresAt.Before(end) {
		end = boost.ExpiresAt
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

// NextGiftAt is lastGift + baseInterval/speedBoost. A rig that never
// collected a gift is eligible immediately, signalled by the zero time.
func NextGiftAt(lastGift time.Time, baseInterval time.Duration, speedBoost float64) time.Time {
	if lastGift.IsZero() {
		return time.Time{}
	}
	if speedBoost <= 0 {
		speedBoost = 1
	}
	return lastGift.Add(time.Duration(float64(baseInterval) / speedBoost))
}

func CooldownRemaining(required time.Duration, last, now time.Time) time.Duration {
	if last.IsZero() {
		return 0
	}
	remaining := required - now.Sub(last)
	if remaining <= 0 {
		return 0
	}
	return remaining
}

func clampEnergy(level float64) float64 {
	if level < minEnergy {
		return minEnergy
	}
	if level > maxEnergy {
		return maxEnergy
	}
	return level
}
