package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultDrainPerHour empties a full rig in exactly 24 hours.
const DefaultDrainPerHour = 100.0 / 24

type Tier string

type TierSpec struct {
	Tier         Tier
	DrainPerHour float64
	// GiftInterval overrides the configured base interval when non-zero.
	GiftInterval time.Duration
	NoGift       bool
	RewardClass  string
}

func (s TierSpec) Validate() error {
	if strings.TrimSpace(string(s.Tier)) == "" {
		return fmt.Errorf("tier is required")
	}
	if s.DrainPerHour < 0 {
		return fmt.Errorf("tier %s: drain per hour must not be negative", s.Tier)
	}
	if s.GiftInterval < 0 {
		return fmt.Errorf("tier %s: gift interval must not be negative", s.Tier)
	}
	return nil
}

// Catalog is the static tier table. Unknown tiers resolve to the fallback
// spec so projections never fail on a tier the client has not heard of.
type Catalog struct {
	tiers    map[Tier]TierSpec
	fallback TierSpec
}

func NewCatalog(specs []TierSpec, fallback TierSpec) (Catalog, error) {
	tiers := make(map[Tier]TierSpec, len(specs))
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return Catalog{}, err
		}
		if _, ok := tiers[spec.Tier]; ok {
			return Catalog{}, fmt.Errorf("duplicate tier %q", spec.Tier)
		}
		tiers[spec.Tier] = spec
	}
	if fallback.DrainPerHour <= 0 {
		fallback.DrainPerHour = DefaultDrainPerHour
	}

	return Catalog{tiers: tiers, fallback: fallback}, nil
}

func DefaultCatalog() Catalog {
	return Catalog{
		tiers:    map[Tier]TierSpec{},
		fallback: TierSpec{DrainPerHour: DefaultDrainPerHour},
	}
}

func (c Catalog) Spec(tier Tier) TierSpec {
	if spec, ok := c.tiers[tier]; ok {
		return spec
	}
	spec := c.fallback
	if spec.DrainPerHour <= 0 {
		spec.DrainPerHour = DefaultDrainPerHour
	}
	spec.Tier = tier
	return spec
}

func (c Catalog) Len() int {
	return len(c.tiers)
}
