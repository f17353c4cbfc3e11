package domain

import (
	"fmt"
	"time"
)

type ActionKind string

const (
	ActionRepair          ActionKind = "repair"
	ActionCollectMaterial ActionKind = "collect-material"
	ActionCollectGift     ActionKind = "collect-gift"
	ActionRechargeEnergy  ActionKind = "recharge-energy"
	ActionClaimIncome     ActionKind = "claim-income"
)

// ActionKinds lists every action in automation priority order.
var ActionKinds = []ActionKind{
	ActionRepair,
	ActionCollectMaterial,
	ActionCollectGift,
	ActionRechargeEnergy,
	ActionClaimIncome,
}

func (k ActionKind) Valid() bool {
	for _, known := range ActionKinds {
		if k == known {
			return true
		}
	}
	return false
}

func ParseActionKind(raw string) (ActionKind, error) {
	kind := ActionKind(raw)
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
	}
	return kind, nil
}

func (k ActionKind) Label() string {
	switch k {
	case ActionRepair:
		return "repair"
	case ActionCollectMaterial:
		return "collect reward"
	case ActionCollectGift:
		return "collect gift"
	case ActionRechargeEnergy:
		return "recharge energy"
	case ActionClaimIncome:
		return "claim income"
	default:
		return string(k)
	}
}

type Origin string

const (
	OriginAutomated   Origin = "automated"
	OriginInteractive Origin = "interactive"
)

type ErrorKind string

const (
	ErrorKindValidation           ErrorKind = "validation"
	ErrorKindCooldownActive       ErrorKind = "cooldown-active"
	ErrorKindInsufficientResource ErrorKind = "insufficient-resource"
	ErrorKindTransient            ErrorKind = "transient"
)

func ParseErrorKind(raw string) ErrorKind {
	switch ErrorKind(raw) {
	case ErrorKindValidation, ErrorKindCooldownActive, ErrorKindInsufficientResource, ErrorKindTransient:
		return ErrorKind(raw)
	default:
		return ErrorKindTransient
	}
}

// ActionError is the failure half of an action result. RetryAfter is only
// meaningful for ErrorKindCooldownActive.
type ActionError struct {
	Kind       ErrorKind
	Detail     string
	RetryAfter time.Duration
}

func (e *ActionError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}
