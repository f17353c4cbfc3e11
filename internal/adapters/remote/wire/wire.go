// Package wire holds the JSON payloads exchanged with the game server.
package wire

import (
	"net/http"
	"time"

	"github.com/bnema/rigpilot/internal/domain"
)

const (
	SnapshotPath = "/v1/snapshot"
	ActionPath   = "/v1/rigs/{id}/actions/{kind}"
)

type Snapshot struct {
	AsOf    *time.Time `json:"as_of,omitempty"`
	Account Account    `json:"account"`
	Rigs    []Rig      `json:"rigs"`
}

type Account struct {
	Balance     int64        `json:"balance"`
	Boost       *Boost       `json:"boost,omitempty"`
	Entitlement *Entitlement `json:"entitlement,omitempty"`
}

type Boost struct {
	StartedAt  *time.Time `json:"started_at,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Multiplier float64    `json:"multiplier,omitempty"`
}

type Entitlement struct {
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type Rig struct {
	ID               string     `json:"id"`
	Name             string     `json:"name,omitempty"`
	Tier             string     `json:"tier"`
	Energy           float64    `json:"energy"`
	EnergyUpdatedAt  *time.Time `json:"energy_updated_at,omitempty"`
	LastClaimAt      *time.Time `json:"last_claim_at,omitempty"`
	LastGiftAt       *time.Time `json:"last_gift_at,omitempty"`
	AcquiredAt       *time.Time `json:"acquired_at,omitempty"`
	Status           string     `json:"status"`
	PendingReward    *Reward    `json:"pending_reward,omitempty"`
	ClaimAvailableAt *time.Time `json:"claim_available_at,omitempty"`
}

type Reward struct {
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
}

type ActionResult struct {
	Balance          *int64     `json:"balance,omitempty"`
	Energy           *float64   `json:"energy,omitempty"`
	EnergyUpdatedAt  *time.Time `json:"energy_updated_at,omitempty"`
	LastClaimAt      *time.Time `json:"last_claim_at,omitempty"`
	LastGiftAt       *time.Time `json:"last_gift_at,omitempty"`
	Status           *string    `json:"status,omitempty"`
	ClaimAvailableAt *time.Time `json:"claim_available_at,omitempty"`
	ClearReward      bool       `json:"clear_reward,omitempty"`
	Granted          *Reward    `json:"granted,omitempty"`
}

type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind         string `json:"kind"`
	Detail       string `json:"detail,omitempty"`
	RetryAfterMS int64  `json:"retry_after_ms,omitempty"`
}

func SnapshotFromDomain(s domain.Snapshot) Snapshot {
	out := Snapshot{
		AsOf:    timePtr(s.AsOf),
		Account: Account{Balance: s.Account.Balance},
		Rigs:    make([]Rig, 0, len(s.Rigs)),
	}
	if b := s.Account.Boost; b != nil {
		out.Account.Boost = &Boost{StartedAt: timePtr(b.StartedAt), ExpiresAt: b.ExpiresAt, Multiplier: b.Multiplier}
	}
	if e := s.Account.Entitlement; e != nil {
		out.Account.Entitlement = &Entitlement{ExpiresAt: timePtr(e.ExpiresAt)}
	}
	for _, r := range s.Rigs {
		out.Rigs = append(out.Rigs, Rig{
			ID:               string(r.ID),
			Name:             r.Name,
			Tier:             string(r.Tier),
			Energy:           r.Energy,
			EnergyUpdatedAt:  timePtr(r.EnergyUpdatedAt),
			LastClaimAt:      timePtr(r.LastClaimAt),
			LastGiftAt:       timePtr(r.LastGiftAt),
			AcquiredAt:       timePtr(r.AcquiredAt),
			Status:           string(r.Status),
			PendingReward:    rewardFromDomain(r.PendingReward),
			ClaimAvailableAt: timePtr(r.ClaimAvailableAt),
		})
	}
	return out
}

func (s Snapshot) Domain() domain.Snapshot {
	out := domain.Snapshot{
		AsOf:    timeOf(s.AsOf),
		Account: domain.Account{Balance: s.Account.Balance},
		Rigs:    make([]domain.Rig, 0, len(s.Rigs)),
	}
	if b := s.Account.Boost; b != nil {
		out.Account.Boost = &domain.Boost{StartedAt: timeOf(b.StartedAt), ExpiresAt: b.ExpiresAt, Multiplier: b.Multiplier}
	}
	if e := s.Account.Entitlement; e != nil {
		out.Account.Entitlement = &domain.Entitlement{ExpiresAt: timeOf(e.ExpiresAt)}
	}
	for _, r := range s.Rigs {
		status := domain.ParseRigStatus(r.Status)
		out.Rigs = append(out.Rigs, domain.Rig{
			ID:               domain.RigID(r.ID),
			Name:             r.Name,
			Tier:             domain.Tier(r.Tier),
			Energy:           r.Energy,
			EnergyUpdatedAt:  timeOf(r.EnergyUpdatedAt),
			LastClaimAt:      timeOf(r.LastClaimAt),
			LastGiftAt:       timeOf(r.LastGiftAt),
			AcquiredAt:       timeOf(r.AcquiredAt),
			Status:           status,
			PendingReward:    r.PendingReward.toDomain(),
			ClaimAvailableAt: timeOf(r.ClaimAvailableAt),
		})
	}
	return out
}

func ActionResultFromDomain(u domain.RigUpdate) ActionResult {
	out := ActionResult{
		Balance:          u.Balance,
		Energy:           u.Energy,
		EnergyUpdatedAt:  u.EnergyUpdatedAt,
		LastClaimAt:      u.LastClaimAt,
		LastGiftAt:       u.LastGiftAt,
		ClaimAvailableAt: u.ClaimAvailableAt,
		ClearReward:      u.ClearReward,
		Granted:          rewardFromDomain(u.Granted),
	}
	if u.Status != nil {
		status := string(*u.Status)
		out.Status = &status
	}
	return out
}

func (a ActionResult) Domain(rigID domain.RigID) domain.RigUpdate {
	out := domain.RigUpdate{
		RigID:            rigID,
		Balance:          a.Balance,
		Energy:           a.Energy,
		EnergyUpdatedAt:  a.EnergyUpdatedAt,
		LastClaimAt:      a.LastClaimAt,
		LastGiftAt:       a.LastGiftAt,
		ClaimAvailableAt: a.ClaimAvailableAt,
		ClearReward:      a.ClearReward,
		Granted:          a.Granted.toDomain(),
	}
	if a.Status != nil {
		status := domain.ParseRigStatus(*a.Status)
		out.Status = &status
	}
	return out
}

func ErrorFromDomain(err *domain.ActionError) ErrorBody {
	return ErrorBody{Error: ErrorDetail{
		Kind:         string(err.Kind),
		Detail:       err.Detail,
		RetryAfterMS: err.RetryAfter.Milliseconds(),
	}}
}

func (d ErrorDetail) Domain() *domain.ActionError {
	return &domain.ActionError{
		Kind:       domain.ParseErrorKind(d.Kind),
		Detail:     d.Detail,
		RetryAfter: time.Duration(d.RetryAfterMS) * time.Millisecond,
	}
}

// StatusFor is the HTTP status a server uses for an error kind.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.ErrorKindValidation:
		return http.StatusUnprocessableEntity
	case domain.ErrorKindCooldownActive:
		return http.StatusTooManyRequests
	case domain.ErrorKindInsufficientResource:
		return http.StatusPaymentRequired
	default:
		return http.StatusServiceUnavailable
	}
}

// KindForStatus classifies a failed response that carried no error body.
func KindForStatus(status int) domain.ErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return domain.ErrorKindValidation
	case http.StatusConflict, http.StatusTooManyRequests:
		return domain.ErrorKindCooldownActive
	case http.StatusPaymentRequired:
		return domain.ErrorKindInsufficientResource
	default:
		return domain.ErrorKindTransient
	}
}

func rewardFromDomain(r *domain.Reward) *Reward {
	if r == nil {
		return nil
	}
	return &Reward{Kind: string(r.Kind), Amount: r.Amount}
}

func (r *Reward) toDomain() *domain.Reward {
	if r == nil {
		return nil
	}
	return &domain.Reward{Kind: domain.RewardKind(r.Kind), Amount: r.Amount}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
