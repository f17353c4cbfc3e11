package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/rigpilot/internal/domain"
	"github.com/bnema/rigpilot/internal/ports"
	"github.com/dustin/go-humanize"
)

// Request is one remote mutation. Done, when set, receives the outcome on the
// loop. Alive lets the owner of the request discard a late result after it
// was torn down.
type Request struct {
	Ctx    context.Context
	RigID  domain.RigID
	Kind   domain.ActionKind
	Origin domain.Origin
	Done   func(Outcome)
	Alive  func() bool
}

type Outcome struct {
	RigID      domain.RigID
	Kind       domain.ActionKind
	Origin     domain.Origin
	Update     *domain.RigUpdate
	Err        error
	ErrorKind  domain.ErrorKind
	RetryAfter time.Duration
	Message    string
	// Discarded is set when the result arrived after its owner was torn down
	// and was not applied.
	Discarded bool
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

type Dispatcher struct {
	loop     *Loop
	remote   ports.RemoteAPI
	cache    *StateCache
	ledger   *CooldownLedger
	notifier ports.Notifier
	logger   *slog.Logger

	gen    uint64
	closed bool
}

func NewDispatcher(loop *Loop, remote ports.RemoteAPI, cache *StateCache, ledger *CooldownLedger, notifier ports.Notifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		loop:     loop,
		remote:   remote,
		cache:    cache,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
	}
}

// Perform issues req. It must be called on the loop and never blocks.
func (d *Dispatcher) Perform(req Request) {
	if req.Ctx == nil {
		req.Ctx = context.Background()
	}

	if d.closed {
		d.finish(req, Outcome{
			RigID: req.RigID, Kind: req.Kind, Origin: req.Origin,
			Err: errors.New("dispatcher closed"), ErrorKind: domain.ErrorKindTransient, Discarded: true,
		})
		return
	}

	if err := d.precheck(req); err != nil {
		d.settle(req, nil, err)
		return
	}

	gen := d.gen
	remote := d.remote
	d.loop.Go(func() func() {
		update, err := remote.PerformAction(req.Ctx, req.RigID, req.Kind)
		receivedAt := d.loop.Now()

		return func() {
			if d.gen != gen || (req.Alive != nil && !req.Alive()) {
				d.logger.Debug("discarding late action result", "rig", req.RigID, "action", req.Kind, "origin", req.Origin)
				discarded := Outcome{RigID: req.RigID, Kind: req.Kind, Origin: req.Origin, Err: err, Discarded: true}
				if failure := classify(err); failure != nil {
					discarded.ErrorKind = failure.Kind
				}
				d.finish(req, discarded)
				return
			}
			if err == nil {
				update.RigID = req.RigID
				d.applySuccess(&update, receivedAt)
			}
			d.settle(req, &update, err)
		}
	})
}

// PerformAndWait runs an interactive action and blocks for its outcome. It
// must not be called from the loop.
func (d *Dispatcher) PerformAndWait(ctx context.Context, rigID domain.RigID, kind domain.ActionKind) (Outcome, error) {
	result := make(chan Outcome, 1)
	d.loop.Post(func() {
		d.Perform(Request{
			Ctx:    ctx,
			RigID:  rigID,
			Kind:   kind,
			Origin: domain.OriginInteractive,
			Done:   func(o Outcome) { result <- o },
		})
	})

	select {
	case outcome := <-result:
		return outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Close discards every result still in flight.
func (d *Dispatcher) Close() {
	d.closed = true
	d.gen++
}

func (d *Dispatcher) precheck(req Request) error {
	if !req.Kind.Valid() {
		return &domain.ActionError{Kind: domain.ErrorKindValidation, Detail: fmt.Sprintf("%v: %q", domain.ErrUnknownAction, req.Kind)}
	}
	if _, ok := d.cache.Rig(req.RigID); d.cache.Loaded() && !ok {
		return &domain.ActionError{Kind: domain.ErrorKindValidation, Detail: fmt.Sprintf("%v: %s", domain.ErrRigNotFound, req.RigID)}
	}
	return nil
}

func (d *Dispatcher) applySuccess(update *domain.RigUpdate, receivedAt time.Time) {
	if err := d.cache.Apply(*update, receivedAt); err != nil {
		// The rig vanished in a poll while the call was in flight.
		d.logger.Debug("action result for unknown rig", "rig", update.RigID, "error", err)
	}
}

func (d *Dispatcher) settle(req Request, update *domain.RigUpdate, err error) {
	outcome := Outcome{RigID: req.RigID, Kind: req.Kind, Origin: req.Origin}
	name := d.rigName(req.RigID)

	if err == nil {
		outcome.Update = update
		outcome.Message = successMessage(name, req.Kind, update)
		severity := domain.SeveritySuccess
		if req.Origin == domain.OriginAutomated {
			severity = domain.SeverityInfo
			outcome.Message = "Auto-pilot: " + outcome.Message
		}
		d.logger.Info("action succeeded", "rig", req.RigID, "action", req.Kind, "origin", req.Origin)
		d.notify(severity, outcome.Message)
		d.finish(req, outcome)
		return
	}

	failure := classify(err)
	outcome.Err = err
	outcome.ErrorKind = failure.Kind
	outcome.RetryAfter = failure.RetryAfter

	if req.Origin == domain.OriginAutomated {
		d.absorb(req, name, failure)
		d.finish(req, outcome)
		return
	}

	outcome.Message = interactiveFailureMessage(name, req.Kind, failure)
	d.logger.Info("interactive action failed", "rig", req.RigID, "action", req.Kind, "kind", failure.Kind, "error", err)
	severity := domain.SeverityError
	if failure.Kind == domain.ErrorKindCooldownActive {
		severity = domain.SeverityWarning
	}
	d.notify(severity, outcome.Message)
	d.finish(req, outcome)
}

// absorb handles an automated failure locally. At most one low-priority
// notification is emitted per (rig, action) for the whole session.
func (d *Dispatcher) absorb(req Request, name string, failure *domain.ActionError) {
	key := LedgerKey{RigID: req.RigID, Kind: req.Kind}

	switch failure.Kind {
	case domain.ErrorKindValidation:
		d.ledger.Suppress(key)
		d.logger.Warn("automated action rejected, suppressing", "rig", req.RigID, "action", req.Kind, "detail", failure.Detail)
		if d.ledger.MarkNotified(key) {
			d.notify(domain.SeverityWarning, fmt.Sprintf("Auto-pilot stopped trying to %s on %s: %s", req.Kind.Label(), name, detailOr(failure, "request rejected")))
		}
	case domain.ErrorKindCooldownActive:
		d.logger.Debug("automated action on server cooldown", "rig", req.RigID, "action", req.Kind, "retry_after", failure.RetryAfter)
	case domain.ErrorKindInsufficientResource:
		d.logger.Info("automated action lacks resources", "rig", req.RigID, "action", req.Kind, "detail", failure.Detail)
		if d.ledger.MarkNotified(key) {
			d.notify(domain.SeverityInfo, fmt.Sprintf("Auto-pilot cannot afford to %s on %s", req.Kind.Label(), name))
		}
	default:
		d.logger.Warn("automated action failed", "rig", req.RigID, "action", req.Kind, "detail", failure.Detail)
	}
}

func (d *Dispatcher) finish(req Request, outcome Outcome) {
	if req.Done != nil {
		req.Done(outcome)
	}
}

func (d *Dispatcher) notify(severity domain.Severity, message string) {
	if d.notifier == nil || d.closed {
		return
	}
	d.notifier.Notify(severity, message)
}

func (d *Dispatcher) rigName(id domain.RigID) string {
	if rig, ok := d.cache.Rig(id); ok {
		return rig.DisplayName()
	}
	return string(id)
}

// classify maps any error onto the fixed taxonomy. Errors the server did not
// classify are transient.
func classify(err error) *domain.ActionError {
	if err == nil {
		return nil
	}
	var actionErr *domain.ActionError
	if errors.As(err, &actionErr) {
		return actionErr
	}
	return &domain.ActionError{Kind: domain.ErrorKindTransient, Detail: err.Error()}
}

func successMessage(name string, kind domain.ActionKind, update *domain.RigUpdate) string {
	msg := fmt.Sprintf("%s: %s done", name, kind.Label())
	if update != nil && update.Granted != nil && update.Granted.Amount > 0 {
		msg = fmt.Sprintf("%s (+%s %s)", msg, humanize.Comma(update.Granted.Amount), update.Granted.Kind)
	}
	return msg
}

func interactiveFailureMessage(name string, kind domain.ActionKind, failure *domain.ActionError) string {
	switch failure.Kind {
	case domain.ErrorKindValidation:
		return fmt.Sprintf("Cannot %s on %s: %s", kind.Label(), name, detailOr(failure, "request rejected"))
	case domain.ErrorKindCooldownActive:
		if failure.RetryAfter > 0 {
			return fmt.Sprintf("%s on %s is cooling down, ready in %s", kind.Label(), name, FormatWait(failure.RetryAfter))
		}
		return fmt.Sprintf("%s on %s is cooling down", kind.Label(), name)
	case domain.ErrorKindInsufficientResource:
		return fmt.Sprintf("Not enough resources to %s on %s: %s", kind.Label(), name, detailOr(failure, "balance too low"))
	default:
		return fmt.Sprintf("Could not %s on %s, please try again", kind.Label(), name)
	}
}

func detailOr(failure *domain.ActionError, fallback string) string {
	if failure.Detail == "" {
		return fallback
	}
	return failure.Detail
}

// FormatWait renders a remaining wait rounded up to the second, so a user
// told to wait never acts early.
func FormatWait(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	rounded := (d + time.Second - 1) / time.Second * time.Second
	return rounded.String()
}
