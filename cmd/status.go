package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bnema/rigpilot/internal/application"
	"github.com/bnema/rigpilot/internal/domain"
	"github.com/spf13/cobra"
)

func newStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Fetch rigs once and show the projected view",
		Long:  "status fetches the current snapshot, stores it as the local cache and prints every rig projected to now. When the server cannot be reached the cached snapshot is shown instead, marked [stale].",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, app, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the projected view as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, app *app, asJSON bool) error {
	logger, err := app.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	issuedAt := app.clock.Now()
	snapshot, fetchErr := withSpinner(cmd.Context(), cmd.ErrOrStderr(), "Fetching rigs...", asJSON, app.remote.FetchSnapshot)
	if errors.Is(fetchErr, context.Canceled) {
		return fetchErr
	}

	offline := false
	if fetchErr != nil {
		logger.Warn("fetch failed, falling back to cached snapshot", "error", fetchErr)

		cached, err := app.repo.Load(cmd.Context())
		if err != nil {
			if errors.Is(err, domain.ErrSnapshotNotFound) {
				return fmt.Errorf("fetch snapshot: %w (no cached snapshot at %s)", fetchErr, app.repo.Path())
			}
			return errors.Join(fmt.Errorf("fetch snapshot: %w", fetchErr), err)
		}
		snapshot, issuedAt, offline = cached, cached.AsOf, true
	} else if err := app.repo.Save(cmd.Context(), snapshot); err != nil {
		logger.Warn("could not cache snapshot", "path", app.repo.Path(), "error", err)
	}

	session := app.newSession(app.remote, nil, app.clock, logger)
	session.Seed(snapshot, issuedAt)
	view := session.View()

	if asJSON {
		return writeStatusJSON(cmd.OutOrStdout(), view, offline)
	}

	opts := app.renderOptions()
	opts.Offline = offline
	rendered, err := app.renderer(view, opts)
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

type statusJSON struct {
	Now       time.Time       `json:"now"`
	AsOf      time.Time       `json:"as_of"`
	Stale     bool            `json:"stale"`
	Balance   int64           `json:"balance"`
	Automated string          `json:"automation"`
	Rigs      []rigStatusJSON `json:"rigs"`
}

type rigStatusJSON struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Tier          string         `json:"tier"`
	Status        string         `json:"status"`
	Energy        float64        `json:"energy"`
	GiftReady     bool           `json:"gift_ready"`
	NextGiftAt    *time.Time     `json:"next_gift_at,omitempty"`
	ClaimReadyAt  *time.Time     `json:"claim_ready_at,omitempty"`
	NextAction    string         `json:"next_action,omitempty"`
	PendingReward *domain.Reward `json:"pending_reward,omitempty"`
}

func writeStatusJSON(w io.Writer, view application.View, offline bool) error {
	out := statusJSON{
		Now:       view.Now,
		AsOf:      view.AsOf,
		Stale:     offline,
		Balance:   view.Account.Balance,
		Automated: string(view.State),
		Rigs:      make([]rigStatusJSON, 0, len(view.Rigs)),
	}

	for _, rig := range view.Rigs {
		out.Rigs = append(out.Rigs, rigStatusJSON{
			ID:            string(rig.Rig.ID),
			Name:          rig.Rig.DisplayName(),
			Tier:          string(rig.Rig.Tier),
			Status:        string(rig.Rig.Status),
			Energy:        rig.Energy,
			GiftReady:     rig.GiftEligible,
			NextGiftAt:    optionalTime(rig.NextGiftAt),
			ClaimReadyAt:  optionalTime(rig.ClaimReady),
			NextAction:    string(rig.NextAction),
			PendingReward: rig.Rig.PendingReward,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
