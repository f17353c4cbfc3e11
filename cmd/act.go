package cmd

import (
	"fmt"
	"strings"

	"github.com/bnema/rigpilot/internal/application"
	"github.com/bnema/rigpilot/internal/domain"
	"github.com/spf13/cobra"
)

func newActCmd(app *app) *cobra.Command {
	kinds := make([]string, 0, len(domain.ActionKinds))
	for _, kind := range domain.ActionKinds {
		kinds = append(kinds, string(kind))
	}

	return &cobra.Command{
		Use:       "act <rig-id> <action>",
		Short:     "Perform one action on a rig",
		Long:      "act sends a single interactive action to the server and prints the outcome. Actions: " + strings.Join(kinds, ", ") + ".",
		Args:      cobra.ExactArgs(2),
		ValidArgs: kinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseActionKind(args[1])
			if err != nil {
				return err
			}
			return runAct(cmd, app, domain.RigID(args[0]), kind)
		},
	}
}

func runAct(cmd *cobra.Command, app *app, rigID domain.RigID, kind domain.ActionKind) error {
	logger, err := app.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	session := app.newSession(app.remote, nil, app.clock, logger)

	// A fresh snapshot lets the dispatcher reject unknown rigs locally and
	// name the rig in its message. The action still goes out without one.
	issuedAt := app.clock.Now()
	if snapshot, err := app.remote.FetchSnapshot(cmd.Context()); err == nil {
		session.Seed(snapshot, issuedAt)
	} else {
		logger.Debug("pre-action fetch failed", "error", err)
	}

	var outcome application.Outcome
	session.Loop.Post(func() {
		session.Dispatcher.Perform(application.Request{
			Ctx:    cmd.Context(),
			RigID:  rigID,
			Kind:   kind,
			Origin: domain.OriginInteractive,
			Done:   func(o application.Outcome) { outcome = o },
		})
	})
	session.Loop.Settle()

	if _, err := fmt.Fprintln(cmd.OutOrStdout(), outcome.Message); err != nil {
		return err
	}
	if !outcome.OK() {
		return fmt.Errorf("%s %s: %w", kind, rigID, outcome.Err)
	}

	if session.Cache.Loaded() {
		if err := app.repo.Save(cmd.Context(), session.Cache.Snapshot()); err != nil {
			logger.Warn("could not cache snapshot", "path", app.repo.Path(), "error", err)
		}
	}
	return nil
}
