package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	catalogyaml "github.com/bnema/rigpilot/internal/adapters/catalog/yaml"
	"github.com/bnema/rigpilot/internal/adapters/render/dashboard"
	"github.com/bnema/rigpilot/internal/application"
	"github.com/bnema/rigpilot/internal/domain"
	"github.com/spf13/cobra"
)

func newRunCmd(app *app) *cobra.Command {
	var headless bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the live dashboard and automation agent",
		Long:  "run keeps the rig view in sync with the server and lets the automation agent act on your behalf. Without a terminal UI (--headless) outcomes are logged instead.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if headless {
				return runHeadless(ctx, cmd, app)
			}
			return runDashboard(ctx, app)
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "Run without the terminal UI and log outcomes")

	return cmd
}

func runHeadless(ctx context.Context, cmd *cobra.Command, app *app) error {
	logger, err := app.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	session := app.newSession(app.remote, app.repo, app.clock, logger)
	session.Agent.OnOutcome(func(o application.Outcome) {
		if o.OK() {
			logger.Info(o.Message, "rig", o.RigID, "action", o.Kind)
			return
		}
		logger.Info("automated action failed", "rig", o.RigID, "action", o.Kind, "kind", o.ErrorKind)
	})
	session.Agent.OnStateChange(func(state application.AgentState) {
		logger.Info("automation state changed", "state", state)
	})

	return runSession(ctx, app, session, logger)
}

func runDashboard(ctx context.Context, app *app) error {
	logFile, err := app.cfg.Log.OpenFile()
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger, err := app.logger(logFile)
	if err != nil {
		return err
	}

	session := app.newSession(app.remote, app.repo, app.clock, logger)

	changes := make(chan struct{}, 1)
	session.OnChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sessionErr := make(chan error, 1)
	go func() {
		sessionErr <- runSession(ctx, app, session, logger)
	}()

	uiErr := dashboard.RunLive(ctx, session, changes, app.renderOptions())
	cancel()
	return errors.Join(uiErr, <-sessionErr)
}

// runSession drives session until ctx is done, hot-reloading the tier
// catalog when one is configured.
func runSession(ctx context.Context, app *app, session *application.Session, logger *slog.Logger) error {
	if app.cfg.Catalog != "" {
		watcher, err := catalogyaml.Watch(ctx, app.cfg.Catalog, func(catalog domain.Catalog) {
			session.Loop.Post(func() { session.SetCatalog(catalog) })
		}, logger.With("component", "catalog"))
		if err != nil {
			logger.Warn("catalog hot reload disabled", "path", app.cfg.Catalog, "error", err)
		} else {
			defer watcher.Close()
		}
	}

	logger.Info("session starting", "api", app.cfg.API.BaseURL, "cache", app.repo.Path())
	if err := session.Run(ctx); err != nil {
		return fmt.Errorf("run session: %w", err)
	}
	logger.Info("session stopped")
	return nil
}
