package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/bnema/rigpilot/internal/adapters/clock"
	"github.com/bnema/rigpilot/internal/adapters/remote/sim"
	"github.com/bnema/rigpilot/internal/application"
	"github.com/bnema/rigpilot/internal/domain"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// simulationStart keeps offline runs reproducible for a given seed.
var simulationStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type simulateOptions struct {
	hours  float64
	rigs   int
	step   time.Duration
	seed   uint64
	listen string
}

func newSimulateCmd(app *app) *cobra.Command {
	opts := simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the automation agent against an offline simulated server",
		Long:  "simulate runs a full session against an in-memory game server on a virtual clock and prints what the agent did. With --listen the simulated server is served over HTTP in real time instead, so run and status can be pointed at it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.listen != "" {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return serveSimulator(ctx, cmd, app, opts)
			}
			return runSimulation(cmd, app, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.hours, "hours", 24, "Virtual hours to simulate")
	cmd.Flags().IntVar(&opts.rigs, "rigs", sim.DefaultConfig().Rigs, "Number of simulated rigs")
	cmd.Flags().DurationVar(&opts.step, "step", time.Second, "Virtual clock step")
	cmd.Flags().Uint64Var(&opts.seed, "seed", sim.DefaultConfig().Seed, "Random seed for the simulated server")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "Serve the simulator over HTTP on this address instead")

	return cmd
}

func (o simulateOptions) validate() error {
	var errs []error
	if o.hours <= 0 {
		errs = append(errs, errors.New("--hours must be positive"))
	}
	if o.rigs <= 0 {
		errs = append(errs, errors.New("--rigs must be positive"))
	}
	if o.step <= 0 {
		errs = append(errs, errors.New("--step must be positive"))
	}
	return errors.Join(errs...)
}

func (o simulateOptions) serverConfig() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.Rigs = o.rigs
	cfg.Seed = o.seed
	return cfg
}

type simulationReport struct {
	succeeded map[domain.ActionKind]int
	failed    map[domain.ErrorKind]int
	granted   map[domain.RewardKind]int64
}

func (r *simulationReport) record(o application.Outcome) {
	if !o.OK() {
		r.failed[o.ErrorKind]++
		return
	}
	r.succeeded[o.Kind]++
	if o.Update != nil && o.Update.Granted != nil {
		r.granted[o.Update.Granted.Kind] += o.Update.Granted.Amount
	}
}

func runSimulation(cmd *cobra.Command, app *app, opts simulateOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}

	logger, err := app.logger(io.Discard)
	if err != nil {
		return err
	}

	clk := clock.NewManual(simulationStart)
	server := sim.NewServer(clk, app.catalog, opts.serverConfig())
	session := app.newSession(server, nil, clk, logger)

	report := &simulationReport{
		succeeded: map[domain.ActionKind]int{},
		failed:    map[domain.ErrorKind]int{},
		granted:   map[domain.RewardKind]int64{},
	}
	session.Agent.OnOutcome(report.record)

	ctx := cmd.Context()
	session.Loop.Post(func() { session.Start(ctx) })
	session.Loop.Settle()

	startBalance := opts.serverConfig().StartBalance
	end := simulationStart.Add(time.Duration(opts.hours * float64(time.Hour)))
	for clk.Now().Before(end) {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := opts.step
		if remaining := end.Sub(clk.Now()); remaining < step {
			step = remaining
		}
		clk.Advance(step)
		session.Loop.Settle()
	}

	view := session.View()
	if err := session.Stop(ctx); err != nil {
		return err
	}

	return writeSimulationReport(cmd.OutOrStdout(), opts, report, server.Stats(), startBalance, view)
}

func writeSimulationReport(w io.Writer, opts simulateOptions, report *simulationReport, stats sim.Stats, startBalance int64, view application.View) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "simulated:\t%s over %d rigs (seed %d)\n", simulatedSpan(opts.hours), opts.rigs, opts.seed)
	fmt.Fprintf(tw, "polls:\t%s\n", humanize.Comma(int64(stats.Fetches)))
	fmt.Fprintf(tw, "balance:\t%s -> %s\n", humanize.Comma(startBalance), humanize.Comma(view.Account.Balance))
	fmt.Fprintf(tw, "automation:\t%s\n", view.State)

	total := 0
	for _, kind := range domain.ActionKinds {
		total += report.succeeded[kind]
	}
	fmt.Fprintf(tw, "dispatches:\t%d succeeded\n", total)
	for _, kind := range domain.ActionKinds {
		if n := report.succeeded[kind]; n > 0 {
			fmt.Fprintf(tw, "  %s\t%d\n", kind.Label(), n)
		}
	}

	failures := make([]string, 0, len(report.failed))
	for kind := range report.failed {
		failures = append(failures, string(kind))
	}
	sort.Strings(failures)
	for _, kind := range failures {
		fmt.Fprintf(tw, "  failed %s\t%d\n", kind, report.failed[domain.ErrorKind(kind)])
	}

	for _, kind := range []domain.RewardKind{domain.RewardKindCoins, domain.RewardKindMaterial, domain.RewardKindKey} {
		if amount := report.granted[kind]; amount > 0 {
			fmt.Fprintf(tw, "granted %s:\t%s\n", kind, humanize.Comma(amount))
		}
	}

	for _, rig := range view.Rigs {
		fmt.Fprintf(tw, "  %s\t%s\t%.0f%%\n", rig.Rig.DisplayName(), rig.Rig.Status, rig.Energy)
	}

	return tw.Flush()
}

func simulatedSpan(hours float64) string {
	d := time.Duration(hours * float64(time.Hour))
	return d.String()
}

func serveSimulator(ctx context.Context, cmd *cobra.Command, app *app, opts simulateOptions) error {
	if opts.rigs <= 0 {
		return errors.New("--rigs must be positive")
	}

	logger, err := app.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	cfg := opts.serverConfig()
	cfg.Token = app.cfg.API.Token
	server := sim.NewServer(app.clock, app.catalog, cfg)

	listener, err := net.Listen("tcp", opts.listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", opts.listen, err)
	}

	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("simulator listening", slog.String("addr", listener.Addr().String()), slog.Int("rigs", cfg.Rigs))
	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve simulator: %w", err)
	}
	return nil
}
