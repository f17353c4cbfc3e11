package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/bnema/rigpilot/internal/application"
	"github.com/bnema/rigpilot/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshInterval = time.Second

// Controller is the slice of a running session the live dashboard drives.
type Controller interface {
	Snapshot(ctx context.Context) (application.View, error)
	Act(ctx context.Context, rigID domain.RigID, kind domain.ActionKind) (application.Outcome, error)
	ToggleAutomation(ctx context.Context) (application.AgentState, error)
	SyncNow()
	DismissNewest()
}

type (
	tickMsg    time.Time
	changedMsg struct{}
	viewMsg    struct {
		view application.View
		err  error
	}
	// actedMsg reports a command error. Outcomes and refused toggles reach
	// the user as toasts, so only the remaining failures are kept here.
	actedMsg struct{ err error }
)

var actionKeys = map[string]domain.ActionKind{
	"f": domain.ActionRepair,
	"m": domain.ActionCollectMaterial,
	"g": domain.ActionCollectGift,
	"e": domain.ActionRechargeEnergy,
	"c": domain.ActionClaimIncome,
}

// LiveModel is the interactive dashboard. It never touches session state
// directly; every read and command goes through the Controller.
type LiveModel struct {
	ctx      context.Context
	ctrl     Controller
	changes  <-chan struct{}
	opts     RenderOptions
	styles   styles
	spinner  spinner.Model
	view     application.View
	err      error
	notice   error
	selected int
}

// NewLiveModel builds the dashboard. changes should receive a value whenever
// session state changes; it may be nil.
func NewLiveModel(ctx context.Context, ctrl Controller, changes <-chan struct{}, opts RenderOptions) LiveModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	opts.Help = true
	return LiveModel{
		ctx:     ctx,
		ctrl:    ctrl,
		changes: changes,
		opts:    opts,
		styles:  newStyles(),
		spinner: s,
	}
}

func (m LiveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch(), tick(), m.waitForChange())
}

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		return m, tea.Batch(m.fetch(), tick())
	case changedMsg:
		return m, tea.Batch(m.fetch(), m.waitForChange())
	case actedMsg:
		m.notice = nil
		if msg.err != nil && !errors.Is(msg.err, domain.ErrAutomationUnavailable) {
			m.notice = msg.err
		}
		return m, m.fetch()
	case viewMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.view = msg.view
		m.selected = clampSelection(m.selected, len(m.view.Rigs))
		return m, nil
	case spinner.TickMsg:
		if m.view.Loaded {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m LiveModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.selected = clampSelection(m.selected-1, len(m.view.Rigs))
		return m, nil
	case "down", "j":
		m.selected = clampSelection(m.selected+1, len(m.view.Rigs))
		return m, nil
	case "a":
		return m, m.command(func(ctx context.Context) error {
			_, err := m.ctrl.ToggleAutomation(ctx)
			return err
		})
	case "s":
		return m, m.command(func(context.Context) error {
			m.ctrl.SyncNow()
			return nil
		})
	case "x":
		return m, m.command(func(context.Context) error {
			m.ctrl.DismissNewest()
			return nil
		})
	}

	kind, ok := actionKeys[key]
	if !ok || m.selected < 0 || m.selected >= len(m.view.Rigs) {
		return m, nil
	}
	rigID := m.view.Rigs[m.selected].Rig.ID
	return m, m.command(func(ctx context.Context) error {
		_, err := m.ctrl.Act(ctx, rigID, kind)
		return err
	})
}

func (m LiveModel) View() string {
	if m.err != nil && !m.view.Loaded {
		return m.styles.warning.Render("dashboard: "+m.err.Error()) + "\n"
	}
	if !m.view.Loaded {
		return m.spinner.View() + " Fetching rigs...\n"
	}

	opts := m.opts
	opts.Selected = m.selected
	out := renderView(m.view, opts, m.styles) + "\n"
	if m.notice != nil {
		out += m.styles.warning.Render("! "+m.notice.Error()) + "\n"
	}
	return out
}

func (m LiveModel) fetch() tea.Cmd {
	return func() tea.Msg {
		view, err := m.ctrl.Snapshot(m.ctx)
		return viewMsg{view: view, err: err}
	}
}

// command runs fn off the bubbletea goroutine.
func (m LiveModel) command(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actedMsg{err: fn(m.ctx)}
	}
}

func (m LiveModel) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case _, ok := <-m.changes:
			if !ok {
				return nil
			}
			return changedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func clampSelection(selected, count int) int {
	if count == 0 {
		return 0
	}
	if selected < 0 {
		return 0
	}
	if selected >= count {
		return count - 1
	}
	return selected
}

// RunLive runs the dashboard on the terminal until the user quits or ctx is
// canceled.
func RunLive(ctx context.Context, ctrl Controller, changes <-chan struct{}, opts RenderOptions) error {
	p := tea.NewProgram(
		NewLiveModel(ctx, ctrl, changes, opts),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
