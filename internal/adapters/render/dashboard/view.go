package dashboard

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/rigpilot/internal/application"
	"github.com/bnema/rigpilot/internal/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const barWidth = 24

// lowEnergy is the level under which the bar switches to the warning color.
const lowEnergy = 20.0

type RenderOptions struct {
	StaleAfter time.Duration
	// Selected is the index of the highlighted rig row, or -1 for none.
	Selected int
	// Offline forces the stale marker, used when the view came from disk.
	Offline bool
	// Help appends the key binding line.
	Help bool
}

func renderView(view application.View, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Rig Pilot"),
		s.header.Render(headerLine(view, opts, s)),
	}

	if !view.Loaded {
		lines = append(lines, s.empty.Render("No snapshot available yet."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	if len(view.Rigs) == 0 {
		lines = append(lines, s.empty.Render("No rigs on this account."))
	}

	for i, rig := range view.Rigs {
		lines = append(lines, s.section.Render(renderRig(rig, view.Now, i == opts.Selected, s)))
	}

	if toasts := renderToasts(view.Toasts, s); toasts != "" {
		lines = append(lines, s.section.Render(toasts))
	}

	if opts.Help {
		lines = append(lines, s.help.Render(helpLine))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

const helpLine = "a automation · s sync · ↑/↓ select · f fix · m material · g gift · e energy · c claim · x dismiss · q quit"

func headerLine(view application.View, opts RenderOptions, s styles) string {
	parts := []string{
		fmt.Sprintf("rigs: %d", len(view.Rigs)),
		fmt.Sprintf("balance: %s", humanize.Comma(view.Account.Balance)),
		"automation: " + stateStyle(view.State, s).Render(string(view.State)),
	}

	if view.Account.Boost.ActiveAt(view.Now) {
		multiplier := view.BoostMultiplier
		if multiplier < 1 {
			multiplier = domain.EffectiveMultiplier(view.Account.Boost, 1)
		}
		parts = append(parts, fmt.Sprintf("boost ×%.1f until %s", multiplier, view.Account.Boost.ExpiresAt.Local().Format("15:04")))
	}

	if !view.SyncedAt.IsZero() {
		parts = append(parts, "synced "+humanize.RelTime(view.SyncedAt, view.Now, "ago", "from now"))
	}

	line := strings.Join(parts, "  ")
	snapshot := domain.Snapshot{AsOf: view.AsOf}
	if view.Loaded && (opts.Offline || snapshot.IsStale(view.Now, opts.StaleAfter)) {
		line += " " + s.warning.Render("[stale]")
	}
	if view.SyncErr != nil {
		line += " " + s.warning.Render("[offline]")
	}
	return line
}

func stateStyle(state application.AgentState, s styles) lipgloss.Style {
	if style, ok := s.state[string(state)]; ok {
		return style
	}
	return s.detail
}

func renderRig(rig application.RigView, now time.Time, selected bool, s styles) string {
	title := rigTitle(rig.Rig)
	if selected {
		title = s.selected.Render("> " + title)
	} else {
		title = s.rig.Render("  " + title)
	}

	parts := []string{title}
	if rig.Rig.Status == domain.RigStatusLocked {
		parts = append(parts, s.empty.Render("    locked"))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	parts = append(parts,
		energyLine(rig, s),
		"    "+s.detail.Render(strings.Join(timerParts(rig, now), "  ")),
	)

	if rig.Rig.Status == domain.RigStatusBroken {
		parts = append(parts, "    "+s.warning.Render("broken, needs repair"))
	}
	if reward := rig.Rig.PendingReward; reward != nil {
		parts = append(parts, "    "+s.detail.Render(fmt.Sprintf("pending %s ×%s", reward.Kind, humanize.Comma(reward.Amount))))
	}
	if rig.NextAction != "" {
		parts = append(parts, "    "+s.meta.Render("next: "+rig.NextAction.Label()))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func rigTitle(rig domain.Rig) string {
	if rig.Tier == "" {
		return rig.DisplayName()
	}
	return fmt.Sprintf("%s (%s)", rig.DisplayName(), rig.Tier)
}

func energyLine(rig application.RigView, s styles) string {
	label := s.label.Render("    energy:")
	bar := renderProgressBar(rig.Energy, barWidth, s)
	percent := lipgloss.NewStyle().Foreground(interpolateColor(rig.Energy, 0, 100)).
		Render(fmt.Sprintf("%3.0f%%", clampPercent(rig.Energy)))
	return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", bar, " ", percent)
}

func timerParts(rig application.RigView, now time.Time) []string {
	var parts []string

	switch {
	case rig.NextGiftAt.IsZero():
		parts = append(parts, "gift: n/a")
	case rig.GiftEligible:
		parts = append(parts, "gift: ready")
	default:
		parts = append(parts, "gift "+formatCountdown(rig.NextGiftAt, now))
	}

	if rig.ClaimReady.IsZero() || !rig.ClaimReady.After(now) {
		parts = append(parts, "claim: ready")
	} else {
		parts = append(parts, "claim "+formatCountdown(rig.ClaimReady, now))
	}

	return parts
}

func renderToasts(toasts []application.Toast, s styles) string {
	if len(toasts) == 0 {
		return ""
	}

	lines := make([]string, 0, len(toasts))
	for _, toast := range toasts {
		style, ok := s.toast[toast.Severity]
		if !ok {
			style = s.detail
		}
		if toast.State == application.ToastExiting {
			style = s.exiting
		}
		lines = append(lines, style.Render(fmt.Sprintf("%s %s", severityIcon(toast.Severity), toast.Message)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func severityIcon(severity domain.Severity) string {
	switch severity {
	case domain.SeveritySuccess:
		return "✓"
	case domain.SeverityWarning:
		return "!"
	case domain.SeverityError:
		return "✗"
	default:
		return "·"
	}
}

func renderProgressBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	level := clampPercent(percent)
	filled := int(math.Round(float64(width) * level / 100.0))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	fill := s.barFill
	if level < lowEnergy {
		fill = s.barLow
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		fill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// formatCountdown renders the time until target as "in 2h 05m (14:30)".
func formatCountdown(target, now time.Time) string {
	if now.IsZero() {
		return "at " + target.Format(time.RFC3339)
	}
	if !target.After(now) {
		return "now"
	}

	remaining := target.Sub(now)
	clock := target.Local().Format("15:04")
	if remaining >= 24*time.Hour {
		clock = target.Local().Format("15:04 on 02 Jan")
	}

	return fmt.Sprintf("in %s (%s)", formatRemaining(remaining), clock)
}

func formatRemaining(d time.Duration) string {
	seconds := int64(math.Ceil(d.Seconds()))
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %02ds", seconds/60, seconds%60)
	case seconds < 24*3600:
		return fmt.Sprintf("%dh %02dm", seconds/3600, (seconds%3600)/60)
	default:
		return fmt.Sprintf("%dd %02dh", seconds/86400, (seconds%86400)/3600)
	}
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp, faded at min and bright at max.
	base, target := 240.0, 255.0
	return lipgloss.Color(fmt.Sprintf("%d", int(base+(target-base)*normalized)))
}
