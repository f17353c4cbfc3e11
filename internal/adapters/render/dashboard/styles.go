package dashboard

import (
	"github.com/bnema/rigpilot/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	rig        lipgloss.Style
	selected   lipgloss.Style
	detail     lipgloss.Style
	warning    lipgloss.Style
	section    lipgloss.Style
	empty      lipgloss.Style
	label      lipgloss.Style
	meta       lipgloss.Style
	barBracket lipgloss.Style
	barFill    lipgloss.Style
	barLow     lipgloss.Style
	barEmpty   lipgloss.Style
	help       lipgloss.Style
	toast      map[domain.Severity]lipgloss.Style
	exiting    lipgloss.Style
	state      map[string]lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:      lipgloss.NewStyle().Bold(true),
		header:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		rig:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		selected:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")),
		detail:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:    lipgloss.NewStyle().MarginTop(1),
		empty:      lipgloss.NewStyle().Faint(true),
		label:      lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		meta:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		barBracket: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barFill:    lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		barLow:     lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		barEmpty:   lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		help:       lipgloss.NewStyle().Faint(true).MarginTop(1),
		toast: map[domain.Severity]lipgloss.Style{
			domain.SeverityInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
			domain.SeveritySuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
			domain.SeverityWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("221")),
			domain.SeverityError:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		},
		exiting: lipgloss.NewStyle().Faint(true),
		state: map[string]lipgloss.Style{
			"active":   lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
			"paused":   lipgloss.NewStyle().Foreground(lipgloss.Color("221")),
			"disabled": lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		},
	}
}
