package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type fetchDoneMsg[T any] struct {
	value T
	err   error
}

// fetchSpinnerModel shows a spinner next to label until the fetch command
// reports back.
type fetchSpinnerModel[T any] struct {
	spinner spinner.Model
	label   string
	fetch   tea.Cmd
	result  fetchDoneMsg[T]
	done    bool
}

func newFetchSpinnerModel[T any](label string, fetch tea.Cmd) fetchSpinnerModel[T] {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return fetchSpinnerModel[T]{
		spinner: s,
		label:   label,
		fetch:   fetch,
	}
}

func (m fetchSpinnerModel[T]) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch)
}

func (m fetchSpinnerModel[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case fetchDoneMsg[T]:
		m.done = true
		m.result = msg
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m fetchSpinnerModel[T]) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

// withSpinner runs fetch while a spinner labelled label animates on output.
// A quiet run skips the spinner entirely.
func withSpinner[T any](ctx context.Context, output io.Writer, label string, quiet bool, fetch func(context.Context) (T, error)) (T, error) {
	if quiet {
		return fetch(ctx)
	}

	fetchCmd := func() tea.Msg {
		value, err := fetch(ctx)
		return fetchDoneMsg[T]{value: value, err: err}
	}

	p := tea.NewProgram(
		newFetchSpinnerModel[T](label, fetchCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	var zero T
	finalModel, err := p.Run()
	if err != nil {
		return zero, err
	}

	result, ok := finalModel.(fetchSpinnerModel[T])
	if !ok {
		return zero, fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.result.value, result.result.err
}
