package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bnema/rigpilot/internal/application"
	"github.com/bnema/rigpilot/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu        sync.Mutex
	view      application.View
	acts      []domain.ActionKind
	actRigs   []domain.RigID
	toggles   int
	syncs     int
	dismissed int
	toggleErr error
	actErr    error
}

func (f *fakeController) Snapshot(context.Context) (application.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view, nil
}

func (f *fakeController) Act(_ context.Context, rigID domain.RigID, kind domain.ActionKind) (application.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acts = append(f.acts, kind)
	f.actRigs = append(f.actRigs, rigID)
	return application.Outcome{RigID: rigID, Kind: kind}, f.actErr
}

func (f *fakeController) ToggleAutomation(context.Context) (application.AgentState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles++
	if f.toggleErr != nil {
		return application.AgentDisabled, f.toggleErr
	}
	return application.AgentPaused, nil
}

func (f *fakeController) SyncNow() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
}

func (f *fakeController) DismissNewest() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed++
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

// press feeds a key and runs the command it returns, as bubbletea would.
func press(t *testing.T, m LiveModel, s string) (LiveModel, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(key(s))
	var msg tea.Msg
	if cmd != nil {
		msg = cmd()
	}
	return next.(LiveModel), msg
}

func loadedModel(t *testing.T, ctrl *fakeController) LiveModel {
	t.Helper()
	ctrl.view = loadedView()
	m := NewLiveModel(context.Background(), ctrl, nil, RenderOptions{})
	msg := m.fetch()()
	next, _ := m.Update(msg)
	return next.(LiveModel)
}

func TestLiveModelShowsSpinnerUntilLoaded(t *testing.T) {
	m := NewLiveModel(context.Background(), &fakeController{}, nil, RenderOptions{})

	assert.Contains(t, m.View(), "Fetching rigs...")
}

func TestLiveModelRendersFetchedView(t *testing.T) {
	m := loadedModel(t, &fakeController{})

	out := m.View()
	assert.Contains(t, out, "North Shaft")
	assert.Contains(t, out, "> North Shaft")
	assert.Contains(t, out, "q quit")
}

func TestLiveModelSelectionIsClamped(t *testing.T) {
	m := loadedModel(t, &fakeController{})

	m, _ = press(t, m, "up")
	assert.Equal(t, 0, m.selected)

	for i := 0; i < 5; i++ {
		m, _ = press(t, m, "j")
	}
	assert.Equal(t, 2, m.selected)

	m, _ = press(t, m, "k")
	assert.Equal(t, 1, m.selected)
}

func TestLiveModelDispatchesActionsForSelectedRig(t *testing.T) {
	ctrl := &fakeController{}
	m := loadedModel(t, ctrl)

	m, _ = press(t, m, "down")
	_, msg := press(t, m, "f")

	assert.IsType(t, actedMsg{}, msg)
	require.Len(t, ctrl.acts, 1)
	assert.Equal(t, domain.ActionRepair, ctrl.acts[0])
	assert.Equal(t, domain.RigID("rig-02"), ctrl.actRigs[0])
}

func TestLiveModelKeyCommands(t *testing.T) {
	ctrl := &fakeController{}
	m := loadedModel(t, ctrl)

	m, _ = press(t, m, "a")
	m, _ = press(t, m, "s")
	m, _ = press(t, m, "x")
	_, _ = press(t, m, "z")

	assert.Equal(t, 1, ctrl.toggles)
	assert.Equal(t, 1, ctrl.syncs)
	assert.Equal(t, 1, ctrl.dismissed)
	assert.Empty(t, ctrl.acts)
}

func TestLiveModelQuits(t *testing.T) {
	m := loadedModel(t, &fakeController{})

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestLiveModelWaitsForChanges(t *testing.T) {
	changes := make(chan struct{}, 1)
	m := NewLiveModel(context.Background(), &fakeController{}, changes, RenderOptions{})

	changes <- struct{}{}
	assert.IsType(t, changedMsg{}, m.waitForChange()())

	close(changes)
	assert.Nil(t, m.waitForChange()())
}

func TestLiveModelRefusedToggleIsLeftToToast(t *testing.T) {
	ctrl := &fakeController{toggleErr: domain.ErrAutomationUnavailable}
	m := loadedModel(t, ctrl)

	m, msg := press(t, m, "a")
	require.IsType(t, actedMsg{}, msg)
	assert.ErrorIs(t, msg.(actedMsg).err, domain.ErrAutomationUnavailable)

	next, _ := m.Update(msg)
	m = next.(LiveModel)
	assert.Equal(t, 1, ctrl.toggles)
	assert.NoError(t, m.notice)
	assert.NotContains(t, m.View(), "automation is not available")
}

func TestLiveModelShowsCommandFailure(t *testing.T) {
	ctrl := &fakeController{toggleErr: errors.New("loop stopped")}
	m := loadedModel(t, ctrl)

	m, msg := press(t, m, "a")
	next, _ := m.Update(msg)
	m = next.(LiveModel)
	assert.Contains(t, m.View(), "loop stopped")

	ctrl.toggleErr = nil
	m, msg = press(t, m, "a")
	next, _ = m.Update(msg)
	m = next.(LiveModel)
	assert.NotContains(t, m.View(), "loop stopped")
}
