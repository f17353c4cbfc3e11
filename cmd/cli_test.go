package cmd

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	catalogyaml "github.com/bnema/rigpilot/internal/adapters/catalog/yaml"
	"github.com/bnema/rigpilot/internal/adapters/remote/sim"
	"github.com/bnema/rigpilot/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionPrintsBuildVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestStatusRendersProjectedRigsAndCachesSnapshot(t *testing.T) {
	home := t.TempDir()
	startSimServer(t)

	stdout, _, err := executeCLI(t, home, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Rig Pilot")
	assert.Contains(t, stdout, "rigs: 6")
	assert.Contains(t, stdout, "balance: 5,000")
	assert.Contains(t, stdout, "automation: active")
	assert.Contains(t, stdout, "Alpha (basic)")
	assert.Contains(t, stdout, "Foxtrot")
	assert.NotContains(t, stdout, "[stale]")

	_, err = os.Stat(filepath.Join(home, ".rigpilot", "snapshot.toml"))
	assert.NoError(t, err)
}

func TestStatusJSONOutput(t *testing.T) {
	home := t.TempDir()
	startSimServer(t)

	stdout, _, err := executeCLI(t, home, "status", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "\"balance\": 5000")
	assert.Contains(t, stdout, "\"id\": \"rig-01\"")
	assert.Contains(t, stdout, "\"stale\": false")
}

func TestStatusFallsBackToCachedSnapshotWhenOffline(t *testing.T) {
	home := t.TempDir()
	server := startSimServer(t)

	_, _, err := executeCLI(t, home, "status")
	require.NoError(t, err)

	server.Close()

	stdout, _, err := executeCLI(t, home, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Alpha (basic)")
	assert.Contains(t, stdout, "[stale]")

	stdout, _, err = executeCLI(t, home, "status", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, "\"stale\": true")
}

func TestStatusFailsWithoutServerOrCache(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close()
	t.Setenv("RIGPILOT_API_BASE_URL", server.URL)

	_, _, err := executeCLI(t, t.TempDir(), "status", "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cached snapshot")
}

func TestActClaimsIncomeThenHitsCooldown(t *testing.T) {
	home := t.TempDir()
	startSimServer(t)

	stdout, _, err := executeCLI(t, home, "act", "rig-01", "claim-income")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Alpha: claim income done")

	stdout, _, err = executeCLI(t, home, "act", "rig-01", "claim-income")
	require.Error(t, err)
	assert.Contains(t, stdout, "claim income on Alpha is cooling down, ready in")
}

func TestActRejectsUnknownRigLocally(t *testing.T) {
	home := t.TempDir()
	startSimServer(t)

	stdout, _, err := executeCLI(t, home, "act", "rig-99", "claim-income")
	require.Error(t, err)
	assert.Contains(t, stdout, "Cannot claim income on rig-99")
	assert.Contains(t, stdout, "rig not found")
}

func TestActRejectsUnknownAction(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "act", "rig-01", "dance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")
}

func TestActRequiresTwoArguments(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "act", "rig-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
}

func TestSimulatePrintsSummary(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "simulate", "--hours", "3", "--rigs", "3", "--step", "5s")
	require.NoError(t, err)
	assert.Contains(t, stdout, "simulated:")
	assert.Contains(t, stdout, "3h0m0s over 3 rigs (seed 1)")
	assert.Contains(t, stdout, "polls:")
	assert.Contains(t, stdout, "automation:")
	assert.Contains(t, stdout, "dispatches:")
	assert.Contains(t, stdout, "claim income")
	assert.Contains(t, stdout, "Charlie")
}

func TestSimulateIsDeterministicForSeed(t *testing.T) {
	first, _, err := executeCLI(t, t.TempDir(), "simulate", "--hours", "2", "--rigs", "2", "--step", "10s", "--seed", "7")
	require.NoError(t, err)

	second, _, err := executeCLI(t, t.TempDir(), "simulate", "--hours", "2", "--rigs", "2", "--step", "10s", "--seed", "7")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSimulateValidatesFlags(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "simulate", "--hours", "0", "--step", "-1s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--hours must be positive")
	assert.Contains(t, err.Error(), "--step must be positive")
}

func TestInvalidConfigFailsEveryCommand(t *testing.T) {
	t.Setenv("RIGPILOT_LOG_FORMAT", "xml")

	_, _, err := executeCLI(t, t.TempDir(), "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestUnknownCommandIsRejected(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "usage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command \"usage\"")
}

// startSimServer serves a fresh simulator and points the CLI at it.
func startSimServer(t *testing.T) *httptest.Server {
	t.Helper()

	catalog, err := catalogyaml.Default()
	require.NoError(t, err)

	cfg := sim.DefaultConfig()
	cfg.MeanTimeToFailure = 0
	server := httptest.NewServer(sim.NewServer(ports.SystemClock{}, catalog, cfg).Handler())
	t.Cleanup(server.Close)

	t.Setenv("RIGPILOT_API_BASE_URL", server.URL)
	return server
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
