package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fidelity/internal/testutil"
)

// recordTwoRuns records a passing run "first-0001" followed by a run
// "second-0001" whose slow scenario times out.
func recordTwoRuns(t *testing.T) string {
	t.Helper()
	dir, configPath := fixtureDir(t)
	db := filepath.Join(dir, "history.db")

	first, cmd, _ := newTestRun(t, "text")
	first.Capturer = testutil.NewScriptedCapturer().
		On("helmet", testutil.Shot{Buffer: testutil.Solid(2, 2, testutil.Red)}).
		On("slow", testutil.Shot{Buffer: testutil.Solid(2, 2, testutil.Red)})
	first.BaseURL = "http://localhost:9030/"
	first.History = db
	first.IDGenerator = testutil.NewSequentialIDs("first")
	require.NoError(t, runFidelity(first, configPath, cmd))

	second, cmd, _ := newTestRun(t, "text")
	second.Capturer = testutil.NewScriptedCapturer().
		On("helmet", testutil.Shot{Buffer: testutil.Solid(2, 2, testutil.Cyan)}).
		On("slow", testutil.Shot{Block: true})
	second.BaseURL = "http://localhost:9030/"
	second.History = db
	second.IDGenerator = testutil.NewSequentialIDs("second")
	require.Error(t, runFidelity(second, configPath, cmd))

	return db
}

func TestHistory_ListRuns(t *testing.T) {
	db := recordTwoRuns(t)

	out, err := executeCommand(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "first-0001")
	assert.Contains(t, out, "second-0001")
}

func TestHistory_ListRunsJSON(t *testing.T) {
	db := recordTwoRuns(t)

	out, err := executeCommand(t, "--format", "json", "history", "--db", db, "--limit", "1")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   []struct {
			ID     string `json:"id"`
			Passed int    `json:"passed"`
			Failed int    `json:"failed"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "second-0001", resp.Data[0].ID)
	assert.Equal(t, 1, resp.Data[0].Passed)
	assert.Equal(t, 1, resp.Data[0].Failed)
}

func TestHistory_RunDetail(t *testing.T) {
	db := recordTwoRuns(t)

	out, err := executeCommand(t, "history", "--db", db, "second-0001")
	require.NoError(t, err)
	assert.Contains(t, out, "helmet")
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "CAPTURE_TIMEOUT")
}

func TestHistory_UnknownRun(t *testing.T) {
	db := recordTwoRuns(t)

	out, err := executeCommand(t, "history", "--db", db, "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestHistory_Scenario(t *testing.T) {
	db := recordTwoRuns(t)

	out, err := executeCommand(t, "history", "--db", db, "--scenario", "slow")
	require.NoError(t, err)
	assert.Contains(t, out, "first-0001")
	assert.Contains(t, out, "second-0001")
	assert.NotContains(t, out, "helmet")

	out, err = executeCommand(t, "history", "--db", db, "--scenario", "absent")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded for scenario absent.")
}

func TestHistory_MissingDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing.db")

	out, err := executeCommand(t, "history", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
	assert.NoFileExists(t, db)
}

func TestHistory_RequiresDatabase(t *testing.T) {
	_, err := executeCommand(t, "history")
	require.Error(t, err)
}
