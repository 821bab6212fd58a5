package harness

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fidelity/internal/capture"
	"github.com/roach88/fidelity/internal/config"
	"github.com/roach88/fidelity/internal/testutil"
)

func helmetScenario() config.Scenario {
	return config.Scenario{
		Slug: "helmet",
		Goldens: []config.Golden{
			{Name: "filament", File: "filament.png"},
			{Name: "babylon", File: "babylon.png"},
		},
		Dimensions: config.Dimensions{Width: 2, Height: 2},
	}
}

func TestRunner_ComparesEveryGoldenInOrder(t *testing.T) {
	root := t.TempDir()
	candidate := testutil.Solid(2, 2, testutil.Red)
	testutil.WritePNG(t, filepath.Join(root, "helmet", "filament.png"), testutil.Solid(2, 2, testutil.Red), 2, 2)
	testutil.WritePNG(t, filepath.Join(root, "helmet", "babylon.png"), testutil.Solid(2, 2, testutil.Cyan), 2, 2)

	fake := testutil.NewScriptedCapturer().On("helmet", testutil.Shot{Buffer: candidate})
	r := NewRunner(fake, RunnerOptions{BaseURL: "http://localhost:9030/test/fidelity/", GoldensRoot: root})

	result, err := r.Run(context.Background(), helmetScenario())
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.False(t, result.Failed())

	assert.Equal(t, "filament", result.Results[0].Golden.Name)
	assert.Equal(t, 1.0, result.Results[0].Comparison.Analysis.Matching)
	assert.Equal(t, "babylon", result.Results[1].Golden.Name)
	assert.Equal(t, 0.0, result.Results[1].Comparison.Analysis.Matching)
	assert.Equal(t, 1.0, result.Results[1].Comparison.Analysis.AverageDistance)

	reqs := fake.Requests()
	require.Len(t, reqs, 1, "one capture per scenario")
	assert.Equal(t, capture.Request{
		Slug:   "helmet",
		URL:    "http://localhost:9030/test/fidelity/helmet/",
		Width:  2,
		Height: 2,
	}, reqs[0])
}

func TestRunner_GoldenFailuresAreIndependent(t *testing.T) {
	root := t.TempDir()
	scenario := helmetScenario()
	scenario.Goldens = append(scenario.Goldens, config.Golden{Name: "three", File: "three.png"})

	// filament is missing, babylon has the wrong size, three is fine.
	testutil.WritePNG(t, filepath.Join(root, "helmet", "babylon.png"), testutil.Solid(4, 1, testutil.Red), 4, 1)
	testutil.WritePNG(t, filepath.Join(root, "helmet", "three.png"), testutil.Solid(2, 2, testutil.Red), 2, 2)

	fake := testutil.NewScriptedCapturer().On("helmet", testutil.Shot{Buffer: testutil.Solid(2, 2, testutil.Red)})
	r := NewRunner(fake, RunnerOptions{GoldensRoot: root})

	result, err := r.Run(context.Background(), scenario)
	require.NoError(t, err)
	require.Len(t, result.Results, 3)
	assert.True(t, result.Failed())

	missing := result.Results[0]
	assert.False(t, missing.OK())
	assert.Equal(t, CodeGoldenIO, FailureCodeOf(missing.Err))
	assert.Contains(t, missing.Err.Error(), `scenario "helmet", golden "filament"`)

	wrongSize := result.Results[1]
	assert.False(t, wrongSize.OK())
	assert.Equal(t, CodeSizeMismatch, FailureCodeOf(wrongSize.Err))
	assert.Contains(t, wrongSize.Err.Error(), `golden "babylon"`)

	assert.True(t, result.Results[2].OK())
	assert.Equal(t, 1.0, result.Results[2].Comparison.Analysis.Matching)
}

func TestRunner_CaptureTimeoutFailsScenario(t *testing.T) {
	fake := testutil.NewScriptedCapturer().On("helmet", testutil.Shot{Block: true})
	r := NewRunner(fake, RunnerOptions{GoldensRoot: t.TempDir(), CaptureTimeout: 20 * time.Millisecond})

	result, err := r.Run(context.Background(), helmetScenario())
	require.Error(t, err)
	assert.Nil(t, result)

	assert.True(t, IsCaptureTimeout(err))
	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "helmet", f.Slug)
	assert.Empty(t, f.Golden)
	assert.True(t, capture.IsTimeout(err))
}

func TestRunner_CaptureErrorFailsScenario(t *testing.T) {
	fake := testutil.NewScriptedCapturer().On("helmet", testutil.Shot{Err: errors.New("tab crashed")})
	r := NewRunner(fake, RunnerOptions{GoldensRoot: t.TempDir()})

	_, err := r.Run(context.Background(), helmetScenario())
	require.Error(t, err)
	assert.Equal(t, CodeCaptureFailed, FailureCodeOf(err))
	assert.False(t, IsCaptureTimeout(err))
	assert.Contains(t, err.Error(), "tab crashed")
}

func TestRunner_ScenarioURL(t *testing.T) {
	tests := []struct {
		base string
		slug string
		want string
	}{
		{"http://localhost:9030/test/fidelity/", "helmet", "http://localhost:9030/test/fidelity/helmet/"},
		{"http://localhost:9030/test/fidelity", "helmet", "http://localhost:9030/test/fidelity/helmet/"},
		{"http://127.0.0.1:8080", "a b", "http://127.0.0.1:8080/a%20b/"},
		{"", "helmet", ""},
	}

	for _, tt := range tests {
		r := NewRunner(testutil.NewScriptedCapturer(), RunnerOptions{BaseURL: tt.base})
		got, err := r.ScenarioURL(tt.slug)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t, filepath.Join("root", "helmet", "a.png"), GoldenPath("root", "helmet", config.Golden{File: "a.png"}))
	assert.Equal(t, filepath.Join("root", "helmet", "sub", "a.png"), GoldenPath("root", "helmet", config.Golden{File: "sub/a.png"}))

	abs := filepath.Join(t.TempDir(), "a.png")
	assert.Equal(t, abs, GoldenPath("root", "helmet", config.Golden{File: abs}))
}
