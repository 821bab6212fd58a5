package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `[
  {
    "slug": "khronos-DamagedHelmet",
    "goldens": [
      {"name": "filament", "file": "filament-golden.png"},
      {"name": "three", "file": "three-golden.png"}
    ],
    "dimensions": {"width": 768, "height": 768}
  }
]`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate_Valid(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validConfig)

	out, err := executeCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "1 scenario(s), 2 comparison(s)")
}

func TestValidate_ValidJSON(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validConfig)

	out, err := executeCommand(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.Scenarios)
	assert.Equal(t, 2, resp.Data.Comparisons)
	assert.Len(t, resp.Data.Hash, 64)
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty goldens", `[{"slug":"a","goldens":[],"dimensions":{"width":1,"height":1}}]`, "CONFIG_INVALID"},
		{"duplicate slug", `[
			{"slug":"a","goldens":[{"name":"x","file":"x.png"}],"dimensions":{"width":1,"height":1}},
			{"slug":"a","goldens":[{"name":"x","file":"x.png"}],"dimensions":{"width":1,"height":1}}
		]`, "CONFIG_INVALID"},
		{"unknown field", `[{"slug":"a","goldens":[{"name":"x","file":"x.png"}],"dimensions":{"width":1,"height":1},"extra":1}]`, "CONFIG_INVALID"},
		{"not json", `{{{`, "CONFIG_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)

			out, err := executeCommand(t, "--format", "json", "validate", path)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.want, resp.Error.Code)
		})
	}
}

func TestValidate_MissingFile(t *testing.T) {
	out, err := executeCommand(t, "validate", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}
