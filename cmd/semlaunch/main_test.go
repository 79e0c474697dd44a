package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semlaunch/pkg/types"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "semlaunch dev")
	assert.Contains(t, out.String(), "SQLite Driver:")
}

func TestQueryCommand(t *testing.T) {
	state := t.TempDir()
	t.Setenv("SEMLAUNCH_CONFIG", filepath.Join(state, "missing.yaml"))
	t.Setenv("SEMLAUNCH_DB_PATH", filepath.Join(state, "cache.db"))
	t.Setenv("SEMLAUNCH_INDEX_PATH", filepath.Join(state, "index.db"))
	t.Setenv("SEMLAUNCH_LOG_LEVEL", "error")
	t.Chdir(state)

	cwd, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cwd, "readme.md"), []byte("hi"), 0o644))

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"query", "--cwd", cwd, "--count", "5", "read"})

	require.NoError(t, cmd.Execute())
	line := strings.TrimSpace(out.String())
	assert.Contains(t, line, string(types.SourceStartLikePath))
	assert.Contains(t, line, filepath.Join(cwd, "readme.md"))
}

func TestBuildCommand_RequiresDir(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"build"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
