package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestChunksCommand(t *testing.T) {
	path := writeFile(t, "pets.txt", "Page 1 content about cats. Page 2 content about dogs.")

	out, err := run(t, "chunks", path, "--chunk-size", "5", "--overlap", "1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7, out)
	assert.Contains(t, lines[0], "4 chunks")
	assert.Contains(t, lines[2], "INDEX")
	assert.Contains(t, lines[3], "--- Page 1 --- Page")
	assert.Contains(t, lines[6], "about dogs.")
}

func TestChunksCommand_InvalidWindow(t *testing.T) {
	path := writeFile(t, "pets.txt", "a b c d e f")
	_, err := run(t, "chunks", path, "--chunk-size", "3", "--overlap", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid chunk configuration")
}

func TestChunksCommand_MissingFile(t *testing.T) {
	_, err := run(t, "chunks", filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read")
}

func TestAskCommand_RequiresAPIKey(t *testing.T) {
	t.Setenv("PPLX_API_KEY", "")
	require.NoError(t, os.Unsetenv("PPLX_API_KEY"))
	path := writeFile(t, "pets.txt", "cats purr")

	_, err := run(t, "ask", path, "what do cats do?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not configured")
}

func TestAskCommand_ArgCount(t *testing.T) {
	_, err := run(t, "ask", "only-a-file.txt")
	require.Error(t, err)
}
