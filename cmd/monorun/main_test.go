package main

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// lockedBuffer is shared by the logger and the script output streams.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func executeCommand(cmd *cobra.Command, args ...string) (string, error) {
	cmd.SetArgs(args)
	buf := &lockedBuffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	err := cmd.Execute()
	return buf.String(), err
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, contents := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(contents), 0o644))
	}
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)
	return root
}

func sampleProject(t *testing.T) string {
	t.Helper()

	return writeProject(t, map[string]string{
		"monorun.yaml": "name: shop\nsteps:\n  build: {}\n  test:\n    depends_on: [build]\n",
		"srv/lib/monorun.yaml": "steps:\n  build:\n    run: echo building lib\n  test:\n    run: echo testing lib\n",
		"srv/api/monorun.yaml": "steps:\n  build:\n    depends_on: [lib]\n    run: echo building api\n",
	})
}

func TestRootCommandRejectsUnknownLogFormat(t *testing.T) {
	_, err := executeCommand(newRootCmd(), "--log-format", "xml", "list")
	require.Error(t, err)
	require.Contains(t, err.Error(), "log format")
}

func TestVersionCommandOutputsBuildInfo(t *testing.T) {
	originalVersion := version
	originalCommit := commit
	originalDate := date
	t.Cleanup(func() {
		version = originalVersion
		commit = originalCommit
		date = originalDate
	})

	version = "1.2.3"
	commit = "abcdef1"
	date = "2025-10-03"

	output, err := executeCommand(newRootCmd(), "version")
	require.NoError(t, err)
	require.Contains(t, output, "monorun 1.2.3")
	require.Contains(t, output, "abcdef1")
	require.Contains(t, output, "2025-10-03")
}
