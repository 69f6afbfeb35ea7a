package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citewise/citewise/internal/syncer"
)

func TestRootCmd_RegistersCommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"index", "sync", "watch", "search", "delete", "status", "version"}
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, names[name], "missing command %s", name)
	}
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"version", "--short"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "dev\n", buf.String())
}

func TestVersionCmd_JSON(t *testing.T) {
	var buf bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"version", "--json"})

	require.NoError(t, root.Execute())

	var info map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Equal(t, "dev", info["version"])
}

// writeTestConfig writes a config using the offline static embedder and
// temporary data/docs directories, and returns its path plus the docs dir.
func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()

	dataDir := t.TempDir()
	docsDir := t.TempDir()

	cfgPath := filepath.Join(t.TempDir(), "citewise.yaml")
	cfg := fmt.Sprintf(`
paths:
  data_dir: %q
  docs_dir: %q
store:
  collection: docs
  dimensions: 64
embeddings:
  provider: static
logging:
  level: error
`, dataDir, docsDir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	return cfgPath, docsDir
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestSyncSearchStatusFlow(t *testing.T) {
	cfgPath, docsDir := writeTestConfig(t)

	lease := filepath.Join(docsDir, "lease.txt")
	require.NoError(t, os.WriteFile(lease,
		[]byte("Termination of this lease requires sixty days written notice to the landlord."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "deposit.md"),
		[]byte("The security deposit equals two months of rent."), 0o644))

	out, err := runCommand(t, "--config", cfgPath, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "+ deposit.md")
	assert.Contains(t, out, "+ lease.txt")

	out, err = runCommand(t, "--config", cfgPath, "search", "termination", "notice")
	require.NoError(t, err)
	assert.Contains(t, out, "lease.txt")

	out, err = runCommand(t, "--config", cfgPath, "status", "--json")
	require.NoError(t, err)
	var status syncer.Status
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, 2, status.GeneralCount)
	assert.Equal(t, []string{"deposit.md", "lease.txt"}, status.Sources)

	out, err = runCommand(t, "--config", cfgPath, "delete", "lease.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 chunks for lease.txt")

	out, err = runCommand(t, "--config", cfgPath, "status", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, []string{"deposit.md"}, status.Sources)
}

func TestIndexCmd_ReportsFailures(t *testing.T) {
	cfgPath, docsDir := writeTestConfig(t)

	good := filepath.Join(docsDir, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("Some lease content."), 0o644))

	out, err := runCommand(t, "--config", cfgPath, "index", good, filepath.Join(docsDir, "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, out, "good.txt: 1 chunks")
	assert.Contains(t, err.Error(), "1 of 2 documents failed")
}

func TestSyncCmd_MissingConfigPath(t *testing.T) {
	_, err := runCommand(t, "--config", "/nonexistent/citewise.yaml", "sync")
	require.Error(t, err)
}
