package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andyleaver/modulo/internal/schema"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.json")

	p := &schema.Project{SchemaVersion: 6, Name: "demo"}
	require.NoError(t, Save(path, p))

	loaded, issues, err := Load(path)
	require.NoError(t, err)
	require.Empty(t, issues)
	require.Equal(t, "demo", loaded.Name)
}

func TestAutosaver_SkipsUnchangedWrites(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAutosaver(dir)
	require.NoError(t, err)

	p := &schema.Project{SchemaVersion: 6, Name: "demo"}
	wrote, err := a.Maybe(p)
	require.NoError(t, err)
	require.True(t, wrote)

	wrote, err = a.Maybe(p)
	require.NoError(t, err)
	require.False(t, wrote, "identical project must not rewrite autosave")

	current := filepath.Join(dir, "out", "autosave_project.json")
	_, err = os.Stat(current)
	require.NoError(t, err)

	prev := filepath.Join(dir, "out", "autosave_project.prev.json")
	_, err = os.Stat(prev)
	require.True(t, os.IsNotExist(err), "no prior save existed, so prev must not be created yet")

	p.Name = "renamed"
	wrote, err = a.Maybe(p)
	require.NoError(t, err)
	require.True(t, wrote)
	_, err = os.Stat(prev)
	require.NoError(t, err, "second differing save must rotate the previous generation into .prev.json")
}

func TestWriteHealthReport_FormatsEntries(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteHealthReport(dir, []HealthEntry{
		{OK: true},
		{Level: "warn", Area: "audio", Message: "no input device found"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "OK\nwarn:audio:no input device found\n", string(data))
}

func TestInstallCrashHandler_WritesReportAndRepanics(t *testing.T) {
	dir := t.TempDir()

	func() {
		defer func() {
			r := recover()
			require.Equal(t, "boom", r)
		}()
		defer InstallCrashHandler(dir)
		panic("boom")
	}()

	entries, err := os.ReadDir(filepath.Join(dir, "out", "crash_reports"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, "out", "crash_reports", entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(data), "panic: boom")
	require.Contains(t, string(data), "--- traceback ---")
}
