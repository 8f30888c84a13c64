package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/digital-toolbox/internal/fsutil"
	"github.com/banshee-data/digital-toolbox/internal/soundscape"
	"github.com/banshee-data/digital-toolbox/internal/summary"
	tu "github.com/banshee-data/digital-toolbox/internal/testutil"
)

func TestRun_WritesOutputsBesideInput(t *testing.T) {
	tu.MuteLogs(t)
	dir := t.TempDir()
	input := tu.WriteFile(t, dir, "park.csv", tu.SceneCSV)

	out, err := run(fsutil.OSFileSystem{}, options{input: input, fixedMax: soundscape.DefaultFixedMax, html: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "park.png"), out.PNG)
	assert.Equal(t, filepath.Join(dir, "park.json"), out.JSON)
	assert.Equal(t, filepath.Join(dir, "park.html"), out.HTML)

	fsys := fsutil.OSFileSystem{}
	png, err := fsys.ReadFile(out.PNG)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte{0x89, 'P', 'N', 'G'}))

	doc, err := summary.ReadDocument(fsys, out.JSON)
	require.NoError(t, err)
	assert.Equal(t, "park.csv", doc.Filename)
	require.NotNil(t, doc.Coordinates)
	assert.Len(t, doc.Coordinates.Points, 3)
}

func TestRun_OutDirOnMemoryFS(t *testing.T) {
	tu.MuteLogs(t)
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("in/scenes.csv", []byte(tu.SceneCSV), 0o644))

	out, err := run(fsys, options{input: "in/scenes.csv", outDir: "plots", fixedMax: 0.5})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("plots", "scenes.png"), out.PNG)
	assert.Empty(t, out.HTML)
	assert.True(t, fsys.Exists(out.JSON))

	doc, err := summary.ReadDocument(fsys, out.JSON)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Coordinates.ClampedCount)
}

func TestRun_Errors(t *testing.T) {
	tu.MuteLogs(t)
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("plain.csv", []byte(tu.PlainCSV), 0o644))
	require.NoError(t, fsys.WriteFile("scenes.csv", []byte(tu.SceneCSV), 0o644))

	_, err := run(fsys, options{input: "missing.csv", fixedMax: 7})
	assert.Error(t, err)

	_, err = run(fsys, options{input: "plain.csv", fixedMax: 7})
	assert.Error(t, err, "a table without measurement columns cannot be plotted")

	_, err = run(fsys, options{input: "scenes.csv", fixedMax: 0})
	assert.ErrorIs(t, err, soundscape.ErrInvalidConfiguration)
	assert.False(t, fsys.Exists("scenes.png"))
}
