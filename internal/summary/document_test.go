package summary

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/digital-toolbox/internal/fsutil"
	"github.com/banshee-data/digital-toolbox/internal/soundscape"
)

func TestWriteAndReadDocument(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	tbl := mustTable(t, "scene,level\nS1,3\nS2,5\n")
	at := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)

	doc := NewDocument("abc_survey.csv", tbl, at)
	doc.Coordinates = &soundscape.Result{
		FixedMax: 7,
		RawP:     []float64{2},
		RawE:     []float64{1},
		NormP:    []float64{2.0 / 7},
		NormE:    []float64{1.0 / 7},
		Points: []soundscape.ScenePoint{{
			SceneID:    "S1",
			Raw:        soundscape.Coordinate{P: 2, E: 1},
			Normalized: soundscape.Coordinate{P: 2.0 / 7, E: 1.0 / 7},
		}},
	}

	path := "/results/abc_survey.csv.json"
	require.NoError(t, WriteJSON(mfs, path, doc))
	assert.False(t, mfs.Exists(path+".tmp"))

	got, err := ReadDocument(mfs, path)
	require.NoError(t, err)

	if diff := cmp.Diff(doc, got); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, got.Rows)
	assert.Equal(t, 4.0, *got.Summary["level"].Mean)
}

func TestReadDocument_Errors(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	_, err := ReadDocument(mfs, "/missing.json")
	assert.Error(t, err)

	require.NoError(t, mfs.WriteFile("/bad.json", []byte("{"), 0o644))
	_, err = ReadDocument(mfs, "/bad.json")
	assert.ErrorContains(t, err, "decode bad.json")
}
