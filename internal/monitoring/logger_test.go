package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })
	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := capture(t)

	Logf("processed %d scenes", 3)
	assert.Equal(t, []string{"processed 3 scenes"}, *lines)

	SetLogger(nil)
	Logf("dropped")
	assert.Len(t, *lines, 1, "nil logger must be a no-op")
}

func TestPrefixed(t *testing.T) {
	lines := capture(t)

	logf := Prefixed("jobs")
	logf("job %s queued", "abc")
	assert.Equal(t, []string{"[jobs] job abc queued"}, *lines)

	// Prefixed loggers follow later SetLogger calls.
	SetLogger(nil)
	logf("silent")
	assert.Len(t, *lines, 1)
}

func TestLogf_Default(t *testing.T) {
	assert.NotNil(t, Logf)
	assert.NotPanics(t, func() { Logf("test message: %s", "value") })
}
