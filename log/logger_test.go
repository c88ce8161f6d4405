package log

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(os.Stdout)

	SetLevel(Notice)
	defer SetLevel(Notice)

	l := New("logtest")
	l.Debugf("hidden %d", 1)
	l.Noticef("visible %d", 2)

	out := buf.String()
	assert.Contains(t, out, "[logtest]")
	assert.Contains(t, out, "visible 2")
	assert.NotContains(t, out, "hidden 1")

	buf.Reset()
	SetLevel(Debug)
	l.Debugf("now shown")
	assert.Contains(t, buf.String(), "now shown")
}
