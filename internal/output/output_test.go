package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_NoColorForBuffers(t *testing.T) {
	w := New(&bytes.Buffer{})
	assert.False(t, w.Color())
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestWriter_Plain(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithColor(&buf, false)

	w.Heading("Plan")
	w.KeyValue("query", "dagis")
	w.List([]string{"dagis", "lekis"})
	w.List(nil)
	w.Successf("imported %d phrases", 3)
	w.Warningf("watch %s", "off")
	w.Errorf("failed")
	w.Status("", "indented")
	w.Code("a\nb")
	w.Line("raw")
	w.Newline()

	assert.Equal(t, "Plan\n"+
		"  query: dagis\n"+
		"  - dagis\n"+
		"  - lekis\n"+
		"  (none)\n"+
		"✓ imported 3 phrases\n"+
		"! watch off\n"+
		"✗ failed\n"+
		"   indented\n"+
		"  a\n"+
		"  b\n"+
		"raw\n"+
		"\n", buf.String())
}

func TestWriter_ColorKeepsText(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithColor(&buf, true)

	w.KeyValue("query", "dagis")
	assert.Contains(t, buf.String(), "query:")
	assert.Contains(t, buf.String(), "dagis")
}
