package msg

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldOut, oldNoColor := Out, color.NoColor
	Out, color.NoColor = &buf, true
	t.Cleanup(func() { Out, color.NoColor = oldOut, oldNoColor })
	return &buf
}

func TestTaggedMessages(t *testing.T) {
	buf := captureOutput(t)

	Info("built %d objects", 3)
	Warn("target %q is not available", "profile")
	Error("oops")

	assert.Equal(t, "info: built 3 objects\nwarn: target \"profile\" is not available\nerror: oops\n", buf.String())
}

func TestFatalExits(t *testing.T) {
	buf := captureOutput(t)
	code := -1
	oldExit := exit
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = oldExit })

	Fatal("no source file for %s", "build/main.o")

	assert.Equal(t, 1, code)
	assert.Equal(t, "fatal: no source file for build/main.o\n", buf.String())
}

func TestCommandOnlyWhenVerbose(t *testing.T) {
	buf := captureOutput(t)
	t.Cleanup(func() { Verbose = false })

	Command([]string{"gcc", "-c", "main.c"})
	assert.Empty(t, buf.String())

	Verbose = true
	Command([]string{"gcc", "-c", "main.c"})
	assert.Equal(t, "gcc -c main.c\n", buf.String())
}

func TestIndentWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &IndentWriter{Indent: "  ", W: &buf}

	_, err := w.Write([]byte("a\nb\n"))
	assert.NoError(t, err)
	assert.Equal(t, "  a\n  b\n", buf.String())
}

func TestProgressBarFinish(t *testing.T) {
	var buf bytes.Buffer
	pb := NewProgressBar("CC", 4, &buf)
	pb.Step(1)
	pb.Step(3)
	pb.Finish()

	out := buf.String()
	assert.Contains(t, out, "CC 4/4")
	assert.True(t, strings.HasSuffix(out, "\n"))
}
