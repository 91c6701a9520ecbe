package msg

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	// Out receives every message. Tests swap it for a buffer.
	Out io.Writer = os.Stdout
	// Verbose enables Command echoing.
	Verbose bool
)

var exit = os.Exit

func emit(tag, format string, a ...any) {
	fmt.Fprint(Out, tag)
	fmt.Fprint(Out, ": ")
	fmt.Fprintf(Out, format, a...)
	fmt.Fprint(Out, "\n")
}

func Error(format string, a ...any) {
	emit(color.HiRedString("error"), format, a...)
}

func Warn(format string, a ...any) {
	emit(color.YellowString("warn"), format, a...)
}

// Fatal prints a one-line diagnostic and exits with status 1.
func Fatal(format string, a ...any) {
	emit(color.RedString("fatal"), format, a...)
	exit(1)
}

func Info(format string, a ...any) {
	emit(color.HiGreenString("info"), format, a...)
}

// Action prints a short build step such as "CC src/main.c".
func Action(verb, subject string) {
	fmt.Fprintf(Out, "%s %s\n", color.HiCyanString("%-4s", verb), subject)
}

// Command echoes a full argument vector when Verbose is set.
func Command(argv []string) {
	if !Verbose {
		return
	}
	fmt.Fprintln(Out, color.HiBlackString(strings.Join(argv, " ")))
}

type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	for _, c := range p {
		if !w.didIndent {
			if _, err := w.W.Write([]byte(w.Indent)); err != nil {
				return 0, err
			}
			w.didIndent = true
		}
		if _, err := w.W.Write([]byte{c}); err != nil {
			return 0, err
		}
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	return len(p), nil
}
