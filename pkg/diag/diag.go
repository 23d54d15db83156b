// Package diag renders source-location-anchored diagnostics the way the
// lexer and assembler report lexical and parse errors. Interpreter fatal
// traps are plain Go errors and do not pass through this package.
package diag

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Span is an immutable reference to a source buffer plus byte offset,
// line, column, and length. Tokens and diagnostics carry one.
type Span struct {
	Path   string
	Source []byte
	Offset int
	Line   int
	Column int
	Length int
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.Path, s.Line, s.Column)
}

// Diagnostic is a single source-anchored report.
type Diagnostic struct {
	Span    Span
	Message string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s", d.Span, d.Message)
}

// Writer renders diagnostics to an io.Writer, one per line, in the form
// "<path>:<line>:<column>: <message>". When the writer is a terminal it
// bolds the location so a human skimming a long run can find the first
// failure quickly; piped output stays plain text.
type Writer struct {
	out   io.Writer
	color bool
}

// NewWriter wraps out. If out is *os.File and refers to a terminal, the
// diagnostic location is colored.
func NewWriter(out io.Writer) *Writer {
	w := &Writer{out: out}
	if f, ok := out.(*os.File); ok {
		w.color = term.IsTerminal(int(f.Fd()))
	}
	return w
}

// Report writes one diagnostic line.
func (w *Writer) Report(d Diagnostic) {
	if w.color {
		fmt.Fprintf(w.out, "\x1b[1;31m%s\x1b[0m: %s\n", d.Span, d.Message)
		return
	}
	fmt.Fprintf(w.out, "%s: %s\n", d.Span, d.Message)
}

// ReportAll writes each diagnostic in order.
func (w *Writer) ReportAll(diags []Diagnostic) {
	for _, d := range diags {
		w.Report(d)
	}
}
