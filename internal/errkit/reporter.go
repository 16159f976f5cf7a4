package errkit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Reporter renders a *Error against the source text it came from in the
// Rust/clang caret style the teacher's internal/errors.ErrorReporter uses,
// simplified to line granularity: aspif and smodels directives are one per
// line and carry no column information, so there is no caret to place,
// only the offending line framed by its neighbors.
type Reporter struct {
	filename string
	lines    []string
}

// NewReporter builds a Reporter for the named source over its full text.
func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Report formats err. If err is not an *Error (or doesn't wrap one), it
// falls back to a bare colored message.
func (r *Reporter) Report(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return color.New(color.FgRed, color.Bold).Sprintf("error: %s", err)
	}

	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	levelColor := color.New(color.FgRed, color.Bold).SprintFunc()

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", levelColor(e.Kind.String()), e.Msg)

	if e.Line <= 0 || e.Line > len(r.lines) {
		return b.String()
	}

	width := lineNumberWidth(e.Line)
	indent := strings.Repeat(" ", width)
	fmt.Fprintf(&b, "%s %s %s:%d\n", indent, dim("-->"), r.filename, e.Line)
	fmt.Fprintf(&b, "%s %s\n", indent, dim("│"))
	if e.Line > 1 {
		fmt.Fprintf(&b, "%s %s %s\n", dim(fmt.Sprintf("%*d", width, e.Line-1)), dim("│"), r.lines[e.Line-2])
	}
	fmt.Fprintf(&b, "%s %s %s\n", bold(fmt.Sprintf("%*d", width, e.Line)), dim("│"), r.lines[e.Line-1])
	if e.Line < len(r.lines) {
		fmt.Fprintf(&b, "%s %s %s\n", dim(fmt.Sprintf("%*d", width, e.Line+1)), dim("│"), r.lines[e.Line])
	}
	return b.String()
}

func lineNumberWidth(line int) int {
	w := len(fmt.Sprintf("%d", line))
	if w < 3 {
		return 3
	}
	return w
}
