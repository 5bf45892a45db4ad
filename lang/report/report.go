// Package report implements the terminal error pretty-printer spec.md §7
// mandates: filename, 1-based line/col, message, a source-context window
// with the offending token underlined, and (for runtime errors) a stack
// trace.
package report

import (
	"fmt"
	goscanner "go/scanner"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/sys/unix"
	"golang.org/x/text/width"

	"github.com/mna/cassette/lang/cerr"
	"github.com/mna/cassette/lang/compiler"
	"github.com/mna/cassette/lang/parser"
)

// defaultWidth is used whenever stdout isn't a terminal (piped output, CI
// logs) or the ioctl fails, matching most terminal emulators' fallback.
const defaultWidth = 80

// terminalWidth reports the current terminal width in columns, falling back
// to defaultWidth when stdout isn't a tty (spec.md §7 asks only for a source
// window that fits the terminal - it doesn't mandate a specific fallback).
func terminalWidth() int {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 {
		return defaultWidth
	}
	return int(ws.Col)
}

// contextLines is how many source lines print above and below the offending
// line (spec.md §7 "a window of source context").
const contextLines = 2

var (
	bold    = color.New(color.Bold)
	red     = color.New(color.FgRed, color.Bold)
	faint   = color.New(color.Faint)
	yellow  = color.New(color.FgYellow, color.Bold)
)

// position is the minimal shape report needs out of whatever error kind it
// is given: every pipeline stage's error type (go/scanner.Error,
// parser.PartialParse, compiler.CompileError, cerr.Error) reduces to this.
type position struct {
	Filename string
	Line     int
	Col      int
	Msg      string
}

// Print writes err's user-visible report to w, reading src (the original
// file contents) to build the underlined context window. filename is used
// whenever the error itself carries no filename of its own (cerr.Error's
// positions are PC-only - see the doc comment on Error for why). For an
// error type Print doesn't recognize, it falls back to printing err.Error()
// alone.
func Print(w io.Writer, filename string, src []byte, err error) {
	switch e := err.(type) {
	case goscanner.ErrorList:
		for _, one := range e {
			printOne(w, src, position{Filename: one.Pos.Filename, Line: one.Pos.Line, Col: one.Pos.Column, Msg: one.Msg})
		}
	case *goscanner.Error:
		printOne(w, src, position{Filename: e.Pos.Filename, Line: e.Pos.Line, Col: e.Pos.Column, Msg: e.Msg})
	case *parser.PartialParse:
		Print(w, filename, src, e.Err)
	case *compiler.CompileError:
		line, col := e.Pos.LineCol()
		printOne(w, src, position{Filename: filename, Line: line, Col: col, Msg: e.Msg})
	case *cerr.Error:
		printRuntime(w, filename, src, e)
	default:
		fmt.Fprintln(w, red.Sprint("error:"), err.Error())
	}
}

// printRuntime prints a cerr.Error: since this compiler's chunks never
// populate SourceMap/FileMap yet (lang/asm.Chunk's doc comment explains why
// - Sequence/Stmt carry no token.Pos), there is no way to resolve a runtime
// Frame.PC back to a source line. The trace therefore prints bytecode
// offsets instead of source positions, clearly labeled as such rather than
// silently pretending to have source fidelity it doesn't have.
func printRuntime(w io.Writer, filename string, src []byte, e *cerr.Error) {
	fmt.Fprintf(w, "%s %s: %s\n", red.Sprint("error:"), e.Kind, e.Msg)
	if len(e.Trace) == 0 {
		return
	}
	fmt.Fprintln(w, faint.Sprint("stack trace (bytecode offsets, no source map available):"))
	for i := len(e.Trace) - 1; i >= 0; i-- {
		fmt.Fprintf(w, "  %s pc=%d\n", faint.Sprint("at"), e.Trace[i].PC)
	}
	_ = filename
	_ = src
}

func printOne(w io.Writer, src []byte, p position) {
	loc := p.Filename
	if loc == "" {
		loc = "<input>"
	}
	fmt.Fprintf(w, "%s %s:%d:%d: %s\n", red.Sprint("error:"), bold.Sprint(loc), p.Line, p.Col, p.Msg)
	printContext(w, src, p.Line, p.Col)
}

// printContext prints up to contextLines before and after the 1-based line
// line, with a caret/underline aligned under col using a display-width
// count (golang.org/x/text/width) rather than a byte or rune count, so a
// wide or combining rune in the source doesn't throw off the alignment.
func printContext(w io.Writer, src []byte, line, col int) {
	if line <= 0 {
		return
	}
	lines := strings.Split(string(src), "\n")
	lo := line - contextLines
	if lo < 1 {
		lo = 1
	}
	hi := line + contextLines
	if hi > len(lines) {
		hi = len(lines)
	}
	gutter := digits(hi)
	// "gutter | " plus the caret/underline overhead: truncate the source text
	// itself rather than let a long line wrap and throw off the caret column.
	maxText := terminalWidth() - gutter - 4
	if maxText < 10 {
		maxText = 10
	}
	for n := lo; n <= hi; n++ {
		text := ""
		if n-1 < len(lines) {
			text = lines[n-1]
		}
		marker := "  "
		if n == line {
			marker = yellow.Sprint("> ")
		}
		fmt.Fprintf(w, "%s%s%*d | %s\n", marker, faint.Sprint(""), gutter, n, truncateText(text, maxText))
		if n == line {
			fmt.Fprintf(w, "  %*s | %s\n", gutter, "", red.Sprint(underline(truncateText(text, maxText), col)))
		}
	}
}

// truncateText clips text to max display columns, matching underline's
// East-Asian-width-aware counting so the truncation and the caret agree on
// where a column boundary actually falls.
func truncateText(text string, max int) string {
	var b strings.Builder
	seen := 0
	for _, r := range text {
		w := 1
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w = 2
		}
		if seen+w > max {
			b.WriteString("…")
			return b.String()
		}
		b.WriteRune(r)
		seen += w
	}
	return b.String()
}

// underline returns a string of spaces and carets positioned so the caret
// lands under the col-th display column of text, accounting for wide runes
// (width.LookupRune's East Asian Wide/Fullwidth classes count as 2 columns).
func underline(text string, col int) string {
	var b strings.Builder
	seen := 0
	for _, r := range text {
		if seen >= col-1 {
			break
		}
		w := 1
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w = 2
		}
		b.WriteString(strings.Repeat(" ", w))
		seen++
	}
	b.WriteString("^")
	return b.String()
}

func digits(n int) int {
	d := 1
	for n >= 10 {
		n /= 10
		d++
	}
	return d
}
