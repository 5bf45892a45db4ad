package report_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/cassette/lang/cerr"
	"github.com/mna/cassette/lang/compiler"
	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/parser"
	"github.com/mna/cassette/lang/primitive"
	"github.com/mna/cassette/lang/report"
)

func TestPrintScannerError(t *testing.T) {
	src := []byte("let x = @\n")
	h := heap.New()
	_, err := parser.Parse(h, "bad.ct", src)
	require.Error(t, err)

	var buf bytes.Buffer
	report.Print(&buf, "bad.ct", src, err)

	out := buf.String()
	assert.Contains(t, out, "bad.ct")
}

func TestPrintCompileError(t *testing.T) {
	src := []byte("undefined_name\n")
	h := heap.New()
	node, err := parser.Parse(h, "undef.ct", src)
	require.NoError(t, err)
	_, err = compiler.Compile(h, node, primitive.Names(), nil)
	require.Error(t, err)

	var buf bytes.Buffer
	report.Print(&buf, "undef.ct", src, err)

	out := buf.String()
	assert.Contains(t, out, "undef.ct")
	assert.Contains(t, out, "1:")
}

func TestPrintRuntimeErrorShowsBytecodeTrace(t *testing.T) {
	rerr := cerr.New(cerr.ArithmeticError, "division by zero")
	rerr.Trace = []cerr.Frame{{PC: 12}, {PC: 34}}

	var buf bytes.Buffer
	report.Print(&buf, "run.ct", nil, rerr)

	out := buf.String()
	assert.Contains(t, out, "division by zero")
	assert.Contains(t, out, "pc=12")
	assert.Contains(t, out, "pc=34")
}

func TestPrintUnrecognizedErrorFallsBackToErrorString(t *testing.T) {
	var buf bytes.Buffer
	report.Print(&buf, "x.ct", nil, assertionError("boom"))
	assert.Contains(t, buf.String(), "boom")
}

type assertionError string

func (e assertionError) Error() string { return string(e) }
