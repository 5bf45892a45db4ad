package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"

	"github.com/mna/cassette/lang/scanner"
)

// Tokenize runs the scanner over each named file and prints its token
// stream, one token per line.
func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	toksByFile, err := scanner.ScanFiles(ctx, args...)
	for i, toks := range toksByFile {
		for _, tv := range toks {
			line, col := tv.Value.Pos.LineCol()
			fmt.Fprintf(stdio.Stdout, "%s:%d:%d: %s", args[i], line, col, tv.Token)
			if lit := tv.Token.Literal(tv.Value); lit != "" {
				fmt.Fprintf(stdio.Stdout, " %s", lit)
			}
			fmt.Fprintln(stdio.Stdout)
		}
	}
	if err != nil {
		scanner.PrintError(stdio.Stderr, err)
	}
	return err
}
