package scanner

import (
	gotoken "go/token"
	"testing"

	"github.com/mna/cassette/lang/token"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []TokenAndValue {
	t.Helper()
	var s Scanner
	var errs []string
	s.Init("test.ct", []byte(src), func(_ gotoken.Position, msg string) { errs = append(errs, msg) })

	var toks []TokenAndValue
	var v token.Value
	for {
		tok := s.Scan(&v)
		toks = append(toks, TokenAndValue{Token: tok, Value: v})
		if tok == token.EOF {
			break
		}
	}
	require.Empty(t, errs)
	return toks
}

func TestScanArithmetic(t *testing.T) {
	toks := scanAll(t, "1 + 2 * 3")
	kinds := []token.Token{token.INT, token.PLUS, token.INT, token.STAR, token.INT, token.EOF}
	require.Len(t, toks, len(kinds))
	for i, k := range kinds {
		require.Equalf(t, k, toks[i].Token, "token %d", i)
	}
}

func TestScanKeywordsAndIdents(t *testing.T) {
	toks := scanAll(t, "let x = foo")
	require.Equal(t, token.LET, toks[0].Token)
	require.Equal(t, token.IDENT, toks[1].Token)
	require.Equal(t, token.EQ, toks[2].Token)
	require.Equal(t, token.IDENT, toks[3].Token)
}

func TestScanStringEscapes(t *testing.T) {
	toks := scanAll(t, `"a\nb"`)
	require.Equal(t, token.STRING, toks[0].Token)
	require.Equal(t, "a\nb", toks[0].Value.String)
}

func TestScanSymbol(t *testing.T) {
	toks := scanAll(t, ":foo")
	require.Equal(t, token.SYM, toks[0].Token)
	require.Equal(t, "foo", toks[0].Value.String)
}

func TestScanNumbers(t *testing.T) {
	toks := scanAll(t, "0x1F 0b101 1.5")
	require.Equal(t, token.INT, toks[0].Token)
	require.Equal(t, int32(31), toks[0].Value.Int)
	require.Equal(t, token.INT, toks[1].Token)
	require.Equal(t, int32(5), toks[1].Value.Int)
	require.Equal(t, token.FLOAT, toks[2].Token)
	require.Equal(t, 1.5, toks[2].Value.Float)
}

func TestScanNewlineSignificant(t *testing.T) {
	toks := scanAll(t, "a\nb")
	require.Equal(t, token.IDENT, toks[0].Token)
	require.Equal(t, token.NEWLINE, toks[1].Token)
	require.Equal(t, token.IDENT, toks[2].Token)
}
