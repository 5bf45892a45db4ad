package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupIdent(t *testing.T) {
	assert.Equal(t, LET, LookupIdent("let"))
	assert.Equal(t, MODULE, LookupIdent("module"))
	assert.Equal(t, IDENT, LookupIdent("lettuce"))
	assert.Equal(t, IDENT, LookupIdent("x"))
}

func TestTokenString(t *testing.T) {
	assert.Equal(t, "+", PLUS.String())
	assert.Equal(t, "let", LET.String())
	assert.Equal(t, "'+'", PLUS.GoString())
	assert.Equal(t, "let", LET.GoString())
}

func TestTokenLiteral(t *testing.T) {
	v := Value{Raw: "42"}
	assert.Equal(t, "42", INT.Literal(v))
	assert.Equal(t, "", PLUS.Literal(v))
}
