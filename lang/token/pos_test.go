package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPosLineCol(t *testing.T) {
	p := MakePos(12, 34)
	l, c := p.LineCol()
	assert.Equal(t, 12, l)
	assert.Equal(t, 34, c)
	assert.False(t, p.Unknown())
}

func TestPosUnknown(t *testing.T) {
	assert.True(t, Pos(0).Unknown())
	assert.True(t, MakePos(0, 3).Unknown())
	assert.True(t, MakePos(3, 0).Unknown())
}

func TestPositionString(t *testing.T) {
	pos := MakePosition("foo.ct", MakePos(1, 5))
	assert.Equal(t, "foo.ct:1:5", pos.String())

	pos = MakePosition("", MakePos(1, 5))
	assert.Equal(t, "1:5", pos.String())
}
