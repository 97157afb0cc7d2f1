package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	for k := Kind(0); k < maxKind; k++ {
		assert.NotEmpty(t, k.String(), "kind %d", k)
	}
	assert.Contains(t, ILLEGAL.String(), "illegal")
}

func TestLookupIdent(t *testing.T) {
	require.Equal(t, BEGIN, LookupIdent("begin"))
	require.Equal(t, DIV, LookupIdent("div"))
	require.Equal(t, IDENT, LookupIdent("beginx"))
	require.Equal(t, IDENT, LookupIdent("node"))
}

func TestOperatorClassification(t *testing.T) {
	assert.True(t, IN.IsRelOp())
	assert.True(t, EQ.IsRelOp())
	assert.False(t, PLUS.IsRelOp())

	assert.True(t, PLUS.IsAddOp())
	assert.True(t, XOR.IsAddOp())
	assert.True(t, DIAMONDAND.IsAddOp())
	assert.False(t, STAR.IsAddOp())

	assert.True(t, STAR.IsMulOp())
	assert.True(t, DIV.IsMulOp())
	assert.True(t, SHL.IsMulOp())
	assert.False(t, PLUS.IsMulOp())
}

func TestRealValRoundtrip(t *testing.T) {
	bits := uint64(0x3ff8000000000000) // 1.5 as float64 bits
	halves := RealValFromBits(bits)
	require.Equal(t, bits, RealValToBits(halves))
}
