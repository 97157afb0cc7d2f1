package poff

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	w := NewWriter()
	w.AddLineNumber(1)
	w.AddByte(0x01)
	w.AddWord(0x1234)
	off := w.AddROString("hello")
	w.AddRelocation(RelocExternal, "foo", 0)
	w.AddLineNumber(2)
	w.AddByte(0x02)

	data := w.Bytes()
	obj, err := Load(data)
	require.NoError(t, err)
	require.Equal(t, w.Code, obj.Code)
	require.Equal(t, "hello", obj.ROString(off))
	require.Len(t, obj.Relocations, 1)
	require.Equal(t, "foo", obj.Relocations[0].Symbol)
	require.Len(t, obj.Lines, 2)
}

func TestROStringDedup(t *testing.T) {
	w := NewWriter()
	a := w.AddROString("same")
	b := w.AddROString("same")
	require.Equal(t, a, b)
}

func TestLineForOffset(t *testing.T) {
	w := NewWriter()
	w.AddLineNumber(10)
	w.AddByte(0)
	w.AddByte(0)
	w.AddLineNumber(11)
	w.AddByte(0)

	obj, err := Load(w.Bytes())
	require.NoError(t, err)
	require.EqualValues(t, 10, obj.LineForOffset(0))
	require.EqualValues(t, 10, obj.LineForOffset(1))
	require.EqualValues(t, 11, obj.LineForOffset(2))
}

func TestBadMagicRejected(t *testing.T) {
	_, err := Load([]byte("nope"))
	require.Error(t, err)
}
