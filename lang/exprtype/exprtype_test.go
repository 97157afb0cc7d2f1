package exprtype

import (
	"testing"

	"github.com/mna/pascal/lang/symtab"
	"github.com/stretchr/testify/require"
)

func TestPointerRoundtrip(t *testing.T) {
	p := MakePointer(Integer)
	require.True(t, p.IsPointer())
	require.Equal(t, Integer, p.Base())
	require.Equal(t, "^integer", p.String())
}

func TestResolvePlaceholders(t *testing.T) {
	require.Equal(t, MakePointer(Record), AnyPointer.Resolve(MakePointer(Record)))
	require.Equal(t, Set, EmptySet.Resolve(Set))
	require.Equal(t, Integer, Integer.Resolve(Real)) // not a placeholder, unchanged
}

func TestFromSymbol(t *testing.T) {
	tab := symtab.NewTable()
	day := tab.DeclareEnumType("Day", "Mon", "Tue")
	require.Equal(t, Scalar, FromSymbol(day))

	ptr := tab.DeclarePointerType("pday", day)
	require.Equal(t, MakePointer(Scalar), FromSymbol(ptr))
}
