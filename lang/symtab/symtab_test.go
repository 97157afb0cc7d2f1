package symtab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedLookup(t *testing.T) {
	tab := NewTable()
	tab.DeclareVariable("x", IntegerType, 0)
	tab.PushScope()
	tab.DeclareVariable("y", RealType, 0)
	require.NotNil(t, tab.Lookup("x"))
	require.NotNil(t, tab.Lookup("y"))
	tab.PopScope()
	require.Nil(t, tab.Lookup("y"))
	require.NotNil(t, tab.Lookup("x"))
}

func TestDeclareDuplicateFails(t *testing.T) {
	tab := NewTable()
	require.True(t, tab.Declare("x", &Symbol{Name: "x"}))
	require.False(t, tab.Declare("x", &Symbol{Name: "x"}))
}

func TestEnumType(t *testing.T) {
	tab := NewTable()
	day := tab.DeclareEnumType("Day", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun")
	require.EqualValues(t, 0, day.MinValue)
	require.EqualValues(t, 6, day.MaxValue)
	sun := tab.Lookup("sun")
	require.NotNil(t, sun)
	require.Equal(t, SSCALAR_OBJECT, sun.Kind)
	require.EqualValues(t, 6, sun.Ordinal)
	require.Same(t, day, sun.ParentType)
}

func TestRecordFieldOffsets(t *testing.T) {
	tab := NewTable()
	node := tab.DeclareRecordType("node",
		Field{Name: "flink", Type: RealType}, // stand-in pointer-sized type for the test
		Field{Name: "payload", Type: IntegerType},
	)
	flink := LookupField(node, "flink")
	payload := LookupField(node, "payload")
	require.EqualValues(t, 0, flink.FieldOffset)
	require.EqualValues(t, 4, payload.FieldOffset)
	require.EqualValues(t, 6, node.AllocSize)
}

func TestArrayStride(t *testing.T) {
	tab := NewTable()
	idx1 := tab.DeclareSubrangeType("idx1", IntegerType, 0, 2) // 3 elements
	idx2 := tab.DeclareSubrangeType("idx2", IntegerType, 0, 3) // 4 elements
	arr := tab.DeclareArrayType("matrix", IntegerType, idx1, idx2)
	require.EqualValues(t, 2, IndexTypeAt(arr, 1).Stride) // elem size
	require.EqualValues(t, 8, IndexTypeAt(arr, 0).Stride) // 4 * elemsize
	require.EqualValues(t, 24, arr.AllocSize)             // 3*4*2
}
