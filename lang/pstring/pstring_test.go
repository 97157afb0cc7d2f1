package pstring

import (
	"testing"

	"github.com/mna/pascal/lang/heap"
	"github.com/stretchr/testify/require"
)

// fakeRuntime implements Runtime over a single flat buffer, with a small
// bump allocator standing in for the string stack and a real heap.Heap
// for heap-backed buffers — enough to exercise pstring's contract without
// needing the full virtual machine built yet.
type fakeRuntime struct {
	mem    []byte
	bump   uint32
	bumpTo uint32
	hp     *heap.Heap
}

func newFakeRuntime() *fakeRuntime {
	mem := make([]byte, 2048)
	return &fakeRuntime{
		mem:    mem,
		bump:   0,
		bumpTo: 1024,
		hp:     heap.New(mem[1024:]),
	}
}

func (f *fakeRuntime) Bytes() []byte { return f.mem }

func (f *fakeRuntime) AllocStringStack(size uint16) (uint32, error) {
	addr := f.bump
	f.bump += uint32(size)
	if f.bump > f.bumpTo {
		return 0, heap.ErrNoMemory
	}
	return addr, nil
}

func (f *fakeRuntime) Heap() *heap.Heap { return f.hp }

func mustInit(t *testing.T, rt *fakeRuntime, addr uint32, cap uint16) {
	t.Helper()
	require.NoError(t, Init(rt, addr, cap))
}

func TestAssignAndCompare(t *testing.T) {
	rt := newFakeRuntime()
	mustInit(t, rt, 0, 20)
	mustInit(t, rt, 100, 20)

	AssignLiteral(rt, 0, "hello")
	AssignLiteral(rt, 100, "hello")
	require.Equal(t, 0, Compare(rt.Bytes(), 0, 100))

	AssignLiteral(rt, 100, "world")
	require.Equal(t, -1, Compare(rt.Bytes(), 0, 100))
}

func TestConcatTruncatesAtCapacity(t *testing.T) {
	rt := newFakeRuntime()
	mustInit(t, rt, 0, 8)
	mustInit(t, rt, 100, 8)
	AssignLiteral(rt, 0, "abcd")
	AssignLiteral(rt, 100, "xyz")
	Concat(rt, 0, 100)
	h := ReadHeader(rt.Bytes(), 0)
	require.EqualValues(t, 7, h.Size)
}

func TestPos(t *testing.T) {
	rt := newFakeRuntime()
	mustInit(t, rt, 0, 20)
	mustInit(t, rt, 100, 20)
	AssignLiteral(rt, 0, "hello world")
	AssignLiteral(rt, 100, "wor")
	require.Equal(t, 7, Pos(rt.Bytes(), 100, 0))
}

func TestPosEmptyNeedleMatchesStrstr(t *testing.T) {
	rt := newFakeRuntime()
	mustInit(t, rt, 0, 20)
	mustInit(t, rt, 100, 20)
	AssignLiteral(rt, 0, "hello world")
	AssignLiteral(rt, 100, "")
	require.Equal(t, 1, Pos(rt.Bytes(), 100, 0))
}

func TestInsertAndDelete(t *testing.T) {
	rt := newFakeRuntime()
	mustInit(t, rt, 0, 20)
	mustInit(t, rt, 100, 20)
	AssignLiteral(rt, 0, "helloworld")
	AssignLiteral(rt, 100, " ")
	Insert(rt, 100, 0, 6)
	require.Equal(t, "hello world", stringOf(rt, 0))

	Delete(rt, 0, 6, 1)
	require.Equal(t, "helloworld", stringOf(rt, 0))
}

func TestCopyStandardFunction(t *testing.T) {
	rt := newFakeRuntime()
	mustInit(t, rt, 0, 20)
	mustInit(t, rt, 100, 20)
	AssignLiteral(rt, 0, "helloworld")
	Copy(rt, 100, 0, 3, 4)
	require.Equal(t, "llow", stringOf(rt, 100))
}

func TestNumToStrAndBack(t *testing.T) {
	rt := newFakeRuntime()
	mustInit(t, rt, 0, 20)
	NumToStr(rt, 0, -4215)
	require.Equal(t, "-4215", stringOf(rt, 0))
	v, errIndex, ok := StrToNum(rt.Bytes(), 0)
	require.True(t, ok)
	require.Zero(t, errIndex)
	require.EqualValues(t, -4215, v)
}

func TestStrToNumReportsOffendingIndex(t *testing.T) {
	rt := newFakeRuntime()
	mustInit(t, rt, 0, 20)
	AssignLiteral(rt, 0, "12x4")
	v, errIndex, ok := StrToNum(rt.Bytes(), 0)
	require.False(t, ok)
	require.Zero(t, v)
	require.Equal(t, 3, errIndex)
}

func TestStrDupIsIndependentStorage(t *testing.T) {
	rt := newFakeRuntime()
	mustInit(t, rt, 0, 20)
	AssignLiteral(rt, 0, "hello")
	require.NoError(t, StrDup(rt, 100, 0))
	require.Equal(t, 0, Compare(rt.Bytes(), 0, 100))

	// mutating the duplicate must not be observed through the original,
	// and vice versa — independent storage, not a shared buffer.
	AssignLiteral(rt, 100, "world")
	require.NotEqual(t, 0, Compare(rt.Bytes(), 0, 100))
	require.Equal(t, "hello", stringOf(rt, 0))
	require.NoError(t, FreeHeapString(rt, 100))
}

func TestFillChar(t *testing.T) {
	rt := newFakeRuntime()
	mustInit(t, rt, 0, 8)
	h := ReadHeader(rt.Bytes(), 0)
	FillChar(rt, h.Data, 8, 'x')
	require.Equal(t, "xxxxxxxx", string(rt.Bytes()[h.Data:h.Data+8]))
}

func TestAllocHeapStringRoundtrip(t *testing.T) {
	rt := newFakeRuntime()
	require.NoError(t, AllocHeapString(rt, 0, 32))
	AssignLiteral(rt, 0, "on the heap")
	require.True(t, ReadHeader(rt.Bytes(), 0).IsHeapBacked())
	require.NoError(t, FreeHeapString(rt, 0))
}

func stringOf(rt *fakeRuntime, addr uint32) string {
	h := ReadHeader(rt.Bytes(), addr)
	return string(rt.Bytes()[h.Data : h.Data+uint32(h.Size)])
}
