package vm

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/pascal/lang/pcode"
	"github.com/mna/pascal/lang/poff"
	"github.com/mna/pascal/lang/pstring"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{StringStackSize: 512, PascalStackSize: 2048, HeapSize: 4096}
}

// captureStdout redirects os.Stdout for the duration of fn, returning
// whatever was written — sysio.NewTable binds directly to os.Stdout, so
// this is the seam available to observe WriteStr/WriteLn output without
// threading an io.Writer through the whole machine.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdout
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = old
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestArithmeticAndWriteInt(t *testing.T) {
	wr := poff.NewWriter()
	e := pcode.NewEmitter(wr)
	e.GenerateConstant(40)
	e.GenerateConstant(2)
	e.GenerateDataOperation(pcode.OpADD, pcode.WidthInt)
	e.StandardFunctionCall(pcode.StdWriteInt)
	e.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)

	out := captureStdout(t, func() {
		m := New(obj, testConfig())
		require.NoError(t, m.Run())
	})
	require.Equal(t, "42", out)
}

func TestDivisionByZeroTraps(t *testing.T) {
	wr := poff.NewWriter()
	e := pcode.NewEmitter(wr)
	e.GenerateConstant(1)
	e.GenerateConstant(0)
	e.GenerateDataOperation(pcode.OpDIV, pcode.WidthInt)
	e.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	m := New(obj, testConfig())
	err = m.Run()
	require.Error(t, err)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
}

func TestConditionalJump(t *testing.T) {
	wr := poff.NewWriter()
	e := pcode.NewEmitter(wr)
	e.GenerateConstant(0) // false
	skip := e.GenerateJump(pcode.OpFJP)
	e.GenerateConstant(111)
	e.StandardFunctionCall(pcode.StdWriteInt)
	e.PatchJump(skip)
	e.GenerateConstant(222)
	e.StandardFunctionCall(pcode.StdWriteInt)
	e.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	out := captureStdout(t, func() {
		m := New(obj, testConfig())
		require.NoError(t, m.Run())
	})
	require.Equal(t, "222", out)
}

func TestHeapAllocationViaStandardCalls(t *testing.T) {
	wr := poff.NewWriter()
	e := pcode.NewEmitter(wr)
	// reserve 2 words of locals: offset 0 holds the pointer variable.
	e.GenerateEntry(4)
	e.GenerateStackReference(pcode.OpLAS, 0, 0, pcode.WidthPointer)
	e.GenerateConstant(16) // allocation size
	e.StandardFunctionCall(pcode.StdNew)
	e.GenerateStackReference(pcode.OpLOD, 0, 0, pcode.WidthPointer)
	e.GenerateConstant(7)
	e.GenerateIndirect(pcode.OpSTI, pcode.WidthInt)
	e.GenerateStackReference(pcode.OpLOD, 0, 0, pcode.WidthPointer)
	e.GenerateIndirect(pcode.OpLDI, pcode.WidthInt)
	e.StandardFunctionCall(pcode.StdWriteInt)
	e.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	out := captureStdout(t, func() {
		m := New(obj, testConfig())
		require.NoError(t, m.Run())
	})
	require.Equal(t, "7", out)
}

func TestSetMembership(t *testing.T) {
	wr := poff.NewWriter()
	e := pcode.NewEmitter(wr)
	const setElemSingle = 0
	e.GenerateConstant(5) // elem, pushed first per "elem IN set" evaluation order
	e.GenerateConstant(3)
	e.GenerateConstant(setElemSingle)
	e.GenerateConstant(5)
	e.GenerateConstant(setElemSingle)
	e.GenerateConstant(9)
	e.GenerateConstant(setElemSingle)
	e.GenerateSetConstructor(3)
	e.GenerateConstant(0) // minValue: the set's base type starts at 0 here
	// stack: [elem][set][minValue], minValue on top; setOp(SIN) pops
	// minValue, then set, then elem.
	e.GenerateSetOp(pcode.OpSIN, pcode.WidthChar)
	e.StandardFunctionCall(pcode.StdWriteBool)
	e.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	out := captureStdout(t, func() {
		m := New(obj, testConfig())
		require.NoError(t, m.Run())
	})
	require.Equal(t, "TRUE", out)
}

func TestDirectoryIteration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0o644))

	wr := poff.NewWriter()
	e := pcode.NewEmitter(wr)
	// locals: handle (offset 0, 2 bytes), name header (offset 2, 6 bytes),
	// attr (offset 8, 2 bytes).
	e.GenerateEntry(12)
	e.GenerateStackReference(pcode.OpLAS, 0, 0, pcode.WidthPointer)
	e.GenerateStringConstant(dir)
	e.GenerateIoOp(pcode.IOOpenDir)

	readEntry := func() {
		e.GenerateStackReference(pcode.OpLOD, 0, 0, pcode.WidthInt)
		e.GenerateStackReference(pcode.OpLAS, 0, 2, pcode.WidthPointer)
		e.GenerateStackReference(pcode.OpLAS, 0, 8, pcode.WidthPointer)
		e.GenerateIoOp(pcode.IOReadDir)
		e.StandardFunctionCall(pcode.StdWriteBool)
	}

	readEntry() // "a.txt": TRUE
	e.GenerateStackReference(pcode.OpLAS, 0, 2, pcode.WidthPointer)
	e.StandardFunctionCall(pcode.StdWriteStr)
	readEntry() // "b.txt": TRUE
	readEntry() // exhausted: FALSE

	e.GenerateStackReference(pcode.OpLOD, 0, 0, pcode.WidthInt)
	e.GenerateIoOp(pcode.IOCloseDir)
	e.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	m := New(obj, testConfig())
	require.NoError(t, pstring.Init(m, m.addrAt(0, 2), 32))

	out := captureStdout(t, func() {
		require.NoError(t, m.Run())
	})
	require.Equal(t, "TRUEa.txtTRUEFALSE", out)
}

func TestSetConstructorRangeExpansion(t *testing.T) {
	wr := poff.NewWriter()
	e := pcode.NewEmitter(wr)
	const (
		setElemSingle = 0
		setElemRange  = 1
	)
	// [2, 10..12]: membership test against 11, which is only covered by
	// the range's interior, not either of its endpoints.
	e.GenerateConstant(11) // elem, pushed first
	e.GenerateConstant(2)
	e.GenerateConstant(setElemSingle)
	e.GenerateConstant(10)
	e.GenerateConstant(12)
	e.GenerateConstant(setElemRange)
	e.GenerateSetConstructor(2)
	e.GenerateConstant(0) // minValue: the set's base type starts at 0 here
	e.GenerateSetOp(pcode.OpSIN, pcode.WidthChar)
	e.StandardFunctionCall(pcode.StdWriteBool)
	e.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	out := captureStdout(t, func() {
		m := New(obj, testConfig())
		require.NoError(t, m.Run())
	})
	require.Equal(t, "TRUE", out)
}
