package codegen

import (
	"io"
	"os"
	"testing"

	"github.com/mna/pascal/lang/exprtype"
	"github.com/mna/pascal/lang/pcode"
	"github.com/mna/pascal/lang/poff"
	"github.com/mna/pascal/lang/symtab"
	"github.com/mna/pascal/lang/vm"
	"github.com/stretchr/testify/require"
)

// captureAndRun runs m to completion, returning whatever it wrote to
// standard output — the same os.Pipe seam lang/vm's own tests use, since
// lang/sysio.Table binds directly to os.Stdout.
func captureAndRun(t *testing.T, m *vm.Machine) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdout
	os.Stdout = w
	runErr := m.Run()
	w.Close()
	os.Stdout = old
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, runErr)
	return string(out)
}

func TestArithmeticExpression(t *testing.T) {
	tab := symtab.NewTable()
	wr := poff.NewWriter()
	em := pcode.NewEmitter(wr)
	p := NewParser([]byte("2 + 3 * 4"), tab, em)
	typ, err := p.ParseExpression(exprtype.Unknown)
	require.NoError(t, err)
	require.Equal(t, exprtype.Integer, typ)
	em.StandardFunctionCall(pcode.StdWriteInt)
	em.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	m := vm.New(obj, vm.Config{StringStackSize: 512, PascalStackSize: 2048, HeapSize: 2048})
	out := captureAndRun(t, m)
	require.Equal(t, "14", out)
}

func TestVariableReadAndSubrange(t *testing.T) {
	tab := symtab.NewTable()
	tab.DeclareVariable("x", symtab.IntegerType, 0)

	wr := poff.NewWriter()
	em := pcode.NewEmitter(wr)
	em.GenerateEntry(2)
	em.GenerateStackReference(pcode.OpLAS, 0, 0, pcode.WidthPointer)
	em.GenerateConstant(41)
	em.GenerateIndirect(pcode.OpSTI, pcode.WidthInt)

	p := NewParser([]byte("x + 1"), tab, em)
	typ, err := p.ParseExpression(exprtype.Unknown)
	require.NoError(t, err)
	require.Equal(t, exprtype.Integer, typ)
	em.StandardFunctionCall(pcode.StdWriteInt)
	em.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	m := vm.New(obj, vm.Config{StringStackSize: 512, PascalStackSize: 2048, HeapSize: 2048})
	out := captureAndRun(t, m)
	require.Equal(t, "42", out)
}

func TestRecordFieldAccess(t *testing.T) {
	tab := symtab.NewTable()
	node := tab.DeclareRecordType("node",
		symtab.Field{Name: "a", Type: symtab.IntegerType},
		symtab.Field{Name: "b", Type: symtab.IntegerType},
	)
	tab.DeclareVariable("n", node, 0)

	wr := poff.NewWriter()
	em := pcode.NewEmitter(wr)
	em.GenerateEntry(uint16(node.AllocSize))
	em.GenerateStackReference(pcode.OpLAS, 0, 2, pcode.WidthPointer) // address of field b (offset 2)
	em.GenerateConstant(99)
	em.GenerateIndirect(pcode.OpSTI, pcode.WidthInt)

	p := NewParser([]byte("n.b"), tab, em)
	typ, err := p.ParseExpression(exprtype.Unknown)
	require.NoError(t, err)
	require.Equal(t, exprtype.Integer, typ)
	em.StandardFunctionCall(pcode.StdWriteInt)
	em.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	m := vm.New(obj, vm.Config{StringStackSize: 512, PascalStackSize: 2048, HeapSize: 2048})
	out := captureAndRun(t, m)
	require.Equal(t, "99", out)
}

func TestArrayIndexing(t *testing.T) {
	tab := symtab.NewTable()
	idx := tab.DeclareSubrangeType("idx", symtab.IntegerType, 0, 4)
	arr := tab.DeclareArrayType("vec", symtab.IntegerType, idx)
	tab.DeclareVariable("v", arr, 0)

	wr := poff.NewWriter()
	em := pcode.NewEmitter(wr)
	em.GenerateEntry(uint16(arr.AllocSize))
	// v[2] := 7
	em.GenerateStackReference(pcode.OpLAS, 0, 0, pcode.WidthPointer)
	em.GenerateConstant(2)
	em.GenerateIndex(2)
	em.GenerateConstant(7)
	em.GenerateIndirect(pcode.OpSTI, pcode.WidthInt)

	p := NewParser([]byte("v[2]"), tab, em)
	typ, err := p.ParseExpression(exprtype.Unknown)
	require.NoError(t, err)
	require.Equal(t, exprtype.Integer, typ)
	em.StandardFunctionCall(pcode.StdWriteInt)
	em.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	m := vm.New(obj, vm.Config{StringStackSize: 512, PascalStackSize: 2048, HeapSize: 2048})
	out := captureAndRun(t, m)
	require.Equal(t, "7", out)
}

func TestRelationalAndBoolean(t *testing.T) {
	tab := symtab.NewTable()
	wr := poff.NewWriter()
	em := pcode.NewEmitter(wr)
	p := NewParser([]byte("(3 < 5) and not (1 = 2)"), tab, em)
	typ, err := p.ParseExpression(exprtype.Unknown)
	require.NoError(t, err)
	require.Equal(t, exprtype.Boolean, typ)
	em.StandardFunctionCall(pcode.StdWriteBool)
	em.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	m := vm.New(obj, vm.Config{StringStackSize: 512, PascalStackSize: 2048, HeapSize: 2048})
	out := captureAndRun(t, m)
	require.Equal(t, "TRUE", out)
}

func TestBuiltinCallSqrtCoercesIntegerArgument(t *testing.T) {
	tab := symtab.NewTable()
	wr := poff.NewWriter()
	em := pcode.NewEmitter(wr)
	p := NewParser([]byte("sqrt(16)"), tab, em)
	typ, err := p.ParseExpression(exprtype.Unknown)
	require.NoError(t, err)
	require.Equal(t, exprtype.Real, typ)
	em.StandardFunctionCall(pcode.StdWriteReal)
	em.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	m := vm.New(obj, vm.Config{StringStackSize: 512, PascalStackSize: 2048, HeapSize: 2048})
	out := captureAndRun(t, m)
	require.Equal(t, "4", out)
}

func TestBuiltinCallOrdAndChr(t *testing.T) {
	tab := symtab.NewTable()
	wr := poff.NewWriter()
	em := pcode.NewEmitter(wr)
	p := NewParser([]byte("ord(chr(65))"), tab, em)
	typ, err := p.ParseExpression(exprtype.Unknown)
	require.NoError(t, err)
	require.Equal(t, exprtype.Integer, typ)
	em.StandardFunctionCall(pcode.StdWriteInt)
	em.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	m := vm.New(obj, vm.Config{StringStackSize: 512, PascalStackSize: 2048, HeapSize: 2048})
	out := captureAndRun(t, m)
	require.Equal(t, "65", out)
}

func TestBuiltinCallNewThenDispose(t *testing.T) {
	tab := symtab.NewTable()
	pint := tab.DeclarePointerType("pint", symtab.IntegerType)
	tab.DeclareVariable("p", pint, 0)

	wr := poff.NewWriter()
	em := pcode.NewEmitter(wr)
	em.GenerateEntry(2)

	p := NewParser([]byte("new(p, 2)"), tab, em)
	_, err := p.ParseExpression(exprtype.Unknown)
	require.NoError(t, err)

	p2 := NewParser([]byte("dispose(p)"), tab, em)
	_, err = p2.ParseExpression(exprtype.Unknown)
	require.NoError(t, err)

	em.GenerateReturn(pcode.WidthRecord)
	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	m := vm.New(obj, vm.Config{StringStackSize: 512, PascalStackSize: 2048, HeapSize: 4096})
	require.NoError(t, m.Run())
}

func TestSetMembershipAgainstDeclaredSubrangeBase(t *testing.T) {
	tab := symtab.NewTable()
	idx := tab.DeclareSubrangeType("day", symtab.IntegerType, 5, 10)
	setTyp := tab.DeclareSetType("dayset", idx)
	tab.DeclareVariable("s", setTyp, 0)

	wr := poff.NewWriter()
	em := pcode.NewEmitter(wr)
	em.GenerateEntry(vm.SetSize)
	// s := [7], built directly as a normalized bit index (7-5=2) since this
	// setup bypasses setConstructor's own parser-level normalization.
	em.GenerateStackReference(pcode.OpLAS, 0, 0, pcode.WidthPointer)
	em.GenerateConstant(2)
	em.GenerateConstant(setElemSingle)
	em.GenerateSetConstructor(1)
	em.GenerateIndirect(pcode.OpSTI, pcode.WidthSet)

	p := NewParser([]byte("7 in s"), tab, em)
	typ, err := p.ParseExpression(exprtype.Unknown)
	require.NoError(t, err)
	require.Equal(t, exprtype.Boolean, typ)
	em.StandardFunctionCall(pcode.StdWriteBool)
	em.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	m := vm.New(obj, vm.Config{StringStackSize: 512, PascalStackSize: 2048, HeapSize: 2048})
	out := captureAndRun(t, m)
	require.Equal(t, "TRUE", out)
}

func TestSetMembershipAgainstDeclaredSubrangeBaseFalse(t *testing.T) {
	tab := symtab.NewTable()
	idx := tab.DeclareSubrangeType("day", symtab.IntegerType, 5, 10)
	setTyp := tab.DeclareSetType("dayset", idx)
	tab.DeclareVariable("s", setTyp, 0)

	wr := poff.NewWriter()
	em := pcode.NewEmitter(wr)
	em.GenerateEntry(vm.SetSize)
	// s := [7] again, but this time probe membership of 9, which is in the
	// subrange's domain but not in the set itself.
	em.GenerateStackReference(pcode.OpLAS, 0, 0, pcode.WidthPointer)
	em.GenerateConstant(2)
	em.GenerateConstant(setElemSingle)
	em.GenerateSetConstructor(1)
	em.GenerateIndirect(pcode.OpSTI, pcode.WidthSet)

	p := NewParser([]byte("9 in s"), tab, em)
	typ, err := p.ParseExpression(exprtype.Unknown)
	require.NoError(t, err)
	require.Equal(t, exprtype.Boolean, typ)
	em.StandardFunctionCall(pcode.StdWriteBool)
	em.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	m := vm.New(obj, vm.Config{StringStackSize: 512, PascalStackSize: 2048, HeapSize: 2048})
	out := captureAndRun(t, m)
	require.Equal(t, "FALSE", out)
}

func TestWithStatementIndirectFieldAccess(t *testing.T) {
	tab := symtab.NewTable()
	node := tab.DeclareRecordType("node", symtab.Field{Name: "a", Type: symtab.IntegerType})
	pnode := tab.DeclarePointerType("pnode", node)
	tab.DeclareVariable("ptr", pnode, 0)
	aField := symtab.LookupField(node, "a")
	// a WITH-bound bare field reference resolves through a symbol whose
	// ParentType names the field being referenced (see simpleFactor's
	// SRECORD_OBJECT case); declaration-level WITH parsing is out of scope,
	// so the test installs this symbol and the WITH context directly,
	// exactly as Parser.PushWith's doc comment describes.
	tab.Declare("a", &symtab.Symbol{Kind: symtab.SRECORD_OBJECT, ParentType: aField})

	wr := poff.NewWriter()
	em := pcode.NewEmitter(wr)
	// offset 0: ptr (2 bytes); offset 2: the node instance (2 bytes, one field).
	em.GenerateEntry(2 + uint16(node.AllocSize))
	em.GenerateStackReference(pcode.OpLAS, 0, 2, pcode.WidthPointer)
	em.GenerateConstant(55)
	em.GenerateIndirect(pcode.OpSTI, pcode.WidthInt)
	// ptr := @(the node instance)
	em.GenerateStackReference(pcode.OpLAS, 0, 0, pcode.WidthPointer)
	em.GenerateStackReference(pcode.OpLAS, 0, 2, pcode.WidthPointer)
	em.GenerateIndirect(pcode.OpSTI, pcode.WidthPointer)

	ptrSym := tab.Lookup("ptr")
	p := NewParser([]byte("a"), tab, em)
	p.PushWith(newVarInfo(ptrSym), node, true)
	typ, err := p.ParseExpression(exprtype.Unknown)
	require.NoError(t, err)
	require.Equal(t, exprtype.Integer, typ)
	p.PopWith()
	em.StandardFunctionCall(pcode.StdWriteInt)
	em.GenerateReturn(pcode.WidthRecord)

	obj, err := poff.Load(wr.Bytes())
	require.NoError(t, err)
	m := vm.New(obj, vm.Config{StringStackSize: 512, PascalStackSize: 2048, HeapSize: 2048})
	out := captureAndRun(t, m)
	require.Equal(t, "55", out)
}

func TestUndeclaredIdentifierFails(t *testing.T) {
	tab := symtab.NewTable()
	wr := poff.NewWriter()
	em := pcode.NewEmitter(wr)
	p := NewParser([]byte("nosuchvar + 1"), tab, em)
	_, err := p.ParseExpression(exprtype.Unknown)
	require.Error(t, err)
}
