package pcode

import "github.com/mna/pascal/lang/poff"

// Emitter is the façade lang/codegen's expression parser calls while
// walking an expression tree, translating each logical operation into
// bytes on the underlying lang/poff.Writer. It additionally tracks the
// current static lexical nesting level, so callers only ever state a
// variable's declaration level and the emitter computes the level
// difference (display depth) a LOD/STO/LAS/CUP instruction actually
// carries, per spec.md §4.1/§4.3's level-difference addressing scheme.
type Emitter struct {
	w            *poff.Writer
	currentLevel uint16
}

// NewEmitter wraps w in an Emitter starting at lexical level 0 (the
// outermost/main block).
func NewEmitter(w *poff.Writer) *Emitter { return &Emitter{w: w} }

// Writer exposes the underlying object-file writer, for callers (such as
// the disassembler or a test) that need direct access to the emitted
// bytes or RO data pool.
func (e *Emitter) Writer() *poff.Writer { return e.w }

// SetStaticNestingLevel updates the lexical level code generated from
// this point on is considered to execute at — called on entry/exit of
// each procedure or function body.
func (e *Emitter) SetStaticNestingLevel(level uint16) { e.currentLevel = level }

// GenerateLineNumber records that subsequently emitted instructions
// originate from the given source line.
func (e *Emitter) GenerateLineNumber(line uint32) { e.w.AddLineNumber(line) }

func (e *Emitter) emitOp(op Op) uint32 { return e.w.AddByte(byte(op)) }

// GenerateSimple emits a no-operand opcode: NOT, FLT, TRC, RND, CHR, ORD,
// DUP, or POP. NEG, ABS and SQR carry a Width (GenerateDataOperation) and
// RET always carries one (GenerateReturn).
func (e *Emitter) GenerateSimple(op Op) uint32 {
	off := e.emitOp(op)
	return off
}

// GenerateDataOperation emits an arithmetic, relational, bitwise, or
// shift opcode qualified by the operand width it acts over (spec.md
// §4.1's type-directed opcode selection, generalized to an explicit
// operand — see DESIGN.md).
func (e *Emitter) GenerateDataOperation(op Op, w Width) uint32 {
	off := e.emitOp(op)
	e.w.AddByte(byte(w))
	return off
}

// GenerateDataSize emits an opcode that additionally carries an explicit
// byte count, for structured (record/array-by-value) operations such as
// copying or comparing n bytes rather than a single scalar word.
func (e *Emitter) GenerateDataSize(op Op, size uint16) uint32 {
	off := e.emitOp(op)
	e.w.AddByte(byte(WidthRecord))
	e.w.AddWord(size)
	return off
}

// GenerateFpOp is GenerateDataOperation specialized to WidthReal, used by
// the expression parser's floating-point arithmetic path.
func (e *Emitter) GenerateFpOp(op Op) uint32 { return e.GenerateDataOperation(op, WidthReal) }

// GenerateSetOp emits a set operator (membership, union, intersection,
// difference) qualified by the set's base ordinal width.
func (e *Emitter) GenerateSetOp(op Op, elemWidth Width) uint32 {
	off := e.emitOp(op)
	e.w.AddByte(byte(elemWidth))
	return off
}

// GenerateSetConstructor emits SEX, building a set from the top count
// slots already pushed by the caller — each slot is one ordinal value (a
// singleton) or two (a lo,hi range) followed by a marker word identifying
// which, per lang/codegen's setConstructor.
func (e *Emitter) GenerateSetConstructor(count uint16) uint32 {
	off := e.emitOp(OpSEX)
	e.w.AddWord(count)
	return off
}

// GenerateIoOp emits a file-I/O primitive call (spec.md §4.6).
func (e *Emitter) GenerateIoOp(call StdIOCall) uint32 {
	off := e.emitOp(OpIOC)
	e.w.AddByte(byte(call))
	return off
}

// GenerateStackReference emits LAS (load address), or LOD/STO (load or
// store a Width-sized value), targeting the variable declared at
// declLevel, offset bytes into its frame. The level difference actually
// encoded is e.currentLevel - declLevel, per spec.md §4.3's display-based
// addressing.
func (e *Emitter) GenerateStackReference(op Op, declLevel, offset uint16, w Width) uint32 {
	off := e.emitOp(op)
	e.w.AddWord(e.currentLevel - declLevel)
	e.w.AddWord(offset)
	if op == OpLOD || op == OpSTO {
		e.w.AddByte(byte(w))
	}
	return off
}

// GenerateLevelReference emits LAS for the display-frame base itself
// (offset 0 at declLevel), used when a whole aggregate's address — rather
// than a scalar field within it — is what an expression needs next (e.g.
// passing a record as a VAR parameter).
func (e *Emitter) GenerateLevelReference(declLevel uint16) uint32 {
	return e.GenerateStackReference(OpLAS, declLevel, 0, WidthPointer)
}

// GenerateIndirect emits LDI or STI, Width-sized, operating through the
// address already on top of the stack.
func (e *Emitter) GenerateIndirect(op Op, w Width) uint32 {
	off := e.emitOp(op)
	e.w.AddByte(byte(w))
	return off
}

// GenerateIndex emits IXA: pop an index and an array base address, push
// the element address, scaled by stride bytes per index unit.
func (e *Emitter) GenerateIndex(stride uint16) uint32 {
	off := e.emitOp(OpIXA)
	e.w.AddWord(stride)
	return off
}

// GenerateConstant emits LDC, pushing a 1-word immediate integer/word/
// boolean/char constant.
func (e *Emitter) GenerateConstant(v uint16) uint32 {
	off := e.emitOp(OpLDC)
	e.w.AddWord(v)
	return off
}

// GenerateRealConstant emits LDCR, pushing a 4-word real constant
// interned into the object file's read-only data pool.
func (e *Emitter) GenerateRealConstant(bits uint64) uint32 {
	off := e.emitOp(OpLDCR)
	roOff := e.w.AddROString(encodeReal(bits))
	e.w.AddWord(uint16(roOff))
	return off
}

// GenerateStringConstant emits LDCS, pushing a string header that points
// at a literal interned into the read-only data pool.
func (e *Emitter) GenerateStringConstant(s string) uint32 {
	off := e.emitOp(OpLDCS)
	roOff := e.w.AddROString(s)
	e.w.AddWord(uint16(roOff))
	e.w.AddWord(uint16(len(s)))
	return off
}

// GenerateJump emits an unconditional or conditional (FJP/TJP) jump with
// a placeholder target, returning the offset of the target operand so the
// caller can back-patch it once the real destination is known (spec.md
// §4.1's forward-reference handling for IF/WHILE/FOR).
func (e *Emitter) GenerateJump(op Op) (targetOperand uint32) {
	e.emitOp(op)
	return e.w.AddWord(0)
}

// PatchJump back-patches a previously emitted jump's target operand to
// point at the instruction about to be emitted (the current code length).
func (e *Emitter) PatchJump(targetOperand uint32) {
	e.w.PatchWord(targetOperand, uint16(len(e.w.Code)))
}

// PatchJumpTo back-patches targetOperand to an explicit destination,
// for backward jumps (e.g. a WHILE loop's back-edge) where the
// destination is already known at emission time.
func (e *Emitter) PatchJumpTo(targetOperand uint32, dest uint16) {
	e.w.PatchWord(targetOperand, dest)
}

// GenerateEntry emits ENT, reserving localsSize bytes for the frame about
// to be entered.
func (e *Emitter) GenerateEntry(localsSize uint16) uint32 {
	off := e.emitOp(OpENT)
	e.w.AddWord(localsSize)
	return off
}

// GenerateProcedureCall emits CUP with a placeholder target, to a
// procedure or function declared at declLevel. Returns the offset of the
// target operand for later back-patching once the callee's entry address
// is known (or immediately, for a call to an already-emitted callee).
func (e *Emitter) GenerateProcedureCall(declLevel uint16) (targetOperand uint32) {
	e.emitOp(OpCUP)
	e.w.AddWord(e.currentLevel - declLevel)
	return e.w.AddWord(0)
}

// GenerateReturn emits RET, Width-sized for a function result, or
// WidthRecord-zero for a procedure.
func (e *Emitter) GenerateReturn(w Width) uint32 {
	off := e.emitOp(OpRET)
	e.w.AddByte(byte(w))
	return off
}

// StandardFunctionCall emits CSP, invoking a natively implemented
// standard procedure or function.
func (e *Emitter) StandardFunctionCall(call StdCall) uint32 {
	off := e.emitOp(OpCSP)
	e.w.AddByte(byte(call))
	return off
}

// encodeReal packs a float64's bit pattern into the 8-byte string form
// lang/poff's RO-data pool stores arbitrary blobs as (it depends only on
// ROString's length-prefix framing, not on the payload being text).
func encodeReal(bits uint64) string {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(bits >> (8 * i))
	}
	return string(b)
}

// DecodeReal is encodeReal's inverse, used by the disassembler and by the
// virtual machine when it loads an LDCR operand's RO data back out.
func DecodeReal(s string) uint64 {
	var bits uint64
	for i := 0; i < 8 && i < len(s); i++ {
		bits |= uint64(s[i]) << (8 * i)
	}
	return bits
}
