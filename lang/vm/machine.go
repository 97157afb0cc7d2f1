// Package vm implements the stack-oriented virtual machine spec.md §4.3
// and §4.7 describe: a flat byte-addressed memory buffer partitioned into
// a string stack, a read-only data pool, a Pascal (call) stack, and a
// heap, driven by a fetch-decode-dispatch loop over lang/pcode's
// instruction set.
package vm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mna/pascal/lang/heap"
	"github.com/mna/pascal/lang/pcode"
	"github.com/mna/pascal/lang/poff"
	"github.com/mna/pascal/lang/pstring"
	"github.com/mna/pascal/lang/sysio"
)

// SetSize is the fixed byte width of a set value's bitmap representation:
// 256 ordinal positions, enough for any char-indexed or small-scalar-
// indexed set a Pascal program builds over a single byte-sized base type.
const SetSize = 32

// RuntimeError is returned by Run when the executing program traps —
// division by zero, an out-of-range subrange/array access, a double
// free, stack/heap exhaustion — annotated with the source line recorded
// for the faulting instruction, per spec.md §4.7 and §7.
type RuntimeError struct {
	PC   uint32
	Line uint32
	Msg  string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at line %d (pc=%d): %s", e.Line, e.PC, e.Msg)
}

// Machine is one executable instance of a compiled program: its code and
// read-only data (immutable, from the loaded lang/poff.Object), and its
// mutable memory (string stack, Pascal stack, heap).
type Machine struct {
	obj *poff.Object

	mem []byte

	stringStackBase uint32
	stringStackSize uint32
	roBase          uint32
	roSize          uint32
	stackBase       uint32
	stackSize       uint32
	heapBase        uint32

	csp uint32 // string-stack bump pointer, absolute offset
	sp  uint32 // Pascal stack top, absolute offset
	fp  uint32 // current frame base, absolute offset
	pc  uint32 // program counter, offset into obj.Code

	hp    *heap.Heap
	io    *sysio.Table
	dirs  *sysio.DirTable
	trace bool
}

// New constructs a Machine ready to execute obj's code, with memory
// regions sized per cfg.
func New(obj *poff.Object, cfg Config) *Machine {
	stringStackBase := uint32(0)
	roBase := stringStackBase + cfg.StringStackSize
	stackBase := roBase + uint32(len(obj.ROData))
	heapBase := stackBase + cfg.PascalStackSize
	total := heapBase + cfg.HeapSize

	mem := make([]byte, total)
	copy(mem[roBase:], obj.ROData)

	m := &Machine{
		obj:             obj,
		mem:             mem,
		stringStackBase: stringStackBase,
		stringStackSize: cfg.StringStackSize,
		roBase:          roBase,
		roSize:          uint32(len(obj.ROData)),
		stackBase:       stackBase,
		stackSize:       cfg.PascalStackSize,
		heapBase:        heapBase,
		csp:             stringStackBase,
		fp:              stackBase,
		pc:              0,
		hp:              heap.New(mem[heapBase:]),
		io:              sysio.NewTableWithLimit(int(cfg.MaxOpenFiles)),
		dirs:            sysio.NewDirTable(int(cfg.MaxOpenFiles)),
		trace:           cfg.TraceExec,
	}

	// Plant a synthetic outermost frame header, self-linked so RET from
	// the main program body (the level-0 block) is recognized as program
	// completion rather than an attempt to unwind to a nonexistent caller.
	binary.LittleEndian.PutUint32(mem[stackBase+0:], stackBase)
	binary.LittleEndian.PutUint32(mem[stackBase+4:], stackBase)
	binary.LittleEndian.PutUint32(mem[stackBase+8:], 0)
	m.sp = stackBase + frameHeaderSize

	return m
}

// Bytes implements pstring.Runtime.
func (m *Machine) Bytes() []byte { return m.mem }

// Heap implements pstring.Runtime.
func (m *Machine) Heap() *heap.Heap { return m.hp }

// AllocStringStack implements pstring.Runtime: a bump allocator over the
// string-stack region, reclaimed only in bulk by ResetStringStack (spec.md
// §4.4's string-stack discipline, distinct from the heap's
// individually-freed chunks). RET does not reclaim it, so buffers
// allocated during a call stay allocated after the call returns.
func (m *Machine) AllocStringStack(size uint16) (uint32, error) {
	addr := m.csp
	if addr+uint32(size) > m.stringStackBase+m.stringStackSize {
		return 0, &RuntimeError{PC: m.pc, Line: m.lineAt(m.pc), Msg: "string stack exhausted"}
	}
	m.csp += uint32(size)
	return addr, nil
}

// ResetStringStack rewinds the string-stack bump pointer to mark, freeing
// every buffer allocated since, in bulk. Nothing in the machine calls it;
// RET leaves the string stack as it is.
func (m *Machine) ResetStringStack(mark uint32) { m.csp = mark }

// StringStackMark returns the current string-stack bump pointer, to be
// passed back to ResetStringStack later.
func (m *Machine) StringStackMark() uint32 { return m.csp }

func (m *Machine) lineAt(pc uint32) uint32 { return m.obj.LineForOffset(pc) }

func (m *Machine) fault(msg string, args ...any) error {
	return &RuntimeError{PC: m.pc, Line: m.lineAt(m.pc), Msg: fmt.Sprintf(msg, args...)}
}

func (m *Machine) fetchByte() byte {
	b := m.obj.Code[m.pc]
	m.pc++
	return b
}

func (m *Machine) fetchWord() uint16 {
	v := binary.LittleEndian.Uint16(m.obj.Code[m.pc:])
	m.pc += 2
	return v
}

// widthSize returns a value's on-stack byte footprint. Boolean and
// character values occupy a full word on the stack (not the single byte
// they occupy inside a record), matching the classic p-machine's stack
// alignment discipline; see DESIGN.md.
func widthSize(w pcode.Width) uint32 {
	switch w {
	case pcode.WidthReal:
		return 8
	case pcode.WidthSet:
		return SetSize
	default:
		return 2
	}
}

func (m *Machine) checkStack(grow int32) error {
	next := int64(m.sp) + int64(grow)
	if next < int64(m.stackBase) || next > int64(m.stackBase+m.stackSize) {
		return m.fault("Pascal stack overflow")
	}
	return nil
}

func (m *Machine) push16(v uint16) error {
	if err := m.checkStack(2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.mem[m.sp:], v)
	m.sp += 2
	return nil
}

func (m *Machine) pop16() (uint16, error) {
	if m.sp < m.stackBase+2 {
		return 0, m.fault("Pascal stack underflow")
	}
	m.sp -= 2
	return binary.LittleEndian.Uint16(m.mem[m.sp:]), nil
}

func (m *Machine) pushReal(f float64) error {
	if err := m.checkStack(8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.mem[m.sp:], math.Float64bits(f))
	m.sp += 8
	return nil
}

func (m *Machine) popReal() (float64, error) {
	if m.sp < m.stackBase+8 {
		return 0, m.fault("Pascal stack underflow")
	}
	m.sp -= 8
	return math.Float64frombits(binary.LittleEndian.Uint64(m.mem[m.sp:])), nil
}

func (m *Machine) pushBytes(b []byte) error {
	if err := m.checkStack(int32(len(b))); err != nil {
		return err
	}
	copy(m.mem[m.sp:], b)
	m.sp += uint32(len(b))
	return nil
}

func (m *Machine) popBytes(n uint32) ([]byte, error) {
	if m.sp < m.stackBase+n {
		return nil, m.fault("Pascal stack underflow")
	}
	m.sp -= n
	return m.mem[m.sp : m.sp+n], nil
}

// frameHeaderSize is the byte size of a frame's fixed header: the static
// link (for non-local variable access, walked by addrAt), the dynamic
// link (the caller's frame base, restored on RET), and the return
// address, each a 4-byte absolute offset.
const frameHeaderSize = 12

// addrAt returns the absolute memory address of the variable declared
// levelDiff static levels up from the current frame, offset bytes into
// that frame, by following the chain of saved static-link words stored at
// the base of every frame (a frame's first word is always its lexical
// parent's frame base, set up by CUP's calling convention in spec.md
// §4.3).
func (m *Machine) addrAt(levelDiff, offset uint16) uint32 {
	base := m.fp
	for i := uint16(0); i < levelDiff; i++ {
		base = binary.LittleEndian.Uint32(m.mem[base:])
	}
	return base + frameHeaderSize + uint32(offset)
}
