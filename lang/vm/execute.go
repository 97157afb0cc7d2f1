package vm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mna/pascal/lang/pcode"
	"github.com/mna/pascal/lang/pstring"
)

// haltError unwinds Run without being surfaced as a RuntimeError: the
// standard Halt procedure's normal-looking but early exit.
type haltError struct{ code int }

func (haltError) Error() string { return "halt" }

// Run executes obj's code from its entry point (offset 0) until a RET
// from the outermost frame, a Halt standard call, or a runtime error.
func (m *Machine) Run() error {
	defer m.io.Flush()
	for {
		if m.trace {
			fmt.Printf("pc=%d sp=%d fp=%d\n", m.pc, m.sp, m.fp)
		}
		if m.pc >= uint32(len(m.obj.Code)) {
			return nil
		}
		op := pcode.Op(m.fetchByte())
		if err := m.step(op); err != nil {
			if h, ok := err.(haltError); ok {
				_ = h
				return nil
			}
			if _, ok := err.(stopMachine); ok {
				return nil
			}
			return err
		}
	}
}

// stopMachine is returned by RET from the outermost (level-0) frame: the
// program has run its course.
type stopMachine struct{}

func (stopMachine) Error() string { return "program complete" }

func (m *Machine) step(op pcode.Op) error {
	switch op {
	case pcode.OpLDC:
		return ignoreVal(m.push16(m.fetchWord()))

	case pcode.OpLDCR:
		roOff := m.fetchWord()
		bits := pcode.DecodeReal(m.obj.ROString(uint32(roOff)))
		return m.pushReal(math.Float64frombits(bits))

	case pcode.OpLDCS:
		roOff := m.fetchWord()
		n := m.fetchWord()
		s := m.obj.ROString(uint32(roOff))
		return m.pushLiteralStringHeader(s[:n])

	case pcode.OpLAS:
		levelDiff := m.fetchWord()
		offset := m.fetchWord()
		return ignoreVal(m.push16(uint16(m.addrAt(levelDiff, offset))))

	case pcode.OpLOD:
		levelDiff := m.fetchWord()
		offset := m.fetchWord()
		w := pcode.Width(m.fetchByte())
		addr := m.addrAt(levelDiff, offset)
		return m.loadFromAddr(addr, w)

	case pcode.OpSTO:
		levelDiff := m.fetchWord()
		offset := m.fetchWord()
		w := pcode.Width(m.fetchByte())
		addr := m.addrAt(levelDiff, offset)
		return m.storeToAddr(addr, w)

	case pcode.OpLDI:
		w := pcode.Width(m.fetchByte())
		addr16, err := m.pop16()
		if err != nil {
			return err
		}
		return m.loadFromAddr(uint32(addr16), w)

	case pcode.OpSTI:
		w := pcode.Width(m.fetchByte())
		val, err := m.popOperand(w)
		if err != nil {
			return err
		}
		addr16, err := m.pop16()
		if err != nil {
			return err
		}
		return m.storeOperand(uint32(addr16), w, val)

	case pcode.OpIXA:
		stride := m.fetchWord()
		index, err := m.pop16()
		if err != nil {
			return err
		}
		base, err := m.pop16()
		if err != nil {
			return err
		}
		return ignoreVal(m.push16(base + index*stride))

	case pcode.OpDUP:
		b, err := m.popBytes(2)
		if err != nil {
			return err
		}
		v := append([]byte(nil), b...)
		if err := m.pushBytes(v); err != nil {
			return err
		}
		return m.pushBytes(v)

	case pcode.OpPOP:
		_, err := m.popBytes(2)
		return err

	case pcode.OpNOT, pcode.OpFLT, pcode.OpTRC, pcode.OpRND, pcode.OpCHR, pcode.OpORD:
		return m.unaryOp(op)

	case pcode.OpNEG, pcode.OpABS, pcode.OpSQR:
		w := pcode.Width(m.fetchByte())
		return m.unaryDataOp(op, w)

	case pcode.OpADD, pcode.OpSUB, pcode.OpMUL, pcode.OpDIV, pcode.OpMOD,
		pcode.OpAND, pcode.OpOR, pcode.OpXOR, pcode.OpSHL, pcode.OpSHR,
		pcode.OpEQ, pcode.OpNEQ, pcode.OpLT, pcode.OpLE, pcode.OpGT, pcode.OpGE:
		w := pcode.Width(m.fetchByte())
		return m.binaryOp(op, w)

	case pcode.OpSIN, pcode.OpSUN, pcode.OpSIT, pcode.OpSDF:
		_ = pcode.Width(m.fetchByte())
		return m.setOp(op)

	case pcode.OpSEX:
		count := m.fetchWord()
		return m.setConstructor(count)

	case pcode.OpJMP:
		target := m.fetchWord()
		m.pc = uint32(target)
		return nil

	case pcode.OpFJP:
		target := m.fetchWord()
		cond, err := m.pop16()
		if err != nil {
			return err
		}
		if cond == 0 {
			m.pc = uint32(target)
		}
		return nil

	case pcode.OpTJP:
		target := m.fetchWord()
		cond, err := m.pop16()
		if err != nil {
			return err
		}
		if cond != 0 {
			m.pc = uint32(target)
		}
		return nil

	case pcode.OpENT:
		size := m.fetchWord()
		if err := m.checkStack(int32(size)); err != nil {
			return err
		}
		for i := uint16(0); i < size; i++ {
			m.mem[m.sp+uint32(i)] = 0
		}
		m.sp += uint32(size)
		return nil

	case pcode.OpCUP:
		levelDiff := m.fetchWord()
		target := m.fetchWord()
		return m.call(levelDiff, uint32(target))

	case pcode.OpRET:
		w := pcode.Width(m.fetchByte())
		return m.ret(w)

	case pcode.OpCSP:
		call := pcode.StdCall(m.fetchByte())
		return m.standardCall(call)

	case pcode.OpIOC:
		call := pcode.StdIOCall(m.fetchByte())
		return m.ioCall(call)

	case pcode.OpLBL:
		return nil

	default:
		return m.fault("unimplemented opcode %s", op)
	}
}

func ignoreVal(err error) error { return err }

// call implements CUP: it computes the callee's static link by following
// levelDiff links from the current frame, pushes the standard 12-byte
// frame header (static link, dynamic link, return address), and jumps to
// target.
func (m *Machine) call(levelDiff uint16, target uint32) error {
	staticLink := m.addrAtRaw(levelDiff)
	returnPC := m.pc
	dynamicLink := m.fp

	header := make([]byte, frameHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], staticLink)
	binary.LittleEndian.PutUint32(header[4:8], dynamicLink)
	binary.LittleEndian.PutUint32(header[8:12], returnPC)

	newFP := m.sp
	if err := m.pushBytes(header); err != nil {
		return err
	}
	m.fp = newFP
	m.pc = target
	return nil
}

// addrAtRaw walks levelDiff static links from the current frame and
// returns the resulting frame base (not offset by frameHeaderSize),
// i.e. the static link value the callee's own header should store.
func (m *Machine) addrAtRaw(levelDiff uint16) uint32 {
	base := m.fp
	for i := uint16(0); i < levelDiff; i++ {
		base = binary.LittleEndian.Uint32(m.mem[base:])
	}
	return base
}

// ret implements RET: it discards the current frame (including any
// locals/operands above its header), restores sp/fp/pc from the frame's
// dynamic link and return address, and — for a function — leaves the
// Width-sized result where the caller's stack now expects it.
func (m *Machine) ret(w pcode.Width) error {
	var result []byte
	var err error
	if w != pcode.WidthRecord {
		result, err = m.popBytes(widthSize(w))
		if err != nil {
			return err
		}
		result = append([]byte(nil), result...)
	}

	frame := m.fp
	dynamicLink := binary.LittleEndian.Uint32(m.mem[frame+4:])
	returnPC := binary.LittleEndian.Uint32(m.mem[frame+8:])

	wasOutermost := dynamicLink == frame
	m.sp = frame
	m.fp = dynamicLink
	m.pc = returnPC

	if result != nil {
		if err := m.pushBytes(result); err != nil {
			return err
		}
	}
	if wasOutermost {
		return stopMachine{}
	}
	return nil
}

// pushLiteralStringHeader allocates a fresh (header, buffer) pair on the
// string stack for a string literal and pushes the header's address —
// every string value on the Pascal stack is a header address, never raw
// bytes, so literals are materialized the same way a variable's buffer
// is, per spec.md §4.5's string representation.
func (m *Machine) pushLiteralStringHeader(s string) error {
	block, err := m.AllocStringStack(uint16(pstring.HeaderSize + len(s)))
	if err != nil {
		return err
	}
	data := block + pstring.HeaderSize
	copy(m.mem[data:], s)
	pstring.WriteHeader(m.mem, block, pstring.Header{Size: uint16(len(s)), Data: data, Capacity: uint16(len(s))})
	return m.push16(uint16(block))
}
