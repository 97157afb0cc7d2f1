package vm

import (
	"encoding/binary"
	"math"

	"github.com/mna/pascal/lang/pcode"
)

// loadFromAddr reads a Width-sized value out of addr and pushes it onto
// the operand stack.
func (m *Machine) loadFromAddr(addr uint32, w pcode.Width) error {
	n := widthSize(w)
	return m.pushBytes(append([]byte(nil), m.mem[addr:addr+n]...))
}

// storeToAddr pops a Width-sized value off the operand stack and writes
// it into addr.
func (m *Machine) storeToAddr(addr uint32, w pcode.Width) error {
	n := widthSize(w)
	b, err := m.popBytes(n)
	if err != nil {
		return err
	}
	copy(m.mem[addr:addr+n], b)
	return nil
}

func (m *Machine) popOperand(w pcode.Width) ([]byte, error) {
	n := widthSize(w)
	b, err := m.popBytes(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (m *Machine) storeOperand(addr uint32, w pcode.Width, val []byte) error {
	copy(m.mem[addr:addr+widthSize(w)], val)
	return nil
}

func asInt16(b []byte) int16  { return int16(binary.LittleEndian.Uint16(b)) }
func asWord16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func asReal(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }

func put16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func putReal(f float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(f))
	return b
}

func boolWord(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

// unaryOp implements the width-fixed conversions: NOT (boolean), FLT
// (integer->real), TRC/RND (real->integer), CHR/ORD (identity reinterpret
// of an ordinal value).
func (m *Machine) unaryOp(op pcode.Op) error {
	switch op {
	case pcode.OpNOT:
		v, err := m.pop16()
		if err != nil {
			return err
		}
		return m.push16(boolWord(v == 0))

	case pcode.OpFLT:
		v, err := m.pop16()
		if err != nil {
			return err
		}
		return m.pushReal(float64(int16(v)))

	case pcode.OpTRC:
		f, err := m.popReal()
		if err != nil {
			return err
		}
		return m.push16(uint16(int16(math.Trunc(f))))

	case pcode.OpRND:
		f, err := m.popReal()
		if err != nil {
			return err
		}
		return m.push16(uint16(int16(math.Round(f))))

	case pcode.OpCHR, pcode.OpORD:
		return nil // identity: the stack already holds the right bit pattern

	default:
		return m.fault("unaryOp: unsupported opcode %s", op)
	}
}

// unaryDataOp implements NEG/ABS/SQR, width-qualified between integer and
// real representations.
func (m *Machine) unaryDataOp(op pcode.Op, w pcode.Width) error {
	if w == pcode.WidthReal {
		f, err := m.popReal()
		if err != nil {
			return err
		}
		switch op {
		case pcode.OpNEG:
			f = -f
		case pcode.OpABS:
			f = math.Abs(f)
		case pcode.OpSQR:
			f = f * f
		}
		return m.pushReal(f)
	}

	v, err := m.pop16()
	if err != nil {
		return err
	}
	n := int16(v)
	switch op {
	case pcode.OpNEG:
		n = -n
	case pcode.OpABS:
		if n < 0 {
			n = -n
		}
	case pcode.OpSQR:
		n = n * n
	}
	return m.push16(uint16(n))
}

// binaryOp implements arithmetic, bitwise, and relational opcodes,
// qualified by operand width. Integer division (DIV) and modulo (MOD)
// use Go's truncating semantics, matching Pascal's DIV/MOD rather than
// floored division, per spec.md §4.1's integer-arithmetic note.
func (m *Machine) binaryOp(op pcode.Op, w pcode.Width) error {
	if w == pcode.WidthReal {
		return m.binaryRealOp(op)
	}

	rb, err := m.pop16()
	if err != nil {
		return err
	}
	lb, err := m.pop16()
	if err != nil {
		return err
	}

	if isRelational(op) {
		return m.push16(boolWord(compareInt(op, lb, rb, w)))
	}

	l, r := int16(lb), int16(rb)
	if w == pcode.WidthWord || w == pcode.WidthShortWord {
		return m.push16(wordArith(op, lb, rb))
	}

	var result int16
	switch op {
	case pcode.OpADD:
		result = l + r
	case pcode.OpSUB:
		result = l - r
	case pcode.OpMUL:
		result = l * r
	case pcode.OpDIV:
		if r == 0 {
			return m.fault("division by zero")
		}
		result = l / r
	case pcode.OpMOD:
		if r == 0 {
			return m.fault("division by zero")
		}
		result = l % r
	case pcode.OpAND:
		result = l & r
	case pcode.OpOR:
		result = l | r
	case pcode.OpXOR:
		result = l ^ r
	case pcode.OpSHL:
		result = l << uint(r)
	case pcode.OpSHR:
		result = l >> uint(r)
	default:
		return m.fault("binaryOp: unsupported opcode %s", op)
	}
	return m.push16(uint16(result))
}

func wordArith(op pcode.Op, l, r uint16) uint16 {
	switch op {
	case pcode.OpADD:
		return l + r
	case pcode.OpSUB:
		return l - r
	case pcode.OpMUL:
		return l * r
	case pcode.OpDIV:
		if r == 0 {
			return 0
		}
		return l / r
	case pcode.OpMOD:
		if r == 0 {
			return 0
		}
		return l % r
	case pcode.OpAND:
		return l & r
	case pcode.OpOR:
		return l | r
	case pcode.OpXOR:
		return l ^ r
	case pcode.OpSHL:
		return l << r
	case pcode.OpSHR:
		return l >> r
	}
	return 0
}

func isRelational(op pcode.Op) bool {
	switch op {
	case pcode.OpEQ, pcode.OpNEQ, pcode.OpLT, pcode.OpLE, pcode.OpGT, pcode.OpGE:
		return true
	}
	return false
}

func compareInt(op pcode.Op, lb, rb uint16, w pcode.Width) bool {
	if w == pcode.WidthWord || w == pcode.WidthShortWord || w == pcode.WidthBool ||
		w == pcode.WidthChar || w == pcode.WidthPointer || w == pcode.WidthString {
		switch op {
		case pcode.OpEQ:
			return lb == rb
		case pcode.OpNEQ:
			return lb != rb
		case pcode.OpLT:
			return lb < rb
		case pcode.OpLE:
			return lb <= rb
		case pcode.OpGT:
			return lb > rb
		case pcode.OpGE:
			return lb >= rb
		}
	}
	l, r := int16(lb), int16(rb)
	switch op {
	case pcode.OpEQ:
		return l == r
	case pcode.OpNEQ:
		return l != r
	case pcode.OpLT:
		return l < r
	case pcode.OpLE:
		return l <= r
	case pcode.OpGT:
		return l > r
	case pcode.OpGE:
		return l >= r
	}
	return false
}

func (m *Machine) binaryRealOp(op pcode.Op) error {
	r, err := m.popReal()
	if err != nil {
		return err
	}
	l, err := m.popReal()
	if err != nil {
		return err
	}
	switch op {
	case pcode.OpADD:
		return m.pushReal(l + r)
	case pcode.OpSUB:
		return m.pushReal(l - r)
	case pcode.OpMUL:
		return m.pushReal(l * r)
	case pcode.OpDIV:
		if r == 0 {
			return m.fault("division by zero")
		}
		return m.pushReal(l / r)
	case pcode.OpEQ:
		return m.push16(boolWord(l == r))
	case pcode.OpNEQ:
		return m.push16(boolWord(l != r))
	case pcode.OpLT:
		return m.push16(boolWord(l < r))
	case pcode.OpLE:
		return m.push16(boolWord(l <= r))
	case pcode.OpGT:
		return m.push16(boolWord(l > r))
	case pcode.OpGE:
		return m.push16(boolWord(l >= r))
	default:
		return m.fault("binaryRealOp: unsupported opcode %s", op)
	}
}

// setOp implements SIN (membership) and the SUN/SIT/SDF set-algebra
// opcodes over SetSize-byte bitmaps.
func (m *Machine) setOp(op pcode.Op) error {
	if op == pcode.OpSIN {
		// "elem IN set" evaluates and pushes elem first, set second (left to
		// right, per spec.md §5's program-order rule), then the set's base
		// type's MinValue last, so minValue is popped first, then the set
		// bitmap, then elem — lang/codegen emits the minValue constant as
		// the final operand right before this opcode.
		minVal, err := m.pop16()
		if err != nil {
			return err
		}
		set, err := m.popBytes(SetSize)
		if err != nil {
			return err
		}
		elem, err := m.pop16()
		if err != nil {
			return err
		}
		adjusted := uint16(int16(elem) - int16(minVal))
		byteIdx, bit := adjusted/8, adjusted%8
		member := byteIdx < SetSize && set[byteIdx]&(1<<bit) != 0
		return m.push16(boolWord(member))
	}

	rb, err := m.popBytes(SetSize)
	if err != nil {
		return err
	}
	r := append([]byte(nil), rb...)
	lb, err := m.popBytes(SetSize)
	if err != nil {
		return err
	}
	result := make([]byte, SetSize)
	for i := 0; i < SetSize; i++ {
		switch op {
		case pcode.OpSUN:
			result[i] = lb[i] | r[i]
		case pcode.OpSIT:
			result[i] = lb[i] & r[i]
		case pcode.OpSDF:
			result[i] = lb[i] &^ r[i]
		}
	}
	return m.pushBytes(result)
}

// setBit sets ordinal elem's bit in set, if it falls within SetSize's
// representable range.
func setBit(set []byte, elem uint16) {
	byteIdx, bit := elem/8, elem%8
	if byteIdx < SetSize {
		set[byteIdx] |= 1 << bit
	}
}

// setConstructor implements SEX: pops count set-element slots (each a
// trailing marker word — setElemSingle or setElemRange, per lang/codegen —
// followed by one ordinal value for a singleton or two, lo then hi pushed
// in that order, for a '..' range) and pushes a SetSize-byte bitmap with
// every named ordinal's bit set, expanding ranges to every ordinal they
// span rather than just their two endpoints.
func (m *Machine) setConstructor(count uint16) error {
	set := make([]byte, SetSize)
	for i := uint16(0); i < count; i++ {
		marker, err := m.pop16()
		if err != nil {
			return err
		}
		if marker == 1 { // range: hi is on top (pushed after lo), then lo
			hi, err := m.pop16()
			if err != nil {
				return err
			}
			lo, err := m.pop16()
			if err != nil {
				return err
			}
			for e := lo; e <= hi; e++ {
				setBit(set, e)
				if e == 0xFFFF {
					break
				}
			}
		} else {
			elem, err := m.pop16()
			if err != nil {
				return err
			}
			setBit(set, elem)
		}
	}
	return m.pushBytes(set)
}
