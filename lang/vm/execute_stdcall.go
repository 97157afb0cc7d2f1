package vm

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/mna/pascal/lang/pcode"
	"github.com/mna/pascal/lang/pstring"
	"github.com/mna/pascal/lang/sysio"
)

// standardCall implements the natively provided procedures/functions
// spec.md §4.5 lists, selected by CSP's StdCall operand. Arguments are
// popped in the reverse of the order lang/codegen pushes them (the
// standard LIFO calling discipline for this machine's standard-call
// sequences); each case documents the order it expects.
func (m *Machine) standardCall(call pcode.StdCall) error {
	switch call {
	case pcode.StdWriteStr:
		addr, err := m.pop16()
		if err != nil {
			return err
		}
		h := pstring.ReadHeader(m.mem, uint32(addr))
		return m.io.WriteString(sysio.SlotOutput, string(m.mem[h.Data:h.Data+uint32(h.Size)]))

	case pcode.StdWriteInt:
		v, err := m.pop16()
		if err != nil {
			return err
		}
		return m.io.WriteString(sysio.SlotOutput, fmt.Sprintf("%d", int16(v)))

	case pcode.StdWriteReal:
		f, err := m.popReal()
		if err != nil {
			return err
		}
		return m.io.WriteString(sysio.SlotOutput, fmt.Sprintf("%g", f))

	case pcode.StdWriteBool:
		v, err := m.pop16()
		if err != nil {
			return err
		}
		s := "FALSE"
		if v != 0 {
			s = "TRUE"
		}
		return m.io.WriteString(sysio.SlotOutput, s)

	case pcode.StdWriteChar:
		v, err := m.pop16()
		if err != nil {
			return err
		}
		return m.io.WriteString(sysio.SlotOutput, string(rune(byte(v))))

	case pcode.StdWriteLn:
		return m.io.WriteString(sysio.SlotOutput, "\n")

	case pcode.StdReadStr:
		addr, err := m.pop16()
		if err != nil {
			return err
		}
		line, err := m.io.ReadLine(sysio.SlotInput)
		if err != nil {
			return err
		}
		pstring.AssignLiteral(m, uint32(addr), line)
		return nil

	case pcode.StdReadInt:
		addr, err := m.pop16()
		if err != nil {
			return err
		}
		line, err := m.io.ReadLine(sysio.SlotInput)
		if err != nil {
			return err
		}
		var n int
		if _, err := fmt.Sscanf(line, "%d", &n); err != nil {
			return m.fault("ReadInt: not an integer: %q", line)
		}
		m.storeRaw(uint32(addr), put16(uint16(int16(n))))
		return nil

	case pcode.StdReadLn:
		_, err := m.io.ReadLine(sysio.SlotInput)
		return err

	case pcode.StdStrConcat:
		src, err := m.pop16()
		if err != nil {
			return err
		}
		dst, err := m.pop16()
		if err != nil {
			return err
		}
		pstring.Concat(m, uint32(dst), uint32(src))
		return nil

	case pcode.StdStrConcatChar:
		ch, err := m.pop16()
		if err != nil {
			return err
		}
		dst, err := m.pop16()
		if err != nil {
			return err
		}
		pstring.ConcatChar(m, uint32(dst), byte(ch))
		return nil

	case pcode.StdStrCompare:
		b, err := m.pop16()
		if err != nil {
			return err
		}
		a, err := m.pop16()
		if err != nil {
			return err
		}
		return m.push16(uint16(int16(pstring.Compare(m.mem, uint32(a), uint32(b)))))

	case pcode.StdStrPos:
		hay, err := m.pop16()
		if err != nil {
			return err
		}
		needle, err := m.pop16()
		if err != nil {
			return err
		}
		return m.push16(uint16(pstring.Pos(m.mem, uint32(needle), uint32(hay))))

	case pcode.StdStrCopy:
		count, err := m.pop16()
		if err != nil {
			return err
		}
		index, err := m.pop16()
		if err != nil {
			return err
		}
		src, err := m.pop16()
		if err != nil {
			return err
		}
		dst, err := m.pop16()
		if err != nil {
			return err
		}
		pstring.Copy(m, uint32(dst), uint32(src), int(index), int(count))
		return nil

	case pcode.StdStrInsert:
		index, err := m.pop16()
		if err != nil {
			return err
		}
		dst, err := m.pop16()
		if err != nil {
			return err
		}
		src, err := m.pop16()
		if err != nil {
			return err
		}
		pstring.Insert(m, uint32(src), uint32(dst), int(index))
		return nil

	case pcode.StdStrDelete:
		count, err := m.pop16()
		if err != nil {
			return err
		}
		index, err := m.pop16()
		if err != nil {
			return err
		}
		dst, err := m.pop16()
		if err != nil {
			return err
		}
		pstring.Delete(m, uint32(dst), int(index), int(count))
		return nil

	case pcode.StdStrLength:
		addr, err := m.pop16()
		if err != nil {
			return err
		}
		h := pstring.ReadHeader(m.mem, uint32(addr))
		return m.push16(h.Size)

	case pcode.StdNumToStr:
		dst, err := m.pop16()
		if err != nil {
			return err
		}
		v, err := m.pop16()
		if err != nil {
			return err
		}
		pstring.NumToStr(m, uint32(dst), int64(int16(v)))
		return nil

	case pcode.StdStrToNum:
		// Val(s, v, code): s pushed first, then the VAR-parameter addresses
		// of v and code, so they pop in the reverse order (code, v, s).
		codeAddr, err := m.pop16()
		if err != nil {
			return err
		}
		vAddr, err := m.pop16()
		if err != nil {
			return err
		}
		srcAddr, err := m.pop16()
		if err != nil {
			return err
		}
		v, errIndex, ok := pstring.StrToNum(m.mem, uint32(srcAddr))
		if !ok {
			m.storeRaw(uint32(codeAddr), put16(uint16(errIndex)))
			return nil
		}
		m.storeRaw(uint32(vAddr), put16(uint16(int16(v))))
		m.storeRaw(uint32(codeAddr), put16(0))
		return nil

	case pcode.StdNew:
		size, err := m.pop16()
		if err != nil {
			return err
		}
		ptrAddr, err := m.pop16()
		if err != nil {
			return err
		}
		addr, err := m.hp.Allocate(uint32(size))
		if err != nil {
			return m.fault("New: %s", err)
		}
		m.storeRaw(uint32(ptrAddr), put16(uint16(addr)))
		return nil

	case pcode.StdDispose:
		ptrAddr, err := m.pop16()
		if err != nil {
			return err
		}
		val := asWord16(m.mem[ptrAddr : ptrAddr+2])
		if err := m.hp.Free(uint32(val)); err != nil {
			return m.fault("Dispose: %s", err)
		}
		return nil

	case pcode.StdSqrt:
		return m.realFn(math.Sqrt)
	case pcode.StdSin:
		return m.realFn(math.Sin)
	case pcode.StdCos:
		return m.realFn(math.Cos)
	case pcode.StdExp:
		return m.realFn(math.Exp)
	case pcode.StdLn:
		return m.realFn(math.Log)

	case pcode.StdRandom:
		return m.pushReal(rand.Float64())

	case pcode.StdHalt:
		return haltError{}

	default:
		return m.fault("standardCall: unimplemented %s", call)
	}
}

func (m *Machine) realFn(fn func(float64) float64) error {
	f, err := m.popReal()
	if err != nil {
		return err
	}
	return m.pushReal(fn(f))
}

// storeRaw writes val directly into addr, bypassing the operand stack —
// used by StdNew to write a freshly allocated pointer value back into a
// VAR-parameter address already popped off the stack.
func (m *Machine) storeRaw(addr uint32, val []byte) {
	copy(m.mem[addr:addr+uint32(len(val))], val)
}

// ioCall implements the file-I/O primitives of spec.md §4.6, selected by
// IOC's StdIOCall operand.
func (m *Machine) ioCall(call pcode.StdIOCall) error {
	switch call {
	case pcode.IOReset, pcode.IORewrite:
		nameAddr, err := m.pop16()
		if err != nil {
			return err
		}
		slotAddr, err := m.pop16()
		if err != nil {
			return err
		}
		h := pstring.ReadHeader(m.mem, uint32(nameAddr))
		name := string(m.mem[h.Data : h.Data+uint32(h.Size)])
		var slot int
		if call == pcode.IOReset {
			slot, err = m.io.Reset(name, true)
		} else {
			slot, err = m.io.Rewrite(name, true)
		}
		if err != nil {
			return m.fault("%s %q: %s", call, name, err)
		}
		m.storeRaw(uint32(slotAddr), put16(uint16(slot)))
		return nil

	case pcode.IOClose:
		slot, err := m.pop16()
		if err != nil {
			return err
		}
		return m.io.Close(int(slot))

	case pcode.IOWrite:
		strAddr, err := m.pop16()
		if err != nil {
			return err
		}
		slot, err := m.pop16()
		if err != nil {
			return err
		}
		h := pstring.ReadHeader(m.mem, uint32(strAddr))
		return m.io.WriteString(int(slot), string(m.mem[h.Data:h.Data+uint32(h.Size)]))

	case pcode.IORead:
		dstAddr, err := m.pop16()
		if err != nil {
			return err
		}
		slot, err := m.pop16()
		if err != nil {
			return err
		}
		line, err := m.io.ReadLine(int(slot))
		if err != nil {
			return err
		}
		pstring.AssignLiteral(m, uint32(dstAddr), line)
		return nil

	case pcode.IOEOF:
		slot, err := m.pop16()
		if err != nil {
			return err
		}
		eof, err := m.io.Eof(int(slot))
		if err != nil {
			return err
		}
		return m.push16(boolWord(eof))

	case pcode.IOEOLN:
		slot, err := m.pop16()
		if err != nil {
			return err
		}
		eoln, err := m.io.Eoln(int(slot))
		if err != nil {
			return err
		}
		return m.push16(boolWord(eoln))

	case pcode.IOOpenDir:
		// pushed handleAddr (a VAR-parameter address), then path, so they pop
		// in the reverse order: path first, handleAddr second.
		pathAddr, err := m.pop16()
		if err != nil {
			return err
		}
		handleAddr, err := m.pop16()
		if err != nil {
			return err
		}
		h := pstring.ReadHeader(m.mem, uint32(pathAddr))
		path := string(m.mem[h.Data : h.Data+uint32(h.Size)])
		handle, err := m.dirs.OpenDir(path)
		if err != nil {
			return m.fault("opendir %q: %s", path, err)
		}
		m.storeRaw(uint32(handleAddr), put16(uint16(handle)))
		return nil

	case pcode.IOReadDir:
		// pushed handle, nameAddr, attrAddr, so they pop in the reverse order:
		// attrAddr first, nameAddr second, handle third.
		attrAddr, err := m.pop16()
		if err != nil {
			return err
		}
		nameAddr, err := m.pop16()
		if err != nil {
			return err
		}
		handle, err := m.pop16()
		if err != nil {
			return err
		}
		rec, ok, err := m.dirs.ReadDir(int(handle))
		if err != nil {
			return err
		}
		if ok {
			pstring.AssignLiteral(m, uint32(nameAddr), rec.Name)
			m.storeRaw(uint32(attrAddr), put16(rec.Attr))
		}
		return m.push16(boolWord(ok))

	case pcode.IORewindDir:
		handle, err := m.pop16()
		if err != nil {
			return err
		}
		return m.dirs.RewindDir(int(handle))

	case pcode.IOCloseDir:
		handle, err := m.pop16()
		if err != nil {
			return err
		}
		return m.dirs.CloseDir(int(handle))

	default:
		return m.fault("ioCall: unimplemented %s", call)
	}
}
