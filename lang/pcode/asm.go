package pcode

import (
	"fmt"
	"strings"

	"github.com/mna/pascal/lang/poff"
)

// Instruction is one decoded p-code instruction, as produced by Disasm.
type Instruction struct {
	Offset uint32
	Op     Op
	Text   string // operands already formatted, e.g. "INT" or "1, 4, INT"
	Len    uint32 // total encoded length in bytes, including the opcode byte
}

func readWord(code []byte, off uint32) uint16 {
	return uint16(code[off]) | uint16(code[off+1])<<8
}

// Disasm decodes obj's code stream into a flat instruction list, mirroring
// the encoding Emitter produces byte for byte. It is the basis for both a
// human-readable listing (Format) and for any tooling (tests, a future
// linker) that needs to walk instruction boundaries without re-deriving
// the opcode table's operand shapes.
func Disasm(obj *poff.Object) ([]Instruction, error) {
	var out []Instruction
	code := obj.Code
	off := uint32(0)
	for off < uint32(len(code)) {
		start := off
		op := Op(code[off])
		off++

		var text string
		switch op {
		case OpADD, OpSUB, OpMUL, OpDIV, OpMOD, OpNEG, OpABS, OpSQR,
			OpAND, OpOR, OpXOR, OpNOT, OpSHL, OpSHR,
			OpEQ, OpNEQ, OpLT, OpLE, OpGT, OpGE:
			w := Width(code[off])
			off++
			text = w.String()

		case OpFLT, OpTRC, OpRND, OpCHR, OpORD, OpDUP, OpPOP, OpLBL:
			// no operand

		case OpLDC:
			text = fmt.Sprintf("%d", readWord(code, off))
			off += 2

		case OpLDCR:
			roOff := readWord(code, off)
			off += 2
			text = fmt.Sprintf("ro=%d", roOff)

		case OpLDCS:
			roOff := readWord(code, off)
			off += 2
			n := readWord(code, off)
			off += 2
			text = fmt.Sprintf("ro=%d, len=%d", roOff, n)

		case OpLAS:
			levelDiff := readWord(code, off)
			off += 2
			offset := readWord(code, off)
			off += 2
			text = fmt.Sprintf("%d, %d", levelDiff, offset)

		case OpLOD, OpSTO:
			levelDiff := readWord(code, off)
			off += 2
			offset := readWord(code, off)
			off += 2
			w := Width(code[off])
			off++
			text = fmt.Sprintf("%d, %d, %s", levelDiff, offset, w)

		case OpLDI, OpSTI:
			w := Width(code[off])
			off++
			text = w.String()

		case OpIXA:
			stride := readWord(code, off)
			off += 2
			text = fmt.Sprintf("stride=%d", stride)

		case OpJMP, OpFJP, OpTJP:
			target := readWord(code, off)
			off += 2
			text = fmt.Sprintf("-> %d", target)

		case OpENT:
			size := readWord(code, off)
			off += 2
			text = fmt.Sprintf("size=%d", size)

		case OpCUP:
			levelDiff := readWord(code, off)
			off += 2
			target := readWord(code, off)
			off += 2
			text = fmt.Sprintf("%d, -> %d", levelDiff, target)

		case OpCSP:
			idx := code[off]
			off++
			text = StdCall(idx).String()

		case OpRET:
			w := Width(code[off])
			off++
			text = w.String()

		case OpSIN, OpSUN, OpSIT, OpSDF:
			w := Width(code[off])
			off++
			text = w.String()

		case OpSEX:
			count := readWord(code, off)
			off += 2
			text = fmt.Sprintf("count=%d", count)

		case OpIOC:
			idx := code[off]
			off++
			text = StdIOCall(idx).String()

		default:
			return nil, fmt.Errorf("pcode: disasm: unknown opcode %d at offset %d", op, start)
		}

		out = append(out, Instruction{Offset: start, Op: op, Text: text, Len: off - start})
	}
	return out, nil
}

func (c StdCall) String() string {
	names := [...]string{
		StdWriteStr: "WriteStr", StdWriteInt: "WriteInt", StdWriteReal: "WriteReal",
		StdWriteBool: "WriteBool", StdWriteChar: "WriteChar", StdWriteLn: "WriteLn",
		StdReadStr: "ReadStr", StdReadInt: "ReadInt", StdReadLn: "ReadLn",
		StdStrConcat: "StrConcat", StdStrConcatChar: "StrConcatChar",
		StdStrCompare: "StrCompare", StdStrPos: "StrPos", StdStrCopy: "StrCopy",
		StdStrInsert: "StrInsert", StdStrDelete: "StrDelete", StdStrLength: "StrLength",
		StdNumToStr: "NumToStr", StdStrToNum: "StrToNum", StdNew: "New",
		StdDispose: "Dispose", StdSqrt: "Sqrt", StdSin: "Sin", StdCos: "Cos",
		StdExp: "Exp", StdLn: "Ln", StdRandom: "Random", StdHalt: "Halt",
	}
	if int(c) < len(names) && names[c] != "" {
		return names[c]
	}
	return fmt.Sprintf("StdCall(%d)", uint8(c))
}

func (c StdIOCall) String() string {
	names := [...]string{
		IOReset: "Reset", IORewrite: "Rewrite", IOClose: "Close", IORead: "Read",
		IOWrite: "Write", IOEOF: "EOF", IOEOLN: "EOLN", IOSeek: "Seek",
		IOFilePos: "FilePos", IOFileSize: "FileSize", IOOpenDir: "OpenDir",
		IOReadDir: "ReadDir", IORewindDir: "RewindDir", IOCloseDir: "CloseDir",
	}
	if int(c) < len(names) {
		return names[c]
	}
	return fmt.Sprintf("StdIOCall(%d)", uint8(c))
}

// Format renders a decoded instruction list as a human-readable listing,
// one instruction per line, annotated with the source line recorded for
// it (when available) — what the `disasm` command prints.
func Format(obj *poff.Object, instrs []Instruction) string {
	var b strings.Builder
	for _, in := range instrs {
		line := obj.LineForOffset(in.Offset)
		fmt.Fprintf(&b, "%5d  L%-4d %-6s %s\n", in.Offset, line, in.Op, in.Text)
	}
	return b.String()
}
