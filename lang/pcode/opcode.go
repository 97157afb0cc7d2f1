// Package pcode defines the logical p-code instruction set spec.md §4.2
// and §6 describe, and an Emitter façade (spec.md §4.1/§4.2) that
// translates those logical operations into the concrete byte encoding a
// lang/poff.Writer accumulates. Arithmetic/relational/conversion opcodes
// take an explicit Width operand instead of spec.md's per-width opcode
// mnemonics (ADI/ADR/ADC, ...) — seeDESIGN.md's decision on why that
// generalization is safe here.
package pcode

import "fmt"

// Op is one logical p-code operation.
type Op uint8

//nolint:revive
const (
	// Arithmetic and bitwise (operand: Width).
	OpADD Op = iota
	OpSUB
	OpMUL
	OpDIV
	OpMOD
	OpNEG
	OpABS
	OpSQR
	OpAND
	OpOR
	OpXOR
	OpNOT
	OpSHL
	OpSHR

	// Relational (operand: Width). Result is always a boolean word.
	OpEQ
	OpNEQ
	OpLT
	OpLE
	OpGT
	OpGE

	// Conversions.
	OpFLT // integer (top of stack) -> real
	OpTRC // real -> integer, truncate
	OpRND // real -> integer, round
	OpCHR // integer -> char (identity at runtime, present for type discipline)
	OpORD // char/scalar/boolean -> integer (identity at runtime)

	// Stack data movement.
	OpLDC  // push a 1-word immediate constant (operand: value)
	OpLDCR // push a 4-word real constant from RO data (operand: RO offset)
	OpLDCS // push a string constant's header, pointing into RO data (operand: RO offset, length)
	OpLAS  // push address of a variable at (level, offset)
	OpLOD  // push value of a variable at (level, offset), Width-sized
	OpSTO  // pop value, store Width-sized into variable at (level, offset)
	OpLDI  // pop address, push Width-sized value loaded from it
	OpSTI  // pop value then address, store Width-sized value through address
	OpIXA  // pop index and array base address, push element address (operand: stride)
	OpDUP  // duplicate the top one-word (2-byte) stack value
	OpPOP  // discard the top one-word (2-byte) stack value

	// Control flow.
	OpLBL // not emitted to the stream; used only by the assembler's label table
	OpJMP // unconditional jump (operand: target)
	OpFJP // pop boolean, jump if false (operand: target)
	OpTJP // pop boolean, jump if true (operand: target)
	OpENT // enter a procedure/function frame (operand: locals size in bytes)
	OpCUP // call user procedure/function (operand: static level diff, target)
	OpCSP // call standard procedure/function (operand: StdCall index)
	OpRET // return from the current frame (operand: Width of function result, WidthRecord for a procedure)

	// Sets (operand: Width of the set's base ordinal type, for SIN only).
	OpSIN // pop minValue, set, then element (elem pushed first, set second, minValue last) and push boolean membership of (element-minValue) in set
	OpSUN // pop two sets, push their union
	OpSIT // pop two sets, push their intersection
	OpSDF // pop two sets, push their difference
	OpSEX // push a set built from an explicit element count (operand: count)

	// I/O (operand: StdIOCall index); spec.md §4.6's file/text library
	// surfaced as standard-call indices rather than dedicated opcodes, to
	// keep the opcode space small.
	OpIOC

	maxOp
)

var opNames = [...]string{
	OpADD: "ADD", OpSUB: "SUB", OpMUL: "MUL", OpDIV: "DIV", OpMOD: "MOD",
	OpNEG: "NEG", OpABS: "ABS", OpSQR: "SQR", OpAND: "AND", OpOR: "OR",
	OpXOR: "XOR", OpNOT: "NOT", OpSHL: "SHL", OpSHR: "SHR",
	OpEQ: "EQ", OpNEQ: "NEQ", OpLT: "LT", OpLE: "LE", OpGT: "GT", OpGE: "GE",
	OpFLT: "FLT", OpTRC: "TRC", OpRND: "RND", OpCHR: "CHR", OpORD: "ORD",
	OpLDC: "LDC", OpLDCR: "LDCR", OpLDCS: "LDCS", OpLAS: "LAS", OpLOD: "LOD",
	OpSTO: "STO", OpLDI: "LDI", OpSTI: "STI", OpIXA: "IXA", OpDUP: "DUP",
	OpPOP: "POP", OpLBL: "LBL", OpJMP: "JMP", OpFJP: "FJP", OpTJP: "TJP",
	OpENT: "ENT", OpCUP: "CUP", OpCSP: "CSP", OpRET: "RET",
	OpSIN: "SIN", OpSUN: "SUN", OpSIT: "SIT", OpSDF: "SDF", OpSEX: "SEX",
	OpIOC: "IOC",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// Width selects the operand width arithmetic, relational, stack-movement,
// and set opcodes act over, in place of spec.md's one-opcode-per-width
// mnemonic scheme.
type Width uint8

//nolint:revive
const (
	WidthInt Width = iota
	WidthWord
	WidthShortInt
	WidthShortWord
	WidthReal
	WidthBool
	WidthChar
	WidthSet
	WidthString
	WidthPointer
	WidthRecord // operand-qualified by an explicit byte count, see Emitter.GenerateDataSize
)

func (w Width) String() string {
	names := [...]string{
		WidthInt: "INT", WidthWord: "WORD", WidthShortInt: "SINT", WidthShortWord: "SWORD",
		WidthReal: "REAL", WidthBool: "BOOL", WidthChar: "CHAR", WidthSet: "SET",
		WidthString: "STR", WidthPointer: "PTR", WidthRecord: "REC",
	}
	if int(w) < len(names) {
		return names[w]
	}
	return fmt.Sprintf("Width(%d)", uint8(w))
}

// StdCall indexes a standard procedure/function the virtual machine
// implements natively (the string library and the standard math/ordinal
// functions spec.md §4.5 lists), selected by OpCSP's operand.
type StdCall uint8

//nolint:revive
const (
	StdWriteStr StdCall = iota
	StdWriteInt
	StdWriteReal
	StdWriteBool
	StdWriteChar
	StdWriteLn
	StdReadStr
	StdReadInt
	StdReadLn
	StdStrConcat
	StdStrConcatChar
	StdStrCompare
	StdStrPos
	StdStrCopy
	StdStrInsert
	StdStrDelete
	StdStrLength
	StdNumToStr
	StdStrToNum
	StdNew
	StdDispose
	StdSqrt
	StdSin
	StdCos
	StdExp
	StdLn
	StdRandom
	StdHalt
)

// StdIOCall indexes a file-I/O primitive from spec.md §4.6, selected by
// OpIOC's operand.
type StdIOCall uint8

//nolint:revive
const (
	IOReset StdIOCall = iota
	IORewrite
	IOClose
	IORead
	IOWrite
	IOEOF
	IOEOLN
	IOSeek
	IOFilePos
	IOFileSize

	// Directory iteration (opendir/readdir/rewinddir/closedir), a distinct
	// handle namespace from the file slots above.
	IOOpenDir
	IOReadDir
	IORewindDir
	IOCloseDir
)
