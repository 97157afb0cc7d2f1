// Package poff implements a minimal version of the object-file container
// spec.md §7 names as an external collaborator: a sequential code-byte
// stream, a deduplicated read-only string/data pool, a line-number table
// mapping code offsets back to source lines, and a relocation table the
// linker consumes to patch external references. It is intentionally only
// as complete as lang/codegen and lang/pcode need to round-trip a compiled
// unit through a file and back.
package poff

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dolthub/swiss"
	"golang.org/x/exp/slices"
)

// magic identifies a POFF object file.
var magic = [4]byte{'P', 'O', 'F', 'F'}

// RelocKind distinguishes what kind of reference a Relocation patches.
type RelocKind uint8

const (
	// RelocAbs16 patches a 16-bit absolute code-segment address.
	RelocAbs16 RelocKind = iota
	// RelocExternal patches a call/reference to a symbol defined in
	// another compilation unit, resolved by the linker.
	RelocExternal
)

// Relocation records one location in the code stream that must be patched
// once final addresses are known (spec.md §7's AddRelocation).
type Relocation struct {
	Offset uint32
	Kind   RelocKind
	Symbol string // empty for RelocAbs16
	Addend int32
}

// LineEntry maps a code offset to the source line that generated it,
// spec.md §7's AddLineNumber, consumed by the disassembler and by runtime
// error reporting.
type LineEntry struct {
	Offset uint32
	Line   uint32
}

// Writer accumulates one compilation unit's code, read-only data,
// relocations, and line numbers, grounded on spec.md §7's AddByte/
// AddROString/AddLineNumber/AddRelocation calls the code generator makes
// as it emits p-code.
type Writer struct {
	Code        []byte
	roData      []byte
	roIndex     *swiss.Map[string, uint32]
	Relocations []Relocation
	Lines       []LineEntry
}

// NewWriter returns an empty Writer ready to accept emitted bytes.
func NewWriter() *Writer {
	return &Writer{roIndex: swiss.NewMap[string, uint32](8)}
}

// AddByte appends b to the code stream and returns its offset (the
// address the emitted instruction now lives at).
func (w *Writer) AddByte(b byte) uint32 {
	off := uint32(len(w.Code))
	w.Code = append(w.Code, b)
	return off
}

// AddWord appends a little-endian 16-bit word to the code stream and
// returns the offset of its first byte.
func (w *Writer) AddWord(v uint16) uint32 {
	off := w.AddByte(byte(v))
	w.AddByte(byte(v >> 8))
	return off
}

// AddROString interns s into the read-only data pool, returning its byte
// offset. Identical strings are deduplicated, matching spec.md §7's note
// that string-literal pooling is a linker/object-file concern, not a code
// generator one.
func (w *Writer) AddROString(s string) uint32 {
	if off, ok := w.roIndex.Get(s); ok {
		return off
	}
	off := uint32(len(w.roData))
	w.roData = append(w.roData, byte(len(s)), byte(len(s)>>8))
	w.roData = append(w.roData, s...)
	w.roIndex.Put(s, off)
	return off
}

// AddLineNumber records that the instruction at the current code offset
// was generated from the given source line.
func (w *Writer) AddLineNumber(line uint32) {
	w.Lines = append(w.Lines, LineEntry{Offset: uint32(len(w.Code)), Line: line})
}

// AddRelocation records a patch site at the current code offset.
func (w *Writer) AddRelocation(kind RelocKind, symbol string, addend int32) {
	w.Relocations = append(w.Relocations, Relocation{
		Offset: uint32(len(w.Code)), Kind: kind, Symbol: symbol, Addend: addend,
	})
}

// PatchWord overwrites the 16-bit word at offset off in the code stream,
// used by the single-pass emitter to back-patch forward jump targets once
// they are known (spec.md §4.1's forward-reference handling).
func (w *Writer) PatchWord(off uint32, v uint16) {
	w.Code[off] = byte(v)
	w.Code[off+1] = byte(v >> 8)
}

// Bytes serializes the accumulated unit into a POFF container.
func (w *Writer) Bytes() []byte {
	var buf bytes.Buffer
	buf.Write(magic[:])
	writeSection(&buf, w.Code)
	writeSection(&buf, w.roData)

	relocs := slices.Clone(w.Relocations)
	slices.SortFunc(relocs, func(a, b Relocation) int { return int(a.Offset) - int(b.Offset) })
	var relocBuf bytes.Buffer
	binary.Write(&relocBuf, binary.LittleEndian, uint32(len(relocs)))
	for _, r := range relocs {
		binary.Write(&relocBuf, binary.LittleEndian, r.Offset)
		relocBuf.WriteByte(byte(r.Kind))
		binary.Write(&relocBuf, binary.LittleEndian, r.Addend)
		sym := []byte(r.Symbol)
		binary.Write(&relocBuf, binary.LittleEndian, uint16(len(sym)))
		relocBuf.Write(sym)
	}
	writeSection(&buf, relocBuf.Bytes())

	var lineBuf bytes.Buffer
	binary.Write(&lineBuf, binary.LittleEndian, uint32(len(w.Lines)))
	for _, l := range w.Lines {
		binary.Write(&lineBuf, binary.LittleEndian, l.Offset)
		binary.Write(&lineBuf, binary.LittleEndian, l.Line)
	}
	writeSection(&buf, lineBuf.Bytes())

	return buf.Bytes()
}

func writeSection(buf *bytes.Buffer, data []byte) {
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
}

// Object is a parsed POFF container, as read back by Load.
type Object struct {
	Code        []byte
	ROData      []byte
	Relocations []Relocation
	Lines       []LineEntry
}

// ROString reads the length-prefixed string interned at offset off in
// ROData (the offset AddROString returned when writing the unit).
func (o *Object) ROString(off uint32) string {
	n := uint16(o.ROData[off]) | uint16(o.ROData[off+1])<<8
	return string(o.ROData[off+2 : off+2+uint32(n)])
}

// Load parses a POFF container previously produced by Writer.Bytes.
func Load(data []byte) (*Object, error) {
	if len(data) < 4 || !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("poff: bad magic")
	}
	r := bytes.NewReader(data[4:])

	code, err := readSection(r)
	if err != nil {
		return nil, fmt.Errorf("poff: code section: %w", err)
	}
	roData, err := readSection(r)
	if err != nil {
		return nil, fmt.Errorf("poff: rodata section: %w", err)
	}
	relocRaw, err := readSection(r)
	if err != nil {
		return nil, fmt.Errorf("poff: relocation section: %w", err)
	}
	lineRaw, err := readSection(r)
	if err != nil {
		return nil, fmt.Errorf("poff: line section: %w", err)
	}

	relocs, err := parseRelocations(relocRaw)
	if err != nil {
		return nil, err
	}
	lines, err := parseLines(lineRaw)
	if err != nil {
		return nil, err
	}

	return &Object{Code: code, ROData: roData, Relocations: relocs, Lines: lines}, nil
}

func readSection(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil && n > 0 {
		return nil, err
	}
	return buf, nil
}

func parseRelocations(data []byte) ([]Relocation, error) {
	r := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	out := make([]Relocation, 0, count)
	for i := uint32(0); i < count; i++ {
		var rec Relocation
		if err := binary.Read(r, binary.LittleEndian, &rec.Offset); err != nil {
			return nil, err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		rec.Kind = RelocKind(kind)
		if err := binary.Read(r, binary.LittleEndian, &rec.Addend); err != nil {
			return nil, err
		}
		var symLen uint16
		if err := binary.Read(r, binary.LittleEndian, &symLen); err != nil {
			return nil, err
		}
		sym := make([]byte, symLen)
		if symLen > 0 {
			if _, err := r.Read(sym); err != nil {
				return nil, err
			}
		}
		rec.Symbol = string(sym)
		out = append(out, rec)
	}
	return out, nil
}

func parseLines(data []byte) ([]LineEntry, error) {
	r := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	out := make([]LineEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var e LineEntry
		if err := binary.Read(r, binary.LittleEndian, &e.Offset); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &e.Line); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// LineForOffset returns the source line recorded for the instruction at
// or immediately before off, or 0 if none is recorded (used by the
// virtual machine's runtime error reporting, spec.md §4.7).
func (o *Object) LineForOffset(off uint32) uint32 {
	best := uint32(0)
	for _, l := range o.Lines {
		if l.Offset <= off {
			best = l.Line
		} else {
			break
		}
	}
	return best
}
