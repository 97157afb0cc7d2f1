// Package pstring implements the runtime string library spec.md §4.5
// calls for: fixed-layout string headers (size, data pointer, capacity)
// over a flat byte buffer, backed either by the string stack (bump
// allocated, reclaimed only in bulk by rewinding the bump pointer) or by the heap
// (individually freed), selected by the high bit of the capacity word —
// see lang/heap's HeapStringFlag.
package pstring

import (
	"fmt"
	"strconv"

	"github.com/mna/pascal/lang/heap"
)

// HeaderSize is the byte size of a string variable's in-memory header:
// three 16-bit words (size, data offset, capacity), per spec.md §3/§6.
const HeaderSize = 6

// Runtime is the subset of the virtual machine's memory services the
// string library needs: the flat backing buffer, the string-stack bump
// allocator, and the heap allocator, each addressed by plain byte offset.
type Runtime interface {
	Bytes() []byte
	AllocStringStack(size uint16) (addr uint32, err error)
	Heap() *heap.Heap
}

// Header is the decoded form of a string variable's 6-byte header.
type Header struct {
	Size     uint16
	Data     uint32
	Capacity uint16 // high bit is heap.HeapStringFlag
}

// IsHeapBacked reports whether the header's buffer lives on the heap
// rather than the string stack.
func (h Header) IsHeapBacked() bool { return h.Capacity&heap.HeapStringFlag != 0 }

// Cap returns the usable buffer capacity, with the heap-backed flag bit
// stripped off.
func (h Header) Cap() uint16 { return h.Capacity &^ heap.HeapStringFlag }

func readU16(mem []byte, off uint32) uint16 {
	return uint16(mem[off]) | uint16(mem[off+1])<<8
}

func writeU16(mem []byte, off uint32, v uint16) {
	mem[off] = byte(v)
	mem[off+1] = byte(v >> 8)
}

// ReadHeader decodes the string header at addr.
func ReadHeader(mem []byte, addr uint32) Header {
	return Header{
		Size:     readU16(mem, addr),
		Data:     uint32(readU16(mem, addr+2)),
		Capacity: readU16(mem, addr+4),
	}
}

// WriteHeader encodes h at addr.
func WriteHeader(mem []byte, addr uint32, h Header) {
	writeU16(mem, addr, h.Size)
	writeU16(mem, addr+2, uint16(h.Data))
	writeU16(mem, addr+4, h.Capacity)
}

// bytesOf returns the live byte contents (not including the header) a
// header at addr currently describes.
func bytesOf(mem []byte, h Header) []byte {
	return mem[h.Data : h.Data+uint32(h.Size)]
}

// Init writes an empty string header at addr, allocating a capacity-byte
// buffer on the string stack. Implements the INITSTR runtime call spec.md
// §4.5 lists for local string variable entry.
func Init(rt Runtime, addr uint32, capacity uint16) error {
	data, err := rt.AllocStringStack(capacity)
	if err != nil {
		return fmt.Errorf("pstring.Init: %w", err)
	}
	WriteHeader(rt.Bytes(), addr, Header{Size: 0, Data: data, Capacity: capacity})
	return nil
}

// Assign copies src's contents into dst's buffer, truncating if dst's
// capacity is smaller than src's length (ASSIGNSTR2 in spec.md §4.5).
func Assign(rt Runtime, dstAddr, srcAddr uint32) {
	mem := rt.Bytes()
	src := ReadHeader(mem, srcAddr)
	dst := ReadHeader(mem, dstAddr)
	n := src.Size
	if cap := dst.Cap(); n > cap {
		n = cap
	}
	copy(mem[dst.Data:dst.Data+uint32(n)], mem[src.Data:src.Data+uint32(src.Size)])
	dst.Size = n
	WriteHeader(mem, dstAddr, dst)
}

// AssignLiteral copies a compile-time constant string into dst's buffer,
// truncating to dst's capacity.
func AssignLiteral(rt Runtime, dstAddr uint32, s string) {
	mem := rt.Bytes()
	dst := ReadHeader(mem, dstAddr)
	n := uint16(len(s))
	if cap := dst.Cap(); n > cap {
		n = cap
	}
	copy(mem[dst.Data:dst.Data+uint32(n)], s[:n])
	dst.Size = n
	WriteHeader(mem, dstAddr, dst)
}

// Concat appends src's contents to dst, truncating to dst's capacity
// (CONCAT in spec.md §4.5).
func Concat(rt Runtime, dstAddr, srcAddr uint32) {
	mem := rt.Bytes()
	dst := ReadHeader(mem, dstAddr)
	src := ReadHeader(mem, srcAddr)
	room := dst.Cap() - dst.Size
	n := src.Size
	if n > room {
		n = room
	}
	copy(mem[dst.Data+uint32(dst.Size):dst.Data+uint32(dst.Size)+uint32(n)], mem[src.Data:src.Data+uint32(n)])
	dst.Size += n
	WriteHeader(mem, dstAddr, dst)
}

// ConcatChar appends a single character to dst, if there is room
// (CONCATCH in spec.md §4.5).
func ConcatChar(rt Runtime, dstAddr uint32, ch byte) {
	mem := rt.Bytes()
	dst := ReadHeader(mem, dstAddr)
	if dst.Size >= dst.Cap() {
		return
	}
	mem[dst.Data+uint32(dst.Size)] = ch
	dst.Size++
	WriteHeader(mem, dstAddr, dst)
}

// Compare returns -1, 0, or 1 according to lexical byte comparison of a
// and b's contents, with shorter-is-less on a common prefix, matching
// Pascal's string relational operators (spec.md §4.5's COMPSTR family).
func Compare(mem []byte, aAddr, bAddr uint32) int {
	a := bytesOf(mem, ReadHeader(mem, aAddr))
	b := bytesOf(mem, ReadHeader(mem, bAddr))
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Pos returns the 1-based index of needle's first occurrence within
// haystack, or 0 if not found (the POS standard function, spec.md §4.5).
func Pos(mem []byte, needleAddr, haystackAddr uint32) int {
	needle := bytesOf(mem, ReadHeader(mem, needleAddr))
	hay := bytesOf(mem, ReadHeader(mem, haystackAddr))
	if len(needle) == 0 {
		// matches C strstr(haystack, ""), which returns haystack itself —
		// the empty string is found at the very first position.
		return 1
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		if string(hay[i:i+len(needle)]) == string(needle) {
			return i + 1
		}
	}
	return 0
}

// Copy extracts count bytes of src starting at the 1-based index, clamped
// to src's actual length, and writes the result into dst (the COPY
// standard function, spec.md §4.5).
func Copy(rt Runtime, dstAddr, srcAddr uint32, index, count int) {
	mem := rt.Bytes()
	src := ReadHeader(mem, srcAddr)
	dst := ReadHeader(mem, dstAddr)

	if index < 1 {
		index = 1
	}
	start := index - 1
	if start > int(src.Size) {
		start = int(src.Size)
	}
	end := start + count
	if end > int(src.Size) {
		end = int(src.Size)
	}
	if end < start {
		end = start
	}
	n := uint16(end - start)
	if cap := dst.Cap(); n > cap {
		n = cap
	}
	copy(mem[dst.Data:dst.Data+uint32(n)], mem[src.Data+uint32(start):src.Data+uint32(start)+uint32(n)])
	dst.Size = n
	WriteHeader(mem, dstAddr, dst)
}

// Insert splices src's contents into dst at the 1-based index, shifting
// the remainder right and truncating at dst's capacity (the INSERT
// standard procedure, spec.md §4.5).
func Insert(rt Runtime, srcAddr, dstAddr uint32, index int) {
	mem := rt.Bytes()
	src := ReadHeader(mem, srcAddr)
	dst := ReadHeader(mem, dstAddr)

	if index < 1 {
		index = 1
	}
	at := index - 1
	if at > int(dst.Size) {
		at = int(dst.Size)
	}

	tailLen := int(dst.Size) - at
	room := int(dst.Cap()) - at
	insLen := int(src.Size)
	if insLen > room {
		insLen = room
	}
	if tailLen > room-insLen {
		tailLen = room - insLen
	}
	if tailLen < 0 {
		tailLen = 0
	}

	tail := make([]byte, tailLen)
	copy(tail, mem[dst.Data+uint32(at):dst.Data+uint32(at)+uint32(tailLen)])
	copy(mem[dst.Data+uint32(at):dst.Data+uint32(at)+uint32(insLen)], mem[src.Data:src.Data+uint32(insLen)])
	copy(mem[dst.Data+uint32(at)+uint32(insLen):], tail)

	dst.Size = uint16(at + insLen + tailLen)
	WriteHeader(mem, dstAddr, dst)
}

// Delete removes count bytes from dst starting at the 1-based index,
// clamped to dst's length (the DELETE standard procedure, spec.md §4.5).
func Delete(rt Runtime, dstAddr uint32, index, count int) {
	mem := rt.Bytes()
	dst := ReadHeader(mem, dstAddr)

	if index < 1 {
		index = 1
	}
	start := index - 1
	if start >= int(dst.Size) {
		return
	}
	end := start + count
	if end > int(dst.Size) {
		end = int(dst.Size)
	}
	if end <= start {
		return
	}
	copy(mem[dst.Data+uint32(start):], mem[dst.Data+uint32(end):dst.Data+uint32(dst.Size)])
	dst.Size -= uint16(end - start)
	WriteHeader(mem, dstAddr, dst)
}

// CharAt returns the byte at the 1-based index within a string, per the
// string-indexing operator spec.md §4.1 describes for exprType String.
func CharAt(mem []byte, addr uint32, index int) byte {
	h := ReadHeader(mem, addr)
	if index < 1 || index > int(h.Size) {
		return 0
	}
	return mem[h.Data+uint32(index-1)]
}

// NumToStr renders v in base 10 into dst's buffer, truncating to
// capacity (the STR standard procedure, spec.md §4.5).
func NumToStr(rt Runtime, dstAddr uint32, v int64) {
	AssignLiteral(rt, dstAddr, strconv.FormatInt(v, 10))
}

// StrToNum parses src's contents as a base-10 (optionally signed) integer
// literal, the numeric half of the VAL standard procedure (spec.md §4.5).
// ok is false if src is not a well-formed integer; errIndex is then the
// 1-based index of the first offending character, mirroring the code
// out-parameter VAL(s, v, code) reports to its caller. errIndex is 0 on
// success.
func StrToNum(mem []byte, srcAddr uint32) (v int64, errIndex int, ok bool) {
	s := string(bytesOf(mem, ReadHeader(mem, srcAddr)))
	if s == "" {
		return 0, 1, false
	}
	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
	}
	digitsStart := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == digitsStart || i != len(s) {
		return 0, i + 1, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, 1, false
	}
	return n, 0, true
}

// StrDup allocates an independent heap-backed buffer and writes a copy of
// src's current contents into a fresh header at dstAddr — the STRDUP
// runtime call spec.md §4.5 lists for producing a string whose storage is
// wholly independent of its source, so later mutating one is never
// observed through the other.
func StrDup(rt Runtime, dstAddr, srcAddr uint32) error {
	src := ReadHeader(rt.Bytes(), srcAddr)
	if err := AllocHeapString(rt, dstAddr, src.Size); err != nil {
		return fmt.Errorf("pstring.StrDup: %w", err)
	}
	mem := rt.Bytes()
	dst := ReadHeader(mem, dstAddr)
	copy(mem[dst.Data:dst.Data+uint32(src.Size)], mem[src.Data:src.Data+uint32(src.Size)])
	dst.Size = src.Size
	WriteHeader(mem, dstAddr, dst)
	return nil
}

// FillChar writes count copies of ch starting at addr, the FILLCHAR
// standard procedure (spec.md §4.5) used to zero- or pattern-fill a raw
// buffer — most often a string's data region, or a record before its
// fields are individually assigned — without going through any string
// header bookkeeping.
func FillChar(rt Runtime, addr uint32, count int, ch byte) {
	if count <= 0 {
		return
	}
	mem := rt.Bytes()
	end := addr + uint32(count)
	if end > uint32(len(mem)) {
		end = uint32(len(mem))
	}
	for i := addr; i < end; i++ {
		mem[i] = ch
	}
}

// AllocHeapString allocates a heap-backed buffer for a new string and
// writes the header at addr, used when a string variable's lifetime must
// outlive its declaring stack frame (e.g. a heap record field), per
// spec.md §4.4's AllocateStringBuffer.
func AllocHeapString(rt Runtime, addr uint32, capacity uint16) error {
	data, allocCap, err := rt.Heap().AllocateStringBuffer(capacity)
	if err != nil {
		return fmt.Errorf("pstring.AllocHeapString: %w", err)
	}
	WriteHeader(rt.Bytes(), addr, Header{Size: 0, Data: data, Capacity: allocCap})
	return nil
}

// FreeHeapString releases a heap-backed string's buffer, if it has one.
func FreeHeapString(rt Runtime, addr uint32) error {
	h := ReadHeader(rt.Bytes(), addr)
	if !h.IsHeapBacked() {
		return nil
	}
	return rt.Heap().Free(h.Data)
}
