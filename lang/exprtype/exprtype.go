// Package exprtype implements spec.md §3's exprType taxonomy: the code
// generator's own abstract classification of an expression's resulting
// type, distinct from (but derived from) a symtab.Symbol's SKind. A
// pointer variant is obtained by OR-ing in PtrBit; the encoding is
// intentionally opaque outside this package, per spec.md's data model.
package exprtype

import "fmt"

// Type is an exprType value: the low bits identify the base type, and
// PtrBit, when set, means "pointer to" that base type.
type Type uint16

//nolint:revive
const (
	Unknown Type = iota
	Integer
	Word
	ShortInteger
	ShortWord
	Char
	Boolean
	Scalar
	Real
	Set
	EmptySet
	String
	ShortString
	CString
	Record
	File
	AnyOrdinal
	AnyString
	AnyPointer

	maxBase

	// PtrBit marks a pointer-to-<base> type. It is set high enough that it
	// never overlaps a base Type value, matching spec.md's "ordinal value
	// bit-ORed with a pointer bit".
	PtrBit Type = 1 << 8
)

var baseNames = [...]string{
	Unknown: "unknown", Integer: "integer", Word: "word", ShortInteger: "shortint",
	ShortWord: "shortword", Char: "char", Boolean: "boolean", Scalar: "scalar",
	Real: "real", Set: "set", EmptySet: "emptyset", String: "string",
	ShortString: "shortstring", CString: "cstring", Record: "record", File: "file",
	AnyOrdinal: "anyordinal", AnyString: "anystring", AnyPointer: "anypointer",
}

// Base strips the pointer bit, returning the underlying base type.
func (t Type) Base() Type { return t &^ PtrBit }

// IsPointer reports whether t is a "pointer to" variant.
func (t Type) IsPointer() bool { return t&PtrBit != 0 }

// MakePointer returns the pointer-to-t variant of t (t must not already be
// a pointer: spec.md §9 explicitly rejects two-level pointer types, a
// decision preserved rather than generalized — see DESIGN.md open question
// #1).
func MakePointer(t Type) Type { return t | PtrBit }

func (t Type) String() string {
	base := t.Base()
	name := "?"
	if int(base) < len(baseNames) && baseNames[base] != "" {
		name = baseNames[base]
	}
	if t.IsPointer() {
		return fmt.Sprintf("^%s", name)
	}
	return name
}

// IsStringFamily reports whether t is String, ShortString, CString, or
// AnyString — the family spec.md's '+' operator treats as concatenable.
func (t Type) IsStringFamily() bool {
	switch t.Base() {
	case String, ShortString, CString, AnyString:
		return true
	}
	return false
}

// IsOrdinalFamily reports whether t is one of the ordinal exprTypes
// eligible on either side of 'in', or as a CASE/array index.
func (t Type) IsOrdinalFamily() bool {
	switch t.Base() {
	case Integer, Word, ShortInteger, ShortWord, Char, Boolean, Scalar, AnyOrdinal:
		return true
	}
	return false
}

// IsIntegerFamily reports whether t is one of the integer storage widths
// unary '-' and the integer arithmetic operators accept.
func (t Type) IsIntegerFamily() bool {
	switch t.Base() {
	case Integer, Word, ShortInteger, ShortWord:
		return true
	}
	return false
}

// IsSigned reports whether t's integer storage is a signed width (selects
// signed vs. unsigned arithmetic opcodes per spec.md §4.1).
func (t Type) IsSigned() bool {
	switch t.Base() {
	case Integer, ShortInteger:
		return true
	}
	return false
}

// IsSetFamily reports whether t is Set or EmptySet.
func (t Type) IsSetFamily() bool {
	switch t.Base() {
	case Set, EmptySet:
		return true
	}
	return false
}

// Resolve adopts ctx in place of t when t is one of the "adopts from
// context" placeholder types spec.md names: nil's AnyPointer adopts the
// counterpart operand's pointer type, and EmptySet adopts Set. If t is not
// such a placeholder, or ctx is Unknown, t is returned unchanged.
func (t Type) Resolve(ctx Type) Type {
	switch t.Base() {
	case AnyPointer:
		if ctx.IsPointer() {
			return ctx
		}
	case EmptySet:
		if ctx.Base() == Set {
			return ctx
		}
	}
	return t
}
