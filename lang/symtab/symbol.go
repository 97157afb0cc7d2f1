// Package symtab is the toolchain's symbol table: an external collaborator
// of the code generator, per spec.md §1. It stores one Symbol per declared
// name and is read-only to the code generator while it parses an
// expression (spec.md §5's "Shared resources").
//
// A real Pascal front end would populate a Table from a full declaration
// parser; this one gives tests and the expression-only CLI front end a
// direct, explicit way to build the symbols a unit of code generation needs
// (spec.md §2's "out of scope... the symbol table" — the builder below is
// the minimal concrete producer named in SPEC_FULL.md §7, not a
// declaration-level Pascal parser).
package symtab

import "fmt"

// SKind is the symbol kind discriminator, matching spec.md §3's sKind
// variant exactly: TYPE, INT, WORD, SHORTINT, SHORTWORD, BOOLEAN, CHAR,
// REAL, SCALAR, SCALAR_OBJECT, SUBRANGE, SET, STRING, SHORTSTRING, FILE,
// TEXTFILE, RECORD, RECORD_OBJECT, ARRAY, POINTER, VAR_PARM, FUNC.
type SKind uint8

//nolint:revive
const (
	STYPE SKind = iota
	SINT
	SWORD
	SSHORTINT
	SSHORTWORD
	SBOOLEAN
	SCHAR
	SREAL
	SSCALAR
	SSCALAR_OBJECT
	SSUBRANGE
	SSET
	SSTRING
	SSHORTSTRING
	SFILE
	STEXTFILE
	SRECORD
	SRECORD_OBJECT
	SARRAY
	SPOINTER
	SVAR_PARM
	SFUNC
	SCONST
)

var skindNames = [...]string{
	STYPE: "type", SINT: "integer", SWORD: "word", SSHORTINT: "shortint",
	SSHORTWORD: "shortword", SBOOLEAN: "boolean", SCHAR: "char", SREAL: "real",
	SSCALAR: "scalar", SSCALAR_OBJECT: "scalar-object", SSUBRANGE: "subrange",
	SSET: "set", SSTRING: "string", SSHORTSTRING: "shortstring", SFILE: "file",
	STEXTFILE: "textfile", SRECORD: "record", SRECORD_OBJECT: "record-object",
	SARRAY: "array", SPOINTER: "pointer", SVAR_PARM: "var-parm", SFUNC: "func",
	SCONST: "const",
}

func (k SKind) String() string {
	if int(k) < len(skindNames) && skindNames[k] != "" {
		return skindNames[k]
	}
	return fmt.Sprintf("SKind(%d)", k)
}

// Symbol is a single symbol-table entry. Go has no tagged union, so all
// variant payloads (spec.md §3: variable, type, constant, record field,
// procedure/function) live inline as plain fields; Kind says which subset
// is meaningful. The fields are read directly; nothing checks that a field
// read matches Kind.
type Symbol struct {
	Name  string
	Kind  SKind
	Level int // static nesting level

	// -- variable payload --
	Size       int32
	Offset     int32
	ParentType *Symbol

	// -- type payload --
	TypeCode    SKind
	SubtypeCode SKind
	AllocSize   int32
	MinValue    int64
	MaxValue    int64
	IndexType   *Symbol // element index type, for ARRAY
	Dimension   int32
	// Stride is the byte distance between consecutive values of this array
	// index: the element size for the last dimension, and for an earlier
	// dimension the allocated size of all dimensions to its right. Spec.md §9 flags this as an
	// implicit dependency in the original design ("this should be made
	// explicit in the symbol-table design"); DESIGN.md decision #4 makes it
	// an explicit field here.
	Stride int32

	// -- constant payload --
	ConstValue int64

	// -- record field payload --
	RecordType    *Symbol
	FieldOffset   int32
	FieldSize     int32
	FieldParentTy *Symbol

	// -- set/enum member payload (SSCALAR_OBJECT, set element names) --
	Ordinal int64

	// Fields, for SRECORD and SRECORD_OBJECT: the field symbols in
	// declaration order (used by the WITH-record resolver and by
	// arrayIndex's sibling, field lookup).
	Fields []*Symbol
}

// IsAbstract reports whether k requires name-identity matching rather than
// structural matching, per the GLOSSARY's definition of "abstract type":
// sets, records, enumerations (scalar), and subranges.
func (k SKind) IsAbstract() bool {
	switch k {
	case SSET, SRECORD, SRECORD_OBJECT, SSCALAR, SSUBRANGE:
		return true
	}
	return false
}

// IsOrdinal reports whether k is one of the ordinal (discretely countable)
// kinds eligible as a set base type or CASE selector type.
func (k SKind) IsOrdinal() bool {
	switch k {
	case SINT, SWORD, SSHORTINT, SSHORTWORD, SBOOLEAN, SCHAR, SSCALAR, SSCALAR_OBJECT, SSUBRANGE:
		return true
	}
	return false
}

// Underlying reduces through SUBRANGE indirection to find the underlying
// storage kind, mirroring simpleFactor's SUBRANGE-unwrapping rule in
// spec.md §4.1.
func (s *Symbol) Underlying() *Symbol {
	for s != nil && s.Kind == SSUBRANGE && s.ParentType != nil {
		s = s.ParentType
	}
	return s
}
