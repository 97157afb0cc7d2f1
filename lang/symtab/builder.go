package symtab

import "strings"

// The DeclareXxx helpers below are the "minimal symbol-table builder"
// named in SPEC_FULL.md §7: a concrete producer of the Symbol records
// spec.md's data model describes, used directly by lang/codegen's tests
// and by the compile command's expression-only front end, standing in for
// the full declaration-parsing front end spec.md treats as an external
// collaborator.

func fold(name string) string { return strings.ToLower(name) }

// builtin returns the well-known Symbol for one of the predeclared
// ordinal/real base types.
func builtin(kind SKind, size int32) *Symbol {
	return &Symbol{Kind: STYPE, TypeCode: kind, AllocSize: size}
}

var (
	IntegerType   = builtin(SINT, 2)
	WordType      = builtin(SWORD, 2)
	ShortIntType  = builtin(SSHORTINT, 1)
	ShortWordType = builtin(SSHORTWORD, 1)
	BooleanType   = builtin(SBOOLEAN, 2)
	CharType      = builtin(SCHAR, 2)
	RealType      = builtin(SREAL, 4)
)

// DeclareVariable declares a variable named name of type typ at the given
// byte offset in the current frame.
func (t *Table) DeclareVariable(name string, typ *Symbol, offset int32) *Symbol {
	sym := &Symbol{
		Name:       fold(name),
		Kind:       typ.TypeCode,
		Size:       typ.AllocSize,
		Offset:     offset,
		ParentType: typ,
	}
	t.Declare(sym.Name, sym)
	return sym
}

// DeclareConst declares a named integer (or enum ordinal, or boolean)
// constant.
func (t *Table) DeclareConst(name string, typ *Symbol, value int64) *Symbol {
	sym := &Symbol{Name: fold(name), Kind: SCONST, ParentType: typ, ConstValue: value}
	t.Declare(sym.Name, sym)
	return sym
}

// DeclareEnumType declares a scalar (enumeration) type and its ordered
// member constants, e.g. "Day = (Mon, Tue, ...)". The returned Symbol's
// TypeCode is SSCALAR; each member is declared in the current scope as an
// SSCALAR_OBJECT symbol whose ParentType points back to the enum type and
// whose Ordinal is its 0-based position.
func (t *Table) DeclareEnumType(name string, members ...string) *Symbol {
	typ := &Symbol{Name: fold(name), Kind: STYPE, TypeCode: SSCALAR, AllocSize: 2, MinValue: 0, MaxValue: int64(len(members) - 1)}
	for i, m := range members {
		member := &Symbol{Name: fold(m), Kind: SSCALAR_OBJECT, ParentType: typ, Ordinal: int64(i)}
		t.Declare(member.Name, member)
		typ.Fields = append(typ.Fields, member)
	}
	t.Declare(typ.Name, typ)
	return typ
}

// DeclareSubrangeType declares a subrange type ("lo..hi") of base type
// base.
func (t *Table) DeclareSubrangeType(name string, base *Symbol, lo, hi int64) *Symbol {
	typ := &Symbol{
		Name: fold(name), Kind: STYPE, TypeCode: SSUBRANGE, SubtypeCode: base.TypeCode,
		ParentType: base, AllocSize: base.AllocSize, MinValue: lo, MaxValue: hi,
	}
	t.Declare(typ.Name, typ)
	return typ
}

// DeclareSetType declares "set of base".
func (t *Table) DeclareSetType(name string, base *Symbol) *Symbol {
	typ := &Symbol{Name: fold(name), Kind: STYPE, TypeCode: SSET, SubtypeCode: base.TypeCode, ParentType: base, AllocSize: 4, MinValue: base.MinValue, MaxValue: base.MaxValue}
	t.Declare(typ.Name, typ)
	return typ
}

// DeclarePointerType declares "^base".
func (t *Table) DeclarePointerType(name string, base *Symbol) *Symbol {
	typ := &Symbol{Name: fold(name), Kind: STYPE, TypeCode: SPOINTER, ParentType: base, AllocSize: 2}
	t.Declare(typ.Name, typ)
	return typ
}

// DeclareRecordType declares a record type from an ordered list of (field
// name, field type) pairs, computing sequential byte offsets.
func (t *Table) DeclareRecordType(name string, fields ...Field) *Symbol {
	typ := &Symbol{Name: fold(name), Kind: STYPE, TypeCode: SRECORD}
	var off int32
	for _, f := range fields {
		field := &Symbol{
			Name: fold(f.Name), Kind: SRECORD_OBJECT, RecordType: typ,
			FieldOffset: off, FieldSize: f.Type.AllocSize, FieldParentTy: f.Type,
		}
		typ.Fields = append(typ.Fields, field)
		off += f.Type.AllocSize
	}
	typ.AllocSize = off
	t.Declare(typ.Name, typ)
	return typ
}

// Field is one record-type field declaration, used by DeclareRecordType.
type Field struct {
	Name string
	Type *Symbol
}

// DeclareArrayType declares an array type over one or more index types
// (multi-dimensional arrays list their index types major-axis first),
// computing each dimension's Stride per DESIGN.md decision #4: the last
// index's Stride is the element size, and every earlier index's Stride is
// the next index's Stride times the next index's element count, i.e. the
// number of elements addressed by everything to its right times the
// element size.
func (t *Table) DeclareArrayType(name string, elem *Symbol, indexes ...*Symbol) *Symbol {
	if len(indexes) == 0 {
		panic("symtab: array type requires at least one index type")
	}
	// compute strides right-to-left: last index's stride is elem size.
	strides := make([]int32, len(indexes))
	strides[len(indexes)-1] = elem.AllocSize
	for i := len(indexes) - 2; i >= 0; i-- {
		count := indexes[i+1].MaxValue - indexes[i+1].MinValue + 1
		strides[i] = strides[i+1] * int32(count)
	}
	// clone index types so Stride/AllocSize reflect this array's layout
	// without mutating a shared, possibly reused, index type symbol.
	idxCopies := make([]*Symbol, len(indexes))
	for i, idx := range indexes {
		cp := *idx
		cp.Stride = strides[i]
		cp.AllocSize = strides[i]
		idxCopies[i] = &cp
	}
	total := strides[0] * int32(indexes[0].MaxValue-indexes[0].MinValue+1)
	typ := &Symbol{
		Name: fold(name), Kind: STYPE, TypeCode: SARRAY, ParentType: elem,
		IndexType: idxCopies[0], Dimension: int32(len(indexes)), AllocSize: total,
	}
	for i := 1; i < len(idxCopies); i++ {
		typ.Fields = append(typ.Fields, idxCopies[i])
	}
	t.Declare(typ.Name, typ)
	return typ
}

// IndexTypeAt returns the index type for dimension i (0-based) of an array
// type declared by DeclareArrayType: dimension 0 is typ.IndexType, further
// dimensions are typ.Fields[i-1].
func IndexTypeAt(typ *Symbol, i int) *Symbol {
	if i == 0 {
		return typ.IndexType
	}
	return typ.Fields[i-1]
}
