package exprtype

import "github.com/mna/pascal/lang/symtab"

// FromSKind maps a symbol-table SKind to its corresponding exprType,
// implementing the "Type Reconciler" role spec.md §2 assigns to the code
// generator: the symbol table only knows storage kinds, the code generator
// layers its own abstract taxonomy on top.
func FromSKind(k symtab.SKind) Type {
	switch k {
	case symtab.SINT:
		return Integer
	case symtab.SWORD:
		return Word
	case symtab.SSHORTINT:
		return ShortInteger
	case symtab.SSHORTWORD:
		return ShortWord
	case symtab.SCHAR:
		return Char
	case symtab.SBOOLEAN:
		return Boolean
	case symtab.SSCALAR, symtab.SSCALAR_OBJECT:
		return Scalar
	case symtab.SREAL:
		return Real
	case symtab.SSET:
		return Set
	case symtab.SSTRING:
		return String
	case symtab.SSHORTSTRING:
		return ShortString
	case symtab.SRECORD, symtab.SRECORD_OBJECT:
		return Record
	case symtab.SFILE, symtab.STEXTFILE:
		return File
	default:
		return Unknown
	}
}

// FromSymbol maps a type symbol (sym.TypeCode for a STYPE symbol, or the
// symbol's own Kind for a value symbol) to its exprType, per
// getExpressionType's public contract in spec.md §4.1.
func FromSymbol(sym *symtab.Symbol) Type {
	if sym == nil {
		return Unknown
	}
	k := sym.Kind
	if sym.Kind == symtab.STYPE {
		k = sym.TypeCode
	}
	t := FromSKind(k)
	if k == symtab.SPOINTER {
		return MakePointer(FromSymbol(sym.ParentType))
	}
	return t
}
