package codegen

import (
	"github.com/mna/pascal/lang/exprtype"
	"github.com/mna/pascal/lang/pcode"
	"github.com/mna/pascal/lang/symtab"
	"github.com/mna/pascal/lang/token"
)

// setElemSingle and setElemRange tag each set-constructor slot's trailing
// marker word (pushed after that slot's value(s), so the runtime SEX
// opcode pops it first): a singleton slot has one ordinal value beneath
// its marker, a range slot has two (lo pushed before hi). See
// setConstructor and lang/vm's setConstructor.
const (
	setElemSingle uint16 = 0
	setElemRange  uint16 = 1
)

// varInfo is the mutable working copy spec.md §3 describes: created once
// per top-level variable factor, threaded through simpleFactor's reduction
// loop as it walks subranges, record fields, array indices, and pointer
// dereferences down to a base kind.
//
// Two addressing modes coexist, matching spec.md §4.1's simpleFactor
// description:
//   - static mode (onStack == false): the variable's address is known at
//     compile time as (declLevel, offset) relative to the current frame;
//     field/array-within-a-directly-addressed-aggregate offsets just add
//     into offset, no code is emitted yet.
//   - address mode (onStack == true): an address is already sitting on
//     the evaluation stack (after a pointer dereference, or an array
//     index computed via IXA); further offsets must be emitted as runtime
//     arithmetic (ADD) since there is no "frame offset" left to fold into.
type varInfo struct {
	declLevel uint16
	offset    uint16
	onStack   bool

	typ  *symtab.Symbol // current type symbol (the reduction target)
	kind symtab.SKind   // typ's storage kind (or typ.Kind for a plain value symbol)
}

// newVarInfo builds the initial varInfo for a resolved variable symbol.
func newVarInfo(sym *symtab.Symbol) varInfo {
	return varInfo{
		declLevel: uint16(sym.Level),
		offset:    uint16(sym.Offset),
		typ:       sym.ParentType,
		kind:      sym.Kind,
	}
}

// emitLoadAddress ensures the current target's address is on the
// evaluation stack, switching vi into address mode if it is not already.
func (vi *varInfo) emitLoadAddress(em *pcode.Emitter) {
	if vi.onStack {
		return
	}
	em.GenerateStackReference(pcode.OpLAS, vi.declLevel, vi.offset, pcode.WidthPointer)
	vi.onStack = true
	vi.offset = 0
}

// addOffset accumulates delta bytes into the current target address,
// either statically (folded into vi.offset) or at runtime (an ADD against
// the address already on the stack), depending on vi.onStack.
func (vi *varInfo) addOffset(em *pcode.Emitter, delta uint16) {
	if delta == 0 {
		return
	}
	if vi.onStack {
		em.GenerateConstant(delta)
		em.GenerateDataOperation(pcode.OpADD, pcode.WidthPointer)
		return
	}
	vi.offset += delta
}

// emitFinalLoad emits the load of vi's current (fully reduced) value onto
// the evaluation stack — LOD for static mode, LDI for address mode — and
// is called once simpleFactor's reduction loop reaches a base kind.
func (vi *varInfo) emitFinalLoad(em *pcode.Emitter) {
	w := widthForKind(vi.kind)
	if vi.onStack {
		em.GenerateIndirect(pcode.OpLDI, w)
		return
	}
	em.GenerateStackReference(pcode.OpLOD, vi.declLevel, vi.offset, w)
}

// emitFinalAddress emits whatever is needed so that vi's address (not its
// value) ends up on the stack — used by varParameter.
func (vi *varInfo) emitFinalAddress(em *pcode.Emitter) { vi.emitLoadAddress(em) }

// variable parses and emits the "Variable" factor alternative: sym has
// already been resolved (an IDENT naming something other than a constant,
// type, or function), so what remains is simpleFactor's reduction followed
// by a final load of the resulting base-kind value.
func (p *Parser) variable(sym *symtab.Symbol, ctx exprtype.Type) (exprtype.Type, error) {
	vi := newVarInfo(sym)
	if err := p.simpleFactor(&vi); err != nil {
		return exprtype.Unknown, err
	}
	t := p.checkAbstractType(vi.typ, vi.kind)
	vi.emitFinalLoad(p.em)
	return t, nil
}

// varParameter implements spec.md §4.1's varParameter(varExprType,
// typePtr): same reduction as variable, but leaves an address on the
// stack rather than a loaded value.
func (p *Parser) varParameter(ctx exprtype.Type) (exprtype.Type, error) {
	if p.kind != token.IDENT {
		p.fatalHere("eVARIABLE")
	}
	sym := p.tab.Lookup(p.val.Name)
	if sym == nil {
		p.fatalHere("eUNDECLARED")
	}
	p.next()
	vi := newVarInfo(sym)
	if err := p.simpleFactor(&vi); err != nil {
		return exprtype.Unknown, err
	}
	t := p.checkAbstractType(vi.typ, vi.kind)
	vi.emitFinalAddress(p.em)
	return t, nil
}

// checkAbstractType implements the abstract-type state machine: installs
// p.abstractTypePtr on first touch of an abstract kind, or errors if a
// later one disagrees (spec.md §4.1).
func (p *Parser) checkAbstractType(typ *symtab.Symbol, kind symtab.SKind) exprtype.Type {
	if kind.IsAbstract() && typ != nil {
		if p.abstractTypePtr == nil {
			p.abstractTypePtr = typ
		} else if p.abstractTypePtr != typ {
			p.error(p.val.Pos, "eABSTRACTTYPE")
		}
	}
	return exprtype.FromSymbol(typ)
}

// simpleFactor is spec.md §4.1's reduction loop: given vi's current kind,
// it repeatedly peels off subrange wrappers, record field accesses, array
// indexing, and pointer dereferences, stopping once vi.kind names a base
// (non-reducible) storage kind.
func (p *Parser) simpleFactor(vi *varInfo) error {
	for {
		switch vi.kind {
		case symtab.SSUBRANGE:
			base := vi.typ.ParentType
			vi.typ = base
			vi.kind = base.TypeCode

		case symtab.SRECORD:
			if p.kind != token.DOT {
				return nil
			}
			p.next()
			if p.kind != token.IDENT {
				p.fatalHere("eFIELD")
				return nil
			}
			name := p.val.Name
			field := symtab.LookupField(vi.typ, name)
			if field == nil {
				p.fatalHere("eUNDEFINEDFIELD")
				return nil
			}
			p.next()
			vi.addOffset(p.em, uint16(field.FieldOffset))
			vi.typ = field.FieldParentTy
			vi.kind = field.FieldParentTy.TypeCode

		case symtab.SRECORD_OBJECT:
			if p.withRecord == nil {
				p.fatalHere("eNOTINWITH")
				return nil
			}
			field := symtab.LookupField(p.withRecord.record, vi.typ.Name)
			if field == nil {
				return nil
			}
			*vi = p.withRecord.declVar
			if p.withRecord.indirect {
				// the WITH subject is a pointer/VAR-parameter to the record
				// rather than the record value itself: one indirection is
				// needed to reach the record's actual base address before
				// folding in the field offset, mirroring the SPOINTER case
				// above.
				vi.emitLoadAddress(p.em)
				p.em.GenerateIndirect(pcode.OpLDI, pcode.WidthPointer)
				vi.onStack = true
				vi.offset = 0
			}
			vi.addOffset(p.em, uint16(field.FieldOffset))
			vi.typ = field.FieldParentTy
			vi.kind = field.FieldParentTy.TypeCode

		case symtab.SPOINTER:
			if p.kind != token.CARET {
				return nil
			}
			for p.kind == token.CARET {
				p.next()
				vi.emitLoadAddress(p.em)
				p.em.GenerateIndirect(pcode.OpLDI, pcode.WidthPointer)
				vi.typ = vi.typ.ParentType
				vi.kind = vi.typ.TypeCode
				vi.offset = 0
			}

		case symtab.SVAR_PARM:
			vi.emitLoadAddress(p.em)
			vi.typ = vi.typ.ParentType
			vi.kind = vi.typ.TypeCode

		case symtab.SARRAY:
			if p.kind != token.LBRACK {
				if vi.kind == symtab.SARRAY && vi.typ.ParentType != nil &&
					vi.typ.ParentType.TypeCode == symtab.SCHAR {
					// packed array of char with no index: coerced to a string by
					// the runtime's BSTR2STR conversion (spec.md §4.1). The
					// conversion itself lives in lang/pstring; here we simply stop
					// reducing and let the caller treat the array as a string.
					vi.kind = symtab.SSTRING
					return nil
				}
				return nil
			}
			if err := p.arrayIndex(vi); err != nil {
				return err
			}
			vi.typ = vi.typ.ParentType
			vi.kind = vi.typ.TypeCode

		default:
			return nil
		}
	}
}

// arrayIndex parses one bracketed index list (spec.md §4.1's arrayIndex),
// emitting IXA once per dimension to fold that dimension's contribution
// into the running element address.
func (p *Parser) arrayIndex(vi *varInfo) error {
	arrType := vi.typ
	p.expect(token.LBRACK, "eLBRACKET")
	dim := 0
	for {
		if dim >= int(arrType.Dimension) {
			p.fatalHere("eTOOMANYINDICES")
			return nil
		}
		idxType := symtab.IndexTypeAt(arrType, dim)

		vi.emitLoadAddress(p.em)
		if _, err := p.expression(exprtype.FromSymbol(idxType)); err != nil {
			return err
		}
		if idxType.MinValue != 0 {
			p.em.GenerateConstant(uint16(int16(idxType.MinValue)))
			p.em.GenerateDataOperation(pcode.OpSUB, pcode.WidthInt)
		}
		p.em.GenerateIndex(uint16(idxType.Stride))
		vi.offset = 0
		dim++

		if p.kind == token.COMMA {
			p.next()
			continue
		}
		break
	}
	if p.kind != token.RBRACK {
		p.fatalHere("eRBRACKET")
		return nil
	}
	p.next()
	return nil
}

// pointerFactor implements the '@' PointerFactor alternative: the
// requested context must be a pointer; the operand's *address* (rather
// than its value) is what the '@' operator yields.
func (p *Parser) pointerFactor(ctx exprtype.Type) (exprtype.Type, error) {
	if !ctx.IsPointer() && ctx != exprtype.Unknown {
		p.error(p.val.Pos, "eNOTPOINTERCONTEXT")
	}
	if p.kind != token.IDENT {
		p.fatalHere("eVARIABLE")
	}
	sym := p.tab.Lookup(p.val.Name)
	if sym == nil {
		p.fatalHere("eUNDECLARED")
	}
	p.next()
	vi := newVarInfo(sym)
	if err := p.simpleFactor(&vi); err != nil {
		return exprtype.Unknown, err
	}
	t := exprtype.FromSymbol(vi.typ)
	vi.emitFinalAddress(p.em)
	return exprtype.MakePointer(t), nil
}

// setConstructor parses '[' SetElem {',' SetElem} ']', pushing each
// element (or subrange-expanded range) and folding them into one set via
// SEX, per spec.md §4.1.
func (p *Parser) setConstructor(ctx exprtype.Type) (exprtype.Type, error) {
	p.next() // consume '['
	saved := p.abstractTypePtr
	p.abstractTypePtr = nil
	defer func() { p.abstractTypePtr = saved }()

	if p.kind == token.RBRACK {
		p.next()
		return exprtype.EmptySet, nil
	}

	var count uint16
	elemType := exprtype.Unknown
	for {
		et, err := p.expression(exprtype.Unknown)
		if err != nil {
			return exprtype.Unknown, err
		}
		if elemType == exprtype.Unknown {
			elemType = et
		}
		p.normalizeSetElem()
		count++
		if p.kind == token.DOTDOT {
			p.next()
			if _, err := p.expression(elemType); err != nil {
				return exprtype.Unknown, err
			}
			p.normalizeSetElem()
			// a '..' subrange element expands into every ordinal between the two
			// bounds, not just its own endpoints; tag this slot as a range so the
			// runtime SEX opcode knows to fill the whole span rather than setting
			// just two member bits.
			p.em.GenerateConstant(setElemRange)
		} else {
			p.em.GenerateConstant(setElemSingle)
		}
		if p.kind != token.COMMA {
			break
		}
		p.next()
	}
	if p.kind != token.RBRACK {
		p.fatalHere("eRBRACKET")
	}
	p.next()
	p.em.GenerateSetConstructor(count)
	return exprtype.Set, nil
}

// normalizeSetElem subtracts the set's base type's MinValue from the
// ordinal value currently on top of the stack, the same normalization
// arrayIndex applies to a subscript — a no-op unless p.abstractTypePtr
// was just installed by the element expression naming an abstract type
// with a nonzero MinValue (DESIGN.md's decision on set-constructor bounds).
func (p *Parser) normalizeSetElem() {
	if p.abstractTypePtr == nil || p.abstractTypePtr.MinValue == 0 {
		return
	}
	p.em.GenerateConstant(uint16(int16(p.abstractTypePtr.MinValue)))
	p.em.GenerateDataOperation(pcode.OpSUB, pcode.WidthInt)
}

// typeCast implements the `TypeName(Expression)` factor form: ordinal<->
// ordinal of the same storage width is a no-op at the bit level, ordinal->
// real inserts an FLT, real->ordinal inserts an RND (round to nearest).
// Pointer-to-pointer casts are rejected outright — spec.md §9's open
// question on generalizing the two-level-pointer limit is decided in
// DESIGN.md as "preserve the limit", so a cast whose source and target are
// both pointer types is a type error rather than a reinterpret.
func (p *Parser) typeCast(target *symtab.Symbol, srcType exprtype.Type) (exprtype.Type, error) {
	dstType := exprtype.FromSymbol(target)
	switch {
	case dstType.IsPointer() && srcType.IsPointer():
		p.error(p.val.Pos, "ePOINTERTYPE")
	case dstType.Base() == exprtype.Real && srcType.IsIntegerFamily():
		p.em.GenerateSimple(pcode.OpFLT)
	case dstType.IsIntegerFamily() && srcType.Base() == exprtype.Real:
		p.em.GenerateSimple(pcode.OpRND)
	default:
		// ordinal<->ordinal of the same storage width: no bits to change.
	}
	return dstType, nil
}

// functionCall implements the FunctionCall factor alternative for a
// user-defined function symbol: evaluate each argument in turn (pushed
// left to right) and emit CUP at the function's declaration level. The
// CUP target is left as GenerateProcedureCall's zero placeholder; nothing
// here back-patches it to the function's entry point.
func (p *Parser) functionCall(sym *symtab.Symbol) (exprtype.Type, error) {
	p.next() // consume the identifier
	if p.kind == token.LPAREN {
		p.next()
		if p.kind != token.RPAREN {
			for {
				if _, err := p.expression(exprtype.Unknown); err != nil {
					return exprtype.Unknown, err
				}
				if p.kind != token.COMMA {
					break
				}
				p.next()
			}
		}
		p.expect(token.RPAREN, "eRPAREN")
	}
	p.em.GenerateProcedureCall(uint16(sym.Level))
	return exprtype.FromSymbol(sym.ParentType), nil
}
