package codegen

import (
	"github.com/mna/pascal/lang/exprtype"
	"github.com/mna/pascal/lang/pcode"
	"github.com/mna/pascal/lang/token"
)

// builtinArgKind selects how builtinCall parses one argument slot: as a
// plain value expression, or as a VAR-parameter address (spec.md §4.5's
// New/Dispose/Val, which write through a caller-supplied variable).
type builtinArgKind int

const (
	argValue builtinArgKind = iota
	argAddress
)

// builtinDef is one standard function/procedure's calling convention: its
// StdCall index, the kind of each argument slot in source order, and the
// Factor-level result type callers see it as.
type builtinDef struct {
	call       pcode.StdCall
	args       []builtinArgKind
	result     exprtype.Type
	isRealFunc bool
}

// builtins maps a predeclared standard-routine name (already lowercased by
// lang/scanner) to its calling convention. Copy/Insert/Delete/Str/Val are
// modeled as caller-supplies-destination procedures rather than
// value-returning functions, matching lang/vm/execute_stdcall.go's actual
// StdCall pop order; see DESIGN.md for that simplification.
var builtins = map[string]builtinDef{
	"sqrt":    {call: pcode.StdSqrt, args: []builtinArgKind{argValue}, result: exprtype.Real, isRealFunc: true},
	"sin":     {call: pcode.StdSin, args: []builtinArgKind{argValue}, result: exprtype.Real, isRealFunc: true},
	"cos":     {call: pcode.StdCos, args: []builtinArgKind{argValue}, result: exprtype.Real, isRealFunc: true},
	"exp":     {call: pcode.StdExp, args: []builtinArgKind{argValue}, result: exprtype.Real, isRealFunc: true},
	"ln":      {call: pcode.StdLn, args: []builtinArgKind{argValue}, result: exprtype.Real, isRealFunc: true},
	"random":  {call: pcode.StdRandom, result: exprtype.Real},
	"new":     {call: pcode.StdNew, args: []builtinArgKind{argAddress, argValue}, result: exprtype.Unknown},
	"dispose": {call: pcode.StdDispose, args: []builtinArgKind{argAddress}, result: exprtype.Unknown},
	"length":  {call: pcode.StdStrLength, args: []builtinArgKind{argValue}, result: exprtype.Integer},
	"pos":     {call: pcode.StdStrPos, args: []builtinArgKind{argValue, argValue}, result: exprtype.Integer},
	"copy":    {call: pcode.StdStrCopy, args: []builtinArgKind{argValue, argValue, argValue, argValue}, result: exprtype.Unknown},
	"insert":  {call: pcode.StdStrInsert, args: []builtinArgKind{argValue, argValue, argValue}, result: exprtype.Unknown},
	"delete":  {call: pcode.StdStrDelete, args: []builtinArgKind{argValue, argValue, argValue}, result: exprtype.Unknown},
	"str":     {call: pcode.StdNumToStr, args: []builtinArgKind{argValue, argValue}, result: exprtype.Unknown},
	"val":     {call: pcode.StdStrToNum, args: []builtinArgKind{argValue, argAddress, argAddress}, result: exprtype.Unknown},
}

// builtinCall implements spec.md §4.1's BuiltinCall Factor alternative: a
// name resolved against builtins (only consulted when the identifier is
// not a user declaration, so a program's own New/Length/etc. shadows the
// standard one, matching ordinary Pascal scoping) parses its fixed
// argument list and emits a single StandardFunctionCall.
func (p *Parser) builtinCall(def builtinDef) (exprtype.Type, error) {
	p.next() // consume the identifier
	nargs := len(def.args)
	if p.kind == token.LPAREN {
		p.next()
		for i := 0; ; i++ {
			if p.kind == token.RPAREN {
				break
			}
			if i >= nargs {
				p.fatalHere("eTOOMANYARGS")
				return exprtype.Unknown, nil
			}
			if err := p.builtinArg(def.args[i], def.isRealFunc && i == 0); err != nil {
				return exprtype.Unknown, err
			}
			if p.kind != token.COMMA {
				break
			}
			p.next()
		}
		p.expect(token.RPAREN, "eRPAREN")
	} else if nargs > 0 {
		p.fatalHere("eLPAREN")
	}
	p.em.StandardFunctionCall(def.call)
	return def.result, nil
}

// builtinArg parses one argument slot: an address for a VAR-parameter
// slot, otherwise a plain value expression, coerced to real first when
// coerceReal requests it (sqrt/sin/cos/exp/ln accept an integer argument
// per spec.md §4.5, coerced the same way reconcileMul coerces a mixed
// division).
func (p *Parser) builtinArg(kind builtinArgKind, coerceReal bool) error {
	if kind == argAddress {
		_, err := p.varParameter(exprtype.Unknown)
		return err
	}
	t, err := p.expression(exprtype.Unknown)
	if err != nil {
		return err
	}
	if coerceReal {
		p.coerceToReal(t)
	}
	return nil
}

// ordChrCall implements the ORD/CHR standard functions: unlike the rest of
// builtins, they have no StdCall index, compiling instead to a direct
// OpORD/OpCHR opcode (an at-runtime identity, present only for type
// discipline — see lang/pcode.OpORD/OpCHR's doc comments).
func (p *Parser) ordChrCall(op pcode.Op, result exprtype.Type) (exprtype.Type, error) {
	p.next() // consume the identifier
	p.expect(token.LPAREN, "eLPAREN")
	if _, err := p.expression(exprtype.Unknown); err != nil {
		return exprtype.Unknown, err
	}
	p.expect(token.RPAREN, "eRPAREN")
	p.em.GenerateSimple(op)
	return result, nil
}
