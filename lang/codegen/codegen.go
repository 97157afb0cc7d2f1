// Package codegen implements spec.md §4.1's expression parser/emitter: a
// recursive-descent parser over the Expression grammar that, rather than
// building an AST, emits lang/pcode instructions directly as it recognizes
// each production — the code generator and the parser are the same pass.
//
// It consumes lang/token's token stream (produced by lang/scanner),
// resolves identifiers against a lang/symtab.Table built ahead of time by
// a caller (declaration-level parsing is out of scope, per spec.md §1/§8),
// and reconciles operand exprtype.Type values the way spec.md §4.1
// describes, emitting through a lang/pcode.Emitter.
package codegen

import (
	"fmt"
	goscanner "go/scanner"
	gotoken "go/token"

	"github.com/mna/pascal/lang/exprtype"
	"github.com/mna/pascal/lang/pcode"
	"github.com/mna/pascal/lang/scanner"
	"github.com/mna/pascal/lang/symtab"
	"github.com/mna/pascal/lang/token"
)

// ErrorList accumulates non-fatal diagnostics, the same facility the
// teacher's lang/scanner package aliases from the standard library: a
// parse continues past an error() call, producing a cascade of
// diagnostics rather than stopping at the first one (spec.md §7).
type ErrorList = goscanner.ErrorList

// FatalError is raised (via panic, caught at the Parser's public entry
// points) by fatal(), for conditions the parser cannot recover from
// well enough to keep producing meaningful code — an undeclared
// identifier used as an l-value, a malformed set constructor missing its
// closing bracket, and similar spec.md §7 "unrecoverable" cases.
type FatalError struct {
	Pos token.Pos
	Msg string
}

func (e *FatalError) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Msg) }

// withContext records the record value (or pointer/VAR-parameter to a
// record) a WITH statement currently has open, consulted by simpleFactor's
// SRECORD_OBJECT case. Parsing WITH statements themselves is out of scope
// (declaration/statement-level parsing, per spec.md §1); tests install one
// directly via Parser.PushWith to exercise the SRECORD_OBJECT path.
type withContext struct {
	record   *symtab.Symbol // the record type in scope
	declVar  varInfo        // the variable the field offsets are relative to
	indirect bool           // true if the WITH subject is a pointer/VAR-parameter
}

// Parser parses and emits code for a single expression against a symbol
// table and code emitter supplied by the caller.
type Parser struct {
	sc   scanner.Scanner
	tab  *symtab.Table
	em   *pcode.Emitter
	errs ErrorList

	kind token.Kind
	val  token.Value

	// abstractTypePtr is the state machine spec.md §4.1 describes for
	// abstract-type enforcement: the first set/record/enum/subrange factor
	// encountered installs it; every later one must equal it.
	abstractTypePtr *symtab.Symbol

	withRecord *withContext
}

// NewParser returns a Parser ready to parse src, resolving identifiers
// against tab and emitting through em.
func NewParser(src []byte, tab *symtab.Table, em *pcode.Emitter) *Parser {
	p := &Parser{tab: tab, em: em}
	p.sc.Init(src, func(pos token.Pos, msg string) {
		line, col := pos.LineCol()
		p.errs.Add(gotoken.Position{Line: line, Column: col}, msg)
	})
	p.next()
	return p
}

// PushWith installs a WITH context for the duration of parsing nested
// factors, used by tests that exercise simpleFactor's SRECORD_OBJECT case
// without a statement-level WITH parser.
func (p *Parser) PushWith(recordVar varInfo, recordType *symtab.Symbol, indirect bool) {
	p.withRecord = &withContext{record: recordType, declVar: recordVar, indirect: indirect}
}

// PopWith removes the innermost WITH context.
func (p *Parser) PopWith() { p.withRecord = nil }

// Errors returns the accumulated non-fatal diagnostics.
func (p *Parser) Errors() ErrorList { return p.errs }

func (p *Parser) next() { p.kind, p.val = p.sc.Scan() }

// error records a non-fatal diagnostic and continues.
func (p *Parser) error(pos token.Pos, code string) {
	line, col := pos.LineCol()
	p.errs.Add(gotoken.Position{Line: line, Column: col}, code)
}

// warn records a diagnostic with the same severity as error (spec.md §7
// does not distinguish them operationally; both accumulate and continue —
// the distinction is purely in the message text a caller chooses).
func (p *Parser) warn(pos token.Pos, code string) { p.error(pos, code) }

// fatal records the diagnostic and unwinds the current parse via panic,
// caught by ParseExpression/ParseVarParameter.
func (p *Parser) fatal(pos token.Pos, code string) {
	p.error(pos, code)
	panic(&FatalError{Pos: pos, Msg: code})
}

func (p *Parser) fatalHere(code string) { p.fatal(p.val.Pos, code) }

func (p *Parser) expect(k token.Kind, code string) {
	if p.kind != k {
		p.fatalHere(code)
	}
	p.next()
}

// recoverFatal is deferred by every public entry point, turning a
// *FatalError panic into a returned error instead of propagating the
// panic to the caller.
func recoverFatal(err *error) {
	if r := recover(); r != nil {
		if fe, ok := r.(*FatalError); ok {
			*err = fe
			return
		}
		panic(r)
	}
}

// ParseExpression parses and emits code for a single Expression production
// (spec.md §4.1's public contract), against ctx as the surrounding
// context's expected exprtype.Type (exprtype.Unknown if there is none).
func (p *Parser) ParseExpression(ctx exprtype.Type) (t exprtype.Type, err error) {
	defer recoverFatal(&err)
	t, e := p.expression(ctx)
	if e != nil {
		return t, e
	}
	if p.errs.Len() > 0 {
		return t, p.errs.Err()
	}
	return t, nil
}

// ParseVarParameter parses an l-value suitable as a VAR parameter,
// leaving its address (rather than its value) on the emitted stack, per
// spec.md §4.1's varParameter contract.
func (p *Parser) ParseVarParameter(ctx exprtype.Type) (t exprtype.Type, err error) {
	defer recoverFatal(&err)
	t, e := p.varParameter(ctx)
	if e != nil {
		return t, e
	}
	if p.errs.Len() > 0 {
		return t, p.errs.Err()
	}
	return t, nil
}

// GetExpressionType maps a type symbol to its exprtype.Type, per spec.md
// §4.1's getExpressionType(typeSym) contract.
func GetExpressionType(typeSym *symtab.Symbol) exprtype.Type { return exprtype.FromSymbol(typeSym) }

// widthForKind returns the pcode operand width a value of the given
// symbol-table storage kind occupies on the evaluation stack.
func widthForKind(k symtab.SKind) pcode.Width {
	switch k {
	case symtab.SINT:
		return pcode.WidthInt
	case symtab.SWORD:
		return pcode.WidthWord
	case symtab.SSHORTINT:
		return pcode.WidthShortInt
	case symtab.SSHORTWORD:
		return pcode.WidthShortWord
	case symtab.SREAL:
		return pcode.WidthReal
	case symtab.SBOOLEAN:
		return pcode.WidthBool
	case symtab.SCHAR:
		return pcode.WidthChar
	case symtab.SSET:
		return pcode.WidthSet
	case symtab.SSTRING, symtab.SSHORTSTRING:
		return pcode.WidthString
	case symtab.SPOINTER, symtab.SVAR_PARM:
		return pcode.WidthPointer
	case symtab.SSCALAR, symtab.SSCALAR_OBJECT:
		return pcode.WidthInt
	default:
		return pcode.WidthRecord
	}
}
