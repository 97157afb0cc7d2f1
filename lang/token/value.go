package token

// Value is the payload carried alongside the current Kind in the token
// stream: spec.md's data model names "current token kind, integer value,
// real value, pointer-to-symbol, literal-string buffer". Sym is typed as
// any so that package token does not import the symbol-table package —
// consumers (lang/codegen) type-assert it back to *symtab.Symbol.
type Value struct {
	Pos Pos

	// Name is the raw identifier or keyword text (lower-cased).
	Name string

	// IntVal holds the value of an INTLIT token.
	IntVal int64

	// RealVal holds an REALLIT token's value as four little-endian 16-bit
	// halves of an IEEE-754 double, matching the wire format the code
	// generator pushes onto the Pascal stack (spec.md §3, §4.1).
	RealVal [4]uint16

	// Str holds the decoded text of a STRINGLIT or CHARLIT token.
	Str string

	// Sym is the resolved symbol-table entry for an IDENT token, or nil.
	Sym any
}

// RealValFromBits splits the IEEE-754 bit pattern of f into four
// little-endian 16-bit halves, as pushed on the Pascal stack.
func RealValFromBits(bits uint64) [4]uint16 {
	return [4]uint16{
		uint16(bits),
		uint16(bits >> 16),
		uint16(bits >> 32),
		uint16(bits >> 48),
	}
}

// RealValToBits reassembles the IEEE-754 bit pattern from its four
// little-endian 16-bit halves.
func RealValToBits(halves [4]uint16) uint64 {
	return uint64(halves[0]) | uint64(halves[1])<<16 | uint64(halves[2])<<32 | uint64(halves[3])<<48
}
