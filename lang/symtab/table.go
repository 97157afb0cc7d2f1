package symtab

import "github.com/dolthub/swiss"

// Table is a stack of lexical scopes mapping names to Symbols, keyed
// case-insensitively (Pascal identifiers are case-insensitive). It plays
// the same structural role as the teacher's swiss-backed machine.Map: a
// hash index fronting the heavier Symbol payload, sized up front when the
// expected scope size is known.
type Table struct {
	scopes []*swiss.Map[string, *Symbol]
	level  int
}

// NewTable returns a Table with a single, top-level (level 0) scope.
func NewTable() *Table {
	t := &Table{}
	t.PushScope()
	return t
}

// PushScope opens a new nested scope (e.g. entering a procedure body or a
// WITH statement) and returns the new static nesting level.
func (t *Table) PushScope() int {
	t.scopes = append(t.scopes, swiss.NewMap[string, *Symbol](8))
	t.level = len(t.scopes) - 1
	return t.level
}

// PopScope closes the innermost scope.
func (t *Table) PopScope() {
	if len(t.scopes) <= 1 {
		panic("symtab: PopScope called on top-level scope")
	}
	t.scopes = t.scopes[:len(t.scopes)-1]
	t.level = len(t.scopes) - 1
}

// Level returns the current static nesting level.
func (t *Table) Level() int { return t.level }

// Declare adds sym to the innermost scope under name (case folded by the
// caller — callers go through the DeclareXxx helpers below, which fold the
// name themselves). It returns false without modifying the table if name is
// already declared in the innermost scope.
func (t *Table) Declare(name string, sym *Symbol) bool {
	m := t.scopes[len(t.scopes)-1]
	if _, ok := m.Get(name); ok {
		return false
	}
	sym.Level = t.level
	m.Put(name, sym)
	return true
}

// Lookup searches scopes from innermost to outermost (level len-1 down to
// 0) and returns the first match, or nil if name is not declared anywhere.
func (t *Table) Lookup(name string) *Symbol {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if sym, ok := t.scopes[i].Get(name); ok {
			return sym
		}
	}
	return nil
}

// LookupField searches rec.Fields for a field named name (case-sensitive
// match is not needed since builders already fold case), used by the
// RECORD/RECORD_OBJECT simpleFactor case in spec.md §4.1.
func LookupField(rec *Symbol, name string) *Symbol {
	for _, f := range rec.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}
