package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/pascal/lang/codegen"
	"github.com/mna/pascal/lang/exprtype"
	"github.com/mna/pascal/lang/pcode"
	"github.com/mna/pascal/lang/poff"
	"github.com/mna/pascal/lang/symtab"
)

// Compile implements the `compile` command: it reads a single source file
// holding one Pascal expression (declaration-level parsing is out of
// scope, per spec.md §1/§8 — lang/codegen implements only the expression
// grammar), compiles it into a tiny ENT/<expression>/RET program, and
// writes the resulting POFF object either to -o/--output or to stdout.
func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	if len(args) != 1 {
		err := fmt.Errorf("compile: exactly one source file is required")
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	wr := poff.NewWriter()
	em := pcode.NewEmitter(wr)
	tab := symtab.NewTable()

	em.GenerateEntry(0)
	p := codegen.NewParser(src, tab, em)
	if _, err := p.ParseExpression(exprtype.Unknown); err != nil {
		fmt.Fprintf(stdio.Stderr, "compile: %s\n", err)
		return err
	}
	em.StandardFunctionCall(pcode.StdWriteInt)
	em.StandardFunctionCall(pcode.StdWriteLn)
	em.GenerateReturn(pcode.WidthRecord)

	out := stdio.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
		defer f.Close()
		out = f
	}
	_, err = out.Write(wr.Bytes())
	return err
}
