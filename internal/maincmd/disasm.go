package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/pascal/lang/pcode"
	"github.com/mna/pascal/lang/poff"
)

// Disasm implements the `disasm` command: load a compiled POFF object and
// print its code section as the textual p-code format lang/pcode.Format
// produces, grounded on the teacher's own compiler/asm.go disassembler
// (spec.md §7's "A textual p-code assembler/disassembler" supplement).
func (c *Cmd) Disasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
		obj, err := poff.Load(data)
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "disasm: %s: %s\n", path, err)
			return err
		}
		instrs, err := pcode.Disasm(obj)
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "disasm: %s: %s\n", path, err)
			return err
		}
		fmt.Fprint(stdio.Stdout, pcode.Format(obj, instrs))
	}
	return nil
}
