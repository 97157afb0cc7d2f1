package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"github.com/mna/mainer"
	"github.com/mna/pascal/lang/poff"
	"github.com/mna/pascal/lang/vm"
)

// Run implements the `run` command: load a compiled POFF object and
// execute it, sizing the virtual machine's memory regions from PASCAL_*
// environment variables (spec.md §3's ambient config concern, carried
// from the teacher's own env-driven config loading pattern).
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	if len(args) != 1 {
		err := fmt.Errorf("run: exactly one object file is required")
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	var cfg vm.Config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	obj, err := poff.Load(data)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "run: %s: %s\n", args[0], err)
		return err
	}

	m := vm.New(obj, cfg)
	if err := m.Run(); err != nil {
		fmt.Fprintf(stdio.Stderr, "run: %s\n", err)
		return err
	}
	return nil
}
