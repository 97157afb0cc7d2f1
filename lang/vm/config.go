package vm

// Config sizes the virtual machine's memory regions. Defaults keep the
// total comfortably under the 65536-byte address space a 16-bit-clean
// program counter and stack/heap pointers can name, per DESIGN.md's
// byte-addressed memory decision.
type Config struct {
	StringStackSize uint32 `env:"PASCAL_STRING_STACK_SIZE" envDefault:"2048"`
	PascalStackSize uint32 `env:"PASCAL_STACK_SIZE" envDefault:"8192"`
	HeapSize        uint32 `env:"PASCAL_HEAP_SIZE" envDefault:"16384"`
	MaxOpenFiles    uint32 `env:"PASCAL_MAX_OPEN_FILES" envDefault:"64"`
	TraceExec       bool   `env:"PASCAL_TRACE_EXEC" envDefault:"false"`
}
