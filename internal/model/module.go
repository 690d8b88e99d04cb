package model

// Sections holds the raw bytes parsed from a QVM file by the external
// loader (spec.md §6). BSS has no content, only a length.
type Sections struct {
	Code    []byte
	Data    []byte
	Lit     []byte
	BSSSize uint32
}

// DataLitLen is the combined length of DATA and LIT, the boundary used
// by the variable resolver to classify globals vs. literals vs. BSS.
func (s *Sections) DataLitLen() uint32 {
	return uint32(len(s.Data) + len(s.Lit))
}

// Module is the top-level aggregate owning every function, variable,
// opcode, and opblock (spec.md §3, §5). Its lifetime bounds theirs;
// there is no separate release step in Go — the Module and everything
// it owns is reclaimed together by the garbage collector once
// unreferenced, the idiomatic analogue of the "arena drop" in
// spec.md §9.
type Module struct {
	Name     string
	Sections Sections

	Functions []*Function // address-order, real functions only
	Syscalls  []*Function // insertion order

	Globals VariableList

	Opcodes  []*Opcode
	Opblocks []*Opblock

	InstructionCount int
	RestoredCallPerc float64
}

// NewModule allocates an empty module named name.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// FindFunction looks up a function (real or syscall) by VM address,
// scanning known functions before syscalls (functions.c:func_find).
func (m *Module) FindFunction(address uint32) *Function {
	for _, fn := range m.Functions {
		if fn.Address == address {
			return fn
		}
	}
	for _, sc := range m.Syscalls {
		if sc.Address == address {
			return sc
		}
	}
	return nil
}

// AddSyscall returns the existing syscall stub at address, or creates
// and registers a new one named trap_<hex>.
func (m *Module) AddSyscall(address uint32, name string) *Function {
	for _, sc := range m.Syscalls {
		if sc.Address == address {
			return sc
		}
	}
	sc := NewSyscall(address, name)
	m.Syscalls = append(m.Syscalls, sc)
	return sc
}

// GlobalsCount reports the number of module-level variables.
func (m *Module) GlobalsCount() int { return m.Globals.Len() }
