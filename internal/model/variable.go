package model

// VarStatus classifies a variable's storage (spec.md §3).
type VarStatus int

const (
	VarGlobal VarStatus = iota
	VarLiteral
	VarBSS
	VarLocal
	VarArg
)

func (s VarStatus) String() string {
	switch s {
	case VarGlobal:
		return "GLOBAL"
	case VarLiteral:
		return "LITERAL"
	case VarBSS:
		return "BSS"
	case VarLocal:
		return "LOCAL"
	case VarArg:
		return "ARG"
	default:
		return "UNKNOWN"
	}
}

const maxNameLen = 64

// Variable is a global, literal, BSS cell, local, or argument
// discovered by the variable resolver (spec.md §3, §4.4).
type Variable struct {
	Name    string
	Address uint32
	Size    uint32 // chosen after observation; 0 until finalized

	// ProbSize is the probable-size histogram keyed by observed access
	// size (1, 2, 4); index 0 and 3 are unused but present so the
	// histogram can be indexed directly by size.
	ProbSize [5]int

	Content []byte // optional slice into DATA/LIT; nil for BSS/locals/args
	Status  VarStatus

	// Parents lists the functions that reference this variable, each
	// present at most once, insertion order (first reference wins).
	Parents []*Function

	Variadic bool // reserved; never set by this implementation
}

// NewVariable allocates a variable at address with name/status already
// decided by the caller (var_create in variables.c).
func NewVariable(name string, address uint32, status VarStatus) *Variable {
	return &Variable{Name: name, Address: address, Status: status}
}

// AddParent records fn as a referencing function, deduplicated.
func (v *Variable) AddParent(fn *Function) {
	for _, p := range v.Parents {
		if p == fn {
			return
		}
	}
	v.Parents = append(v.Parents, fn)
}

// Observe increments the probable-size histogram for a used-size hint
// of 1, 2, or 4; other sizes are ignored (var_create's used_size guard).
func (v *Variable) Observe(usedSize uint32) {
	if usedSize == 1 || usedSize == 2 || usedSize == 4 {
		v.ProbSize[usedSize]++
	}
}

// FinalizeSize picks the final size as the argmax of the histogram
// over {4, 2, 1}, ties broken towards 4 (spec.md §4.4, open question).
// A variable never observed by a sized access keeps size 0.
func (v *Variable) FinalizeSize() {
	best := uint32(0)
	bestCount := 0
	for _, size := range [3]uint32{4, 2, 1} {
		if c := v.ProbSize[size]; c > bestCount {
			bestCount = c
			best = size
		}
	}
	v.Size = best
}

// VariableList is an address-ordered, strictly-increasing list of
// variables (either a function's locals/args or the module's globals).
type VariableList struct {
	vars []*Variable
}

// Find returns the variable at address, or nil.
func (l *VariableList) Find(address uint32) *Variable {
	// Addresses are sorted; linear scan mirrors var_find's behavior
	// (small lists in practice, and the source itself is linear).
	for _, v := range l.vars {
		if v.Address == address {
			return v
		}
	}
	return nil
}

// indexOfGreatestBelow returns the index of the variable with the
// greatest address strictly less than address, or -1 if none
// (var_find_prev in variables.c).
func (l *VariableList) indexOfGreatestBelow(address uint32) int {
	prev := -1
	for i, v := range l.vars {
		if v.Address < address {
			if prev == -1 || v.Address > l.vars[prev].Address {
				prev = i
			}
		}
	}
	return prev
}

// Insert splices v into the list keeping addresses strictly increasing.
func (l *VariableList) Insert(v *Variable) {
	idx := l.indexOfGreatestBelow(v.Address)
	if idx == -1 {
		l.vars = append([]*Variable{v}, l.vars...)
		return
	}
	tail := append([]*Variable{}, l.vars[idx+1:]...)
	l.vars = append(l.vars[:idx+1:idx+1], v)
	l.vars = append(l.vars, tail...)
}

// All returns the variables in address order. Callers must not mutate
// the returned slice.
func (l *VariableList) All() []*Variable { return l.vars }

// Len reports the number of variables in the list.
func (l *VariableList) Len() int { return len(l.vars) }
