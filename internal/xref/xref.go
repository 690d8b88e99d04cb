// Package xref implements the cross-reference builder (spec.md §4.5):
// it resolves direct FUNC_CALL targets, synthesizes syscall stubs for
// negative (trap) addresses, builds each function's Calls/CalledBy
// lists, and tallies the module's restored-call percentage.
package xref

import "github.com/zen19/qvmd/internal/model"

// BuildXrefs cross-references every direct call in mod.
func BuildXrefs(mod *model.Module) {
	var total, resolved int

	for _, fn := range mod.Functions {
		for _, st := range fn.Statements() {
			walk(mod, fn, st, &total, &resolved)
		}
	}

	if total > 0 {
		mod.RestoredCallPerc = 100 * float64(resolved) / float64(total)
	} else {
		mod.RestoredCallPerc = 100
	}
}

func walk(mod *model.Module, fn *model.Function, opb *model.Opblock, total, resolved *int) {
	if opb == nil {
		return
	}

	if opb.Kind() == model.OpbFuncCall {
		*total++
		if resolveCall(mod, fn, opb) {
			*resolved++
		}
	}

	walk(mod, fn, opb.Child, total, resolved)
	walk(mod, fn, opb.Op1, total, resolved)
	walk(mod, fn, opb.Op2, total, resolved)
}

// resolveCall attempts to resolve call's target. A direct call is one
// whose Child is still a raw CONST (the resolver never promotes a
// FUNC_CALL's operand — only LOAD/STORE/STRUCT_COPY address positions
// are variable references); anything else is an indirect call through
// a computed function pointer and is left unresolved.
func resolveCall(mod *model.Module, fn *model.Function, call *model.Opblock) bool {
	if call.Child == nil || call.Child.Kind() != model.OpbConst || call.Child.Opcode == nil {
		return false
	}

	value := call.Child.Opcode.Value
	address := uint32(value)
	var target *model.Function
	if value < 0 {
		// func_add_syscall (functions.c) names the stub from the raw,
		// already-unsigned VM address — not its negated magnitude.
		target = mod.AddSyscall(address, "trap_"+hexString(address))
	} else {
		target = mod.FindFunction(address)
		if target == nil {
			return false
		}
	}
	call.FunctionCalled = target
	fn.AddCall(target)
	target.AddCalledBy(fn)
	return true
}

func hexString(n uint32) string {
	const hexDigits = "0123456789abcdef"
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = hexDigits[n&0xf]
		n >>= 4
	}
	return string(buf[i:])
}
