// Package linker implements the call-argument linker (spec.md §4.6): it
// associates the contiguous run of FUNC_ARG statements preceding a call
// with the FUNC_CALL they feed, so the emitter can print a call with
// its argument list instead of a free-standing ARG/CALL sequence.
package linker

import "github.com/zen19/qvmd/internal/model"

// LinkArgs walks every statement in mod's functions and, for each one
// that wraps a FUNC_CALL, records the earliest FUNC_ARG statement in
// the contiguous run immediately preceding it.
func LinkArgs(mod *model.Module) {
	for _, fn := range mod.Functions {
		for _, st := range fn.Statements() {
			if call := isCall(st); call != nil {
				call.FunctionArg = firstPrecedingArg(st)
			}
		}
		fn.State = model.StateLinked
	}
}

// isCall is opb_is_call (opblocks.c): a depth-first search for the
// FUNC_CALL embedded anywhere under a statement — a call is always
// popped by the very next opblock built on top of it, but that
// wrapper may itself nest one level deep (e.g. ASSIGNATION's Op1).
func isCall(opb *model.Opblock) *model.Opblock {
	if opb == nil {
		return nil
	}
	if opb.Kind() == model.OpbFuncCall {
		return opb
	}
	if call := isCall(opb.Child); call != nil {
		return call
	}
	if call := isCall(opb.Op1); call != nil {
		return call
	}
	return isCall(opb.Op2)
}

// firstPrecedingArg walks backward from st over the contiguous run of
// FUNC_ARG statements and returns the earliest one, or nil if st is not
// immediately preceded by any.
func firstPrecedingArg(st *model.Opblock) *model.Opblock {
	var first *model.Opblock
	for cur := st.Prev; cur.Kind() == model.OpbFuncArg; cur = cur.Prev {
		first = cur
	}
	return first
}
