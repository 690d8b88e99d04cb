package xref

import (
	"testing"

	"github.com/zen19/qvmd/internal/lifter"
	"github.com/zen19/qvmd/internal/model"
)

func opc(kind model.OpKind, value int32, offset uint32) *model.Opcode {
	return &model.Opcode{Kind: kind, Value: value, Info: model.OpInfoFor(kind), Offset: offset}
}

// buildCall lifts CONST <target> / CALL / POP inside a trivial function,
// returning the module with both the caller and (if real) the callee
// already registered.
func buildCall(t *testing.T, target int32, registerCallee bool) (*model.Module, *model.Function) {
	t.Helper()
	mod := model.NewModule("test")
	caller := model.NewFunction(0)
	opcodes := []*model.Opcode{
		opc(model.OpEnter, 0, 0),
		opc(model.OpConst, target, 5),
		opc(model.OpCall, 0, 10),
		opc(model.OpPop, 0, 11),
		opc(model.OpLeave, 0, 12),
	}
	if err := lifter.Lift(mod, caller, opcodes); err != nil {
		t.Fatalf("Lift: %v", err)
	}
	mod.Functions = []*model.Function{caller}
	if registerCallee && target >= 0 {
		callee := model.NewFunction(uint32(target))
		mod.Functions = append(mod.Functions, callee)
	}
	return mod, caller
}

func findCall(fn *model.Function) *model.Opblock {
	for _, st := range fn.Statements() {
		if st.Kind() == model.OpbPop && st.Child != nil && st.Child.Kind() == model.OpbFuncCall {
			return st.Child
		}
	}
	return nil
}

func TestBuildXrefsDirectCall(t *testing.T) {
	mod, caller := buildCall(t, 10, true)
	callee := mod.Functions[1]

	BuildXrefs(mod)

	call := findCall(caller)
	if call == nil {
		t.Fatal("no FUNC_CALL found in caller")
	}
	if call.FunctionCalled != callee {
		t.Errorf("FunctionCalled = %v, want %v", call.FunctionCalled, callee)
	}
	if len(caller.Calls) != 1 || caller.Calls[0] != callee {
		t.Errorf("caller.Calls = %v, want [callee]", caller.Calls)
	}
	if len(callee.CalledBy) != 1 || callee.CalledBy[0] != caller {
		t.Errorf("callee.CalledBy = %v, want [caller]", callee.CalledBy)
	}
	if mod.RestoredCallPerc != 100 {
		t.Errorf("RestoredCallPerc = %v, want 100", mod.RestoredCallPerc)
	}
}

func TestBuildXrefsSyscallNaming(t *testing.T) {
	// -7 as a raw int32 is 0xFFFFFFF9; func_add_syscall (functions.c)
	// names the stub from that raw unsigned address, not its magnitude.
	mod, caller := buildCall(t, -7, false)

	BuildXrefs(mod)

	call := findCall(caller)
	if call == nil {
		t.Fatal("no FUNC_CALL found in caller")
	}
	if call.FunctionCalled == nil {
		t.Fatal("call left unresolved")
	}
	if call.FunctionCalled.Name != "trap_fffffff9" {
		t.Errorf("syscall name = %q, want trap_fffffff9", call.FunctionCalled.Name)
	}
	if !call.FunctionCalled.IsSyscall {
		t.Error("syscall stub not marked IsSyscall")
	}
	if len(mod.Syscalls) != 1 {
		t.Errorf("got %d syscalls, want 1", len(mod.Syscalls))
	}
}

func TestBuildXrefsUnresolvedDirectCall(t *testing.T) {
	// Target 99 matches no known function and isn't negative, so the
	// call is counted but left unresolved.
	mod, caller := buildCall(t, 99, false)

	BuildXrefs(mod)

	call := findCall(caller)
	if call.FunctionCalled != nil {
		t.Errorf("FunctionCalled = %v, want nil", call.FunctionCalled)
	}
	if mod.RestoredCallPerc != 0 {
		t.Errorf("RestoredCallPerc = %v, want 0", mod.RestoredCallPerc)
	}
}

func TestBuildXrefsSyscallDeduped(t *testing.T) {
	mod := model.NewModule("test")
	caller := model.NewFunction(0)
	opcodes := []*model.Opcode{
		opc(model.OpEnter, 0, 0),
		opc(model.OpConst, -7, 5),
		opc(model.OpCall, 0, 10),
		opc(model.OpPop, 0, 11),
		opc(model.OpConst, -7, 12),
		opc(model.OpCall, 0, 17),
		opc(model.OpPop, 0, 18),
		opc(model.OpLeave, 0, 19),
	}
	if err := lifter.Lift(mod, caller, opcodes); err != nil {
		t.Fatalf("Lift: %v", err)
	}
	mod.Functions = []*model.Function{caller}

	BuildXrefs(mod)

	if len(mod.Syscalls) != 1 {
		t.Errorf("got %d syscalls, want 1 (deduped)", len(mod.Syscalls))
	}
	if len(caller.Calls) != 1 {
		t.Errorf("caller.Calls = %v, want a single deduped entry", caller.Calls)
	}
}
