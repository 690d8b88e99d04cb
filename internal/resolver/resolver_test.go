package resolver

import (
	"testing"

	"github.com/zen19/qvmd/internal/lifter"
	"github.com/zen19/qvmd/internal/model"
)

func opc(kind model.OpKind, value int32, offset uint32) *model.Opcode {
	return &model.Opcode{Kind: kind, Value: value, Info: model.OpInfoFor(kind), Offset: offset}
}

// buildAssignment lifts CONST 0x100 / CONST 0x2a / STORE4 inside a
// trivial function, the spec's global-assignment scenario.
func buildAssignment(t *testing.T) (*model.Module, *model.Function) {
	t.Helper()
	mod := model.NewModule("test")
	mod.Sections.Data = make([]byte, 0x108)
	fn := model.NewFunction(0)
	opcodes := []*model.Opcode{
		opc(model.OpEnter, 0, 0),
		opc(model.OpConst, 0x100, 5),
		opc(model.OpConst, 0x2a, 10),
		opc(model.OpStore4, 0, 15),
		opc(model.OpLeave, 0, 16),
	}
	if err := lifter.Lift(mod, fn, opcodes); err != nil {
		t.Fatalf("Lift: %v", err)
	}
	mod.Functions = []*model.Function{fn}
	return mod, fn
}

func TestResolveGlobalAssignment(t *testing.T) {
	mod, fn := buildAssignment(t)

	if err := Resolve(mod); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if mod.Globals.Len() != 1 {
		t.Fatalf("got %d globals, want 1", mod.Globals.Len())
	}
	v := mod.Globals.Find(0x100)
	if v == nil {
		t.Fatal("no global at 0x100")
	}
	if v.Name != "global_100" {
		t.Errorf("Name = %q, want global_100", v.Name)
	}
	if v.Size != 4 {
		t.Errorf("Size = %d, want 4", v.Size)
	}
	if len(v.Parents) != 1 || v.Parents[0] != fn {
		t.Errorf("Parents = %v, want [fn]", v.Parents)
	}

	assign := fn.Statements()[1]
	if assign.Op2.Kind() != model.OpbGlobalAdr {
		t.Errorf("Op2.Kind() = %v, want GLOBAL_ADR", assign.Op2.Kind())
	}
	if assign.Op2.Variable != v {
		t.Errorf("Op2.Variable is not the resolved global")
	}
}

func TestResolveLocalArgSplit(t *testing.T) {
	mod := model.NewModule("test")
	fn := model.NewFunction(0)
	fn.StackSize = 8
	opcodes := []*model.Opcode{
		opc(model.OpEnter, 8, 0),
		opc(model.OpLocal, 4, 5),  // a local, below stack_size
		opc(model.OpLoad4, 0, 10),
		opc(model.OpPop, 0, 11),
		opc(model.OpLocal, 20, 12), // an argument, at/above stack_size
		opc(model.OpLoad4, 0, 17),
		opc(model.OpPop, 0, 18),
		opc(model.OpLeave, 0, 19),
	}
	if err := lifter.Lift(mod, fn, opcodes); err != nil {
		t.Fatalf("Lift: %v", err)
	}
	mod.Functions = []*model.Function{fn}

	if err := Resolve(mod); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	local := fn.Locals.Find(4)
	if local == nil || local.Status != model.VarLocal || local.Name != "local_4" {
		t.Errorf("local var = %+v", local)
	}
	arg := fn.Locals.Find(20)
	if arg == nil || arg.Status != model.VarArg || arg.Name != "arg_1" {
		t.Errorf("arg var = %+v", arg)
	}
}

func TestVariableCut(t *testing.T) {
	var list model.VariableList
	base := model.NewVariable("global_100", 0x100, model.VarGlobal)
	list.Insert(base)
	next := model.NewVariable("global_104", 0x104, model.VarGlobal)
	list.Insert(next)

	// Simulate the spec's scenario directly: a variable at 0x100 was
	// given a provisional 8-byte span before a later LOAD4 at 0x104
	// revealed the true inner boundary. finalize() is bypassed here
	// since its histogram-based sizing never produces anything above 4;
	// cut() is exercised on its own, against sizes set by hand.
	base.Size = 8
	next.Size = 4

	if err := cut("test", &list); err != nil {
		t.Fatalf("cut: %v", err)
	}
	if base.Size != 4 {
		t.Errorf("base.Size = %d, want 4 (cut down from 8)", base.Size)
	}
	if next.Size != 4 {
		t.Errorf("next.Size = %d, want 4", next.Size)
	}
}

func TestVariableCutUnresolvable(t *testing.T) {
	var list model.VariableList
	base := model.NewVariable("global_100", 0x100, model.VarGlobal)
	list.Insert(base)
	next := model.NewVariable("global_103", 0x103, model.VarGlobal)
	list.Insert(next)

	// A gap of 3 bytes can't be expressed as one of {1, 2, 4}.
	base.Size = 8
	next.Size = 4

	if err := cut("test", &list); err == nil {
		t.Fatal("expected a cut-failed error for an unresolvable overlap")
	}
}
