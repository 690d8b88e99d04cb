package lifter

import (
	"testing"

	"github.com/zen19/qvmd/internal/model"
)

func build(t *testing.T, opcodes []*model.Opcode) (*model.Module, *model.Function) {
	t.Helper()
	mod := model.NewModule("test")
	fn := model.NewFunction(opcodes[0].Offset)
	if err := Lift(mod, fn, opcodes); err != nil {
		t.Fatalf("Lift: %v", err)
	}
	return mod, fn
}

func opc(kind model.OpKind, value int32, offset uint32) *model.Opcode {
	return &model.Opcode{Kind: kind, Value: value, Info: model.OpInfoFor(kind), Offset: offset}
}

func TestLiftEmptyFunction(t *testing.T) {
	opcodes := []*model.Opcode{
		opc(model.OpEnter, 0, 0),
		opc(model.OpLeave, 0, 5),
	}
	_, fn := build(t, opcodes)

	stmts := fn.Statements()
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(stmts))
	}
	if stmts[0].Kind() != model.OpbFuncEnter || stmts[1].Kind() != model.OpbFuncLeave {
		t.Errorf("statements = %v, %v", stmts[0].Kind(), stmts[1].Kind())
	}
	if fn.ReturnSize != 0 {
		t.Errorf("ReturnSize = %d, want 0", fn.ReturnSize)
	}
}

func TestLiftGlobalAssignment(t *testing.T) {
	opcodes := []*model.Opcode{
		opc(model.OpEnter, 0, 0),
		opc(model.OpConst, 0x100, 5),
		opc(model.OpConst, 0x2a, 10),
		opc(model.OpStore4, 0, 15),
		opc(model.OpLeave, 0, 16),
	}
	_, fn := build(t, opcodes)

	stmts := fn.Statements()
	if len(stmts) != 3 {
		t.Fatalf("got %d statements, want 3", len(stmts))
	}
	assign := stmts[1]
	if assign.Kind() != model.OpbAssignation {
		t.Fatalf("stmts[1].Kind() = %v, want ASSIGNATION", assign.Kind())
	}
	if assign.Op1.Kind() != model.OpbConst || assign.Op1.Opcode.Value != 0x2a {
		t.Errorf("Op1 = %+v, want CONST 0x2a", assign.Op1)
	}
	if assign.Op2.Kind() != model.OpbConst || assign.Op2.Opcode.Value != 0x100 {
		t.Errorf("Op2 = %+v, want CONST 0x100", assign.Op2)
	}
}

func TestLiftConditionalBranch(t *testing.T) {
	opcodes := []*model.Opcode{
		opc(model.OpEnter, 0, 0),
		opc(model.OpLocal, 0x4, 5),
		opc(model.OpLoad4, 0, 10),
		opc(model.OpConst, 0, 11),
		opc(model.OpEq, 21, 16),
		opc(model.OpLeave, 0, 21),
	}
	_, fn := build(t, opcodes)

	stmts := fn.Statements()
	if len(stmts) != 4 {
		t.Fatalf("got %d statements, want 4 (enter, compare, jump point, leave)", len(stmts))
	}
	cmp := stmts[1]
	if cmp.Kind() != model.OpbCompare {
		t.Fatalf("stmts[1].Kind() = %v, want COMPARE", cmp.Kind())
	}
	if cmp.Op2.Kind() != model.OpbLoad {
		t.Errorf("Op2 = %v, want LOAD", cmp.Op2.Kind())
	}
	if cmp.Op1.Kind() != model.OpbConst {
		t.Errorf("Op1 = %v, want CONST", cmp.Op1.Kind())
	}
	if stmts[2].Kind() != model.OpbJumpPoint {
		t.Fatalf("stmts[2].Kind() = %v, want JUMP_POINT", stmts[2].Kind())
	}
	if cmp.Jumppoint != stmts[2] {
		t.Errorf("Compare's Jumppoint does not reference the inserted JUMP_POINT")
	}
}

func TestLiftUnbalancedStack(t *testing.T) {
	opcodes := []*model.Opcode{
		opc(model.OpEnter, 0, 0),
		opc(model.OpPush, 0, 5),
		opc(model.OpPush, 0, 6),
		opc(model.OpLeave, 0, 7),
	}
	mod := model.NewModule("test")
	fn := model.NewFunction(0)
	if err := Lift(mod, fn, opcodes); err == nil {
		t.Fatal("expected an unbalanced-stack error")
	}
}

func TestLiftUnresolvedJump(t *testing.T) {
	opcodes := []*model.Opcode{
		opc(model.OpEnter, 0, 0),
		opc(model.OpConst, 0xdead, 5),
		opc(model.OpJump, 0, 10),
		opc(model.OpLeave, 0, 11),
	}
	mod := model.NewModule("test")
	fn := model.NewFunction(0)
	if err := Lift(mod, fn, opcodes); err == nil {
		t.Fatal("expected an unresolved-jump error")
	}
}
