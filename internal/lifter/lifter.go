// Package lifter implements the opblock lifter (spec.md §4.3): the
// stack-to-tree transform that folds a function's linear opcode
// sequence into a doubly-linked statement list whose operands are
// tree-shaped expression opblocks.
package lifter

import (
	"fmt"

	"github.com/zen19/qvmd/internal/model"
	"github.com/zen19/qvmd/internal/qvmerr"
)

const stage = "lifter"

// jumpTarget records an opblock (COMPARE, or a CONST mutated into
// JUMP_ADDRESS) waiting to have its Jumppoint wired once every
// statement in the function has a known code offset.
type jumpTarget struct {
	opb     *model.Opblock
	address uint32
}

// Lift folds fn's opcode slice into its statement list. mod receives
// ownership of every opblock created (spec.md §5 ownership model).
func Lift(mod *model.Module, fn *model.Function, opcodes []*model.Opcode) error {
	var stack []*model.Opblock
	var targets []jumpTarget
	created := 0

	own := func(kind model.OpblockKind, op *model.Opcode) *model.Opblock {
		opb := model.NewOpblock(kind, op)
		mod.Opblocks = append(mod.Opblocks, opb)
		created++
		return opb
	}

	pop := func() (*model.Opblock, error) {
		if len(stack) == 0 {
			return nil, qvmerr.Unbalanced(stage, "function %s (0x%x): popped an empty work stack", fn.Name, fn.Address)
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top, nil
	}
	push := func(opb *model.Opblock) { stack = append(stack, opb) }

	appendStmt := func(opb *model.Opblock, op *model.Opcode) {
		opb.Opcodes = []*model.Opcode{op}
		opb.OpcodesCount = 1
		fn.AppendStatement(opb)
	}

	for _, op := range opcodes {
		switch {
		case op.Kind == model.OpEnter:
			opb := own(model.OpbFuncEnter, op)
			appendStmt(opb, op)

		case op.Kind == model.OpLeave:
			if len(stack) > 0 {
				val, err := pop()
				if err != nil {
					return err
				}
				ret := own(model.OpbFuncReturn, op)
				ret.Child = val
				appendStmt(ret, op)
				fn.ReturnSize = 4
			}
			leave := own(model.OpbFuncLeave, op)
			appendStmt(leave, op)

		case op.Kind == model.OpArg:
			child, err := pop()
			if err != nil {
				return err
			}
			argB := own(model.OpbFuncArg, op)
			argB.Child = child
			appendStmt(argB, op)

		case op.Kind == model.OpCall:
			child, err := pop()
			if err != nil {
				return err
			}
			call := own(model.OpbFuncCall, op)
			call.Child = child
			push(call)

		case op.Kind == model.OpPop:
			child, err := pop()
			if err != nil {
				return err
			}
			popB := own(model.OpbPop, op)
			popB.Child = child
			appendStmt(popB, op)

		case op.Kind == model.OpConst:
			push(own(model.OpbConst, op))

		case op.Kind == model.OpLocal:
			push(own(model.OpbLocalAdr, op))

		case op.Kind == model.OpPush:
			push(own(model.OpbPush, op))

		case op.Kind == model.OpJump:
			child, err := pop()
			if err != nil {
				return err
			}
			if addr, ok := constAddress(child); ok {
				child.Info = model.Info(model.OpbJumpAddress)
				targets = append(targets, jumpTarget{child, addr})
			}
			j := own(model.OpbJump, op)
			j.Child = child
			appendStmt(j, op)

		case op.Kind == model.OpLoad1 || op.Kind == model.OpLoad2 || op.Kind == model.OpLoad4:
			child, err := pop()
			if err != nil {
				return err
			}
			size := loadStoreSize(op.Kind)
			l := own(model.OpbLoad, withValue(op, size))
			l.Child = child
			push(l)

		case op.Kind == model.OpStore1 || op.Kind == model.OpStore2 || op.Kind == model.OpStore4:
			value, err := pop() // top: value being stored
			if err != nil {
				return err
			}
			addr, err := pop() // deeper: destination address
			if err != nil {
				return err
			}
			size := loadStoreSize(op.Kind)
			a := own(model.OpbAssignation, withValue(op, size))
			a.Op1 = value
			a.Op2 = addr
			appendStmt(a, op)

		case op.Kind == model.OpBlockCopy:
			op1, err := pop()
			if err != nil {
				return err
			}
			op2, err := pop()
			if err != nil {
				return err
			}
			sc := own(model.OpbStructCopy, op)
			sc.Op1 = op1
			sc.Op2 = op2
			appendStmt(sc, op)

		case op.Kind == model.OpBreak:
			// debugger trap: no stack effect, no emitted opblock.

		case op.Kind.IsCompare():
			op1, err := pop()
			if err != nil {
				return err
			}
			op2, err := pop()
			if err != nil {
				return err
			}
			cmp := own(model.OpbCompare, op)
			cmp.Op1 = op1
			cmp.Op2 = op2
			targets = append(targets, jumpTarget{cmp, uint32(op.Value)})
			appendStmt(cmp, op)

		case op.Kind.IsUnaryOperation():
			child, err := pop()
			if err != nil {
				return err
			}
			o := own(model.OpbOperation, op)
			o.Child = child
			push(o)

		case op.Kind.IsBinaryOperation():
			op1, err := pop()
			if err != nil {
				return err
			}
			op2, err := pop()
			if err != nil {
				return err
			}
			o := own(model.OpbDoubleOperation, op)
			o.Op1 = op1
			o.Op2 = op2
			push(o)

		default:
			return qvmerr.Malformed(stage, "function %s (0x%x): opcode %s has no lifting rule", fn.Name, fn.Address, op.Info.Mnemonic)
		}
	}

	if len(stack) != 0 {
		return qvmerr.Unbalanced(stage, "function %s (0x%x): %d item(s) left on the work stack", fn.Name, fn.Address, len(stack))
	}

	fn.OpblockCount = created

	return resolveJumpTargets(mod, fn, targets)
}

// resolveJumpTargets is the post-pass of spec.md §4.3 step 4: every
// COMPARE/JUMP target address is matched against the statement that
// begins at that code offset, a JUMP_POINT is synthesized and inserted
// there (once per address), and every reference is wired to it.
func resolveJumpTargets(mod *model.Module, fn *model.Function, targets []jumpTarget) error {
	if len(targets) == 0 {
		return nil
	}

	offsetIndex := map[uint32]*model.Opblock{}
	for _, st := range fn.Statements() {
		if len(st.Opcodes) == 0 {
			continue
		}
		off := st.Opcodes[0].Offset
		if _, exists := offsetIndex[off]; !exists {
			offsetIndex[off] = st
		}
	}

	jumpPoints := map[uint32]*model.Opblock{}
	for _, t := range targets {
		jp, ok := jumpPoints[t.address]
		if !ok {
			mark, found := offsetIndex[t.address]
			if !found {
				return qvmerr.UnresolvedJmp(stage, "function %s (0x%x): jump target 0x%x has no statement boundary", fn.Name, fn.Address, t.address)
			}
			jp = model.NewOpblock(model.OpbJumpPoint, nil)
			mod.Opblocks = append(mod.Opblocks, jp)
			jp.Label = fmt.Sprintf("loc_%x", t.address)
			fn.InsertBefore(mark, jp)
			jumpPoints[t.address] = jp
		}
		t.opb.Jumppoint = jp
	}
	return nil
}

func constAddress(opb *model.Opblock) (uint32, bool) {
	if opb.Kind() != model.OpbConst || opb.Opcode == nil {
		return 0, false
	}
	return uint32(opb.Opcode.Value), true
}

func loadStoreSize(kind model.OpKind) int32 {
	switch kind {
	case model.OpLoad1, model.OpStore1:
		return 1
	case model.OpLoad2, model.OpStore2:
		return 2
	default:
		return 4
	}
}

// withValue returns a shallow copy of op with Value overridden, used
// when the lifted opblock's size comes from the opcode *kind*
// (LOAD1/2/4, STORE1/2/4) rather than a decoded operand.
func withValue(op *model.Opcode, value int32) *model.Opcode {
	clone := *op
	clone.Value = value
	return &clone
}
