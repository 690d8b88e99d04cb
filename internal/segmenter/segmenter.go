// Package segmenter implements the function segmenter (spec.md §4.2):
// it splits a decoded opcode sequence into functions on ENTER/LEAVE
// boundaries.
package segmenter

import (
	"github.com/zen19/qvmd/internal/model"
	"github.com/zen19/qvmd/internal/qvmerr"
)

const stage = "segmenter"

// Segment walks opcodes and returns the real functions found in
// address order (which is stream order — ENTER opcodes never appear
// out of address order within CODE), alongside the opcode slice owned
// by each (same length and order as the returned functions).
//
// A function's Address is the byte offset of its ENTER opcode;
// StackSize is ENTER's operand. Inferring a function's return size
// requires knowing whether a value is still on the lifter's work stack
// when LEAVE is reached — that is stack-shape information a flat
// opcode scan does not have, so ReturnSize is left at its zero value
// here and set by the lifter (internal/lifter) when it synthesizes the
// FUNC_RETURN opblock.
func Segment(opcodes []*model.Opcode) ([]*model.Function, [][]*model.Opcode, error) {
	var functions []*model.Function
	var bodies [][]*model.Opcode

	var current *model.Function
	var body []*model.Opcode
	inFunction := false

	for _, op := range opcodes {
		switch op.Kind {
		case model.OpEnter:
			if inFunction {
				return nil, nil, qvmerr.Malformed(stage, "ENTER at offset 0x%x while already inside a function", op.Offset)
			}
			if op.Value < 0 {
				return nil, nil, qvmerr.Malformed(stage, "ENTER at offset 0x%x declares a negative stack size", op.Offset)
			}
			inFunction = true
			current = model.NewFunction(op.Offset)
			current.StackSize = uint32(op.Value)
			current.State = model.StateEntered
			body = []*model.Opcode{op}

		case model.OpLeave:
			if !inFunction {
				return nil, nil, qvmerr.Malformed(stage, "LEAVE at offset 0x%x outside of a function", op.Offset)
			}
			body = append(body, op)
			current.OpcodeCount = len(body)
			current.State = model.StateLeft
			functions = append(functions, current)
			bodies = append(bodies, body)
			inFunction = false
			current = nil
			body = nil

		default:
			if inFunction {
				body = append(body, op)
				if current.State == model.StateEntered {
					current.State = model.StateBody
				}
			}
		}
	}

	if inFunction {
		return nil, nil, qvmerr.Malformed(stage, "unterminated function entered at offset 0x%x: missing LEAVE", current.Address)
	}

	return functions, bodies, nil
}
