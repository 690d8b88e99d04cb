// Package emitter implements the textual emitter (spec.md §6): it
// walks a fully linked module and renders the C-like listing that
// every earlier pipeline stage exists to feed. It is an external
// collaborator by spec.md §1's own framing — out of scope for the
// core's algorithms — but implemented here so the module is runnable
// end to end.
package emitter

import (
	"fmt"
	"strings"

	"github.com/zen19/qvmd/internal/model"
	"github.com/zen19/qvmd/internal/qvmerr"
)

const (
	stage   = "emitter"
	version = "1.0"
)

// Emit renders mod as a complete textual listing. Every function in
// mod must already be model.StateLinked (spec.md §4.7's emission
// precondition).
func Emit(mod *model.Module) (string, error) {
	for _, fn := range mod.Functions {
		if fn.State != model.StateLinked {
			return "", qvmerr.Malformed(stage, "function %s (0x%x) is not linked (state %s)", fn.Name, fn.Address, fn.State)
		}
	}

	var b strings.Builder
	writeBanner(&b, mod)
	writeGlobals(&b, mod)
	for _, fn := range mod.Functions {
		writeFunction(&b, fn)
	}
	return b.String(), nil
}

func writeBanner(b *strings.Builder, mod *model.Module) {
	fmt.Fprintf(b, "/*\n")
	fmt.Fprintf(b, "\tQVM Decompiler %s by zen\n\n", version)
	fmt.Fprintf(b, "\tName: %s\n", mod.Name)
	fmt.Fprintf(b, "\tOpcodes Count: %d\n", mod.InstructionCount)
	fmt.Fprintf(b, "\tFunctions Count: %d\n", len(mod.Functions))
	fmt.Fprintf(b, "\tSyscalls Count: %d\n", len(mod.Syscalls))
	fmt.Fprintf(b, "\tGlobals Count: %d\n", mod.GlobalsCount())
	fmt.Fprintf(b, "\tCalls Restored: %.2f\n", mod.RestoredCallPerc)
	fmt.Fprintf(b, "*/\n\n")
}

func writeGlobals(b *strings.Builder, mod *model.Module) {
	for _, v := range mod.Globals.All() {
		switch v.Size {
		case 4:
			b.WriteString("int\t\t")
		case 2:
			b.WriteString("short\t")
		default:
			b.WriteString("char\t")
		}

		b.WriteString(v.Name)

		if v.Size > 4 || v.Size < 1 || v.Size == 3 {
			fmt.Fprintf(b, "[%d]", v.Size)
		}

		if v.Status == model.VarGlobal {
			b.WriteString(" = ")
			writeGlobalValue(b, v)
		}

		b.WriteString(";")

		if len(v.Parents) > 0 {
			b.WriteString(" // Used by: ")
			for i, p := range v.Parents {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(p.Name)
			}
		}

		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeGlobalValue(b *strings.Builder, v *model.Variable) {
	switch v.Size {
	case 1:
		if len(v.Content) >= 1 {
			fmt.Fprintf(b, "%d", int8(v.Content[0]))
		}
	case 2:
		if len(v.Content) >= 2 {
			fmt.Fprintf(b, "%d", int16(uint16(v.Content[0])|uint16(v.Content[1])<<8))
		}
	case 4:
		if len(v.Content) >= 4 {
			n := uint32(v.Content[0]) | uint32(v.Content[1])<<8 | uint32(v.Content[2])<<16 | uint32(v.Content[3])<<24
			fmt.Fprintf(b, "%d", int32(n))
		}
	default:
		b.WriteString("\"")
		for _, c := range v.Content {
			fmt.Fprintf(b, "\\x%02x", c)
		}
		b.WriteString("\"")
	}
}

func writeFunction(b *strings.Builder, fn *model.Function) {
	fmt.Fprintf(b, "/*\n=================\n")
	fmt.Fprintf(b, "%s\n\n", fn.Name)
	fmt.Fprintf(b, "Address: 0x%x\n", fn.Address)
	fmt.Fprintf(b, "Stack Size: 0x%x\n", fn.StackSize)

	if len(fn.Calls) > 0 {
		b.WriteString("Calls: ")
		for i, c := range fn.Calls {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c.Name)
		}
		b.WriteString("\n")
	}
	if len(fn.CalledBy) > 0 {
		b.WriteString("Called by: ")
		for i, c := range fn.CalledBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c.Name)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "=================\n*/\n")

	for st := fn.OpblockHead; st != nil; st = st.Next {
		writeStatement(b, fn, st)
	}
	b.WriteString("\n")
}

func unindented(kind model.OpblockKind) bool {
	return kind == model.OpbFuncEnter || kind == model.OpbFuncLeave || kind == model.OpbFuncArg
}

func writeStatement(b *strings.Builder, fn *model.Function, st *model.Opblock) {
	if st.OpcodesCount > 0 {
		if !unindented(st.Kind()) {
			b.WriteString("\t")
		}
		writeExpr(b, st)
		if !unindented(st.Kind()) {
			b.WriteString(";")
		}
		b.WriteString("\n")
	}

	if st.Kind() == model.OpbJumpPoint {
		fmt.Fprintf(b, "%s:\n", st.Label)
	}

	if st.Kind() == model.OpbFuncEnter {
		writeLocals(b, fn)
	}
}

func writeLocals(b *strings.Builder, fn *model.Function) {
	for _, v := range fn.Locals.All() {
		if v.Address >= fn.StackSize {
			break
		}
		switch v.Size {
		case 4:
			fmt.Fprintf(b, "\tint\t\t%s;\n", v.Name)
		case 2:
			fmt.Fprintf(b, "\tshort\t%s;\n", v.Name)
		case 1:
			fmt.Fprintf(b, "\tchar\t%s;\n", v.Name)
		default:
			fmt.Fprintf(b, "\tchar\t%s[%d];\n", v.Name, v.Size)
		}
	}
	b.WriteString("\n")
}

// writeExpr is opb_print: the single recursive per-kind renderer
// shared between statement and subexpression positions.
func writeExpr(b *strings.Builder, opb *model.Opblock) {
	switch opb.Kind() {
	case model.OpbUndef, model.OpbPush:
		// no textual representation

	case model.OpbFuncEnter:
		writeFuncEnter(b, opb)

	case model.OpbFuncReturn:
		b.WriteString("return ")
		writeExpr(b, opb.Child)

	case model.OpbFuncLeave:
		b.WriteString("}")

	case model.OpbFuncArg:
		fmt.Fprintf(b, "#define next_call_arg_%d \"", argIndex(opb))
		writeExpr(b, opb.Child)
		b.WriteString("\"")

	case model.OpbFuncCall:
		writeFuncCall(b, opb)

	case model.OpbPop:
		writeExpr(b, opb.Child)

	case model.OpbConst:
		fmt.Fprintf(b, "0x%x", uint32(opb.Opcode.Value))

	case model.OpbLocalAdr, model.OpbGlobalAdr:
		writeAddressName(b, opb)

	case model.OpbLocal, model.OpbGlobal:
		b.WriteString(opb.Variable.Name)

	case model.OpbJump:
		b.WriteString("goto ")
		writeExpr(b, opb.Child)

	case model.OpbCompare:
		b.WriteString("if (")
		writeExpr(b, opb.Op2)
		fmt.Fprintf(b, " %s ", opb.Opcode.Info.Operation)
		writeExpr(b, opb.Op1)
		fmt.Fprintf(b, ") goto %s", opb.Jumppoint.Label)

	case model.OpbLoad:
		writeLoadLike(b, opb.Child, uint32(opb.Opcode.Value))

	case model.OpbAssignation:
		writeLoadLike(b, opb.Op2, uint32(opb.Opcode.Value))
		b.WriteString(" = ")
		writeExpr(b, opb.Op1)

	case model.OpbStructCopy:
		b.WriteString("block_copy(")
		writeExpr(b, opb.Op2)
		b.WriteString(", ")
		writeExpr(b, opb.Op1)
		fmt.Fprintf(b, ", 0x%x)", uint32(opb.Opcode.Value))

	case model.OpbOperation:
		b.WriteString(opb.Opcode.Info.Operation)
		writeExpr(b, opb.Child)

	case model.OpbDoubleOperation:
		b.WriteString("(")
		writeExpr(b, opb.Op2)
		fmt.Fprintf(b, " %s ", opb.Opcode.Info.Operation)
		writeExpr(b, opb.Op1)
		b.WriteString(")")

	case model.OpbJumpPoint:
		fmt.Fprintf(b, "%s:", opb.Label)

	case model.OpbJumpAddress:
		b.WriteString(opb.Jumppoint.Label)
	}
}

// argIndex recovers the argument slot number from the ARG opcode's raw
// stack-offset operand (opblocks.c: "(opcode->value - 8) / 4").
func argIndex(opb *model.Opblock) int32 {
	if opb.Opcode == nil {
		return 0
	}
	return (opb.Opcode.Value - 8) / 4
}

func writeFuncEnter(b *strings.Builder, opb *model.Opblock) {
	fn := opb.Function
	if fn.ReturnSize == 4 {
		b.WriteString("int ")
	} else {
		b.WriteString("void ")
	}
	fmt.Fprintf(b, "%s(", fn.Name)

	args := argsOf(fn)
	if len(args) == 0 {
		b.WriteString("void")
	} else {
		for i, v := range args {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "int %s", v.Name)
		}
	}
	b.WriteString(") {")
}

func argsOf(fn *model.Function) []*model.Variable {
	var args []*model.Variable
	for _, v := range fn.Locals.All() {
		if v.Address >= fn.StackSize {
			args = append(args, v)
		}
	}
	return args
}

func writeFuncCall(b *strings.Builder, call *model.Opblock) {
	if call.FunctionCalled != nil {
		fmt.Fprintf(b, "%s(", call.FunctionCalled.Name)
	} else {
		b.WriteString("(*(")
		writeExpr(b, call.Child)
		b.WriteString("))(")
	}

	first := true
	for arg := call.FunctionArg; arg != nil && arg.Kind() == model.OpbFuncArg; arg = arg.Next {
		if !first {
			b.WriteString(", ")
		}
		first = false
		writeExpr(b, arg.Child)
	}
	b.WriteString(")")
}

// writeAddressName renders a LOCAL_ADR/GLOBAL_ADR node: "&name" when
// the variable is exactly 1/2/4 bytes, otherwise the bare name (a byte
// array's name already denotes its address in this listing's
// conventions).
func writeAddressName(b *strings.Builder, opb *model.Opblock) {
	v := opb.Variable
	if v.Size == 1 || v.Size == 2 || v.Size == 4 {
		fmt.Fprintf(b, "&%s", v.Name)
	} else {
		b.WriteString(v.Name)
	}
}

// writeLoadLike is opb_load plus its caller's fallback: an address
// operand that is itself a resolved variable of exactly the accessed
// size collapses to a bare name; anything else is a cast dereference.
func writeLoadLike(b *strings.Builder, addr *model.Opblock, size uint32) {
	if addr.Kind() == model.OpbGlobalAdr && addr.Variable != nil && addr.Variable.Size == size {
		b.WriteString(addr.Variable.Name)
		return
	}
	switch size {
	case 1:
		b.WriteString("*(char *)")
	case 2:
		b.WriteString("*(short *)")
	case 4:
		b.WriteString("*(int *)")
	}
	writeExpr(b, addr)
}
