// Package resolver implements the variable resolver (spec.md §4.4): it
// walks every function's lifted opblock tree, turns address-forming
// CONST and LOCAL_ADR opblocks into references to discovered
// Variables, and finalizes each variable's size from its access
// histogram.
package resolver

import (
	"github.com/zen19/qvmd/internal/model"
	"github.com/zen19/qvmd/internal/qvmerr"
)

const stage = "resolver"

// Resolve resolves every global and local/argument reference in mod.
func Resolve(mod *model.Module) error {
	for _, fn := range mod.Functions {
		for _, st := range fn.Statements() {
			walk(mod, fn, st)
		}
		fn.State = model.StateResolved
	}

	finalize(&mod.Globals)
	if err := cut(stage, &mod.Globals); err != nil {
		return err
	}
	fillGlobalContent(mod)

	for _, fn := range mod.Functions {
		finalize(&fn.Locals)
		if err := cut(stage, &fn.Locals); err != nil {
			return err
		}
	}

	return nil
}

// walk reproduces opb_load_variables (opblocks.c) exactly: the
// address operand of a LOAD/ASSIGNATION/STRUCT_COPY is resolved first,
// then a standalone LOCAL_ADR (one not already folded into one of
// those three cases, since resolving it there already rewrites its
// Kind to GLOBAL_ADR) is resolved on its own, then the walk descends
// into whichever of Child or (Op1, Op2) the node actually carries.
func walk(mod *model.Module, fn *model.Function, opb *model.Opblock) {
	if opb == nil {
		return
	}

	switch opb.Kind() {
	case model.OpbLoad:
		resolveAddressOperand(mod, fn, opb.Child, loadStoreSize(opb))
	case model.OpbAssignation:
		resolveAddressOperand(mod, fn, opb.Op2, loadStoreSize(opb))
	case model.OpbStructCopy:
		resolveConstOnly(mod, fn, opb.Op2)
	}

	if opb.Kind() == model.OpbLocalAdr {
		resolveLocalAdr(fn, opb)
	}

	walk(mod, fn, opb.Child)
	walk(mod, fn, opb.Op1)
	walk(mod, fn, opb.Op2)
}

// loadStoreSize recovers the access width the lifter stashed in
// Opcode.Value for LOAD/ASSIGNATION opblocks (internal/lifter.withValue).
func loadStoreSize(opb *model.Opblock) uint32 {
	if opb.Opcode == nil {
		return 0
	}
	return uint32(opb.Opcode.Value)
}

// resolveAddressOperand handles a LOAD/ASSIGNATION address operand
// that is either a LOCAL_ADR (search the function's locals) or a
// CONST (search globals); anything else (a computed pointer
// expression) is left untouched.
func resolveAddressOperand(mod *model.Module, fn *model.Function, addr *model.Opblock, usedSize uint32) {
	if addr == nil || addr.Opcode == nil {
		return
	}
	switch addr.Kind() {
	case model.OpbLocalAdr:
		v := varGet(&fn.Locals, localStatus(fn, uint32(addr.Opcode.Value)), uint32(addr.Opcode.Value), usedSize, fn)
		v.AddParent(fn)
		addr.Variable = v
		addr.Info = model.Info(model.OpbGlobalAdr)
	case model.OpbConst:
		address := uint32(addr.Opcode.Value)
		v := varGet(&mod.Globals, globalStatus(mod, address), address, usedSize, nil)
		v.AddParent(fn)
		addr.Variable = v
		addr.Info = model.Info(model.OpbGlobalAdr)
	}
}

// resolveConstOnly is STRUCT_COPY's narrower rule: only a CONST
// address operand is resolved, never a LOCAL_ADR.
func resolveConstOnly(mod *model.Module, fn *model.Function, addr *model.Opblock) {
	if addr == nil || addr.Opcode == nil || addr.Kind() != model.OpbConst {
		return
	}
	address := uint32(addr.Opcode.Value)
	v := varGet(&mod.Globals, globalStatus(mod, address), address, 0, nil)
	v.AddParent(fn)
	addr.Variable = v
	addr.Info = model.Info(model.OpbGlobalAdr)
}

// resolveLocalAdr handles a LOCAL_ADR reached directly (e.g. its
// address is passed as a call argument rather than dereferenced).
func resolveLocalAdr(fn *model.Function, opb *model.Opblock) {
	if opb.Opcode == nil {
		return
	}
	address := uint32(opb.Opcode.Value)
	v := varGet(&fn.Locals, localStatus(fn, address), address, 0, fn)
	v.AddParent(fn)
	opb.Variable = v
}

func localStatus(fn *model.Function, address uint32) model.VarStatus {
	if address >= fn.StackSize {
		return model.VarArg
	}
	return model.VarLocal
}

func globalStatus(mod *model.Module, address uint32) model.VarStatus {
	dataLen := uint32(len(mod.Sections.Data))
	dataLitLen := mod.Sections.DataLitLen()
	switch {
	case address < dataLen:
		return model.VarGlobal
	case address < dataLitLen:
		return model.VarLiteral
	default:
		return model.VarBSS
	}
}

// varGet is var_get/var_create (variables.c): find the variable at
// address in list, or create it with a name derived from status, and
// record the access-size observation either way. fn is only consulted
// for VarArg naming (the argument index is relative to fn's frame) and
// is nil for globals/literals/BSS.
func varGet(list *model.VariableList, status model.VarStatus, address, usedSize uint32, fn *model.Function) *model.Variable {
	v := list.Find(address)
	if v == nil {
		v = model.NewVariable(defaultName(status, address, fn), address, status)
		list.Insert(v)
	}
	v.Observe(usedSize)
	return v
}

// defaultName is var_create's naming scheme (variables.c). An argument's
// decimal suffix is its slot index, not its raw stack address: the
// first word past the saved return address (stack_size + 8) is arg 0.
func defaultName(status model.VarStatus, address uint32, fn *model.Function) string {
	switch status {
	case model.VarGlobal:
		return "global_" + hexString(address)
	case model.VarLiteral:
		return "lit_" + hexString(address)
	case model.VarBSS:
		return "bss_" + hexString(address)
	case model.VarArg:
		return "arg_" + decString((address-fn.StackSize-8)/4)
	default:
		return "local_" + hexString(address)
	}
}

const hexDigits = "0123456789abcdef"

func hexString(n uint32) string {
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

func decString(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// finalize locks in every variable's size from its access histogram.
func finalize(list *model.VariableList) {
	for _, v := range list.All() {
		v.FinalizeSize()
	}
}

// cut resolves overlap between adjacent variables: when an earlier
// variable's finalized size runs into the next variable's address, the
// earlier one is shrunk (variables.c's var_cut) to make room. A shrink
// that would leave a size outside {1, 2, 4} is unresolvable.
func cut(stage string, list *model.VariableList) error {
	vars := list.All()
	for i := 0; i+1 < len(vars); i++ {
		cur, next := vars[i], vars[i+1]
		if cur.Size == 0 {
			continue
		}
		end := cur.Address + cur.Size
		if end <= next.Address {
			continue
		}
		newSize := next.Address - cur.Address
		if newSize != 1 && newSize != 2 && newSize != 4 {
			return qvmerr.CutFailed(stage, "variable %s at 0x%x (size %d) overlaps %s at 0x%x and cannot be cut to a valid size", cur.Name, cur.Address, cur.Size, next.Name, next.Address)
		}
		cur.Size = newSize
	}
	return nil
}

func fillGlobalContent(mod *model.Module) {
	dataLen := uint32(len(mod.Sections.Data))
	for _, v := range mod.Globals.All() {
		if v.Size == 0 {
			continue
		}
		switch v.Status {
		case model.VarGlobal:
			end := v.Address + v.Size
			if end <= dataLen {
				v.Content = mod.Sections.Data[v.Address:end]
			}
		case model.VarLiteral:
			start := v.Address - dataLen
			end := start + v.Size
			if end <= uint32(len(mod.Sections.Lit)) {
				v.Content = mod.Sections.Lit[start:end]
			}
		}
	}
}
