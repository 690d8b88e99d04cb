package model

// OpblockKind is the closed set of opblock kinds (spec.md §3). Each
// kind carries fixed stack-effect flags.
type OpblockKind int

const (
	OpbUndef OpblockKind = iota
	OpbFuncEnter
	OpbFuncReturn
	OpbFuncLeave
	OpbFuncArg
	OpbFuncCall
	OpbPush
	OpbPop
	OpbConst
	OpbGlobalAdr
	OpbGlobal
	OpbLocalAdr
	OpbLocal
	OpbJump
	OpbCompare
	OpbLoad
	OpbAssignation
	OpbStructCopy
	OpbOperation
	OpbDoubleOperation
	OpbJumpPoint
	OpbJumpAddress
	opbMax
)

// Stack-effect flags, matching qvm_opblocks_info in opblocks.c.
const (
	FlagPops1 = 1 << iota // pop one operand into Child
	FlagPops2             // pop two operands into Op1 (top), Op2 (deeper)
	FlagPushes            // push the new opblock onto the work stack
	FlagStatement         // append to the function's statement list (BLOCK_ADD)
)

// OpblockInfo is the static per-kind metadata table, immutable and
// indexed by kind — the Go equivalent of qvm_opblocks_info.
type OpblockInfo struct {
	Kind  OpblockKind
	Flags int
}

var opblockInfoTable = [opbMax]OpblockInfo{
	OpbUndef:           {OpbUndef, 0},
	OpbFuncEnter:       {OpbFuncEnter, FlagStatement},
	OpbFuncReturn:      {OpbFuncReturn, FlagPops1 | FlagStatement},
	OpbFuncLeave:       {OpbFuncLeave, FlagPops1 | FlagStatement},
	OpbFuncArg:         {OpbFuncArg, FlagPops1 | FlagStatement},
	OpbFuncCall:        {OpbFuncCall, FlagPops1 | FlagPushes},
	OpbPush:            {OpbPush, FlagPushes},
	OpbPop:             {OpbPop, FlagPops1 | FlagStatement},
	OpbConst:           {OpbConst, FlagPushes},
	OpbGlobalAdr:       {OpbGlobalAdr, FlagPushes},
	OpbGlobal:          {OpbGlobal, FlagPushes},
	OpbLocalAdr:        {OpbLocalAdr, FlagPushes},
	OpbLocal:           {OpbLocal, FlagPushes},
	OpbJump:            {OpbJump, FlagPops1 | FlagStatement},
	OpbCompare:         {OpbCompare, FlagPops2 | FlagStatement},
	OpbLoad:            {OpbLoad, FlagPops1 | FlagPushes},
	OpbAssignation:     {OpbAssignation, FlagPops2 | FlagStatement},
	OpbStructCopy:      {OpbStructCopy, FlagPops2 | FlagStatement},
	OpbOperation:       {OpbOperation, FlagPops1 | FlagPushes},
	OpbDoubleOperation: {OpbDoubleOperation, FlagPops2 | FlagPushes},
	OpbJumpPoint:       {OpbJumpPoint, 0},
	OpbJumpAddress:     {OpbJumpAddress, FlagPushes},
}

// Info returns the static metadata for kind.
func Info(kind OpblockKind) *OpblockInfo {
	return &opblockInfoTable[kind]
}

func (i *OpblockInfo) Pops1() bool     { return i.Flags&FlagPops1 != 0 }
func (i *OpblockInfo) Pops2() bool     { return i.Flags&FlagPops2 != 0 }
func (i *OpblockInfo) Pushes() bool    { return i.Flags&FlagPushes != 0 }
func (i *OpblockInfo) Statement() bool { return i.Flags&FlagStatement != 0 }

// Opblock is the central entity of the lifter: either a statement (in
// a function's linear list via Prev/Next) or a subexpression hanging
// off another opblock's Child/Op1/Op2.
type Opblock struct {
	Info   *OpblockInfo
	Opcode *Opcode // originating decoded opcode; nil for synthesized blocks

	// Tree edges.
	Child *Opblock // single operand
	Op1   *Opblock // binary right-hand (shallower on the stack)
	Op2   *Opblock // binary left-hand (deeper on the stack)

	// Statement-list edges.
	Prev *Opblock
	Next *Opblock

	// Back-references.
	Function        *Function // owning function
	FunctionCalled  *Function // resolved direct-call target
	Jumppoint       *Opblock  // the OpbJumpPoint this compare/jump/address targets
	Variable        *Variable // for address-forming blocks
	FunctionArg     *Opblock  // first FUNC_ARG statement feeding this call
	ReturnGoto      *Opblock  // synthesized goto target for restored returns

	Opcodes      []*Opcode // contiguous raw opcodes this block covers
	OpcodesCount int

	// Label names a synthesized JUMP_POINT ("loc_<hex>"); empty for
	// every other kind.
	Label string
}

// NewOpblock allocates a fresh opblock of kind, wrapping opcode (which
// may be nil for synthesized blocks like JUMP_POINT).
func NewOpblock(kind OpblockKind, opcode *Opcode) *Opblock {
	return &Opblock{Info: Info(kind), Opcode: opcode}
}

// Kind is a convenience accessor for Info.Kind.
func (o *Opblock) Kind() OpblockKind {
	if o == nil || o.Info == nil {
		return OpbUndef
	}
	return o.Info.Kind
}
