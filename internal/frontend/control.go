package frontend

import (
	"github.com/wazevofx/wazevo/internal/ssa"
	"github.com/wazevofx/wazevo/internal/wasm"
	"github.com/wazevofx/wazevo/internal/wazevoapi"
)

// BeginBody seals the entry block and pushes the outermost control frame representing the
// function itself, whose `end` is the implicit return. Called once, after BeforeFunction and
// before the first operator is dispatched.
func (fe *FuncEnv) BeginBody() {
	builder := fe.ssaBuilder
	builder.Seal(fe.entryBlock)
	fe.state.ctrlPush(controlFrame{
		kind:           controlFrameKindFunction,
		params:         fe.fnType.Params,
		results:        fe.fnType.Results,
		followingBlock: builder.ReturnBlock(),
	})
}

// addBlockParamsFromWasmTypes declares one SSA block parameter per Wasm value type, in order.
func (fe *FuncEnv) addBlockParamsFromWasmTypes(types []wasm.ValueType, blk ssa.BasicBlock) {
	for _, t := range types {
		blk.AddParam(fe.ssaBuilder, WasmTypeToSSAType(t))
	}
}

func cloneValuesList(in []ssa.Value) []ssa.Value {
	out := make([]ssa.Value, len(in))
	copy(out, in)
	return out
}

// insertJumpToBlock emits an unconditional jump to targetBlk carrying args, in the current
// block.
func (fe *FuncEnv) insertJumpToBlock(args []ssa.Value, targetBlk ssa.BasicBlock) {
	builder := fe.ssaBuilder
	jmp := builder.AllocateInstruction()
	jmp.AsJump(args, targetBlk)
	builder.InsertInstruction(jmp)
}

// switchTo resets the operand stack to originalStackLen and starts translating targetBlk,
// pushing its own block parameters back onto the stack (a structured block's results, or a
// loop's params, become live operand-stack values again once control resumes there). A
// target with no predecessors at this point can never be reached, so subsequent operators
// until the matching `end` are marked unreachable, mirroring dead-code elimination for
// unreachable code the operand-stack discipline would otherwise choke on.
func (fe *FuncEnv) switchTo(originalStackLen int, targetBlk ssa.BasicBlock) {
	if targetBlk.Preds() == 0 {
		fe.state.unreachable = true
	}
	fe.state.values = fe.state.values[:originalStackLen]
	fe.ssaBuilder.SetCurrentBlock(targetBlk)
	for i := 0; i < targetBlk.Params(); i++ {
		fe.state.push(targetBlk.Param(i))
	}
}

// brTargetArgNumFor resolves a relative branch depth to its target block and the number of
// stack values the branch must carry: a loop's params (branching to its header re-enters the
// loop) or a block's results (branching out of it supplies its result).
func (fe *FuncEnv) brTargetArgNumFor(labelIndex uint32) (targetBlk ssa.BasicBlock, argNum int) {
	f := fe.state.ctrlPeekAt(int(labelIndex))
	if f.isLoop() {
		return f.blk, len(f.params)
	}
	return f.followingBlock, len(f.results)
}

// TranslateBlock implements the `block` operator.
func (fe *FuncEnv) TranslateBlock(bt wasm.BlockType) {
	if fe.state.unreachable {
		fe.state.unreachableDepth++
		return
	}
	followingBlk := fe.ssaBuilder.AllocateBasicBlock()
	fe.addBlockParamsFromWasmTypes(bt.Results, followingBlk)
	fe.state.ctrlPush(controlFrame{
		kind:                         controlFrameKindBlock,
		originalStackLenWithoutParam: len(fe.state.values) - len(bt.Params),
		followingBlock:               followingBlk,
		params:                       bt.Params,
		results:                      bt.Results,
	})
}

// TranslateLoop implements the `loop` operator.
func (fe *FuncEnv) TranslateLoop(bt wasm.BlockType) {
	if fe.state.unreachable {
		fe.state.unreachableDepth++
		return
	}
	builder := fe.ssaBuilder
	loopHeader, afterLoopBlock := builder.AllocateBasicBlock(), builder.AllocateBasicBlock()
	fe.addBlockParamsFromWasmTypes(bt.Params, loopHeader)
	fe.addBlockParamsFromWasmTypes(bt.Results, afterLoopBlock)

	originalLen := len(fe.state.values) - len(bt.Params)
	fe.state.ctrlPush(controlFrame{
		originalStackLenWithoutParam: originalLen,
		kind:                         controlFrameKindLoop,
		blk:                          loopHeader,
		followingBlock:               afterLoopBlock,
		params:                       bt.Params,
		results:                      bt.Results,
	})

	var args []ssa.Value
	if len(bt.Params) > 0 {
		args = cloneValuesList(fe.state.values[originalLen:])
	}
	fe.insertJumpToBlock(args, loopHeader)
	fe.switchTo(originalLen, loopHeader)

	if fe.tunables.FuelEnabled {
		fe.FlushFuelAtBlockBoundary()
	}
	if fe.tunables.EpochEnabled {
		fe.EpochCheckAtLoopHeader()
	}
}

// TranslateIf implements the `if` operator.
func (fe *FuncEnv) TranslateIf(bt wasm.BlockType) {
	if fe.state.unreachable {
		fe.state.unreachableDepth++
		return
	}
	builder := fe.ssaBuilder
	v := fe.state.pop()
	thenBlk, elseBlk, followingBlk := builder.AllocateBasicBlock(), builder.AllocateBasicBlock(), builder.AllocateBasicBlock()
	fe.addBlockParamsFromWasmTypes(bt.Results, followingBlk)

	var args []ssa.Value
	if len(bt.Params) > 0 {
		args = cloneValuesList(fe.state.values[len(fe.state.values)-len(bt.Params):])
	}

	brz := builder.AllocateInstruction()
	brz.AsBrz(v, nil, elseBlk)
	builder.InsertInstruction(brz)
	fe.insertJumpToBlock(nil, thenBlk)

	fe.state.ctrlPush(controlFrame{
		kind:                         controlFrameKindIfWithoutElse,
		originalStackLenWithoutParam: len(fe.state.values) - len(bt.Params),
		blk:                          elseBlk,
		followingBlock:               followingBlk,
		params:                       bt.Params,
		results:                      bt.Results,
		clonedArgs:                   args,
	})

	builder.SetCurrentBlock(thenBlk)
	builder.Seal(thenBlk)
	builder.Seal(elseBlk)
}

// TranslateElse implements the `else` operator.
func (fe *FuncEnv) TranslateElse() {
	ifctrl := fe.state.ctrlPeekAt(0)
	if fe.state.unreachable && fe.state.unreachableDepth > 0 {
		return
	}
	ifctrl.kind = controlFrameKindIfWithElse
	if !fe.state.unreachable {
		args := fe.state.nPeekDup(len(ifctrl.results))
		fe.insertJumpToBlock(args, ifctrl.followingBlock)
	} else {
		fe.state.unreachable = false
	}

	fe.state.values = fe.state.values[:ifctrl.originalStackLenWithoutParam]
	elseBlk := ifctrl.blk
	for _, arg := range ifctrl.clonedArgs {
		fe.state.push(arg)
	}
	fe.ssaBuilder.SetCurrentBlock(elseBlk)
}

// TranslateEnd implements the `end` operator, closing the innermost open control frame.
func (fe *FuncEnv) TranslateEnd() {
	builder := fe.ssaBuilder
	if fe.state.unreachableDepth > 0 {
		fe.state.unreachableDepth--
		return
	}

	ctrl := fe.state.ctrlPop()
	followingBlk := ctrl.followingBlock

	if !fe.state.unreachable {
		args := fe.state.nPeekDup(len(ctrl.results))
		fe.insertJumpToBlock(args, followingBlk)
	} else {
		fe.state.unreachable = false
	}

	switch ctrl.kind {
	case controlFrameKindLoop:
		builder.Seal(ctrl.blk)
	case controlFrameKindIfWithoutElse:
		elseBlk := ctrl.blk
		builder.SetCurrentBlock(elseBlk)
		fe.insertJumpToBlock(ctrl.clonedArgs, followingBlk)
	}
	builder.Seal(ctrl.followingBlock)
	fe.switchTo(ctrl.originalStackLenWithoutParam, followingBlk)
}

// TranslateBr implements the `br` operator.
func (fe *FuncEnv) TranslateBr(labelIndex uint32) {
	if fe.state.unreachable {
		return
	}
	targetBlk, argNum := fe.brTargetArgNumFor(labelIndex)
	args := fe.state.nPeekDup(argNum)
	fe.insertJumpToBlock(args, targetBlk)
	fe.state.unreachable = true
	if fe.tunables.FuelEnabled {
		fe.FlushFuelAtBlockBoundary()
	}
}

// TranslateBrIf implements the `br_if` operator.
func (fe *FuncEnv) TranslateBrIf(labelIndex uint32) {
	if fe.state.unreachable {
		return
	}
	builder := fe.ssaBuilder
	v := fe.state.pop()
	targetBlk, argNum := fe.brTargetArgNumFor(labelIndex)
	args := fe.state.nPeekDup(argNum)

	brnz := builder.AllocateInstruction()
	brnz.AsBrnz(v, args, targetBlk)
	builder.InsertInstruction(brnz)

	elseBlk := builder.AllocateBasicBlock()
	fe.insertJumpToBlock(nil, elseBlk)
	builder.Seal(elseBlk)
	builder.SetCurrentBlock(elseBlk)
	if fe.tunables.FuelEnabled {
		fe.FlushFuelAtBlockBoundary()
	}
}

// TranslateBrTable implements the `br_table` operator: targets holds every case's relative
// branch depth, defaultLabel the depth used when index is out of range.
func (fe *FuncEnv) TranslateBrTable(targets []uint32, defaultLabel uint32, index ssa.Value) {
	if fe.state.unreachable {
		return
	}
	builder := fe.ssaBuilder

	f := fe.state.ctrlPeekAt(int(defaultLabel))
	var numArgs int
	if f.isLoop() {
		numArgs = len(f.params)
	} else {
		numArgs = len(f.results)
	}
	args := fe.state.nPeekDup(numArgs)

	allLabels := append(append([]uint32{}, targets...), defaultLabel)
	trampolines := make([]ssa.BasicBlock, len(allLabels))
	currentBlk := builder.CurrentBlock()
	for i, l := range allLabels {
		targetBlk, _ := fe.brTargetArgNumFor(l)
		trampoline := builder.AllocateBasicBlock()
		builder.SetCurrentBlock(trampoline)
		fe.insertJumpToBlock(args, targetBlk)
		trampolines[i] = trampoline
	}
	builder.SetCurrentBlock(currentBlk)

	brTable := builder.AllocateInstruction()
	brTable.AsBrTable(index, trampolines)
	builder.InsertInstruction(brTable)
	for _, trampoline := range trampolines {
		builder.Seal(trampoline)
	}
	fe.state.unreachable = true
}

// TranslateReturn implements the `return` operator (and the implicit return at a function
// body's outermost `end`).
func (fe *FuncEnv) TranslateReturn() {
	if fe.state.unreachable {
		return
	}
	if fe.tunables.FuelEnabled {
		fe.FlushFuelOnReturn()
	}
	results := fe.state.nPeekDup(len(fe.fnType.Results))
	instr := fe.ssaBuilder.AllocateInstruction()
	instr.AsReturn(results)
	fe.ssaBuilder.InsertInstruction(instr)
	fe.state.unreachable = true
}

// TranslateUnreachable implements the `unreachable` operator.
func (fe *FuncEnv) TranslateUnreachable() {
	if fe.state.unreachable {
		return
	}
	if fe.tunables.FuelEnabled {
		fe.FlushFuelOnTrap()
	}
	exit := fe.ssaBuilder.AllocateInstruction()
	exit.AsExitWithCode(fe.VMCtx(), wazevoapi.ExitCodeUnreachable)
	fe.ssaBuilder.InsertInstruction(exit)
	fe.state.unreachable = true
}

// TranslateDrop implements the `drop` operator.
func (fe *FuncEnv) TranslateDrop() { fe.state.pop() }

// TranslateSelect implements the `select` operator (and, identically, `select t` with an
// explicit result type, since this IR doesn't need the annotation to lower it).
func (fe *FuncEnv) TranslateSelect() {
	cond := fe.state.pop()
	v2 := fe.state.pop()
	v1 := fe.state.pop()
	sel := fe.ssaBuilder.AllocateInstruction()
	sel.AsSelect(cond, v1, v2)
	fe.ssaBuilder.InsertInstruction(sel)
	fe.state.push(sel.Return())
}

// TranslateLocalGet implements `local.get`.
func (fe *FuncEnv) TranslateLocalGet(index wasm.Index) {
	v := fe.ssaBuilder.FindValue(fe.localVariable(index))
	fe.state.push(v)
}

// TranslateLocalSet implements `local.set`.
func (fe *FuncEnv) TranslateLocalSet(index wasm.Index) {
	v := fe.state.pop()
	fe.ssaBuilder.DefineVariableInCurrentBB(fe.localVariable(index), v)
}

// TranslateLocalTee implements `local.tee`.
func (fe *FuncEnv) TranslateLocalTee(index wasm.Index) {
	v := fe.state.peek()
	fe.ssaBuilder.DefineVariableInCurrentBB(fe.localVariable(index), v)
}
