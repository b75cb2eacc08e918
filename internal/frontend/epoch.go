package frontend

import (
	"github.com/wazevofx/wazevo/internal/ssa"
	"github.com/wazevofx/wazevo/internal/wazevoapi"
)

// epochCheck implements the function-entry half of spec §4.4's epoch-based interruption:
// cache the pointer to the process-wide epoch counter and the function's deadline, then run
// the same comparison a loop header re-runs on every later iteration.
func (fe *FuncEnv) epochCheck(entry ssa.BasicBlock) {
	builder := fe.ssaBuilder
	offs := fe.layout.Offsets()

	ptrLoad := builder.AllocateInstruction()
	ptrLoad.AsLoad(fe.VMCtx(), offs.RuntimeLimits.EpochPtrOffset, ssa.TypeI64)
	builder.InsertInstruction(ptrLoad)
	builder.DefineVariable(fe.epochPtrVar, ptrLoad.Return(), entry)

	deadlineLoad := builder.AllocateInstruction()
	deadlineLoad.AsLoad(fe.VMCtx(), offs.RuntimeLimits.EpochDeadlineOffset, ssa.TypeI64)
	builder.InsertInstruction(deadlineLoad)
	builder.DefineVariable(fe.epochDeadlineVar, deadlineLoad.Return(), entry)
	fe.epochVarsKnown = true

	fe.checkEpoch()
}

// checkEpoch compares the live epoch counter against the cached deadline and, on or past it,
// falls to a cold path that re-reads the authoritative deadline from vmctx before paying for the
// new_epoch builtin: the scheduler may have advanced the real deadline concurrently with this
// function's execution, so a cached-deadline miss is only a maybe-exceeded, not a confirmed one.
// new_epoch either raises a trap (by never returning, from the embedder's perspective) or hands
// back a refreshed deadline to cache; the non-exceeded branch caches the freshly reloaded
// deadline directly, without calling it. EpochCheckAtLoopHeader calls this same logic at every
// loop header per spec §4.4's "re-checked at loop headers".
func (fe *FuncEnv) checkEpoch() {
	if !fe.tunables.EpochEnabled {
		return
	}
	builder := fe.ssaBuilder
	offs := fe.layout.Offsets()
	epochPtr := builder.FindValue(fe.epochPtrVar)
	deadline := builder.FindValue(fe.epochDeadlineVar)

	load := builder.AllocateInstruction()
	load.AsAtomicLoad(epochPtr, 0, 8, ssa.TypeI64)
	builder.InsertInstruction(load)

	cmp := builder.AllocateInstruction()
	cmp.AsIcmp(load.Return(), deadline, ssa.IntegerCmpCondUnsignedGreaterThanOrEqual)
	builder.InsertInstruction(cmp)

	exceeded := builder.AllocateBasicBlock()
	cont := builder.AllocateBasicBlock()

	br := builder.AllocateInstruction()
	br.AsBrnz(cmp.Return(), nil, exceeded)
	builder.InsertInstruction(br)

	fallthroughJump := builder.AllocateInstruction()
	fallthroughJump.AsJump(nil, cont)
	fallthroughJump.AsFallthroughJump()
	builder.InsertInstruction(fallthroughJump)
	builder.SetCurrentBlock(cont)

	prevBlk := builder.CurrentBlock()
	builder.SetCurrentBlock(exceeded)

	reload := builder.AllocateInstruction()
	reload.AsLoad(fe.VMCtx(), offs.RuntimeLimits.EpochDeadlineOffset, ssa.TypeI64)
	builder.InsertInstruction(reload)

	stillExceeded := builder.AllocateInstruction()
	stillExceeded.AsIcmp(load.Return(), reload.Return(), ssa.IntegerCmpCondUnsignedGreaterThanOrEqual)
	builder.InsertInstruction(stillExceeded)

	trulyExceeded := builder.AllocateBasicBlock()
	stillBr := builder.AllocateInstruction()
	stillBr.AsBrnz(stillExceeded.Return(), nil, trulyExceeded)
	builder.InsertInstruction(stillBr)

	// The scheduler already pushed the deadline past the counter; cache it and resume without
	// calling new_epoch.
	builder.DefineVariableInCurrentBB(fe.epochDeadlineVar, reload.Return())
	refreshedJump := builder.AllocateInstruction()
	refreshedJump.AsJump(nil, cont)
	builder.InsertInstruction(refreshedJump)

	exceededPrevBlk := builder.CurrentBlock()
	builder.SetCurrentBlock(trulyExceeded)
	res := fe.callBuiltin(wazevoapi.BuiltinFunctionIndexNewEpoch, nil)
	builder.DefineVariableInCurrentBB(fe.epochDeadlineVar, res[0])
	contJump := builder.AllocateInstruction()
	contJump.AsJump(nil, cont)
	builder.InsertInstruction(contJump)
	builder.Seal(trulyExceeded)
	builder.SetCurrentBlock(exceededPrevBlk)

	builder.Seal(exceeded)
	builder.Seal(cont)
	builder.SetCurrentBlock(prevBlk)
}

// EpochCheckAtLoopHeader implements the loop-header re-check named in spec §4.4, called by the
// control-flow lowering that builds loop headers.
func (fe *FuncEnv) EpochCheckAtLoopHeader() { fe.checkEpoch() }
