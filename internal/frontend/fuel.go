package frontend

import (
	"github.com/wazevofx/wazevo/internal/ssa"
	"github.com/wazevofx/wazevo/internal/wazevoapi"
)

// fuelEntry implements the function-entry half of spec §4.4's fuel machine: declare the
// cached variable, load current fuel from vmctx's runtime limits, and immediately check for
// exhaustion (a function whose very first instruction is a trap still needs the check, since
// "minimum one unit of fuel is charged per non-empty function" per spec §6).
func (fe *FuncEnv) fuelEntry() {
	builder := fe.ssaBuilder
	offs := fe.layout.Offsets()

	load := builder.AllocateInstruction()
	load.AsLoad(fe.VMCtx(), offs.RuntimeLimits.FuelOffset, ssa.TypeI64)
	builder.InsertInstruction(load)
	builder.DefineVariableInCurrentBB(fe.fuelVar, load.Return())
	fe.fuelVarKnown = true

	fe.checkFuel()
}

// checkFuel folds fe.fuelAccum into the live fuel variable and, if it has reached or crossed
// zero, emits the out-of-gas cold path. Fuel is encoded as a negative counter incrementing
// toward zero (spec §4.4): the zero-crossing test is a single signed compare.
func (fe *FuncEnv) checkFuel() {
	if !fe.tunables.FuelEnabled {
		return
	}
	fe.foldFuelAccum()

	builder := fe.ssaBuilder
	cur := builder.FindValue(fe.fuelVar)

	zero := builder.AllocateInstruction()
	zero.AsIconst64(0)
	builder.InsertInstruction(zero)

	cmp := builder.AllocateInstruction()
	cmp.AsIcmp(cur, zero.Return(), ssa.IntegerCmpCondSignedGreaterThanOrEqual)
	builder.InsertInstruction(cmp)

	outOfGas := builder.AllocateBasicBlock()
	cont := builder.AllocateBasicBlock()

	br := builder.AllocateInstruction()
	br.AsBrnz(cmp.Return(), nil, outOfGas)
	builder.InsertInstruction(br)

	fallthroughJump := builder.AllocateInstruction()
	fallthroughJump.AsJump(nil, cont)
	fallthroughJump.AsFallthroughJump()
	builder.InsertInstruction(fallthroughJump)
	builder.SetCurrentBlock(cont)

	prevBlk := builder.CurrentBlock()
	builder.SetCurrentBlock(outOfGas)
	fe.spillFuel()
	fe.callBuiltin(wazevoapi.BuiltinFunctionIndexOutOfGas, nil)
	fe.reloadFuel()
	contJump := builder.AllocateInstruction()
	contJump.AsJump(nil, cont)
	builder.InsertInstruction(contJump)
	builder.Seal(outOfGas)
	builder.Seal(cont)
	builder.SetCurrentBlock(prevBlk)

	_ = cont
}

// foldFuelAccum folds the statically-tracked operator count into the live fuel variable
// without touching backing memory (spec §4.4's "folds only" flush points).
func (fe *FuncEnv) foldFuelAccum() {
	if !fe.tunables.FuelEnabled || fe.fuelAccum == 0 {
		return
	}
	builder := fe.ssaBuilder
	cur := builder.FindValue(fe.fuelVar)

	delta := builder.AllocateInstruction()
	delta.AsIconst64(uint64(fe.fuelAccum))
	builder.InsertInstruction(delta)

	sum := builder.AllocateInstruction()
	sum.AsIadd(cur, delta.Return())
	builder.InsertInstruction(sum)

	builder.DefineVariableInCurrentBB(fe.fuelVar, sum.Return())
	fe.fuelAccum = 0
}

// spillFuel stores the live fuel variable back to runtime_limits.fuel (spec §4.4's "fold and
// spill" flush points: function return, unreachable, any call, any unconditional trap).
func (fe *FuncEnv) spillFuel() {
	if !fe.tunables.FuelEnabled {
		return
	}
	fe.foldFuelAccum()
	builder := fe.ssaBuilder
	offs := fe.layout.Offsets()
	cur := builder.FindValue(fe.fuelVar)

	store := builder.AllocateInstruction()
	store.AsStore(ssa.OpcodeStore, cur, fe.VMCtx(), offs.RuntimeLimits.FuelOffset)
	builder.InsertInstruction(store)
}

// reloadFuel reloads the cached fuel variable from runtime_limits.fuel, used after any call
// (spec §4.4: "after any call, reload fuel from runtime_limits into the cached variable") since
// a callee or builtin may have consumed fuel itself, or the out_of_gas builtin may have
// refilled it.
func (fe *FuncEnv) reloadFuel() {
	if !fe.tunables.FuelEnabled {
		return
	}
	builder := fe.ssaBuilder
	offs := fe.layout.Offsets()

	load := builder.AllocateInstruction()
	load.AsLoad(fe.VMCtx(), offs.RuntimeLimits.FuelOffset, ssa.TypeI64)
	builder.InsertInstruction(load)
	builder.DefineVariableInCurrentBB(fe.fuelVar, load.Return())
}

// FlushFuelAtBlockBoundary implements the "folds only" flush points of spec §4.4: loop header,
// if, else, br/br_if/br_table, end. Called by the control-flow lowering in state.go's callers
// (table.go/call.go/a future control.go) at each such boundary.
func (fe *FuncEnv) FlushFuelAtBlockBoundary() { fe.foldFuelAccum() }

// flushFuelOnCall implements the fold-and-spill flush point for call boundaries.
func (fe *FuncEnv) flushFuelOnCall() { fe.spillFuel() }

// FlushFuelOnReturn and FlushFuelOnTrap are the remaining fold-and-spill flush points named
// in spec §4.4: function return and unreachable/unconditional-trap sites.
func (fe *FuncEnv) FlushFuelOnReturn() { fe.spillFuel() }
func (fe *FuncEnv) FlushFuelOnTrap()   { fe.spillFuel() }

// reloadAfterCall implements spec §4.2's note that after any call "memory buffer might have
// changed" and the parallel requirement for fuel: every cached runtime-observed value is
// reloaded after a call returns.
func (fe *FuncEnv) reloadAfterCall() {
	fe.reloadFuel()
	for memIdx, d := range fe.heaps {
		if d.Style == heapStyleDynamic {
			imported := memIdx < uint32(fe.module.NumImportedMemories())
			d.BaseGV, d.BoundGV = fe.loadMemoryBaseLen(memIdx, imported, true)
		}
	}
	for idx := range fe.mutableGlobals() {
		fe.getWasmGlobalValue(idx, true)
	}
}
