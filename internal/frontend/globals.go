package frontend

import (
	"github.com/wazevofx/wazevo/internal/ssa"
	"github.com/wazevofx/wazevo/internal/wasm"
	"github.com/wazevofx/wazevo/internal/wazevoapi"
)

// isCustomExternrefGlobal reports whether the given global is an externref global, which this
// translator never stores directly in its vmctx-relative record: every access to one goes
// through the externref_global_get/set builtins so that the refcounting barriers around it
// run on every read and write, not just at table insertion.
func isCustomExternrefGlobal(gt *wasm.GlobalType) bool {
	return gt.ValType == wasm.ValueTypeExternref
}

// mutableGlobals returns the indices of memory-resident mutable globals this function has
// cached a value for so far. Externref globals are excluded: they have no cached value to
// go stale, since every access already re-enters a builtin.
func (fe *FuncEnv) mutableGlobals() []wasm.Index {
	if len(fe.globalVars) == 0 {
		return nil
	}
	out := make([]wasm.Index, 0, len(fe.globalVars))
	for idx := range fe.globalVars {
		out = append(out, idx)
	}
	return out
}

// globalVariable returns (declaring on first reference) the cached SSA variable backing a
// memory-resident global's value.
func (fe *FuncEnv) globalVariable(idx wasm.Index, typ ssa.Type) ssa.Variable {
	if fe.globalVars == nil {
		fe.globalVars = make(map[wasm.Index]ssa.Variable)
	}
	v, ok := fe.globalVars[idx]
	if !ok {
		v = fe.ssaBuilder.DeclareVariable(typ)
		fe.globalVars[idx] = v
	}
	return v
}

// getWasmGlobalValue implements the get half of spec §4.6's global access. Externref globals
// always re-enter the externref_global_get builtin so its read barrier runs; every other
// global type is cached in a local SSA variable loaded from its fixed vmctx-relative offset,
// reloaded on forceReload (set after any call, since a reentrant import may have mutated it).
func (fe *FuncEnv) getWasmGlobalValue(idx wasm.Index, forceReload bool) ssa.Value {
	gt := fe.module.Global(idx)
	builder := fe.ssaBuilder

	if isCustomExternrefGlobal(gt) {
		idxConst := builder.AllocateInstruction()
		idxConst.AsIconst64(uint64(idx))
		builder.InsertInstruction(idxConst)
		res := fe.callBuiltin(wazevoapi.BuiltinFunctionIndexExternRefGlobalGet, []ssa.Value{idxConst.Return()})
		return res[0]
	}

	typ := WasmTypeToSSAType(gt.ValType)
	_, alreadyCached := fe.globalVars[idx]
	variable := fe.globalVariable(idx, typ)
	if alreadyCached && !forceReload {
		return builder.FindValue(variable)
	}

	offs := fe.layout.Offsets()
	load := builder.AllocateInstruction()
	load.AsLoad(fe.VMCtx(), offs.GlobalInstanceOffset(idx), typ)
	builder.InsertInstruction(load)
	builder.DefineVariableInCurrentBB(variable, load.Return())
	return load.Return()
}

// setWasmGlobalValue implements the set half of spec §4.6's global access, mirroring
// getWasmGlobalValue's externref/memory-resident split. An externref store runs the write
// barrier (increment-before-store, per spec §4.3's critical ordering) inside the builtin
// itself; the caller here never sees that detail.
func (fe *FuncEnv) setWasmGlobalValue(idx wasm.Index, v ssa.Value) {
	gt := fe.module.Global(idx)
	builder := fe.ssaBuilder

	if isCustomExternrefGlobal(gt) {
		idxConst := builder.AllocateInstruction()
		idxConst.AsIconst64(uint64(idx))
		builder.InsertInstruction(idxConst)
		fe.callBuiltin(wazevoapi.BuiltinFunctionIndexExternRefGlobalSet, []ssa.Value{idxConst.Return(), v})
		return
	}

	typ := WasmTypeToSSAType(gt.ValType)
	variable := fe.globalVariable(idx, typ)
	builder.DefineVariableInCurrentBB(variable, v)

	offs := fe.layout.Offsets()
	store := builder.AllocateInstruction()
	store.AsStore(ssa.OpcodeStore, v, fe.VMCtx(), offs.GlobalInstanceOffset(idx))
	builder.InsertInstruction(store)
}

// TranslateGlobalGet lowers a global.get operator.
func (fe *FuncEnv) TranslateGlobalGet(idx wasm.Index) ssa.Value {
	return fe.getWasmGlobalValue(idx, false)
}

// TranslateGlobalSet lowers a global.set operator.
func (fe *FuncEnv) TranslateGlobalSet(idx wasm.Index, v ssa.Value) {
	fe.setWasmGlobalValue(idx, v)
}
