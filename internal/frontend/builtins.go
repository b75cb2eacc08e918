package frontend

import (
	"github.com/wazevofx/wazevo/internal/ssa"
	"github.com/wazevofx/wazevo/internal/wazevoapi"
)

// builtinSignature returns the fixed parameter/result profile for a builtin kind (spec §4.7,
// §6's "fixed parameter profile of (vmctx, ...) -> optional result"). Every profile begins
// implicitly with the vmctx pointer; Params here lists only the Wasm-visible arguments.
func builtinSignature(b wazevoapi.BuiltinFunctionIndex) (params []ssa.Type, hasResult bool, result ssa.Type) {
	i64, i32 := ssa.TypeI64, ssa.TypeI32
	switch b {
	case wazevoapi.BuiltinFunctionIndexTableGrowFuncRef, wazevoapi.BuiltinFunctionIndexTableGrowExternRef:
		return []ssa.Type{i64, i64, i64}, true, i32 // table_index, delta, init_value -> old_size
	case wazevoapi.BuiltinFunctionIndexTableFillFuncRef, wazevoapi.BuiltinFunctionIndexTableFillExternRef:
		return []ssa.Type{i64, i64, i64, i64}, false, 0 // table_index, dst, value, n
	case wazevoapi.BuiltinFunctionIndexTableCopy:
		return []ssa.Type{i64, i64, i64, i64, i64}, false, 0 // dst_table, src_table, dst, src, n
	case wazevoapi.BuiltinFunctionIndexTableInit:
		return []ssa.Type{i64, i64, i64, i64, i64}, false, 0 // table_index, elem_index, dst, src, n
	case wazevoapi.BuiltinFunctionIndexTableGetLazyInitFuncRef:
		return []ssa.Type{i64, i64}, true, i64 // table_index, index -> funcref
	case wazevoapi.BuiltinFunctionIndexElemDrop:
		return []ssa.Type{i64}, false, 0 // elem_index
	case wazevoapi.BuiltinFunctionIndexMemoryGrow:
		return []ssa.Type{i64, i64}, true, i64 // memory_index, delta_pages -> old_pages_or_-1
	case wazevoapi.BuiltinFunctionIndexMemoryCopy:
		return []ssa.Type{i64, i64, i64, i64, i64}, false, 0 // dst_mem, src_mem, dst, src, n
	case wazevoapi.BuiltinFunctionIndexMemoryFill:
		return []ssa.Type{i64, i64, i32, i64}, false, 0 // memory_index, dst, value, n
	case wazevoapi.BuiltinFunctionIndexMemoryInit:
		return []ssa.Type{i64, i64, i64, i64, i64}, false, 0 // memory_index, data_index, dst, src, n
	case wazevoapi.BuiltinFunctionIndexDataDrop:
		return []ssa.Type{i64}, false, 0 // data_index
	case wazevoapi.BuiltinFunctionIndexMemoryAtomicWait32:
		return []ssa.Type{i64, i64, i32, i64}, true, i32 // memory_index, addr, expected, timeout -> status
	case wazevoapi.BuiltinFunctionIndexMemoryAtomicWait64:
		return []ssa.Type{i64, i64, i64, i64}, true, i32
	case wazevoapi.BuiltinFunctionIndexMemoryAtomicNotify:
		return []ssa.Type{i64, i64, i32}, true, i32 // memory_index, addr, count -> woken
	case wazevoapi.BuiltinFunctionIndexRefFunc:
		return []ssa.Type{i64}, true, i64 // func_index -> funcref
	case wazevoapi.BuiltinFunctionIndexActivationsTableInsertWithGC:
		return []ssa.Type{i64}, true, i64 // externref -> externref (post-insert, refcounted)
	case wazevoapi.BuiltinFunctionIndexDropExternRef:
		return []ssa.Type{i64}, false, 0 // externref
	case wazevoapi.BuiltinFunctionIndexExternRefGlobalGet:
		return []ssa.Type{i64}, true, i64 // global_index -> externref
	case wazevoapi.BuiltinFunctionIndexExternRefGlobalSet:
		return []ssa.Type{i64, i64}, false, 0 // global_index, externref
	case wazevoapi.BuiltinFunctionIndexOutOfGas:
		return nil, false, 0
	case wazevoapi.BuiltinFunctionIndexNewEpoch:
		return nil, true, i64 // -> new deadline
	case wazevoapi.BuiltinFunctionIndexMemoryCheckerBegin, wazevoapi.BuiltinFunctionIndexMemoryCheckerEnd:
		return []ssa.Type{i64, i64}, false, 0 // addr, len
	default:
		panic("BUG: unknown builtin " + b.String())
	}
}

// builtinSig returns (importing on first reference) the IR signature for a builtin kind,
// deduplicated per function per spec §4.7 ("each entry at most one import").
func (fe *FuncEnv) builtinSig(b wazevoapi.BuiltinFunctionIndex) *ssa.Signature {
	if fe.builtinSigCache == nil {
		fe.builtinSigCache = make(map[wazevoapi.BuiltinFunctionIndex]*ssa.Signature)
	}
	if sig, ok := fe.builtinSigCache[b]; ok {
		return sig
	}

	wasmParams, hasResult, result := builtinSignature(b)
	sig := &ssa.Signature{
		Name:   "builtin:" + b.String(),
		Params: append([]ssa.Type{vmctxPtrType}, wasmParams...),
	}
	if hasResult {
		sig.Results = []ssa.Type{result}
	}
	// Integer parameters are declared uext per spec §4.7's ABI convention; this IR has no
	// narrower-than-register integer type to extend from at the signature level, so the
	// convention is realized at call sites (memory.go/table.go explicitly UExtend 32-bit
	// values before passing them) rather than as a signature annotation here.
	sig.ID = ssa.SignatureID(len(fe.module.TypeSection) + int(b) + 1)
	fe.ssaBuilder.DeclareSignature(sig)
	fe.builtinSigCache[b] = sig
	return sig
}

// builtinFuncPtr loads (or, once per function, re-uses) the function pointer for a builtin
// from the vmctx builtin-functions table.
func (fe *FuncEnv) builtinFuncPtr(b wazevoapi.BuiltinFunctionIndex) ssa.Value {
	if fe.builtinFnCache == nil {
		fe.builtinFnCache = make(map[wazevoapi.BuiltinFunctionIndex]ssa.Value)
	}
	if v, ok := fe.builtinFnCache[b]; ok {
		return v
	}
	offs := fe.layout.Offsets()
	load := fe.ssaBuilder.AllocateInstruction()
	load.AsLoad(fe.VMCtx(), offs.BuiltinFunctionOffset(b), ssa.TypeI64)
	fe.ssaBuilder.InsertInstruction(load)
	v := load.Return()
	fe.builtinFnCache[b] = v
	return v
}

// callBuiltin emits an indirect call to the given builtin with the vmctx pointer prepended,
// returning its result values (empty if the builtin has none). This is a call-boundary flush
// point per spec §4.4: fuel is folded and spilled, and fuel/memory/global caches are reloaded
// afterward since the builtin may have observed or mutated them.
func (fe *FuncEnv) callBuiltin(b wazevoapi.BuiltinFunctionIndex, args []ssa.Value) []ssa.Value {
	fe.flushFuelOnCall()

	sig := fe.builtinSig(b)
	fnPtr := fe.builtinFuncPtr(b)
	full := make([]ssa.Value, 0, len(args)+1)
	full = append(full, fe.VMCtx())
	full = append(full, args...)

	call := fe.ssaBuilder.AllocateInstruction()
	call.AsCallIndirect(fnPtr, sig, full)
	fe.ssaBuilder.InsertInstruction(call)

	fe.reloadAfterCall()
	if len(sig.Results) == 0 {
		return nil
	}
	return []ssa.Value{call.Return()}
}
