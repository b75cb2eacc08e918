package frontend

import (
	"github.com/wazevofx/wazevo/internal/ssa"
	"github.com/wazevofx/wazevo/internal/wasm"
	"github.com/wazevofx/wazevo/internal/wazevoapi"
)

// callResults gathers every value a (possibly multi-result) call instruction produced.
func callResults(call *ssa.Instruction, n int) []ssa.Value {
	if n == 0 {
		return nil
	}
	first, rest := call.Returns()
	out := make([]ssa.Value, 0, n)
	out = append(out, first)
	out = append(out, rest...)
	return out
}

// sigForFunctionIndex resolves the IR Signature declared for the Wasm function at fnIdx.
func (fe *FuncEnv) sigForFunctionIndex(fnIdx wasm.Index) *ssa.Signature {
	return fe.signatures[fe.module.FunctionSignature(fnIdx)]
}

// loadImportedFunctionRecord loads the (executable, vmctx) pair stored for an imported
// function, per spec §4.5: an imported callee may belong to a different module instance, so
// its own vmctx (not the caller's) must be threaded as callee_vmctx.
func (fe *FuncEnv) loadImportedFunctionRecord(fnIdx wasm.Index) (calleeVmctx, fnPtr ssa.Value) {
	offs := fe.layout.Offsets()
	execOff, vmctxOff := offs.ImportedFunctionOffset(fnIdx)
	builder := fe.ssaBuilder

	loadFn := builder.AllocateInstruction()
	loadFn.AsLoad(fe.VMCtx(), execOff, ssa.TypeI64)
	builder.InsertInstruction(loadFn)

	loadVmctx := builder.AllocateInstruction()
	loadVmctx.AsLoad(fe.VMCtx(), vmctxOff, ssa.TypeI64)
	builder.InsertInstruction(loadVmctx)

	return loadVmctx.Return(), loadFn.Return()
}

// TranslateCall implements translate_call (spec §4.5): direct calls to a function already
// known at translation time, threading (callee_vmctx, caller_vmctx, args...) per the calling
// convention (spec's Data Model). A local callee shares this function's own vmctx; an
// imported callee's vmctx is read from its import record and the call becomes an indirect
// call through the loaded function pointer, since the callee's code address isn't known until
// link time for an import.
func (fe *FuncEnv) TranslateCall(fnIdx wasm.Index, args []ssa.Value) []ssa.Value {
	fe.flushFuelOnCall()
	sig := fe.sigForFunctionIndex(fnIdx)
	builder := fe.ssaBuilder

	var call *ssa.Instruction
	if fe.module.IsImportedFunction(fnIdx) {
		calleeVmctx, fnPtr := fe.loadImportedFunctionRecord(fnIdx)
		full := append([]ssa.Value{calleeVmctx, fe.VMCtx()}, args...)
		call = builder.AllocateInstruction()
		call.AsCallIndirect(fnPtr, sig, full)
	} else {
		full := append([]ssa.Value{fe.VMCtx(), fe.VMCtx()}, args...)
		call = builder.AllocateInstruction()
		call.AsCall(ssa.FuncRef(fnIdx), sig, full)
	}
	builder.InsertInstruction(call)
	fe.reloadAfterCall()
	return callResults(call, len(sig.Results))
}

// resolveCallIndirectTarget implements the table-slot resolution and signature check shared by
// translate_call_indirect and a tail-call-indirect variant (spec §4.5): load the table slot,
// resolve its lazy-init bit, trap IndirectCallToNull on a null result, then compare the
// resolved record's stored TypeID against the call site's statically declared type, trapping
// IndirectCallTypeMismatch on a mismatch (spec §4.3: TypeID comparison, distinct from the
// binary's own TypeIndex, is what makes two structurally-equal-but-differently-declared types
// compare equal).
func (fe *FuncEnv) resolveCallIndirectTarget(tableIdx, typeIdx wasm.Index, index ssa.Value) (calleeVmctx, fnPtr ssa.Value) {
	d := fe.MakeTable(tableIdx)
	idx64 := fe.tableBoundsCheck(d, index)
	addr := fe.tableElementAddress(d, idx64)
	builder := fe.ssaBuilder

	load := builder.AllocateInstruction()
	load.AsLoad(addr, 0, ssa.TypeI64)
	builder.InsertInstruction(load)

	record := fe.resolveFuncrefSlot(tableIdx, idx64, load.Return())

	zero := builder.AllocateInstruction()
	zero.AsIconst64(0)
	builder.InsertInstruction(zero)
	isNull := builder.AllocateInstruction()
	isNull.AsIcmp(record, zero.Return(), ssa.IntegerCmpCondEqual)
	builder.InsertInstruction(isNull)
	trapNull := builder.AllocateInstruction()
	trapNull.AsExitIfTrueWithCode(fe.VMCtx(), isNull.Return(), wazevoapi.ExitCodeIndirectCallToNull)
	builder.InsertInstruction(trapNull)

	loadTypeID := builder.AllocateInstruction()
	loadTypeID.AsLoad(record, wazevoapi.FuncRefTypeIDOffset, ssa.TypeI32)
	builder.InsertInstruction(loadTypeID)

	expected := builder.AllocateInstruction()
	expected.AsIconst32(uint32(fe.module.TypeIDs[typeIdx]))
	builder.InsertInstruction(expected)

	mismatch := builder.AllocateInstruction()
	mismatch.AsIcmp(loadTypeID.Return(), expected.Return(), ssa.IntegerCmpCondNotEqual)
	builder.InsertInstruction(mismatch)
	trapMismatch := builder.AllocateInstruction()
	trapMismatch.AsExitIfTrueWithCode(fe.VMCtx(), mismatch.Return(), wazevoapi.ExitCodeIndirectCallTypeMismatch)
	builder.InsertInstruction(trapMismatch)

	loadVmctx := builder.AllocateInstruction()
	loadVmctx.AsLoad(record, wazevoapi.FuncRefVmctxOffset, ssa.TypeI64)
	builder.InsertInstruction(loadVmctx)

	loadWasmCall := builder.AllocateInstruction()
	loadWasmCall.AsLoad(record, wazevoapi.FuncRefWasmCallOffset, ssa.TypeI64)
	builder.InsertInstruction(loadWasmCall)

	return loadVmctx.Return(), loadWasmCall.Return()
}

// TranslateCallIndirect implements translate_call_indirect (spec §4.5).
func (fe *FuncEnv) TranslateCallIndirect(tableIdx, typeIdx wasm.Index, index ssa.Value, args []ssa.Value) []ssa.Value {
	fe.flushFuelOnCall()
	calleeVmctx, fnPtr := fe.resolveCallIndirectTarget(tableIdx, typeIdx, index)

	sig := &fe.module.TypeSection[typeIdx]
	irSig := SignatureForWasmFunctionType(sig)
	irSig.ID = ssa.SignatureID(typeIdx)
	fe.ssaBuilder.DeclareSignature(&irSig)

	full := append([]ssa.Value{calleeVmctx, fe.VMCtx()}, args...)
	call := fe.ssaBuilder.AllocateInstruction()
	call.AsCallIndirect(fnPtr, &irSig, full)
	fe.ssaBuilder.InsertInstruction(call)
	fe.reloadAfterCall()
	return callResults(call, len(sig.Results))
}

// TranslateCallRef implements call_ref (spec §4.5): like call_indirect but the operand is
// already a resolved FuncRef record value (from a local, ref.func, or table.get), not a table
// slot, so no lazy-init or TypeID check is needed; only the null check survives, trapping
// NullReference instead of IndirectCallToNull to distinguish the two call forms' error origin.
func (fe *FuncEnv) TranslateCallRef(typeIdx wasm.Index, ref ssa.Value, args []ssa.Value) []ssa.Value {
	fe.flushFuelOnCall()
	builder := fe.ssaBuilder

	zero := builder.AllocateInstruction()
	zero.AsIconst64(0)
	builder.InsertInstruction(zero)
	isNull := builder.AllocateInstruction()
	isNull.AsIcmp(ref, zero.Return(), ssa.IntegerCmpCondEqual)
	builder.InsertInstruction(isNull)
	trapNull := builder.AllocateInstruction()
	trapNull.AsExitIfTrueWithCode(fe.VMCtx(), isNull.Return(), wazevoapi.ExitCodeNullReference)
	builder.InsertInstruction(trapNull)

	loadVmctx := builder.AllocateInstruction()
	loadVmctx.AsLoad(ref, wazevoapi.FuncRefVmctxOffset, ssa.TypeI64)
	builder.InsertInstruction(loadVmctx)
	loadWasmCall := builder.AllocateInstruction()
	loadWasmCall.AsLoad(ref, wazevoapi.FuncRefWasmCallOffset, ssa.TypeI64)
	builder.InsertInstruction(loadWasmCall)

	sig := &fe.module.TypeSection[typeIdx]
	irSig := SignatureForWasmFunctionType(sig)
	irSig.ID = ssa.SignatureID(typeIdx)
	builder.DeclareSignature(&irSig)

	full := append([]ssa.Value{loadVmctx.Return(), fe.VMCtx()}, args...)
	call := builder.AllocateInstruction()
	call.AsCallIndirect(loadWasmCall.Return(), &irSig, full)
	builder.InsertInstruction(call)
	fe.reloadAfterCall()
	return callResults(call, len(sig.Results))
}

// TranslateReturnCall implements the tail-call form of translate_call (spec §4.5's tail-call
// ABI note): no fuel reload or cache invalidation is needed afterward, since control never
// returns to this function.
func (fe *FuncEnv) TranslateReturnCall(fnIdx wasm.Index, args []ssa.Value) {
	fe.FlushFuelOnReturn()
	sig := fe.sigForFunctionIndex(fnIdx)
	builder := fe.ssaBuilder

	var call *ssa.Instruction
	if fe.module.IsImportedFunction(fnIdx) {
		calleeVmctx, fnPtr := fe.loadImportedFunctionRecord(fnIdx)
		full := append([]ssa.Value{calleeVmctx, fe.VMCtx()}, args...)
		call = builder.AllocateInstruction()
		call.AsReturnCallIndirect(fnPtr, sig, full)
	} else {
		full := append([]ssa.Value{fe.VMCtx(), fe.VMCtx()}, args...)
		call = builder.AllocateInstruction()
		call.AsReturnCall(ssa.FuncRef(fnIdx), sig, full)
	}
	builder.InsertInstruction(call)
}

// TranslateReturnCallRef implements the tail-call form of call_ref.
func (fe *FuncEnv) TranslateReturnCallRef(typeIdx wasm.Index, ref ssa.Value, args []ssa.Value) {
	fe.FlushFuelOnReturn()
	builder := fe.ssaBuilder

	zero := builder.AllocateInstruction()
	zero.AsIconst64(0)
	builder.InsertInstruction(zero)
	isNull := builder.AllocateInstruction()
	isNull.AsIcmp(ref, zero.Return(), ssa.IntegerCmpCondEqual)
	builder.InsertInstruction(isNull)
	trapNull := builder.AllocateInstruction()
	trapNull.AsExitIfTrueWithCode(fe.VMCtx(), isNull.Return(), wazevoapi.ExitCodeNullReference)
	builder.InsertInstruction(trapNull)

	loadVmctx := builder.AllocateInstruction()
	loadVmctx.AsLoad(ref, wazevoapi.FuncRefVmctxOffset, ssa.TypeI64)
	builder.InsertInstruction(loadVmctx)
	loadWasmCall := builder.AllocateInstruction()
	loadWasmCall.AsLoad(ref, wazevoapi.FuncRefWasmCallOffset, ssa.TypeI64)
	builder.InsertInstruction(loadWasmCall)

	sig := &fe.module.TypeSection[typeIdx]
	irSig := SignatureForWasmFunctionType(sig)
	irSig.ID = ssa.SignatureID(typeIdx)
	builder.DeclareSignature(&irSig)

	full := append([]ssa.Value{loadVmctx.Return(), fe.VMCtx()}, args...)
	call := builder.AllocateInstruction()
	call.AsReturnCallIndirect(loadWasmCall.Return(), &irSig, full)
	builder.InsertInstruction(call)
}

// TranslateReturnCallIndirect implements the tail-call form of translate_call_indirect.
func (fe *FuncEnv) TranslateReturnCallIndirect(tableIdx, typeIdx wasm.Index, index ssa.Value, args []ssa.Value) {
	fe.FlushFuelOnReturn()
	calleeVmctx, fnPtr := fe.resolveCallIndirectTarget(tableIdx, typeIdx, index)

	sig := &fe.module.TypeSection[typeIdx]
	irSig := SignatureForWasmFunctionType(sig)
	irSig.ID = ssa.SignatureID(typeIdx)
	fe.ssaBuilder.DeclareSignature(&irSig)

	full := append([]ssa.Value{calleeVmctx, fe.VMCtx()}, args...)
	call := fe.ssaBuilder.AllocateInstruction()
	call.AsReturnCallIndirect(fnPtr, &irSig, full)
	fe.ssaBuilder.InsertInstruction(call)
}
