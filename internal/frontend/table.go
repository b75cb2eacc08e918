package frontend

import (
	"github.com/wazevofx/wazevo/internal/ssa"
	"github.com/wazevofx/wazevo/internal/wasm"
	"github.com/wazevofx/wazevo/internal/wazevoapi"
)

// tableElementSize is the width, in bytes, of one table slot: a plain 8-byte pointer for both
// funcref (tagged, see resolveFuncrefSlot) and externref tables. wazevoapi.FuncRefSize
// describes the larger record a *resolved* funcref slot points to, not the slot itself.
const tableElementSize = 8

// MakeTable implements make_table(table_index) (spec §4.3), memoizing the table's base
// pointer and element count for the rest of the function exactly as MakeHeap does for
// memories.
func (fe *FuncEnv) MakeTable(tableIdx wasm.Index) *TableDescriptor {
	if fe.tables == nil {
		fe.tables = make(map[wasm.Index]*TableDescriptor)
	}
	if d, ok := fe.tables[tableIdx]; ok {
		return d
	}

	tt := fe.module.Table(tableIdx)
	offs := fe.layout.Offsets()
	off := offs.TableOffset(tableIdx)
	builder := fe.ssaBuilder

	loadBase := builder.AllocateInstruction()
	loadBase.AsLoad(fe.VMCtx(), off+wazevoapi.TableDefinitionBaseOffset, ssa.TypeI64)
	builder.InsertInstruction(loadBase)

	loadLen := builder.AllocateInstruction()
	loadLen.AsLoad(fe.VMCtx(), off+wazevoapi.TableDefinitionLengthOffset, ssa.TypeI64)
	builder.InsertInstruction(loadLen)

	d := &TableDescriptor{ElemType: tt.ElemType, BaseGV: loadBase.Return(), LenGV: loadLen.Return()}
	fe.tables[tableIdx] = d
	return d
}

// tableBoundsCheck traps with ExitCodeTableOutOfBounds unless index is strictly less than the
// table's current element count, and returns index widened to 64 bits.
func (fe *FuncEnv) tableBoundsCheck(d *TableDescriptor, index ssa.Value) ssa.Value {
	builder := fe.ssaBuilder
	idx64 := fe.widenTo64(index, true)

	cmp := builder.AllocateInstruction()
	cmp.AsIcmp(idx64, d.LenGV, ssa.IntegerCmpCondUnsignedGreaterThanOrEqual)
	builder.InsertInstruction(cmp)

	trap := builder.AllocateInstruction()
	trap.AsExitIfTrueWithCode(fe.VMCtx(), cmp.Return(), wazevoapi.ExitCodeTableOutOfBounds)
	builder.InsertInstruction(trap)
	return idx64
}

// tableElementAddress computes the address of the index'th slot of a table.
func (fe *FuncEnv) tableElementAddress(d *TableDescriptor, index ssa.Value) ssa.Value {
	builder := fe.ssaBuilder
	sizeConst := builder.AllocateInstruction()
	sizeConst.AsIconst64(tableElementSize)
	builder.InsertInstruction(sizeConst)

	byteOff := builder.AllocateInstruction()
	byteOff.AsImul(index, sizeConst.Return())
	builder.InsertInstruction(byteOff)

	addr := builder.AllocateInstruction()
	addr.AsIadd(d.BaseGV, byteOff.Return())
	builder.InsertInstruction(addr)
	return addr.Return()
}

// resolveFuncrefSlot implements the lazy-init bit-masking scheme of spec §4.3: a slot that
// has never been read holds (func_index << 1 | 1); the low bit is always clear on a real,
// already-resolved FuncRef record pointer since those are at least 8-byte aligned. The slow
// path resolves and caches the real pointer into the slot via the lazy-init builtin; the fast
// path needs no masking at all.
func (fe *FuncEnv) resolveFuncrefSlot(tableIdx wasm.Index, index, raw ssa.Value) ssa.Value {
	builder := fe.ssaBuilder

	variable := builder.DeclareVariable(ssa.TypeI64)
	builder.DefineVariableInCurrentBB(variable, raw)

	one := builder.AllocateInstruction()
	one.AsIconst64(1)
	builder.InsertInstruction(one)

	tag := builder.AllocateInstruction()
	tag.AsBand(raw, one.Return())
	builder.InsertInstruction(tag)

	slow := builder.AllocateBasicBlock()
	cont := builder.AllocateBasicBlock()

	br := builder.AllocateInstruction()
	br.AsBrnz(tag.Return(), nil, slow)
	builder.InsertInstruction(br)

	fallthroughJump := builder.AllocateInstruction()
	fallthroughJump.AsJump(nil, cont)
	fallthroughJump.AsFallthroughJump()
	builder.InsertInstruction(fallthroughJump)
	builder.SetCurrentBlock(cont)

	prevBlk := builder.CurrentBlock()
	builder.SetCurrentBlock(slow)
	res := fe.callBuiltin(wazevoapi.BuiltinFunctionIndexTableGetLazyInitFuncRef,
		[]ssa.Value{fe.constI64(uint64(tableIdx)), index})
	builder.DefineVariableInCurrentBB(variable, res[0])
	jump := builder.AllocateInstruction()
	jump.AsJump(nil, cont)
	builder.InsertInstruction(jump)
	builder.Seal(slow)
	builder.Seal(cont)
	builder.SetCurrentBlock(prevBlk)

	return builder.FindValue(variable)
}

// TranslateTableGet implements translate_table_get (spec §4.3).
func (fe *FuncEnv) TranslateTableGet(tableIdx wasm.Index, index ssa.Value) ssa.Value {
	d := fe.MakeTable(tableIdx)
	idx64 := fe.tableBoundsCheck(d, index)
	addr := fe.tableElementAddress(d, idx64)

	builder := fe.ssaBuilder
	load := builder.AllocateInstruction()
	load.AsLoad(addr, 0, ssa.TypeI64)
	builder.InsertInstruction(load)
	raw := load.Return()

	if d.ElemType == wasm.ValueTypeFuncref {
		return fe.resolveFuncrefSlot(tableIdx, idx64, raw)
	}
	return fe.externrefReadBarrier(raw)
}

// externrefReadBarrier implements the activations-table read barrier of spec §4.3: every
// externref that leaves table storage and becomes live on the operand stack must be registered
// in the bump-allocated activations table so the embedder's GC root scan can find it. A null ref
// passes through untouched. A live ref takes the cheap path, incrementing its refcount and
// bumping the table's next cursor in place, unless the region is full, in which case
// activations_table_insert_with_gc both makes room and performs the registration.
func (fe *FuncEnv) externrefReadBarrier(raw ssa.Value) ssa.Value {
	builder := fe.ssaBuilder

	variable := builder.DeclareVariable(ssa.TypeI64)
	builder.DefineVariableInCurrentBB(variable, raw)

	zero := builder.AllocateInstruction()
	zero.AsIconst64(0)
	builder.InsertInstruction(zero)

	isNull := builder.AllocateInstruction()
	isNull.AsIcmp(raw, zero.Return(), ssa.IntegerCmpCondEqual)
	builder.InsertInstruction(isNull)

	skip := builder.AllocateBasicBlock()
	cont := builder.AllocateBasicBlock()

	br := builder.AllocateInstruction()
	br.AsBrnz(isNull.Return(), nil, skip)
	builder.InsertInstruction(br)

	offs := fe.layout.Offsets()
	loadNext := builder.AllocateInstruction()
	loadNext.AsLoad(fe.VMCtx(), offs.ActivationsTableNextOffset, ssa.TypeI64)
	builder.InsertInstruction(loadNext)
	loadEnd := builder.AllocateInstruction()
	loadEnd.AsLoad(fe.VMCtx(), offs.ActivationsTableEndOffset, ssa.TypeI64)
	builder.InsertInstruction(loadEnd)

	full := builder.AllocateInstruction()
	full.AsIcmp(loadNext.Return(), loadEnd.Return(), ssa.IntegerCmpCondEqual)
	builder.InsertInstruction(full)

	slow := builder.AllocateBasicBlock()
	fullBr := builder.AllocateInstruction()
	fullBr.AsBrnz(full.Return(), nil, slow)
	builder.InsertInstruction(fullBr)

	one := builder.AllocateInstruction()
	one.AsIconst64(1)
	builder.InsertInstruction(one)
	rmw := builder.AllocateInstruction()
	rmw.AsAtomicRmw(ssa.AtomicRmwAdd, raw, one.Return(), 8)
	builder.InsertInstruction(rmw)

	storeRef := builder.AllocateInstruction()
	storeRef.AsStore(ssa.OpcodeStore, raw, loadNext.Return(), 0)
	builder.InsertInstruction(storeRef)

	eight := builder.AllocateInstruction()
	eight.AsIconst64(tableElementSize)
	builder.InsertInstruction(eight)
	advanced := builder.AllocateInstruction()
	advanced.AsIadd(loadNext.Return(), eight.Return())
	builder.InsertInstruction(advanced)
	storeNext := builder.AllocateInstruction()
	storeNext.AsStore(ssa.OpcodeStore, advanced.Return(), fe.VMCtx(), offs.ActivationsTableNextOffset)
	builder.InsertInstruction(storeNext)

	fastJump := builder.AllocateInstruction()
	fastJump.AsJump(nil, cont)
	builder.InsertInstruction(fastJump)

	prevBlk := builder.CurrentBlock()
	builder.SetCurrentBlock(slow)
	res := fe.callBuiltin(wazevoapi.BuiltinFunctionIndexActivationsTableInsertWithGC, []ssa.Value{raw})
	builder.DefineVariableInCurrentBB(variable, res[0])
	slowJump := builder.AllocateInstruction()
	slowJump.AsJump(nil, cont)
	builder.InsertInstruction(slowJump)
	builder.Seal(slow)
	builder.SetCurrentBlock(prevBlk)

	builder.SetCurrentBlock(skip)
	skipJump := builder.AllocateInstruction()
	skipJump.AsJump(nil, cont)
	builder.InsertInstruction(skipJump)
	builder.Seal(skip)
	builder.Seal(cont)

	builder.SetCurrentBlock(cont)
	return builder.FindValue(variable)
}

// TranslateTableSet implements translate_table_set (spec §4.3). Externref stores run the GC
// write barrier: increment the new value's refcount before the store is visible, then
// decrement the old value's refcount after, per spec §4.3's critical ordering (an interleaved
// reader must never observe a refcount that has already dropped to zero for a value still
// reachable from the table).
func (fe *FuncEnv) TranslateTableSet(tableIdx wasm.Index, index, value ssa.Value) {
	d := fe.MakeTable(tableIdx)
	idx64 := fe.tableBoundsCheck(d, index)
	addr := fe.tableElementAddress(d, idx64)
	builder := fe.ssaBuilder

	if d.ElemType == wasm.ValueTypeExternref {
		fe.externrefIncRef(value)

		xchg := builder.AllocateInstruction()
		xchg.AsAtomicRmw(ssa.AtomicRmwXchg, addr, value, 8)
		builder.InsertInstruction(xchg)

		fe.externrefDecRefAndMaybeDrop(xchg.Return())
		return
	}

	store := builder.AllocateInstruction()
	store.AsStore(ssa.OpcodeStore, value, addr, 0)
	builder.InsertInstruction(store)
}

// TranslateTableSize implements translate_table_size (spec §4.3).
func (fe *FuncEnv) TranslateTableSize(tableIdx wasm.Index) ssa.Value {
	d := fe.MakeTable(tableIdx)
	builder := fe.ssaBuilder
	red := builder.AllocateInstruction()
	red.AsIreduce(d.LenGV, ssa.TypeI32)
	builder.InsertInstruction(red)
	return red.Return()
}

// TranslateTableGrow implements translate_table_grow (spec §4.3), dispatching to the
// funcref/externref builtin variant since the two element kinds have distinct init-value
// representations (a funcref default vs. a refcounted externref default).
func (fe *FuncEnv) TranslateTableGrow(tableIdx wasm.Index, delta, initValue ssa.Value) ssa.Value {
	d := fe.MakeTable(tableIdx)
	b := wazevoapi.BuiltinFunctionIndexTableGrowFuncRef
	if d.ElemType == wasm.ValueTypeExternref {
		b = wazevoapi.BuiltinFunctionIndexTableGrowExternRef
	}
	res := fe.callBuiltin(b, []ssa.Value{fe.constI64(uint64(tableIdx)), fe.widenTo64(delta, true), initValue})
	delete(fe.tables, tableIdx) // growth invalidates the cached base/length.
	red := fe.ssaBuilder.AllocateInstruction()
	red.AsIreduce(res[0], ssa.TypeI32)
	fe.ssaBuilder.InsertInstruction(red)
	return red.Return()
}

// TranslateTableFill implements translate_table_fill (spec §4.3).
func (fe *FuncEnv) TranslateTableFill(tableIdx wasm.Index, dst, value, n ssa.Value) {
	d := fe.MakeTable(tableIdx)
	b := wazevoapi.BuiltinFunctionIndexTableFillFuncRef
	if d.ElemType == wasm.ValueTypeExternref {
		b = wazevoapi.BuiltinFunctionIndexTableFillExternRef
	}
	fe.callBuiltin(b, []ssa.Value{
		fe.constI64(uint64(tableIdx)), fe.widenTo64(dst, true), value, fe.widenTo64(n, true),
	})
}

// TranslateTableCopy implements translate_table_copy (spec §4.3).
func (fe *FuncEnv) TranslateTableCopy(dstTableIdx, srcTableIdx wasm.Index, dst, src, n ssa.Value) {
	fe.callBuiltin(wazevoapi.BuiltinFunctionIndexTableCopy, []ssa.Value{
		fe.constI64(uint64(dstTableIdx)), fe.constI64(uint64(srcTableIdx)),
		fe.widenTo64(dst, true), fe.widenTo64(src, true), fe.widenTo64(n, true),
	})
}

// TranslateTableInit implements translate_table_init (spec §4.3).
func (fe *FuncEnv) TranslateTableInit(tableIdx, elemIdx wasm.Index, dst, src, n ssa.Value) {
	fe.callBuiltin(wazevoapi.BuiltinFunctionIndexTableInit, []ssa.Value{
		fe.constI64(uint64(tableIdx)), fe.constI64(uint64(elemIdx)),
		fe.widenTo64(dst, true), fe.widenTo64(src, true), fe.widenTo64(n, true),
	})
}

// TranslateElemDrop implements translate_elem_drop (spec §4.3).
func (fe *FuncEnv) TranslateElemDrop(elemIdx wasm.Index) {
	fe.callBuiltin(wazevoapi.BuiltinFunctionIndexElemDrop, []ssa.Value{fe.constI64(uint64(elemIdx))})
}

// TranslateRefFunc implements ref.func (spec §4.3): the returned funcref is always already
// resolved, so no lazy-init bit is ever set on the value this returns.
func (fe *FuncEnv) TranslateRefFunc(fnIdx wasm.Index) ssa.Value {
	res := fe.callBuiltin(wazevoapi.BuiltinFunctionIndexRefFunc, []ssa.Value{fe.constI64(uint64(fnIdx))})
	return res[0]
}

// TranslateRefNull implements ref.null: both reference types share the same zero
// representation.
func (fe *FuncEnv) TranslateRefNull() ssa.Value { return fe.constI64(0) }

// TranslateRefIsNull implements ref.is_null.
func (fe *FuncEnv) TranslateRefIsNull(v ssa.Value) ssa.Value {
	builder := fe.ssaBuilder
	zero := builder.AllocateInstruction()
	zero.AsIconst64(0)
	builder.InsertInstruction(zero)

	cmp := builder.AllocateInstruction()
	cmp.AsIcmp(v, zero.Return(), ssa.IntegerCmpCondEqual)
	builder.InsertInstruction(cmp)
	return cmp.Return()
}

// externrefIncRef runs the write-barrier increment half for a non-null externref value,
// skipping the atomic op entirely when the value is statically known-null is not possible
// here (it's a runtime value), so the increment is guarded by a null check instead.
func (fe *FuncEnv) externrefIncRef(v ssa.Value) {
	builder := fe.ssaBuilder
	zero := builder.AllocateInstruction()
	zero.AsIconst64(0)
	builder.InsertInstruction(zero)

	isNull := builder.AllocateInstruction()
	isNull.AsIcmp(v, zero.Return(), ssa.IntegerCmpCondEqual)
	builder.InsertInstruction(isNull)

	skip := builder.AllocateBasicBlock()
	cont := builder.AllocateBasicBlock()

	br := builder.AllocateInstruction()
	br.AsBrnz(isNull.Return(), nil, skip)
	builder.InsertInstruction(br)

	one := builder.AllocateInstruction()
	one.AsIconst64(1)
	builder.InsertInstruction(one)
	rmw := builder.AllocateInstruction()
	rmw.AsAtomicRmw(ssa.AtomicRmwAdd, v, one.Return(), 8)
	builder.InsertInstruction(rmw)

	jump := builder.AllocateInstruction()
	jump.AsJump(nil, cont)
	builder.InsertInstruction(jump)

	builder.SetCurrentBlock(skip)
	skipJump := builder.AllocateInstruction()
	skipJump.AsJump(nil, cont)
	builder.InsertInstruction(skipJump)
	builder.Seal(skip)
	builder.Seal(cont)

	builder.SetCurrentBlock(cont)
}

// externrefDecRefAndMaybeDrop runs the write-barrier decrement half: the atomic RMW's returned
// pre-decrement value gates whether the drop_externref builtin (which frees the object) runs,
// per spec §4.3's "atomic-return-value-gated drop".
func (fe *FuncEnv) externrefDecRefAndMaybeDrop(v ssa.Value) {
	builder := fe.ssaBuilder
	zero := builder.AllocateInstruction()
	zero.AsIconst64(0)
	builder.InsertInstruction(zero)

	isNull := builder.AllocateInstruction()
	isNull.AsIcmp(v, zero.Return(), ssa.IntegerCmpCondEqual)
	builder.InsertInstruction(isNull)

	skip := builder.AllocateBasicBlock()
	cont := builder.AllocateBasicBlock()

	br := builder.AllocateInstruction()
	br.AsBrnz(isNull.Return(), nil, skip)
	builder.InsertInstruction(br)

	one := builder.AllocateInstruction()
	one.AsIconst64(1)
	builder.InsertInstruction(one)
	rmw := builder.AllocateInstruction()
	rmw.AsAtomicRmw(ssa.AtomicRmwSub, v, one.Return(), 8)
	builder.InsertInstruction(rmw)

	wasOne := builder.AllocateInstruction()
	wasOne.AsIcmp(rmw.Return(), one.Return(), ssa.IntegerCmpCondEqual)
	builder.InsertInstruction(wasOne)

	drop := builder.AllocateBasicBlock()
	afterDrop := builder.AllocateBasicBlock()
	dropBr := builder.AllocateInstruction()
	dropBr.AsBrnz(wasOne.Return(), nil, drop)
	builder.InsertInstruction(dropBr)
	fallthroughJump := builder.AllocateInstruction()
	fallthroughJump.AsJump(nil, afterDrop)
	fallthroughJump.AsFallthroughJump()
	builder.InsertInstruction(fallthroughJump)
	builder.SetCurrentBlock(afterDrop)

	prevBlk := builder.CurrentBlock()
	builder.SetCurrentBlock(drop)
	fe.callBuiltin(wazevoapi.BuiltinFunctionIndexDropExternRef, []ssa.Value{v})
	dropJump := builder.AllocateInstruction()
	dropJump.AsJump(nil, afterDrop)
	builder.InsertInstruction(dropJump)
	builder.Seal(drop)
	builder.Seal(afterDrop)
	builder.SetCurrentBlock(prevBlk)

	jump := builder.AllocateInstruction()
	jump.AsJump(nil, cont)
	builder.InsertInstruction(jump)

	builder.SetCurrentBlock(skip)
	skipJump := builder.AllocateInstruction()
	skipJump.AsJump(nil, cont)
	builder.InsertInstruction(skipJump)
	builder.Seal(skip)
	builder.Seal(cont)

	builder.SetCurrentBlock(cont)
}
