package frontend

import (
	"github.com/wazevofx/wazevo/internal/ssa"
	"github.com/wazevofx/wazevo/internal/wasm"
	"github.com/wazevofx/wazevo/internal/wazevoapi"
)

// MakeHeap implements make_heap(memory_index) (spec §4.2): selects a static or dynamic heap
// descriptor based on the module's declared shape for that memory and memoizes it for the
// rest of the function (spec invariant: "every heap-handle is present in *heaps* before any
// memory operator referencing it is lowered").
func (fe *FuncEnv) MakeHeap(memIndex wasm.Index) *HeapDescriptor {
	if fe.heaps == nil {
		fe.heaps = make(map[wasm.Index]*HeapDescriptor)
	}
	if d, ok := fe.heaps[memIndex]; ok {
		return d
	}

	mt := fe.module.Memory(memIndex)
	offs := fe.layout.Offsets()
	d := &HeapDescriptor{
		MinSize:     mt.Min * wasm.MemoryPageSize,
		MaxSize:     mt.Max * wasm.MemoryPageSize,
		MaxValid:    mt.MaxValid,
		OffsetGuard: 1 << 16, // conservative fixed guard region; a real embedder may size this per-ISA.
		Is64:        mt.Is64,
		Shared:      mt.Shared,
	}

	imported := memIndex < wasm.Index(fe.module.NumImportedMemories())
	builder := fe.ssaBuilder

	if !imported && !mt.Shared && mt.MaxValid && offs.LocalMemoryBegin >= 0 {
		// Static: the module declared a maximum the runtime reserved up front with guard
		// pages, so the base never moves for the instance's lifetime.
		d.Style = heapStyleStatic
		load := builder.AllocateInstruction()
		load.AsLoad(fe.VMCtx(), uint32(offs.LocalMemoryBegin)+wazevoapi.MemoryDefinitionBaseOffset, ssa.TypeI64)
		builder.InsertInstruction(load)
		d.BaseGV = load.Return()
	} else {
		d.Style = heapStyleDynamic
		d.BaseGV, d.BoundGV = fe.loadMemoryBaseLen(memIndex, imported, false)
	}

	if fe.pcc != nil {
		d.MemType = fe.pcc.newMemoryFact(d)
	}
	fe.heaps[memIndex] = d
	return d
}

// memoryRecordOffset returns the vmctx-relative offset of the MemoryDefinition{base,len}
// record for memIndex. For an imported memory this is the offset of the pointer to that
// record rather than the record itself.
func (fe *FuncEnv) memoryRecordOffset(memIndex wasm.Index, imported bool) uint32 {
	offs := fe.layout.Offsets()
	if imported {
		return uint32(offs.ImportedMemoriesBegin) + memIndex*8
	}
	return uint32(offs.LocalMemoryBegin)
}

// loadMemoryBaseLen loads (or, if forceReload, re-loads) the base pointer and current byte
// length of a dynamic-style memory. Imported memories are reached through one extra pointer
// indirection (a *MemoryDefinition stored in vmctx). A locally-defined memory, shared or not,
// is read from its MemoryDefinition record inlined in vmctx, with no indirection; sharing
// only changes the length load to an atomic one.
func (fe *FuncEnv) loadMemoryBaseLen(memIndex wasm.Index, imported, forceReload bool) (base, length ssa.Value) {
	builder := fe.ssaBuilder
	recOffset := fe.memoryRecordOffset(memIndex, imported)

	defPtr := fe.VMCtx()
	if imported {
		load := builder.AllocateInstruction()
		load.AsLoad(fe.VMCtx(), recOffset, ssa.TypeI64)
		builder.InsertInstruction(load)
		defPtr = load.Return()
		recOffset = 0
	}

	loadBase := builder.AllocateInstruction()
	loadBase.AsLoad(defPtr, recOffset+wazevoapi.MemoryDefinitionBaseOffset, ssa.TypeI64)
	builder.InsertInstruction(loadBase)
	base = loadBase.Return()

	mt := fe.module.Memory(memIndex)
	if mt.Shared {
		// Shared memories may grow concurrently on another thread: current_length must be
		// observed with a 64-bit atomic load (spec §4.2/§5), not a plain load.
		loadLen := builder.AllocateInstruction()
		loadLen.AsAtomicLoad(defPtr, recOffset+wazevoapi.MemoryDefinitionLengthOffset, 8, ssa.TypeI64)
		builder.InsertInstruction(loadLen)
		length = loadLen.Return()
	} else {
		loadLen := builder.AllocateInstruction()
		loadLen.AsLoad(defPtr, recOffset+wazevoapi.MemoryDefinitionLengthOffset, ssa.TypeI64)
		builder.InsertInstruction(loadLen)
		length = loadLen.Return()
	}
	return
}

// TranslateMemorySize implements translate_memory_size (spec §4.2): pages = bytes / 65536,
// computed as an unsigned shift of the 64-bit byte length. For memory64 the i64 page count
// is returned as is; for classic memories it is reduced to i32.
func (fe *FuncEnv) TranslateMemorySize(memIndex wasm.Index) ssa.Value {
	d := fe.MakeHeap(memIndex)
	builder := fe.ssaBuilder

	var byteLen ssa.Value
	if d.Style == heapStyleStatic {
		c := builder.AllocateInstruction()
		c.AsIconst64(d.MinSize)
		builder.InsertInstruction(c)
		byteLen = c.Return()
	} else {
		_, byteLen = fe.loadMemoryBaseLen(memIndex, memIndex < wasm.Index(fe.module.NumImportedMemories()), false)
	}

	shift := builder.AllocateInstruction()
	shift.AsIconst64(wasm.MemoryPageSizeInBits)
	builder.InsertInstruction(shift)

	pages := builder.AllocateInstruction()
	pages.AsUshr(byteLen, shift.Return())
	builder.InsertInstruction(pages)

	if d.Is64 {
		return pages.Return()
	}
	red := builder.AllocateInstruction()
	red.AsIreduce(pages.Return(), ssa.TypeI32)
	builder.InsertInstruction(red)
	return red.Return()
}

// TranslateMemoryGrow implements translate_memory_grow (spec §4.2): lowered to an indirect
// call through the builtin table. A memory64 failure (native -1) must surface as Wasm i64
// 0xFFFFFFFFFFFFFFFF (sign-extended), not zero-extended (spec §8 scenario 6); a classic
// memory's i32 result is naturally sign-correct already since the builtin's own ABI returns a
// 64-bit value that is reduced.
func (fe *FuncEnv) TranslateMemoryGrow(memIndex wasm.Index, deltaPages ssa.Value) ssa.Value {
	d := fe.MakeHeap(memIndex)
	builder := fe.ssaBuilder

	widened := fe.widenTo64(deltaPages, !d.Is64)
	memIdxVal := fe.constI64(uint64(memIndex))
	result := fe.callBuiltin(wazevoapi.BuiltinFunctionIndexMemoryGrow, []ssa.Value{memIdxVal, widened})

	// Re-derive the heap's cached base/len since growth changes both.
	if d.Style == heapStyleDynamic {
		d.BaseGV, d.BoundGV = fe.loadMemoryBaseLen(memIndex, memIndex < wasm.Index(fe.module.NumImportedMemories()), true)
	}

	if d.Is64 {
		return result[0]
	}
	red := builder.AllocateInstruction()
	red.AsIreduce(result[0], ssa.TypeI32)
	builder.InsertInstruction(red)
	return red.Return()
}

// TranslateMemoryCopy, TranslateMemoryFill, TranslateMemoryInit, TranslateDataDrop implement
// the corresponding bulk-memory operators (spec §4.2), each an indirect call through the
// builtin table with arguments uniformly widened to the builtin's 64-bit trampoline ABI.
func (fe *FuncEnv) TranslateMemoryCopy(dstMemIdx, srcMemIdx wasm.Index, dst, src, n ssa.Value) {
	fe.callBuiltin(wazevoapi.BuiltinFunctionIndexMemoryCopy, []ssa.Value{
		fe.constI64(uint64(dstMemIdx)), fe.constI64(uint64(srcMemIdx)),
		fe.widenTo64(dst, true), fe.widenTo64(src, true), fe.widenTo64(n, true),
	})
}

func (fe *FuncEnv) TranslateMemoryFill(memIdx wasm.Index, dst, val, n ssa.Value) {
	fe.callBuiltin(wazevoapi.BuiltinFunctionIndexMemoryFill, []ssa.Value{
		fe.constI64(uint64(memIdx)), fe.widenTo64(dst, true), val, fe.widenTo64(n, true),
	})
}

func (fe *FuncEnv) TranslateMemoryInit(memIdx, dataIdx wasm.Index, dst, src, n ssa.Value) {
	fe.callBuiltin(wazevoapi.BuiltinFunctionIndexMemoryInit, []ssa.Value{
		fe.constI64(uint64(memIdx)), fe.constI64(uint64(dataIdx)),
		fe.widenTo64(dst, true), fe.widenTo64(src, true), fe.widenTo64(n, true),
	})
}

func (fe *FuncEnv) TranslateDataDrop(dataIdx wasm.Index) {
	fe.callBuiltin(wazevoapi.BuiltinFunctionIndexDataDrop, []ssa.Value{fe.constI64(uint64(dataIdx))})
}

// TranslateAtomicWait implements translate_atomic_wait (spec §4.2), dispatching on operand
// width (i32 vs i64) to the matching builtin.
func (fe *FuncEnv) TranslateAtomicWait(memIdx wasm.Index, is64 bool, addr, expected, timeout ssa.Value) ssa.Value {
	b := wazevoapi.BuiltinFunctionIndexMemoryAtomicWait32
	if is64 {
		b = wazevoapi.BuiltinFunctionIndexMemoryAtomicWait64
	}
	res := fe.callBuiltin(b, []ssa.Value{fe.constI64(uint64(memIdx)), fe.widenTo64(addr, true), expected, timeout})
	return res[0]
}

// TranslateAtomicNotify implements translate_atomic_notify (spec §4.2).
func (fe *FuncEnv) TranslateAtomicNotify(memIdx wasm.Index, addr, count ssa.Value) ssa.Value {
	res := fe.callBuiltin(wazevoapi.BuiltinFunctionIndexMemoryAtomicNotify,
		[]ssa.Value{fe.constI64(uint64(memIdx)), fe.widenTo64(addr, true), count})
	return res[0]
}

// EffectiveAddress computes the bounds-checked effective address for a load/store against the
// given heap descriptor, eliding the explicit check when the guard region provably covers the
// access (spec §4.2's delegated effective-address computation). constOffset and
// operationSizeInBytes together form the ceiling against which the base-relative index is
// compared.
func (fe *FuncEnv) EffectiveAddress(d *HeapDescriptor, index ssa.Value, constOffset, operationSizeInBytes uint64) ssa.Value {
	builder := fe.ssaBuilder
	ceil := constOffset + operationSizeInBytes

	ext := builder.AllocateInstruction()
	ext.AsUExtend(index, 32, 64)
	builder.InsertInstruction(ext)
	extIndex := ext.Return()

	if d.Style == heapStyleStatic && d.MaxValid && ceil <= d.OffsetGuard {
		// The guard region provably absorbs any in-range access past the declared bound: no
		// check needed, matching spec §4.2's guard-elision rule.
		addr := builder.AllocateInstruction()
		addr.AsIadd(d.BaseGV, extIndex)
		builder.InsertInstruction(addr)
		return addr.Return()
	}

	ceilConst := builder.AllocateInstruction()
	ceilConst.AsIconst64(ceil)
	builder.InsertInstruction(ceilConst)

	sum := builder.AllocateInstruction()
	sum.AsIadd(extIndex, ceilConst.Return())
	builder.InsertInstruction(sum)

	var bound ssa.Value
	if d.Style == heapStyleStatic {
		c := builder.AllocateInstruction()
		c.AsIconst64(d.MinSize)
		builder.InsertInstruction(c)
		bound = c.Return()
	} else {
		bound = d.BoundGV
	}

	cmp := builder.AllocateInstruction()
	cmp.AsIcmp(bound, sum.Return(), ssa.IntegerCmpCondUnsignedLessThan)
	builder.InsertInstruction(cmp)

	trap := builder.AllocateInstruction()
	trap.AsExitIfTrueWithCode(fe.VMCtx(), cmp.Return(), wazevoapi.ExitCodeMemoryOutOfBounds)
	builder.InsertInstruction(trap)

	addr := builder.AllocateInstruction()
	addr.AsIadd(d.BaseGV, extIndex)
	builder.InsertInstruction(addr)
	return addr.Return()
}

func (fe *FuncEnv) constI64(v uint64) ssa.Value {
	c := fe.ssaBuilder.AllocateInstruction()
	c.AsIconst64(v)
	fe.ssaBuilder.InsertInstruction(c)
	return c.Return()
}

// widenTo64 zero-extends a 32-bit index/length value to the builtin trampoline's uniform
// 64-bit ABI (spec §4.2); a value that's already 64-bit (from, e.g., would-be memory64
// operand) passes through unchanged.
func (fe *FuncEnv) widenTo64(v ssa.Value, from32 bool) ssa.Value {
	if !from32 {
		return v
	}
	ext := fe.ssaBuilder.AllocateInstruction()
	ext.AsUExtend(v, 32, 64)
	fe.ssaBuilder.InsertInstruction(ext)
	return ext.Return()
}
