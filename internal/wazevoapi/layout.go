package wazevoapi

import "github.com/wazevofx/wazevo/internal/wasm"

// Sizes, in bytes, of the fixed-layout records addressed relative to vmctx. These mirror
// the host runtime's actual struct layout, which this module never defines: a real embedder
// supplies a *LayoutOracle built from its own struct offsets, and the translation core only
// ever reads through it.
const (
	// FuncRefSize is the size of the function-reference record a resolved funcref table
	// slot points to: {WasmCall, Vmctx, TypeID, ArrayCall uintptr}.
	FuncRefSize = 32
	// FuncRefWasmCallOffset, FuncRefVmctxOffset, FuncRefTypeIDOffset locate fields within
	// one FuncRefSize record.
	FuncRefWasmCallOffset = 0
	FuncRefVmctxOffset    = 8
	FuncRefTypeIDOffset   = 16

	// MemoryDefinitionBaseOffset and MemoryDefinitionLengthOffset locate the base-pointer
	// and current-length fields within a memory definition record.
	MemoryDefinitionBaseOffset   = 0
	MemoryDefinitionLengthOffset = 8
	// MemoryDefinitionSize is the size of one memory definition record.
	MemoryDefinitionSize = 16

	// TableDefinitionBaseOffset and TableDefinitionLengthOffset locate the base-pointer and
	// element-count fields within a table definition record, whose elements are
	// pointer-sized slots for both funcref and externref tables.
	TableDefinitionBaseOffset   = 0
	TableDefinitionLengthOffset = 8
	TableDefinitionSize         = 16

	// GlobalInstanceSize is the size of one global's storage record. The value itself lives
	// GlobalInstanceValueOffset bytes in; the leading word is reserved for bookkeeping the
	// host may use (e.g. a type tag), which the translator never reads.
	GlobalInstanceValueOffset = 8
	GlobalInstanceSize        = 16

	// ExternDataRefCountOffset is fixed at 0 by convention: every externref-eligible host
	// object the activations table can hold must start with its refcount, so the GC
	// read/write barriers don't need to know the concrete object's type.
	ExternDataRefCountOffset = 0
)

// RuntimeLimitsOffsetData locates the fuel and epoch-deadline fields that the interruption
// machinery reads and writes on every check.
type RuntimeLimitsOffsetData struct {
	// FuelOffset locates a signed 64-bit fuel counter. It holds a negative value that rises
	// toward zero as code consumes fuel; a check that finds it at zero or above calls the
	// out_of_gas builtin.
	FuelOffset uint32
	// EpochDeadlineOffset locates an unsigned 64-bit epoch number. When the global epoch
	// counter (reached indirectly through EpochPtrOffset) is observed to be >= this value,
	// the new_epoch builtin is invoked.
	EpochDeadlineOffset uint32
	// EpochPtrOffset locates a pointer to the process-wide atomic epoch counter.
	EpochPtrOffset uint32
}

// ModuleContextOffsetData packs the vmctx-relative offsets of every region a compiled
// function body can touch, computed once per module from its *wasm.Module shape. It
// generalizes the teacher runtime's split exec-context/module-context pair into the single
// vmctx the rest of this package assumes, per the wasmtime lineage this module is modeled on.
type ModuleContextOffsetData struct {
	TotalSize uint32

	RuntimeLimits RuntimeLimitsOffsetData

	// BuiltinFunctionsBegin is the offset of the first entry in the builtin-function-pointer
	// table, which has BuiltinFunctionIndex(0).Count() entries of pointer size each.
	BuiltinFunctionsBegin uint32

	// TypeIDsBegin is the offset of the first entry of a TypeID array, one per module-level
	// declared type, used to resolve a `call_indirect` site's statically-known TypeIndex to
	// the TypeID an indirect call compares against a funcref's stored type.
	TypeIDsBegin uint32

	// ImportedFunctionsBegin is the offset of the first entry of an array of
	// {executable, vmctx uintptr} pairs, one per imported function.
	ImportedFunctionsBegin uint32
	// LocalMemoryBegin is the offset of the module's first locally-defined memory's
	// MemoryDefinitionSize-sized record, or -1 if the module defines no local memory.
	LocalMemoryBegin int32
	// ImportedMemoriesBegin is the offset of the first entry of an array of pointers to
	// imported memories' definition records, or -1 if the module imports no memory.
	ImportedMemoriesBegin int32
	// TablesBegin is the offset of the first of the module's (imported-then-local)
	// TableDefinitionSize-sized table records.
	TablesBegin uint32
	// GlobalsBegin is the offset of the first of the module's (imported-then-local)
	// GlobalInstanceSize-sized global records.
	GlobalsBegin uint32

	// ActivationsTableNextOffset and ActivationsTableEndOffset locate the bump-allocation
	// cursor and capacity of the externref activations table, read by the fast inline path
	// of an insert before falling back to the activations_table_insert_with_gc builtin.
	ActivationsTableNextOffset uint32
	ActivationsTableEndOffset  uint32
}

// ImportedFunctionOffset returns the vmctx-relative offset of the (executable, vmctx)
// pair for the i'th imported function.
func (m *ModuleContextOffsetData) ImportedFunctionOffset(i wasm.Index) (executableOffset, vmctxOffset uint32) {
	base := m.ImportedFunctionsBegin + i*16
	return base, base + 8
}

// GlobalInstanceOffset returns the vmctx-relative offset of the i'th global's value field,
// across both imported and locally-defined globals (the caller resolves which via
// *wasm.Module.Global, not this method).
func (m *ModuleContextOffsetData) GlobalInstanceOffset(i wasm.Index) uint32 {
	return m.GlobalsBegin + i*GlobalInstanceSize + GlobalInstanceValueOffset
}

// TableOffset returns the vmctx-relative offset of the i'th table's definition record.
func (m *ModuleContextOffsetData) TableOffset(i wasm.Index) uint32 {
	return m.TablesBegin + i*TableDefinitionSize
}

// TypeIDOffset returns the vmctx-relative offset of the TypeID slot for the given
// module-level type index.
func (m *ModuleContextOffsetData) TypeIDOffset(typeIndex wasm.Index) uint32 {
	return m.TypeIDsBegin + typeIndex*4
}

// BuiltinFunctionOffset returns the vmctx-relative offset of the function pointer for the
// given builtin.
func (m *ModuleContextOffsetData) BuiltinFunctionOffset(b BuiltinFunctionIndex) uint32 {
	return m.BuiltinFunctionsBegin + uint32(b)*8
}

const ptrSize = 8

// NewModuleContextOffsetData packs a ModuleContextOffsetData from a module's shape. The
// packing order (limits, builtins, type IDs, functions, memories, tables, globals,
// activations table) is arbitrary beyond needing to be consistent within a single compiled
// module; a real embedder is free to choose its own as long as the *LayoutOracle it hands to
// FuncEnv agrees with the struct layout its runtime actually uses.
func NewModuleContextOffsetData(m *wasm.Module) ModuleContextOffsetData {
	var ret ModuleContextOffsetData
	var offset uint32

	ret.RuntimeLimits.FuelOffset = offset
	offset += 8
	ret.RuntimeLimits.EpochDeadlineOffset = offset
	offset += 8
	ret.RuntimeLimits.EpochPtrOffset = offset
	offset += ptrSize

	ret.BuiltinFunctionsBegin = offset
	offset += uint32(BuiltinFunctionIndex(0).Count()) * ptrSize

	ret.TypeIDsBegin = offset
	offset += uint32(len(m.TypeSection)) * 4
	if rem := offset % ptrSize; rem != 0 {
		offset += ptrSize - rem
	}

	if imported := m.NumImportedFunctions(); imported > 0 {
		ret.ImportedFunctionsBegin = offset
		offset += uint32(imported) * 2 * ptrSize
	} else {
		ret.ImportedFunctionsBegin = offset
	}

	if localMemories := len(m.MemorySection); localMemories > 0 {
		ret.LocalMemoryBegin = int32(offset)
		offset += MemoryDefinitionSize // Only the first local memory is directly inlined; multi-memory beyond it is out of scope for this offset scheme.
	} else {
		ret.LocalMemoryBegin = -1
	}

	if importedMemories := m.NumImportedMemories(); importedMemories > 0 {
		ret.ImportedMemoriesBegin = int32(offset)
		offset += uint32(importedMemories) * ptrSize
	} else {
		ret.ImportedMemoriesBegin = -1
	}

	ret.TablesBegin = offset
	offset += uint32(m.NumImportedTables()+len(m.TableSection)) * TableDefinitionSize

	ret.GlobalsBegin = offset
	offset += uint32(m.NumImportedGlobals()+len(m.GlobalSection)) * GlobalInstanceSize

	ret.ActivationsTableNextOffset = offset
	offset += ptrSize
	ret.ActivationsTableEndOffset = offset
	offset += ptrSize

	ret.TotalSize = offset
	return ret
}
