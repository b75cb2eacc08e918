package wazevoapi

// BuiltinFunctionIndex identifies one of the fixed set of host-implemented helper functions
// that generated code calls into for operations too rare, too large, or too stateful to
// inline: table/memory slow paths, GC barriers, and interruption bookkeeping.
//
// The index itself is the contract: it's used to compute the builtin's slot in the per-module
// builtin-function-pointer table (see ModuleContextOffsetData.BuiltinFunctionsBegin), so indices are
// never reordered or reused even when a feature they serve is compiled out of a particular
// build — a disabled builtin just never gets called, it doesn't shift its neighbors.
type BuiltinFunctionIndex uint32

const (
	// BuiltinFunctionIndexTableGrowFuncRef grows a funcref table, filling new slots with null.
	BuiltinFunctionIndexTableGrowFuncRef BuiltinFunctionIndex = iota
	// BuiltinFunctionIndexTableGrowExternRef grows an externref table, filling new slots with null.
	BuiltinFunctionIndexTableGrowExternRef
	// BuiltinFunctionIndexTableFillFuncRef implements `table.fill` for a funcref table.
	BuiltinFunctionIndexTableFillFuncRef
	// BuiltinFunctionIndexTableFillExternRef implements `table.fill` for an externref table,
	// maintaining activation-table refcounts for every slot touched.
	BuiltinFunctionIndexTableFillExternRef
	// BuiltinFunctionIndexTableCopy implements `table.copy`, including overlapping ranges.
	BuiltinFunctionIndexTableCopy
	// BuiltinFunctionIndexTableInit implements `table.init` from a passive element segment.
	BuiltinFunctionIndexTableInit
	// BuiltinFunctionIndexTableGetLazyInitFuncRef resolves a funcref table slot whose
	// lazy-init bit indicates the pointer to its FuncRef record hasn't been
	// materialized yet.
	BuiltinFunctionIndexTableGetLazyInitFuncRef
	// BuiltinFunctionIndexElemDrop implements `elem.drop`.
	BuiltinFunctionIndexElemDrop

	// BuiltinFunctionIndexMemoryGrow implements the slow path of `memory.grow`.
	BuiltinFunctionIndexMemoryGrow
	// BuiltinFunctionIndexMemoryCopy implements `memory.copy`.
	BuiltinFunctionIndexMemoryCopy
	// BuiltinFunctionIndexMemoryFill implements `memory.fill`.
	BuiltinFunctionIndexMemoryFill
	// BuiltinFunctionIndexMemoryInit implements `memory.init` from a passive data segment.
	BuiltinFunctionIndexMemoryInit
	// BuiltinFunctionIndexDataDrop implements `data.drop`.
	BuiltinFunctionIndexDataDrop
	// BuiltinFunctionIndexMemoryAtomicWait32 and Wait64 implement the corresponding
	// threads-proposal wait instructions.
	BuiltinFunctionIndexMemoryAtomicWait32
	BuiltinFunctionIndexMemoryAtomicWait64
	// BuiltinFunctionIndexMemoryAtomicNotify implements `memory.atomic.notify`.
	BuiltinFunctionIndexMemoryAtomicNotify

	// BuiltinFunctionIndexRefFunc materializes a funcref (a FuncRef record pointer) for
	// `ref.func`, populating a table slot's lazy-init cache as a side effect when called
	// from the table-get slow path.
	BuiltinFunctionIndexRefFunc

	// BuiltinFunctionIndexActivationsTableInsertWithGC inserts an externref into the
	// activations table, first running a GC sweep if the table is full.
	BuiltinFunctionIndexActivationsTableInsertWithGC
	// BuiltinFunctionIndexDropExternRef decrements an externref's refcount, potentially
	// reclaiming its activations-table slot.
	BuiltinFunctionIndexDropExternRef
	// BuiltinFunctionIndexExternRefGlobalGet and GlobalSet implement get/set of a global
	// whose value type is externref, routing the refcount barrier through the builtin
	// rather than inlining it at every use site.
	BuiltinFunctionIndexExternRefGlobalGet
	BuiltinFunctionIndexExternRefGlobalSet

	// BuiltinFunctionIndexOutOfGas is called when the fuel counter reaches zero; it either
	// traps with ExitCodeOutOfGas or refills fuel and returns, per host policy.
	BuiltinFunctionIndexOutOfGas
	// BuiltinFunctionIndexNewEpoch is called when the cached epoch deadline has passed; it
	// either traps, or returns a refreshed deadline to cache for the next check.
	BuiltinFunctionIndexNewEpoch

	// BuiltinFunctionIndexMemoryCheckerBegin and End bracket a memory access when the
	// optional memory checker (see frontend.Tunables.MemoryCheckerEnabled) is compiled in, asking
	// the host to validate the access against an out-of-band shadow map.
	BuiltinFunctionIndexMemoryCheckerBegin
	BuiltinFunctionIndexMemoryCheckerEnd

	builtinFunctionIndexCount
)

// Count returns the number of builtin slots a module's builtin-function-pointer table must
// reserve, regardless of how many builtins a particular function body actually calls.
func (BuiltinFunctionIndex) Count() int { return int(builtinFunctionIndexCount) }

// String implements fmt.Stringer.
func (b BuiltinFunctionIndex) String() string {
	switch b {
	case BuiltinFunctionIndexTableGrowFuncRef:
		return "table_grow_func_ref"
	case BuiltinFunctionIndexTableGrowExternRef:
		return "table_grow_externref"
	case BuiltinFunctionIndexTableFillFuncRef:
		return "table_fill_func_ref"
	case BuiltinFunctionIndexTableFillExternRef:
		return "table_fill_externref"
	case BuiltinFunctionIndexTableCopy:
		return "table_copy"
	case BuiltinFunctionIndexTableInit:
		return "table_init"
	case BuiltinFunctionIndexTableGetLazyInitFuncRef:
		return "table_get_lazy_init_func_ref"
	case BuiltinFunctionIndexElemDrop:
		return "elem_drop"
	case BuiltinFunctionIndexMemoryGrow:
		return "memory32_grow"
	case BuiltinFunctionIndexMemoryCopy:
		return "memory_copy"
	case BuiltinFunctionIndexMemoryFill:
		return "memory_fill"
	case BuiltinFunctionIndexMemoryInit:
		return "memory_init"
	case BuiltinFunctionIndexDataDrop:
		return "data_drop"
	case BuiltinFunctionIndexMemoryAtomicWait32:
		return "memory_atomic_wait32"
	case BuiltinFunctionIndexMemoryAtomicWait64:
		return "memory_atomic_wait64"
	case BuiltinFunctionIndexMemoryAtomicNotify:
		return "memory_atomic_notify"
	case BuiltinFunctionIndexRefFunc:
		return "ref_func"
	case BuiltinFunctionIndexActivationsTableInsertWithGC:
		return "activations_table_insert_with_gc"
	case BuiltinFunctionIndexDropExternRef:
		return "drop_externref"
	case BuiltinFunctionIndexExternRefGlobalGet:
		return "externref_global_get"
	case BuiltinFunctionIndexExternRefGlobalSet:
		return "externref_global_set"
	case BuiltinFunctionIndexOutOfGas:
		return "out_of_gas"
	case BuiltinFunctionIndexNewEpoch:
		return "new_epoch"
	case BuiltinFunctionIndexMemoryCheckerBegin:
		return "memory_checker_begin"
	case BuiltinFunctionIndexMemoryCheckerEnd:
		return "memory_checker_end"
	default:
		return "unknown_builtin"
	}
}
