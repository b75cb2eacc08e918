package wasm

// OperatorKind tags the variant held by an Operator. It covers exactly the operator
// families the function-translation core cares about individually (memory, table,
// reference, call and control-flow shapes) plus a single OpOther catch-all for every
// plain arithmetic/comparison/conversion opcode, which the translator only needs to see
// for fuel accounting and never translates itself.
type OperatorKind byte

const (
	OpOther OperatorKind = iota // arithmetic, comparisons, conversions, local.get/set/tee, etc.

	OpBlock
	OpLoop
	OpIf
	OpElse
	OpEnd
	OpBr
	OpBrIf
	OpBrTable
	OpReturn
	OpUnreachable
	OpNop

	OpCall
	OpCallIndirect
	OpReturnCall
	OpReturnCallIndirect
	OpCallRef
	OpReturnCallRef

	OpDrop
	OpSelect
	OpLocalGet
	OpLocalSet
	OpLocalTee
	OpGlobalGet
	OpGlobalSet

	OpMemorySize
	OpMemoryGrow
	OpMemoryCopy
	OpMemoryFill
	OpMemoryInit
	OpDataDrop
	OpAtomicWait32
	OpAtomicWait64
	OpAtomicNotify
	OpAtomicFence

	OpTableGet
	OpTableSet
	OpTableSize
	OpTableGrow
	OpTableFill
	OpTableCopy
	OpTableInit
	OpElemDrop

	OpRefFunc
	OpRefNull
	OpRefIsNull
)

// BlockType describes the parameter/result shape of a structured control-flow block. Like
// a real decoder, it resolves any type-section reference eagerly so the translator never
// has to look the index up itself.
type BlockType struct {
	Params, Results []ValueType
}

// MemArg is the static offset/alignment immediate attached to a load, store or atomic
// memory access.
type MemArg struct {
	Offset uint64
	Align  uint32
	// MemoryIndex selects which of the module's (possibly multiple, with the multi-memory
	// proposal) linear memories this access targets.
	MemoryIndex Index
}

// Operator is one decoded-and-validated instruction from a function body, as produced by
// the (out of scope) decoder/validator and fed to FuncEnv one at a time.
//
// Only the fields relevant to Kind are populated; it's a flat struct rather than a tagged
// union of pointers so that driving a function through FuncEnv doesn't allocate per operator.
type Operator struct {
	Kind OperatorKind

	// Block carries the BlockType for OpBlock/OpLoop/OpIf.
	Block BlockType

	// Index carries the relevant index for the many operators keyed by one: local index,
	// global index, table index, memory index (when there's exactly one), function index,
	// type index, data/elem segment index, or branch depth for OpBr/OpBrIf.
	Index Index

	// Index2 carries a second index where an operator needs one: the destination table
	// index for OpTableCopy/OpTableInit (Index is then the source), or the TypeIndex for
	// OpCallIndirect/OpReturnCallIndirect/OpCallRef (Index is then the table index, for the
	// *Indirect variants).
	Index2 Index

	// BrTable carries the jump table for OpBrTable: Targets are relative branch depths,
	// Default is the depth used when the scrutinee is out of range.
	BrTable struct {
		Targets []uint32
		Default uint32
	}

	// MemArg carries the memory immediate for OpMemoryInit and the atomic memory operators.
	MemArg MemArg

	// RefType carries the reference type for OpRefNull (Funcref or Externref).
	RefType ValueType
}
