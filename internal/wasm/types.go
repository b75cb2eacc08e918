// Package wasm holds the small slice of the Wasm type system that the function-translation
// core needs in order to interpret the operator stream handed to it by the decoder/validator.
//
// The decoder, the binary format, and validation are out of scope for this module: a real
// embedder feeds a *Module plus a validated operator sequence for each function body. This
// package only describes the shapes those collaborators are expected to produce.
package wasm

import "fmt"

// ValueType is a Wasm value type.
type ValueType byte

const (
	ValueTypeI32 ValueType = iota + 1
	ValueTypeI64
	ValueTypeF32
	ValueTypeF64
	ValueTypeV128
	// ValueTypeFuncref is an opaque pointer to a Wasm-defined or host-defined function.
	ValueTypeFuncref
	// ValueTypeExternref is an opaque, GC-managed host reference.
	ValueTypeExternref
)

// String implements fmt.Stringer.
func (v ValueType) String() string {
	switch v {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	default:
		return fmt.Sprintf("unknown(%d)", byte(v))
	}
}

// IsReference reports whether v is one of the two reference types.
func (v ValueType) IsReference() bool {
	return v == ValueTypeFuncref || v == ValueTypeExternref
}

// Index is a Wasm-level index into one of the module's index spaces (functions, types,
// tables, memories, globals).
type Index = uint32

// FunctionType is a Wasm function signature, keyed by structural identity elsewhere
// (the TypeIndex used at a `call_indirect` site is the module's declared index, which
// may differ structurally-equal types that were declared separately).
type FunctionType struct {
	Params, Results []ValueType
}

// TypeID is a module-scoped identifier for a canonicalized FunctionType, distinct from the
// TypeIndex used in the binary: two FunctionType(s) with the same shape share a TypeID even
// if declared under different indices. It's what the runtime stores next to a funcref so
// that an indirect call can cheaply compare "same shape" rather than "same declared index".
type TypeID uint32

// MemoryType describes one of the module's linear memories.
type MemoryType struct {
	Min uint64
	Max uint64
	// MaxValid is false when the module didn't declare a maximum.
	MaxValid bool
	// Shared memories may be grown by another agent concurrently with this one.
	Shared bool
	// Is64 selects memory64 (i64 index type) vs classic 32-bit addressing.
	Is64 bool
}

// TableType describes one of the module's tables.
type TableType struct {
	ElemType ValueType
	Min      uint32
	Max      uint32
	MaxValid bool
}

// GlobalType describes one of the module's globals.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// Module is the validated, decoded metadata for a Wasm module. Function bodies themselves
// are not modeled here; they arrive at the translator as an Operator stream (see package
// frontend) keyed by their index into FunctionSection.
type Module struct {
	TypeSection []FunctionType

	ImportFunctionTypes []Index // type index, one per imported function, in import order.
	ImportMemories      []MemoryType
	ImportTables        []TableType
	ImportGlobals       []GlobalType

	// FunctionSection holds the type index of each function *defined* in this module, i.e.
	// excluding imports. A local function's Wasm-level function index is
	// len(ImportFunctionTypes) + i for FunctionSection[i].
	FunctionSection []Index

	MemorySection []MemoryType
	TableSection  []TableType
	GlobalSection []GlobalType

	// TypeIDs maps each TypeSection index to its canonicalized TypeID, as the runtime would
	// compute it across the whole store (so that two modules with structurally-equal types
	// agree on TypeID). Populated by the embedder; a translator only ever reads it.
	TypeIDs []TypeID
}

// NumImportedFunctions returns the number of functions this module imports.
func (m *Module) NumImportedFunctions() int { return len(m.ImportFunctionTypes) }

// IsImportedFunction reports whether fnIndex refers to an imported function.
func (m *Module) IsImportedFunction(fnIndex Index) bool {
	return int(fnIndex) < m.NumImportedFunctions()
}

// FunctionTypeIndex returns the TypeSection index of the function at the given Wasm-level
// function index, covering both imported and locally-defined functions.
func (m *Module) FunctionTypeIndex(fnIndex Index) Index {
	if m.IsImportedFunction(fnIndex) {
		return m.ImportFunctionTypes[fnIndex]
	}
	return m.FunctionSection[int(fnIndex)-m.NumImportedFunctions()]
}

// FunctionSignature resolves a Wasm-level function index to its FunctionType.
func (m *Module) FunctionSignature(fnIndex Index) *FunctionType {
	return &m.TypeSection[m.FunctionTypeIndex(fnIndex)]
}

// NumImportedTables, NumImportedMemories, NumImportedGlobals mirror NumImportedFunctions
// for the other three index spaces.
func (m *Module) NumImportedTables() int   { return len(m.ImportTables) }
func (m *Module) NumImportedMemories() int { return len(m.ImportMemories) }
func (m *Module) NumImportedGlobals() int  { return len(m.ImportGlobals) }

// Table resolves a table index (imported or local) to its TableType.
func (m *Module) Table(idx Index) *TableType {
	if n := m.NumImportedTables(); int(idx) < n {
		return &m.ImportTables[idx]
	} else {
		return &m.TableSection[int(idx)-n]
	}
}

// Memory resolves a memory index (imported or local) to its MemoryType.
func (m *Module) Memory(idx Index) *MemoryType {
	if n := m.NumImportedMemories(); int(idx) < n {
		return &m.ImportMemories[idx]
	} else {
		return &m.MemorySection[int(idx)-n]
	}
}

// Global resolves a global index (imported or local) to its GlobalType.
func (m *Module) Global(idx Index) *GlobalType {
	if n := m.NumImportedGlobals(); int(idx) < n {
		return &m.ImportGlobals[idx]
	} else {
		return &m.GlobalSection[int(idx)-n]
	}
}

const (
	// MemoryPageSize is the fixed size, in bytes, of one Wasm linear-memory page.
	MemoryPageSize = 65536
	// MemoryPageSizeInBits is log2(MemoryPageSize), used to turn a byte size into a page
	// count with a shift instead of a division.
	MemoryPageSizeInBits = 16
	// MaxMemory64Pages is the largest page count representable by a memory64 memory.
	MaxMemory64Pages = 1 << 48
)
