// Package frontend implements the function-translation core: lowering a single Wasm
// function body, presented operator-by-operator by an external decoder, into the
// target-independent SSA IR defined by package ssa.
package frontend

import (
	"github.com/wazevofx/wazevo/internal/ssa"
	"github.com/wazevofx/wazevo/internal/wasm"
	"github.com/wazevofx/wazevo/internal/wazevoapi"
)

// vmctxPtrType is the IR type of every runtime-context pointer this package threads: the
// single vmctx concept of spec's Data Model, as opposed to a split exec-context/module-context
// pair. 64-bit only: a 32-bit backend is not a target this core is built for.
const vmctxPtrType = ssa.TypeI64

// Tunables gates optional subsystems of the translation core. Every field is off in the zero
// value; an embedder turns on each subsystem it wants.
type Tunables struct {
	FuelEnabled          bool
	EpochEnabled         bool
	PCCEnabled           bool
	MemoryCheckerEnabled bool
	// MallocFreeHeuristicEnabled selects the debug-info-name heuristic that recognizes a
	// function as malloc/free for the memory checker. Off in the zero value. The translation
	// core itself does not read it and implements no such heuristic.
	MallocFreeHeuristicEnabled bool
}

// LayoutOracle is the host runtime's byte-offset map inside vmctx, supplied by the embedder.
// FuncEnv never assumes a concrete struct layout beyond what this interface exposes.
type LayoutOracle interface {
	Offsets() *wazevoapi.ModuleContextOffsetData
}

// HeapDescriptor is an immutable-after-creation per-(function, memory-index) record
// describing how to translate accesses to one linear memory. See heapStyle for the
// static/dynamic distinction.
type HeapDescriptor struct {
	// BaseGV yields the heap's base pointer. For a Static heap this value is loop-invariant
	// and safe to treat as read-only for the whole function.
	BaseGV ssa.Value
	// MinSize and MaxSize are compile-time-known byte bounds; MaxValid is false when the
	// module declared no maximum.
	MinSize, MaxSize uint64
	MaxValid         bool
	// OffsetGuard is the size, in bytes, of the trailing unmapped guard region following the
	// addressable memory, used to elide explicit bounds checks when provably covered.
	OffsetGuard uint64
	Style       heapStyle
	// BoundGV, for a Dynamic heap, yields the current byte length, reloaded at every bounds
	// check since it may change underneath a growing memory. Unused for Static heaps.
	BoundGV ssa.Value
	Is64    bool
	Shared  bool
	// MemType is the optional PCC fact handle for pointers derived from this heap.
	MemType *pccMemType
}

type heapStyle byte

const (
	heapStyleStatic heapStyle = iota + 1
	heapStyleDynamic
)

// TableDescriptor is the per-(function, table-index) record for table/ref lowering.
type TableDescriptor struct {
	ElemType wasm.ValueType
	// BaseGV yields the table's base pointer; LenGV yields its current element count.
	BaseGV, LenGV ssa.Value
}

// FuncEnv is the per-function translation façade the decoder drives operator-by-operator.
// It is never shared or reused across functions except insofar as its *module-level* fields
// (set once in NewFuncEnv) are immutable and read concurrently by one FuncEnv per function
// being compiled in parallel, per spec §5.
type FuncEnv struct {
	// Module-level, immutable, shared across all functions compiled from this module.
	module    *wasm.Module
	layout    LayoutOracle
	tunables  Tunables
	ssaBuilder ssa.Builder
	signatures map[*wasm.FunctionType]*ssa.Signature

	// Per-function state, reset by Init.
	fnIndex    wasm.Index
	fnType     *wasm.FunctionType
	localTypes []wasm.ValueType
	state      loweringState
	wasmLocalToVariable map[wasm.Index]ssa.Variable

	heaps  map[wasm.Index]*HeapDescriptor
	tables map[wasm.Index]*TableDescriptor

	// vmctxValue is this function's own vmctx pointer value (spec: "single IR global-value
	// representing the runtime context pointer"), set exactly once per function by
	// BeforeFunction as the entry block's vmctx parameter.
	vmctxValue ssa.Value
	vmctxKnown bool
	entryBlock ssa.BasicBlock

	// Interruption-related cached variables (spec §4.4), each lazily declared.
	fuelVar, epochDeadlineVar, epochPtrVar ssa.Variable
	fuelVarKnown, epochVarsKnown           bool
	fuelAccum                              int64

	builtinSigCache map[wazevoapi.BuiltinFunctionIndex]*ssa.Signature
	builtinFnCache  map[wazevoapi.BuiltinFunctionIndex]ssa.Value

	// globalVars caches, per memory-resident mutable global accessed so far in this function,
	// the SSA variable holding its last-known value. Externref globals are never entered here:
	// they are always routed through the externref_global_get/set builtins, so there is no
	// cached value to go stale.
	globalVars map[wasm.Index]ssa.Variable

	pcc *pccState
}

// NewFuncEnv constructs the module-level, per-module-compile FuncEnv seed. Individual
// functions are translated by calling Init then LowerToSSA, exactly like the teacher's
// Compiler.Init/LowerToSSA split, so that one FuncEnv can be driven across every function in
// a module without reallocating its module-level caches.
func NewFuncEnv(m *wasm.Module, layout LayoutOracle, builder ssa.Builder, tunables Tunables) *FuncEnv {
	fe := &FuncEnv{
		module:     m,
		layout:     layout,
		tunables:   tunables,
		ssaBuilder: builder,
		signatures: make(map[*wasm.FunctionType]*ssa.Signature, len(m.TypeSection)),
	}
	for i := range m.TypeSection {
		wasmSig := &m.TypeSection[i]
		sig := SignatureForWasmFunctionType(wasmSig)
		sig.ID = ssa.SignatureID(i)
		fe.signatures[wasmSig] = &sig
		builder.DeclareSignature(&sig)
	}
	if tunables.PCCEnabled {
		fe.pcc = newPCCState()
	}
	return fe
}

// SignatureForWasmFunctionType builds the IR signature for a Wasm function type, prepending
// the two vmctx parameters every Wasm-level call site threads (spec: "first two parameters of
// every Wasm call site are callee_vmctx, caller_vmctx").
func SignatureForWasmFunctionType(typ *wasm.FunctionType) ssa.Signature {
	sig := ssa.Signature{
		Params:  make([]ssa.Type, len(typ.Params)+2),
		Results: make([]ssa.Type, len(typ.Results)),
	}
	sig.Params[0] = vmctxPtrType // callee_vmctx
	sig.Params[1] = vmctxPtrType // caller_vmctx
	for i, p := range typ.Params {
		sig.Params[i+2] = WasmTypeToSSAType(p)
	}
	for i, r := range typ.Results {
		sig.Results[i] = WasmTypeToSSAType(r)
	}
	return sig
}

// WasmTypeToSSAType maps a Wasm value type to its IR representation. Both reference types are
// represented as a plain pointer-width integer: funcref/externref bit-tagging and refcounting
// is this package's job, not the IR's.
func WasmTypeToSSAType(vt wasm.ValueType) ssa.Type {
	switch vt {
	case wasm.ValueTypeI32:
		return ssa.TypeI32
	case wasm.ValueTypeI64:
		return ssa.TypeI64
	case wasm.ValueTypeF32:
		return ssa.TypeF32
	case wasm.ValueTypeF64:
		return ssa.TypeF64
	case wasm.ValueTypeV128:
		return ssa.TypeV128
	case wasm.ValueTypeFuncref, wasm.ValueTypeExternref:
		return ssa.TypeI64
	default:
		panic("BUG: unknown wasm.ValueType")
	}
}

// Init prepares the FuncEnv for translating the function at fnIndex, discarding any leftover
// per-function state from a previous call. All returned IR handles from here on (vmctx,
// heaps, tables, builtin signatures) are idempotent within this function and are never
// carried over to the next Init, per spec §4.1.
func (fe *FuncEnv) Init(fnIndex wasm.Index, typ *wasm.FunctionType, localTypes []wasm.ValueType) {
	fe.ssaBuilder.Init(fe.signatures[typ])
	fe.state.reset()

	fe.fnIndex = fnIndex
	fe.fnType = typ
	fe.localTypes = localTypes

	if fe.wasmLocalToVariable == nil {
		fe.wasmLocalToVariable = make(map[wasm.Index]ssa.Variable)
	} else {
		for k := range fe.wasmLocalToVariable {
			delete(fe.wasmLocalToVariable, k)
		}
	}
	fe.heaps = nil
	fe.tables = nil
	fe.vmctxKnown = false
	fe.fuelVarKnown = false
	fe.epochVarsKnown = false
	fe.fuelAccum = 0
	fe.builtinSigCache = nil
	fe.builtinFnCache = nil
	fe.globalVars = nil
}

// IsWasmParameter implements the is_wasm_parameter(index) decoder-contract method of spec §6:
// the first two IR parameters are the vmctx pair, so Wasm-visible parameters start at index 2.
func (fe *FuncEnv) IsWasmParameter(index int) bool { return index >= 2 }

// VMCtx returns this function's own vmctx pointer, the entry-block parameter BeforeFunction
// created (spec: "the vmctx IR global is created exactly once per function"). It panics if
// BeforeFunction has not run yet for the current function.
func (fe *FuncEnv) VMCtx() ssa.Value {
	if !fe.vmctxKnown {
		panic("BUG: VMCtx queried before BeforeFunction ran")
	}
	return fe.vmctxValue
}

// Builder exposes the underlying ssa.Builder for the small number of lowering files that need
// direct access (memory.go, table.go, call.go, fuel.go, epoch.go).
func (fe *FuncEnv) Builder() ssa.Builder { return fe.ssaBuilder }

// Module exposes the module-level metadata FuncEnv was constructed with.
func (fe *FuncEnv) Module() *wasm.Module { return fe.module }

// Tunables exposes the feature toggles this FuncEnv was configured with.
func (fe *FuncEnv) Tunables() Tunables { return fe.tunables }
