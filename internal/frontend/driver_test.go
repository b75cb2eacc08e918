package frontend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazevofx/wazevo/internal/wasm"
)

// moduleForDriverTest wires one memory, one funcref table, and a second function (index 1,
// type 1: (i32,i32)->i32) alongside the function under test (index 0), so a realistic body
// can call it, touch memory.size/table.size, and loop with a back edge.
func moduleForDriverTest() *wasm.Module {
	m := newTestModule()
	m.FunctionSection = []wasm.Index{1}
	m.MemorySection = []wasm.MemoryType{{Min: 1, Max: 16, MaxValid: true}}
	m.TableSection = []wasm.TableType{{ElemType: wasm.ValueTypeFuncref, Min: 4, Max: 4, MaxValid: true}}
	return m
}

func TestFuncEnv_LowerToSSA_CallMemoryTableThroughDispatch(t *testing.T) {
	m := moduleForDriverTest()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)

	// function 0 (the one under test) is declared in FunctionSection with type index 1
	// ((i32,i32)->i32), so a self-call needs two i32 arguments on the stack.
	ops := []wasm.Operator{
		{Kind: wasm.OpLocalGet, Index: 0},
		{Kind: wasm.OpLocalGet, Index: 0},
		{Kind: wasm.OpCall, Index: 0},
		{Kind: wasm.OpMemorySize, MemArg: wasm.MemArg{MemoryIndex: 0}},
		{Kind: wasm.OpTableSize, Index: 0},
		{Kind: wasm.OpDrop},
		{Kind: wasm.OpDrop},
		{Kind: wasm.OpReturn},
		{Kind: wasm.OpEnd},
	}
	require.NotPanics(t, func() {
		fe.LowerToSSA(ops, nil)
	})
	out := builder.Format()
	require.Contains(t, out, "Call")
	require.Contains(t, out, "Return")
}

func TestFuncEnv_LowerToSSA_LoopWithCallInsideBackEdge(t *testing.T) {
	m := moduleForDriverTest()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)

	// function 0 is declared with type index 1 ((i32,i32)->i32), so the call inside the loop
	// needs two i32 arguments: the loop-carried value plus a fresh local.get.
	ops := []wasm.Operator{
		{Kind: wasm.OpLocalGet, Index: 0},
		{Kind: wasm.OpLoop, Block: wasm.BlockType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		{Kind: wasm.OpLocalGet, Index: 0},
		{Kind: wasm.OpCall, Index: 0},
		{Kind: wasm.OpBr, Index: 0}, // back edge to the loop header
		{Kind: wasm.OpEnd},
		{Kind: wasm.OpReturn},
		{Kind: wasm.OpEnd},
	}
	require.NotPanics(t, func() {
		fe.LowerToSSA(ops, nil)
	})
	out := builder.Format()
	require.Contains(t, out, "Call")
	require.Contains(t, out, "new_epoch", "a loop header re-runs the epoch check")
}

func TestFuncEnv_LowerToSSA_CallIndirectThroughDispatch(t *testing.T) {
	m := moduleForDriverTest()
	m.TypeIDs = []wasm.TypeID{0, 1}
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)

	ops := []wasm.Operator{
		{Kind: wasm.OpLocalGet, Index: 0},
		{Kind: wasm.OpLocalGet, Index: 0},
		{Kind: wasm.OpLocalGet, Index: 0}, // table index operand for call_indirect
		{Kind: wasm.OpCallIndirect, Index: 0, Index2: 1},
		{Kind: wasm.OpDrop},
		{Kind: wasm.OpLocalGet, Index: 0},
		{Kind: wasm.OpReturn},
		{Kind: wasm.OpEnd},
	}
	require.NotPanics(t, func() {
		fe.LowerToSSA(ops, nil)
	})
	require.Contains(t, builder.Format(), "CallIndirect")
}
