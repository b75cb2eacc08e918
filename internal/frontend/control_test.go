package frontend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazevofx/wazevo/internal/wasm"
)

// i32BinaryOther stands in for the OpOther opcode space a real decoder would translate:
// it consumes the top two i32 operands and pushes one i32 back, enough for the control-flow
// tests below to exercise non-trivial block results.
func i32BinaryOther(fe *FuncEnv, op wasm.Operator) {
	b := fe.ssaBuilder
	y, x := fe.state.pop(), fe.state.pop()
	instr := b.AllocateInstruction()
	instr.AsBand(x, y)
	b.InsertInstruction(instr)
	fe.state.push(instr.Return())
}

func simpleFuncType() *wasm.FunctionType {
	return &wasm.FunctionType{
		Params:  []wasm.ValueType{wasm.ValueTypeI32},
		Results: []wasm.ValueType{wasm.ValueTypeI32},
	}
}

func TestFuncEnv_BlockAndReturn(t *testing.T) {
	m := newTestModule()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	typ := simpleFuncType()
	fe.Init(0, typ, nil)

	ops := []wasm.Operator{
		{Kind: wasm.OpLocalGet, Index: 0},
		{Kind: wasm.OpBlock, Block: wasm.BlockType{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		{Kind: wasm.OpLocalGet, Index: 0},
		{Kind: wasm.OpEnd}, // closes the block, result flows to following block
		{Kind: wasm.OpReturn},
		{Kind: wasm.OpEnd}, // closes the function frame
	}
	fe.LowerToSSA(ops, i32BinaryOther)

	out := builder.Format()
	require.Contains(t, out, "Jump")
	require.Contains(t, out, "Return")
}

func TestFuncEnv_IfElse(t *testing.T) {
	m := newTestModule()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	typ := simpleFuncType()
	fe.Init(0, typ, nil)

	ops := []wasm.Operator{
		{Kind: wasm.OpLocalGet, Index: 0},
		{Kind: wasm.OpIf, Block: wasm.BlockType{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		{Kind: wasm.OpLocalGet, Index: 0},
		{Kind: wasm.OpElse},
		{Kind: wasm.OpLocalGet, Index: 0},
		{Kind: wasm.OpEnd},
		{Kind: wasm.OpReturn},
		{Kind: wasm.OpEnd},
	}
	require.NotPanics(t, func() {
		fe.LowerToSSA(ops, i32BinaryOther)
	})
	require.Contains(t, builder.Format(), "Brz")
}

func TestFuncEnv_LoopBackEdge(t *testing.T) {
	m := newTestModule()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	typ := simpleFuncType()
	fe.Init(0, typ, nil)

	ops := []wasm.Operator{
		{Kind: wasm.OpLocalGet, Index: 0},
		{Kind: wasm.OpLoop, Block: wasm.BlockType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		{Kind: wasm.OpBr, Index: 0}, // branch back to the loop header
		{Kind: wasm.OpEnd},
		{Kind: wasm.OpReturn},
		{Kind: wasm.OpEnd},
	}
	require.NotPanics(t, func() {
		fe.LowerToSSA(ops, i32BinaryOther)
	})
	require.Contains(t, builder.Format(), "Jump")
}

func TestFuncEnv_BrTable(t *testing.T) {
	m := newTestModule()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	typ := simpleFuncType()
	fe.Init(0, typ, nil)

	ops := []wasm.Operator{
		{Kind: wasm.OpBlock, Block: wasm.BlockType{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		{Kind: wasm.OpBlock, Block: wasm.BlockType{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		{Kind: wasm.OpLocalGet, Index: 0},
	}
	brTable := wasm.Operator{Kind: wasm.OpBrTable, Index: 0}
	brTable.BrTable.Targets = []uint32{0}
	brTable.BrTable.Default = 1
	ops = append(ops,
		brTable,
		wasm.Operator{Kind: wasm.OpEnd},
		wasm.Operator{Kind: wasm.OpLocalGet, Index: 0},
		wasm.Operator{Kind: wasm.OpEnd},
		wasm.Operator{Kind: wasm.OpReturn},
		wasm.Operator{Kind: wasm.OpEnd},
	)
	require.NotPanics(t, func() {
		fe.LowerToSSA(ops, i32BinaryOther)
	})
	require.Contains(t, builder.Format(), "BrTable")
}

func TestFuncEnv_LocalTeeKeepsStackValue(t *testing.T) {
	m := newTestModule()
	fe, _ := newTestFuncEnv(m, defaultTunables())
	typ := simpleFuncType()
	fe.Init(0, typ, nil)
	fe.BeforeFunction()
	fe.BeginBody()

	fe.TranslateLocalGet(0)
	before := len(fe.state.values)
	fe.TranslateLocalTee(0)
	require.Equal(t, before, len(fe.state.values), "tee must not change the stack depth")
}

func TestFuncEnv_Select(t *testing.T) {
	m := newTestModule()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	typ := simpleFuncType()
	fe.Init(0, typ, nil)
	fe.BeforeFunction()
	fe.BeginBody()

	fe.TranslateLocalGet(0)
	fe.TranslateLocalGet(0)
	fe.TranslateLocalGet(0)
	fe.TranslateSelect()
	require.Len(t, fe.state.values, 1)
	require.Contains(t, builder.Format(), "Select")
}

func TestFuncEnv_UnreachableTrapsAndMarksDead(t *testing.T) {
	m := newTestModule()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	typ := simpleFuncType()
	fe.Init(0, typ, nil)
	fe.BeforeFunction()
	fe.BeginBody()

	fe.TranslateUnreachable()
	require.True(t, fe.state.unreachable)
	require.Contains(t, builder.Format(), "Exit")
}
