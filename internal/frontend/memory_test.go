package frontend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazevofx/wazevo/internal/wasm"
)

func moduleWithOneStaticMemory() *wasm.Module {
	m := newTestModule()
	m.MemorySection = []wasm.MemoryType{{Min: 1, Max: 16, MaxValid: true}}
	return m
}

func moduleWithOneSharedMemory() *wasm.Module {
	m := newTestModule()
	m.MemorySection = []wasm.MemoryType{{Min: 1, Max: 16, MaxValid: true, Shared: true}}
	return m
}

func TestFuncEnv_MakeHeap_StaticStyle(t *testing.T) {
	m := moduleWithOneStaticMemory()
	fe, _ := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	d := fe.MakeHeap(0)
	require.Equal(t, heapStyleStatic, d.Style)
	require.Equal(t, uint64(1*wasm.MemoryPageSize), d.MinSize)
	require.NotNil(t, d.MemType, "PCC enabled: a fact must be attached")

	d2 := fe.MakeHeap(0)
	require.Same(t, d, d2, "MakeHeap must memoize within a function")
}

func TestFuncEnv_MakeHeap_SharedUsesDynamicStyleAndAtomicLoad(t *testing.T) {
	m := moduleWithOneSharedMemory()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	d := fe.MakeHeap(0)
	require.Equal(t, heapStyleDynamic, d.Style)
	require.True(t, d.Shared)
	require.Contains(t, builder.Format(), "AtomicLoad")
}

func TestFuncEnv_TranslateMemorySize_StaticUsesConstant(t *testing.T) {
	m := moduleWithOneStaticMemory()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	v := fe.TranslateMemorySize(0)
	require.True(t, v.Valid())
	require.Contains(t, builder.Format(), "Ushr")
}

func TestFuncEnv_TranslateMemoryGrow_InvalidatesDynamicCache(t *testing.T) {
	m := newTestModule()
	m.MemorySection = []wasm.MemoryType{{Min: 1, MaxValid: false}} // no declared max -> dynamic style
	fe, _ := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	d := fe.MakeHeap(0)
	require.Equal(t, heapStyleDynamic, d.Style)
	before := d.BaseGV

	delta := fe.constI64(1)
	fe.TranslateMemoryGrow(0, delta)
	require.NotEqual(t, before, d.BaseGV, "growth must reload the cached base")
}

func TestFuncEnv_EffectiveAddress_ElidesCheckUnderGuard(t *testing.T) {
	m := moduleWithOneStaticMemory()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	d := fe.MakeHeap(0)
	idx := fe.constI64(0)
	fe.EffectiveAddress(d, idx, 0, 8)
	require.NotContains(t, builder.Format(), "ExitIfTrue", "an 8-byte access within the guard region needs no explicit bounds check")
}

func TestFuncEnv_EffectiveAddress_ChecksWhenNotStatic(t *testing.T) {
	m := newTestModule()
	m.MemorySection = []wasm.MemoryType{{Min: 1, MaxValid: false}}
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	d := fe.MakeHeap(0)
	idx := fe.constI64(0)
	fe.EffectiveAddress(d, idx, 0, 8)
	require.Contains(t, builder.Format(), "ExitIfTrue")
}

func TestFuncEnv_WidenTo64(t *testing.T) {
	m := newTestModule()
	fe, _ := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	v32 := fe.ssaBuilder.AllocateInstruction()
	v32.AsIconst32(5)
	fe.ssaBuilder.InsertInstruction(v32)

	widened := fe.widenTo64(v32.Return(), true)
	require.NotEqual(t, v32.Return(), widened)

	passthrough := fe.widenTo64(v32.Return(), false)
	require.Equal(t, v32.Return(), passthrough)
}

