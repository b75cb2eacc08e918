package frontend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazevofx/wazevo/internal/wasm"
)

func TestFuncEnv_VMCtx_PanicsBeforeBeforeFunction(t *testing.T) {
	m := newTestModule()
	fe, _ := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	require.Panics(t, func() { fe.VMCtx() })
}

func TestFuncEnv_VMCtx_StableAcrossCalls(t *testing.T) {
	m := newTestModule()
	fe, _ := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	v1 := fe.VMCtx()
	v2 := fe.VMCtx()
	require.Equal(t, v1, v2)
}

func TestFuncEnv_IsWasmParameter(t *testing.T) {
	m := newTestModule()
	fe, _ := newTestFuncEnv(m, defaultTunables())
	require.False(t, fe.IsWasmParameter(0), "index 0 is callee_vmctx")
	require.False(t, fe.IsWasmParameter(1), "index 1 is caller_vmctx")
	require.True(t, fe.IsWasmParameter(2))
}

func TestFuncEnv_Init_ResetsPerFunctionState(t *testing.T) {
	m := moduleWithOneStaticMemory()
	fe, _ := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.MakeHeap(0)
	require.NotEmpty(t, fe.heaps)

	fe.Init(0, simpleFuncType(), nil)
	require.Empty(t, fe.heaps, "Init must discard cached per-function heap descriptors")
	require.Equal(t, int64(0), fe.fuelAccum)
}

func TestSignatureForWasmFunctionType_PrependsVmctxPair(t *testing.T) {
	typ := simpleFuncType()
	sig := SignatureForWasmFunctionType(typ)
	require.Len(t, sig.Params, len(typ.Params)+2)
	require.Len(t, sig.Results, len(typ.Results))
}

func TestWasmTypeToSSAType_ReferenceTypesArePointerWidth(t *testing.T) {
	require.Equal(t, WasmTypeToSSAType(wasm.ValueTypeFuncref), WasmTypeToSSAType(wasm.ValueTypeExternref))
}
