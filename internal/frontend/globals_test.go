package frontend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazevofx/wazevo/internal/wasm"
)

func moduleWithGlobals() *wasm.Module {
	m := newTestModule()
	m.GlobalSection = []wasm.GlobalType{
		{ValType: wasm.ValueTypeI32, Mutable: true},
		{ValType: wasm.ValueTypeExternref, Mutable: true},
	}
	return m
}

func TestFuncEnv_TranslateGlobalGet_CachesMemoryResidentGlobal(t *testing.T) {
	m := moduleWithGlobals()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	fe.TranslateGlobalGet(0)
	_, cached := fe.globalVars[0]
	require.True(t, cached)

	before := builder.Format()
	fe.TranslateGlobalGet(0)
	after := builder.Format()
	require.Equal(t, before, after, "a second get with no intervening call must not re-load")
}

func TestFuncEnv_TranslateGlobalSet_UpdatesCacheAndStores(t *testing.T) {
	m := moduleWithGlobals()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	v := fe.constI64(42)
	fe.TranslateGlobalSet(0, v)
	require.Contains(t, builder.Format(), "Store")
	_, cached := fe.globalVars[0]
	require.True(t, cached)
}

func TestFuncEnv_ExternrefGlobal_RoutesThroughBuiltins(t *testing.T) {
	m := moduleWithGlobals()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	fe.TranslateGlobalGet(1)
	v := fe.constI64(0)
	fe.TranslateGlobalSet(1, v)

	_, cached := fe.globalVars[1]
	require.False(t, cached, "externref globals are never memory-cached")
	require.Contains(t, builder.Format(), "Call")
}

func TestFuncEnv_ReloadAfterCall_ForcesReloadOfCachedGlobals(t *testing.T) {
	m := moduleWithGlobals()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	fe.TranslateGlobalGet(0) // establish the cache entry
	before := builder.Format()
	fe.reloadAfterCall()
	after := builder.Format()
	require.NotEqual(t, before, after, "reloadAfterCall must re-emit a load for every cached global")
}
