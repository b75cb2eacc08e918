package frontend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazevofx/wazevo/internal/wasm"
)

func moduleWithOneFuncrefTable() *wasm.Module {
	m := newTestModule()
	m.TableSection = []wasm.TableType{{ElemType: wasm.ValueTypeFuncref, Min: 4, Max: 4, MaxValid: true}}
	return m
}

func moduleWithOneExternrefTable() *wasm.Module {
	m := newTestModule()
	m.TableSection = []wasm.TableType{{ElemType: wasm.ValueTypeExternref, Min: 4, Max: 4, MaxValid: true}}
	return m
}

func TestFuncEnv_MakeTable_Memoizes(t *testing.T) {
	m := moduleWithOneFuncrefTable()
	fe, _ := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	d := fe.MakeTable(0)
	require.Equal(t, wasm.ValueTypeFuncref, d.ElemType)
	d2 := fe.MakeTable(0)
	require.Same(t, d, d2)
}

func TestFuncEnv_TranslateTableGet_FuncrefResolvesLazyInit(t *testing.T) {
	m := moduleWithOneFuncrefTable()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	idx := fe.constI64(0)
	v := fe.TranslateTableGet(0, idx)
	require.True(t, v.Valid())
	out := builder.Format()
	require.Contains(t, out, "Band", "lazy-init tag check masks the low bit")
	require.Contains(t, out, "Brnz")
}

func TestFuncEnv_TranslateTableGet_ExternrefRunsReadBarrier(t *testing.T) {
	m := moduleWithOneExternrefTable()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	idx := fe.constI64(0)
	v := fe.TranslateTableGet(0, idx)
	require.True(t, v.Valid())
	out := builder.Format()
	require.NotContains(t, out, "Band", "externref slots are plain pointers, no tag bit")
	require.Contains(t, out, "AtomicRmw", "the fast path bumps the refcount in place")
	require.Contains(t, out, "Call", "the full-region path falls back to the activations-table insert builtin")
}

func TestFuncEnv_TranslateTableSet_ExternrefRunsWriteBarrier(t *testing.T) {
	m := moduleWithOneExternrefTable()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	idx := fe.constI64(0)
	val := fe.constI64(0x1000)
	fe.TranslateTableSet(0, idx, val)
	out := builder.Format()
	require.Contains(t, out, "AtomicRmw", "both incref and decref run through the atomic RMW")
}

func TestFuncEnv_TranslateTableSet_FuncrefNoWriteBarrier(t *testing.T) {
	m := moduleWithOneFuncrefTable()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	idx := fe.constI64(0)
	val := fe.constI64(0x1000)
	fe.TranslateTableSet(0, idx, val)
	require.NotContains(t, builder.Format(), "AtomicRmw")
}

func TestFuncEnv_TranslateTableSize(t *testing.T) {
	m := moduleWithOneFuncrefTable()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	v := fe.TranslateTableSize(0)
	require.True(t, v.Valid())
	require.Contains(t, builder.Format(), "Ireduce")
}

func TestFuncEnv_TranslateTableGrow_InvalidatesCache(t *testing.T) {
	m := moduleWithOneFuncrefTable()
	fe, _ := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	fe.MakeTable(0)
	_, cached := fe.tables[0]
	require.True(t, cached)

	delta := fe.constI64(1)
	initVal := fe.constI64(0)
	fe.TranslateTableGrow(0, delta, initVal)
	_, stillCached := fe.tables[0]
	require.False(t, stillCached, "growth must evict the cached base/length")
}

func TestFuncEnv_TranslateTableFillCopyInitElemDrop(t *testing.T) {
	m := moduleWithOneFuncrefTable()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	dst, val, n := fe.constI64(0), fe.constI64(0), fe.constI64(1)
	fe.TranslateTableFill(0, dst, val, n)
	fe.TranslateTableCopy(0, 0, dst, dst, n)
	fe.TranslateTableInit(0, 0, dst, dst, n)
	fe.TranslateElemDrop(0)
	require.Contains(t, builder.Format(), "Call", "bulk-table ops all route through builtin calls")
}

func TestFuncEnv_TranslateRefFuncIsAlreadyResolved(t *testing.T) {
	m := newTestModule()
	fe, _ := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	v := fe.TranslateRefFunc(0)
	require.True(t, v.Valid())
}

func TestFuncEnv_TranslateRefNullAndIsNull(t *testing.T) {
	m := newTestModule()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	n := fe.TranslateRefNull()
	isNull := fe.TranslateRefIsNull(n)
	require.True(t, isNull.Valid())
	require.Contains(t, builder.Format(), "Icmp")
}

func TestFuncEnv_ExternrefIncDecRefEmitsBothHalves(t *testing.T) {
	m := newTestModule()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	v := fe.constI64(0x2000)
	fe.externrefIncRef(v)
	fe.externrefDecRefAndMaybeDrop(v)
	out := builder.Format()
	require.Contains(t, out, "AtomicRmw")
	require.Contains(t, out, "Call", "decref-to-zero path calls the drop builtin")
}
