package frontend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazevofx/wazevo/internal/ssa"
	"github.com/wazevofx/wazevo/internal/wasm"
)

// moduleWithLocalAndImportedFunc declares type 1 ((i32,i32)->i32) for both an imported
// function (index 0) and a locally-defined one (index 1).
func moduleWithLocalAndImportedFunc() *wasm.Module {
	m := newTestModule()
	m.ImportFunctionTypes = []wasm.Index{1}
	m.FunctionSection = []wasm.Index{1}
	return m
}

func TestFuncEnv_TranslateCall_Local(t *testing.T) {
	m := moduleWithLocalAndImportedFunc()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(1, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	a, b := fe.constI64(1), fe.constI64(2)
	res := fe.TranslateCall(1, []ssa.Value{a, b})
	require.Len(t, res, 1)
	require.Contains(t, builder.Format(), "Call")
}

func TestFuncEnv_TranslateCall_Imported(t *testing.T) {
	m := moduleWithLocalAndImportedFunc()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(1, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	a, b := fe.constI64(1), fe.constI64(2)
	res := fe.TranslateCall(0, []ssa.Value{a, b})
	require.Len(t, res, 1)
	require.Contains(t, builder.Format(), "CallIndirect", "an import is always called through its loaded function pointer")
}

func TestFuncEnv_TranslateCallIndirect_TrapsOnNullAndMismatch(t *testing.T) {
	m := moduleWithLocalAndImportedFunc()
	m.TableSection = []wasm.TableType{{ElemType: wasm.ValueTypeFuncref, Min: 4, Max: 4, MaxValid: true}}
	m.TypeIDs = []wasm.TypeID{0, 1}
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(1, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	idx := fe.constI64(0)
	a, b := fe.constI64(1), fe.constI64(2)
	res := fe.TranslateCallIndirect(0, 1, idx, []ssa.Value{a, b})
	require.Len(t, res, 1)
	out := builder.Format()
	require.Contains(t, out, "IndirectCallToNull")
	require.Contains(t, out, "IndirectCallTypeMismatch")
}

func TestFuncEnv_TranslateCallRef_TrapsNullReferenceNotIndirectToNull(t *testing.T) {
	m := moduleWithLocalAndImportedFunc()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(1, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	ref := fe.constI64(0x4000)
	a, b := fe.constI64(1), fe.constI64(2)
	res := fe.TranslateCallRef(1, ref, []ssa.Value{a, b})
	require.Len(t, res, 1)
	out := builder.Format()
	require.Contains(t, out, "NullReference")
	require.NotContains(t, out, "IndirectCallToNull")
}

func TestFuncEnv_TranslateReturnCall_NoResultsPushedIsTailCall(t *testing.T) {
	m := moduleWithLocalAndImportedFunc()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(1, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	a, b := fe.constI64(1), fe.constI64(2)
	fe.TranslateReturnCall(1, []ssa.Value{a, b})
	require.Contains(t, builder.Format(), "ReturnCall")
}

func TestFuncEnv_TranslateReturnCallIndirect(t *testing.T) {
	m := moduleWithLocalAndImportedFunc()
	m.TableSection = []wasm.TableType{{ElemType: wasm.ValueTypeFuncref, Min: 4, Max: 4, MaxValid: true}}
	m.TypeIDs = []wasm.TypeID{0, 1}
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(1, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	idx := fe.constI64(0)
	a, b := fe.constI64(1), fe.constI64(2)
	fe.TranslateReturnCallIndirect(0, 1, idx, []ssa.Value{a, b})
	require.Contains(t, builder.Format(), "ReturnCallIndirect")
}

func TestFuncEnv_TranslateReturnCallRef(t *testing.T) {
	m := moduleWithLocalAndImportedFunc()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(1, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	ref := fe.constI64(0x4000)
	a, b := fe.constI64(1), fe.constI64(2)
	fe.TranslateReturnCallRef(1, ref, []ssa.Value{a, b})
	out := builder.Format()
	require.Contains(t, out, "NullReference")
	require.Contains(t, out, "ReturnCallIndirect")
}
