package frontend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazevofx/wazevo/internal/ssa"
	"github.com/wazevofx/wazevo/internal/wasm"
)

func TestFuncEnv_BeforeFunction_EmitsFuelEntryCheck(t *testing.T) {
	m := newTestModule()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	require.Contains(t, builder.Format(), "out_of_gas")
}

func TestFuncEnv_BeforeFunction_FuelDisabledEmitsNoCheck(t *testing.T) {
	m := newTestModule()
	fe, builder := newTestFuncEnv(m, Tunables{FuelEnabled: false, EpochEnabled: false, PCCEnabled: false})
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	require.NotContains(t, builder.Format(), "out_of_gas")
}

func TestFuncEnv_BeforeOperator_AccumulatesFuelForChargedOps(t *testing.T) {
	m := newTestModule()
	fe, _ := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	before := fe.fuelAccum
	fe.BeforeOperator(wasm.OpLocalGet, true)
	require.Equal(t, before+1, fe.fuelAccum)
}

func TestFuncEnv_BeforeOperator_FreeOpsDontAccumulate(t *testing.T) {
	m := newTestModule()
	fe, _ := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	before := fe.fuelAccum
	fe.BeforeOperator(wasm.OpNop, true)
	fe.BeforeOperator(wasm.OpBlock, true)
	require.Equal(t, before, fe.fuelAccum)
}

func TestFuncEnv_BeforeOperator_UnreachableDoesNotAccumulate(t *testing.T) {
	m := newTestModule()
	fe, _ := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	before := fe.fuelAccum
	fe.BeforeOperator(wasm.OpLocalGet, false)
	require.Equal(t, before, fe.fuelAccum)
}

func TestFuncEnv_FlushFuelAtBlockBoundary_FoldsAccumIntoVariable(t *testing.T) {
	m := newTestModule()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	fe.fuelAccum = 3
	fe.FlushFuelAtBlockBoundary()
	require.Equal(t, int64(0), fe.fuelAccum)
	require.Contains(t, builder.Format(), "Iadd")
}

func TestFuncEnv_FlushFuelOnReturn_SpillsToMemory(t *testing.T) {
	m := newTestModule()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	fe.fuelAccum = 2
	fe.FlushFuelOnReturn()
	require.Equal(t, int64(0), fe.fuelAccum)
	require.Contains(t, builder.Format(), "Store")
}

func TestFuncEnv_TranslateCall_FlushesFuelOnCall(t *testing.T) {
	m := moduleWithLocalAndImportedFunc()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(1, simpleFuncType(), nil)
	fe.BeforeFunction()
	fe.BeginBody()

	fe.fuelAccum = 5
	a, b := fe.constI64(1), fe.constI64(2)
	fe.TranslateCall(1, []ssa.Value{a, b})
	require.Equal(t, int64(0), fe.fuelAccum, "a call boundary must fold-and-spill pending fuel")
	require.Contains(t, builder.Format(), "Store")
}
