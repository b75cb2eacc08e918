package frontend

import (
	"github.com/wazevofx/wazevo/internal/ssa"
	"github.com/wazevofx/wazevo/internal/wasm"
	"github.com/wazevofx/wazevo/internal/wazevoapi"
)

// fixedLayout is the test LayoutOracle: a single ModuleContextOffsetData computed once for
// the whole test module, exactly like an embedder would compute one per compiled module.
type fixedLayout struct {
	data wazevoapi.ModuleContextOffsetData
}

func (f *fixedLayout) Offsets() *wazevoapi.ModuleContextOffsetData { return &f.data }

// newTestModule builds a minimal *wasm.Module with two types, ()->() and (i32,i32)->i32, no
// imports, and whatever memories/tables/globals a test needs layered on top by the caller.
func newTestModule() *wasm.Module {
	return &wasm.Module{
		TypeSection: []wasm.FunctionType{
			{}, // type 0: () -> ()
			{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}},
		},
		TypeIDs: []wasm.TypeID{0, 1},
	}
}

// newTestFuncEnv wires a fresh FuncEnv against m with the given tunables. defaultTunables
// enables fuel/epoch/PCC so every flush-point path in the translation core is exercised.
func newTestFuncEnv(m *wasm.Module, tunables Tunables) (*FuncEnv, ssa.Builder) {
	builder := ssa.NewBuilder()
	layout := &fixedLayout{data: wazevoapi.NewModuleContextOffsetData(m)}
	return NewFuncEnv(m, layout, builder, tunables), builder
}

func defaultTunables() Tunables {
	return Tunables{FuelEnabled: true, EpochEnabled: true, PCCEnabled: true}
}
