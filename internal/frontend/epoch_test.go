package frontend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFuncEnv_BeforeFunction_EmitsEpochEntryCheck(t *testing.T) {
	m := newTestModule()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	out := builder.Format()
	require.Contains(t, out, "AtomicLoad", "epoch counter is read with an atomic load")
	require.Contains(t, out, "new_epoch")
}

func TestFuncEnv_BeforeFunction_EpochDisabledEmitsNoCheck(t *testing.T) {
	m := newTestModule()
	fe, builder := newTestFuncEnv(m, Tunables{FuelEnabled: false, EpochEnabled: false, PCCEnabled: false})
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()
	require.NotContains(t, builder.Format(), "new_epoch")
}

func TestFuncEnv_EpochCheckAtLoopHeader_RefreshesCachedDeadline(t *testing.T) {
	m := newTestModule()
	fe, builder := newTestFuncEnv(m, defaultTunables())
	fe.Init(0, simpleFuncType(), nil)
	fe.BeforeFunction()

	countBefore := countOccurrences(builder.Format(), "AtomicLoad")
	fe.EpochCheckAtLoopHeader()
	countAfter := countOccurrences(builder.Format(), "AtomicLoad")
	require.Equal(t, countBefore+1, countAfter, "each loop header re-runs the epoch check")
}

func countOccurrences(s, substr string) int {
	n := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			n++
		}
	}
	return n
}
