package frontend

// pccMemType is the proof-carrying-code fact attached to pointer-producing IR values derived
// from a heap descriptor's base: "this value points into a region of at least the given size,
// rooted at this heap". Downstream passes that trust PCC facts may use this to elide a bounds
// check an earlier pass already proved safe; this package only ever produces facts, it never
// consumes them.
type pccMemType struct {
	// minSize is the statically-known minimum byte size of the region the fact's base value
	// points into.
	minSize uint64
	// heapID distinguishes facts derived from different heaps so two memories' facts are never
	// confused with one another.
	heapID int
}

// pccState is the per-function side table of facts this package has attached so far, kept
// only when tunables.PCCEnabled is set (spec §9's PCC supplement is opt-in: a module built
// without a fact-consuming backend has no use for the bookkeeping).
type pccState struct {
	nextHeapID int
}

// newPCCState constructs an empty per-module PCC side table.
func newPCCState() *pccState {
	return &pccState{}
}

// newMemoryFact records a new fact for a heap descriptor's base pointer, per spec §9's PCC
// supplement: "a memory-type fact may be optionally attached to pointer-producing IR nodes".
func (s *pccState) newMemoryFact(d *HeapDescriptor) *pccMemType {
	id := s.nextHeapID
	s.nextHeapID++
	return &pccMemType{minSize: d.MinSize, heapID: id}
}
