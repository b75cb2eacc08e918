package ssa

// AtomicRmwOp identifies the operation performed by an OpcodeAtomicRmw instruction.
type AtomicRmwOp byte

const (
	// AtomicRmwAdd computes `*p = *p + x` and returns the previous value at `*p`.
	AtomicRmwAdd AtomicRmwOp = iota
	// AtomicRmwSub computes `*p = *p - x` and returns the previous value at `*p`.
	AtomicRmwSub
	// AtomicRmwAnd computes `*p = *p & x` and returns the previous value at `*p`.
	AtomicRmwAnd
	// AtomicRmwOr computes `*p = *p | x` and returns the previous value at `*p`.
	AtomicRmwOr
	// AtomicRmwXor computes `*p = *p ^ x` and returns the previous value at `*p`.
	AtomicRmwXor
	// AtomicRmwXchg stores `x` at `*p` and returns the previous value at `*p`.
	AtomicRmwXchg
)

// String implements fmt.Stringer.
func (op AtomicRmwOp) String() string {
	switch op {
	case AtomicRmwAdd:
		return "add"
	case AtomicRmwSub:
		return "sub"
	case AtomicRmwAnd:
		return "and"
	case AtomicRmwOr:
		return "or"
	case AtomicRmwXor:
		return "xor"
	case AtomicRmwXchg:
		return "xchg"
	default:
		panic("BUG")
	}
}

// AsAtomicRmw initializes this instruction as an atomic read-modify-write with OpcodeAtomicRmw.
// `size` is the width in bytes of the memory access (1, 2, 4 or 8); the result and `x` must
// be of the type whose Size() matches it (narrower RMWs are followed by the caller with an
// explicit extend/reduce as needed, exactly as with AsExtLoad).
func (i *Instruction) AsAtomicRmw(op AtomicRmwOp, addr, x Value, size uint64) *Instruction {
	i.opcode = OpcodeAtomicRmw
	i.u1 = uint64(op)
	i.u2 = size
	i.v = addr
	i.v2 = x
	i.typ = x.Type()
	return i
}

// AtomicRmwData returns the operands of an OpcodeAtomicRmw instruction.
func (i *Instruction) AtomicRmwData() (op AtomicRmwOp, addr, x Value, size uint64) {
	return AtomicRmwOp(i.u1), i.v, i.v2, i.u2
}

// AsAtomicCas initializes this instruction as an atomic compare-and-swap with OpcodeAtomicCas.
// Semantics: `old := *addr; if old == exp { *addr = repl }; return old`.
func (i *Instruction) AsAtomicCas(addr, exp, repl Value, size uint64) *Instruction {
	i.opcode = OpcodeAtomicCas
	i.u2 = size
	i.v = addr
	i.v2 = exp
	i.v3 = repl
	i.typ = exp.Type()
	return i
}

// AtomicCasData returns the operands of an OpcodeAtomicCas instruction.
func (i *Instruction) AtomicCasData() (addr, exp, repl Value, size uint64) {
	return i.v, i.v2, i.v3, i.u2
}

// AsAtomicLoad initializes this instruction as a sequentially-consistent atomic load
// with OpcodeAtomicLoad. Used where generated code observes state mutated by another
// thread, e.g. the `current_length` field of a shared memory.
func (i *Instruction) AsAtomicLoad(addr Value, offset uint32, size uint64, typ Type) *Instruction {
	i.opcode = OpcodeAtomicLoad
	i.u1 = uint64(offset)
	i.u2 = size
	i.v = addr
	i.typ = typ
	return i
}

// AtomicLoadData returns the operands of an OpcodeAtomicLoad instruction.
func (i *Instruction) AtomicLoadData() (addr Value, offset uint32, size uint64) {
	return i.v, uint32(i.u1), i.u2
}

// AsAtomicStore initializes this instruction as a sequentially-consistent atomic store
// with OpcodeAtomicStore.
func (i *Instruction) AsAtomicStore(addr Value, offset uint32, v Value, size uint64) *Instruction {
	i.opcode = OpcodeAtomicStore
	i.u1 = uint64(offset)
	i.u2 = size
	i.v = addr
	i.v2 = v
	return i
}

// AtomicStoreData returns the operands of an OpcodeAtomicStore instruction.
func (i *Instruction) AtomicStoreData() (addr Value, offset uint32, v Value, size uint64) {
	return i.v, uint32(i.u1), i.v2, i.u2
}

// AsFence initializes this instruction as a full memory fence with OpcodeFence.
func (i *Instruction) AsFence() *Instruction {
	i.opcode = OpcodeFence
	return i
}
