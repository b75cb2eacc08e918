package ssa

// AsReturnCall initializes this instruction as a tail call instruction with OpcodeReturnCall.
// Unlike AsCall, the calling function's frame is discarded before control transfers to `ref`,
// so `ref` must return a signature compatible with the caller's own signature as observed by
// its own caller (the vmctx-threading convention makes this a same-ABI requirement, not merely
// same-results).
func (i *Instruction) AsReturnCall(ref FuncRef, sig *Signature, args []Value) *Instruction {
	i.opcode = OpcodeReturnCall
	i.u1 = uint64(ref)
	i.vs = args
	i.u2 = uint64(sig.ID)
	sig.used = true
	return i
}

// ReturnCallData returns the call data for this instruction necessary for backends.
func (i *Instruction) ReturnCallData() (ref FuncRef, sigID SignatureID, args []Value) {
	if i.opcode != OpcodeReturnCall {
		panic("BUG: ReturnCallData only available for OpcodeReturnCall")
	}
	return FuncRef(i.u1), SignatureID(i.u2), i.vs
}

// AsReturnCallIndirect initializes this instruction as a tail call instruction with
// OpcodeReturnCallIndirect.
func (i *Instruction) AsReturnCallIndirect(funcPtr Value, sig *Signature, args []Value) *Instruction {
	i.opcode = OpcodeReturnCallIndirect
	i.vs = args
	i.v = funcPtr
	i.u1 = uint64(sig.ID)
	sig.used = true
	return i
}

// ReturnCallIndirectData returns the call-indirect data for this instruction necessary for backends.
func (i *Instruction) ReturnCallIndirectData() (funcPtr Value, sigID SignatureID, args []Value) {
	if i.opcode != OpcodeReturnCallIndirect {
		panic("BUG: ReturnCallIndirectData only available for OpcodeReturnCallIndirect")
	}
	return i.v, SignatureID(i.u1), i.vs
}

// IsReturnCall reports whether this instruction is one of the tail-call opcodes, which, like
// OpcodeReturn, terminates the block without falling through to any successor.
func (i *Instruction) IsReturnCall() bool {
	return i.opcode == OpcodeReturnCall || i.opcode == OpcodeReturnCallIndirect
}
