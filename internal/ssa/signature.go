package ssa

import "fmt"

// SignatureID is an identifier for a Signature, unique within a compiled function.
type SignatureID uint32

// Signature is a function signature to be used for a `call`, `call_indirect` or reference-typed
// entity used during translation. Signature(s) are collected as part of a function's compilation
// and must be declared via Builder.DeclareSignature before use in an instruction.
type Signature struct {
	// ID is the unique identifier of this Signature used to lookup this Signature via
	// Builder.ResolveSignature.
	ID SignatureID

	// Name is an optional human-readable name used for debugging.
	Name string

	// Params is the list of parameter types, in order. By convention the translation-core
	// consumers of this package always arrange the ABI so that any runtime-context pointers
	// (e.g. vmctx) occupy the lowest-indexed parameters.
	Params []Type

	// Results is the list of result types, in order.
	Results []Type

	// used is flipped to true when a Call/CallIndirect instruction references this Signature.
	// Builder.UsedSignatures only returns Signature(s) with used == true, so that the backend
	// doesn't need to emit relocations for signatures that turned out to be dead after optimization.
	used bool
}

// String implements fmt.Stringer.
func (s *Signature) String() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("sig%d", s.ID)
}

// FuncRef is a unique identifier for a function that can be the target of a direct `call`
// instruction. For Wasm, this is the Wasm-level function index re-purposed as an SSA-level
// reference so that the backend can resolve it to a relocation against the function's
// eventually-assigned address.
type FuncRef uint32

// String implements fmt.Stringer.
func (r FuncRef) String() string {
	return fmt.Sprintf("f%d", uint32(r))
}
