package frontend

import (
	"github.com/wazevofx/wazevo/internal/ssa"
	"github.com/wazevofx/wazevo/internal/wasm"
)

// OtherOperatorTranslator lowers the plain arithmetic/comparison/conversion/reference-test
// opcodes the driver groups under OpOther, whose number and per-opcode stack shape is too
// open-ended for a flat Operator struct to dispatch on generically. A full decoder wires one
// in that understands its own opcode space; FuncEnv itself never needs to.
type OtherOperatorTranslator func(fe *FuncEnv, op wasm.Operator)

// LowerToSSA drives this FuncEnv through one complete function body, presented as a flat
// operator list by an external decoder/validator. It plays the role the teacher's own
// Compiler.LowerToSSA plays against a real bytecode decoder; here the decoder contract is
// reduced to "give me validated Operators in program order" so the whole package can be
// exercised without implementing binary parsing, which is out of scope.
//
// Init must already have been called for fnIndex/typ/localTypes.
func (fe *FuncEnv) LowerToSSA(ops []wasm.Operator, other OtherOperatorTranslator) {
	fe.BeforeFunction()
	fe.BeginBody()

	for _, op := range ops {
		reachable := !fe.state.unreachable
		fe.BeforeOperator(op.Kind, reachable)
		fe.dispatch(op, other)
		fe.AfterOperator(op.Kind)
	}

	fe.AfterFunction()
}

// dispatch translates a single decoded operator.
func (fe *FuncEnv) dispatch(op wasm.Operator, other OtherOperatorTranslator) {
	switch op.Kind {
	case wasm.OpBlock:
		fe.TranslateBlock(op.Block)
	case wasm.OpLoop:
		fe.TranslateLoop(op.Block)
	case wasm.OpIf:
		fe.TranslateIf(op.Block)
	case wasm.OpElse:
		fe.TranslateElse()
	case wasm.OpEnd:
		fe.TranslateEnd()
	case wasm.OpBr:
		fe.TranslateBr(uint32(op.Index))
	case wasm.OpBrIf:
		fe.TranslateBrIf(uint32(op.Index))
	case wasm.OpBrTable:
		index := fe.state.pop()
		fe.TranslateBrTable(op.BrTable.Targets, op.BrTable.Default, index)
	case wasm.OpReturn:
		fe.TranslateReturn()
	case wasm.OpUnreachable:
		fe.TranslateUnreachable()
	case wasm.OpNop:
		// No IR effect.

	case wasm.OpDrop:
		fe.TranslateDrop()
	case wasm.OpSelect:
		fe.TranslateSelect()
	case wasm.OpLocalGet:
		fe.TranslateLocalGet(op.Index)
	case wasm.OpLocalSet:
		fe.TranslateLocalSet(op.Index)
	case wasm.OpLocalTee:
		fe.TranslateLocalTee(op.Index)
	case wasm.OpGlobalGet:
		fe.state.push(fe.TranslateGlobalGet(op.Index))
	case wasm.OpGlobalSet:
		fe.TranslateGlobalSet(op.Index, fe.state.pop())

	case wasm.OpCall:
		argc := len(fe.module.FunctionSignature(op.Index).Params)
		fe.pushAll(fe.TranslateCall(op.Index, fe.popArgs(argc)))
	case wasm.OpCallIndirect:
		argc := len(fe.module.TypeSection[op.Index2].Params)
		index := fe.state.pop()
		fe.pushAll(fe.TranslateCallIndirect(op.Index, op.Index2, index, fe.popArgs(argc)))
	case wasm.OpReturnCall:
		argc := len(fe.module.FunctionSignature(op.Index).Params)
		fe.TranslateReturnCall(op.Index, fe.popArgs(argc))
	case wasm.OpReturnCallIndirect:
		argc := len(fe.module.TypeSection[op.Index2].Params)
		index := fe.state.pop()
		fe.TranslateReturnCallIndirect(op.Index, op.Index2, index, fe.popArgs(argc))
	case wasm.OpCallRef:
		argc := len(fe.module.TypeSection[op.Index2].Params)
		ref := fe.state.pop()
		fe.pushAll(fe.TranslateCallRef(op.Index2, ref, fe.popArgs(argc)))
	case wasm.OpReturnCallRef:
		argc := len(fe.module.TypeSection[op.Index2].Params)
		ref := fe.state.pop()
		fe.TranslateReturnCallRef(op.Index2, ref, fe.popArgs(argc))

	case wasm.OpMemorySize:
		fe.state.push(fe.TranslateMemorySize(op.MemArg.MemoryIndex))
	case wasm.OpMemoryGrow:
		fe.state.push(fe.TranslateMemoryGrow(op.MemArg.MemoryIndex, fe.state.pop()))
	case wasm.OpMemoryCopy:
		n, src, dst := fe.state.pop(), fe.state.pop(), fe.state.pop()
		fe.TranslateMemoryCopy(op.Index2, op.Index, dst, src, n)
	case wasm.OpMemoryFill:
		n, val, dst := fe.state.pop(), fe.state.pop(), fe.state.pop()
		fe.TranslateMemoryFill(op.Index, dst, val, n)
	case wasm.OpMemoryInit:
		n, src, dst := fe.state.pop(), fe.state.pop(), fe.state.pop()
		fe.TranslateMemoryInit(op.MemArg.MemoryIndex, op.Index, dst, src, n)
	case wasm.OpDataDrop:
		fe.TranslateDataDrop(op.Index)
	case wasm.OpAtomicWait32, wasm.OpAtomicWait64:
		timeout, expected, addr := fe.state.pop(), fe.state.pop(), fe.state.pop()
		fe.state.push(fe.TranslateAtomicWait(op.MemArg.MemoryIndex, op.Kind == wasm.OpAtomicWait64, addr, expected, timeout))
	case wasm.OpAtomicNotify:
		count, addr := fe.state.pop(), fe.state.pop()
		fe.state.push(fe.TranslateAtomicNotify(op.MemArg.MemoryIndex, addr, count))
	case wasm.OpAtomicFence:
		// A standalone fence carries no addr/value operands and has no effect on the operand
		// stack; it lowers to a single Fence instruction.
		fence := fe.ssaBuilder.AllocateInstruction()
		fence.AsFence()
		fe.ssaBuilder.InsertInstruction(fence)

	case wasm.OpTableGet:
		fe.state.push(fe.TranslateTableGet(op.Index, fe.state.pop()))
	case wasm.OpTableSet:
		v, idx := fe.state.pop(), fe.state.pop()
		fe.TranslateTableSet(op.Index, idx, v)
	case wasm.OpTableSize:
		fe.state.push(fe.TranslateTableSize(op.Index))
	case wasm.OpTableGrow:
		delta, initVal := fe.state.pop(), fe.state.pop()
		fe.state.push(fe.TranslateTableGrow(op.Index, delta, initVal))
	case wasm.OpTableFill:
		n, val, dst := fe.state.pop(), fe.state.pop(), fe.state.pop()
		fe.TranslateTableFill(op.Index, dst, val, n)
	case wasm.OpTableCopy:
		n, src, dst := fe.state.pop(), fe.state.pop(), fe.state.pop()
		fe.TranslateTableCopy(op.Index2, op.Index, dst, src, n)
	case wasm.OpTableInit:
		n, src, dst := fe.state.pop(), fe.state.pop(), fe.state.pop()
		fe.TranslateTableInit(op.Index2, op.Index, dst, src, n)
	case wasm.OpElemDrop:
		fe.TranslateElemDrop(op.Index)

	case wasm.OpRefFunc:
		fe.state.push(fe.TranslateRefFunc(op.Index))
	case wasm.OpRefNull:
		fe.state.push(fe.TranslateRefNull())
	case wasm.OpRefIsNull:
		fe.state.push(fe.TranslateRefIsNull(fe.state.pop()))

	case wasm.OpOther:
		if other != nil {
			other(fe, op)
		}
	default:
		panic("BUG: undispatched OperatorKind")
	}
}

// popArgs pops n values off the operand stack into original (bottom-to-top) call-argument
// order.
func (fe *FuncEnv) popArgs(n int) []ssa.Value {
	args := make([]ssa.Value, n)
	fe.state.nPopInto(n, args)
	return args
}

func (fe *FuncEnv) pushAll(vs []ssa.Value) {
	for _, v := range vs {
		fe.state.push(v)
	}
}
