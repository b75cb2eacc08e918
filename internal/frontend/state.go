package frontend

import (
	"fmt"
	"strings"

	"github.com/wazevofx/wazevo/internal/ssa"
	"github.com/wazevofx/wazevo/internal/wasm"
)

// loweringState tracks the Wasm operand stack and the nested control-flow frames of the
// function currently being translated. It is reset (not reallocated) between functions so
// that a FuncEnv can be reused across an entire module's compilation without per-function
// garbage.
type loweringState struct {
	values           []ssa.Value
	controlFrames    []controlFrame
	unreachable      bool
	unreachableDepth int
}

// controlFrame is one entry of the control-flow frame stack: one per enclosing
// block/loop/if/function.
type controlFrame struct {
	kind controlFrameKind
	// originalStackLenWithoutParam is the operand-stack depth when this frame was entered,
	// excluding the frame's own block parameters.
	originalStackLenWithoutParam int
	// blk is the loop header block for a loop frame, or the else-block for an if frame.
	blk ssa.BasicBlock
	// followingBlock is the block control resumes in once this frame's `end` is reached.
	followingBlock ssa.BasicBlock
	// params and results are this frame's block-type shape: for controlFrameKindFunction
	// these are the function signature's params/results; for block/loop/if frames they come
	// from the operator's BlockType.
	params, results []wasm.ValueType
	// clonedArgs holds the block-entry argument values re-supplied to the else branch of an
	// if-with-else frame, since the if and else branches share the same block parameters.
	clonedArgs []ssa.Value
}

type controlFrameKind byte

const (
	controlFrameKindFunction controlFrameKind = iota + 1
	controlFrameKindLoop
	controlFrameKindIfWithElse
	controlFrameKindIfWithoutElse
	controlFrameKindBlock
)

func (k controlFrameKind) String() string {
	switch k {
	case controlFrameKindFunction:
		return "function"
	case controlFrameKindLoop:
		return "loop"
	case controlFrameKindIfWithElse:
		return "if_with_else"
	case controlFrameKindIfWithoutElse:
		return "if_without_else"
	case controlFrameKindBlock:
		return "block"
	default:
		panic(k)
	}
}

func (ctrl *controlFrame) isLoop() bool { return ctrl.kind == controlFrameKindLoop }

func (l *loweringState) String() string {
	var vs []string
	for _, v := range l.values {
		vs = append(vs, fmt.Sprintf("v%v", v.ID()))
	}
	var frames []string
	for i := range l.controlFrames {
		frames = append(frames, l.controlFrames[i].kind.String())
	}
	return fmt.Sprintf("\n\tunreachable=%v(depth=%d)\n\tstack: %s\n\tcontrol frames: %s",
		l.unreachable, l.unreachableDepth, strings.Join(vs, ", "), strings.Join(frames, ", "))
}

func (l *loweringState) reset() {
	l.values = l.values[:0]
	l.controlFrames = l.controlFrames[:0]
	l.unreachable = false
	l.unreachableDepth = 0
}

func (l *loweringState) peek() ssa.Value {
	return l.values[len(l.values)-1]
}

func (l *loweringState) peekAt(offsetFromTop int) ssa.Value {
	return l.values[len(l.values)-1-offsetFromTop]
}

func (l *loweringState) pop() ssa.Value {
	tail := len(l.values) - 1
	ret := l.values[tail]
	l.values = l.values[:tail]
	return ret
}

func (l *loweringState) push(v ssa.Value) {
	l.values = append(l.values, v)
}

// nPopInto pops n values off the stack into dst, in original (bottom-to-top) order.
func (l *loweringState) nPopInto(n int, dst []ssa.Value) {
	if n == 0 {
		return
	}
	tail := len(l.values) - n
	copy(dst, l.values[tail:])
	l.values = l.values[:tail]
}

// nPeekDup returns a copy of the top n values of the stack, without popping them, in original
// (bottom-to-top) order. Used wherever a value is consumed by both the current branch and a
// surviving continuation, e.g. a block's trailing values becoming its result args.
func (l *loweringState) nPeekDup(n int) []ssa.Value {
	if n == 0 {
		return nil
	}
	tail := len(l.values)
	view := l.values[tail-n : tail]
	out := make([]ssa.Value, n)
	copy(out, view)
	return out
}

func (l *loweringState) ctrlPush(c controlFrame) {
	l.controlFrames = append(l.controlFrames, c)
}

func (l *loweringState) ctrlPop() controlFrame {
	tail := len(l.controlFrames) - 1
	ret := l.controlFrames[tail]
	l.controlFrames = l.controlFrames[:tail]
	return ret
}

func (l *loweringState) ctrlPeekAt(nthFromTop int) *controlFrame {
	return &l.controlFrames[len(l.controlFrames)-1-nthFromTop]
}
