package ssa

import "fmt"

// IntegerCmpCond is the condition code of an OpcodeIcmp comparison, following the naming
// convention used throughout this package's instruction formatters.
type IntegerCmpCond byte

const (
	IntegerCmpCondInvalid IntegerCmpCond = iota
	IntegerCmpCondEqual
	IntegerCmpCondNotEqual
	IntegerCmpCondSignedLessThan
	IntegerCmpCondSignedGreaterThanOrEqual
	IntegerCmpCondSignedGreaterThan
	IntegerCmpCondSignedLessThanOrEqual
	IntegerCmpCondUnsignedLessThan
	IntegerCmpCondUnsignedGreaterThanOrEqual
	IntegerCmpCondUnsignedGreaterThan
	IntegerCmpCondUnsignedLessThanOrEqual
)

// String implements fmt.Stringer.
func (c IntegerCmpCond) String() string {
	switch c {
	case IntegerCmpCondEqual:
		return "eq"
	case IntegerCmpCondNotEqual:
		return "neq"
	case IntegerCmpCondSignedLessThan:
		return "slt"
	case IntegerCmpCondSignedGreaterThanOrEqual:
		return "sge"
	case IntegerCmpCondSignedGreaterThan:
		return "sgt"
	case IntegerCmpCondSignedLessThanOrEqual:
		return "sle"
	case IntegerCmpCondUnsignedLessThan:
		return "ult"
	case IntegerCmpCondUnsignedGreaterThanOrEqual:
		return "uge"
	case IntegerCmpCondUnsignedGreaterThan:
		return "ugt"
	case IntegerCmpCondUnsignedLessThanOrEqual:
		return "ule"
	default:
		return fmt.Sprintf("invalid_icmp(%d)", byte(c))
	}
}

// FloatCmpCond is the condition code of an OpcodeFcmp comparison.
type FloatCmpCond byte

const (
	FloatCmpCondInvalid FloatCmpCond = iota
	FloatCmpCondEqual
	FloatCmpCondNotEqual
	FloatCmpCondLessThan
	FloatCmpCondLessThanOrEqual
	FloatCmpCondGreaterThan
	FloatCmpCondGreaterThanOrEqual
)

// String implements fmt.Stringer.
func (c FloatCmpCond) String() string {
	switch c {
	case FloatCmpCondEqual:
		return "eq"
	case FloatCmpCondNotEqual:
		return "neq"
	case FloatCmpCondLessThan:
		return "lt"
	case FloatCmpCondLessThanOrEqual:
		return "le"
	case FloatCmpCondGreaterThan:
		return "gt"
	case FloatCmpCondGreaterThanOrEqual:
		return "ge"
	default:
		return fmt.Sprintf("invalid_fcmp(%d)", byte(c))
	}
}

// VecLane identifies the lane width of a vector (v128) instruction.
type VecLane byte

const (
	VecLaneInvalid VecLane = iota
	VecLaneI8x16
	VecLaneI16x8
	VecLaneI32x4
	VecLaneI64x2
	VecLaneF32x4
	VecLaneF64x2
)

// VecLanes returns the number of lanes for this VecLane.
func (v VecLane) VecLanes() byte {
	switch v {
	case VecLaneI8x16:
		return 16
	case VecLaneI16x8:
		return 8
	case VecLaneI32x4, VecLaneF32x4:
		return 4
	case VecLaneI64x2, VecLaneF64x2:
		return 2
	default:
		panic("BUG: invalid VecLane")
	}
}

// String implements fmt.Stringer.
func (v VecLane) String() string {
	switch v {
	case VecLaneI8x16:
		return "i8x16"
	case VecLaneI16x8:
		return "i16x8"
	case VecLaneI32x4:
		return "i32x4"
	case VecLaneI64x2:
		return "i64x2"
	case VecLaneF32x4:
		return "f32x4"
	case VecLaneF64x2:
		return "f64x2"
	default:
		return fmt.Sprintf("invalid_lane(%d)", byte(v))
	}
}
