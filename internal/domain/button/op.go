package button

import (
	"math"
	"strings"
)

// Op is an arithmetic operation a counter button applies on press.
type Op uint8

const (
	// OpNone leaves the value untouched.
	OpNone Op = iota
	// OpAdd adds the operand.
	OpAdd
	// OpSubtract subtracts the operand.
	OpSubtract
	// OpMultiply multiplies by the operand.
	OpMultiply
	// OpDivide divides by the operand; a zero operand is a no-op.
	OpDivide
	// OpReset restores the configured initial value.
	OpReset
	// OpSet replaces the value with the operand.
	OpSet
)

// String returns the settings name of the operation.
func (o Op) String() string {
	switch o {
	case OpNone:
		return "none"
	case OpAdd:
		return "add"
	case OpSubtract:
		return "subtract"
	case OpMultiply:
		return "multiply"
	case OpDivide:
		return "divide"
	case OpReset:
		return "reset"
	case OpSet:
		return "set"
	default:
		return "unknown"
	}
}

// ParseOp maps a settings name to an Op.
func ParseOp(s string) (Op, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return OpNone, true
	case "add":
		return OpAdd, true
	case "subtract":
		return OpSubtract, true
	case "multiply":
		return OpMultiply, true
	case "divide":
		return OpDivide, true
	case "reset":
		return OpReset, true
	case "set":
		return OpSet, true
	default:
		return OpNone, false
	}
}

// Apply computes the next counter value from base.
// operand is the configured value of the press, initial the counter's reset value.
func (o Op) Apply(base, operand, initial int64) int64 {
	switch o {
	case OpAdd:
		return SaturatingAdd(base, operand)
	case OpSubtract:
		return SaturatingSub(base, operand)
	case OpMultiply:
		return SaturatingMul(base, operand)
	case OpDivide:
		return SaturatingDiv(base, operand)
	case OpReset:
		return initial
	case OpSet:
		return operand
	default:
		return base
	}
}

// Changes reports whether applying o turned base into next.
// Reset always counts as a change so shared displays resynchronise.
func (o Op) Changes(base, next int64) bool {
	return o == OpReset || next != base
}

// SaturatingAdd returns a+b clamped to the int64 range.
func SaturatingAdd(a, b int64) int64 {
	c := a + b
	switch {
	case b > 0 && c < a:
		return math.MaxInt64
	case b < 0 && c > a:
		return math.MinInt64
	default:
		return c
	}
}

// SaturatingSub returns a-b clamped to the int64 range.
func SaturatingSub(a, b int64) int64 {
	c := a - b
	switch {
	case b > 0 && c > a:
		return math.MinInt64
	case b < 0 && c < a:
		return math.MaxInt64
	default:
		return c
	}
}

// SaturatingMul returns a*b clamped to the int64 range.
func SaturatingMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}

	c := a * b

	overflow := c/b != a ||
		(a == -1 && b == math.MinInt64) ||
		(b == -1 && a == math.MinInt64)
	if !overflow {
		return c
	}

	if (a < 0) != (b < 0) {
		return math.MinInt64
	}

	return math.MaxInt64
}

// SaturatingDiv returns a/b, leaving a unchanged when b is zero.
func SaturatingDiv(a, b int64) int64 {
	if b == 0 {
		return a
	}

	if a == math.MinInt64 && b == -1 {
		return math.MaxInt64
	}

	return a / b
}

// SaturatingNeg returns -a clamped to the int64 range.
func SaturatingNeg(a int64) int64 {
	if a == math.MinInt64 {
		return math.MaxInt64
	}

	return -a
}
