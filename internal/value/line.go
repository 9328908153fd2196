package value

import (
	"fmt"

	"github.com/dartleaf/miniscript/internal/errs"
)

// Op is a TAC opcode.
type Op int

const (
	OpNoop Op = iota
	OpAssignA
	OpAssignImplicit
	OpAPlusB
	OpAMinusB
	OpATimesB
	OpADividedByB
	OpAModB
	OpAPowB
	OpAEqualB
	OpANotEqualB
	OpAGreaterThanB
	OpAGreatOrEqualB
	OpALessThanB
	OpALessOrEqualB
	OpAAndB
	OpAOrB
	OpAisaB
	OpNotA
	OpBindAssignA
	OpCopyA
	OpNewA
	OpGotoA
	OpGotoAifB
	OpGotoAifTrulyB
	OpGotoAifNotB
	OpPushParam
	OpCallFunctionA
	OpCallIntrinsicA
	OpReturnA
	OpElemBofA
	OpElemBofIterA
	OpLengthOfA
)

// Line is one three-address-code instruction: an optional destination,
// an opcode, and up to two operands, with an optional source location.
type Line struct {
	LHS Value
	Op  Op
	A   Value
	B   Value
	Loc *errs.SourceLoc
}

func NewLine(lhs Value, op Op, a, b Value) Line {
	return Line{LHS: lhs, Op: op, A: a, B: b}
}

// IsJump reports whether the line transfers control.
func (l Line) IsJump() bool {
	switch l.Op {
	case OpGotoA, OpGotoAifB, OpGotoAifTrulyB, OpGotoAifNotB:
		return true
	}
	return false
}

func (l Line) String() string {
	lhs := CodeForm(l.LHS, 2)
	a := CodeForm(l.A, 2)
	b := CodeForm(l.B, 2)
	switch l.Op {
	case OpNoop:
		return "noop"
	case OpAssignA:
		return fmt.Sprintf("%s := %s", lhs, a)
	case OpAssignImplicit:
		return fmt.Sprintf("_ := %s", a)
	case OpAPlusB:
		return fmt.Sprintf("%s := %s + %s", lhs, a, b)
	case OpAMinusB:
		return fmt.Sprintf("%s := %s - %s", lhs, a, b)
	case OpATimesB:
		return fmt.Sprintf("%s := %s * %s", lhs, a, b)
	case OpADividedByB:
		return fmt.Sprintf("%s := %s / %s", lhs, a, b)
	case OpAModB:
		return fmt.Sprintf("%s := %s %% %s", lhs, a, b)
	case OpAPowB:
		return fmt.Sprintf("%s := %s ^ %s", lhs, a, b)
	case OpAEqualB:
		return fmt.Sprintf("%s := %s == %s", lhs, a, b)
	case OpANotEqualB:
		return fmt.Sprintf("%s := %s != %s", lhs, a, b)
	case OpAGreaterThanB:
		return fmt.Sprintf("%s := %s > %s", lhs, a, b)
	case OpAGreatOrEqualB:
		return fmt.Sprintf("%s := %s >= %s", lhs, a, b)
	case OpALessThanB:
		return fmt.Sprintf("%s := %s < %s", lhs, a, b)
	case OpALessOrEqualB:
		return fmt.Sprintf("%s := %s <= %s", lhs, a, b)
	case OpAAndB:
		return fmt.Sprintf("%s := %s and %s", lhs, a, b)
	case OpAOrB:
		return fmt.Sprintf("%s := %s or %s", lhs, a, b)
	case OpAisaB:
		return fmt.Sprintf("%s := %s isa %s", lhs, a, b)
	case OpNotA:
		return fmt.Sprintf("%s := not %s", lhs, a)
	case OpBindAssignA:
		return fmt.Sprintf("%s := bind %s", lhs, a)
	case OpCopyA:
		return fmt.Sprintf("%s := copy of %s", lhs, a)
	case OpNewA:
		return fmt.Sprintf("%s := new %s", lhs, a)
	case OpGotoA:
		return fmt.Sprintf("goto %s", a)
	case OpGotoAifB:
		return fmt.Sprintf("goto %s if %s", a, b)
	case OpGotoAifTrulyB:
		return fmt.Sprintf("goto %s if truly %s", a, b)
	case OpGotoAifNotB:
		return fmt.Sprintf("goto %s if not %s", a, b)
	case OpPushParam:
		return fmt.Sprintf("push param %s", a)
	case OpCallFunctionA:
		return fmt.Sprintf("%s := call %s with %s args", lhs, a, b)
	case OpCallIntrinsicA:
		return fmt.Sprintf("intrinsic %s", a)
	case OpReturnA:
		return fmt.Sprintf("%s := %s; return", lhs, a)
	case OpElemBofA:
		return fmt.Sprintf("%s := %s[%s]", lhs, a, b)
	case OpElemBofIterA:
		return fmt.Sprintf("%s := %s iter %s", lhs, a, b)
	case OpLengthOfA:
		return fmt.Sprintf("%s := len(%s)", lhs, a)
	default:
		return fmt.Sprintf("op%d %s, %s, %s", int(l.Op), lhs, a, b)
	}
}
