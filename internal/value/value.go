// Package value defines the MiniScript runtime value model, the ordered
// map and list containers, and the three-address-code lines the VM
// executes. TAC lines live here because their operands are Values.
package value

import (
	"sync/atomic"

	"github.com/dartleaf/miniscript/internal/errs"
)

// MaxSize caps string and list lengths. Operations that would produce a
// longer result raise a LimitExceeded error.
const MaxSize = 1<<24 - 1

// MaxIsaDepth caps the __isa chain walk so cyclic chains terminate.
const MaxIsaDepth = 256

// Kind is the type tag of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindList
	KindMap
	KindFunction

	// Compile-time expression nodes. These occur only as TAC operands and
	// evaluate themselves in a context.
	KindVar
	KindTemp
	KindSeqElem
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindFunction:
		return "funcRef"
	case KindVar:
		return "var"
	case KindTemp:
		return "temp"
	case KindSeqElem:
		return "seqElem"
	default:
		return "unknown"
	}
}

// LocalOnlyMode controls how a Var read resolves when the identifier is
// being assigned in the same statement: Off falls through to outer scopes,
// Warn falls through with a deprecation warning, Strict raises
// UndefinedLocal.
type LocalOnlyMode int

const (
	LocalOnlyOff LocalOnlyMode = iota
	LocalOnlyWarn
	LocalOnlyStrict
)

// SeqElem is the payload of a KindSeqElem value: an element reference
// base[index], with NoInvoke set when the @ operator suppressed
// auto-invocation.
type SeqElem struct {
	Sequence Value
	Index    Value
	NoInvoke bool
}

// Value is the tagged sum over all MiniScript values and TAC operand
// nodes. The zero Value is null. List, Map, and Function payloads are
// pointers: containers are reference-shared.
type Value struct {
	Kind Kind

	Num  float64   // KindNumber
	Str  string    // KindString; identifier for KindVar
	List *List     // KindList
	Map  *Map      // KindMap
	Fn   *FuncValue // KindFunction
	Seq  *SeqElem  // KindSeqElem

	TempNum int // KindTemp

	NoInvoke  bool          // KindVar: @-prefixed
	LocalOnly LocalOnlyMode // KindVar
}

var nextRefID atomic.Uint64

func newRefID() uint64 {
	return nextRefID.Add(1)
}

// Constructors

func Null() Value {
	return Value{}
}

func NewNumber(n float64) Value {
	return Value{Kind: KindNumber, Num: n}
}

func Truth01(b bool) Value {
	if b {
		return Value{Kind: KindNumber, Num: 1}
	}
	return Value{Kind: KindNumber, Num: 0}
}

func NewString(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// NewLongString builds a string value, enforcing the size cap. Use it
// wherever a script operation can grow a string.
func NewLongString(s string) (Value, error) {
	if len(s) > MaxSize {
		return Value{}, errs.NewLimitExceeded("string too large")
	}
	return Value{Kind: KindString, Str: s}, nil
}

func NewListValue(l *List) Value {
	return Value{Kind: KindList, List: l}
}

func NewMapValue(m *Map) Value {
	return Value{Kind: KindMap, Map: m}
}

func NewFunctionValue(fn *Function, outer *Map) Value {
	return Value{Kind: KindFunction, Fn: &FuncValue{id: newRefID(), Func: fn, Outer: outer}}
}

func NewVar(ident string) Value {
	return Value{Kind: KindVar, Str: ident}
}

func NewTemp(num int) Value {
	return Value{Kind: KindTemp, TempNum: num}
}

func NewSeqElem(sequence, index Value) Value {
	return Value{Kind: KindSeqElem, Seq: &SeqElem{Sequence: sequence, Index: index}}
}

// Predicates and conversions

func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// Truth returns the fuzzy truth value used by the logical operators:
// a number's own value, 1/0 for other kinds by emptiness.
func (v Value) Truth() float64 {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindString:
		if v.Str == "" {
			return 0
		}
		return 1
	case KindList:
		if v.List == nil || len(v.List.Values) == 0 {
			return 0
		}
		return 1
	case KindMap:
		if v.Map == nil || v.Map.Len() == 0 {
			return 0
		}
		return 1
	case KindFunction:
		return 1
	default:
		return 0
	}
}

// BoolValue is integer truth: true when the integer part of Truth is
// nonzero. The or short-circuit jump tests this.
func (v Value) BoolValue() bool {
	t := v.Truth()
	return int64(t) != 0
}

// IntValue truncates the numeric value toward zero.
func (v Value) IntValue() int {
	if v.Kind == KindNumber {
		return int(v.Num)
	}
	return 0
}

// AbsClamp01 clamps |x| into [0,1]; the fuzzy-logic range.
func AbsClamp01(x float64) float64 {
	if x < 0 {
		x = -x
	}
	if x > 1 {
		return 1
	}
	return x
}
