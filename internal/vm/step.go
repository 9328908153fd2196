package vm

import (
	"math"
	"strings"

	"github.com/dartleaf/miniscript/internal/errs"
	"github.com/dartleaf/miniscript/internal/value"
)

// evalOperand evaluates a TAC operand. List and map literal nodes
// instantiate fresh containers with their elements evaluated.
func evalOperand(ctx *Context, v value.Value) (value.Value, error) {
	if v.Kind == value.KindList || v.Kind == value.KindMap {
		return value.CopyAndEval(ctx, v)
	}
	return v.Val(ctx)
}

func (m *Machine) execLine(ctx *Context, line value.Line) error {
	switch line.Op {
	case value.OpNoop:
		return nil

	case value.OpAssignA, value.OpCopyA:
		v, err := evalOperand(ctx, line.A)
		if err != nil {
			return err
		}
		return ctx.StoreValue(line.LHS, v)

	case value.OpAssignImplicit:
		v, err := evalOperand(ctx, line.A)
		if err != nil {
			return err
		}
		if m.StoreImplicit {
			if err := ctx.SetVar("_", v); err != nil {
				return err
			}
			ctx.ImplicitResultCounter++
		}
		return nil

	case value.OpAPlusB, value.OpAMinusB, value.OpATimesB,
		value.OpADividedByB, value.OpAModB, value.OpAPowB:
		a, err := evalOperand(ctx, line.A)
		if err != nil {
			return err
		}
		b, err := evalOperand(ctx, line.B)
		if err != nil {
			return err
		}
		v, err := m.arith(line.Op, a, b)
		if err != nil {
			return err
		}
		return ctx.StoreValue(line.LHS, v)

	case value.OpAEqualB, value.OpANotEqualB, value.OpAGreaterThanB,
		value.OpAGreatOrEqualB, value.OpALessThanB, value.OpALessOrEqualB:
		a, err := evalOperand(ctx, line.A)
		if err != nil {
			return err
		}
		b, err := evalOperand(ctx, line.B)
		if err != nil {
			return err
		}
		return ctx.StoreValue(line.LHS, compare(line.Op, a, b))

	case value.OpAAndB, value.OpAOrB:
		a, err := evalOperand(ctx, line.A)
		if err != nil {
			return err
		}
		b, err := evalOperand(ctx, line.B)
		if err != nil {
			return err
		}
		fA, fB := a.Truth(), b.Truth()
		var f float64
		if line.Op == value.OpAAndB {
			f = value.AbsClamp01(fA * fB)
		} else {
			f = value.AbsClamp01(fA + fB - fA*fB)
		}
		return ctx.StoreValue(line.LHS, value.NewNumber(f))

	case value.OpNotA:
		a, err := evalOperand(ctx, line.A)
		if err != nil {
			return err
		}
		return ctx.StoreValue(line.LHS, value.NewNumber(1-value.AbsClamp01(a.Truth())))

	case value.OpAisaB:
		a, err := evalOperand(ctx, line.A)
		if err != nil {
			return err
		}
		b, err := evalOperand(ctx, line.B)
		if err != nil {
			return err
		}
		ok, err := m.isa(a, b)
		if err != nil {
			return err
		}
		return ctx.StoreValue(line.LHS, value.Truth01(ok))

	case value.OpBindAssignA:
		fv, err := line.A.Val(ctx)
		if err != nil {
			return err
		}
		if fv.Kind != value.KindFunction {
			return errs.NewTypeError("Type Error (bind target is not a function)")
		}
		return ctx.StoreValue(line.LHS, fv.Fn.BindAndCopy(ctx.locals()))

	case value.OpNewA:
		a, err := evalOperand(ctx, line.A)
		if err != nil {
			return err
		}
		if a.Kind != value.KindMap {
			return errs.NewTypeError("Type Error ('new' argument must be a map)")
		}
		for _, kind := range []value.Kind{value.KindNumber, value.KindString,
			value.KindList, value.KindMap, value.KindFunction} {
			if p, ok := m.protos[kind]; ok && p == a.Map {
				return errs.NewTypeError("Type Error (can't use 'new' on a primitive type)")
			}
		}
		fresh := value.NewMap()
		fresh.SetString(value.IsaKey, a)
		return ctx.StoreValue(line.LHS, value.NewMapValue(fresh))

	case value.OpGotoA:
		a, err := line.A.Val(ctx)
		if err != nil {
			return err
		}
		ctx.PC = a.IntValue()
		return nil

	case value.OpGotoAifB, value.OpGotoAifTrulyB, value.OpGotoAifNotB:
		a, err := line.A.Val(ctx)
		if err != nil {
			return err
		}
		b, err := evalOperand(ctx, line.B)
		if err != nil {
			return err
		}
		jump := false
		switch line.Op {
		case value.OpGotoAifB:
			jump = b.Truth() != 0
		case value.OpGotoAifTrulyB:
			jump = b.BoolValue()
		case value.OpGotoAifNotB:
			jump = b.Truth() == 0
		}
		if jump {
			ctx.PC = a.IntValue()
		}
		return nil

	case value.OpPushParam:
		v, err := evalOperand(ctx, line.A)
		if err != nil {
			return err
		}
		return ctx.PushArg(v)

	case value.OpCallFunctionA:
		return m.callFunction(ctx, line)

	case value.OpCallIntrinsicA:
		a, err := line.A.Val(ctx)
		if err != nil {
			return err
		}
		in := ByID(a.IntValue())
		if in == nil {
			return errs.NewRuntimeError("no intrinsic with id %d", a.IntValue())
		}
		partial := ctx.Partial
		res, err := in.fn(ctx, partial)
		if err != nil {
			ctx.Partial = nil
			return err
		}
		if res.Done {
			ctx.Partial = nil
			return ctx.StoreValue(line.LHS, res.Value)
		}
		ctx.Partial = &res
		ctx.PC-- // re-present this call on the next step
		return nil

	case value.OpReturnA:
		v, err := evalOperand(ctx, line.A)
		if err != nil {
			return err
		}
		ctx.resultValue = v
		if err := ctx.StoreValue(line.LHS, v); err != nil {
			return err
		}
		ctx.PC = len(ctx.Code)
		return nil

	case value.OpElemBofA:
		seq, err := line.A.Val(ctx)
		if err != nil {
			return err
		}
		idx, err := line.B.Val(ctx)
		if err != nil {
			return err
		}
		var v value.Value
		if idx.Kind == value.KindString {
			v, _, err = value.ResolveIdent(ctx, seq, idx.Str)
		} else {
			v, err = value.ElemValue(seq, idx)
		}
		if err != nil {
			return err
		}
		return ctx.StoreValue(line.LHS, v)

	case value.OpElemBofIterA:
		seq, err := line.A.Val(ctx)
		if err != nil {
			return err
		}
		idx, err := line.B.Val(ctx)
		if err != nil {
			return err
		}
		v, err := iterElem(seq, idx)
		if err != nil {
			return err
		}
		return ctx.StoreValue(line.LHS, v)

	case value.OpLengthOfA:
		seq, err := line.A.Val(ctx)
		if err != nil {
			return err
		}
		switch seq.Kind {
		case value.KindString:
			return ctx.StoreValue(line.LHS, value.NewNumber(float64(len([]rune(seq.Str)))))
		case value.KindList:
			return ctx.StoreValue(line.LHS, value.NewNumber(float64(seq.List.Len())))
		case value.KindMap:
			return ctx.StoreValue(line.LHS, value.NewNumber(float64(seq.Map.Len())))
		case value.KindNull:
			return ctx.StoreValue(line.LHS, value.NewNumber(0))
		default:
			return errs.NewTypeError("Type Error (can't take the length of %s)", seq.Kind)
		}

	default:
		return errs.NewRuntimeError("unknown opcode %d", int(line.Op))
	}
}

// iterElem is ElemBofIterA: on a map, index i yields a {key, value}
// pair in insertion order; on lists and strings it behaves like plain
// indexing.
func iterElem(seq, idx value.Value) (value.Value, error) {
	if seq.Kind == value.KindMap {
		if idx.Kind != value.KindNumber {
			return value.Value{}, errs.NewTypeError("Type Error (map iteration index must be a number)")
		}
		keys := seq.Map.Keys()
		i, err := value.NormalizeIndex(idx.Num, len(keys))
		if err != nil {
			return value.Value{}, err
		}
		k := keys[i]
		v, _ := seq.Map.Get(k)
		pair := value.NewMap()
		pair.SetString("key", k)
		pair.SetString("value", v)
		return value.NewMapValue(pair), nil
	}
	return value.ElemValue(seq, idx)
}

func (m *Machine) callFunction(ctx *Context, line value.Line) error {
	argCount := line.B.IntValue()

	var funcVal value.Value
	var foundIn *value.Map
	var newSelf value.Value
	viaSeq := false

	if line.A.Kind == value.KindSeqElem {
		viaSeq = true
		seqNode := line.A.Seq
		baseVal, err := seqNode.Sequence.Val(ctx)
		if err != nil {
			return err
		}
		idxVal, err := seqNode.Index.Val(ctx)
		if err != nil {
			return err
		}
		if idxVal.Kind == value.KindString {
			funcVal, foundIn, err = value.ResolveIdent(ctx, baseVal, idxVal.Str)
		} else {
			funcVal, err = value.ElemValue(baseVal, idxVal)
		}
		if err != nil {
			return err
		}
		if seqNode.Sequence.Kind == value.KindVar && seqNode.Sequence.Str == "super" {
			newSelf = ctx.Self() // super calls keep the caller's self
		} else {
			newSelf = baseVal
		}
	} else {
		v, err := line.A.Val(ctx)
		if err != nil {
			return err
		}
		funcVal = v
	}

	if funcVal.Kind != value.KindFunction {
		// not callable: the value itself is the result
		if argCount > 0 {
			return errs.NewTooManyArguments()
		}
		return ctx.StoreValue(line.LHS, funcVal)
	}

	fn := funcVal.Fn
	nc := NewContext(fn.Func.Code)
	nc.Parent = ctx
	nc.VM = m
	nc.ResultStorage = line.LHS
	nc.OuterVars = fn.Outer

	params := fn.Func.Params
	selfParam := 0
	if viaSeq {
		nc.self = newSelf
		if len(params) > 0 && params[0].Name == "self" {
			selfParam = 1
		}
	}

	if argCount > len(params)-selfParam {
		return errs.NewTooManyArguments()
	}
	for i := argCount - 1; i >= 0; i-- {
		v := ctx.PopArg()
		if err := nc.SetVar(params[selfParam+i].Name, v); err != nil {
			return err
		}
	}
	for i := selfParam + argCount; i < len(params); i++ {
		if err := nc.SetVar(params[i].Name, params[i].Default); err != nil {
			return err
		}
	}

	if viaSeq {
		superVal := value.Null()
		if foundIn != nil {
			if isa, ok := foundIn.GetString(value.IsaKey); ok {
				superVal = isa
			}
		}
		if err := nc.SetVar("super", superVal); err != nil {
			return err
		}
	}

	m.pushContext(nc)
	return nil
}

// arith implements the arithmetic opcodes across the value kinds.
func (m *Machine) arith(op value.Op, a, b value.Value) (value.Value, error) {
	// null is inert under the additive operators
	if a.IsNull() && (op == value.OpAPlusB) {
		return b, nil
	}
	if b.IsNull() && (op == value.OpAPlusB || op == value.OpAMinusB) {
		return a, nil
	}

	switch a.Kind {
	case value.KindNumber:
		if b.Kind == value.KindNumber {
			switch op {
			case value.OpAPlusB:
				return value.NewNumber(a.Num + b.Num), nil
			case value.OpAMinusB:
				return value.NewNumber(a.Num - b.Num), nil
			case value.OpATimesB:
				return value.NewNumber(a.Num * b.Num), nil
			case value.OpADividedByB:
				return value.NewNumber(a.Num / b.Num), nil
			case value.OpAModB:
				return value.NewNumber(math.Mod(a.Num, b.Num)), nil
			case value.OpAPowB:
				return value.NewNumber(math.Pow(a.Num, b.Num)), nil
			}
		}
		if b.Kind == value.KindString && op == value.OpAPlusB {
			return value.NewLongString(value.FormatNumber(a.Num) + b.Str)
		}

	case value.KindString:
		switch op {
		case value.OpAPlusB:
			return value.NewLongString(a.Str + value.ToString(b))
		case value.OpAMinusB:
			suffix := value.ToString(b)
			if strings.HasSuffix(a.Str, suffix) {
				return value.NewString(strings.TrimSuffix(a.Str, suffix)), nil
			}
			return a, nil
		case value.OpATimesB, value.OpADividedByB:
			if b.Kind != value.KindNumber {
				break
			}
			n := b.Num
			if op == value.OpADividedByB {
				n = 1 / n
			}
			return repeatString(a.Str, n)
		}

	case value.KindList:
		switch op {
		case value.OpAPlusB:
			if b.Kind != value.KindList {
				break
			}
			total := a.List.Len() + b.List.Len()
			if total > value.MaxSize {
				return value.Value{}, errs.NewLimitExceeded("list too large")
			}
			out := value.NewListCap(total)
			out.Values = append(out.Values, a.List.Values...)
			out.Values = append(out.Values, b.List.Values...)
			return value.NewListValue(out), nil
		case value.OpATimesB, value.OpADividedByB:
			if b.Kind != value.KindNumber {
				break
			}
			n := b.Num
			if op == value.OpADividedByB {
				n = 1 / n
			}
			return repeatList(a.List, n)
		}

	case value.KindMap:
		if op == value.OpAPlusB && b.Kind == value.KindMap {
			out := value.NewMap()
			for _, k := range a.Map.Keys() {
				v, _ := a.Map.Get(k)
				out.Set(k, v)
			}
			for _, k := range b.Map.Keys() {
				v, _ := b.Map.Get(k)
				out.Set(k, v)
			}
			return value.NewMapValue(out), nil
		}
	}

	return value.Value{}, errs.NewTypeError("Type Error (while evaluating %s %s %s)",
		value.CodeForm(a, 1), opSymbol(op), value.CodeForm(b, 1))
}

func opSymbol(op value.Op) string {
	switch op {
	case value.OpAPlusB:
		return "+"
	case value.OpAMinusB:
		return "-"
	case value.OpATimesB:
		return "*"
	case value.OpADividedByB:
		return "/"
	case value.OpAModB:
		return "%"
	case value.OpAPowB:
		return "^"
	}
	return "?"
}

// repeatString repeats s so the result holds int(n * len(s)) characters;
// a fractional count keeps a partial copy.
func repeatString(s string, n float64) (value.Value, error) {
	runes := []rune(s)
	if n <= 0 || len(runes) == 0 {
		return value.NewString(""), nil
	}
	total := int(n * float64(len(runes)))
	if total > value.MaxSize {
		return value.Value{}, errs.NewLimitExceeded("string too large")
	}
	out := make([]rune, total)
	for i := 0; i < total; i++ {
		out[i] = runes[i%len(runes)]
	}
	return value.NewString(string(out)), nil
}

func repeatList(l *value.List, n float64) (value.Value, error) {
	if n <= 0 || l.Len() == 0 {
		return value.NewListValue(value.NewList()), nil
	}
	total := int(n * float64(l.Len()))
	if total > value.MaxSize {
		return value.Value{}, errs.NewLimitExceeded("list too large")
	}
	out := value.NewListCap(total)
	for i := 0; i < total; i++ {
		out.Values = append(out.Values, l.Values[i%l.Len()])
	}
	return value.NewListValue(out), nil
}

// compare implements the comparison opcodes: deep equality for == and
// !=, ordered comparison for numbers and strings, null for mixed types.
func compare(op value.Op, a, b value.Value) value.Value {
	switch op {
	case value.OpAEqualB:
		return value.NewNumber(value.Equality(a, b))
	case value.OpANotEqualB:
		return value.NewNumber(1 - value.Equality(a, b))
	}

	if a.Kind == value.KindNumber && b.Kind == value.KindNumber {
		switch op {
		case value.OpAGreaterThanB:
			return value.Truth01(a.Num > b.Num)
		case value.OpAGreatOrEqualB:
			return value.Truth01(a.Num >= b.Num)
		case value.OpALessThanB:
			return value.Truth01(a.Num < b.Num)
		case value.OpALessOrEqualB:
			return value.Truth01(a.Num <= b.Num)
		}
	}
	if a.Kind == value.KindString && b.Kind == value.KindString {
		switch op {
		case value.OpAGreaterThanB:
			return value.Truth01(a.Str > b.Str)
		case value.OpAGreatOrEqualB:
			return value.Truth01(a.Str >= b.Str)
		case value.OpALessThanB:
			return value.Truth01(a.Str < b.Str)
		case value.OpALessOrEqualB:
			return value.Truth01(a.Str <= b.Str)
		}
	}
	return value.Null()
}

func (m *Machine) isa(a, b value.Value) (bool, error) {
	if b.IsNull() {
		return a.IsNull(), nil
	}
	if b.Kind != value.KindMap {
		return false, nil
	}
	switch a.Kind {
	case value.KindMap:
		if b.Map == m.ProtoMap(value.KindMap) {
			return true, nil
		}
		return a.Map.IsA(b.Map)
	case value.KindNumber:
		return b.Map == m.ProtoMap(value.KindNumber), nil
	case value.KindString:
		return b.Map == m.ProtoMap(value.KindString), nil
	case value.KindList:
		return b.Map == m.ProtoMap(value.KindList), nil
	case value.KindFunction:
		return b.Map == m.ProtoMap(value.KindFunction), nil
	default:
		return false, nil
	}
}
