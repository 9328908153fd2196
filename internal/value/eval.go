package value

import "github.com/dartleaf/miniscript/internal/errs"

// Context is the evaluation environment a TAC operand resolves itself
// against. The VM's call frame implements it.
type Context interface {
	GetTemp(num int) Value
	GetVar(ident string, localOnly LocalOnlyMode) (Value, error)
	Self() Value
	// ProtoMap returns the machine's prototype map for a primitive kind
	// (number, string, list, map, function), cloning it on first use.
	ProtoMap(kind Kind) *Map
}

// Val evaluates the value in a context. Runtime values evaluate to
// themselves; Var, Temp, and SeqElem nodes resolve against the context.
func (v Value) Val(ctx Context) (Value, error) {
	switch v.Kind {
	case KindTemp:
		return ctx.GetTemp(v.TempNum), nil
	case KindVar:
		return ctx.GetVar(v.Str, v.LocalOnly)
	case KindSeqElem:
		val, _, err := v.SeqValWithSource(ctx)
		return val, err
	default:
		return v, nil
	}
}

// SeqValWithSource evaluates a SeqElem and also reports the map the
// result was found in, which the call protocol needs to bind super.
func (v Value) SeqValWithSource(ctx Context) (Value, *Map, error) {
	if v.Seq == nil {
		return Value{}, nil, errs.NewTypeError("Type Error (bad sequence element)")
	}
	idx, err := v.Seq.Index.Val(ctx)
	if err != nil {
		return Value{}, nil, err
	}
	seq, err := v.Seq.Sequence.Val(ctx)
	if err != nil {
		return Value{}, nil, err
	}
	if idx.Kind == KindString {
		return ResolveIdent(ctx, seq, idx.Str)
	}
	out, err := ElemValue(seq, idx)
	return out, nil, err
}

// ResolveIdent looks up ident on seq: through the map's __isa chain, and
// through the machine's type prototype maps for primitive sequences.
// Returns the value and the map it was found in.
func ResolveIdent(ctx Context, seq Value, ident string) (Value, *Map, error) {
	includeMapType := true
	for loops := 0; ; loops++ {
		if loops > MaxIsaDepth {
			return Value{}, nil, errs.NewLimitExceeded("__isa depth exceeded (perhaps a reference loop?)")
		}
		switch seq.Kind {
		case KindMap:
			if v, ok := seq.Map.GetString(ident); ok {
				return v, seq.Map, nil
			}
			if isa, ok := seq.Map.GetString(IsaKey); ok && isa.Kind == KindMap {
				seq = isa
				continue
			}
			if !includeMapType {
				return Value{}, nil, errs.NewKeyError(ident)
			}
			includeMapType = false
			proto := ctx.ProtoMap(KindMap)
			if proto == nil || proto == seq.Map {
				return Value{}, nil, errs.NewKeyError(ident)
			}
			seq = NewMapValue(proto)
		case KindList, KindString, KindNumber, KindFunction:
			includeMapType = false
			proto := ctx.ProtoMap(seq.Kind)
			if proto == nil {
				return Value{}, nil, errs.NewKeyError(ident)
			}
			seq = NewMapValue(proto)
		default:
			return Value{}, nil, errs.NewTypeError("Type Error (while attempting to look up %s)", ident)
		}
	}
}

// ElemValue indexes an already-evaluated container with a non-identifier
// index: maps by key (with __isa walk), lists and strings by numeric
// index with negative wrap.
func ElemValue(seq, index Value) (Value, error) {
	switch seq.Kind {
	case KindMap:
		v, ok, err := seq.Map.Lookup(index)
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return Value{}, errs.NewKeyError(ToString(index))
		}
		return v, nil
	case KindList:
		if index.Kind != KindNumber {
			return Value{}, errs.NewTypeError("Type Error (list index must be a number)")
		}
		return seq.List.Get(index.Num)
	case KindString:
		if index.Kind != KindNumber {
			return Value{}, errs.NewTypeError("Type Error (string index must be a number)")
		}
		runes := []rune(seq.Str)
		i, err := NormalizeIndex(index.Num, len(runes))
		if err != nil {
			return Value{}, err
		}
		return NewString(string(runes[i])), nil
	case KindNull:
		return Value{}, errs.NewTypeError("Type Error (can't index into null)")
	default:
		return Value{}, errs.NewTypeError("Type Error (can't index into %s)", seq.Kind)
	}
}

// CopyAndEval instantiates a list or map literal: a fresh container with
// each element evaluated in the context. Non-container values simply
// evaluate.
func CopyAndEval(ctx Context, v Value) (Value, error) {
	switch v.Kind {
	case KindList:
		if v.List == nil {
			return NewListValue(NewList()), nil
		}
		out := NewListCap(len(v.List.Values))
		for _, el := range v.List.Values {
			ev, err := el.Val(ctx)
			if err != nil {
				return Value{}, err
			}
			out.Values = append(out.Values, ev)
		}
		return NewListValue(out), nil
	case KindMap:
		if v.Map == nil {
			return NewMapValue(NewMap()), nil
		}
		out := NewMap()
		for _, k := range v.Map.Keys() {
			kv, err := k.Val(ctx)
			if err != nil {
				return Value{}, err
			}
			raw, _ := v.Map.Get(k)
			vv, err := raw.Val(ctx)
			if err != nil {
				return Value{}, err
			}
			out.Set(kv, vv)
		}
		return NewMapValue(out), nil
	default:
		return v.Val(ctx)
	}
}
