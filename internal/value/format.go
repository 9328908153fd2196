package value

import (
	"math"
	"strconv"
	"strings"
)

// FormatNumber renders a number the way print and str do: integers
// without decimals; very large or very small magnitudes in exponential
// form; otherwise up to 6 fractional digits with trailing zeros stripped.
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && !math.IsInf(n, 0) {
		if n > 1e10 || n < -1e10 {
			return strconv.FormatFloat(n, 'E', 6, 64)
		}
		s := strconv.FormatFloat(n, 'f', 0, 64)
		if s == "-0" {
			return "0"
		}
		return s
	}
	if n > 1e10 || n < -1e10 || (n < 1e-6 && n > -1e-6) {
		return strconv.FormatFloat(n, 'E', 6, 64)
	}
	s := strconv.FormatFloat(n, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// ToString renders a value for output: numbers via FormatNumber, strings
// raw, containers in code form with a recursion limit.
func ToString(v Value) string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindNumber:
		return FormatNumber(v.Num)
	case KindString:
		return v.Str
	case KindList, KindMap:
		return CodeForm(v, 3)
	case KindFunction:
		if v.Fn != nil && v.Fn.Func != nil {
			return v.Fn.Func.String()
		}
		return "FUNCTION"
	default:
		return CodeForm(v, 1)
	}
}

// CodeForm renders a value the way it would be written in code: strings
// quoted with internal quotes doubled, lists bracketed, maps braced. The
// depth limit keeps recursive structures from unbounded output.
func CodeForm(v Value, depth int) string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindNumber:
		return FormatNumber(v.Num)
	case KindString:
		return `"` + strings.ReplaceAll(v.Str, `"`, `""`) + `"`
	case KindList:
		if v.List == nil {
			return "[]"
		}
		if depth <= 0 {
			return "[...]"
		}
		var b strings.Builder
		b.WriteByte('[')
		for i, el := range v.List.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(CodeForm(el, depth-1))
		}
		b.WriteByte(']')
		return b.String()
	case KindMap:
		if v.Map == nil {
			return "{}"
		}
		if depth <= 0 {
			return "{...}"
		}
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range v.Map.Keys() {
			if i > 0 {
				b.WriteString(", ")
			}
			val, _ := v.Map.Get(k)
			b.WriteString(CodeForm(k, depth-1))
			b.WriteString(": ")
			b.WriteString(CodeForm(val, depth-1))
		}
		b.WriteByte('}')
		return b.String()
	case KindFunction:
		return ToString(v)
	case KindVar:
		if v.NoInvoke {
			return "@" + v.Str
		}
		return v.Str
	case KindTemp:
		return "_" + strconv.Itoa(v.TempNum)
	case KindSeqElem:
		if v.Seq == nil {
			return "?[?]"
		}
		return CodeForm(v.Seq.Sequence, depth) + "[" + CodeForm(v.Seq.Index, depth) + "]"
	default:
		return "?"
	}
}
