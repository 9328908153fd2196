package intrinsics

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/dartleaf/miniscript/internal/errs"
	"github.com/dartleaf/miniscript/internal/value"
	"github.com/dartleaf/miniscript/internal/vm"
)

func init() {
	vm.Register("len", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		switch self.Kind {
		case value.KindString:
			return ok(value.NewNumber(float64(len([]rune(self.Str)))))
		case value.KindList:
			return ok(value.NewNumber(float64(self.List.Len())))
		case value.KindMap:
			return ok(value.NewNumber(float64(self.Map.Len())))
		default:
			return okNull()
		}
	}).AddParam("self", value.Null())

	vm.Register("hasIndex", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		index := c.GetParam("index")
		switch self.Kind {
		case value.KindList:
			if index.Kind != value.KindNumber {
				return ok(value.Truth01(false))
			}
			i := int(index.Num)
			return ok(value.Truth01(i >= -self.List.Len() && i < self.List.Len()))
		case value.KindString:
			if index.Kind != value.KindNumber {
				return ok(value.Truth01(false))
			}
			n := len([]rune(self.Str))
			i := int(index.Num)
			return ok(value.Truth01(i >= -n && i < n))
		case value.KindMap:
			_, found := self.Map.Get(index)
			return ok(value.Truth01(found))
		default:
			return okNull()
		}
	}).AddParam("self", value.Null()).AddParam("index", value.Null())

	vm.Register("indexes", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		switch self.Kind {
		case value.KindMap:
			l := value.NewListCap(self.Map.Len())
			l.Values = append(l.Values, self.Map.Keys()...)
			return ok(value.NewListValue(l))
		case value.KindList:
			l := value.NewListCap(self.List.Len())
			for i := range self.List.Values {
				l.Values = append(l.Values, value.NewNumber(float64(i)))
			}
			return ok(value.NewListValue(l))
		case value.KindString:
			n := len([]rune(self.Str))
			l := value.NewListCap(n)
			for i := 0; i < n; i++ {
				l.Values = append(l.Values, value.NewNumber(float64(i)))
			}
			return ok(value.NewListValue(l))
		default:
			return okNull()
		}
	}).AddParam("self", value.Null())

	vm.Register("indexOf", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		target := c.GetParam("value")
		after := c.GetParam("after")
		switch self.Kind {
		case value.KindList:
			start := 0
			if !after.IsNull() {
				ai := int(after.Num)
				if ai < 0 {
					ai += self.List.Len()
				}
				start = ai + 1
			}
			for i := start; i < self.List.Len(); i++ {
				if value.Equality(self.List.Values[i], target) == 1 {
					return ok(value.NewNumber(float64(i)))
				}
			}
			return okNull()
		case value.KindString:
			runes := []rune(self.Str)
			start := 0
			if !after.IsNull() {
				ai := int(after.Num)
				if ai < 0 {
					ai += len(runes)
				}
				start = ai + 1
			}
			if start < 0 || start > len(runes) {
				return okNull()
			}
			idx := strings.Index(string(runes[start:]), value.ToString(target))
			if idx < 0 {
				return okNull()
			}
			return ok(value.NewNumber(float64(start + len([]rune(string(runes[start:])[:idx])))))
		case value.KindMap:
			sawAfter := after.IsNull()
			for _, k := range self.Map.Keys() {
				if !sawAfter {
					if value.Identical(k, after) {
						sawAfter = true
					}
					continue
				}
				v, _ := self.Map.Get(k)
				if value.Equality(v, target) == 1 {
					return ok(k)
				}
			}
			return okNull()
		default:
			return okNull()
		}
	}).AddParam("self", value.Null()).AddParam("value", value.Null()).AddParam("after", value.Null())

	vm.Register("insert", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		index := c.GetParam("index")
		val := c.GetParam("value")
		if index.IsNull() {
			return fail(errs.NewRuntimeError("insert: index argument required"))
		}
		if index.Kind != value.KindNumber {
			return fail(errs.NewTypeError("insert: number required for index argument"))
		}
		switch self.Kind {
		case value.KindList:
			if err := self.List.Insert(index.Num, val); err != nil {
				return fail(err)
			}
			return ok(self)
		case value.KindString:
			runes := []rune(self.Str)
			i := int(index.Num)
			if i < 0 {
				i += len(runes) + 1
			}
			if i < 0 || i > len(runes) {
				return fail(errs.NewIndexError(index.Num))
			}
			out := string(runes[:i]) + value.ToString(val) + string(runes[i:])
			sv, err := value.NewLongString(out)
			if err != nil {
				return fail(err)
			}
			return ok(sv)
		default:
			return fail(errs.NewTypeError("insert called on invalid type"))
		}
	}).AddParam("self", value.Null()).AddParam("index", value.Null()).AddParam("value", value.Null())

	vm.Register("remove", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		k := c.GetParam("k")
		switch self.Kind {
		case value.KindMap:
			return ok(value.Truth01(self.Map.Remove(k)))
		case value.KindList:
			if k.Kind != value.KindNumber {
				return fail(errs.NewTypeError("remove: number required for index argument"))
			}
			if err := self.List.RemoveAt(k.Num); err != nil {
				return fail(err)
			}
			return okNull()
		case value.KindString:
			sub := value.ToString(k)
			idx := strings.Index(self.Str, sub)
			if idx < 0 {
				return ok(self)
			}
			return ok(value.NewString(self.Str[:idx] + self.Str[idx+len(sub):]))
		default:
			return fail(errs.NewTypeError("Type Error: 'remove' requires map, list, or string"))
		}
	}).AddParam("self", value.Null()).AddParam("k", value.Null())

	vm.Register("replace", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		oldVal := c.GetParam("oldval")
		newVal := c.GetParam("newval")
		maxCount := -1
		if mc := c.GetParam("maxCount"); !mc.IsNull() {
			maxCount = int(mc.Num)
			if maxCount == 0 {
				return ok(self)
			}
		}
		switch self.Kind {
		case value.KindString:
			out := strings.Replace(self.Str, value.ToString(oldVal), value.ToString(newVal), maxCount)
			sv, err := value.NewLongString(out)
			if err != nil {
				return fail(err)
			}
			return ok(sv)
		case value.KindList:
			count := 0
			for i, el := range self.List.Values {
				if value.Equality(el, oldVal) == 1 {
					self.List.Values[i] = newVal
					count++
					if maxCount > 0 && count >= maxCount {
						break
					}
				}
			}
			return ok(self)
		case value.KindMap:
			count := 0
			for _, k := range self.Map.Keys() {
				v, _ := self.Map.Get(k)
				if value.Equality(v, oldVal) == 1 {
					self.Map.Set(k, newVal)
					count++
					if maxCount > 0 && count >= maxCount {
						break
					}
				}
			}
			return ok(self)
		default:
			return fail(errs.NewTypeError("Type Error: 'replace' requires map, list, or string"))
		}
	}).AddParam("self", value.Null()).AddParam("oldval", value.Null()).
		AddParam("newval", value.Null()).AddParam("maxCount", value.Null())

	vm.Register("slice", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		seq := c.GetParam("seq")
		from := c.GetParam("from")
		to := c.GetParam("to")
		switch seq.Kind {
		case value.KindList:
			n := seq.List.Len()
			lo, hi := sliceBounds(from, to, n)
			out := value.NewListCap(hi - lo)
			if hi > lo {
				out.Values = append(out.Values, seq.List.Values[lo:hi]...)
			}
			return ok(value.NewListValue(out))
		case value.KindString:
			runes := []rune(seq.Str)
			lo, hi := sliceBounds(from, to, len(runes))
			if hi <= lo {
				return ok(value.NewString(""))
			}
			return ok(value.NewString(string(runes[lo:hi])))
		default:
			return okNull()
		}
	}).AddParam("seq", value.Null()).AddParam("from", value.NewNumber(0)).AddParam("to", value.Null())

	vm.Register("values", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		switch self.Kind {
		case value.KindMap:
			l := value.NewListCap(self.Map.Len())
			for _, k := range self.Map.Keys() {
				v, _ := self.Map.Get(k)
				l.Values = append(l.Values, v)
			}
			return ok(value.NewListValue(l))
		case value.KindList:
			l := value.NewListCap(self.List.Len())
			l.Values = append(l.Values, self.List.Values...)
			return ok(value.NewListValue(l))
		case value.KindString:
			l := value.NewList()
			for _, r := range self.Str {
				l.Values = append(l.Values, value.NewString(string(r)))
			}
			return ok(value.NewListValue(l))
		default:
			return ok(self)
		}
	}).AddParam("self", value.Null())

	vm.Register("join", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		delim := value.ToString(c.GetParam("delimiter"))
		if self.Kind != value.KindList {
			return ok(value.NewString(value.ToString(self)))
		}
		parts := make([]string, 0, self.List.Len())
		for _, el := range self.List.Values {
			if el.IsNull() {
				parts = append(parts, "")
			} else {
				parts = append(parts, value.ToString(el))
			}
		}
		sv, err := value.NewLongString(strings.Join(parts, delim))
		if err != nil {
			return fail(err)
		}
		return ok(sv)
	}).AddParam("self", value.Null()).AddParam("delimiter", value.NewString(" "))

	vm.Register("split", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := value.ToString(c.GetParam("self"))
		delim := value.ToString(c.GetParam("delimiter"))
		maxCount := -1
		if mc := c.GetParam("maxCount"); !mc.IsNull() {
			maxCount = int(mc.Num)
		}
		parts := strings.SplitN(self, delim, maxCount)
		l := value.NewListCap(len(parts))
		for _, part := range parts {
			l.Values = append(l.Values, value.NewString(part))
		}
		return ok(value.NewListValue(l))
	}).AddParam("self", value.NewString("")).AddParam("delimiter", value.NewString(" ")).
		AddParam("maxCount", value.Null())

	vm.Register("push", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		val := c.GetParam("value")
		switch self.Kind {
		case value.KindList:
			if err := self.List.Push(val); err != nil {
				return fail(err)
			}
			return ok(self)
		case value.KindMap:
			self.Map.Set(val, value.NewNumber(1))
			return ok(self)
		default:
			return fail(errs.NewTypeError("Type Error: 'push' requires list or map"))
		}
	}).AddParam("self", value.Null()).AddParam("value", value.Null())

	vm.Register("pop", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		switch self.Kind {
		case value.KindList:
			n := self.List.Len()
			if n == 0 {
				return okNull()
			}
			v := self.List.Values[n-1]
			self.List.Values = self.List.Values[:n-1]
			return ok(v)
		case value.KindMap:
			keys := self.Map.Keys()
			if len(keys) == 0 {
				return okNull()
			}
			k := keys[len(keys)-1]
			self.Map.Remove(k)
			return ok(k)
		default:
			return okNull()
		}
	}).AddParam("self", value.Null())

	vm.Register("pull", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		switch self.Kind {
		case value.KindList:
			if self.List.Len() == 0 {
				return okNull()
			}
			v := self.List.Values[0]
			self.List.Values = self.List.Values[1:]
			return ok(v)
		case value.KindMap:
			keys := self.Map.Keys()
			if len(keys) == 0 {
				return okNull()
			}
			k := keys[0]
			self.Map.Remove(k)
			return ok(k)
		default:
			return okNull()
		}
	}).AddParam("self", value.Null())

	vm.Register("sort", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		byKey := c.GetParam("byKey")
		ascending := c.GetParam("ascending").Truth() != 0
		if self.Kind != value.KindList || self.List.Len() < 2 {
			return ok(self)
		}
		sortList(self.List, byKey, ascending)
		return ok(self)
	}).AddParam("self", value.Null()).AddParam("byKey", value.Null()).
		AddParam("ascending", value.NewNumber(1))

	vm.Register("shuffle", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		switch self.Kind {
		case value.KindList:
			vals := self.List.Values
			for i := len(vals) - 1; i > 0; i-- {
				j := rand.Intn(i + 1)
				vals[i], vals[j] = vals[j], vals[i]
			}
		case value.KindMap:
			keys := self.Map.Keys()
			vals := make([]value.Value, len(keys))
			for i, k := range keys {
				vals[i], _ = self.Map.Get(k)
			}
			for i := len(vals) - 1; i > 0; i-- {
				j := rand.Intn(i + 1)
				vals[i], vals[j] = vals[j], vals[i]
			}
			for i, k := range keys {
				self.Map.Set(k, vals[i])
			}
		}
		return okNull()
	}).AddParam("self", value.Null())

	vm.Register("sum", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		total := 0.0
		switch self.Kind {
		case value.KindList:
			for _, el := range self.List.Values {
				if el.Kind == value.KindNumber {
					total += el.Num
				}
			}
		case value.KindMap:
			for _, k := range self.Map.Keys() {
				v, _ := self.Map.Get(k)
				if v.Kind == value.KindNumber {
					total += v.Num
				}
			}
		}
		return ok(value.NewNumber(total))
	}).AddParam("self", value.Null())

	vm.Register("range", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		from := numParam(c, "from")
		to := numParam(c, "to")
		step := 1.0
		if to < from {
			step = -1
		}
		if sv := c.GetParam("step"); !sv.IsNull() {
			step = sv.Num
		}
		if step == 0 || (to > from && step < 0) || (to < from && step > 0) {
			return fail(errs.NewRuntimeError("range() error (step argument not valid)"))
		}
		count := int(math.Floor((to-from)/step)) + 1
		if count > value.MaxSize {
			return fail(errs.NewLimitExceeded("list too large"))
		}
		l := value.NewListCap(count)
		for v := from; (step > 0 && v <= to) || (step < 0 && v >= to); v += step {
			l.Values = append(l.Values, value.NewNumber(v))
		}
		return ok(value.NewListValue(l))
	}).AddParam("from", value.NewNumber(0)).AddParam("to", value.NewNumber(0)).
		AddParam("step", value.Null())
}

// sliceBounds resolves from/to with negative wrap and clamps to [0, n].
func sliceBounds(from, to value.Value, n int) (int, int) {
	lo := 0
	if from.Kind == value.KindNumber {
		lo = int(from.Num)
		if lo < 0 {
			lo += n
		}
	}
	hi := n
	if to.Kind == value.KindNumber {
		hi = int(to.Num)
		if hi < 0 {
			hi += n
		}
	}
	if lo < 0 {
		lo = 0
	}
	if lo > n {
		lo = n
	}
	if hi < 0 {
		hi = 0
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}

// sortList sorts in place. With a null byKey the elements themselves
// compare, nulls sorting to the end (ascending). With byKey, map
// elements sort by element[byKey] and list elements by a numeric index
// with negative wrap; null keys sort to the start (ascending).
func sortList(l *value.List, byKey value.Value, ascending bool) {
	type keyed struct {
		key value.Value
		val value.Value
	}
	items := make([]keyed, l.Len())
	nullsLast := byKey.IsNull()
	for i, el := range l.Values {
		k := el
		if !byKey.IsNull() {
			k = value.Null()
			switch {
			case el.Kind == value.KindMap:
				if kv, found, err := el.Map.Lookup(byKey); err == nil && found {
					k = kv
				}
			case el.Kind == value.KindList && byKey.Kind == value.KindNumber:
				if kv, err := el.List.Get(byKey.Num); err == nil {
					k = kv
				}
			}
		}
		items[i] = keyed{key: k, val: el}
	}
	less := func(a, b value.Value) bool {
		if a.IsNull() || b.IsNull() {
			if a.IsNull() == b.IsNull() {
				return false
			}
			// nulls to the end for plain sorts, to the start for keyed
			if nullsLast {
				return b.IsNull()
			}
			return a.IsNull()
		}
		if a.Kind == value.KindNumber && b.Kind == value.KindNumber {
			return a.Num < b.Num
		}
		return value.ToString(a) < value.ToString(b)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if ascending {
			return less(items[i].key, items[j].key)
		}
		return less(items[j].key, items[i].key)
	})
	for i := range items {
		l.Values[i] = items[i].val
	}
}
