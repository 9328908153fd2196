package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dartleaf/miniscript/internal/errs"
	"github.com/dartleaf/miniscript/internal/value"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{42, "42"},
		{-7, "-7"},
		{0, "0"},
		{3.14, "3.14"},
		{0.5, "0.5"},
		{1.0 / 3.0, "0.333333"},
		{1e10, "10000000000"},
		{1.5e11, "1.500000E+11"},
		{1e-7, "1.000000E-07"},
		{0.000001, "0.000001"},
		{-0.0, "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, value.FormatNumber(tt.in), "FormatNumber(%v)", tt.in)
	}
}

func TestCodeForm(t *testing.T) {
	s := value.NewString(`Hi"There`)
	assert.Equal(t, `"Hi""There"`, value.CodeForm(s, 1))

	l := value.NewListValue(value.NewList(value.NewNumber(1), value.NewString("a")))
	assert.Equal(t, `[1, "a"]`, value.CodeForm(l, 3))

	m := value.NewMap()
	m.SetString("a", value.NewNumber(1))
	m.SetString("b", value.NewNumber(2))
	assert.Equal(t, `{"a": 1, "b": 2}`, value.CodeForm(value.NewMapValue(m), 3))
}

func TestMapInsertionOrder(t *testing.T) {
	m := value.NewMap()
	for _, k := range []string{"z", "a", "m", "q"} {
		m.SetString(k, value.NewString(k))
	}
	var got []string
	for _, k := range m.Keys() {
		got = append(got, k.Str)
	}
	assert.Equal(t, []string{"z", "a", "m", "q"}, got)

	m.Remove(value.NewString("m"))
	got = nil
	for _, k := range m.Keys() {
		got = append(got, k.Str)
	}
	assert.Equal(t, []string{"z", "a", "q"}, got)
}

func TestMapValueIdentityKeys(t *testing.T) {
	m := value.NewMap()
	m.Set(value.NewNumber(1), value.NewString("one"))
	m.Set(value.NewString("1"), value.NewString("str one"))

	v, ok := m.Get(value.NewNumber(1))
	require.True(t, ok)
	assert.Equal(t, "one", v.Str)
	v, ok = m.Get(value.NewString("1"))
	require.True(t, ok)
	assert.Equal(t, "str one", v.Str)

	// list keys compare by recursive identity
	m.Set(value.NewListValue(value.NewList(value.NewNumber(1), value.NewNumber(2))), value.NewString("list"))
	v, ok = m.Get(value.NewListValue(value.NewList(value.NewNumber(1), value.NewNumber(2))))
	require.True(t, ok)
	assert.Equal(t, "list", v.Str)

	// map keys compare by object
	k1 := value.NewMap()
	k2 := value.NewMap()
	m.Set(value.NewMapValue(k1), value.NewString("m1"))
	_, ok = m.Get(value.NewMapValue(k2))
	assert.False(t, ok)
	_, ok = m.Get(value.NewMapValue(k1))
	assert.True(t, ok)
}

func TestIsaLookup(t *testing.T) {
	base := value.NewMap()
	base.SetString("greet", value.NewString("hi"))
	child := value.NewMap()
	child.SetString(value.IsaKey, value.NewMapValue(base))

	v, ok, err := child.Lookup(value.NewString("greet"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hi", v.Str)

	ok, err = child.IsA(base)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsaDepthLimit(t *testing.T) {
	// a chain longer than the cap must fail, not spin
	head := value.NewMap()
	cur := head
	for i := 0; i < value.MaxIsaDepth+2; i++ {
		next := value.NewMap()
		cur.SetString(value.IsaKey, value.NewMapValue(next))
		cur = next
	}
	_, _, err := head.Lookup(value.NewString("missing"))
	require.Error(t, err)
	rerr, ok := err.(*errs.RuntimeError)
	require.True(t, ok)
	assert.Equal(t, errs.LimitExceeded, rerr.Kind)
}

func TestEqualityDeep(t *testing.T) {
	a := value.NewListValue(value.NewList(value.NewNumber(1), value.NewString("x")))
	b := value.NewListValue(value.NewList(value.NewNumber(1), value.NewString("x")))
	assert.Equal(t, 1.0, value.Equality(a, b))
	assert.Equal(t, 1.0, value.Equality(b, a))

	c := value.NewListValue(value.NewList(value.NewNumber(2)))
	assert.Equal(t, 0.0, value.Equality(a, c))

	m1 := value.NewMap()
	m1.SetString("k", value.NewNumber(3))
	m2 := value.NewMap()
	m2.SetString("k", value.NewNumber(3))
	assert.Equal(t, 1.0, value.Equality(value.NewMapValue(m1), value.NewMapValue(m2)))
}

func TestEqualityCyclic(t *testing.T) {
	// self-referential structures terminate and compare equal to themselves
	l := value.NewList()
	lv := value.NewListValue(l)
	l.Values = append(l.Values, lv)
	assert.Equal(t, 1.0, value.Equality(lv, lv))

	m := value.NewMap()
	mv := value.NewMapValue(m)
	m.SetString("self", mv)
	assert.Equal(t, 1.0, value.Equality(mv, mv))

	// two distinct cycles of the same shape are symmetric
	l2 := value.NewList()
	lv2 := value.NewListValue(l2)
	l2.Values = append(l2.Values, lv2)
	assert.Equal(t, value.Equality(lv, lv2), value.Equality(lv2, lv))
}

func TestHashCyclicTerminates(t *testing.T) {
	l := value.NewList()
	lv := value.NewListValue(l)
	l.Values = append(l.Values, lv)
	// 16-level depth cap keeps this finite
	_ = value.Hash(lv)

	a := value.NewListValue(value.NewList(value.NewNumber(1)))
	b := value.NewListValue(value.NewList(value.NewNumber(1)))
	assert.Equal(t, value.Hash(a), value.Hash(b))
}

func TestListIndexing(t *testing.T) {
	l := value.NewList(value.NewNumber(10), value.NewNumber(20), value.NewNumber(30))
	v, err := l.Get(-1)
	require.NoError(t, err)
	assert.Equal(t, 30.0, v.Num)

	_, err = l.Get(3)
	require.Error(t, err)
	_, err = l.Get(-4)
	require.Error(t, err)

	require.NoError(t, l.Insert(1, value.NewNumber(15)))
	assert.Equal(t, []float64{10, 15, 20, 30}, nums(l))

	require.NoError(t, l.RemoveAt(0))
	assert.Equal(t, []float64{15, 20, 30}, nums(l))
}

func nums(l *value.List) []float64 {
	out := make([]float64, 0, len(l.Values))
	for _, v := range l.Values {
		out = append(out, v.Num)
	}
	return out
}

func TestTruth(t *testing.T) {
	assert.Equal(t, 0.0, value.Null().Truth())
	assert.Equal(t, 0.5, value.NewNumber(0.5).Truth())
	assert.Equal(t, 1.0, value.NewString("x").Truth())
	assert.Equal(t, 0.0, value.NewString("").Truth())
	assert.False(t, value.NewNumber(0.5).BoolValue())
	assert.True(t, value.NewNumber(1).BoolValue())
}
