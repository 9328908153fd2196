package parser_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dartleaf/miniscript/internal/errs"
	"github.com/dartleaf/miniscript/internal/parser"
	"github.com/dartleaf/miniscript/internal/value"
	"github.com/dartleaf/miniscript/internal/vm"
)

func compile(t *testing.T, src string) []value.Line {
	t.Helper()
	p := parser.NewParser()
	require.NoError(t, p.Parse(src, false))
	assert.False(t, p.NeedMoreInput(), "all blocks should be closed after a full parse")
	return p.Program()
}

func run(t *testing.T, src string) (*vm.Machine, *strings.Builder) {
	t.Helper()
	code := compile(t, src)
	m := vm.New(code)
	var out strings.Builder
	m.StandardOutput = func(text string, eol bool) {
		out.WriteString(text)
		if eol {
			out.WriteString("\n")
		}
	}
	require.NoError(t, m.RunUntilDone(5, false))
	return m, &out
}

func globalVal(t *testing.T, m *vm.Machine, name string) value.Value {
	t.Helper()
	v, err := m.GlobalContext().GetVar(name, value.LocalOnlyOff)
	require.NoError(t, err)
	return v
}

func globalNum(t *testing.T, m *vm.Machine, name string) float64 {
	t.Helper()
	v := globalVal(t, m, name)
	require.Equal(t, value.KindNumber, v.Kind, "global %s", name)
	return v.Num
}

func TestSimpleAssignment(t *testing.T) {
	m, _ := run(t, "x = 6 * 7")
	assert.Equal(t, 42.0, globalNum(t, m, "x"))
}

func TestAssignmentPeephole(t *testing.T) {
	// the temp produced by the expression is retargeted; no extra AssignA
	code := compile(t, "x = 1 + 2")
	require.Len(t, code, 1)
	assert.Equal(t, value.OpAPlusB, code[0].Op)
	assert.Equal(t, value.KindVar, code[0].LHS.Kind)
	assert.Equal(t, "x", code[0].LHS.Str)
}

func TestBindAssignPeephole(t *testing.T) {
	code := compile(t, "f = function(x)\nreturn x\nend function")
	require.Len(t, code, 1)
	assert.Equal(t, value.OpBindAssignA, code[0].Op)
	assert.Equal(t, "f", code[0].LHS.Str)
}

func TestFunctionCallAndReturn(t *testing.T) {
	m, _ := run(t, `f = function(x)
	return x * 3
end function
y = f(14)`)
	assert.Equal(t, 42.0, globalNum(t, m, "y"))
}

func TestFunctionDefaults(t *testing.T) {
	m, _ := run(t, `f = function(a, b = 10)
	return a + b
end function
x = f(1)
y = f(1, 2)`)
	assert.Equal(t, 11.0, globalNum(t, m, "x"))
	assert.Equal(t, 3.0, globalNum(t, m, "y"))
}

func TestCommandStatement(t *testing.T) {
	m, _ := run(t, `f = function(x)
	globals.y = x * 3
end function
f 14`)
	assert.Equal(t, 42.0, globalNum(t, m, "y"))
}

func TestIfElseChain(t *testing.T) {
	src := `if n == 1 then
	x = "one"
else if n == 2 then
	x = "two"
else
	x = "many"
end if`
	for _, tt := range []struct {
		n    float64
		want string
	}{{1, "one"}, {2, "two"}, {5, "many"}} {
		p := parser.NewParser()
		require.NoError(t, p.Parse("n = "+value.FormatNumber(tt.n)+"\n"+src, false))
		m := vm.New(p.Program())
		m.StandardOutput = func(string, bool) {}
		require.NoError(t, m.RunUntilDone(5, false))
		assert.Equal(t, tt.want, globalVal(t, m, "x").Str, "n=%v", tt.n)
	}
}

func TestSingleLineIf(t *testing.T) {
	m, _ := run(t, `if 1 < 2 < 3 then x = "ok" else x = "no"`)
	assert.Equal(t, "ok", globalVal(t, m, "x").Str)

	m, _ = run(t, `if 3 < 2 then x = "yes" else x = "no"`)
	assert.Equal(t, "no", globalVal(t, m, "x").Str)
}

func TestComparisonChainFalse(t *testing.T) {
	m, _ := run(t, `x = 1 < 2 < 2`)
	assert.Equal(t, 0.0, globalNum(t, m, "x"))
}

func TestWhileLoop(t *testing.T) {
	m, _ := run(t, `x = 0
while x < 5
	x = x + 1
end while`)
	assert.Equal(t, 5.0, globalNum(t, m, "x"))
}

func TestBreakAndContinue(t *testing.T) {
	m, _ := run(t, `total = 0
i = 0
while true
	i = i + 1
	if i > 10 then break
	if i % 2 == 0 then continue
	total = total + i
end while`)
	assert.Equal(t, 25.0, globalNum(t, m, "total")) // 1+3+5+7+9
}

func TestForLoop(t *testing.T) {
	m, _ := run(t, `total = 0
for v in [5, 10, 27]
	total = total + v
end for`)
	assert.Equal(t, 42.0, globalNum(t, m, "total"))
}

func TestForLoopOverMap(t *testing.T) {
	m, _ := run(t, `keys = ""
vals = 0
for kv in {"a": 1, "b": 2}
	keys = keys + kv.key
	vals = vals + kv.value
end for`)
	assert.Equal(t, "ab", globalVal(t, m, "keys").Str)
	assert.Equal(t, 3.0, globalNum(t, m, "vals"))
}

func TestShortCircuitAnd(t *testing.T) {
	// the right side would blow up on an undefined identifier; the
	// short-circuit jump must skip it
	m, _ := run(t, `x = 0 and neverDefined`)
	assert.Equal(t, 0.0, globalNum(t, m, "x"))
}

func TestShortCircuitOr(t *testing.T) {
	m, _ := run(t, `x = 1 or neverDefined`)
	assert.Equal(t, 1.0, globalNum(t, m, "x"))
}

func TestFuzzyLogic(t *testing.T) {
	m, _ := run(t, `a = 0.5 and 0.5
b = 0.5 or 0.5
c = not 0.25`)
	assert.Equal(t, 0.25, globalNum(t, m, "a"))
	assert.Equal(t, 0.75, globalNum(t, m, "b"))
	assert.Equal(t, 0.75, globalNum(t, m, "c"))
}

func TestMapsAndIndexing(t *testing.T) {
	m, _ := run(t, `d = {"a": 1}
d.b = 2
x = d.a + d.b
l = [10, 20, 30]
l[1] = 21
y = l[1] + l[-1]`)
	assert.Equal(t, 3.0, globalNum(t, m, "x"))
	assert.Equal(t, 51.0, globalNum(t, m, "y"))
}

func TestNewAndIsa(t *testing.T) {
	m, _ := run(t, `Animal = {}
Animal.legs = 4
d = new Animal
x = d.legs
y = d isa Animal`)
	assert.Equal(t, 4.0, globalNum(t, m, "x"))
	assert.Equal(t, 1.0, globalNum(t, m, "y"))
}

func TestMethodSelfAndSuper(t *testing.T) {
	m, _ := run(t, `Base = {}
Base.describe = function(self)
	return "base:" + self.name
end function
Derived = new Base
Derived.describe = function(self)
	return "derived:" + super.describe
end function
obj = new Derived
obj.name = "rex"
x = obj.describe`)
	assert.Equal(t, "derived:base:rex", globalVal(t, m, "x").Str)
}

func TestAtSuppressesInvoke(t *testing.T) {
	m, _ := run(t, `f = function
	return 42
end function
g = @f
x = g`)
	assert.Equal(t, 42.0, globalNum(t, m, "x"))
	// and the reference itself stayed a function
	code := compile(t, "g = @f")
	require.Len(t, code, 1)
	assert.Equal(t, value.OpAssignA, code[0].Op)
}

func TestCompoundAssignment(t *testing.T) {
	m, _ := run(t, `x = 10
x += 5
x *= 2
x -= 6
x /= 4
x %= 4
x ^= 3`)
	// ((10+5)*2-6)/4 = 6; 6%4 = 2; 2^3 = 8
	assert.Equal(t, 8.0, globalNum(t, m, "x"))
}

func TestLocalOnlyWarn(t *testing.T) {
	m, out := run(t, `x = 10
bump = function
	x = x + 1
	return x
end function
y = bump`)
	assert.Equal(t, 11.0, globalNum(t, m, "y"))
	assert.Equal(t, 10.0, globalNum(t, m, "x")) // global untouched
	assert.Contains(t, out.String(), "deprecated")
}

func TestLocalOnlyStrict(t *testing.T) {
	code := compile(t, `bump = function
	x += 1
end function
bump`)
	m := vm.New(code)
	m.StandardOutput = func(string, bool) {}
	err := m.RunUntilDone(5, false)
	require.Error(t, err)
	rerr, ok := err.(*errs.RuntimeError)
	require.True(t, ok)
	assert.Equal(t, errs.UndefinedLocal, rerr.Kind)
}

func TestLineContinuation(t *testing.T) {
	p := parser.NewParser()
	require.NoError(t, p.Parse("x = 1 +", true))
	assert.True(t, p.NeedMoreInput())
	require.NoError(t, p.Parse("2", true))
	assert.False(t, p.NeedMoreInput())

	m := vm.New(p.Program())
	m.StandardOutput = func(string, bool) {}
	require.NoError(t, m.RunUntilDone(5, false))
	assert.Equal(t, 3.0, globalNum(t, m, "x"))
}

func TestReplBlockContinuation(t *testing.T) {
	p := parser.NewParser()
	require.NoError(t, p.Parse("f = function(x)", true))
	assert.True(t, p.NeedMoreInput())
	require.NoError(t, p.Parse("return x + 1", true))
	assert.True(t, p.NeedMoreInput())
	require.NoError(t, p.Parse("end function", true))
	assert.False(t, p.NeedMoreInput())
	require.NoError(t, p.Parse("y = f(41)", true))

	m := vm.New(p.Program())
	m.StandardOutput = func(string, bool) {}
	require.NoError(t, m.RunUntilDone(5, false))
	assert.Equal(t, 42.0, globalNum(t, m, "y"))
}

func TestEndsWithLineContinuation(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"x = 1 +", true},
		{"x = foo(", true},
		{"x = a and", true},
		{"x = a or", true},
		{"x = not", true},
		{"x = 1", false},
		{"x = foo()", false},
		{"x = a, ", true},
		{"x = 1 + 2 // done", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parser.EndsWithLineContinuation(tt.src), tt.src)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"break outside loop", "break"},
		{"continue outside loop", "continue"},
		{"end while without while", "end while"},
		{"end if without if", "end if"},
		{"end function without function", "end function"},
		{"missing then", "if 1\nx = 2\nend if"},
		{"assign in if condition", "if x = 3 then y = 1"},
		{"unclosed while", "while true\nx = 1"},
		{"unclosed function", "f = function(x)\nreturn x"},
		{"unclosed if", "if 1 then\nx = 2"},
		{"loop in single-line if", "while 1\nif 1 then while 2\nend while"},
		{"default not literal", "f = function(a = [1])\nend function"},
		{"two functions in one statement", "x = [function, function]"},
		{"unexpected keyword", "then"},
		{"invalid lvalue", "3 = 4"},
	}
	for _, tt := range tests {
		p := parser.NewParser()
		err := p.Parse(tt.src, false)
		require.Error(t, err, tt.name)
		_, ok := err.(*errs.CompilerError)
		assert.True(t, ok, "%s: expected CompilerError, got %T (%v)", tt.name, err, err)
	}
}

func TestErrorLocation(t *testing.T) {
	p := parser.NewParser()
	p.ErrorContext = "test.ms"
	err := p.Parse("x = 1\nbreak", false)
	require.Error(t, err)
	loc := errs.Location(err)
	require.NotNil(t, loc)
	assert.Equal(t, "test.ms", loc.Context)
	assert.Equal(t, 2, loc.LineNum)
}

func TestStatementLocations(t *testing.T) {
	code := compile(t, "x = 1\ny = 2")
	require.Len(t, code, 2)
	require.NotNil(t, code[0].Loc)
	require.NotNil(t, code[1].Loc)
	assert.Equal(t, 1, code[0].Loc.LineNum)
	assert.Equal(t, 2, code[1].Loc.LineNum)
}
