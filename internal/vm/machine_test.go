package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dartleaf/miniscript/internal/errs"
	"github.com/dartleaf/miniscript/internal/value"
	"github.com/dartleaf/miniscript/internal/vm"
)

func runProgram(t *testing.T, code []value.Line) *vm.Machine {
	t.Helper()
	m := vm.New(code)
	m.StandardOutput = func(string, bool) {}
	require.NoError(t, m.RunUntilDone(5, false))
	require.True(t, m.Done())
	return m
}

func globalNum(t *testing.T, m *vm.Machine, name string) float64 {
	t.Helper()
	v, err := m.GlobalContext().GetVar(name, value.LocalOnlyOff)
	require.NoError(t, err)
	require.Equal(t, value.KindNumber, v.Kind, "global %s", name)
	return v.Num
}

func TestArithmeticAndAssign(t *testing.T) {
	code := []value.Line{
		value.NewLine(value.NewTemp(0), value.OpATimesB, value.NewNumber(6), value.NewNumber(7)),
		value.NewLine(value.NewVar("x"), value.OpAssignA, value.NewTemp(0), value.Null()),
		value.NewLine(value.NewVar("y"), value.OpAPowB, value.NewNumber(2), value.NewNumber(10)),
	}
	m := runProgram(t, code)
	assert.Equal(t, 42.0, globalNum(t, m, "x"))
	assert.Equal(t, 1024.0, globalNum(t, m, "y"))
}

func TestStringOps(t *testing.T) {
	code := []value.Line{
		value.NewLine(value.NewVar("a"), value.OpAPlusB, value.NewString("foo"), value.NewString("bar")),
		value.NewLine(value.NewVar("b"), value.OpAMinusB, value.NewString("file.txt"), value.NewString(".txt")),
		value.NewLine(value.NewVar("c"), value.OpATimesB, value.NewString("ab"), value.NewNumber(2.5)),
	}
	m := runProgram(t, code)
	get := func(name string) string {
		v, err := m.GlobalContext().GetVar(name, value.LocalOnlyOff)
		require.NoError(t, err)
		return v.Str
	}
	assert.Equal(t, "foobar", get("a"))
	assert.Equal(t, "file", get("b"))
	assert.Equal(t, "ababa", get("c"))
}

func TestConditionalJump(t *testing.T) {
	// x = 0; while x < 3: x = x + 1
	code := []value.Line{
		value.NewLine(value.NewVar("x"), value.OpAssignA, value.NewNumber(0), value.Null()),
		value.NewLine(value.NewTemp(0), value.OpALessThanB, value.NewVar("x"), value.NewNumber(3)),
		value.NewLine(value.Null(), value.OpGotoAifNotB, value.NewNumber(5), value.NewTemp(0)),
		value.NewLine(value.NewVar("x"), value.OpAPlusB, value.NewVar("x"), value.NewNumber(1)),
		value.NewLine(value.Null(), value.OpGotoA, value.NewNumber(1), value.Null()),
	}
	m := runProgram(t, code)
	assert.Equal(t, 3.0, globalNum(t, m, "x"))
}

func TestFunctionCall(t *testing.T) {
	triple := &value.Function{
		Params: []value.Param{{Name: "n", Default: value.NewNumber(1)}},
		Code: []value.Line{
			value.NewLine(value.NewTemp(0), value.OpATimesB, value.NewVar("n"), value.NewNumber(3)),
			value.NewLine(value.NewTemp(0), value.OpReturnA, value.NewTemp(0), value.Null()),
		},
	}
	fv := value.NewFunctionValue(triple, nil)
	code := []value.Line{
		value.NewLine(value.NewVar("f"), value.OpAssignA, fv, value.Null()),
		value.NewLine(value.Null(), value.OpPushParam, value.NewNumber(14), value.Null()),
		value.NewLine(value.NewVar("x"), value.OpCallFunctionA, value.NewVar("f"), value.NewNumber(1)),
		// default applies with no args
		value.NewLine(value.NewVar("y"), value.OpCallFunctionA, value.NewVar("f"), value.NewNumber(0)),
	}
	m := runProgram(t, code)
	assert.Equal(t, 42.0, globalNum(t, m, "x"))
	assert.Equal(t, 3.0, globalNum(t, m, "y"))
}

func TestCallNonFunctionStoresValue(t *testing.T) {
	code := []value.Line{
		value.NewLine(value.NewVar("v"), value.OpAssignA, value.NewNumber(9), value.Null()),
		value.NewLine(value.NewVar("x"), value.OpCallFunctionA, value.NewVar("v"), value.NewNumber(0)),
	}
	m := runProgram(t, code)
	assert.Equal(t, 9.0, globalNum(t, m, "x"))
}

func TestTooManyArguments(t *testing.T) {
	noArgs := &value.Function{Code: []value.Line{}}
	code := []value.Line{
		value.NewLine(value.NewVar("f"), value.OpAssignA, value.NewFunctionValue(noArgs, nil), value.Null()),
		value.NewLine(value.Null(), value.OpPushParam, value.NewNumber(1), value.Null()),
		value.NewLine(value.NewVar("x"), value.OpCallFunctionA, value.NewVar("f"), value.NewNumber(1)),
	}
	m := vm.New(code)
	m.StandardOutput = func(string, bool) {}
	err := m.RunUntilDone(5, false)
	require.Error(t, err)
	rerr, ok := err.(*errs.RuntimeError)
	require.True(t, ok)
	assert.Equal(t, errs.TooManyArguments, rerr.Kind)
}

func TestMethodCallBindsSelfAndSuper(t *testing.T) {
	// parent = {"mult": function(self) return self.factor * 2}
	// child = {"__isa": parent, "factor": 21}
	// x = child.mult
	body := &value.Function{
		Params: []value.Param{{Name: "self"}},
		Code: []value.Line{
			value.NewLine(value.NewTemp(0), value.OpElemBofA, value.NewVar("self"), value.NewString("factor")),
			value.NewLine(value.NewTemp(1), value.OpATimesB, value.NewTemp(0), value.NewNumber(2)),
			value.NewLine(value.NewTemp(1), value.OpReturnA, value.NewTemp(1), value.Null()),
		},
	}
	parent := value.NewMap()
	parent.SetString("mult", value.NewFunctionValue(body, nil))
	child := value.NewMap()
	child.SetString(value.IsaKey, value.NewMapValue(parent))
	child.SetString("factor", value.NewNumber(21))

	code := []value.Line{
		value.NewLine(value.NewVar("child"), value.OpAssignA, value.NewMapValue(child), value.Null()),
		value.NewLine(value.NewVar("x"), value.OpCallFunctionA,
			value.NewSeqElem(value.NewVar("child"), value.NewString("mult")), value.NewNumber(0)),
	}
	m := runProgram(t, code)
	assert.Equal(t, 42.0, globalNum(t, m, "x"))
}

func TestPartialIntrinsicResumes(t *testing.T) {
	in := vm.Register("testCountdown", func(c *vm.Context, partial *vm.Result) (vm.Result, error) {
		if partial == nil {
			return vm.Result{Done: false, Value: value.NewNumber(3)}, nil
		}
		n := partial.Value.Num - 1
		if n <= 0 {
			return vm.Result{Done: true, Value: value.NewNumber(99)}, nil
		}
		return vm.Result{Done: false, Value: value.NewNumber(n)}, nil
	})
	code := []value.Line{
		value.NewLine(value.NewVar("x"), value.OpCallIntrinsicA, value.NewNumber(float64(in.ID())), value.Null()),
	}
	m := runProgram(t, code)
	assert.Equal(t, 99.0, globalNum(t, m, "x"))
}

func TestYieldStopsRun(t *testing.T) {
	in := vm.Register("testYield", func(c *vm.Context, partial *vm.Result) (vm.Result, error) {
		c.Machine().Yielding = true
		return vm.Result{Done: true, Value: value.Null()}, nil
	})
	code := []value.Line{
		value.NewLine(value.Null(), value.OpCallIntrinsicA, value.NewNumber(float64(in.ID())), value.Null()),
		value.NewLine(value.NewVar("x"), value.OpAssignA, value.NewNumber(1), value.Null()),
	}
	m := vm.New(code)
	m.StandardOutput = func(string, bool) {}
	require.NoError(t, m.RunUntilDone(5, true))
	assert.False(t, m.Done())
	_, err := m.GlobalContext().GetVar("x", value.LocalOnlyOff)
	assert.Error(t, err) // second line not yet executed
	require.NoError(t, m.RunUntilDone(5, true))
	assert.True(t, m.Done())
	assert.Equal(t, 1.0, globalNum(t, m, "x"))
}

func TestStopTruncatesStack(t *testing.T) {
	code := []value.Line{
		value.NewLine(value.NewVar("x"), value.OpAssignA, value.NewNumber(1), value.Null()),
		value.NewLine(value.NewVar("x"), value.OpAssignA, value.NewNumber(2), value.Null()),
	}
	m := vm.New(code)
	m.StandardOutput = func(string, bool) {}
	require.NoError(t, m.Step())
	m.Stop()
	assert.True(t, m.Done())
	assert.Equal(t, 1.0, globalNum(t, m, "x"))
}

func TestUndefinedLocalStrict(t *testing.T) {
	code := []value.Line{
		value.NewLine(value.NewVar("x"), value.OpAssignA,
			value.Value{Kind: value.KindVar, Str: "x", LocalOnly: value.LocalOnlyStrict}, value.Null()),
	}
	m := vm.New(code)
	m.StandardOutput = func(string, bool) {}
	err := m.RunUntilDone(5, false)
	require.Error(t, err)
	rerr, ok := err.(*errs.RuntimeError)
	require.True(t, ok)
	assert.Equal(t, errs.UndefinedLocal, rerr.Kind)
}
